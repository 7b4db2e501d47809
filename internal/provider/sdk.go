package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"chatter/internal/chat"
	"chatter/internal/config"

	openai "github.com/sashabaranov/go-openai"
)

// SDKClient 使用 go-openai SDK 的客户端实现
// SDKClient implements Completion on top of the go-openai SDK. Stream creation
// gets a bounded retry with exponential backoff; once the first chunk has been
// delivered the send is never retried, matching the compat client's contract.
type SDKClient struct {
	client       *openai.Client
	systemPrompt string
	maxRetries   int

	mu          sync.RWMutex
	model       string
	maxTokens   int
	temperature *float64
	topP        *float64
}

func NewSDKClient(cfg config.ProviderConfig) *SDKClient {
	conf := openai.DefaultConfig(cfg.APIKey)
	conf.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := &http.Client{}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	conf.HTTPClient = httpClient

	prompt := strings.TrimSpace(cfg.SystemPrompt)
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}

	return &SDKClient{
		client:       openai.NewClientWithConfig(conf),
		systemPrompt: prompt,
		maxRetries:   retries,
		model:        cfg.Model,
		maxTokens:    cfg.MaxCompletionTokens,
		temperature:  cfg.Temperature,
		topP:         cfg.TopP,
	}
}

func (c *SDKClient) Name() string { return "sdk" }

func (c *SDKClient) CurrentModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *SDKClient) SetModel(model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model is empty")
	}
	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
	return nil
}

// ApplySampling 应用采样参数变更，对后续请求生效
// ApplySampling updates sampling parameters for subsequent sends.
func (c *SDKClient) ApplySampling(temperature, topP *float64, maxTokens int) {
	c.mu.Lock()
	c.temperature = temperature
	c.topP = topP
	c.maxTokens = maxTokens
	c.mu.Unlock()
}

func (c *SDKClient) Send(ctx context.Context, history []chat.Message, text string, att *chat.Attachment, onChunk ChunkFunc) (string, error) {
	c.mu.RLock()
	req := openai.ChatCompletionRequest{
		Model:               c.model,
		Stream:              true,
		MaxCompletionTokens: c.maxTokens,
	}
	if c.temperature != nil {
		req.Temperature = float32(*c.temperature)
	}
	if c.topP != nil {
		req.TopP = float32(*c.topP)
	}
	c.mu.RUnlock()

	wire := buildMessages(c.systemPrompt, history, text, att)
	req.Messages = make([]openai.ChatCompletionMessage, 0, len(wire))
	for _, msg := range wire {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	stream, err := c.createStream(ctx, req)
	if err != nil {
		return "", classifySDKError(err)
	}
	defer stream.Close()

	var raw strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", classifySDKError(err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		raw.WriteString(delta)
		if onChunk != nil {
			onChunk(StripReasoning(raw.String()))
		}
	}
	return StripReasoning(raw.String()), nil
}

// createStream 建流失败时按指数退避重试
// createStream retries stream creation with exponential backoff. Context
// cancellation and deadline errors are not retryable.
func (c *SDKClient) createStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(150*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		stream, err := c.client.CreateChatCompletionStream(ctx, req)
		if err == nil {
			return stream, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("create completion stream failed after %d retries: %w", c.maxRetries, lastErr)
}

func classifySDKError(err error) *ServiceError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}
	return Classify(err)
}
