package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"chatter/internal/chat"
	"chatter/internal/config"
)

// Client 直接实现 OpenAI 兼容流式协议的客户端
// Client talks to an OpenAI-compatible endpoint with a hand-rolled streaming
// code path. One Send moves Idle -> Sending -> Streaming -> Completed/Failed;
// a failed or completed send is terminal and the caller decides whether to
// send again.
type Client struct {
	baseURL      string
	apiKey       string
	systemPrompt string

	mu          sync.RWMutex
	model       string
	maxTokens   int
	temperature *float64
	topP        *float64

	httpClient *http.Client
}

func NewClient(cfg config.ProviderConfig) *Client {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	prompt := strings.TrimSpace(cfg.SystemPrompt)
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		systemPrompt: prompt,
		model:        cfg.Model,
		maxTokens:    cfg.MaxCompletionTokens,
		temperature:  cfg.Temperature,
		topP:         cfg.TopP,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "compat" }

func (c *Client) CurrentModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *Client) SetModel(model string) error {
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
func (c *Client) ApplySampling(temperature, topP *float64, maxTokens int) {
	c.mu.Lock()
	c.temperature = temperature
	c.topP = topP
	c.maxTokens = maxTokens
	c.mu.Unlock()
}

// Send 发送一次补全请求并流式接收回复
// Send issues one streamed completion request. onChunk is invoked with the
// cumulative reasoning-filtered text after every content delta; the same
// filtered accumulation is returned once the stream ends. On failure the
// result is empty and the error is a classified *ServiceError.
func (c *Client) Send(ctx context.Context, history []chat.Message, text string, att *chat.Attachment, onChunk ChunkFunc) (string, error) {
	c.mu.RLock()
	payload := map[string]any{
		"model":                 c.model,
		"messages":              buildMessages(c.systemPrompt, history, text, att),
		"stream":                true,
		"max_completion_tokens": c.maxTokens,
	}
	if c.temperature != nil {
		payload["temperature"] = *c.temperature
	}
	if c.topP != nil {
		payload["top_p"] = *c.topP
	}
	c.mu.RUnlock()

	body, err := json.Marshal(payload)
	if err != nil {
		return "", Classify(fmt.Errorf("marshal chat request: %w", err))
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(body),
	)
	if err != nil {
		return "", Classify(fmt.Errorf("create chat request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", Classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return "", classifyStatus(resp.StatusCode, serverErrorDetail(data))
	}

	decoder := NewStreamDecoder(resp.Body)
	var raw strings.Builder
	for {
		delta, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", Classify(err)
		}
		raw.WriteString(delta)
		if onChunk != nil {
			onChunk(StripReasoning(raw.String()))
		}
	}
	return StripReasoning(raw.String()), nil
}

// buildMessages 组装请求消息：system 指令、角色映射后的历史、最后的用户消息
// buildMessages assembles the outgoing messages: the system instruction,
// history with roles mapped to user/assistant, then the new user message with
// any attachment folded into its content.
func buildMessages(systemPrompt string, history []chat.Message, text string, att *chat.Attachment) []chat.WireMessage {
	messages := make([]chat.WireMessage, 0, len(history)+2)
	messages = append(messages, chat.WireMessage{Role: chat.RoleSystem, Content: systemPrompt})
	for _, msg := range history {
		if msg.Pending {
			continue
		}
		role := chat.RoleUser
		if msg.Role == chat.RoleAssistant {
			role = chat.RoleAssistant
		}
		messages = append(messages, chat.WireMessage{Role: role, Content: msg.Content})
	}
	messages = append(messages, chat.WireMessage{Role: chat.RoleUser, Content: composeUserContent(text, att)})
	return messages
}

// composeUserContent 按附件类型拼装用户消息正文
// composeUserContent folds the attachment into the user text. The shapes are
// fixed for interop with how the service expects inlined file context.
func composeUserContent(text string, att *chat.Attachment) string {
	if att == nil {
		return text
	}
	switch att.Kind {
	case chat.AttachmentImage:
		return fmt.Sprintf("[Attached image %q (%s), base64 encoded]\n%s\n\n---\n\n%s",
			att.Name, att.MimeType, att.Content, text)
	case chat.AttachmentText:
		return fmt.Sprintf("[Attached file %q]\n%s\n\n---\n\n%s",
			att.Name, att.Content, text)
	default:
		return fmt.Sprintf("[Attached file %q (%s): consider it if relevant to the request]\n\n---\n\n%s",
			att.Name, att.MimeType, text)
	}
}

// serverErrorDetail 提取服务端错误详情，非 JSON 时原样返回
// serverErrorDetail pulls the error message out of an OpenAI-style error body,
// falling back to the raw body.
func serverErrorDetail(body []byte) string {
	var wrapper struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error.Message != "" {
		return wrapper.Error.Message
	}
	return strings.TrimSpace(string(body))
}
