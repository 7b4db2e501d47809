package provider

import (
	"context"

	"chatter/internal/chat"
	"chatter/internal/config"
)

// DefaultSystemPrompt 默认系统指令
// DefaultSystemPrompt is the system instruction prepended to every request.
const DefaultSystemPrompt = "You are a helpful assistant. Answer concisely and use markdown where it helps readability."

// ChunkFunc 接收累计的、已过滤的文本快照
// ChunkFunc receives the cumulative cleaned text after each delta, not a diff.
type ChunkFunc func(text string)

// Completion 补全服务客户端接口
// Completion is the completion-service client interface. Send streams one
// reply: history is the session's prior messages excluding the in-flight
// placeholder, and the returned string is the final filtered text. Failures
// come back as classified *ServiceError values; Send never panics across its
// boundary and performs no retries of its own.
type Completion interface {
	Send(ctx context.Context, history []chat.Message, text string, att *chat.Attachment, onChunk ChunkFunc) (string, error)
	CurrentModel() string
	SetModel(model string) error
	Name() string
}

// New 根据配置选择 compat 或 SDK 实现
// New picks the client implementation from config: the hand-rolled compat
// client by default, the go-openai SDK client when mode is "sdk".
func New(cfg config.ProviderConfig) Completion {
	if cfg.Mode == "sdk" {
		return NewSDKClient(cfg)
	}
	return NewClient(cfg)
}
