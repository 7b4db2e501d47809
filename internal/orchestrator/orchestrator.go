package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"chatter/internal/chat"
	"chatter/internal/i18n"
	"chatter/internal/provider"
	"chatter/internal/store"
	"chatter/internal/tokens"
)

// 校验失败静默忽略，不展示给用户
// Validation failures are silent; callers drop them without surfacing.
var (
	ErrBusy          = errors.New("a send is already in flight")
	ErrNoSession     = errors.New("no active session")
	ErrNothingToSend = errors.New("nothing to send")
)

const titleLimit = 30

// Events 发送流程对外的观察点
// Events are the observation points of a send. OnChunk carries the cumulative
// cleaned text for the pending reply; OnError carries the classified message
// that also lands in the last-error slot. All callbacks fire after the store
// mutation they describe has been applied.
type Events struct {
	OnChunk func(sessionID, text string)
	OnError func(sessionID, message string)
	OnDone  func(sessionID string)
}

// Orchestrator 连接会话存储与补全客户端
// Orchestrator bridges the conversation store and the completion client.
// At most one send is in flight per instance; a second send attempt while one
// is active is rejected, never queued. Switching sessions mid-stream does not
// abort the request; the reply finalizes against the session id captured at
// send time.
type Orchestrator struct {
	store  *store.Store
	client provider.Completion
	tok    *tokens.Tokenizer

	mu       sync.Mutex
	events   Events
	inFlight bool
	lastErr  string
}

func New(st *store.Store, client provider.Completion, tok *tokens.Tokenizer) *Orchestrator {
	return &Orchestrator{store: st, client: client, tok: tok}
}

// SetEvents 安装事件回调（在 UI 就绪后调用）
// SetEvents installs the event callbacks once the UI is ready to receive them.
func (o *Orchestrator) SetEvents(ev Events) {
	o.mu.Lock()
	o.events = ev
	o.mu.Unlock()
}

// Busy 返回是否有发送在途
// Busy reports whether a send is in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// LastError 返回横幅展示用的最近错误，读取后由调用方决定何时清除
// LastError returns the transient banner error slot.
func (o *Orchestrator) LastError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// ClearLastError 清除横幅错误
// ClearLastError clears the banner slot.
func (o *Orchestrator) ClearLastError() {
	o.mu.Lock()
	o.lastErr = ""
	o.mu.Unlock()
}

// PromptTokens 估算活跃会话下一次请求的 prompt token 量
// PromptTokens estimates the prompt size of the next send for the active
// session, for the status bar meter.
func (o *Orchestrator) PromptTokens() int {
	sess, ok := o.store.Active()
	if !ok {
		return 0
	}
	return o.tok.Count(sess.Messages)
}

// Send 执行一次完整的发送流程，阻塞直到流结束
// Send runs one complete send: validate, append the user message and the
// pending placeholder, stream the reply into the placeholder, finalize, and
// auto-title the session on its first exchange. It blocks until the stream
// ends; run it from a goroutine when driving a UI.
func (o *Orchestrator) Send(ctx context.Context, text string, att *chat.Attachment) error {
	text = strings.TrimSpace(text)
	if text == "" && att == nil {
		return ErrNothingToSend
	}
	sess, ok := o.store.Active()
	if !ok {
		return ErrNoSession
	}

	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return ErrBusy
	}
	o.inFlight = true
	o.lastErr = ""
	events := o.events
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	// 历史快照不含本次新增的两条消息 / history excludes the two appends below
	sessionID := sess.ID
	history := sess.Messages

	o.store.AppendMessage(sessionID, chat.Message{
		Role:       chat.RoleUser,
		Content:    text,
		Attachment: att,
	})
	o.store.AppendMessage(sessionID, chat.Message{
		Role:    chat.RoleAssistant,
		Pending: true,
	})

	final, err := o.streamReply(ctx, sessionID, history, text, att, events)

	if err != nil {
		message := provider.Classify(err).Message
		o.store.UpdateLastMessage(sessionID, func(m *chat.Message) {
			m.Role = chat.RoleError
			m.Content = message
			m.Pending = false
		})
		o.mu.Lock()
		o.lastErr = message
		o.mu.Unlock()
		if events.OnError != nil {
			events.OnError(sessionID, message)
		}
	} else {
		o.store.UpdateLastMessage(sessionID, func(m *chat.Message) {
			m.Role = chat.RoleAssistant
			m.Content = final
			if final == "" {
				m.Content = i18n.T("chat.no_response")
			}
			m.Pending = false
		})
	}

	o.autoTitle(sessionID, text)

	if events.OnDone != nil {
		events.OnDone(sessionID)
	}
	return err
}

// streamReply 驱动客户端流式回复；panic 与错误同路处理
// streamReply drives the client. A panic escaping the client boundary is
// converted into the same error path as a classified failure.
func (o *Orchestrator) streamReply(ctx context.Context, sessionID string, history []chat.Message, text string, att *chat.Attachment, events Events) (final string, err error) {
	defer func() {
		if r := recover(); r != nil {
			final = ""
			err = fmt.Errorf("completion client panic: %v", r)
		}
	}()

	return o.client.Send(ctx, history, text, att, func(cleaned string) {
		o.store.UpdateLastMessage(sessionID, func(m *chat.Message) {
			m.Content = cleaned
		})
		if events.OnChunk != nil {
			events.OnChunk(sessionID, cleaned)
		}
	})
}

// autoTitle 首次交流后用用户输入的前 30 个字符命名会话
// autoTitle renames the session after its first exchange to the first 30
// runes of the user text, ellipsis-suffixed when truncated.
func (o *Orchestrator) autoTitle(sessionID, userText string) {
	sess, ok := o.store.Session(sessionID)
	if !ok || len(sess.Messages) > 2 {
		return
	}
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return
	}
	runes := []rune(userText)
	title := userText
	if len(runes) > titleLimit {
		title = string(runes[:titleLimit]) + "..."
	}
	o.store.RenameSession(sessionID, title)
}
