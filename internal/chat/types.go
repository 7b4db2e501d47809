package chat

import "time"

// 消息角色 / Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleError     = "error"
)

// Attachment kinds, decided at ingestion time.
const (
	AttachmentText  = "text"
	AttachmentImage = "image"
	AttachmentOther = "other"
)

// Attachment 附加到消息上的文件内容
// Attachment is file content attached to a message. Content holds raw text for
// text files, base64 for images, and a placeholder string for unsupported
// kinds. Immutable once attached.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Kind     string `json:"kind"`
	Content  string `json:"content"`
}

// Message 会话中的一条消息
// Message is one entry in a session. ID is unique within its session and
// assigned in creation order. Pending marks the in-flight assistant reply;
// at most one pending message exists per session.
type Message struct {
	ID         int         `json:"id"`
	Role       string      `json:"role"`
	Content    string      `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Pending    bool        `json:"pending,omitempty"`
}

// Session 一段命名会话
// Session is a named conversation. Messages are insertion-ordered; that order
// is what gets replayed to the completion service as history.
type Session struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Messages      []Message `json:"messages"`
	CreatedAt     time.Time `json:"created_at"`
	NextMessageID int       `json:"next_message_id"`
}

// WireMessage 发送到补全服务的消息形态
// WireMessage is the {role, content} shape sent to the completion endpoint.
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
