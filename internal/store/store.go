package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"chatter/internal/chat"
	"chatter/internal/storage"

	"github.com/google/uuid"
)

// KV 槽位名固定 / Fixed cache slot names
const (
	sessionsKey = "sessions"
	activeKey   = "active_session"
)

// Store 拥有全部会话与消息，并以最佳努力写入本地缓存
// Store exclusively owns all sessions and messages. Every mutation is atomic
// with respect to concurrent observers and snapshots the full session set to
// the local cache; cache writes are best effort and never fail a mutation.
//
// Invariant: while sessions exist, ActiveID references one of them.
type Store struct {
	mu       sync.Mutex
	kv       storage.KV
	sessions []*chat.Session
	activeID string
}

// Open 从缓存恢复会话集，缺失或损坏时退化为全新单会话
// Open restores the session set from the cache. A missing, empty, or corrupt
// cache degrades to a brand-new store with a single session; startup never
// fails on bad cache data. The previously active session id is restored when
// it still resolves, else the first session becomes active.
func Open(kv storage.KV) *Store {
	st := &Store{kv: kv}

	if data, ok, err := kv.Get(sessionsKey); err == nil && ok {
		var sessions []*chat.Session
		if err := json.Unmarshal(data, &sessions); err == nil {
			st.sessions = sessions
		}
	}
	if len(st.sessions) == 0 {
		st.createLocked()
		st.persistLocked()
		return st
	}

	st.activeID = st.sessions[0].ID
	if data, ok, err := kv.Get(activeKey); err == nil && ok {
		if id := string(data); st.findLocked(id) != nil {
			st.activeID = id
		}
	}
	return st
}

// --- Mutations ---

// CreateSession 新建会话并设为活跃，永不失败
// CreateSession prepends a fresh session with a default title and makes it
// active. Never fails.
func (s *Store) CreateSession() chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.createLocked()
	s.persistLocked()
	return copySession(sess)
}

// DeleteSession 删除会话；若删除的是活跃会话则按兜底顺序选择替代
// DeleteSession removes a session. When the removed session was active, the
// replacement is picked in this order: the immediately preceding session in
// the prior display order, else the following one, else the first of whatever
// remains; with nothing left a fresh session is created.
func (s *Store) DeleteSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, sess := range s.sessions {
		if sess.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	wasActive := s.activeID == id
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)

	if wasActive {
		switch {
		case len(s.sessions) == 0:
			s.createLocked()
		case idx > 0:
			s.activeID = s.sessions[idx-1].ID
		case idx < len(s.sessions):
			s.activeID = s.sessions[idx].ID
		default:
			s.activeID = s.sessions[0].ID
		}
	}
	s.persistLocked()
}

// SwitchActive 切换活跃会话；未知 id 静默忽略
// SwitchActive sets the active session; unknown ids are a silent no-op.
func (s *Store) SwitchActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(id) == nil {
		return
	}
	s.activeID = id
	s.persistLocked()
}

// RenameSession 重命名；修剪后为空则保留原标题
// RenameSession sets a trimmed title; an empty trimmed title keeps the
// existing one unchanged.
func (s *Store) RenameSession(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(id)
	if sess == nil {
		return
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	sess.Title = title
	s.persistLocked()
}

// AppendMessage 追加消息并分配单调递增的消息 id
// AppendMessage appends to the named session, assigning the next message id
// and a timestamp when unset. Unknown session ids are a no-op.
func (s *Store) AppendMessage(sessionID string, msg chat.Message) chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(sessionID)
	if sess == nil {
		return chat.Message{}
	}
	if sess.NextMessageID == 0 {
		sess.NextMessageID = 1
	}
	msg.ID = sess.NextMessageID
	sess.NextMessageID++
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	sess.Messages = append(sess.Messages, msg)
	s.persistLocked()
	return msg
}

// UpdateLastMessage 以替换方式更新会话的最后一条消息
// UpdateLastMessage applies fn to the session's last message, replacing it.
// Used to mutate the pending placeholder as chunks arrive. No-op when the
// session is unknown or empty.
func (s *Store) UpdateLastMessage(sessionID string, fn func(*chat.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(sessionID)
	if sess == nil || len(sess.Messages) == 0 {
		return
	}
	updated := sess.Messages[len(sess.Messages)-1]
	fn(&updated)
	sess.Messages[len(sess.Messages)-1] = updated
	s.persistLocked()
}

// --- Observers ---

// Sessions 返回展示顺序的会话快照
// Sessions returns a snapshot of the session set in display order.
func (s *Store) Sessions() []chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, copySession(sess))
	}
	return out
}

// ActiveID 返回当前活跃会话 id
// ActiveID returns the active session id.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Session 返回指定会话的快照
// Session returns a snapshot of one session.
func (s *Store) Session(id string) (chat.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(id)
	if sess == nil {
		return chat.Session{}, false
	}
	return copySession(sess), true
}

// Active 返回活跃会话的快照
// Active returns a snapshot of the active session.
func (s *Store) Active() (chat.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(s.activeID)
	if sess == nil {
		return chat.Session{}, false
	}
	return copySession(sess), true
}

// --- Internals ---

func (s *Store) createLocked() *chat.Session {
	sess := &chat.Session{
		ID:            uuid.NewString(),
		Title:         fmt.Sprintf("New chat %d", len(s.sessions)+1),
		CreatedAt:     time.Now().UTC(),
		NextMessageID: 1,
	}
	s.sessions = append([]*chat.Session{sess}, s.sessions...)
	s.activeID = sess.ID
	return sess
}

func (s *Store) findLocked(id string) *chat.Session {
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

// persistLocked 将完整会话集写入缓存槽位，失败不阻断调用方
// persistLocked snapshots the full session set and active id into the fixed
// cache slots. Best effort: a failed write never blocks the mutation.
func (s *Store) persistLocked() {
	if s.kv == nil {
		return
	}
	if data, err := json.Marshal(s.sessions); err == nil {
		_ = s.kv.Set(sessionsKey, data)
	}
	_ = s.kv.Set(activeKey, []byte(s.activeID))
}

func copySession(sess *chat.Session) chat.Session {
	out := *sess
	out.Messages = append([]chat.Message(nil), sess.Messages...)
	return out
}
