package tui

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"chatter/internal/chat"
	"chatter/internal/orchestrator"
	"chatter/internal/provider"
	"chatter/internal/store"
	"chatter/internal/tokens"

	tea "github.com/charmbracelet/bubbletea"
)

type stubClient struct{ model string }

func (c *stubClient) Send(ctx context.Context, history []chat.Message, text string, att *chat.Attachment, onChunk provider.ChunkFunc) (string, error) {
	return "ok", nil
}

func (c *stubClient) CurrentModel() string { return c.model }

func (c *stubClient) SetModel(model string) error { c.model = model; return nil }

func (c *stubClient) Name() string { return "stub" }

type memKV struct{ data map[string][]byte }

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(key string) ([]byte, bool, error) { v, ok := m.data[key]; return v, ok, nil }

func (m *memKV) Set(key string, value []byte) error { m.data[key] = value; return nil }

func (m *memKV) Delete(key string) error { delete(m.data, key); return nil }

func (m *memKV) Close() error { return nil }

func newTestApp() (App, *store.Store) {
	st := store.Open(newMemKV())
	client := &stubClient{model: "test-model"}
	orch := orchestrator.New(st, client, tokens.New("cl100k_base"))
	app := NewApp(st, orch, client, 32768)
	app.width, app.height = 100, 30
	app.relayout()
	return app, st
}

func TestAppUpdate_SessionKeys(t *testing.T) {
	app, st := newTestApp()

	m, _ := app.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	updated := m.(App)
	if len(st.Sessions()) != 2 {
		t.Fatalf("expected a second session, got %d", len(st.Sessions()))
	}
	first := st.ActiveID()

	m, _ = updated.Update(tea.KeyMsg{Type: tea.KeyTab})
	updated = m.(App)
	if st.ActiveID() == first {
		t.Fatalf("tab should cycle the active session")
	}
	m, _ = updated.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if st.ActiveID() != first {
		t.Fatalf("shift+tab should cycle back")
	}
	_ = m
}

func TestAppUpdate_ChunkRefreshesChat(t *testing.T) {
	app, st := newTestApp()
	id := st.ActiveID()

	st.AppendMessage(id, chat.Message{Role: chat.RoleUser, Content: "question"})
	st.AppendMessage(id, chat.Message{Role: chat.RoleAssistant, Content: "partial answer", Pending: true})

	m, _ := app.Update(ChunkMsg{SessionID: id, Text: "partial answer"})
	updated := m.(App)
	if !updated.streaming {
		t.Fatalf("chunk should mark streaming")
	}
	if !strings.Contains(updated.chatView.View(), "partial answer") {
		t.Fatalf("chat panel should show the streamed text")
	}

	m, _ = updated.Update(DoneMsg{SessionID: id})
	updated = m.(App)
	if updated.streaming {
		t.Fatalf("done should clear streaming")
	}
}

func TestAppUpdate_ErrorBanner(t *testing.T) {
	app, st := newTestApp()

	m, _ := app.Update(ErrorMsg{SessionID: st.ActiveID(), Message: "service unavailable"})
	updated := m.(App)
	if updated.banner != "service unavailable" {
		t.Fatalf("banner not set: %q", updated.banner)
	}
	if !strings.Contains(updated.View(), "service unavailable") {
		t.Fatalf("banner should be visible in the view")
	}

	m, _ = updated.Update(tea.KeyMsg{Type: tea.KeyEsc})
	updated = m.(App)
	if updated.banner != "" {
		t.Fatalf("esc should dismiss the banner")
	}
}

func TestRunCommand(t *testing.T) {
	app, st := newTestApp()

	app.runCommand("/rename my topic")
	sess, _ := st.Active()
	if sess.Title != "my topic" {
		t.Fatalf("rename command failed: %q", sess.Title)
	}

	app.runCommand("/model other-model")
	if app.client.CurrentModel() != "other-model" {
		t.Fatalf("model command failed: %q", app.client.CurrentModel())
	}

	app.runCommand("/frobnicate")
	if !strings.Contains(app.banner, "/frobnicate") {
		t.Fatalf("unknown command should hit the banner: %q", app.banner)
	}
}

func TestSidebarTruncatesTitleByRunes(t *testing.T) {
	app, st := newTestApp()
	st.RenameSession(st.ActiveID(), strings.Repeat("会", 40))
	app.refreshChat()

	view := app.View()
	if !utf8.ValidString(view) {
		t.Fatalf("truncated title produced invalid utf-8 in the view")
	}
	if strings.ContainsRune(view, '�') {
		t.Fatalf("truncated title produced a replacement char in the view")
	}
}

func TestViewShowsSessionsAndModel(t *testing.T) {
	app, st := newTestApp()
	st.RenameSession(st.ActiveID(), "First topic")
	app.refreshChat()

	view := app.View()
	if !strings.Contains(view, "First topic") {
		t.Fatalf("sidebar should list the session title")
	}
	if !strings.Contains(view, "test-model") {
		t.Fatalf("sidebar should show the model name")
	}
}
