package tui

import (
	"context"
	"fmt"
	"strings"

	"chatter/internal/chat"
	"chatter/internal/i18n"
	"chatter/internal/ingest"
	"chatter/internal/orchestrator"
	"chatter/internal/provider"
	"chatter/internal/store"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// --- Tea Messages ---

// ChunkMsg 流式文本快照（累计的已过滤全文）
// ChunkMsg carries the cumulative cleaned text of the pending reply
type ChunkMsg struct {
	SessionID string
	Text      string
}

// ErrorMsg 发送失败的横幅消息
// ErrorMsg carries a classified failure message for the banner
type ErrorMsg struct {
	SessionID string
	Message   string
}

// DoneMsg 一次发送结束
// DoneMsg indicates a send has finished
type DoneMsg struct{ SessionID string }

// sendResultMsg 发送协程返回
// sendResultMsg is the return value of the send command
type sendResultMsg struct{ err error }

// App Bubble Tea 主 Model
// App is the main Bubble Tea model
type App struct {
	// 布局 / Layout
	width  int
	height int

	// 视图 / Views
	chatView viewport.Model
	input    textarea.Model

	// 依赖 / Dependencies
	st     *store.Store
	orch   *orchestrator.Orchestrator
	client provider.Completion

	// 状态 / State
	staged     *chat.Attachment
	streaming  bool
	banner     string
	tokenLimit int

	// 配置 / Config
	theme  Theme
	keys   KeyMap
	locale *i18n.I18n
}

// NewApp 创建 TUI 应用
// NewApp creates a new TUI application
func NewApp(st *store.Store, orch *orchestrator.Orchestrator, client provider.Completion, tokenLimit int) App {
	ta := textarea.New()
	ta.Placeholder = i18n.T("input.placeholder")
	ta.CharLimit = 8192
	ta.SetHeight(3)
	ta.Focus()

	if tokenLimit <= 0 {
		tokenLimit = 32768
	}

	return App{
		chatView:   viewport.New(80, 20),
		input:      ta,
		st:         st,
		orch:       orch,
		client:     client,
		tokenLimit: tokenLimit,
		theme:      DarkTheme(),
		keys:       DefaultKeyMap(),
		locale:     i18n.Global(),
	}
}

func (a App) Init() tea.Cmd {
	return textarea.Blink
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.Submit):
			return a.submit()
		case key.Matches(msg, a.keys.Cancel):
			a.banner = ""
			a.orch.ClearLastError()
			return a, nil
		case key.Matches(msg, a.keys.NewSession):
			a.st.CreateSession()
			a.refreshChat()
			return a, nil
		case key.Matches(msg, a.keys.NextSession):
			a.cycleSession(1)
			return a, nil
		case key.Matches(msg, a.keys.PrevSession):
			a.cycleSession(-1)
			return a, nil
		case key.Matches(msg, a.keys.DeleteSess):
			a.st.DeleteSession(a.st.ActiveID())
			a.refreshChat()
			return a, nil
		case key.Matches(msg, a.keys.PageUp):
			a.chatView.ViewUp()
			return a, nil
		case key.Matches(msg, a.keys.PageDown):
			a.chatView.ViewDown()
			return a, nil
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.relayout()
		return a, nil

	case ChunkMsg:
		a.streaming = true
		if msg.SessionID == a.st.ActiveID() {
			a.refreshChat()
		}
		return a, nil

	case ErrorMsg:
		a.banner = msg.Message
		if msg.SessionID == a.st.ActiveID() {
			a.refreshChat()
		}
		return a, nil

	case DoneMsg:
		a.streaming = false
		if msg.SessionID == a.st.ActiveID() {
			a.refreshChat()
		}
		return a, nil

	case sendResultMsg:
		a.streaming = false
		a.refreshChat()
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

// submit 处理回车：斜杠命令或发送消息
// submit handles enter: a slash command, or a message send
func (a App) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(a.input.Value())
	if strings.HasPrefix(text, "/") {
		a.input.Reset()
		a.runCommand(text)
		return a, nil
	}
	if text == "" && a.staged == nil {
		return a, nil
	}
	if a.orch.Busy() {
		a.banner = a.locale.T("repl.busy")
		return a, nil
	}

	att := a.staged
	a.staged = nil
	a.input.Reset()
	a.streaming = true
	a.banner = ""

	orch := a.orch
	return a, func() tea.Msg {
		return sendResultMsg{err: orch.Send(context.Background(), text, att)}
	}
}

func (a *App) runCommand(line string) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/new":
		a.st.CreateSession()
		a.refreshChat()
	case "/rename":
		a.st.RenameSession(a.st.ActiveID(), arg)
	case "/delete":
		a.st.DeleteSession(a.st.ActiveID())
		a.refreshChat()
	case "/model":
		if arg != "" {
			if err := a.client.SetModel(arg); err != nil {
				a.banner = err.Error()
			}
		}
	case "/attach":
		att, err := ingest.ReadFile(arg)
		if err != nil {
			a.banner = err.Error()
			return
		}
		a.staged = att
	default:
		a.banner = a.locale.T("repl.unknown_command", cmd)
	}
}

// cycleSession 按列表顺序切换活跃会话
// cycleSession moves the active session through the list order
func (a *App) cycleSession(step int) {
	sessions := a.st.Sessions()
	if len(sessions) < 2 {
		return
	}
	active := a.st.ActiveID()
	for i, s := range sessions {
		if s.ID == active {
			next := (i + step + len(sessions)) % len(sessions)
			a.st.SwitchActive(sessions[next].ID)
			break
		}
	}
	a.refreshChat()
}

func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Initializing..."
	}

	sidebarWidth := a.width * 25 / 100
	if sidebarWidth < 20 {
		sidebarWidth = 20
	}
	if sidebarWidth > 40 {
		sidebarWidth = 40
	}
	if a.width < 80 {
		sidebarWidth = 0
	}

	mainWidth := a.width - sidebarWidth
	if sidebarWidth > 0 {
		mainWidth-- // border
	}

	inputHeight := 5
	statusHeight := 1
	bannerHeight := 0
	if a.banner != "" {
		bannerHeight = 1
	}
	panelHeight := a.height - inputHeight - statusHeight - bannerHeight
	if panelHeight < 3 {
		panelHeight = 3
	}

	panel := lipgloss.NewStyle().Width(mainWidth).Height(panelHeight).Render(a.chatView.View())
	inputBox := a.theme.InputStyle.Width(mainWidth).Render(a.input.View())

	parts := []string{panel}
	if a.banner != "" {
		parts = append(parts, a.theme.BannerStyle.Width(mainWidth).Render(a.banner))
	}
	parts = append(parts, inputBox)
	main := lipgloss.JoinVertical(lipgloss.Left, parts...)

	if sidebarWidth > 0 {
		sidebar := a.renderSidebar(sidebarWidth, a.height-statusHeight)
		main = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
	}

	return lipgloss.JoinVertical(lipgloss.Left, main, a.renderStatusBar(a.width))
}

// --- 内部方法 / Internal methods ---

func (a *App) relayout() {
	mainWidth := a.width
	if a.width >= 80 {
		mainWidth = a.width - a.sidebarWidth() - 1
	}
	panelHeight := a.height - 8
	if panelHeight < 3 {
		panelHeight = 3
	}

	a.chatView = viewport.New(mainWidth, panelHeight)
	a.input.SetWidth(mainWidth - 4)
	a.refreshChat()
}

func (a App) sidebarWidth() int {
	w := a.width * 25 / 100
	if w < 20 {
		w = 20
	}
	if w > 40 {
		w = 40
	}
	return w
}

// refreshChat 从会话存储重建聊天内容
// refreshChat rebuilds the chat panel from the store snapshot
func (a *App) refreshChat() {
	sess, ok := a.st.Active()
	if !ok {
		a.chatView.SetContent("")
		return
	}

	width := a.chatView.Width
	var b strings.Builder
	for _, msg := range sess.Messages {
		switch msg.Role {
		case chat.RoleUser:
			b.WriteString(a.theme.UserStyle.Render("You") + "\n")
			b.WriteString(msg.Content + "\n")
			if msg.Attachment != nil {
				b.WriteString(a.theme.MutedStyle.Render(a.locale.T("chat.attachment", msg.Attachment.Name)) + "\n")
			}
		case chat.RoleAssistant:
			if msg.Pending && msg.Content == "" {
				b.WriteString(a.theme.PendingStyle.Render("...") + "\n")
				continue
			}
			b.WriteString(RenderMarkdown(msg.Content, width) + "\n")
		case chat.RoleError:
			b.WriteString(a.theme.ErrorStyle.Render(msg.Content) + "\n")
		}
		b.WriteString("\n")
	}

	a.chatView.SetContent(b.String())
	a.chatView.GotoBottom()
}

func (a App) renderSidebar(width, height int) string {
	var parts []string

	parts = append(parts, a.theme.TitleStyle.Render(" Chatter"))
	parts = append(parts, "")

	parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("sidebar.sessions")))
	active := a.st.ActiveID()
	for _, s := range a.st.Sessions() {
		title := s.Title
		// 按 rune 截断，避免切开多字节字符 / truncate on runes, not bytes
		if runes := []rune(title); len(runes) > width-4 {
			title = string(runes[:width-4])
		}
		style := a.theme.SessionStyle
		if s.ID == active {
			style = a.theme.ActiveSessionStyle
		}
		parts = append(parts, style.Render(title))
	}
	parts = append(parts, "")

	parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("sidebar.model")))
	parts = append(parts, "  "+a.client.CurrentModel())
	parts = append(parts, "")

	tokens := a.orch.PromptTokens()
	pct := float64(tokens) / float64(a.tokenLimit) * 100
	parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("sidebar.context")))
	parts = append(parts, "  "+renderProgressBar(pct, width-4))
	parts = append(parts, fmt.Sprintf("  %d / %d", tokens, a.tokenLimit))

	content := strings.Join(parts, "\n")
	return a.theme.SidebarStyle.Width(width).Height(height).Render(content)
}

func (a App) renderStatusBar(width int) string {
	status := a.locale.T("status.ready")
	if a.streaming {
		status = a.locale.T("status.streaming")
	}

	left := fmt.Sprintf(" %s · %s · %s", a.client.Name(), a.client.CurrentModel(), status)
	right := ""
	if a.staged != nil {
		right = fmt.Sprintf("%s  ", a.locale.T("chat.attachment", a.staged.Name))
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return a.theme.StatusBarStyle.Width(width).Render(bar)
}

// Run 启动 Bubble Tea TUI
// Run starts the Bubble Tea TUI application
func Run(st *store.Store, orch *orchestrator.Orchestrator, client provider.Completion, tokenLimit int) error {
	app := NewApp(st, orch, client, tokenLimit)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())

	orch.SetEvents(orchestrator.Events{
		OnChunk: func(sessionID, text string) { p.Send(ChunkMsg{SessionID: sessionID, Text: text}) },
		OnError: func(sessionID, message string) { p.Send(ErrorMsg{SessionID: sessionID, Message: message}) },
		OnDone:  func(sessionID string) { p.Send(DoneMsg{SessionID: sessionID}) },
	})

	_, err := p.Run()
	return err
}
