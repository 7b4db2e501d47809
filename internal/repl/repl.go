// Package repl 提供无 TUI 的纯文本交互模式
// Package repl is the plain text interaction mode for terminals where the
// full-screen TUI is unwanted. Replies stream to stdout as they arrive.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"chatter/internal/chat"
	"chatter/internal/i18n"
	"chatter/internal/ingest"
	"chatter/internal/orchestrator"
	"chatter/internal/provider"
	"chatter/internal/store"

	"github.com/chzyer/readline"
)

var replCommands = []string{
	"/help",
	"/new",
	"/sessions",
	"/switch <n>",
	"/rename <title>",
	"/delete",
	"/attach <path>",
	"/model <name>",
	"/quit",
}

type lineInput interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

type basicLineInput struct {
	reader *bufio.Reader
	out    io.Writer
}

func newBasicLineInput(in io.Reader, out io.Writer) *basicLineInput {
	return &basicLineInput{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

func (b *basicLineInput) ReadLine(prompt string) (string, error) {
	if b.out != nil {
		fmt.Fprint(b.out, prompt)
	}
	line, err := b.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (b *basicLineInput) Close() error { return nil }

type readlineInput struct {
	instance *readline.Instance
}

func newReadlineInput(historyPath string) (*readlineInput, error) {
	if historyPath != "" {
		if err := os.MkdirAll(filepath.Dir(historyPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	instance, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       historyPath,
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, err
	}
	return &readlineInput{instance: instance}, nil
}

func (r *readlineInput) ReadLine(prompt string) (string, error) {
	r.instance.SetPrompt(prompt)
	return r.instance.Readline()
}

func (r *readlineInput) Close() error {
	if r == nil || r.instance == nil {
		return nil
	}
	return r.instance.Close()
}

// REPL 纯文本交互循环
// REPL is the plain text interaction loop.
type REPL struct {
	st     *store.Store
	orch   *orchestrator.Orchestrator
	client provider.Completion
	in     lineInput
	out    io.Writer
	locale *i18n.I18n

	staged  *chat.Attachment
	printed string // last cumulative snapshot already written
}

// New 构造 REPL，in/out 可注入用于测试
// New builds a REPL; in/out are injectable for tests.
func New(st *store.Store, orch *orchestrator.Orchestrator, client provider.Completion, in io.Reader, out io.Writer) *REPL {
	return &REPL{
		st:     st,
		orch:   orch,
		client: client,
		in:     newBasicLineInput(in, out),
		out:    out,
		locale: i18n.Global(),
	}
}

// Run 用 readline 行编辑器启动交互循环
// Run starts the loop with the readline editor, falling back to basic stdin
// input when the terminal cannot host it.
func Run(st *store.Store, orch *orchestrator.Orchestrator, client provider.Completion, historyPath string) error {
	r := &REPL{
		st:     st,
		orch:   orch,
		client: client,
		out:    os.Stdout,
		locale: i18n.Global(),
	}
	in, err := newReadlineInput(historyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "line editor unavailable, fallback to basic input: %v\n", err)
		r.in = newBasicLineInput(os.Stdin, os.Stdout)
	} else {
		r.in = in
	}
	defer r.in.Close()
	return r.Loop()
}

// Loop 读取-执行循环，直到 /quit 或 EOF
// Loop reads and executes until /quit or EOF.
func (r *REPL) Loop() error {
	r.orch.SetEvents(orchestrator.Events{
		OnChunk: r.onChunk,
		OnError: func(sessionID, message string) {
			fmt.Fprintf(r.out, "\nerror: %s\n", message)
		},
	})

	r.printCommands()

	for {
		line, err := r.in.ReadLine("> ")
		if err != nil {
			switch {
			case errors.Is(err, readline.ErrInterrupt):
				fmt.Fprintln(r.out)
				continue
			case errors.Is(err, io.EOF):
				fmt.Fprintln(r.out, r.locale.T("repl.goodbye"))
				return nil
			default:
				return fmt.Errorf("read input failed: %w", err)
			}
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if r.runCommand(input) {
				return nil
			}
			continue
		}

		r.send(input)
	}
}

// runCommand 执行斜杠命令，返回是否退出
// runCommand executes a slash command; true means exit.
func (r *REPL) runCommand(line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		fmt.Fprintln(r.out, r.locale.T("repl.goodbye"))
		return true
	case "/help":
		r.printCommands()
	case "/new":
		sess := r.st.CreateSession()
		fmt.Fprintln(r.out, r.locale.T("repl.created", shortID(sess.ID)))
	case "/sessions":
		r.printSessions()
	case "/switch":
		r.switchSession(arg)
	case "/rename":
		r.st.RenameSession(r.st.ActiveID(), arg)
		fmt.Fprintln(r.out, r.locale.T("repl.renamed", arg))
	case "/delete":
		r.st.DeleteSession(r.st.ActiveID())
		fmt.Fprintln(r.out, r.locale.T("repl.deleted"))
	case "/attach":
		att, err := ingest.ReadFile(arg)
		if err != nil {
			fmt.Fprintf(r.out, "attach failed: %v\n", err)
			return false
		}
		r.staged = att
		fmt.Fprintln(r.out, r.locale.T("repl.attached", att.Name, att.Kind))
	case "/model":
		if arg == "" {
			fmt.Fprintln(r.out, r.client.CurrentModel())
			return false
		}
		if err := r.client.SetModel(arg); err != nil {
			fmt.Fprintf(r.out, "set model failed: %v\n", err)
			return false
		}
		fmt.Fprintln(r.out, r.locale.T("repl.model_set", arg))
	default:
		fmt.Fprintln(r.out, r.locale.T("repl.unknown_command", cmd))
	}
	return false
}

func (r *REPL) send(text string) {
	if r.orch.Busy() {
		fmt.Fprintln(r.out, r.locale.T("repl.busy"))
		return
	}

	att := r.staged
	r.staged = nil
	r.printed = ""

	err := r.orch.Send(context.Background(), text, att)
	switch {
	case err == nil:
		fmt.Fprintln(r.out)
	case errors.Is(err, orchestrator.ErrBusy):
		fmt.Fprintln(r.out, r.locale.T("repl.busy"))
	case errors.Is(err, orchestrator.ErrNothingToSend):
		// 空输入静默忽略 / blank input is dropped silently
	}
}

// onChunk 把累计快照转为增量输出
// onChunk turns cumulative snapshots into incremental output. When the
// reasoning filter shrinks the snapshot, the final line is rewritten and
// padded past the stale text so no leftover characters survive.
func (r *REPL) onChunk(sessionID, text string) {
	if strings.HasPrefix(text, r.printed) {
		fmt.Fprint(r.out, text[len(r.printed):])
		r.printed = text
		return
	}

	prevLast := lastLine(r.printed)
	newLast := lastLine(text)
	pad := utf8.RuneCountInString(prevLast) - utf8.RuneCountInString(newLast)
	if pad < 0 {
		pad = 0
	}
	fmt.Fprint(r.out, "\r"+newLast+strings.Repeat(" ", pad))
	if pad > 0 {
		fmt.Fprint(r.out, "\r"+newLast)
	}
	r.printed = text
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func (r *REPL) printSessions() {
	active := r.st.ActiveID()
	for i, s := range r.st.Sessions() {
		marker := " "
		if s.ID == active {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %d. %s (%s, %d messages)\n", marker, i+1, s.Title, shortID(s.ID), len(s.Messages))
	}
}

// switchSession 支持序号或 id 前缀
// switchSession accepts a 1-based index or an id prefix.
func (r *REPL) switchSession(arg string) {
	sessions := r.st.Sessions()
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(sessions) {
		r.st.SwitchActive(sessions[n-1].ID)
		fmt.Fprintln(r.out, r.locale.T("repl.switched", sessions[n-1].Title))
		return
	}
	for _, s := range sessions {
		if arg != "" && strings.HasPrefix(s.ID, arg) {
			r.st.SwitchActive(s.ID)
			fmt.Fprintln(r.out, r.locale.T("repl.switched", s.Title))
			return
		}
	}
	fmt.Fprintln(r.out, r.locale.T("repl.no_session"))
}

func (r *REPL) printCommands() {
	fmt.Fprintln(r.out, "commands:")
	for _, cmd := range replCommands {
		fmt.Fprintf(r.out, "  %s\n", cmd)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
