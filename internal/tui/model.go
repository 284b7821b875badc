package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"codemate/internal/agent"
	"codemate/internal/events"
	"codemate/internal/github"
	"codemate/internal/tui/render"
	"codemate/internal/tui/slash"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Gateway 抽象 REPL 层的提交能力，由 *repl.Gateway 实现。
type Gateway interface {
	SubmitUserInput(ctx context.Context, text string) (<-chan events.Event, error)
	Reset() error
	History() []agent.Message
}

// Repository 提供当前仓库的查看与切换，由 *github.Client 实现。
type Repository interface {
	CurrentRepo() github.Target
	SwitchRepo(owner, repo string) github.Target
}

type Options struct {
	Gateway    Gateway
	Repository Repository
	Tools      []agent.ToolSpec
	Model      string
	// InitialPrompt 非空时启动后立即提交。
	InitialPrompt string
	AltScreen     bool
	// CopyText 为空时使用系统剪贴板。
	CopyText func(string) error
}

type startPromptMsg struct {
	Text string
}

type turnEventMsg struct {
	Event events.Event
}

// turnClosedMsg 表示事件通道已关闭，没有 final 时说明回合被中断。
type turnClosedMsg struct{}

const maxComposerLines = 6

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D7A85"))
	paneStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#5E6472")).Padding(0, 1)
	popupStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#FFB454")).Padding(0, 1)
	welcomeText = "Ask anything about the repository. Type / for commands."
)

type Model struct {
	textarea   textarea.Model
	viewport   viewport.Model
	spin       spinner.Model
	slash      *slash.State
	transcript *render.Transcript
	history    promptHistory
	status     *turnStatus

	gateway  Gateway
	repo     Repository
	tools    []agent.ToolSpec
	copyText func(string) error

	modelName string
	initSend  string

	turnCh   <-chan events.Event
	cancel   context.CancelFunc
	pending  bool
	gotFinal bool

	width  int
	height int
}

func New(opts Options) *Model {
	ti := textarea.New()
	ti.Placeholder = "Ask about the repository…"
	ti.Prompt = "› "
	ti.CharLimit = 0
	ti.ShowLineNumbers = false
	ti.SetWidth(80)
	ti.SetHeight(1)
	ti.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ti.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	copyText := opts.CopyText
	if copyText == nil {
		copyText = clipboard.WriteAll
	}

	m := &Model{
		textarea:   ti,
		viewport:   viewport.New(80, 20),
		spin:       spin,
		slash:      slash.NewState(slash.Options{MaxLines: 8}),
		transcript: render.NewTranscript(),
		status:     newTurnStatus(nil),
		gateway:    opts.Gateway,
		repo:       opts.Repository,
		tools:      opts.Tools,
		copyText:   copyText,
		modelName:  opts.Model,
		initSend:   strings.TrimSpace(opts.InitialPrompt),
		width:      80,
		height:     24,
	}
	if m.gateway != nil {
		prior := m.gateway.History()
		m.history.Seed(prior)
		m.replay(prior)
	}
	m.layout()
	return m
}

// replay 把已有历史显示到 transcript，只显示用户与助手文本。
func (m *Model) replay(msgs []agent.Message) {
	for _, msg := range msgs {
		switch msg.Role {
		case agent.RoleUser:
			m.transcript.AppendUser(msg.Content)
		case agent.RoleAssistant:
			if msg.Content != "" {
				m.transcript.FinalizeAssistant(msg.Content)
			}
		}
	}
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick}
	if m.initSend != "" {
		prompt := m.initSend
		cmds = append(cmds, func() tea.Msg { return startPromptMsg{Text: prompt} })
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m.finish(cmds...)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
		return m.finish(cmds...)
	case startPromptMsg:
		cmds = append(cmds, m.startTurn(msg.Text))
		return m.finish(cmds...)
	case turnEventMsg:
		m.handleEvent(msg.Event)
		cmds = append(cmds, m.listenTurn())
		return m.finish(cmds...)
	case turnClosedMsg:
		m.closeTurn()
		return m.finish(cmds...)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m.finish(cmds...)
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			cmds = append(cmds, cmd)
			return m.finish(cmds...)
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.syncSlash()
	return m.finish(cmds...)
}

func (m *Model) finish(cmds ...tea.Cmd) (tea.Model, tea.Cmd) {
	m.layout()
	return m, tea.Batch(cmds...)
}

// handleKey 处理输入框之外的按键，返回 false 时按键交给输入框。
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	key := msg.String()
	if action, consumed := m.slash.HandleKey(key); consumed {
		return m.applySlashAction(action), true
	}

	switch key {
	case "ctrl+c":
		if m.pending {
			m.interrupt()
			return nil, true
		}
		return tea.Quit, true
	case "esc":
		if m.pending {
			m.interrupt()
		}
		return nil, true
	case "pgup":
		m.viewport.ViewUp()
		return nil, true
	case "pgdown":
		m.viewport.ViewDown()
		return nil, true
	case "up":
		if m.textarea.Line() == 0 {
			if text, ok := m.history.Prev(m.textarea.Value()); ok {
				m.setInput(text)
			}
			return nil, true
		}
	case "down":
		if m.history.Browsing() && m.textarea.Line() >= m.textarea.LineCount()-1 {
			if text, ok := m.history.Next(); ok {
				m.setInput(text)
			}
			return nil, true
		}
	case "enter":
		return m.submit(), true
	}
	return nil, false
}

func (m *Model) setInput(text string) {
	m.textarea.SetValue(text)
	m.textarea.CursorEnd()
	m.syncSlash()
}

func (m *Model) syncSlash() {
	info := m.textarea.LineInfo()
	m.slash.SyncInput(slash.Input{
		Value:        m.textarea.Value(),
		CursorLine:   m.textarea.Line(),
		CursorColumn: info.StartColumn + info.ColumnOffset,
	})
}

// submit 处理 Enter：斜杠命令在本地执行，其余内容作为用户消息提交。
func (m *Model) submit() tea.Cmd {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return nil
	}
	if strings.HasPrefix(input, "/") {
		action := m.slash.ResolveSubmit(input)
		if action.Kind != slash.ActionNone {
			m.clearInput()
			m.history.Add(input)
			return m.applySlashAction(action)
		}
	}
	if m.pending {
		return nil
	}
	m.clearInput()
	return m.startTurn(input)
}

func (m *Model) clearInput() {
	m.textarea.Reset()
	m.history.ResetBrowsing()
	m.syncSlash()
}

func (m *Model) applySlashAction(action slash.Action) tea.Cmd {
	switch action.Kind {
	case slash.ActionInsert:
		m.textarea.SetValue(action.NewValue)
		m.textarea.CursorEnd()
		m.syncSlash()
	case slash.ActionSubmit:
		m.clearInput()
		return m.runCommand(action.Command, action.Args)
	case slash.ActionError:
		m.transcript.AppendNotice(action.Message)
	}
	return nil
}

func (m *Model) startTurn(text string) tea.Cmd {
	if m.gateway == nil {
		m.transcript.AppendNotice("no conversation gateway configured")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := m.gateway.SubmitUserInput(ctx, text)
	if err != nil {
		cancel()
		m.transcript.AppendNotice(fmt.Sprintf("submit failed: %v", err))
		return nil
	}
	m.transcript.AppendUser(text)
	m.history.Add(text)
	m.turnCh = ch
	m.cancel = cancel
	m.pending = true
	m.gotFinal = false
	m.status.Begin()
	return m.listenTurn()
}

func (m *Model) listenTurn() tea.Cmd {
	ch := m.turnCh
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return turnClosedMsg{}
		}
		return turnEventMsg{Event: evt}
	}
}

func (m *Model) handleEvent(evt events.Event) {
	m.status.Observe(evt)
	switch evt.Type {
	case events.EventTextDelta:
		m.transcript.AppendAssistantChunk(evt.Text)
	case events.EventReasoningNote:
		m.transcript.AppendNote(evt.Text)
	case events.EventToolCallStarted:
		if evt.Tool == nil {
			return
		}
		m.transcript.AppendToolBlock(render.FormatToolStarted(*evt.Tool))
	case events.EventToolCallFinished:
		if evt.Tool == nil {
			return
		}
		m.transcript.AppendToolBlock(render.FormatToolFinished(*evt.Tool))
	case events.EventFinal:
		m.gotFinal = true
		if evt.Final != nil && evt.Final.Reason == events.ReasonTransportFailure {
			m.transcript.FinalizeAssistant("")
			m.transcript.AppendNotice(evt.Text)
			return
		}
		m.transcript.FinalizeAssistant(evt.Text)
		if notice := render.FormatFinalNotice(evt.Final); notice != "" {
			m.transcript.AppendNotice(notice)
		}
	}
}

func (m *Model) closeTurn() {
	if !m.gotFinal {
		m.transcript.FinalizeAssistant("")
		m.transcript.AppendNotice("interrupted")
		m.status.Stop()
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.cancel = nil
	m.turnCh = nil
	m.pending = false
}

func (m *Model) interrupt() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Model) runCommand(cmd slash.Command, args string) tea.Cmd {
	switch cmd {
	case slash.CommandQuit, slash.CommandExit:
		m.interrupt()
		return tea.Quit
	case slash.CommandHelp:
		m.transcript.AppendToolBlock(helpText())
	case slash.CommandTools:
		m.transcript.AppendToolBlock(toolsText(m.tools))
	case slash.CommandRepo:
		m.switchRepo(args)
	case slash.CommandCopy:
		m.copyLastAnswer()
	case slash.CommandNew, slash.CommandClear:
		if err := m.resetConversation(); err != nil {
			m.transcript.AppendNotice(err.Error())
			return nil
		}
		if cmd == slash.CommandClear {
			m.transcript.Reset()
		} else {
			m.transcript.AppendNote("started a new conversation")
		}
	}
	return nil
}

func (m *Model) resetConversation() error {
	if m.pending {
		return errors.New("a turn is still running; press esc to interrupt it first")
	}
	if m.gateway == nil {
		return nil
	}
	return m.gateway.Reset()
}

func (m *Model) switchRepo(args string) {
	if m.repo == nil {
		m.transcript.AppendNotice("no repository configured")
		return
	}
	args = strings.TrimSpace(args)
	if args == "" {
		m.transcript.AppendNote("current repository: " + m.repo.CurrentRepo().String())
		return
	}
	if m.pending {
		m.transcript.AppendNotice("cannot switch repositories while a turn is running")
		return
	}
	owner, name, ok := strings.Cut(args, "/")
	owner, name = strings.TrimSpace(owner), strings.TrimSpace(name)
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		m.transcript.AppendNotice("usage: /repo owner/repo")
		return
	}
	target := m.repo.SwitchRepo(owner, name)
	m.transcript.AppendNote("switched to " + target.String())
}

func (m *Model) copyLastAnswer() {
	text := m.transcript.LastAssistant()
	if strings.TrimSpace(text) == "" {
		m.transcript.AppendNotice("nothing to copy yet")
		return
	}
	if err := m.copyText(text); err != nil {
		m.transcript.AppendNotice(fmt.Sprintf("copy failed: %v", err))
		return
	}
	m.transcript.AppendNote("copied the last answer to the clipboard")
}

// layout 根据窗口大小分配各区域高度并刷新 transcript。
func (m *Model) layout() {
	width := maxInt(20, m.width)
	m.textarea.SetWidth(width - 4)
	lines := strings.Count(m.textarea.Value(), "\n") + 1
	if lines > maxComposerLines {
		lines = maxComposerLines
	}
	if m.textarea.Height() != lines {
		m.textarea.SetHeight(lines)
	}

	used := lipgloss.Height(m.headerView()) + m.textarea.Height() + 2 + 1
	if status := m.status.Render(width, m.spin.View()); status != "" {
		used++
	}
	if popup := m.popupView(); popup != "" {
		used += lipgloss.Height(popup)
	}
	follow := m.viewport.AtBottom()
	m.viewport.Width = width
	m.viewport.Height = maxInt(3, m.height-used)
	m.viewport.SetContent(strings.Join(m.transcriptLines(width), "\n"))
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) transcriptLines(width int) []string {
	lines := render.LinesToStrings(m.transcript.RenderLines(width))
	if len(lines) == 0 {
		return []string{mutedStyle.Render(welcomeText)}
	}
	return lines
}

func (m *Model) headerView() string {
	parts := []string{titleStyle.Render("codemate")}
	if m.modelName != "" {
		parts = append(parts, mutedStyle.Render("model "+m.modelName))
	}
	if m.repo != nil {
		parts = append(parts, mutedStyle.Render("repo "+m.repo.CurrentRepo().String()))
	}
	return strings.Join(parts, mutedStyle.Render(" • "))
}

func (m *Model) popupView() string {
	body := m.slash.View(maxInt(20, m.width) - 4)
	if body == "" {
		return ""
	}
	return popupStyle.Render(body)
}

func (m *Model) View() string {
	width := maxInt(20, m.width)
	sections := []string{m.headerView(), m.viewport.View()}
	if popup := m.popupView(); popup != "" {
		sections = append(sections, popup)
	}
	if status := m.status.Render(width, m.spin.View()); status != "" {
		sections = append(sections, status)
	}
	sections = append(sections,
		paneStyle.Width(width-2).Render(m.textarea.View()),
		mutedStyle.Render(hintsText(m.pending)),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// History 返回网关中的对话历史。
func (m *Model) History() []agent.Message {
	if m.gateway == nil {
		return nil
	}
	return m.gateway.History()
}

func hintsText(pending bool) string {
	if pending {
		return "esc interrupt • pgup/pgdn scroll • ctrl+c interrupt"
	}
	return "enter send • alt+enter newline • / commands • ↑/↓ history • ctrl+c quit"
}

func helpText() string {
	var sb strings.Builder
	sb.WriteString("Commands")
	for _, item := range slash.Builtins() {
		name := item.DisplayName()
		if item.Usage != "" {
			name += " " + item.Usage
		}
		fmt.Fprintf(&sb, "\n  %-22s %s", name, item.Description)
	}
	sb.WriteString("\nKeys\n  enter send • alt+enter newline • esc interrupt • pgup/pgdn scroll • ctrl+c quit")
	return sb.String()
}

func toolsText(specs []agent.ToolSpec) string {
	if len(specs) == 0 {
		return "No tools available."
	}
	var sb strings.Builder
	sb.WriteString("Tools")
	for _, spec := range specs {
		fmt.Fprintf(&sb, "\n  %s: %s", spec.Name, spec.Description)
	}
	return sb.String()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
