package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"codemate/internal/agent"
	"codemate/internal/events"
	"codemate/internal/github"
	"codemate/internal/tui/render"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeGateway struct {
	submitted []string
	ch        chan events.Event
	err       error
	resets    int
	history   []agent.Message
}

func (g *fakeGateway) SubmitUserInput(_ context.Context, text string) (<-chan events.Event, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.submitted = append(g.submitted, text)
	g.history = append(g.history, agent.UserMessage(text))
	g.ch = make(chan events.Event, 8)
	return g.ch, nil
}

func (g *fakeGateway) Reset() error {
	g.resets++
	g.history = nil
	return nil
}

func (g *fakeGateway) History() []agent.Message {
	return append([]agent.Message(nil), g.history...)
}

type fakeRepo struct {
	target github.Target
}

func (r *fakeRepo) CurrentRepo() github.Target { return r.target }

func (r *fakeRepo) SwitchRepo(owner, repo string) github.Target {
	r.target = github.Target{Owner: owner, Repo: repo}
	return r.target
}

func newTestModel(gw *fakeGateway) (*Model, *fakeRepo, *[]string) {
	repo := &fakeRepo{target: github.Target{Owner: "acme", Repo: "widgets"}}
	copied := &[]string{}
	m := New(Options{
		Gateway:    gw,
		Repository: repo,
		Tools:      []agent.ToolSpec{{Name: "get_file", Description: "Read one file."}},
		Model:      "test-model",
		CopyText: func(s string) error {
			*copied = append(*copied, s)
			return nil
		},
	})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, repo, copied
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func pressEnter(m *Model) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

// deliver 把网关通道中的事件依次交给模型，直到通道关闭。
func deliver(m *Model, gw *fakeGateway) {
	for {
		evt, ok := <-gw.ch
		if !ok {
			m.Update(turnClosedMsg{})
			return
		}
		m.Update(turnEventMsg{Event: evt})
	}
}

func entryTexts(m *Model, kind render.EntryKind) []string {
	var out []string
	for _, e := range m.transcript.Entries() {
		if e.Kind == kind {
			out = append(out, e.Text)
		}
	}
	return out
}

func TestSubmitStreamsTurnIntoTranscript(t *testing.T) {
	gw := &fakeGateway{}
	m, _, _ := newTestModel(gw)

	typeText(m, "where is main?")
	pressEnter(m)
	if len(gw.submitted) != 1 || gw.submitted[0] != "where is main?" {
		t.Fatalf("unexpected submissions: %v", gw.submitted)
	}
	if !m.pending {
		t.Fatalf("model should be pending after submit")
	}
	if m.textarea.Value() != "" {
		t.Fatalf("composer should be cleared, got %q", m.textarea.Value())
	}

	gw.ch <- events.ToolCallStarted("c1", "get_file", []byte(`{"path":"main.go"}`))
	gw.ch <- events.ToolCallFinished(events.ToolInfo{CallID: "c1", Name: "get_file", Success: true, Summary: "package main"})
	gw.ch <- events.TextDelta("It is in ")
	gw.ch <- events.TextDelta("main.go.")
	gw.ch <- events.Final("It is in main.go.", events.ReasonNone)
	close(gw.ch)
	deliver(m, gw)

	if m.pending {
		t.Fatalf("model should be idle after the turn closed")
	}
	if got := entryTexts(m, render.EntryUser); len(got) != 1 || got[0] != "where is main?" {
		t.Fatalf("unexpected user entries: %v", got)
	}
	tools := entryTexts(m, render.EntryTool)
	if len(tools) != 2 || !strings.Contains(tools[0], "get_file path=main.go") || !strings.HasPrefix(tools[1], "✓ get_file") {
		t.Fatalf("unexpected tool entries: %v", tools)
	}
	if got := entryTexts(m, render.EntryAssistant); len(got) != 1 || got[0] != "It is in main.go." {
		t.Fatalf("unexpected assistant entries: %v", got)
	}
	if len(entryTexts(m, render.EntryNotice)) != 0 {
		t.Fatalf("normal final should not add a notice")
	}
}

func TestDegradedAndFailedFinalsAddNotices(t *testing.T) {
	gw := &fakeGateway{}
	m, _, _ := newTestModel(gw)

	typeText(m, "q1")
	pressEnter(m)
	gw.ch <- events.Final("summary", events.ReasonRoundCap)
	close(gw.ch)
	deliver(m, gw)

	typeText(m, "q2")
	pressEnter(m)
	gw.ch <- events.Final("Upstream model request failed: boom", events.ReasonTransportFailure)
	close(gw.ch)
	deliver(m, gw)

	notices := entryTexts(m, render.EntryNotice)
	if len(notices) != 2 || !strings.Contains(notices[0], "tool round limit") || notices[1] != "Upstream model request failed: boom" {
		t.Fatalf("unexpected notices: %v", notices)
	}
	if got := entryTexts(m, render.EntryAssistant); len(got) != 1 || got[0] != "summary" {
		t.Fatalf("failure text must not render as an answer: %v", got)
	}
	if m.status.Phase() != phaseFailed {
		t.Fatalf("expected failed status, got %s", m.status.Phase())
	}
}

func TestClosedWithoutFinalIsInterrupted(t *testing.T) {
	gw := &fakeGateway{}
	m, _, _ := newTestModel(gw)

	typeText(m, "slow question")
	pressEnter(m)
	gw.ch <- events.TextDelta("partial")
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	close(gw.ch)
	deliver(m, gw)

	if m.pending {
		t.Fatalf("model should be idle")
	}
	notices := entryTexts(m, render.EntryNotice)
	if len(notices) != 1 || notices[0] != "interrupted" {
		t.Fatalf("expected interrupted notice, got %v", notices)
	}
	if got := entryTexts(m, render.EntryAssistant); len(got) != 1 || got[0] != "partial" {
		t.Fatalf("partial text should stay visible: %v", got)
	}
}

func TestSubmitErrorShowsNotice(t *testing.T) {
	gw := &fakeGateway{err: errors.New("conversation is already in use by another turn")}
	m, _, _ := newTestModel(gw)

	typeText(m, "hello")
	pressEnter(m)
	if m.pending {
		t.Fatalf("failed submit must not leave the model pending")
	}
	notices := entryTexts(m, render.EntryNotice)
	if len(notices) != 1 || !strings.Contains(notices[0], "submit failed") {
		t.Fatalf("unexpected notices: %v", notices)
	}
}

func TestRepoCommandShowsAndSwitches(t *testing.T) {
	gw := &fakeGateway{}
	m, repo, _ := newTestModel(gw)

	m.runCommand("repo", "")
	m.runCommand("repo", "octo/hello")
	m.runCommand("repo", "bad")

	notes := entryTexts(m, render.EntryNote)
	if len(notes) != 2 || notes[0] != "current repository: acme/widgets" || notes[1] != "switched to octo/hello" {
		t.Fatalf("unexpected notes: %v", notes)
	}
	if repo.target.String() != "octo/hello" {
		t.Fatalf("repository not switched: %s", repo.target)
	}
	if notices := entryTexts(m, render.EntryNotice); len(notices) != 1 || notices[0] != "usage: /repo owner/repo" {
		t.Fatalf("unexpected notices: %v", notices)
	}
	if len(gw.submitted) != 0 {
		t.Fatalf("slash commands must not reach the model")
	}
}

func TestSlashSubmitFromComposer(t *testing.T) {
	gw := &fakeGateway{}
	m, _, _ := newTestModel(gw)

	typeText(m, "/tools")
	pressEnter(m)
	if len(gw.submitted) != 0 {
		t.Fatalf("slash command was sent to the model: %v", gw.submitted)
	}
	tools := entryTexts(m, render.EntryTool)
	if len(tools) != 1 || !strings.Contains(tools[0], "get_file: Read one file.") {
		t.Fatalf("unexpected tools output: %v", tools)
	}

	typeText(m, "/bogus")
	pressEnter(m)
	if notices := entryTexts(m, render.EntryNotice); len(notices) != 1 || !strings.Contains(notices[0], "unknown command") {
		t.Fatalf("unexpected notices: %v", notices)
	}
}

func TestCopyAndClearCommands(t *testing.T) {
	gw := &fakeGateway{}
	m, _, copied := newTestModel(gw)

	m.runCommand("copy", "")
	if notices := entryTexts(m, render.EntryNotice); len(notices) != 1 || notices[0] != "nothing to copy yet" {
		t.Fatalf("unexpected notices: %v", notices)
	}

	typeText(m, "q")
	pressEnter(m)
	gw.ch <- events.Final("the answer", events.ReasonNone)
	close(gw.ch)
	deliver(m, gw)

	m.runCommand("copy", "")
	if len(*copied) != 1 || (*copied)[0] != "the answer" {
		t.Fatalf("unexpected clipboard writes: %v", *copied)
	}

	m.runCommand("clear", "")
	if gw.resets != 1 {
		t.Fatalf("expected gateway reset, got %d", gw.resets)
	}
	if len(m.transcript.Entries()) != 0 {
		t.Fatalf("clear should empty the transcript")
	}
}

func TestNewRejectedWhileTurnRunning(t *testing.T) {
	gw := &fakeGateway{}
	m, _, _ := newTestModel(gw)

	typeText(m, "q")
	pressEnter(m)
	m.runCommand("new", "")
	if gw.resets != 0 {
		t.Fatalf("reset must wait for the running turn")
	}
	if notices := entryTexts(m, render.EntryNotice); len(notices) != 1 || !strings.Contains(notices[0], "still running") {
		t.Fatalf("unexpected notices: %v", notices)
	}
}

func TestHistoryNavigation(t *testing.T) {
	gw := &fakeGateway{history: []agent.Message{agent.UserMessage("earlier question")}}
	m, _, _ := newTestModel(gw)

	if got := entryTexts(m, render.EntryUser); len(got) != 1 {
		t.Fatalf("prior history should be replayed, got %v", got)
	}
	typeText(m, "draft")
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := m.textarea.Value(); got != "earlier question" {
		t.Fatalf("expected previous prompt, got %q", got)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := m.textarea.Value(); got != "draft" {
		t.Fatalf("expected draft restored, got %q", got)
	}
}

func TestViewShowsHeaderAndWelcome(t *testing.T) {
	m, _, _ := newTestModel(&fakeGateway{})
	out := stripANSI(m.View())
	for _, want := range []string{"codemate", "model test-model", "repo acme/widgets", welcomeText} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
}
