package repl

import (
	"context"
	"errors"
	"testing"

	"codemate/internal/agent"
	tcontext "codemate/internal/context"
	"codemate/internal/events"
)

type fakeRunner struct {
	release chan struct{}
	err     error
	calls   int
}

func (r *fakeRunner) Run(ctx context.Context, conv *tcontext.Conversation) (<-chan events.Event, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	last, _ := conv.Last()
	ch := make(chan events.Event, 2)
	go func() {
		defer close(ch)
		if r.release != nil {
			<-r.release
		}
		conv.Append(agent.AssistantMessage("echo: "+last.Content, nil))
		ch <- events.Final("echo: "+last.Content, events.ReasonNone)
	}()
	return ch, nil
}

func drain(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for evt := range ch {
		out = append(out, evt)
	}
	return out
}

func TestGatewaySubmitAppendsUserMessage(t *testing.T) {
	runner := &fakeRunner{}
	gw := NewGateway(runner)

	ch, err := gw.SubmitUserInput(context.Background(), "  hello  ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	evts := drain(ch)
	if len(evts) != 1 || !evts[0].IsFinal() || evts[0].Text != "echo: hello" {
		t.Fatalf("unexpected events: %+v", evts)
	}
	history := gw.History()
	if len(history) != 2 || history[0].Role != agent.RoleUser || history[0].Content != "hello" {
		t.Fatalf("unexpected history: %+v", history)
	}
	if gw.Busy() {
		t.Fatalf("gateway should be idle after the turn closed")
	}
}

func TestGatewayRejectsConcurrentTurn(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	gw := NewGateway(runner)

	ch, err := gw.SubmitUserInput(context.Background(), "first")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := gw.SubmitUserInput(context.Background(), "second"); !errors.Is(err, tcontext.ErrConversationBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}
	if err := gw.Reset(); !errors.Is(err, tcontext.ErrConversationBusy) {
		t.Fatalf("expected reset to fail while busy, got %v", err)
	}
	close(runner.release)
	drain(ch)

	if got := len(gw.History()); got != 2 {
		t.Fatalf("rejected input must not reach history, got %d messages", got)
	}
	if err := gw.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := len(gw.History()); got != 0 {
		t.Fatalf("expected empty history after reset, got %d", got)
	}
}

func TestGatewayRejectsEmptyInput(t *testing.T) {
	runner := &fakeRunner{}
	gw := NewGateway(runner)
	if _, err := gw.SubmitUserInput(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if runner.calls != 0 {
		t.Fatalf("runner should not be called")
	}
}

func TestGatewayRequiresRunner(t *testing.T) {
	gw := NewGateway(nil)
	if _, err := gw.SubmitUserInput(context.Background(), "hi"); err == nil {
		t.Fatalf("expected error when runner is nil")
	}
}

func TestGatewayRunFailureLeavesHistoryUnchanged(t *testing.T) {
	runner := &fakeRunner{}
	gw := NewGateway(runner, agent.UserMessage("earlier"), agent.AssistantMessage("reply", nil))

	runner.err = errors.New("no model configured")
	if _, err := gw.SubmitUserInput(context.Background(), "lost question"); err == nil {
		t.Fatalf("expected run error")
	}
	if history := gw.History(); len(history) != 2 || history[1].Content != "reply" {
		t.Fatalf("history changed after failed run: %+v", history)
	}
	if gw.Busy() {
		t.Fatalf("gateway should stay idle after a failed run")
	}

	runner.err = nil
	ch, err := gw.SubmitUserInput(context.Background(), "retry")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	drain(ch)
	history := gw.History()
	if len(history) != 4 || history[2].Content != "retry" || history[3].Content != "echo: retry" {
		t.Fatalf("unexpected history: %+v", history)
	}
}
