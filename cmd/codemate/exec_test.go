package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	tcontext "codemate/internal/context"
	"codemate/internal/events"
	"codemate/internal/repl"
)

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

func plain(b *bytes.Buffer) string { return ansiRE.ReplaceAllString(b.String(), "") }

type scriptedRunner struct {
	events []events.Event
}

func (r scriptedRunner) Run(_ context.Context, _ *tcontext.Conversation) (<-chan events.Event, error) {
	ch := make(chan events.Event, len(r.events))
	for _, evt := range r.events {
		evt.TurnID = "turn-1"
		ch <- evt
	}
	close(ch)
	return ch, nil
}

func TestReadPrompt(t *testing.T) {
	got, err := readPrompt([]string{"where", "is", "main?"}, nil)
	if err != nil || got != "where is main?" {
		t.Fatalf("readPrompt args = %q, %v", got, err)
	}
	got, err = readPrompt([]string{"-"}, strings.NewReader("  from stdin \n"))
	if err != nil || got != "from stdin" {
		t.Fatalf("readPrompt stdin = %q, %v", got, err)
	}
	if _, err := readPrompt(nil, strings.NewReader("   ")); err == nil {
		t.Fatalf("expected error for empty prompt")
	}
}

func TestExecuteTurnRendersAnswer(t *testing.T) {
	gw := repl.NewGateway(scriptedRunner{events: []events.Event{
		events.TextDelta("The server starts "),
		events.TextDelta("in main.go."),
		events.Final("The server starts in main.go.", events.ReasonNone),
	}})
	lastPath := filepath.Join(t.TempDir(), "last.txt")

	var out bytes.Buffer
	err := executeTurn(context.Background(), gw, "where?", execOptions{lastMessageFile: lastPath, width: 80}, &out)
	if err != nil {
		t.Fatalf("executeTurn: %v", err)
	}
	if !strings.Contains(plain(&out), "The server starts in main.go.") {
		t.Fatalf("output missing answer:\n%s", out.String())
	}
	data, err := os.ReadFile(lastPath)
	if err != nil {
		t.Fatalf("read last message: %v", err)
	}
	if string(data) != "The server starts in main.go." {
		t.Fatalf("last message = %q", string(data))
	}
	if n := len(gw.History()); n != 1 {
		t.Fatalf("gateway history should only hold the user message for a scripted runner, got %d", n)
	}
}

func TestExecuteTurnJSONL(t *testing.T) {
	gw := repl.NewGateway(scriptedRunner{events: []events.Event{
		events.TextDelta("hi"),
		events.Final("hi", events.ReasonNone),
	}})
	var out bytes.Buffer
	if err := executeTurn(context.Background(), gw, "hello", execOptions{jsonl: true}, &out); err != nil {
		t.Fatalf("executeTurn: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), out.String())
	}
	var last map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &last); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if last["type"] != "final" {
		t.Fatalf("last event type = %v", last["type"])
	}
}

func TestExecuteTurnTransportFailureIsError(t *testing.T) {
	gw := repl.NewGateway(scriptedRunner{events: []events.Event{
		events.Final("Upstream model request failed: boom", events.ReasonTransportFailure),
	}})
	err := executeTurn(context.Background(), gw, "hello", execOptions{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected transport failure error, got %v", err)
	}
}

func TestExecuteTurnInterrupted(t *testing.T) {
	gw := repl.NewGateway(scriptedRunner{events: []events.Event{events.TextDelta("partial")}})
	var out bytes.Buffer
	err := executeTurn(context.Background(), gw, "hello", execOptions{}, &out)
	if err == nil || !strings.Contains(err.Error(), "interrupted") {
		t.Fatalf("expected interrupted error, got %v", err)
	}
	if !strings.Contains(plain(&out), "partial") {
		t.Fatalf("partial text should be flushed:\n%s", out.String())
	}
}
