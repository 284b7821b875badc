package slash

import (
	"strings"
	"testing"
)

func TestSyncInputOpensOnSlashToken(t *testing.T) {
	state := NewState(Options{})
	state.SyncInput(Input{Value: "/re", CursorLine: 0, CursorColumn: 3})
	if !state.Open() {
		t.Fatalf("expected slash popup to open")
	}
	if len(state.matches) == 0 || state.matches[0].item.Command != CommandRepo {
		t.Fatalf("expected /repo to rank first, got %+v", state.matches)
	}
}

func TestSyncInputOpensOnBareSlash(t *testing.T) {
	state := NewState(Options{})
	state.SyncInput(Input{Value: "/", CursorLine: 0, CursorColumn: 1})
	if !state.Open() {
		t.Fatalf("expected slash popup to open on bare slash")
	}
	if len(state.matches) != len(Builtins()) {
		t.Fatalf("expected all builtins, got %d", len(state.matches))
	}
}

func TestSyncInputIgnoresPaths(t *testing.T) {
	state := NewState(Options{})
	state.SyncInput(Input{Value: "/internal/tools", CursorLine: 0, CursorColumn: 15})
	if state.Open() {
		t.Fatalf("paths should not open the popup")
	}
}

func TestSyncInputClosesWhenCursorInArgs(t *testing.T) {
	state := NewState(Options{})
	state.SyncInput(Input{Value: "/repo acme/widgets", CursorLine: 0, CursorColumn: 10})
	if state.Open() {
		t.Fatalf("popup should close once the cursor moves into arguments")
	}
}

func TestHandleKeyTabCompletes(t *testing.T) {
	state := NewState(Options{})
	state.SyncInput(Input{Value: "/too", CursorLine: 0, CursorColumn: 4})
	action, handled := state.HandleKey("tab")
	if !handled {
		t.Fatalf("expected tab handled")
	}
	if action.Kind != ActionInsert {
		t.Fatalf("expected insert action, got %v", action.Kind)
	}
	if strings.TrimSpace(action.NewValue) != "/tools" {
		t.Fatalf("unexpected inserted value: %q", action.NewValue)
	}
	if action.CursorColumn != len("/tools ") {
		t.Fatalf("unexpected cursor %d", action.CursorColumn)
	}
}

func TestHandleKeyEnterSubmits(t *testing.T) {
	state := NewState(Options{})
	state.SyncInput(Input{Value: "/copy", CursorLine: 0, CursorColumn: 5})
	action, handled := state.HandleKey("enter")
	if !handled {
		t.Fatalf("expected enter handled")
	}
	if action.Kind != ActionSubmit || action.Command != CommandCopy {
		t.Fatalf("unexpected action %+v", action)
	}
	if state.Open() {
		t.Fatalf("popup should close after submit")
	}
}

func TestHandleKeyNavigationWraps(t *testing.T) {
	state := NewState(Options{})
	state.SyncInput(Input{Value: "/", CursorLine: 0, CursorColumn: 1})
	state.HandleKey("up")
	if state.selected != len(state.matches)-1 {
		t.Fatalf("expected wrap to last item, got %d", state.selected)
	}
	state.HandleKey("down")
	if state.selected != 0 {
		t.Fatalf("expected wrap to first item, got %d", state.selected)
	}
}

func TestResolveSubmit(t *testing.T) {
	state := NewState(Options{})
	action := state.ResolveSubmit("/repo  acme/widgets ")
	if action.Kind != ActionSubmit || action.Command != CommandRepo || action.Args != "acme/widgets" {
		t.Fatalf("unexpected action %+v", action)
	}
	if got := state.ResolveSubmit("/nope"); got.Kind != ActionError {
		t.Fatalf("expected error for unknown command, got %+v", got)
	}
	if got := state.ResolveSubmit("how does /repo work"); got.Kind != ActionNone {
		t.Fatalf("plain text should not resolve, got %+v", got)
	}
}

func TestViewRendersSelection(t *testing.T) {
	state := NewState(Options{MaxLines: 3})
	state.SyncInput(Input{Value: "/", CursorLine: 0, CursorColumn: 1})
	view := state.View(60)
	if strings.Count(view, "\n") != 2 {
		t.Fatalf("expected 3 visible lines, got %q", view)
	}
	if !strings.Contains(view, "/help") {
		t.Fatalf("expected /help in view: %q", view)
	}
}
