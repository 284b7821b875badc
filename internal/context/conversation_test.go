package context

import (
	"encoding/json"
	"errors"
	"testing"

	"codemate/internal/agent"
)

func TestConversationAppendIsolatesCallers(t *testing.T) {
	args := json.RawMessage(`{"path":"."}`)
	calls := []agent.ToolCall{{ID: "c1", Name: "list_files", Arguments: args}}
	conv := NewConversation(agent.UserMessage("hi"))
	conv.Append(agent.AssistantMessage("", calls))

	args[2] = 'X'
	calls[0].Name = "mutated"

	msgs := conv.Messages()
	if len(msgs) != 2 || conv.Len() != 2 {
		t.Fatalf("len = %d", len(msgs))
	}
	got := msgs[1].ToolCalls[0]
	if got.Name != "list_files" || string(got.Arguments) != `{"path":"."}` {
		t.Fatalf("stored message was mutated through caller slices: %+v", got)
	}

	msgs[0].Content = "changed"
	if last, _ := conv.Last(); last.Role != agent.RoleAssistant {
		t.Fatalf("Last() = %+v", last)
	}
	if first := conv.Messages()[0]; first.Content != "hi" {
		t.Fatalf("snapshot mutation leaked: %q", first.Content)
	}
}

func TestConversationAcquire(t *testing.T) {
	conv := NewConversation()
	if _, ok := conv.Last(); ok {
		t.Fatalf("empty conversation should have no last message")
	}
	if err := conv.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := conv.Acquire(); !errors.Is(err, ErrConversationBusy) {
		t.Fatalf("second Acquire = %v, want ErrConversationBusy", err)
	}
	conv.Release()
	if err := conv.Acquire(); err != nil {
		t.Fatalf("Acquire after Release: %v", err)
	}
}
