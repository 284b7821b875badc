package anthropic

import (
	"encoding/json"
	"strings"
	"testing"

	"codemate/internal/agent"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

func mustUnmarshal[T any](t *testing.T, raw string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return v
}

func TestToolUseStreamState_ForwardsFragments(t *testing.T) {
	state := newToolUseStreamState()

	var got []agent.StreamEvent
	onEvent := func(evt agent.StreamEvent) { got = append(got, evt) }

	events := []any{
		mustUnmarshal[anthropic.ContentBlockStartEvent](t, `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
		mustUnmarshal[anthropic.ContentBlockDeltaEvent](t, `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Let me look."}}`),
		mustUnmarshal[anthropic.ContentBlockStopEvent](t, `{"type":"content_block_stop","index":0}`),
		mustUnmarshal[anthropic.ContentBlockStartEvent](t, `{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_file_contents","input":{}}}`),
		mustUnmarshal[anthropic.ContentBlockDeltaEvent](t, `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"path\":\"README"}}`),
		mustUnmarshal[anthropic.ContentBlockDeltaEvent](t, `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":".md\"}"}}`),
		mustUnmarshal[anthropic.ContentBlockStopEvent](t, `{"type":"content_block_stop","index":1}`),
		mustUnmarshal[anthropic.MessageDeltaEvent](t, `{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":5}}`),
	}
	for _, ev := range events {
		if state.Handle(ev, onEvent) {
			t.Fatalf("stream ended early on %T", ev)
		}
	}
	if !state.Handle(mustUnmarshal[anthropic.MessageStopEvent](t, `{"type":"message_stop"}`), onEvent) {
		t.Fatalf("message_stop should end the stream")
	}

	var text, args strings.Builder
	var doneIdx []int
	var start agent.ToolCallDelta
	for _, ev := range got {
		switch ev.Type {
		case agent.StreamEventTextDelta:
			text.WriteString(ev.Text)
		case agent.StreamEventToolCallDelta:
			if ev.ToolCall.ID != "" {
				start = ev.ToolCall
			}
			args.WriteString(ev.ToolCall.Arguments)
		case agent.StreamEventToolCallDone:
			doneIdx = append(doneIdx, ev.ToolCall.Index)
		}
	}
	if text.String() != "Let me look." {
		t.Fatalf("text = %q", text.String())
	}
	if start.ID != "toolu_1" || start.Name != "get_file_contents" || start.Index != 1 {
		t.Fatalf("tool start = %#v", start)
	}
	if args.String() != `{"path":"README.md"}` {
		t.Fatalf("args = %q", args.String())
	}
	if len(doneIdx) != 1 || doneIdx[0] != 1 {
		t.Fatalf("done = %v, want only the tool block", doneIdx)
	}
	last := got[len(got)-1]
	if last.Type != agent.StreamEventCompleted || last.FinishReason != "tool_use" {
		t.Fatalf("last = %#v", last)
	}
}
