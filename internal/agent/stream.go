package agent

type StreamEventType string

const (
	StreamEventTextDelta      StreamEventType = "text_delta"
	StreamEventReasoningDelta StreamEventType = "reasoning_delta"
	StreamEventToolCallDelta  StreamEventType = "tool_call_delta"
	StreamEventToolCallDone   StreamEventType = "tool_call_done"
	StreamEventCompleted      StreamEventType = "completed"
)

// ToolCallDelta 是工具调用的一个增量分片。
// Index 为模型分配的调用序号；ID/Name 通常只在首个分片出现。
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// StreamEvent 是模型客户端转发的一个流式片段。
type StreamEvent struct {
	Type         StreamEventType
	Text         string
	ToolCall     ToolCallDelta
	FinishReason string
}

// Response 是非流式调用的完整结果，工具参数尚未校验。
type Response struct {
	Text         string
	Reasoning    string
	ToolCalls    []ToolCallDelta
	FinishReason string
}

// Events 将完整响应展开为与流式调用等价的片段序列。
func (r Response) Events() []StreamEvent {
	out := make([]StreamEvent, 0, len(r.ToolCalls)*2+3)
	if r.Reasoning != "" {
		out = append(out, StreamEvent{Type: StreamEventReasoningDelta, Text: r.Reasoning})
	}
	if r.Text != "" {
		out = append(out, StreamEvent{Type: StreamEventTextDelta, Text: r.Text})
	}
	for _, call := range r.ToolCalls {
		out = append(out, StreamEvent{Type: StreamEventToolCallDelta, ToolCall: call})
		out = append(out, StreamEvent{Type: StreamEventToolCallDone, ToolCall: ToolCallDelta{Index: call.Index, ID: call.ID}})
	}
	out = append(out, StreamEvent{Type: StreamEventCompleted, FinishReason: r.FinishReason})
	return out
}
