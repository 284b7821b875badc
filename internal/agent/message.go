package agent

import (
	"encoding/json"
	"slices"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall 是模型请求执行的一次工具调用，Arguments 为已解析校验的 JSON 对象。
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message 是对话历史中的一条记录。
// assistant 消息可携带 ToolCalls；tool 消息通过 ToolCallID 关联到对应调用。
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// Clone 返回不与原消息共享底层切片的副本。
func (m Message) Clone() Message {
	out := m
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, call := range m.ToolCalls {
			call.Arguments = slices.Clone(call.Arguments)
			out.ToolCalls[i] = call
		}
	}
	return out
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

func AssistantMessage(text string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: calls}
}
