package agent

import (
	"encoding/json"
	"errors"
)

// ErrUnknownTool 表示调用了目录中不存在的工具。
var ErrUnknownTool = errors.New("unknown tool")

// ErrorClass 对失败的工具调用进行分类。
type ErrorClass string

const (
	ErrorClassNone              ErrorClass = ""
	ErrorClassUnknownTool       ErrorClass = "unknown_tool"
	ErrorClassInvalidArguments  ErrorClass = "invalid_arguments"
	ErrorClassCollaboratorError ErrorClass = "collaborator_error"
	ErrorClassMalformedCall     ErrorClass = "malformed_call"
	ErrorClassCancelled         ErrorClass = "cancelled"
)

// ToolResult 是一次工具调用的结果，每个 ToolCall 恰好对应一个。
type ToolResult struct {
	CallID    string     `json:"call_id"`
	Name      string     `json:"name"`
	Success   bool       `json:"success"`
	Payload   string     `json:"payload,omitempty"`
	Error     string     `json:"error,omitempty"`
	Class     ErrorClass `json:"class,omitempty"`
	Truncated bool       `json:"truncated,omitempty"`
	Notes     []string   `json:"notes,omitempty"`
}

// Content 返回写入 tool 消息的文本：成功时为 payload，失败时为带分类的错误对象。
func (r ToolResult) Content() string {
	if r.Success {
		return r.Payload
	}
	data, err := json.Marshal(map[string]string{
		"error": r.Error,
		"class": string(r.Class),
	})
	if err != nil {
		return r.Error
	}
	return string(data)
}

// Message 将结果转换为追加到历史中的 tool 消息。
func (r ToolResult) Message() Message {
	return Message{
		Role:       RoleTool,
		Content:    r.Content(),
		ToolCallID: r.CallID,
		Name:       r.Name,
	}
}

// FailedResult 构造失败结果。
func FailedResult(call ToolCall, class ErrorClass, msg string) ToolResult {
	return ToolResult{
		CallID: call.ID,
		Name:   call.Name,
		Error:  msg,
		Class:  class,
	}
}
