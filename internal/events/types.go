package events

import (
	"encoding/json"
	"time"
)

// EventType 描述一次回合中发出的事件类型。
type EventType string

const (
	EventTextDelta        EventType = "text_delta"
	EventToolCallStarted  EventType = "tool_call_started"
	EventToolCallFinished EventType = "tool_call_finished"
	EventReasoningNote    EventType = "reasoning_note"
	EventFinal            EventType = "final"
)

// FinalReason 说明 Final 为何是降级结果，空串表示正常结束。
type FinalReason string

const (
	ReasonNone             FinalReason = ""
	ReasonRoundCap         FinalReason = "round_cap"
	ReasonEmptyResponse    FinalReason = "empty_response"
	ReasonFallback         FinalReason = "fallback"
	ReasonTransportFailure FinalReason = "transport_failure"
)

// ToolInfo 是 tool_call_started / tool_call_finished 的载荷。
type ToolInfo struct {
	CallID    string          `json:"call_id"`
	Name      string          `json:"name"`
	Args      json.RawMessage `json:"args,omitempty"`
	Summary   string          `json:"summary,omitempty"`
	Success   bool            `json:"success"`
	Class     string          `json:"class,omitempty"`
	Truncated bool            `json:"truncated,omitempty"`
}

// FinalInfo 是 final 事件的载荷。
type FinalInfo struct {
	Degraded bool        `json:"degraded"`
	Reason   FinalReason `json:"reason,omitempty"`
}

// Event 是引擎发给调用方的唯一消息格式，载荷字段由 Type 决定：
// text_delta / reasoning_note 使用 Text，工具事件使用 Tool，final 使用 Text 与 Final。
type Event struct {
	Type      EventType  `json:"type"`
	TurnID    string     `json:"turn_id"`
	Round     int        `json:"round"`
	Seq       int64      `json:"seq"`
	Timestamp time.Time  `json:"timestamp"`
	Text      string     `json:"text,omitempty"`
	Tool      *ToolInfo  `json:"tool,omitempty"`
	Final     *FinalInfo `json:"final,omitempty"`
}

func TextDelta(text string) Event {
	return Event{Type: EventTextDelta, Text: text}
}

func ReasoningNote(text string) Event {
	return Event{Type: EventReasoningNote, Text: text}
}

func ToolCallStarted(callID, name string, args json.RawMessage) Event {
	return Event{Type: EventToolCallStarted, Tool: &ToolInfo{CallID: callID, Name: name, Args: args}}
}

func ToolCallFinished(info ToolInfo) Event {
	return Event{Type: EventToolCallFinished, Tool: &info}
}

// Final 构造最终事件，reason 非空即视为降级。
func Final(text string, reason FinalReason) Event {
	return Event{
		Type:  EventFinal,
		Text:  text,
		Final: &FinalInfo{Degraded: reason != ReasonNone, Reason: reason},
	}
}

// IsFinal 判断是否为回合的最后一个事件。
func (e Event) IsFinal() bool {
	return e.Type == EventFinal
}
