// Package stream 将模型客户端转发的片段组装成文本、推理和完整的工具调用。
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"codemate/internal/agent"

	"github.com/google/uuid"
)

// Validator 校验工具参数，由 tools.Catalog 实现。
// 对未知工具返回包装了 agent.ErrUnknownTool 的错误。
type Validator interface {
	ValidateArguments(name string, args json.RawMessage) error
}

type callState int

const (
	statePending callState = iota
	stateAccumulating
	stateFinalized
	stateMalformed
)

func (s callState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateAccumulating:
		return "accumulating"
	case stateFinalized:
		return "finalized"
	case stateMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

type accumulator struct {
	index  int
	id     string
	name   string
	args   strings.Builder
	state  callState
	reason string
}

func (a *accumulator) open() bool {
	return a.state == statePending || a.state == stateAccumulating
}

// MalformedCall 是无法解析或未通过校验的工具调用，原始参数保留用于日志和回填。
type MalformedCall struct {
	ID     string
	Name   string
	Raw    string
	Reason string
}

// Slot 按模型发起顺序描述一个调用，Malformed 非 nil 时 Call 仅含 ID 和名称。
type Slot struct {
	Call      agent.ToolCall
	Malformed *MalformedCall
}

// Result 是一次模型响应的解码结果。
type Result struct {
	Text         string
	Reasoning    string
	Calls        []agent.ToolCall
	Malformed    []MalformedCall
	Slots        []Slot
	FinishReason string
	// Completed 表示收到了流结束信号。
	Completed bool
	// Action 非空表示文本是一个 JSON 动作对象，取值 ActionCallTool 或 ActionFinalAnswer。
	Action string
}

// HasCalls 报告是否至少有一个完整调用。
func (r Result) HasCalls() bool {
	return len(r.Calls) > 0
}

// UsableText 报告去除空白后的文本长度是否达到 minLen。
func (r Result) UsableText(minLen int) bool {
	if minLen < 1 {
		minLen = 1
	}
	return len([]rune(strings.TrimSpace(r.Text))) >= minLen
}

// Decoder 不是并发安全的，一次模型调用使用一个实例。
type Decoder struct {
	validator Validator

	text      strings.Builder
	reasoning strings.Builder

	// calls 保持发起顺序；byIndex 指向每个 index 上最近的调用。
	calls   []*accumulator
	byIndex map[int]*accumulator

	finishReason string
	completed    bool
	newID        func() string
}

func NewDecoder(v Validator) *Decoder {
	return &Decoder{
		validator: v,
		byIndex:   make(map[int]*accumulator),
		newID:     func() string { return "call_" + uuid.NewString() },
	}
}

// Push 消费一个片段。
func (d *Decoder) Push(ev agent.StreamEvent) {
	switch ev.Type {
	case agent.StreamEventTextDelta:
		d.text.WriteString(ev.Text)
	case agent.StreamEventReasoningDelta:
		d.reasoning.WriteString(ev.Text)
	case agent.StreamEventToolCallDelta:
		d.pushToolFragment(ev.ToolCall)
	case agent.StreamEventToolCallDone:
		if acc := d.lookup(ev.ToolCall); acc != nil {
			d.finalize(acc)
		}
	case agent.StreamEventCompleted:
		if ev.FinishReason != "" {
			d.finishReason = ev.FinishReason
		}
		d.completed = true
		for _, acc := range d.calls {
			d.finalize(acc)
		}
	}
}

func (d *Decoder) pushToolFragment(delta agent.ToolCallDelta) {
	acc := d.lookup(delta)
	if acc == nil {
		acc = &accumulator{index: delta.Index}
		d.calls = append(d.calls, acc)
		d.byIndex[delta.Index] = acc
	}
	if !acc.open() {
		if acc.state == stateFinalized && (delta.Arguments != "" || delta.Name != "") {
			acc.state = stateMalformed
			acc.reason = "fragment received after the call completed"
		}
		return
	}
	if delta.ID != "" && acc.id == "" {
		acc.id = delta.ID
	}
	if delta.Name != "" {
		switch {
		case acc.name == "" || strings.HasPrefix(delta.Name, acc.name):
			acc.name = delta.Name
		case delta.Name != acc.name:
			acc.name += delta.Name
		}
	}
	acc.args.WriteString(delta.Arguments)
	acc.state = stateAccumulating
}

// lookup 优先按 index 查找；index 未知但带 ID 时按 ID 匹配已有调用。
func (d *Decoder) lookup(delta agent.ToolCallDelta) *accumulator {
	if acc, ok := d.byIndex[delta.Index]; ok {
		if delta.ID == "" || acc.id == "" || acc.id == delta.ID {
			return acc
		}
	}
	if delta.ID == "" {
		return nil
	}
	for _, acc := range d.calls {
		if acc.id == delta.ID {
			return acc
		}
	}
	return nil
}

func (d *Decoder) finalize(acc *accumulator) {
	if acc == nil || !acc.open() {
		return
	}
	if acc.id == "" {
		acc.id = d.newID()
	}
	if strings.TrimSpace(acc.name) == "" {
		d.markMalformed(acc, "missing tool name")
		return
	}
	raw := strings.TrimSpace(acc.args.String())
	if raw == "" {
		raw = "{}"
		acc.args.Reset()
		acc.args.WriteString(raw)
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil || obj == nil {
		reason := "arguments are not a JSON object"
		if err != nil {
			reason = fmt.Sprintf("%s: %v", reason, err)
		}
		d.markMalformed(acc, reason)
		return
	}
	if d.validator != nil {
		if err := d.validator.ValidateArguments(acc.name, json.RawMessage(raw)); err != nil && !errors.Is(err, agent.ErrUnknownTool) {
			d.markMalformed(acc, err.Error())
			return
		}
	}
	acc.state = stateFinalized
}

func (d *Decoder) markMalformed(acc *accumulator, reason string) {
	acc.state = stateMalformed
	acc.reason = reason
}

// Finalize 返回解码结果。流未正常结束时仍处于打开状态的调用记为 malformed。
func (d *Decoder) Finalize() Result {
	res := Result{
		Text:         d.text.String(),
		Reasoning:    d.reasoning.String(),
		FinishReason: d.finishReason,
		Completed:    d.completed,
	}
	for _, acc := range d.calls {
		if acc.open() {
			if acc.id == "" {
				acc.id = d.newID()
			}
			d.markMalformed(acc, "stream ended before the call completed")
		}
		res.appendSlot(acc)
	}
	if len(res.Slots) == 0 {
		d.applyTextAction(&res)
	}
	return res
}

func (r *Result) appendSlot(acc *accumulator) {
	switch acc.state {
	case stateFinalized:
		call := agent.ToolCall{ID: acc.id, Name: acc.name, Arguments: json.RawMessage(acc.args.String())}
		r.Calls = append(r.Calls, call)
		r.Slots = append(r.Slots, Slot{Call: call})
	case stateMalformed:
		bad := MalformedCall{ID: acc.id, Name: acc.name, Raw: acc.args.String(), Reason: acc.reason}
		r.Malformed = append(r.Malformed, bad)
		r.Slots = append(r.Slots, Slot{
			Call:      agent.ToolCall{ID: bad.ID, Name: bad.Name, Arguments: json.RawMessage(`{}`)},
			Malformed: &bad,
		})
	}
}

// applyTextAction 处理没有原生工具调用能力的模型：整段文本是
// {"action":"_call_tool","tool":...,"args":{...}} 时转换为一次工具调用，
// 是 {"action":"final_answer","answer":...} 时以 answer 作为文本。
// 转换出的调用与原生调用走同样的解析和校验。
func (d *Decoder) applyTextAction(res *Result) {
	act, ok := ParseTextAction(res.Text)
	if !ok {
		return
	}
	res.Action = act.Action
	res.Text = ""
	if act.Action == ActionFinalAnswer {
		res.Text = act.Answer
		return
	}
	acc := &accumulator{id: d.newID(), name: strings.TrimSpace(act.Tool), state: stateAccumulating}
	args := strings.TrimSpace(string(act.Args))
	if args == "" || args == "null" {
		args = "{}"
	}
	acc.args.WriteString(args)
	d.finalize(acc)
	res.appendSlot(acc)
}

// Decode 依次消费片段并返回结果，用于非流式响应。
func Decode(v Validator, events []agent.StreamEvent) Result {
	d := NewDecoder(v)
	for _, ev := range events {
		d.Push(ev)
	}
	return d.Finalize()
}
