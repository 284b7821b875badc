package execution

import (
	"context"
	"fmt"
	"strings"

	"codemate/internal/agent"
	tcontext "codemate/internal/context"
	"codemate/internal/events"
	"codemate/internal/prompts"
	"codemate/internal/stream"
)

type decodeResult = stream.Result

// stream 发起流式请求，文本片段到达即转发为 text_delta 事件。
// 文本开头像 JSON 动作对象时暂缓转发，解码后只输出面向用户的文本。
func (t *turn) stream(ctx context.Context, prompt agent.Prompt) (*decodeResult, error) {
	log.Infof("turn=%s round=%d request messages=%d tools=%d est_tokens=%d",
		t.emitter.TurnID(), t.round, len(prompt.Messages), len(prompt.Tools), tcontext.EstimatePromptTokens(prompt))

	dec := stream.NewDecoder(validatorOf(t.engine.catalog))
	var held strings.Builder
	holding, decided := false, false
	err := t.engine.transport.Send(ctx, prompt, func(ev agent.StreamEvent) {
		dec.Push(ev)
		if ev.Type != agent.StreamEventTextDelta || ev.Text == "" {
			return
		}
		if holding {
			held.WriteString(ev.Text)
			return
		}
		if !decided {
			held.WriteString(ev.Text)
			if strings.TrimSpace(held.String()) == "" {
				return
			}
			decided = true
			if stream.MayBeTextAction(held.String()) {
				holding = true
				return
			}
			ev.Text = held.String()
			held.Reset()
		}
		// 取消时 Emit 失败，Send 随后返回 ctx 错误。
		_ = t.emitter.Emit(ctx, events.TextDelta(ev.Text))
	})
	if err != nil {
		return nil, err
	}
	res := dec.Finalize()
	t.logDecoded(res)
	if held.Len() > 0 && strings.TrimSpace(res.Text) != "" {
		if err := t.emitter.Emit(ctx, events.TextDelta(res.Text)); err != nil {
			return nil, err
		}
	}
	return &res, nil
}

// emitReasoning 把模型自身的推理文本作为 reasoning_note 发出。
func (t *turn) emitReasoning(ctx context.Context, res *decodeResult) bool {
	note := strings.TrimSpace(res.Reasoning)
	if note == "" {
		return true
	}
	return t.emitter.Emit(ctx, events.ReasoningNote(note)) == nil
}

func decodeResponse(catalog Catalog, resp agent.Response) *decodeResult {
	res := stream.Decode(validatorOf(catalog), resp.Events())
	return &res
}

func validatorOf(catalog Catalog) stream.Validator {
	if catalog == nil {
		return nil
	}
	return catalog
}

func (t *turn) logDecoded(res decodeResult) {
	log.Infof("turn=%s round=%d decoded text=%d reasoning=%d calls=%d malformed=%d action=%q finish=%s est_tokens=%d",
		t.emitter.TurnID(), t.round, len(res.Text), len(res.Reasoning), len(res.Calls), len(res.Malformed),
		res.Action, res.FinishReason, tcontext.ApproxTokenCount(res.Text+res.Reasoning))
	for _, bad := range res.Malformed {
		log.Warnf("turn=%s round=%d malformed call id=%s name=%s reason=%s raw=%s",
			t.emitter.TurnID(), t.round, bad.ID, bad.Name, bad.Reason, tcontext.Preview(bad.Raw, 200))
	}
}

// runTools 追加 assistant 消息并执行本轮全部调用，每个调用恰好追加一条 tool 消息。
// ctx 取消时返回 false，剩余调用以 cancelled 结果补齐历史但不再发出事件。
func (t *turn) runTools(ctx context.Context, res *decodeResult) bool {
	calls := make([]agent.ToolCall, len(res.Slots))
	for i, slot := range res.Slots {
		calls[i] = slot.Call
	}
	t.conv.Append(agent.AssistantMessage(res.Text, calls))

	if t.engine.parallelTools && countValid(res.Slots) > 1 {
		return t.runParallel(ctx, res.Slots)
	}
	return t.runSequential(ctx, res.Slots)
}

func (t *turn) runSequential(ctx context.Context, slots []stream.Slot) bool {
	for i, slot := range slots {
		if ctx.Err() != nil {
			t.cancelRemaining(slots[i:])
			return false
		}
		if err := t.emitter.Emit(ctx, events.ToolCallStarted(slot.Call.ID, slot.Call.Name, slot.Call.Arguments)); err != nil {
			t.cancelRemaining(slots[i:])
			return false
		}
		result := t.execute(ctx, slot)
		if !t.record(ctx, result) {
			t.cancelRemaining(slots[i+1:])
			return false
		}
	}
	return ctx.Err() == nil
}

// runParallel 先按请求顺序发出全部 started 事件，再并发执行，最后按请求顺序发出 finished 事件。
func (t *turn) runParallel(ctx context.Context, slots []stream.Slot) bool {
	for i, slot := range slots {
		if err := t.emitter.Emit(ctx, events.ToolCallStarted(slot.Call.ID, slot.Call.Name, slot.Call.Arguments)); err != nil {
			t.cancelRemaining(slots[i:])
			return false
		}
	}

	valid := make([]agent.ToolCall, 0, len(slots))
	for _, slot := range slots {
		if slot.Malformed == nil {
			valid = append(valid, slot.Call)
		}
	}
	executed := t.engine.tools.ExecuteAll(ctx, valid, true)

	results := make([]agent.ToolResult, len(slots))
	next := 0
	for i, slot := range slots {
		if slot.Malformed != nil {
			results[i] = malformedResult(slot)
			continue
		}
		if next < len(executed) {
			results[i] = executed[next]
		} else {
			results[i] = agent.FailedResult(slot.Call, agent.ErrorClassCancelled, "cancelled")
		}
		next++
	}

	for i, result := range results {
		if !t.record(ctx, result) {
			t.appendSilently(results[i+1:])
			return false
		}
	}
	return ctx.Err() == nil
}

func (t *turn) execute(ctx context.Context, slot stream.Slot) agent.ToolResult {
	if slot.Malformed != nil {
		return malformedResult(slot)
	}
	return t.engine.tools.Execute(ctx, slot.Call)
}

// record 追加 tool 消息并发出备注与 finished 事件。消息总会追加，事件发送失败时返回 false。
func (t *turn) record(ctx context.Context, result agent.ToolResult) bool {
	t.conv.Append(result.Message())
	t.results = append(t.results, result)
	if ctx.Err() != nil {
		return false
	}
	for _, note := range result.Notes {
		if err := t.emitter.Emit(ctx, events.ReasoningNote(note)); err != nil {
			return false
		}
	}
	info := events.ToolInfo{
		CallID:    result.CallID,
		Name:      result.Name,
		Summary:   tcontext.Preview(result.Content(), toolSummaryPreview),
		Success:   result.Success,
		Class:     string(result.Class),
		Truncated: result.Truncated,
	}
	return t.emitter.Emit(ctx, events.ToolCallFinished(info)) == nil
}

// cancelRemaining 为未执行的调用补上 cancelled 结果，保持每个调用都有对应结果。
func (t *turn) cancelRemaining(slots []stream.Slot) {
	results := make([]agent.ToolResult, 0, len(slots))
	for _, slot := range slots {
		results = append(results, agent.FailedResult(slot.Call, agent.ErrorClassCancelled, "cancelled"))
	}
	t.appendSilently(results)
}

func (t *turn) appendSilently(results []agent.ToolResult) {
	for _, result := range results {
		t.conv.Append(result.Message())
		t.results = append(t.results, result)
	}
}

func malformedResult(slot stream.Slot) agent.ToolResult {
	return agent.FailedResult(slot.Call, agent.ErrorClassMalformedCall,
		fmt.Sprintf("malformed tool call: %s", slot.Malformed.Reason))
}

func countValid(slots []stream.Slot) int {
	n := 0
	for _, slot := range slots {
		if slot.Malformed == nil {
			n++
		}
	}
	return n
}

// roundCap 在工具轮次用尽后请求一次不带工具的总结，失败或为空时使用本地总结。
func (t *turn) roundCap(ctx context.Context) {
	log.Infof("turn=%s round=%d tool round limit %d reached, requesting summary", t.emitter.TurnID(), t.round, t.engine.maxToolRounds)

	prompt := t.engine.buildPrompt(t.conv.Messages()).WithoutTools()
	prompt.Messages = append(prompt.Messages, agent.UserMessage(prompts.RoundCapInstruction()))

	text := ""
	resp, err := t.engine.transport.SendOnce(ctx, prompt)
	if ctx.Err() != nil {
		t.logCancelled()
		return
	}
	if err != nil {
		t.logError(stageRoundCap, err)
	} else {
		text = strings.TrimSpace(resp.Text)
	}
	if text == "" {
		text = formatRoundCapSummary(roundCapSummaryArgs{
			MaxToolRounds: t.engine.maxToolRounds,
			ToolResults:   t.results,
			Err:           err,
		})
	}
	t.conv.Append(agent.AssistantMessage(text, nil))
	t.finish(ctx, text, events.ReasonRoundCap)
}
