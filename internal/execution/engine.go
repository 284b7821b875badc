// Package execution 驱动一次用户回合：调用模型、执行工具、循环直到得到最终回复。
package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"codemate/internal/agent"
	"codemate/internal/config"
	tcontext "codemate/internal/context"
	"codemate/internal/events"
	"codemate/internal/logger"

	"github.com/google/uuid"
)

// Sender 是引擎使用的模型传输层，由 *transport.Transport 实现。
type Sender interface {
	Send(ctx context.Context, prompt agent.Prompt, onEvent func(agent.StreamEvent)) error
	SendOnce(ctx context.Context, prompt agent.Prompt) (agent.Response, error)
}

// ToolRunner 执行工具调用，由 *tools.Executor 实现。
type ToolRunner interface {
	Execute(ctx context.Context, call agent.ToolCall) agent.ToolResult
	ExecuteAll(ctx context.Context, calls []agent.ToolCall, parallel bool) []agent.ToolResult
}

// Catalog 提供工具声明与参数校验，由 *tools.Catalog 实现。
type Catalog interface {
	Specs() []agent.ToolSpec
	ValidateArguments(name string, args json.RawMessage) error
}

const (
	defaultEventBuffer = 64
	// toolSummaryPreview 是 tool_call_finished 摘要的最大字符数。
	toolSummaryPreview = 1200
)

// Options 定义引擎的可注入依赖。
type Options struct {
	Transport Sender
	Tools     ToolRunner
	Catalog   Catalog
	Model     string

	// MaxToolRounds 为 0 时从不执行工具。
	MaxToolRounds int
	ParallelTools bool
	// Fallback 取 config.FallbackEmpty 或 config.FallbackNever。
	Fallback        string
	FallbackMinText int
	// SystemPrompt 每轮调用一次，返回值作为首条 system 消息；为空时不发送 system 消息。
	SystemPrompt func() string
	EventBuffer  int
}

// Engine 可被多个对话复用，同一对话同一时间只允许一个回合。
type Engine struct {
	transport       Sender
	tools           ToolRunner
	catalog         Catalog
	model           string
	maxToolRounds   int
	parallelTools   bool
	fallback        string
	fallbackMinText int
	systemPrompt    func() string
	eventBuffer     int
}

// NewEngine 构造引擎，Transport 与 Tools 必须提供。
func NewEngine(opts Options) (*Engine, error) {
	if opts.Transport == nil {
		return nil, errors.New("engine: transport is required")
	}
	if opts.Tools == nil {
		return nil, errors.New("engine: tool runner is required")
	}
	if opts.MaxToolRounds < 0 {
		opts.MaxToolRounds = 0
	}
	if opts.Fallback == "" {
		opts.Fallback = config.FallbackEmpty
	}
	if opts.FallbackMinText < 1 {
		opts.FallbackMinText = 1
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	return &Engine{
		transport:       opts.Transport,
		tools:           opts.Tools,
		catalog:         opts.Catalog,
		model:           strings.TrimSpace(opts.Model),
		maxToolRounds:   opts.MaxToolRounds,
		parallelTools:   opts.ParallelTools,
		fallback:        opts.Fallback,
		fallbackMinText: opts.FallbackMinText,
		systemPrompt:    opts.SystemPrompt,
		eventBuffer:     opts.EventBuffer,
	}, nil
}

// Run 启动一个回合并返回事件通道。conv 的最后一条消息必须是 user 消息。
// 通道在回合结束后关闭；正常结束时最后一个事件是 final，ctx 取消时没有 final。
// final 的 Text 是本回合的回答；回退与轮次上限时它不由 text_delta 拼成。
func (e *Engine) Run(ctx context.Context, conv *tcontext.Conversation) (<-chan events.Event, error) {
	if conv == nil {
		return nil, errors.New("engine: conversation is nil")
	}
	last, ok := conv.Last()
	if !ok || last.Role != agent.RoleUser {
		return nil, errors.New("engine: conversation must end with a user message")
	}
	if err := conv.Acquire(); err != nil {
		return nil, err
	}

	t := &turn{
		engine:  e,
		conv:    conv,
		emitter: events.NewEmitter(uuid.NewString(), e.eventBuffer),
		start:   time.Now(),
	}
	go func() {
		defer conv.Release()
		defer t.emitter.Close()
		t.run(ctx)
	}()
	return t.emitter.Events(), nil
}

// turn 保存单个回合的可变状态，只在回合 goroutine 中访问。
type turn struct {
	engine  *Engine
	conv    *tcontext.Conversation
	emitter *events.Emitter
	start   time.Time

	round      int
	toolRounds int
	// reason 在使用过回退查询后保持为 fallback。
	reason  events.FinalReason
	results []agent.ToolResult
}

func (t *turn) run(ctx context.Context) {
	log.Infof("turn start id=%s model=%s history=%d", t.emitter.TurnID(), t.engine.model, t.conv.Len())
	for {
		t.round++
		t.emitter.SetRound(t.round)

		prompt := t.engine.buildPrompt(t.conv.Messages())
		res, err := t.stream(ctx, prompt)
		if ctx.Err() != nil {
			t.logCancelled()
			return
		}
		if err != nil {
			t.fail(ctx, stageStream, err)
			return
		}

		if !t.emitReasoning(ctx, res) {
			t.logCancelled()
			return
		}

		if t.degenerate(res) {
			res, err = t.fallback(ctx, prompt)
			if ctx.Err() != nil {
				t.logCancelled()
				return
			}
			if err != nil {
				t.fail(ctx, stageFallback, err)
				return
			}
			if res == nil {
				t.finish(ctx, "", events.ReasonEmptyResponse)
				return
			}
		}

		if len(res.Slots) == 0 {
			t.conv.Append(agent.AssistantMessage(res.Text, nil))
			t.finish(ctx, res.Text, t.reason)
			return
		}

		if t.toolRounds >= t.engine.maxToolRounds {
			t.roundCap(ctx)
			return
		}

		if !t.runTools(ctx, res) {
			t.logCancelled()
			return
		}
		t.toolRounds++
	}
}

func (e *Engine) buildPrompt(history []agent.Message) agent.Prompt {
	msgs := make([]agent.Message, 0, len(history)+1)
	if e.systemPrompt != nil {
		if system := strings.TrimSpace(e.systemPrompt()); system != "" {
			msgs = append(msgs, agent.SystemMessage(system))
		}
	}
	msgs = append(msgs, history...)
	prompt := agent.Prompt{
		Model:             e.model,
		Messages:          msgs,
		ParallelToolCalls: e.parallelTools,
	}
	// 即使 MaxToolRounds 为 0 也声明工具，模型请求工具时走轮次上限总结。
	if e.catalog != nil {
		prompt.Tools = e.catalog.Specs()
	}
	return prompt
}

// degenerate 报告结果既没有可用文本也没有任何完整调用。
func (t *turn) degenerate(res *decodeResult) bool {
	return !res.HasCalls() && !res.UsableText(t.engine.fallbackMinText)
}

// fallback 对同一历史发起一次非流式请求。仍无可用内容时返回 nil。
func (t *turn) fallback(ctx context.Context, prompt agent.Prompt) (*decodeResult, error) {
	if t.engine.fallback == config.FallbackNever {
		log.Infof("turn=%s round=%d degenerate response, fallback disabled", t.emitter.TurnID(), t.round)
		return nil, nil
	}
	log.Infof("turn=%s round=%d degenerate response, issuing non-streaming fallback", t.emitter.TurnID(), t.round)
	resp, err := t.engine.transport.SendOnce(ctx, prompt)
	if err != nil {
		return nil, err
	}
	res := decodeResponse(t.engine.catalog, resp)
	if t.degenerate(res) {
		return nil, nil
	}
	t.reason = events.ReasonFallback
	// 回退结果的文本只通过 final 给出：本轮流式阶段可能已发出过不可用的片段，
	// 再补发 text_delta 会让片段之和与 final 文本不一致。
	if !t.emitReasoning(ctx, res) {
		return nil, ctx.Err()
	}
	return res, nil
}

// finish 发出 final 事件。
func (t *turn) finish(ctx context.Context, text string, reason events.FinalReason) {
	log.Infof("turn end id=%s rounds=%d tool_rounds=%d reason=%q duration=%s",
		t.emitter.TurnID(), t.round, t.toolRounds, reason, time.Since(t.start).Round(time.Millisecond))
	_ = t.emitter.Emit(ctx, events.Final(text, reason))
}

// fail 记录错误并以 transport_failure 结束回合。
func (t *turn) fail(ctx context.Context, stage string, err error) {
	t.logError(stage, err)
	t.finish(ctx, upstreamFailureText(err), events.ReasonTransportFailure)
}

func (t *turn) logError(stage string, err error) {
	fields := logger.Fields{
		"stage":   stage,
		"turn_id": t.emitter.TurnID(),
		"round":   t.round,
		"model":   t.engine.model,
	}
	errorLog.WithError(stageError{Stage: stage, Err: err}).WithFields(fields).Error(fmt.Sprintf("turn %s error", stage))
}

func (t *turn) logCancelled() {
	log.Infof("turn cancelled id=%s round=%d", t.emitter.TurnID(), t.round)
}

// upstreamFailureText 生成面向用户的失败说明，429 与其它 HTTP 错误分开提示。
func upstreamFailureText(err error) string {
	var apiErr *agent.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 {
			return "The upstream model API returned 429 Too Many Requests. Please wait a few seconds and try again."
		}
		return fmt.Sprintf("Upstream HTTP error: %s", apiErr.Error())
	}
	return fmt.Sprintf("Upstream model request failed: %v", err)
}
