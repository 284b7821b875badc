package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"codemate/internal/agent"
	tcontext "codemate/internal/context"

	"github.com/sourcegraph/conc/iter"
)

const (
	DefaultMaxOutputBytes = 4000
	DefaultMaxParallel    = 4
)

type ExecutorOptions struct {
	// MaxOutputBytes 限制写回对话的 payload 大小，<=0 使用默认值。
	MaxOutputBytes int
	// MaxParallel 限制同一轮内并发执行的工具数。
	MaxParallel int
}

// Executor 校验并执行工具调用，任何失败都转换为失败的 ToolResult 而不是 error。
type Executor struct {
	catalog        *Catalog
	maxOutputBytes int
	maxParallel    int
}

func NewExecutor(catalog *Catalog, opts ExecutorOptions) *Executor {
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallel
	}
	return &Executor{
		catalog:        catalog,
		maxOutputBytes: opts.MaxOutputBytes,
		maxParallel:    opts.MaxParallel,
	}
}

// ExecuteAll 执行一轮中的全部调用，结果顺序与 calls 一致。
// parallel 时以会改变状态的调用为界分段：段内并发，分界调用单独执行。
func (e *Executor) ExecuteAll(ctx context.Context, calls []agent.ToolCall, parallel bool) []agent.ToolResult {
	if !parallel {
		return e.executeSequential(ctx, calls)
	}
	out := make([]agent.ToolResult, 0, len(calls))
	start := 0
	for i, call := range calls {
		if !e.catalog.ChangesState(call.Name) {
			continue
		}
		out = append(out, e.executeBatch(ctx, calls[start:i])...)
		out = append(out, e.Execute(ctx, call))
		start = i + 1
	}
	return append(out, e.executeBatch(ctx, calls[start:])...)
}

func (e *Executor) executeSequential(ctx context.Context, calls []agent.ToolCall) []agent.ToolResult {
	out := make([]agent.ToolResult, 0, len(calls))
	for _, call := range calls {
		out = append(out, e.Execute(ctx, call))
	}
	return out
}

func (e *Executor) executeBatch(ctx context.Context, calls []agent.ToolCall) []agent.ToolResult {
	if len(calls) < 2 {
		return e.executeSequential(ctx, calls)
	}
	mapper := iter.Mapper[agent.ToolCall, agent.ToolResult]{MaxGoroutines: e.maxParallel}
	return mapper.Map(calls, func(call *agent.ToolCall) agent.ToolResult {
		return e.Execute(ctx, *call)
	})
}

// Execute 执行单个调用。
func (e *Executor) Execute(ctx context.Context, call agent.ToolCall) agent.ToolResult {
	start := time.Now()
	handler, known := e.catalog.Handler(call.Name)
	logToolRequest(call, known)

	result := e.execute(ctx, call, handler, known)
	logToolResult(call, result, time.Since(start))
	return result
}

func (e *Executor) execute(ctx context.Context, call agent.ToolCall, handler Handler, known bool) agent.ToolResult {
	if !known {
		return agent.FailedResult(call, agent.ErrorClassUnknownTool, fmt.Sprintf("unknown tool: %s", call.Name))
	}
	if err := ctx.Err(); err != nil {
		return agent.FailedResult(call, agent.ErrorClassCancelled, "cancelled before execution")
	}
	args := call.Arguments
	if len(strings.TrimSpace(string(args))) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := e.catalog.ValidateArguments(call.Name, args); err != nil {
		return agent.FailedResult(call, agent.ErrorClassInvalidArguments, err.Error())
	}

	out, err := safeHandle(ctx, handler, args)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return agent.FailedResult(call, agent.ErrorClassCancelled, "cancelled")
		}
		return agent.FailedResult(call, agent.ErrorClassCollaboratorError, err.Error())
	}

	payload, err := encodePayload(out.Payload)
	if err != nil {
		return agent.FailedResult(call, agent.ErrorClassCollaboratorError, fmt.Sprintf("encode result: %v", err))
	}
	payload, truncated := tcontext.FormattedTruncateText(payload, e.maxOutputBytes)
	return agent.ToolResult{
		CallID:    call.ID,
		Name:      call.Name,
		Success:   true,
		Payload:   payload,
		Truncated: truncated,
		Notes:     out.Notes,
	}
}

// safeHandle 将 handler panic 转换为错误，避免拖垮整个回合。
func safeHandle(ctx context.Context, h Handler, args json.RawMessage) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			toolsLogger().Errorf("tool panic name=%s: %v\n%s", h.Spec().Name, r, debug.Stack())
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return h.Handle(ctx, args)
}

func encodePayload(payload any) (string, error) {
	switch v := payload.(type) {
	case nil:
		return "null", nil
	case string:
		data, err := json.Marshal(v)
		return string(data), err
	case json.RawMessage:
		return string(v), nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
