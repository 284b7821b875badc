// Package transport 在模型客户端之上提供带退避重试的流式与非流式调用。
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"codemate/internal/agent"
	"codemate/internal/logger"

	"github.com/sethvargo/go-retry"
)

// Error 表示请求最终失败，Attempts 为实际发出的请求次数。
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("model request failed after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("model request failed: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Options struct {
	Policy Policy
	// Logger 为空时使用全局 logger.LLMLog。
	Logger logger.LLMLogger
	// OnRetry 在每次等待前回调，attempt 为刚失败的请求序号。
	OnRetry func(attempt int, delay time.Duration, err error)
}

type Transport struct {
	client  agent.ModelClient
	policy  Policy
	log     logger.LLMLogger
	onRetry func(int, time.Duration, error)
}

func New(client agent.ModelClient, opts Options) *Transport {
	return &Transport{
		client:  client,
		policy:  opts.Policy.normalized(),
		log:     opts.Logger,
		onRetry: opts.OnRetry,
	}
}

func (t *Transport) logger() logger.LLMLogger {
	if t.log != nil {
		return t.log
	}
	return logger.LLMLog
}

// Send 发起流式请求，片段到达即转发给 onEvent。
// 只有在尚未转发任何片段时才会重试，避免调用方看到重复输出。
func (t *Transport) Send(ctx context.Context, prompt agent.Prompt, onEvent func(agent.StreamEvent)) error {
	if t.client == nil {
		return errors.New("model client not configured")
	}
	model := strings.TrimSpace(prompt.Model)
	return t.do(ctx, prompt, func(ctx context.Context, attempt int) (bool, error) {
		forwarded := false
		chunks := 0
		err := t.client.Stream(ctx, prompt, func(ev agent.StreamEvent) {
			forwarded = true
			if ev.Type == agent.StreamEventTextDelta || ev.Type == agent.StreamEventReasoningDelta {
				t.logger().StreamChunk(model, ev.Text, chunks)
			}
			chunks++
			onEvent(ev)
		})
		if err == nil {
			t.logger().StreamComplete(model, attempt)
		}
		return !forwarded, err
	})
}

// SendOnce 发起非流式请求，用于回退查询与轮次上限总结。
func (t *Transport) SendOnce(ctx context.Context, prompt agent.Prompt) (agent.Response, error) {
	if t.client == nil {
		return agent.Response{}, errors.New("model client not configured")
	}
	var resp agent.Response
	err := t.do(ctx, prompt, func(ctx context.Context, attempt int) (bool, error) {
		r, err := t.client.Complete(ctx, prompt)
		if err != nil {
			return true, err
		}
		resp = r
		t.logger().Response(prompt.Model, r.Text, attempt)
		return true, nil
	})
	return resp, err
}

// do 执行 fn 并按策略重试。fn 返回的 bool 表示本次失败是否仍可安全重试。
func (t *Transport) do(ctx context.Context, prompt agent.Prompt, fn func(ctx context.Context, attempt int) (bool, error)) error {
	state := &retryState{}
	model := prompt.Model
	backoff := t.policy.backoff(state, func(delay time.Duration) {
		t.logger().Retry(model, state.lastErr, state.attempt, delay)
		if t.onRetry != nil {
			t.onRetry(state.attempt, delay, state.lastErr)
		}
	})

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		state.attempt++
		t.logger().Request(model, agent.ToLLMMessages(prompt.Messages), state.attempt)
		retryable, err := fn(ctx, state.attempt)
		if err == nil {
			return nil
		}
		t.logger().Error(model, err, state.attempt)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		state.lastErr = err
		state.hint = retryAfterHint(err)
		if retryable && IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &Error{Attempts: state.attempt, Err: err}
}
