package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"codemate/internal/agent"
	"codemate/internal/config"

	"github.com/sethvargo/go-retry"
)

// Policy 描述退避策略。
type Policy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	MaxTotalWait time.Duration
	Jitter       time.Duration
}

// DefaultPolicy 与 config.Default() 中的 [retry] 段一致。
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.Default().Retry)
}

func PolicyFromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		MaxAttempts:  cfg.MaxAttempts,
		BaseDelay:    cfg.BaseDelay(),
		MaxDelay:     cfg.MaxDelay(),
		MaxTotalWait: cfg.MaxTotalWait(),
		Jitter:       cfg.Jitter(),
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// retryState 在一次 Send/SendOnce 中由重试函数写入、由 backoff 读取，二者在同一 goroutine 顺序执行。
type retryState struct {
	attempt int
	lastErr error
	hint    time.Duration
	waited  time.Duration
}

// backoff 组装退避链：指数退避 → 抖动 → Retry-After 覆盖 → 单次上限 → 总等待预算 → 次数上限。
func (p Policy) backoff(state *retryState, onDelay func(time.Duration)) retry.Backoff {
	var b retry.Backoff = retry.NewExponential(p.BaseDelay)
	if p.Jitter > 0 {
		b = retry.WithJitter(p.Jitter, b)
	}
	b = withRetryAfter(state, b)
	b = retry.WithCappedDuration(p.MaxDelay, b)
	b = withTotalBudget(p.MaxTotalWait, state, b)
	b = retry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
	return retry.BackoffFunc(func() (time.Duration, bool) {
		next, stop := b.Next()
		if !stop && onDelay != nil {
			onDelay(next)
		}
		return next, stop
	})
}

func withRetryAfter(state *retryState, next retry.Backoff) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		val, stop := next.Next()
		if stop {
			return 0, true
		}
		if state.hint > 0 {
			val = state.hint
		}
		return val, false
	})
}

// withTotalBudget 按累计的计划等待时间（而非墙钟）限制总等待。
func withTotalBudget(budget time.Duration, state *retryState, next retry.Backoff) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		val, stop := next.Next()
		if stop {
			return 0, true
		}
		if budget > 0 && state.waited+val > budget {
			return 0, true
		}
		state.waited += val
		return val, false
	})
}

// IsTransient 判断错误是否值得重试。
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *agent.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.StatusCode; {
		case code == http.StatusTooManyRequests,
			code == http.StatusRequestTimeout,
			code == http.StatusConflict,
			code >= 500:
			return true
		default:
			return strings.Contains(strings.ToLower(apiErr.Message), "overloaded")
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"overloaded", "internal network failure", "connection reset", "unexpected eof"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// retryAfterHint 返回错误携带的 Retry-After 提示。
func retryAfterHint(err error) time.Duration {
	var apiErr *agent.APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}
