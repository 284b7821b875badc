package agent

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIError 是模型端点返回的非 2xx 响应。
type APIError struct {
	StatusCode int
	Message    string
	// RetryAfter 来自 Retry-After / X-RateLimit-Reset-After 头，未提供时为 0。
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("http_%d: %s", e.StatusCode, msg)
}

// NewAPIError 从 HTTP 响应头解析重试提示。
func NewAPIError(status int, message string, header http.Header) *APIError {
	return &APIError{
		StatusCode: status,
		Message:    message,
		RetryAfter: ParseRetryAfter(header, time.Now()),
	}
}

// ParseRetryAfter 解析 Retry-After（秒或 HTTP 日期）及 X-RateLimit-Reset-After（秒，可带小数）。
func ParseRetryAfter(header http.Header, now time.Time) time.Duration {
	if header == nil {
		return 0
	}
	for _, key := range []string{"Retry-After", "X-RateLimit-Reset-After"} {
		raw := strings.TrimSpace(header.Get(key))
		if raw == "" {
			continue
		}
		if secs, err := strconv.ParseFloat(raw, 64); err == nil {
			if secs < 0 {
				return 0
			}
			return time.Duration(secs * float64(time.Second))
		}
		if at, err := http.ParseTime(raw); err == nil {
			if d := at.Sub(now); d > 0 {
				return d
			}
			return 0
		}
	}
	return 0
}
