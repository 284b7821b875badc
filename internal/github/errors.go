package github

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	gh "github.com/google/go-github/v66/github"
)

// Error 是 GitHub API 返回的错误，携带状态码及限流信息。
type Error struct {
	Op          string
	StatusCode  int
	Message     string
	RateLimited bool
	RetryAfter  time.Duration
}

func (e *Error) Error() string {
	switch {
	case e.RateLimited && e.RetryAfter > 0:
		return fmt.Sprintf("%s: github rate limit exceeded, retry after %s", e.Op, e.RetryAfter.Round(time.Second))
	case e.RateLimited:
		return fmt.Sprintf("%s: github rate limit exceeded", e.Op)
	case e.StatusCode == http.StatusNotFound:
		return fmt.Sprintf("%s: not found (404)", e.Op)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: github %d: %s", e.Op, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

// IsNotFound 判断错误是否为 404。
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusNotFound
}

func wrapError(err error, op string) error {
	if err == nil {
		return nil
	}
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		out := &Error{Op: op, StatusCode: http.StatusForbidden, Message: rateErr.Message, RateLimited: true}
		if reset := rateErr.Rate.Reset.Time; !reset.IsZero() {
			out.RetryAfter = time.Until(reset)
		}
		return out
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		out := &Error{Op: op, StatusCode: http.StatusForbidden, Message: abuseErr.Message, RateLimited: true}
		if abuseErr.RetryAfter != nil {
			out.RetryAfter = *abuseErr.RetryAfter
		}
		return out
	}
	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return &Error{Op: op, StatusCode: respErr.Response.StatusCode, Message: respErr.Message}
	}
	return fmt.Errorf("%s: %w", op, err)
}
