package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"codemate/internal/agent"
	"codemate/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	mu        sync.Mutex
	errs      []error
	partial   map[int]bool
	calls     int
	callTimes []time.Time
	resp      agent.Response
}

func (c *scriptedClient) next() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.calls
	c.calls++
	c.callTimes = append(c.callTimes, time.Now())
	if idx < len(c.errs) {
		return idx, c.errs[idx]
	}
	return idx, nil
}

func (c *scriptedClient) Stream(ctx context.Context, _ agent.Prompt, onEvent func(agent.StreamEvent)) error {
	idx, err := c.next()
	if err != nil {
		if c.partial[idx] {
			onEvent(agent.StreamEvent{Type: agent.StreamEventTextDelta, Text: "partial"})
		}
		return err
	}
	onEvent(agent.StreamEvent{Type: agent.StreamEventTextDelta, Text: "ok"})
	onEvent(agent.StreamEvent{Type: agent.StreamEventCompleted, FinishReason: "stop"})
	return nil
}

func (c *scriptedClient) Complete(ctx context.Context, _ agent.Prompt) (agent.Response, error) {
	if _, err := c.next(); err != nil {
		return agent.Response{}, err
	}
	return c.resp, nil
}

type recordedRetry struct {
	attempt int
	delay   time.Duration
}

func newTestTransport(client agent.ModelClient, policy Policy) (*Transport, *[]recordedRetry) {
	var mu sync.Mutex
	retries := &[]recordedRetry{}
	tr := New(client, Options{
		Policy: policy,
		Logger: logger.NoopLLMLogger{},
		OnRetry: func(attempt int, delay time.Duration, _ error) {
			mu.Lock()
			defer mu.Unlock()
			*retries = append(*retries, recordedRetry{attempt: attempt, delay: delay})
		},
	})
	return tr, retries
}

func rateLimited(retryAfter time.Duration) error {
	return &agent.APIError{StatusCode: 429, Message: "rate limit", RetryAfter: retryAfter}
}

func prompt() agent.Prompt {
	return agent.Prompt{Model: "test-model", Messages: []agent.Message{agent.UserMessage("hi")}}
}

func TestSendRetriesRateLimitThenSucceeds(t *testing.T) {
	client := &scriptedClient{errs: []error{rateLimited(0), rateLimited(0), rateLimited(0)}}
	tr, retries := newTestTransport(client, Policy{MaxAttempts: 6, BaseDelay: 5 * time.Millisecond, MaxDelay: 12 * time.Millisecond, MaxTotalWait: time.Second})

	var got []agent.StreamEvent
	err := tr.Send(context.Background(), prompt(), func(ev agent.StreamEvent) { got = append(got, ev) })
	require.NoError(t, err)
	assert.Equal(t, 4, client.calls)
	require.Len(t, got, 2)
	assert.Equal(t, "ok", got[0].Text)

	// 5ms, 10ms, 20ms 被上限截为 12ms。
	require.Len(t, *retries, 3)
	assert.Equal(t, []recordedRetry{
		{attempt: 1, delay: 5 * time.Millisecond},
		{attempt: 2, delay: 10 * time.Millisecond},
		{attempt: 3, delay: 12 * time.Millisecond},
	}, *retries)

	for i := 1; i < len(client.callTimes); i++ {
		gap := client.callTimes[i].Sub(client.callTimes[i-1])
		assert.GreaterOrEqual(t, gap, (*retries)[i-1].delay, "gap before attempt %d", i+1)
	}
}

func TestSendRetryAfterOverridesAndIsCapped(t *testing.T) {
	client := &scriptedClient{errs: []error{rateLimited(3 * time.Millisecond), rateLimited(time.Hour)}}
	tr, retries := newTestTransport(client, Policy{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond})

	require.NoError(t, tr.Send(context.Background(), prompt(), func(agent.StreamEvent) {}))
	assert.Equal(t, []recordedRetry{
		{attempt: 1, delay: 3 * time.Millisecond},
		{attempt: 2, delay: 20 * time.Millisecond},
	}, *retries)
}

func TestSendGivesUpAfterMaxAttempts(t *testing.T) {
	errs := make([]error, 10)
	for i := range errs {
		errs[i] = rateLimited(0)
	}
	client := &scriptedClient{errs: errs}
	tr, retries := newTestTransport(client, Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	err := tr.Send(context.Background(), prompt(), func(agent.StreamEvent) {})
	require.Error(t, err)
	assert.Equal(t, 3, client.calls)
	assert.Len(t, *retries, 2)

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 3, terr.Attempts)
	var apiErr *agent.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestSendStopsAtTotalWaitBudget(t *testing.T) {
	errs := make([]error, 10)
	for i := range errs {
		errs[i] = &agent.APIError{StatusCode: 503, Message: "unavailable"}
	}
	client := &scriptedClient{errs: errs}
	tr, retries := newTestTransport(client, Policy{
		MaxAttempts:  10,
		BaseDelay:    10 * time.Millisecond,
		MaxDelay:     time.Second,
		MaxTotalWait: 50 * time.Millisecond,
	})

	require.Error(t, tr.Send(context.Background(), prompt(), func(agent.StreamEvent) {}))
	// 10ms + 20ms 之后下一次 40ms 会超出 50ms 预算。
	assert.Len(t, *retries, 2)
	assert.Equal(t, 3, client.calls)
}

func TestSendDoesNotRetryPermanentErrors(t *testing.T) {
	for _, code := range []int{400, 401, 403, 404, 422} {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			client := &scriptedClient{errs: []error{&agent.APIError{StatusCode: code, Message: "nope"}}}
			tr, retries := newTestTransport(client, Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
			err := tr.Send(context.Background(), prompt(), func(agent.StreamEvent) {})
			require.Error(t, err)
			assert.Equal(t, 1, client.calls)
			assert.Empty(t, *retries)
		})
	}
}

func TestSendDoesNotRetryAfterForwarding(t *testing.T) {
	client := &scriptedClient{
		errs:    []error{&agent.APIError{StatusCode: 502, Message: "bad gateway"}},
		partial: map[int]bool{0: true},
	}
	tr, _ := newTestTransport(client, Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	var texts []string
	err := tr.Send(context.Background(), prompt(), func(ev agent.StreamEvent) { texts = append(texts, ev.Text) })
	require.Error(t, err)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, []string{"partial"}, texts)
}

func TestSendCancelledDuringBackoff(t *testing.T) {
	client := &scriptedClient{errs: []error{rateLimited(0), rateLimited(0)}}
	tr, _ := newTestTransport(client, Policy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tr.Send(ctx, prompt(), func(agent.StreamEvent) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, client.calls)
}

func TestSendOnceRetriesNetworkErrors(t *testing.T) {
	netErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	client := &scriptedClient{errs: []error{netErr}, resp: agent.Response{Text: "summary"}}
	tr, retries := newTestTransport(client, Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	resp, err := tr.SendOnce(context.Background(), prompt())
	require.NoError(t, err)
	assert.Equal(t, "summary", resp.Text)
	assert.Len(t, *retries, 1)
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true},
		{&agent.APIError{StatusCode: 429}, true},
		{&agent.APIError{StatusCode: 408}, true},
		{&agent.APIError{StatusCode: 409}, true},
		{&agent.APIError{StatusCode: 500}, true},
		{&agent.APIError{StatusCode: 529}, true},
		{&agent.APIError{StatusCode: 400, Message: "Overloaded"}, true},
		{&agent.APIError{StatusCode: 400}, false},
		{&agent.APIError{StatusCode: 401}, false},
		{&agent.APIError{StatusCode: 422}, false},
		{errors.New(`received error while streaming: {"message":"Internal Network Failure"}`), true},
		{errors.New("boom"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsTransient(tc.err), "err=%v", tc.err)
	}
}
