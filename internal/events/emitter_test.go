package events

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"codemate/internal/logger"
)

func TestEmitterStampsSequence(t *testing.T) {
	var buf bytes.Buffer
	SetEventLogger(logger.NewComponent("eq", &buf))
	t.Cleanup(func() { SetEventLogger(nil) })

	em := NewEmitter("turn-1", 4)
	ctx := context.Background()
	em.SetRound(1)
	if err := em.Emit(ctx, TextDelta("hel")); err != nil {
		t.Fatalf("emit: %v", err)
	}
	em.SetRound(2)
	if err := em.Emit(ctx, Final("hello", ReasonNone)); err != nil {
		t.Fatalf("emit: %v", err)
	}
	em.Close()
	em.Close()

	var got []Event
	for ev := range em.Events() {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Seq != 1 || got[1].Seq != 2 {
		t.Fatalf("unexpected sequence: %d %d", got[0].Seq, got[1].Seq)
	}
	if got[0].Round != 1 || got[1].Round != 2 || got[1].TurnID != "turn-1" {
		t.Fatalf("unexpected stamping: %+v", got[1])
	}
	if got[0].Timestamp.IsZero() {
		t.Fatalf("timestamp not set")
	}
	if !got[1].IsFinal() || got[1].Final.Degraded {
		t.Fatalf("unexpected final: %+v", got[1].Final)
	}

	out := buf.String()
	if !strings.Contains(out, "[type=text_delta] turn=turn-1 round=1 seq=1 payload={\"text\":\"hel\"}") {
		t.Fatalf("unexpected eq log: %q", out)
	}
	if err := em.Emit(ctx, TextDelta("late")); err != ErrEmitterClosed {
		t.Fatalf("expected ErrEmitterClosed, got %v", err)
	}
}

func TestEmitterHonoursContext(t *testing.T) {
	SetEventLogger(nil)
	em := NewEmitter("turn-2", 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := em.Emit(ctx, TextDelta("blocked")); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestFinalDegraded(t *testing.T) {
	ev := Final("partial", ReasonRoundCap)
	if !ev.Final.Degraded || ev.Final.Reason != ReasonRoundCap {
		t.Fatalf("unexpected final info: %+v", ev.Final)
	}
}
