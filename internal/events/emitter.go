package events

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrEmitterClosed 表示回合已结束，不再接受事件。
var ErrEmitterClosed = errors.New("event emitter closed")

// Emitter 为一个回合的事件补全 TurnID、轮次、序号与时间戳，并按顺序写入通道。
// 只能由产生事件的单个 goroutine 使用。
type Emitter struct {
	ch     chan Event
	turnID string
	round  int
	seq    atomic.Int64
	closed atomic.Bool
	now    func() time.Time
}

// NewEmitter 创建带 buffer 的事件通道。
func NewEmitter(turnID string, buffer int) *Emitter {
	if buffer < 0 {
		buffer = 0
	}
	return &Emitter{
		ch:     make(chan Event, buffer),
		turnID: turnID,
		now:    time.Now,
	}
}

// Events 返回只读事件通道，Close 后关闭。
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

func (e *Emitter) TurnID() string {
	return e.turnID
}

// SetRound 设置后续事件的轮次（从 1 开始）。
func (e *Emitter) SetRound(round int) {
	e.round = round
}

// Emit 写入事件，消费者跟不上时阻塞，ctx 取消时返回 ctx.Err()。
func (e *Emitter) Emit(ctx context.Context, ev Event) error {
	if e.closed.Load() {
		return ErrEmitterClosed
	}
	ev.TurnID = e.turnID
	ev.Round = e.round
	ev.Seq = e.seq.Add(1)
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case e.ch <- ev:
	}
	logEvent(ev)
	return nil
}

// Close 关闭事件通道，可重复调用。
func (e *Emitter) Close() {
	if e.closed.CompareAndSwap(false, true) {
		close(e.ch)
	}
}
