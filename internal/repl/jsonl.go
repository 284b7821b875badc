package repl

import (
	"encoding/json"
	"io"
	"sync"

	"codemate/internal/events"
)

// JSONLWriter 每个事件输出一行 JSON，供脚本消费。
type JSONLWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc}
}

func (j *JSONLWriter) Handle(evt events.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(evt)
}

// Drain 消费事件直到通道关闭，返回 final 事件。回合被取消时 ok 为 false。
func Drain(ch <-chan events.Event, handle func(events.Event)) (final events.Event, ok bool) {
	for evt := range ch {
		if handle != nil {
			handle(evt)
		}
		if evt.IsFinal() {
			final, ok = evt, true
		}
	}
	return final, ok
}
