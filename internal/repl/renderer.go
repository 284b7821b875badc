package repl

import (
	"io"
	"sync"

	"codemate/internal/agent"
	"codemate/internal/events"
	tuirender "codemate/internal/tui/render"
)

// Renderer 把回合事件渲染为终端上的 cell，文本片段先缓存在 ActiveCell，
// 遇到工具事件、备注或 final 时 flush 到 scrollback。
type Renderer struct {
	mu sync.Mutex

	turnID string
	width  int

	renderers  map[events.EventType]EventCellRenderer
	scrollback *Scrollback
	active     ActiveCell
}

type RendererOptions struct {
	Width  int
	Writer io.Writer
}

// EventCellRenderer 处理一种事件类型，可以产生任意数量的 cell。
type EventCellRenderer interface {
	Type() events.EventType
	Handle(r *Renderer, evt events.Event)
}

func NewRenderer(opts RendererOptions) *Renderer {
	width := opts.Width
	if width <= 0 {
		width = 80
	}
	r := &Renderer{
		width:      width,
		renderers:  map[events.EventType]EventCellRenderer{},
		scrollback: NewScrollback(ScrollbackOptions{Writer: opts.Writer, Width: width}),
	}
	for _, rr := range defaultCellRenderers() {
		r.renderers[rr.Type()] = rr
	}
	return r
}

func (r *Renderer) RegisterRenderer(renderer EventCellRenderer) {
	if renderer == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[renderer.Type()] = renderer
}

// Handle 渲染一个事件。只跟随第一个看到的回合，final 之后接受新回合。
func (r *Renderer) Handle(evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.turnID == "" {
		r.turnID = evt.TurnID
	}
	if evt.TurnID != r.turnID {
		return
	}
	if rr := r.renderers[evt.Type]; rr != nil {
		rr.Handle(r, evt)
	}
	if evt.IsFinal() {
		r.turnID = ""
	}
}

// AppendUser 输出用户输入块。
func (r *Renderer) AppendUser(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ScrollbackAppend(newUserCell(text))
}

// AppendMessages 回放已有历史，只显示用户与助手文本。
func (r *Renderer) AppendMessages(msgs []agent.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		switch m.Role {
		case agent.RoleUser:
			r.ScrollbackAppend(newUserCell(m.Content))
		case agent.RoleAssistant:
			if m.Content != "" {
				r.ScrollbackAppend(newAssistantCell(m.Content))
			}
		}
	}
}

// Interrupted 在回合被取消时调用，输出已缓存的片段并提示中断。
func (r *Renderer) Interrupted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushActive()
	r.ScrollbackAppend(newNoticeCell("interrupted"))
	r.turnID = ""
}

func (r *Renderer) ScrollbackAppend(cell HistoryCell) {
	if r == nil || cell == nil || r.scrollback == nil {
		return
	}
	r.scrollback.SetWidth(r.width)
	r.scrollback.AppendCell(cell)
}

func (r *Renderer) flushActive() {
	r.ScrollbackAppend(r.active.Flush())
}

func defaultCellRenderers() []EventCellRenderer {
	return []EventCellRenderer{
		textDeltaRenderer{},
		reasoningNoteRenderer{},
		toolStartedRenderer{},
		toolFinishedRenderer{},
		finalRenderer{},
	}
}

type textDeltaRenderer struct{}

func (textDeltaRenderer) Type() events.EventType { return events.EventTextDelta }

func (textDeltaRenderer) Handle(r *Renderer, evt events.Event) {
	r.active.AppendDelta(evt.TurnID, evt.Text)
}

type reasoningNoteRenderer struct{}

func (reasoningNoteRenderer) Type() events.EventType { return events.EventReasoningNote }

func (reasoningNoteRenderer) Handle(r *Renderer, evt events.Event) {
	r.flushActive()
	r.ScrollbackAppend(newNoteCell(evt.Text))
}

type toolStartedRenderer struct{}

func (toolStartedRenderer) Type() events.EventType { return events.EventToolCallStarted }

func (toolStartedRenderer) Handle(r *Renderer, evt events.Event) {
	if evt.Tool == nil {
		return
	}
	r.flushActive()
	r.ScrollbackAppend(newToolCell(evt.Tool.CallID, tuirender.FormatToolStarted(*evt.Tool)))
}

type toolFinishedRenderer struct{}

func (toolFinishedRenderer) Type() events.EventType { return events.EventToolCallFinished }

func (toolFinishedRenderer) Handle(r *Renderer, evt events.Event) {
	if evt.Tool == nil {
		return
	}
	r.flushActive()
	r.ScrollbackAppend(newToolCell(evt.Tool.CallID, tuirender.FormatToolFinished(*evt.Tool)))
}

type finalRenderer struct{}

func (finalRenderer) Type() events.EventType { return events.EventFinal }

func (finalRenderer) Handle(r *Renderer, evt events.Event) {
	if evt.Final != nil && evt.Final.Reason == events.ReasonTransportFailure {
		// 失败说明不是模型输出，以提示样式显示。
		r.flushActive()
		r.ScrollbackAppend(newNoticeCell(evt.Text))
		return
	}
	r.ScrollbackAppend(r.active.Finalize(evt.Text))
	if notice := tuirender.FormatFinalNotice(evt.Final); notice != "" {
		r.ScrollbackAppend(newNoticeCell(notice))
	}
}
