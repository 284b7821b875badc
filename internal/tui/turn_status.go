package tui

import (
	"fmt"
	"strings"
	"time"

	"codemate/internal/events"
	"codemate/internal/tui/render"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// turnPhase 是状态行所处的回合阶段。
type turnPhase int

const (
	phaseIdle turnPhase = iota
	phaseThinking
	phaseAnswering
	phaseTools
	phaseFailed
)

func (p turnPhase) String() string {
	switch p {
	case phaseThinking:
		return "thinking"
	case phaseAnswering:
		return "answering"
	case phaseTools:
		return "tools"
	case phaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// active 的阶段计时并允许 esc 中断。
func (p turnPhase) active() bool {
	return p == phaseThinking || p == phaseAnswering || p == phaseTools
}

var statusHintStyle = lipgloss.NewStyle().Faint(true)

// turnStatus 是输入框上方的一行回合状态，由引擎事件驱动：
// 等待模型时显示 Thinking，收到文本后为 Answering，工具执行期间显示正在运行的工具。
// 计时只在 active 阶段累加。
type turnStatus struct {
	phase   turnPhase
	running []string
	tools   int

	elapsed time.Duration
	since   time.Time
	clock   func() time.Time
}

func newTurnStatus(clock func() time.Time) *turnStatus {
	if clock == nil {
		clock = time.Now
	}
	return &turnStatus{clock: clock}
}

func (s *turnStatus) Phase() turnPhase {
	return s.phase
}

// Begin 在提交输入后调用，清零计时与工具计数。
func (s *turnStatus) Begin() {
	s.phase = phaseThinking
	s.running = nil
	s.tools = 0
	s.elapsed = 0
	s.since = s.clock()
}

// Observe 按事件推进阶段。
func (s *turnStatus) Observe(evt events.Event) {
	switch evt.Type {
	case events.EventTextDelta:
		if len(s.running) == 0 {
			s.moveTo(phaseAnswering)
		}
	case events.EventToolCallStarted:
		if evt.Tool == nil {
			return
		}
		s.running = append(s.running, evt.Tool.Name)
		s.tools++
		s.moveTo(phaseTools)
	case events.EventToolCallFinished:
		if evt.Tool == nil {
			return
		}
		s.finishTool(evt.Tool.Name)
		if len(s.running) == 0 {
			// 工具结果回传模型，等待下一轮输出。
			s.moveTo(phaseThinking)
		}
	case events.EventFinal:
		if evt.Final != nil && evt.Final.Reason == events.ReasonTransportFailure {
			s.moveTo(phaseFailed)
			return
		}
		s.moveTo(phaseIdle)
	}
}

// Stop 用于回合未收到 final 就结束（中断）的情况。
func (s *turnStatus) Stop() {
	s.running = nil
	s.moveTo(phaseIdle)
}

func (s *turnStatus) finishTool(name string) {
	for i, n := range s.running {
		if n == name {
			s.running = append(s.running[:i], s.running[i+1:]...)
			return
		}
	}
}

func (s *turnStatus) moveTo(next turnPhase) {
	now := s.clock()
	switch {
	case s.phase.active() && !next.active():
		s.elapsed += now.Sub(s.since)
	case !s.phase.active() && next.active():
		s.since = now
	}
	s.phase = next
}

func (s *turnStatus) ElapsedSeconds() uint64 {
	d := s.elapsed
	if s.phase.active() {
		d += s.clock().Sub(s.since)
	}
	return uint64(d.Seconds())
}

func (s *turnStatus) title() string {
	switch s.phase {
	case phaseThinking:
		return "Thinking"
	case phaseAnswering:
		return "Answering"
	case phaseTools:
		return "Running " + strings.Join(s.running, ", ")
	case phaseFailed:
		return "Request failed"
	}
	return ""
}

// Render 返回宽度不超过 width 的状态行，空闲时为空串。
// spin 是当前 spinner 帧，为空时用静态圆点。
func (s *turnStatus) Render(width int, spin string) string {
	if width <= 0 || s.phase == phaseIdle {
		return ""
	}
	spans := []render.Span{
		{Text: s.glyph(spin)},
		{Text: " " + s.title()},
		{Text: " " + s.hint(), Style: statusHintStyle},
	}
	spans = clampSpans(spans, width)
	if len(spans) == 0 {
		return ""
	}
	return render.LinesToStrings([]render.Line{{Spans: spans}})[0]
}

func (s *turnStatus) hint() string {
	parts := []string{fmtElapsedCompact(s.ElapsedSeconds())}
	if s.tools == 1 {
		parts = append(parts, "1 tool call")
	} else if s.tools > 1 {
		parts = append(parts, fmt.Sprintf("%d tool calls", s.tools))
	}
	if s.phase.active() {
		parts = append(parts, "esc to interrupt")
	}
	return "(" + strings.Join(parts, " • ") + ")"
}

func (s *turnStatus) glyph(spin string) string {
	if s.phase == phaseFailed {
		return "!"
	}
	if spin == "" {
		return "•"
	}
	return spin
}

func fmtElapsedCompact(secs uint64) string {
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	if secs < 3600 {
		return fmt.Sprintf("%dm %02ds", secs/60, secs%60)
	}
	return fmt.Sprintf("%dh %02dm %02ds", secs/3600, secs%3600/60, secs%60)
}

// clampSpans 按显示宽度截断，最后一个放不下的 span 截成剩余宽度。
// spinner 帧可能带 ANSI 样式，宽度用 lipgloss.Width 计算。
func clampSpans(spans []render.Span, width int) []render.Span {
	out := make([]render.Span, 0, len(spans))
	for _, sp := range spans {
		if width <= 0 {
			break
		}
		if w := lipgloss.Width(sp.Text); w <= width {
			out = append(out, sp)
			width -= w
			continue
		}
		if sp.Text = runewidth.Truncate(sp.Text, width, ""); sp.Text != "" {
			out = append(out, sp)
		}
		break
	}
	return out
}
