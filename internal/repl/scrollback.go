package repl

import (
	"io"
	"os"
	"strings"

	tuirender "codemate/internal/tui/render"
)

const defaultScrollbackWidth = 80

// Scrollback 是 REPL 的输出端：完成的 cell 按当前终端宽度渲染后写入 stdout，
// 写出后不再改动。
type Scrollback struct {
	w     io.Writer
	width int
}

type ScrollbackOptions struct {
	Writer io.Writer
	Width  int
}

func NewScrollback(opts ScrollbackOptions) *Scrollback {
	sb := &Scrollback{w: opts.Writer, width: defaultScrollbackWidth}
	if sb.w == nil {
		sb.w = os.Stdout
	}
	sb.SetWidth(opts.Width)
	return sb
}

// SetWidth 忽略非正宽度，终端尺寸未知时沿用上一次的值。
func (s *Scrollback) SetWidth(width int) {
	if width > 0 {
		s.width = width
	}
}

// AppendCell 把一个 cell 整块写出。一次 Write 完成，
// 避免工具日志等其它 stdout 输出插进同一个 cell 的行之间。
func (s *Scrollback) AppendCell(cell HistoryCell) {
	if cell == nil {
		return
	}
	lines := tuirender.LinesToStrings(cell.Render(s.width))
	if len(lines) == 0 {
		return
	}
	_, _ = io.WriteString(s.w, strings.Join(lines, "\n")+"\n")
}
