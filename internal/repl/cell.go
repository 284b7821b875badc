package repl

import tuirender "codemate/internal/tui/render"

// HistoryCell 是写入终端后不再变化的输出块，每个事件映射为零个或多个 cell。
type HistoryCell interface {
	// ID 用于关联同一工具调用的多个 cell，空串表示仅追加。
	ID() string
	Render(width int) []tuirender.Line
}
