package repl

import (
	"testing"

	tuirender "codemate/internal/tui/render"
)

type countingWriter struct {
	writes []string
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes = append(w.writes, string(p))
	return len(p), nil
}

type linesCell struct {
	lines []string
	width int
}

func (c *linesCell) ID() string { return "" }

func (c *linesCell) Render(width int) []tuirender.Line {
	c.width = width
	out := make([]tuirender.Line, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, tuirender.Line{Spans: []tuirender.Span{{Text: l}}})
	}
	return out
}

func TestScrollbackWritesCellInOneWrite(t *testing.T) {
	w := &countingWriter{}
	sb := NewScrollback(ScrollbackOptions{Writer: w, Width: 0})

	cell := &linesCell{lines: []string{"✓ list_files", "  cmd/", "  go.mod"}}
	sb.AppendCell(cell)
	if cell.width != defaultScrollbackWidth {
		t.Fatalf("render width = %d, want %d", cell.width, defaultScrollbackWidth)
	}
	if len(w.writes) != 1 {
		t.Fatalf("expected one write, got %d: %q", len(w.writes), w.writes)
	}
	if got := stripANSI(w.writes[0]); got != "✓ list_files\n  cmd/\n  go.mod\n" {
		t.Fatalf("unexpected output %q", got)
	}

	sb.AppendCell(&linesCell{})
	sb.AppendCell(nil)
	if len(w.writes) != 1 {
		t.Fatalf("empty cells should not write, got %q", w.writes)
	}

	sb.SetWidth(-1)
	sb.SetWidth(120)
	sb.AppendCell(cell)
	if cell.width != 120 {
		t.Fatalf("render width = %d, want 120", cell.width)
	}
}
