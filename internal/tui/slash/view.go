package slash

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	nameStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#C4A1FF"))
	descStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	highlightStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EBCB8B"))
	selectedStyle  = lipgloss.NewStyle().Background(lipgloss.Color("#2F2A3D"))
)

// View 渲染弹窗内容（不含边框），每个命令占一行。
func (s *State) View(width int) string {
	if s == nil || !s.open {
		return ""
	}
	if width < 24 {
		width = 24
	}
	if len(s.matches) == 0 {
		return descStyle.Render("no matches")
	}

	nameWidth := 0
	for _, m := range s.matches {
		if w := runewidth.StringWidth(m.item.DisplayName() + " " + m.item.Usage); w > nameWidth {
			nameWidth = w
		}
	}
	if nameWidth > width/2 {
		nameWidth = width / 2
	}
	descWidth := width - nameWidth - 2

	start, end := window(len(s.matches), s.selected, s.maxLines)
	lines := make([]string, 0, end-start)
	for idx := start; idx < end; idx++ {
		m := s.matches[idx]
		name := applyHighlights(m.item.DisplayName(), m.highlights)
		if m.item.Usage != "" {
			name += " " + descStyle.Render(m.item.Usage)
		}
		cell := lipgloss.NewStyle().Width(nameWidth).Render(nameStyle.Render(name))
		desc := descStyle.Render(runewidth.Truncate(m.item.Description, descWidth, "…"))
		line := fmt.Sprintf("%s  %s", cell, desc)
		if idx == s.selected {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// window 返回包含选中项的可见区间。
func window(total, selected, maxLines int) (int, int) {
	if maxLines <= 0 || total <= maxLines {
		return 0, total
	}
	start := 0
	if selected >= maxLines {
		start = selected - maxLines + 1
	}
	return start, start + maxLines
}

func applyHighlights(name string, indexes []int) string {
	if len(indexes) == 0 {
		return name
	}
	marked := make(map[int]bool, len(indexes))
	for _, idx := range indexes {
		marked[idx] = true
	}
	var b strings.Builder
	for i, r := range []rune(name) {
		if marked[i] {
			b.WriteString(highlightStyle.Render(string(r)))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
