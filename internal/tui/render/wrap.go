package render

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// wrapText 按显示宽度进行词级换行，宽字符按两列计算。
func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		if raw == "" {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, wrapLine(raw, width)...)
	}
	if len(lines) == 0 {
		lines = append(lines, "")
	}
	return lines
}

func wrapLine(line string, width int) []string {
	if runewidth.StringWidth(line) <= width {
		return []string{line}
	}
	var out []string
	current := ""
	for _, word := range strings.Fields(line) {
		ww := runewidth.StringWidth(word)
		switch {
		case current == "" && ww > width:
			out = append(out, breakLongWord(word, width)...)
		case current == "":
			current = word
		case runewidth.StringWidth(current)+1+ww <= width:
			current += " " + word
		case ww > width:
			out = append(out, current)
			out = append(out, breakLongWord(word, width)...)
			current = ""
		default:
			out = append(out, current)
			current = word
		}
	}
	if current != "" {
		out = append(out, current)
	}
	if len(out) == 0 {
		return []string{line}
	}
	return out
}

// breakLongWord 将超宽单词按列切开，同时用于保留空白的逐字符换行。
func breakLongWord(word string, width int) []string {
	var out []string
	current := []rune{}
	w := 0
	for _, r := range word {
		rw := runewidth.RuneWidth(r)
		if w+rw > width && len(current) > 0 {
			out = append(out, string(current))
			current = current[:0]
			w = 0
		}
		current = append(current, r)
		w += rw
	}
	if len(current) > 0 {
		out = append(out, string(current))
	}
	return out
}

// wrapPreserveSpaces 逐列换行，保留缩进与连续空格，用于工具输出块。
func wrapPreserveSpaces(line string, width int) []string {
	if width <= 0 || runewidth.StringWidth(line) <= width {
		return []string{line}
	}
	return breakLongWord(line, width)
}
