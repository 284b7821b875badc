package render

// PrefixLines 为首行与续行分别添加前缀。
func PrefixLines(lines []Line, initial Span, subsequent Span) []Line {
	out := make([]Line, 0, len(lines))
	for i, l := range lines {
		spans := make([]Span, 0, len(l.Spans)+1)
		if i == 0 {
			spans = append(spans, initial)
		} else {
			spans = append(spans, subsequent)
		}
		spans = append(spans, l.Spans...)
		out = append(out, Line{Spans: spans, Style: l.Style})
	}
	return out
}

// PlainText 返回去掉样式后的文本，用于测试与复制。
func PlainText(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		text := ""
		for _, sp := range line.Spans {
			text += sp.Text
		}
		out = append(out, text)
	}
	return out
}
