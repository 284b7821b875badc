package context

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const approxBytesPerToken = 4

// ApproxTokenCount 以 ceil(bytes/4) 粗略估算 token 数。
func ApproxTokenCount(text string) int {
	return (len(text) + approxBytesPerToken - 1) / approxBytesPerToken
}

// FormattedTruncateText 在超出 maxBytes 时保留首尾并在中间插入截断标记，
// 同时在开头注明原始行数，方便模型判断输出规模。返回值第二项表示是否发生截断。
func FormattedTruncateText(content string, maxBytes int) (string, bool) {
	if maxBytes <= 0 || len(content) <= maxBytes {
		return content, false
	}
	header := "Total output lines: " + strconv.Itoa(countLines(content)) + "\n\n"
	return header + TruncateMiddle(content, maxBytes), true
}

// TruncateMiddle 按 UTF-8 字符边界截断，形如 "head…N chars truncated…tail"。
func TruncateMiddle(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	if maxBytes <= 0 {
		return marker(utf8.RuneCountInString(s))
	}
	left := maxBytes / 2
	right := maxBytes - left
	removed, prefix, suffix := splitStringUTF8(s, left, right)
	return prefix + marker(removed) + suffix
}

// Preview 截取前 limit 个字符，超出时追加 "..."。
func Preview(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for idx := range s {
		if count == limit {
			return s[:idx] + "..."
		}
		count++
	}
	return s
}

func marker(removed int) string {
	return "…" + strconv.Itoa(removed) + " chars truncated…"
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	lines := strings.Count(s, "\n") + 1
	if strings.HasSuffix(s, "\n") {
		lines--
	}
	return lines
}

// splitStringUTF8 返回被移除的字符数以及不超过 prefixBytes/suffixBytes 的首尾片段。
func splitStringUTF8(s string, prefixBytes, suffixBytes int) (removed int, prefix, suffix string) {
	tailStart := len(s) - max(suffixBytes, 0)
	prefixEnd := 0
	suffixStart := len(s)
	inSuffix := false

	for idx := range s {
		_, size := utf8.DecodeRuneInString(s[idx:])
		end := idx + size
		switch {
		case end <= prefixBytes:
			prefixEnd = end
		case idx >= tailStart:
			if !inSuffix {
				suffixStart = idx
				inSuffix = true
			}
		default:
			removed++
		}
	}
	if suffixStart < prefixEnd {
		suffixStart = prefixEnd
	}
	return removed, s[:prefixEnd], s[suffixStart:]
}
