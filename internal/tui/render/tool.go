package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"codemate/internal/events"
)

const maxToolBlockLines = 12

// FormatToolStarted 生成工具开始执行的单行描述，例如 `• list_files path=src`。
func FormatToolStarted(info events.ToolInfo) string {
	args := formatArgs(info.Args)
	if args == "" {
		return "• " + info.Name
	}
	return fmt.Sprintf("• %s %s", info.Name, args)
}

// FormatToolFinished 生成工具结束块：状态行加缩进的摘要。
func FormatToolFinished(info events.ToolInfo) string {
	var sb strings.Builder
	if info.Success {
		sb.WriteString("✓ " + info.Name)
	} else {
		sb.WriteString("✗ " + info.Name + " failed")
		if info.Class != "" {
			sb.WriteString(" (" + info.Class + ")")
		}
	}
	if info.Truncated {
		sb.WriteString(" [truncated]")
	}
	if summary := strings.TrimSpace(info.Summary); summary != "" {
		sb.WriteString("\n  └ ")
		sb.WriteString(indentTruncated(summary, maxToolBlockLines))
	}
	return sb.String()
}

// FormatFinalNotice 描述降级结束的原因，正常结束返回空串。
func FormatFinalNotice(info *events.FinalInfo) string {
	if info == nil || !info.Degraded {
		return ""
	}
	switch info.Reason {
	case events.ReasonRoundCap:
		return "tool round limit reached; answer is based on partial results"
	case events.ReasonEmptyResponse:
		return "the model returned an empty response"
	case events.ReasonFallback:
		return "answer recovered with a non-streaming retry"
	case events.ReasonTransportFailure:
		return "the model request failed"
	default:
		return string(info.Reason)
	}
}

// formatArgs 将参数对象渲染为按键排序的 k=v 列表。
func formatArgs(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || len(obj) == 0 {
		return ""
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if strings.ContainsAny(v, " \t") {
				parts = append(parts, fmt.Sprintf("%s=%q", k, v))
			} else {
				parts = append(parts, k+"="+v)
			}
		default:
			data, _ := json.Marshal(v)
			parts = append(parts, k+"="+string(data))
		}
	}
	return strings.Join(parts, " ")
}

func indentTruncated(text string, limit int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	truncated := false
	if limit > 0 && len(lines) > limit {
		lines = lines[:limit]
		truncated = true
	}
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}
	out := strings.Join(lines, "\n    ")
	if truncated {
		out += "\n    … (truncated)"
	}
	return out
}
