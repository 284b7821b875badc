package execution

import (
	"fmt"
	"strings"

	"codemate/internal/agent"
)

// summaryListLimit 限制本地总结中每个列表的条目数。
const summaryListLimit = 6

type roundCapSummaryArgs struct {
	MaxToolRounds int
	ToolResults   []agent.ToolResult
	Err           error
}

// formatRoundCapSummary 在模型总结不可用时，根据已执行的工具结果生成进度说明。
func formatRoundCapSummary(args roundCapSummaryArgs) string {
	completed, issues := buildSummaryItems(args.ToolResults)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Stopped after reaching the tool round limit (%d).", args.MaxToolRounds))
	if args.Err != nil {
		b.WriteString(" The summary request failed, so this is a local recap.")
	}
	b.WriteString("\n\nCompleted:\n")
	appendSummaryList(&b, completed, summaryListLimit)
	b.WriteString("Issues:\n")
	appendSummaryList(&b, issues, summaryListLimit)
	b.WriteString("\nAsk a narrower question or continue to pick up from here.")
	return b.String()
}

func buildSummaryItems(results []agent.ToolResult) ([]string, []string) {
	var completed []string
	var issues []string
	for _, res := range results {
		if res.Success {
			completed = append(completed, formatToolSuccess(res))
			continue
		}
		issues = append(issues, formatToolFailure(res))
	}
	return completed, issues
}

func appendSummaryList(b *strings.Builder, items []string, limit int) {
	if len(items) == 0 {
		b.WriteString("- none\n")
		return
	}
	if limit <= 0 {
		limit = len(items)
	}
	for i, item := range items {
		if i >= limit {
			b.WriteString(fmt.Sprintf("- ... and %d more\n", len(items)-limit))
			break
		}
		b.WriteString("- " + item + "\n")
	}
}

func formatToolSuccess(res agent.ToolResult) string {
	line := res.Name
	if res.Truncated {
		line += " (output truncated)"
	}
	return line
}

func formatToolFailure(res agent.ToolResult) string {
	msg := truncateOneLine(res.Error, 160)
	if msg == "" {
		msg = "failed"
	}
	if res.Class != agent.ErrorClassNone {
		return fmt.Sprintf("%s [%s]: %s", res.Name, res.Class, msg)
	}
	return fmt.Sprintf("%s: %s", res.Name, msg)
}

func truncateOneLine(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
