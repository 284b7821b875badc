package context

import (
	"strings"
	"testing"

	"codemate/internal/agent"
)

func TestEstimatePromptTokensGrowsWithHistoryAndTools(t *testing.T) {
	base := agent.Prompt{Messages: []agent.Message{agent.UserMessage("hi")}}
	small := EstimatePromptTokens(base)
	if small <= 0 {
		t.Fatalf("estimate = %d, want > 0", small)
	}

	long := base
	long.Messages = append(long.Messages, agent.AssistantMessage(strings.Repeat("x", 400), nil))
	if got := EstimatePromptTokens(long); got < small+100 {
		t.Fatalf("estimate with 400 more bytes = %d, base %d", got, small)
	}

	withTools := base
	withTools.Tools = []agent.ToolSpec{{Name: "list_files", Description: "List a directory"}}
	if got := EstimatePromptTokens(withTools); got <= small {
		t.Fatalf("tool declarations should count, got %d base %d", got, small)
	}
}
