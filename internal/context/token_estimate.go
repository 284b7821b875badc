package context

import (
	"encoding/json"

	"codemate/internal/agent"
)

// EstimatePromptTokens 不依赖 tokenizer，按请求 JSON 的 bytes/4 粗估，仅用于日志。
func EstimatePromptTokens(prompt agent.Prompt) int {
	raw, err := json.Marshal(struct {
		Messages []agent.Message  `json:"messages"`
		Tools    []agent.ToolSpec `json:"tools,omitempty"`
	}{prompt.Messages, prompt.Tools})
	if err != nil {
		total := 0
		for _, msg := range prompt.Messages {
			total += ApproxTokenCount(msg.Content)
		}
		return total
	}
	return ApproxTokenCount(string(raw))
}
