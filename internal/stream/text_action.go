package stream

import (
	"encoding/json"
	"strings"
)

const (
	ActionCallTool    = "_call_tool"
	ActionFinalAnswer = "final_answer"
)

// TextAction 是模型以纯文本输出的动作对象。
type TextAction struct {
	Action string          `json:"action"`
	Tool   string          `json:"tool"`
	Args   json.RawMessage `json:"args"`
	Answer string          `json:"answer"`
}

// ParseTextAction 只接受整段文本（可带 ``` 围栏）恰好是一个带已知 action 的 JSON 对象。
// 正文里夹带的 JSON 片段不会被当作动作。
func ParseTextAction(text string) (TextAction, bool) {
	body := stripCodeFence(strings.TrimSpace(text))
	if !strings.HasPrefix(body, "{") || !strings.HasSuffix(body, "}") {
		return TextAction{}, false
	}
	var act TextAction
	if err := json.Unmarshal([]byte(body), &act); err != nil {
		return TextAction{}, false
	}
	switch act.Action {
	case ActionCallTool, ActionFinalAnswer:
		return act, true
	}
	return TextAction{}, false
}

// MayBeTextAction 报告已收到的文本前缀是否可能是一个动作对象，流式转发据此暂缓输出。
func MayBeTextAction(prefix string) bool {
	p := strings.TrimSpace(prefix)
	return strings.HasPrefix(p, "{") || strings.HasPrefix(p, "```")
}

func stripCodeFence(s string) string {
	if len(s) < 6 || !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") {
		return s
	}
	inner := s[3 : len(s)-3]
	// 去掉语言标记，例如 ```json
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.HasPrefix(strings.TrimSpace(inner[:nl]), "{") {
		inner = inner[nl+1:]
	}
	return strings.TrimSpace(inner)
}
