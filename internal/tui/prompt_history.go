package tui

import (
	"strings"

	"codemate/internal/agent"
)

// promptHistory 保存已提交的输入，供输入框上下箭头浏览。
// cursor == len(entries) 表示正在编辑新的输入。
type promptHistory struct {
	entries []string
	cursor  int
	draft   string
}

// Seed 用对话中的 user 消息初始化历史。
func (h *promptHistory) Seed(msgs []agent.Message) {
	h.entries = h.entries[:0]
	for _, m := range msgs {
		if m.Role == agent.RoleUser && strings.TrimSpace(m.Content) != "" {
			h.entries = append(h.entries, m.Content)
		}
	}
	h.ResetBrowsing()
}

// Add 记录一次提交，与上一条相同时不重复记录。
func (h *promptHistory) Add(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if n := len(h.entries); n == 0 || h.entries[n-1] != text {
		h.entries = append(h.entries, text)
	}
	h.ResetBrowsing()
}

func (h *promptHistory) Browsing() bool {
	return h.cursor < len(h.entries)
}

func (h *promptHistory) ResetBrowsing() {
	h.cursor = len(h.entries)
	h.draft = ""
}

// Prev 返回上一条历史，首次进入浏览时保存当前草稿。
func (h *promptHistory) Prev(current string) (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if h.cursor == len(h.entries) {
		h.draft = current
	}
	if h.cursor > 0 {
		h.cursor--
	}
	return h.entries[h.cursor], true
}

// Next 返回下一条历史，越过最后一条时恢复草稿。
func (h *promptHistory) Next() (string, bool) {
	if h.cursor >= len(h.entries) {
		return "", false
	}
	h.cursor++
	if h.cursor == len(h.entries) {
		return h.draft, true
	}
	return h.entries[h.cursor], true
}
