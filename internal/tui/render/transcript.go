package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	userPrefixStyle      = lipgloss.NewStyle().Faint(true).Bold(true)
	userIndentStyle      = lipgloss.NewStyle().Faint(true)
	assistantPrefixStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	toolStyle            = lipgloss.NewStyle().Faint(true)
	noteStyle            = lipgloss.NewStyle().Faint(true).Italic(true)
	warnStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("#D97706"))
)

// EntryKind 区分 transcript 中的块类型。
type EntryKind int

const (
	EntryUser EntryKind = iota + 1
	EntryAssistant
	EntryTool
	EntryNote
	EntryNotice
)

// Entry 是 transcript 中的一个块。
type Entry struct {
	Kind EntryKind
	Text string
}

// RenderEntry 将单个块渲染为行。
func RenderEntry(e Entry, width int) []Line {
	content := strings.TrimRight(e.Text, "\n")
	switch e.Kind {
	case EntryUser:
		return renderUserLines(content, width)
	case EntryAssistant:
		return renderAssistantLines(content, width)
	case EntryTool:
		return renderToolLines(content, width)
	case EntryNote:
		return PrefixLines(wrapLines(content, width-4, noteStyle), Span{Text: "  ~ ", Style: noteStyle}, Span{Text: "    ", Style: noteStyle})
	case EntryNotice:
		return PrefixLines(wrapLines(content, width-2, warnStyle), Span{Text: "! ", Style: warnStyle}, Span{Text: "  ", Style: warnStyle})
	default:
		return wrapLines(content, width, lipgloss.Style{})
	}
}

func renderUserLines(content string, width int) []Line {
	body := wrapLines(content, width-2, lipgloss.Style{})
	lines := []Line{styledLine("", userPrefixStyle)}
	lines = append(lines, PrefixLines(body, Span{Text: "› ", Style: userPrefixStyle}, Span{Text: "  ", Style: userIndentStyle})...)
	return append(lines, styledLine("", userPrefixStyle))
}

func renderAssistantLines(content string, width int) []Line {
	body := wrapLines(content, width-2, lipgloss.Style{})
	return PrefixLines(body, Span{Text: "• ", Style: assistantPrefixStyle}, Span{Text: "  ", Style: assistantPrefixStyle})
}

// renderToolLines 保留工具块自带的缩进，只按列折行。
func renderToolLines(content string, width int) []Line {
	if width > 2 {
		width -= 2
	}
	var out []Line
	for _, raw := range strings.Split(content, "\n") {
		for _, l := range wrapPreserveSpaces(raw, width) {
			out = append(out, styledLine(l, toolStyle))
		}
	}
	if len(out) == 0 {
		return []Line{{}}
	}
	return out
}

func wrapLines(content string, width int, style lipgloss.Style) []Line {
	if width < 1 {
		width = 1
	}
	raw := wrapText(content, width)
	out := make([]Line, 0, len(raw))
	for _, l := range raw {
		out = append(out, styledLine(l, style))
	}
	return out
}

// Transcript 维护界面上显示的块序列，流式文本追加到最后一个助手块。
type Transcript struct {
	entries []Entry
	// streaming 表示最后一个助手块仍在接收片段。
	streaming bool
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

func (t *Transcript) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

func (t *Transcript) Reset() {
	t.entries = nil
	t.streaming = false
}

func (t *Transcript) AppendUser(text string) {
	t.append(Entry{Kind: EntryUser, Text: text})
}

// AppendAssistantChunk 追加流式片段，必要时开启新的助手块。
func (t *Transcript) AppendAssistantChunk(chunk string) {
	if chunk == "" {
		return
	}
	if !t.streaming {
		t.entries = append(t.entries, Entry{Kind: EntryAssistant})
		t.streaming = true
	}
	t.entries[len(t.entries)-1].Text += chunk
}

// FinalizeAssistant 结束当前助手块。final 非空且尚未流式显示时作为新块追加。
func (t *Transcript) FinalizeAssistant(final string) {
	streamed := t.streaming
	t.streaming = false
	if streamed {
		last := &t.entries[len(t.entries)-1]
		if strings.TrimSpace(final) != "" && strings.TrimSpace(last.Text) != strings.TrimSpace(final) {
			t.entries = append(t.entries, Entry{Kind: EntryAssistant, Text: final})
		}
		return
	}
	if strings.TrimSpace(final) != "" {
		t.entries = append(t.entries, Entry{Kind: EntryAssistant, Text: final})
	}
}

func (t *Transcript) AppendToolBlock(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	t.append(Entry{Kind: EntryTool, Text: text})
}

func (t *Transcript) AppendNote(text string) {
	t.append(Entry{Kind: EntryNote, Text: text})
}

func (t *Transcript) AppendNotice(text string) {
	t.append(Entry{Kind: EntryNotice, Text: text})
}

// LastAssistant 返回最后一个助手块的文本。
func (t *Transcript) LastAssistant() string {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Kind == EntryAssistant && strings.TrimSpace(t.entries[i].Text) != "" {
			return t.entries[i].Text
		}
	}
	return ""
}

func (t *Transcript) append(e Entry) {
	t.streaming = false
	t.entries = append(t.entries, e)
}

// RenderLines 渲染完整 transcript，块之间不额外插入空行。
func (t *Transcript) RenderLines(width int) []Line {
	var out []Line
	for _, e := range t.entries {
		out = append(out, RenderEntry(e, width)...)
	}
	return out
}
