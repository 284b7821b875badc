package repl

import "strings"

// ActiveCell 缓存仍在流式到达的助手文本，在工具事件或 final 到来时 flush 为 cell。
type ActiveCell struct {
	turnID string
	buf    strings.Builder
}

func (c *ActiveCell) AppendDelta(turnID, delta string) {
	if delta == "" {
		return
	}
	if c.turnID == "" {
		c.turnID = turnID
	}
	if c.turnID != turnID {
		return
	}
	c.buf.WriteString(delta)
}

func (c *ActiveCell) Text() string {
	return c.buf.String()
}

// Flush 将已缓存的文本转为 cell 并清空，无内容时返回 nil。
func (c *ActiveCell) Flush() HistoryCell {
	text := strings.TrimSpace(c.buf.String())
	c.Clear()
	if text == "" {
		return nil
	}
	return newAssistantCell(text)
}

// Finalize 结束回合，finalText 非空时取代已缓存的片段。
func (c *ActiveCell) Finalize(finalText string) HistoryCell {
	pending := strings.TrimSpace(c.buf.String())
	c.Clear()
	text := strings.TrimSpace(finalText)
	if text == "" {
		text = pending
	}
	if text == "" {
		return nil
	}
	return newAssistantCell(text)
}

func (c *ActiveCell) Clear() {
	c.turnID = ""
	c.buf.Reset()
}
