package repl

import tuirender "codemate/internal/tui/render"

type entryCell struct {
	id    string
	entry tuirender.Entry
}

func (c entryCell) ID() string { return c.id }

func (c entryCell) Render(width int) []tuirender.Line {
	return tuirender.RenderEntry(c.entry, width)
}

func newUserCell(text string) HistoryCell {
	return entryCell{entry: tuirender.Entry{Kind: tuirender.EntryUser, Text: text}}
}

func newAssistantCell(text string) HistoryCell {
	return entryCell{entry: tuirender.Entry{Kind: tuirender.EntryAssistant, Text: text}}
}

func newNoteCell(text string) HistoryCell {
	return entryCell{entry: tuirender.Entry{Kind: tuirender.EntryNote, Text: text}}
}

func newNoticeCell(text string) HistoryCell {
	return entryCell{entry: tuirender.Entry{Kind: tuirender.EntryNotice, Text: text}}
}

func newToolCell(callID, block string) HistoryCell {
	return entryCell{id: callID, entry: tuirender.Entry{Kind: tuirender.EntryTool, Text: block}}
}
