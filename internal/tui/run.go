package tui

import (
	"errors"

	"codemate/internal/agent"

	tea "github.com/charmbracelet/bubbletea"
)

// Result 返回 TUI 退出时的对话历史。
type Result struct {
	History []agent.Message
}

// Run 启动 Bubble Tea 程序并阻塞到用户退出。
func Run(opts Options) (Result, error) {
	programOptions := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if opts.AltScreen {
		programOptions = append(programOptions, tea.WithAltScreen())
	}
	program := tea.NewProgram(New(opts), programOptions...)
	m, err := program.Run()
	if err != nil {
		return Result{}, err
	}
	tuiModel, ok := m.(*Model)
	if !ok {
		return Result{}, errors.New("unexpected tui model")
	}
	tuiModel.interrupt()
	return Result{History: tuiModel.History()}, nil
}
