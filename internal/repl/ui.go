package repl

import (
	"codemate/internal/agent"
	"codemate/internal/tui"
)

// UIOptions 描述启动 TUI 所需的依赖。
type UIOptions struct {
	Gateway       *Gateway
	Repository    tui.Repository
	Tools         []agent.ToolSpec
	Model         string
	InitialPrompt string
	AltScreen     bool
}

// UIResult 返回 TUI 退出时的对话历史。
type UIResult struct {
	History []agent.Message
}

// RunUI 启动 Bubble Tea 界面并阻塞到退出。
func RunUI(opts UIOptions) (UIResult, error) {
	res, err := tui.Run(tui.Options{
		Gateway:       opts.Gateway,
		Repository:    opts.Repository,
		Tools:         opts.Tools,
		Model:         opts.Model,
		InitialPrompt: opts.InitialPrompt,
		AltScreen:     opts.AltScreen,
	})
	if err != nil {
		return UIResult{}, err
	}
	return UIResult{History: res.History}, nil
}
