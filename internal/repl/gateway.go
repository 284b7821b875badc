package repl

import (
	"context"
	"errors"
	"strings"
	"sync"

	"codemate/internal/agent"
	tcontext "codemate/internal/context"
	"codemate/internal/events"
)

// Runner 启动一个回合，由 *execution.Engine 实现。
type Runner interface {
	Run(ctx context.Context, conv *tcontext.Conversation) (<-chan events.Event, error)
}

// Gateway 把用户输入写入对话历史并启动回合，是 REPL 与 TUI 共用的入口。
type Gateway struct {
	runner Runner

	mu      sync.Mutex
	conv    *tcontext.Conversation
	running bool
}

// NewGateway 创建网关，initial 为已有历史（可为空）。
func NewGateway(runner Runner, initial ...agent.Message) *Gateway {
	return &Gateway{runner: runner, conv: tcontext.NewConversation(initial...)}
}

// SubmitUserInput 追加一条 user 消息并启动回合。返回的通道在回合结束后关闭。
// 上一回合未结束或回合启动失败时返回错误，历史不变。
func (g *Gateway) SubmitUserInput(ctx context.Context, text string) (<-chan events.Event, error) {
	if g.runner == nil {
		return nil, errors.New("repl gateway runner not configured")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty input")
	}

	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return nil, tcontext.ErrConversationBusy
	}
	conv := g.conv
	prev := conv.Messages()
	conv.Append(agent.UserMessage(text))
	src, err := g.runner.Run(ctx, conv)
	if err != nil {
		// 回合未启动，撤回刚追加的 user 消息。
		g.conv = tcontext.NewConversation(prev...)
		g.mu.Unlock()
		return nil, err
	}
	g.running = true
	g.mu.Unlock()

	out := make(chan events.Event, cap(src))
	go func() {
		defer close(out)
		defer g.finish()
		for evt := range src {
			out <- evt
		}
	}()
	return out, nil
}

func (g *Gateway) finish() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
}

// Busy 报告是否有回合正在运行。
func (g *Gateway) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Reset 丢弃历史开始新对话，回合运行中不可重置。
func (g *Gateway) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return tcontext.ErrConversationBusy
	}
	g.conv = tcontext.NewConversation()
	return nil
}

// History 返回当前对话历史的副本。
func (g *Gateway) History() []agent.Message {
	g.mu.Lock()
	conv := g.conv
	g.mu.Unlock()
	return conv.Messages()
}
