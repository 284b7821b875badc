package context

import (
	"errors"
	"sync"

	"codemate/internal/agent"
)

// ErrConversationBusy 表示同一对话已有一个回合在运行。
var ErrConversationBusy = errors.New("conversation is already in use by another turn")

// Conversation 是只追加的消息历史。已追加的消息不会被修改，读取时返回副本。
type Conversation struct {
	mu       sync.Mutex
	messages []agent.Message
	inUse    bool
}

func NewConversation(msgs ...agent.Message) *Conversation {
	c := &Conversation{}
	c.Append(msgs...)
	return c
}

// Append 追加消息副本。
func (c *Conversation) Append(msgs ...agent.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, msg := range msgs {
		c.messages = append(c.messages, msg.Clone())
	}
}

// Messages 返回当前历史的快照。
func (c *Conversation) Messages() []agent.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]agent.Message, len(c.messages))
	for i, msg := range c.messages {
		out[i] = msg.Clone()
	}
	return out
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *Conversation) Last() (agent.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return agent.Message{}, false
	}
	return c.messages[len(c.messages)-1].Clone(), true
}

// Acquire 标记对话被某个回合独占，重复获取返回 ErrConversationBusy。
func (c *Conversation) Acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inUse {
		return ErrConversationBusy
	}
	c.inUse = true
	return nil
}

func (c *Conversation) Release() {
	c.mu.Lock()
	c.inUse = false
	c.mu.Unlock()
}
