package agent

import (
	"context"
	"strings"

	"codemate/internal/logger"
)

// ModelClient 定义模型客户端接口。
// Stream 在片段到达时同步回调 onEvent，并以 StreamEventCompleted 结束一次成功的流；
// 出错时返回的 error 应可通过 errors.As 取得 *APIError。
type ModelClient interface {
	Stream(ctx context.Context, prompt Prompt, onEvent func(StreamEvent)) error
	Complete(ctx context.Context, prompt Prompt) (Response, error)
}

// ToLLMMessages 将内部消息转换为日志友好的结构。
func ToLLMMessages(msgs []Message) []logger.LLMMessage {
	out := make([]logger.LLMMessage, 0, len(msgs))
	for _, msg := range msgs {
		content := msg.Content
		if len(msg.ToolCalls) > 0 {
			names := make([]string, 0, len(msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				names = append(names, call.Name)
			}
			content += " [tool_calls=" + strings.Join(names, ",") + "]"
		}
		if msg.ToolCallID != "" {
			content = "[" + msg.ToolCallID + "] " + content
		}
		out = append(out, logger.LLMMessage{
			Role:    string(msg.Role),
			Content: content,
		})
	}
	return out
}
