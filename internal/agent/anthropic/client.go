package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"codemate/internal/agent"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 4096

type Options struct {
	Token          string
	BaseURL        string
	Model          string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

// Client 通过 Messages 接口访问 Anthropic 兼容端点。
type Client struct {
	api   *anthropic.Client
	model string
}

var _ agent.ModelClient = (*Client)(nil)

func New(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, errors.New("missing ANTHROPIC_AUTH_TOKEN")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(token),
		option.WithMaxRetries(0),
	}
	if base := normalizeBaseURL(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	if opts.RequestTimeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.RequestTimeout))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	client := anthropic.NewClient(reqOpts...)
	return &Client{
		api:   &client,
		model: strings.TrimSpace(opts.Model),
	}, nil
}

// normalizeBaseURL 去掉末尾的 /v1，SDK 自行拼接 /v1/messages。
func normalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	base = strings.TrimSuffix(base, "/v1")
	return strings.TrimRight(base, "/")
}

func (c *Client) resolveModel(m string) anthropic.Model {
	if strings.TrimSpace(m) != "" {
		return anthropic.Model(strings.TrimSpace(m))
	}
	return anthropic.Model(c.model)
}

func (c *Client) Complete(ctx context.Context, prompt agent.Prompt) (agent.Response, error) {
	msg, err := c.api.Messages.New(ctx, buildMessageParams(prompt, c.resolveModel(prompt.Model)))
	if err != nil {
		return agent.Response{}, wrapHTTPError(err)
	}
	out := agent.Response{FinishReason: string(msg.StopReason)}
	var text, thinking strings.Builder
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(v.Text)
		case anthropic.ThinkingBlock:
			thinking.WriteString(v.Thinking)
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, agent.ToolCallDelta{
				Index:     len(out.ToolCalls),
				ID:        v.ID,
				Name:      v.Name,
				Arguments: string(v.Input),
			})
		}
	}
	out.Text = text.String()
	out.Reasoning = thinking.String()
	return out, nil
}

func (c *Client) Stream(ctx context.Context, prompt agent.Prompt, onEvent func(agent.StreamEvent)) error {
	stream := c.api.Messages.NewStreaming(ctx, buildMessageParams(prompt, c.resolveModel(prompt.Model)))
	defer stream.Close()

	state := newToolUseStreamState()
	for stream.Next() {
		if done := state.Handle(stream.Current().AsAny(), onEvent); done {
			return nil
		}
	}
	if err := stream.Err(); err != nil {
		return wrapHTTPError(err)
	}
	onEvent(agent.StreamEvent{Type: agent.StreamEventCompleted, FinishReason: state.stopReason})
	return nil
}

// toolUseStreamState 记录哪些 content block 是 tool_use，以便在 block 结束时发出完成信号。
type toolUseStreamState struct {
	toolBlocks map[int64]bool
	stopReason string
}

func newToolUseStreamState() *toolUseStreamState {
	return &toolUseStreamState{toolBlocks: make(map[int64]bool)}
}

// Handle 转换单个 SDK 事件，收到 message_stop 时返回 true。
func (s *toolUseStreamState) Handle(event any, onEvent func(agent.StreamEvent)) bool {
	switch v := event.(type) {
	case anthropic.ContentBlockStartEvent:
		if b, ok := v.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
			s.toolBlocks[v.Index] = true
			onEvent(agent.StreamEvent{
				Type:     agent.StreamEventToolCallDelta,
				ToolCall: agent.ToolCallDelta{Index: int(v.Index), ID: b.ID, Name: b.Name},
			})
		}
	case anthropic.ContentBlockDeltaEvent:
		switch d := v.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			if d.Text != "" {
				onEvent(agent.StreamEvent{Type: agent.StreamEventTextDelta, Text: d.Text})
			}
		case anthropic.ThinkingDelta:
			if d.Thinking != "" {
				onEvent(agent.StreamEvent{Type: agent.StreamEventReasoningDelta, Text: d.Thinking})
			}
		case anthropic.InputJSONDelta:
			if d.PartialJSON != "" {
				onEvent(agent.StreamEvent{
					Type:     agent.StreamEventToolCallDelta,
					ToolCall: agent.ToolCallDelta{Index: int(v.Index), Arguments: d.PartialJSON},
				})
			}
		}
	case anthropic.ContentBlockStopEvent:
		if s.toolBlocks[v.Index] {
			delete(s.toolBlocks, v.Index)
			onEvent(agent.StreamEvent{Type: agent.StreamEventToolCallDone, ToolCall: agent.ToolCallDelta{Index: int(v.Index)}})
		}
	case anthropic.MessageDeltaEvent:
		if v.Delta.StopReason != "" {
			s.stopReason = string(v.Delta.StopReason)
		}
	case anthropic.MessageStopEvent:
		onEvent(agent.StreamEvent{Type: agent.StreamEventCompleted, FinishReason: s.stopReason})
		return true
	}
	return false
}

func buildMessageParams(prompt agent.Prompt, model anthropic.Model) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) > 0 {
			messages = append(messages, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range prompt.Messages {
		if msg.Role == agent.RoleTool {
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, isErrorContent(msg.Content)))
			continue
		}
		flushResults()

		text := strings.TrimSpace(msg.Content)
		switch msg.Role {
		case agent.RoleSystem:
			if text != "" {
				system = append(system, anthropic.TextBlockParam{Text: text})
			}
		case agent.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, json.RawMessage(call.Arguments), call.Name))
			}
			if len(blocks) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			if text != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
			}
		}
	}
	flushResults()

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: defaultMaxTokens,
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(prompt.Tools) > 0 {
		params.Tools = toTools(prompt.Tools)
	}
	return params
}

func toTools(specs []agent.ToolSpec) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		schema := anthropic.ToolInputSchemaParam{Properties: spec.Parameters["properties"]}
		switch req := spec.Parameters["required"].(type) {
		case []string:
			schema.Required = req
		case []any:
			for _, r := range req {
				if s, ok := r.(string); ok {
					schema.Required = append(schema.Required, s)
				}
			}
		}
		tool := &anthropic.ToolParam{Name: spec.Name, InputSchema: schema}
		if desc := strings.TrimSpace(spec.Description); desc != "" {
			tool.Description = anthropic.String(desc)
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: tool})
	}
	return tools
}

// isErrorContent 识别 agent.ToolResult.Content 生成的失败对象。
func isErrorContent(content string) bool {
	var shape struct {
		Error string `json:"error"`
		Class string `json:"class"`
	}
	if err := json.Unmarshal([]byte(content), &shape); err != nil {
		return false
	}
	return shape.Error != "" && shape.Class != ""
}

func wrapHTTPError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) || apiErr == nil {
		return err
	}
	var header http.Header
	if apiErr.Response != nil {
		header = apiErr.Response.Header
	}
	return agent.NewAPIError(apiErr.StatusCode, strings.TrimSpace(apiErr.RawJSON()), header)
}
