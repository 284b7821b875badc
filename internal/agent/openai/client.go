package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"codemate/internal/agent"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/tidwall/gjson"
)

type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

// Client 通过 Chat Completions 接口访问 OpenAI 兼容端点（Groq、OpenAI 等）。
type Client struct {
	api   *openai.Client
	model string
}

var _ agent.ModelClient = (*Client)(nil)

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("missing GROQ_API_KEY / OPENAI_API_KEY")
	}
	cfg := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		// 重试由 transport 层统一负责。
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg = append(cfg, option.WithBaseURL(strings.TrimRight(normalizeBaseURL(base), "/")))
	}
	if opts.RequestTimeout > 0 {
		cfg = append(cfg, option.WithRequestTimeout(opts.RequestTimeout))
	}
	if opts.HTTPClient != nil {
		cfg = append(cfg, option.WithHTTPClient(opts.HTTPClient))
	}
	client := openai.NewClient(cfg...)

	return &Client{
		api:   &client,
		model: opts.Model,
	}, nil
}

func (c *Client) resolveModel(model string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return c.model
}

func (c *Client) buildParams(prompt agent.Prompt) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.resolveModel(prompt.Model)),
		Messages: toChatMessages(prompt.Messages),
	}
	if len(prompt.Tools) > 0 {
		params.Tools = toChatTools(prompt.Tools)
		params.ParallelToolCalls = openai.Bool(prompt.ParallelToolCalls)
	}
	return params
}

func (c *Client) Complete(ctx context.Context, prompt agent.Prompt) (agent.Response, error) {
	resp, err := c.api.Chat.Completions.New(ctx, c.buildParams(prompt))
	if err != nil {
		return agent.Response{}, wrapHTTPError(err)
	}
	if len(resp.Choices) == 0 {
		return agent.Response{}, errors.New("no completion choices returned")
	}
	choice := resp.Choices[0]
	out := agent.Response{
		Text:         choice.Message.Content,
		Reasoning:    reasoningField(choice.Message.RawJSON()),
		FinishReason: choice.FinishReason,
	}
	for i, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, agent.ToolCallDelta{
			Index:     i,
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out, nil
}

func (c *Client) Stream(ctx context.Context, prompt agent.Prompt, onEvent func(agent.StreamEvent)) error {
	stream := c.api.Chat.Completions.NewStreaming(ctx, c.buildParams(prompt))
	defer stream.Close()

	var (
		open         []int
		seen         = make(map[int]bool)
		finishReason string
	)
	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if reasoning := reasoningField(choice.Delta.RawJSON()); reasoning != "" {
				onEvent(agent.StreamEvent{Type: agent.StreamEventReasoningDelta, Text: reasoning})
			}
			if choice.Delta.Content != "" {
				onEvent(agent.StreamEvent{Type: agent.StreamEventTextDelta, Text: choice.Delta.Content})
			}
			for _, call := range choice.Delta.ToolCalls {
				idx := int(call.Index)
				if !seen[idx] {
					seen[idx] = true
					open = append(open, idx)
				}
				onEvent(agent.StreamEvent{
					Type: agent.StreamEventToolCallDelta,
					ToolCall: agent.ToolCallDelta{
						Index:     idx,
						ID:        call.ID,
						Name:      call.Function.Name,
						Arguments: call.Function.Arguments,
					},
				})
			}
			if choice.FinishReason == "" {
				continue
			}
			finishReason = choice.FinishReason
			for _, idx := range open {
				onEvent(agent.StreamEvent{Type: agent.StreamEventToolCallDone, ToolCall: agent.ToolCallDelta{Index: idx}})
			}
			open = open[:0]
		}
	}
	if err := stream.Err(); err != nil {
		return wrapHTTPError(err)
	}
	onEvent(agent.StreamEvent{Type: agent.StreamEventCompleted, FinishReason: finishReason})
	return nil
}

// reasoningField 读取部分 OpenAI 兼容端点附带的推理文本（Groq 为 reasoning，DeepSeek 为 reasoning_content）。
func reasoningField(raw string) string {
	if raw == "" {
		return ""
	}
	if v := gjson.Get(raw, "reasoning"); v.Type == gjson.String {
		return v.String()
	}
	if v := gjson.Get(raw, "reasoning_content"); v.Type == gjson.String {
		return v.String()
	}
	return ""
}

func toChatMessages(msgs []agent.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case agent.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case agent.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for _, call := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Name,
							Arguments: string(call.Arguments),
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case agent.RoleTool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// toChatTools 不启用 strict 模式：search_code 等工具包含可选参数。
func toChatTools(specs []agent.ToolSpec) []openai.ChatCompletionToolUnionParam {
	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			continue
		}
		fn := shared.FunctionDefinitionParam{
			Name:       name,
			Parameters: spec.Parameters,
		}
		if desc := strings.TrimSpace(spec.Description); desc != "" {
			fn.Description = openai.String(desc)
		}
		tools = append(tools, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: fn,
			},
		})
	}
	return tools
}

// wrapHTTPError 将 SDK 错误转换为 *agent.APIError，保留状态码与重试提示。
func wrapHTTPError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) || apiErr == nil {
		return err
	}
	msg := strings.TrimSpace(apiErr.Message)
	if msg == "" {
		msg = strings.TrimSpace(apiErr.RawJSON())
	}
	var header http.Header
	if apiErr.Response != nil {
		header = apiErr.Response.Header
		if msg == "" {
			msg = strings.TrimSpace(string(apiErr.DumpResponse(true)))
		}
	}
	return agent.NewAPIError(apiErr.StatusCode, msg, header)
}
