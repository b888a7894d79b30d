package openailm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"crucible/pkg/llm"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// Client is a wrapper around the official OpenAI Go SDK speaking the Chat
// Completions API, which OpenAI-compatible local servers (llama.cpp,
// vLLM, LM Studio) also implement.
type Client struct {
	client       *openai.Client
	provider     string
	model        string
	debugEnabled bool
	timeout      time.Duration
	options      map[string]any
}

// NewClient creates a new OpenAI client. The SDK's own retries are disabled;
// llm.FallbackEngine owns retry policy.
func NewClient(provider string, apiKey string, model string, baseURL string, options map[string]any) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}

	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)

	return &Client{
		client:   &client,
		provider: provider,
		model:    model,
		options:  options,
	}
}

func (c *Client) Provider() string {
	return c.provider
}

func (c *Client) SetDebug(enabled bool) {
	c.debugEnabled = enabled
}

// SetTimeout bounds a single request. Zero means no bound.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	msg := strings.ToLower(err.Error())

	// Transient: network-level issues
	if strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") {
		return true
	}

	return strings.Contains(msg, "overloaded")
}

// Complete implements llm.Engine.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, choice llm.ToolChoice) (llm.Reply, error) {
	params := c.buildParams(messages, tools, choice)

	var opts []option.RequestOption
	if c.timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(c.timeout))
	}

	debugger := llm.NewRequestDebugger(ctx, c.provider, c.debugEnabled)
	defer debugger.Close()
	debugger.Dump("REQUEST", params)

	resp, err := c.client.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s chat completion: %w", c.provider, err)
	}
	debugger.Dump("RESPONSE", resp)

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w: no choices", c.provider, llm.ErrMalformedReply)
	}
	choice0 := resp.Choices[0]

	llm.LogUsage(ctx, c.provider, c.model, &llm.LLMUsage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
		StopReason:       normalizeStopReason(choice0.FinishReason),
	})
	if choice0.FinishReason == "length" {
		slog.WarnContext(ctx, "Response truncated due to length", "provider", c.provider, "model", c.model)
	}

	var calls []llm.ToolCall
	for _, tc := range choice0.Message.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		calls = append(calls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	reply, err := llm.NewReply(choice0.Message.Content, calls)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.provider, err)
	}
	return reply, nil
}

func (c *Client) buildParams(messages []llm.Message, tools []llm.ToolSchema, choice llm.ToolChoice) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: convertMessages(messages),
	}

	// Unified "temperature", "top_p" and "max_tokens" options
	if t, ok := c.options["temperature"].(float64); ok {
		params.Temperature = openai.Float(t)
	}
	if p, ok := c.options["top_p"].(float64); ok {
		params.TopP = openai.Float(p)
	}
	if maxTok, ok := c.options["max_tokens"].(float64); ok {
		params.MaxCompletionTokens = openai.Int(int64(maxTok))
	}

	// tool_choice is rejected without tools.
	if converted := convertTools(tools); len(converted) > 0 {
		params.Tools = converted
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String(string(choice)),
		}
	}
	return params
}

func convertMessages(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case llm.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case llm.RoleAssistant:
			if m.ToolCall == nil {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					ToolCalls: []openai.ChatCompletionMessageToolCallUnionParam{{
						OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
							ID: m.ToolCall.ID,
							Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      m.ToolCall.Name,
								Arguments: m.ToolCall.Arguments,
							},
						},
					}},
				},
			})
		case llm.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}

	return out
}

func convertTools(tools []llm.ToolSchema) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  shared.FunctionParameters(t.JSONSchema()),
		}))
	}
	return out
}

// normalizeStopReason converts OpenAI-specific finish_reason to
// a standardized lowercase format.
func normalizeStopReason(reason string) string {
	switch strings.ToLower(reason) {
	case "stop":
		return llm.StopReasonStop
	case "length":
		return llm.StopReasonLength
	case "tool_calls", "function_call":
		return llm.StopReasonToolCall
	default:
		return reason
	}
}
