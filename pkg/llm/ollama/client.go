package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crucible/pkg/llm"

	jsoniter "github.com/json-iterator/go"
	"github.com/ollama/ollama/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OllamaClient Ollama API client
type OllamaClient struct {
	client       *api.Client
	model        string
	options      map[string]any
	debugEnabled bool
}

// SetDebug enables request/response dumps.
func (o *OllamaClient) SetDebug(enabled bool) {
	o.debugEnabled = enabled
}

// NewOllamaClient creates an Ollama client. timeout bounds one whole chat
// request; zero disables it.
func NewOllamaClient(model string, baseURL string, timeout time.Duration, options map[string]any) (*OllamaClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("ollama base URL is empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	httpClient := &http.Client{
		Transport: &JSONFixingRoundTripper{Proxied: transport},
		Timeout:   timeout,
	}

	slog.Info("Ollama client initialized", "model", model, "base_url", baseURL)

	return &OllamaClient{
		client:  api.NewClient(u, httpClient),
		model:   model,
		options: options,
	}, nil
}

func (o *OllamaClient) Provider() string {
	return "ollama"
}

// Complete implements llm.Engine with a single non-streaming chat request.
func (o *OllamaClient) Complete(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, choice llm.ToolChoice) (llm.Reply, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: o.convertMessages(messages),
		Options:  o.options,
		Stream:   &stream,
	}
	// Ollama has no tool_choice; "none" is expressed by sending no tools.
	if choice != llm.ToolChoiceNone {
		req.Tools = convertTools(tools)
	}
	slog.DebugContext(ctx, "Tools available", "provider", "ollama", "count", len(req.Tools))

	debugger := llm.NewRequestDebugger(ctx, "ollama", o.debugEnabled)
	defer debugger.Close()
	debugger.Dump("REQUEST", req)

	var final api.ChatResponse
	var content strings.Builder
	var toolCalls []api.ToolCall
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		debugger.Dump("RESPONSE", resp)
		content.WriteString(resp.Message.Content)
		toolCalls = append(toolCalls, resp.Message.ToolCalls...)
		if resp.Done {
			final = resp
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "Chat error", "provider", "ollama", "model", o.model, "error", err)
		return nil, fmt.Errorf("ollama chat: %w", err)
	}

	llm.LogUsage(ctx, "ollama", o.model, &llm.LLMUsage{
		PromptTokens:     final.PromptEvalCount,
		CompletionTokens: final.EvalCount,
		TotalTokens:      final.PromptEvalCount + final.EvalCount,
		StopReason:       final.DoneReason,
	})
	if final.DoneReason == llm.StopReasonLength {
		slog.WarnContext(ctx, "Response truncated due to length", "provider", "ollama")
	}

	var calls []llm.ToolCall
	for _, tc := range toolCalls {
		argsB, err := json.Marshal(tc.Function.Arguments)
		if err != nil {
			slog.WarnContext(ctx, "Failed to marshal tool call arguments", "provider", "ollama", "error", err)
			argsB = []byte("{}")
		}
		calls = append(calls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: string(argsB),
		})
		slog.DebugContext(ctx, "Tool call", "provider", "ollama", "name", tc.Function.Name, "args", string(argsB), "id", tc.ID)
	}

	reply, err := llm.NewReply(content.String(), calls)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return reply, nil
}

// convertTools converts schemas using a JSON round trip, which sidesteps
// the SDK's nested property types.
func convertTools(tools []llm.ToolSchema) api.Tools {
	if len(tools) == 0 {
		return nil
	}
	defs := make([]map[string]any, len(tools))
	for i, t := range tools {
		defs[i] = t.FunctionDefinition()
	}

	var out api.Tools
	rawB, err := json.Marshal(defs)
	if err != nil {
		slog.Error("Failed to marshal tools", "provider", "ollama", "error", err)
		return nil
	}
	if err := json.Unmarshal(rawB, &out); err != nil {
		slog.Error("Failed to unmarshal to api.Tool", "provider", "ollama", "error", err)
		return nil
	}
	return out
}

// convertMessages converts messages to Ollama API format
func (o *OllamaClient) convertMessages(messages []llm.Message) []api.Message {
	out := make([]api.Message, 0, len(messages))

	for _, m := range messages {
		msg := api.Message{
			Role:    m.Role,
			Content: m.Content,
		}

		if m.IsToolCall() {
			var args api.ToolCallFunctionArguments
			raw := m.ToolCall.Arguments
			if strings.TrimSpace(raw) == "" {
				raw = "{}"
			}
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				slog.Warn("Failed to unmarshal tool arguments for history", "provider", "ollama", "error", err)
			}
			msg.ToolCalls = []api.ToolCall{{
				ID: m.ToolCall.ID,
				Function: api.ToolCallFunction{
					Name:      m.ToolCall.Name,
					Arguments: args,
				},
			}}
		}

		if m.Role == llm.RoleTool {
			msg.ToolCallID = m.ToolCallID
			msg.ToolName = m.ToolName
		}

		out = append(out, msg)
	}

	return out
}

// IsTransientError implements llm.Engine.
func (o *OllamaClient) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())

	// Connection related errors (refused, reset) and timeouts
	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "timeout") {
		return true
	}

	// High load
	return strings.Contains(errMsg, "overloaded") || strings.Contains(errMsg, "503")
}
