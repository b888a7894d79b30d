package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"crucible/pkg/llm"

	jsoniter "github.com/json-iterator/go"
	"google.golang.org/genai"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// metaPart keeps the model's original function call part, which carries the
// thought signature Gemini expects to see echoed back.
const metaPart = "gemini_part"

// GeminiClient Google Gemini API client
type GeminiClient struct {
	client       *genai.Client
	model        string
	useThought   bool
	debugEnabled bool
	timeout      time.Duration
	options      map[string]any
}

// SetDebug enables request/response dumps.
func (g *GeminiClient) SetDebug(enabled bool) {
	g.debugEnabled = enabled
}

// SetTimeout bounds a single request. Zero means no bound.
func (g *GeminiClient) SetTimeout(d time.Duration) {
	g.timeout = d
}

// NewGeminiClient creates a Gemini client with a single model and API key.
// baseURL is only set to reach a proxy or a test server.
func NewGeminiClient(ctx context.Context, apiKey, model, baseURL string, useThought bool, options map[string]any) (*GeminiClient, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:     client,
		model:      model,
		useThought: useThought,
		options:    options,
	}, nil
}

func (g *GeminiClient) Provider() string {
	return "gemini"
}

// Complete implements llm.Engine.
func (g *GeminiClient) Complete(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, choice llm.ToolChoice) (llm.Reply, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	contents, systemInstruction := convertMessages(messages)
	config := g.buildConfig(systemInstruction, tools, choice)

	debugger := llm.NewRequestDebugger(ctx, "gemini", g.debugEnabled)
	defer debugger.Close()
	debugger.Dump("REQUEST", map[string]any{"contents": contents, "config": config})

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	debugger.Dump("RESPONSE", resp)

	if u := resp.UsageMetadata; u != nil {
		llm.LogUsage(ctx, "gemini", g.model, &llm.LLMUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		})
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini: %w: no candidates", llm.ErrMalformedReply)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		slog.WarnContext(ctx, "Response truncated due to max tokens limit", "provider", "gemini", "model", g.model)
	}

	var text strings.Builder
	var calls []llm.ToolCall
	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			argsB, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				argsB = []byte("{}")
			}
			calls = append(calls, llm.ToolCall{
				ID:        part.FunctionCall.ID,
				Name:      part.FunctionCall.Name,
				Arguments: string(argsB),
				Meta:      map[string]any{metaPart: part},
			})
			slog.DebugContext(ctx, "Tool call", "provider", "gemini", "name", part.FunctionCall.Name, "args", string(argsB))
		}
	}

	reply, err := llm.NewReply(text.String(), calls)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return reply, nil
}

func (g *GeminiClient) buildConfig(system *genai.Content, tools []llm.ToolSchema, choice llm.ToolChoice) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SystemInstruction: system,
	}

	if g.useThought {
		config.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}
	if t, ok := g.options["temperature"].(float64); ok {
		config.Temperature = genai.Ptr(float32(t))
	}
	if p, ok := g.options["top_p"].(float64); ok {
		config.TopP = genai.Ptr(float32(p))
	}
	if maxTok, ok := g.options["max_tokens"].(float64); ok {
		config.MaxOutputTokens = int32(maxTok)
	}

	if len(tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: convertTools(tools)}}
		mode := genai.FunctionCallingConfigModeAuto
		if choice == llm.ToolChoiceNone {
			mode = genai.FunctionCallingConfigModeNone
		}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode},
		}
	}
	return config
}

func convertTools(tools []llm.ToolSchema) []*genai.FunctionDeclaration {
	fds := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]*genai.Schema, len(t.Parameters))
		for _, p := range t.Parameters {
			props[p.Name] = &genai.Schema{
				Type:        schemaType(p.Type),
				Description: p.Description,
			}
		}
		fds = append(fds, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   t.RequiredParameters(),
			},
		})
	}
	return fds
}

func schemaType(t string) genai.Type {
	switch t {
	case llm.TypeNumber:
		return genai.TypeNumber
	default:
		return genai.TypeString
	}
}

// convertMessages converts message list to GenAI format. The system turn
// becomes the system instruction.
func convertMessages(messages []llm.Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var systemInstruction *genai.Content

	// Gemini may omit call IDs; the response must then omit it too.
	originalIDs := make(map[string]string)

	for _, msg := range messages {
		switch {
		case msg.Role == llm.RoleSystem:
			if msg.Content != "" {
				systemInstruction = &genai.Content{Parts: []*genai.Part{{Text: msg.Content}}}
			}

		case msg.IsToolCall():
			tc := msg.ToolCall
			part, ok := tc.Meta[metaPart].(*genai.Part)
			if !ok {
				var args map[string]any
				if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
					slog.Warn("Failed to unmarshal tool arguments for history", "provider", "gemini", "error", err)
				}
				part = &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args}}
			}
			originalIDs[tc.ID] = part.FunctionCall.ID
			contents = append(contents, &genai.Content{Role: string(genai.RoleModel), Parts: []*genai.Part{part}})

		case msg.Role == llm.RoleTool:
			id, ok := originalIDs[msg.ToolCallID]
			if !ok {
				id = msg.ToolCallID
			}
			var response map[string]any
			if err := json.Unmarshal([]byte(msg.Content), &response); err != nil {
				response = map[string]any{"result": msg.Content}
			}
			contents = append(contents, &genai.Content{
				Role: string(genai.RoleUser),
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       id,
						Name:     msg.ToolName,
						Response: response,
					},
				}},
			})

		default:
			if msg.Content == "" {
				continue
			}
			role := string(genai.RoleUser)
			if msg.Role == llm.RoleAssistant {
				role = string(genai.RoleModel)
			}
			contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: msg.Content}}})
		}
	}

	return contents, systemInstruction
}

// IsTransientError implements llm.Engine.
func (g *GeminiClient) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())

	// 503 Service Unavailable / Overloaded
	if strings.Contains(errMsg, "503") || strings.Contains(errMsg, "overloaded") {
		return true
	}

	// 429 Too Many Requests (Rate Limit)
	if strings.Contains(errMsg, "429") || strings.Contains(errMsg, "resource exhausted") {
		return true
	}

	// 500 Internal Error
	return strings.Contains(errMsg, "500") || strings.Contains(errMsg, "internal error")
}
