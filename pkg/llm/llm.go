package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// json is used for all JSON handling inside package llm.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformedReply is returned by engines when a response carries neither
// content nor a tool invocation.
var ErrMalformedReply = errors.New("malformed engine reply")

// ToolChoice is the tool selection policy sent with a request.
type ToolChoice string

const (
	// ToolChoiceAuto lets the engine decide between answering and calling a tool.
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceNone forbids tool calls.
	ToolChoiceNone ToolChoice = "none"
)

//----------------------------------------------------------------
// Reply - tagged result of one engine call
//----------------------------------------------------------------

// Reply is the result of one engine call. It is exactly one of TextReply or
// ToolCallReply.
type Reply interface {
	isReply()
}

// TextReply is a direct answer.
type TextReply struct {
	Content string
}

// ToolCallReply requests one or more tool invocations. Calls is never empty.
type ToolCallReply struct {
	Calls []ToolCall
}

func (TextReply) isReply()     {}
func (ToolCallReply) isReply() {}

// NewReply builds the Reply variant for a parsed engine message. Tool calls
// win over content, matching how engines mark a function call turn.
func NewReply(content string, calls []ToolCall) (Reply, error) {
	if len(calls) > 0 {
		return ToolCallReply{Calls: calls}, nil
	}
	if content == "" {
		return nil, ErrMalformedReply
	}
	return TextReply{Content: content}, nil
}

// LLMUsage is a provider-neutral token usage record.
type LLMUsage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	StopReason       string `json:"stop_reason,omitempty"`
}

// LogUsage logs a usage record at debug level.
func LogUsage(ctx context.Context, provider, model string, usage *LLMUsage) {
	if usage == nil {
		return
	}
	slog.DebugContext(ctx, "Engine usage",
		"provider", provider,
		"model", model,
		"prompt", usage.PromptTokens,
		"completion", usage.CompletionTokens,
		"total", usage.TotalTokens,
		"stop_reason", usage.StopReason,
	)
}

// Engine is the generation engine contract the orchestrator depends on.
// Implementations are safe for sequential use only. Wrap an instance shared
// by several sessions with Serialize.
type Engine interface {
	// Complete sends the full context plus tool schemas and returns either a
	// direct answer or a tool invocation request.
	Complete(ctx context.Context, messages []Message, tools []ToolSchema, choice ToolChoice) (Reply, error)

	// IsTransientError reports whether err is worth retrying (503, rate limit...).
	IsTransientError(err error) bool

	// Provider names the backend ("openai", "ollama", "gemini").
	Provider() string
}

// FallbackEngine tries several engines in order, retrying transient errors.
type FallbackEngine struct {
	Engines    []Engine
	MaxRetries int
	RetryDelay time.Duration
}

// Provider implements Engine.
func (f *FallbackEngine) Provider() string {
	return "fallback"
}

// Complete implements Engine.
func (f *FallbackEngine) Complete(ctx context.Context, messages []Message, tools []ToolSchema, choice ToolChoice) (Reply, error) {
	var lastErr error
	for i, engine := range f.Engines {
		if i > 0 {
			slog.WarnContext(ctx, "Previous provider failed, trying fallback", "index", i+1, "provider", engine.Provider())
		}

		maxRetries := f.MaxRetries
		if maxRetries <= 0 {
			maxRetries = 1
		}

		for retry := 1; retry <= maxRetries; retry++ {
			if retry > 1 {
				slog.InfoContext(ctx, "Retrying provider", "index", i+1, "attempt", retry, "max", maxRetries)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(time.Duration(retry-1) * f.RetryDelay):
				}
			}

			reply, err := engine.Complete(ctx, messages, tools, choice)
			if err == nil {
				return reply, nil
			}
			lastErr = err

			if engine.IsTransientError(err) && retry < maxRetries {
				slog.WarnContext(ctx, "Provider failed with transient error", "index", i+1, "error", err)
				continue
			}

			slog.ErrorContext(ctx, "Provider failed", "index", i+1, "error", err)
			break
		}
	}
	return nil, fmt.Errorf("all fallback providers failed: %w", lastErr)
}

// IsTransientError implements Engine. Errors surfacing from the fallback
// group mean every member gave up.
func (f *FallbackEngine) IsTransientError(err error) bool {
	return false
}

// SerializedEngine lets one Engine be shared by concurrent callers: Complete
// calls run one at a time, in lock order.
type SerializedEngine struct {
	mu     sync.Mutex
	engine Engine
}

// Serialize wraps e in a SerializedEngine. An engine that is already
// serialized is returned as is.
func Serialize(e Engine) Engine {
	if e == nil {
		return nil
	}
	if s, ok := e.(*SerializedEngine); ok {
		return s
	}
	return &SerializedEngine{engine: e}
}

// Unwrap returns the wrapped engine.
func (s *SerializedEngine) Unwrap() Engine {
	return s.engine
}

// Provider implements Engine.
func (s *SerializedEngine) Provider() string {
	return s.engine.Provider()
}

// Complete implements Engine. The lock is held for the whole call, so a slow
// request delays every other session.
func (s *SerializedEngine) Complete(ctx context.Context, messages []Message, tools []ToolSchema, choice ToolChoice) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.engine.Complete(ctx, messages, tools, choice)
}

// IsTransientError implements Engine.
func (s *SerializedEngine) IsTransientError(err error) bool {
	return s.engine.IsTransientError(err)
}
