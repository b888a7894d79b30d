// Package llmtest provides a scripted llm.Engine for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"crucible/pkg/llm"
)

// ErrScriptExhausted is returned when the engine is called more times than
// it has scripted steps.
var ErrScriptExhausted = errors.New("llmtest: script exhausted")

// Step is one scripted engine answer.
type Step struct {
	Reply llm.Reply
	Err   error
}

// Text scripts a direct answer.
func Text(content string) Step {
	return Step{Reply: llm.TextReply{Content: content}}
}

// ToolCall scripts a single tool invocation request.
func ToolCall(id, name, arguments string) Step {
	return Step{Reply: llm.ToolCallReply{Calls: []llm.ToolCall{{ID: id, Name: name, Arguments: arguments}}}}
}

// ToolCalls scripts several simultaneous invocation requests.
func ToolCalls(calls ...llm.ToolCall) Step {
	return Step{Reply: llm.ToolCallReply{Calls: calls}}
}

// Fail scripts an engine error.
func Fail(err error) Step {
	return Step{Err: err}
}

// Call records what the engine received.
type Call struct {
	Messages []llm.Message
	Tools    []llm.ToolSchema
	Choice   llm.ToolChoice
}

// Engine replays Steps in order and records every call.
type Engine struct {
	mu    sync.Mutex
	steps []Step
	calls []Call

	// Transient decides IsTransientError. Nil means never transient.
	Transient func(error) bool
	// Name is returned by Provider. Defaults to "fake".
	Name string
}

// NewEngine creates an engine replaying steps.
func NewEngine(steps ...Step) *Engine {
	return &Engine{steps: steps}
}

// Push appends more steps.
func (e *Engine) Push(steps ...Step) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.steps = append(e.steps, steps...)
}

// Complete implements llm.Engine.
func (e *Engine) Complete(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, choice llm.ToolChoice) (llm.Reply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	msgs := make([]llm.Message, len(messages))
	copy(msgs, messages)
	e.calls = append(e.calls, Call{Messages: msgs, Tools: tools, Choice: choice})

	if len(e.steps) == 0 {
		return nil, ErrScriptExhausted
	}
	step := e.steps[0]
	e.steps = e.steps[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Reply, nil
}

// IsTransientError implements llm.Engine.
func (e *Engine) IsTransientError(err error) bool {
	if e.Transient == nil {
		return false
	}
	return e.Transient(err)
}

// Provider implements llm.Engine.
func (e *Engine) Provider() string {
	if e.Name == "" {
		return "fake"
	}
	return e.Name
}

// Calls returns the recorded calls.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]Call, len(e.calls))
	copy(cp, e.calls)
	return cp
}

// Remaining returns the number of unused steps.
func (e *Engine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.steps)
}
