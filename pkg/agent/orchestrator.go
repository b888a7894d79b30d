// Package agent drives the tool-calling conversation loop: one user message
// in, one grounded assistant message out.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"crucible/pkg/config"
	"crucible/pkg/llm"
	"crucible/pkg/monitor"
	"crucible/pkg/tools"

	"github.com/google/uuid"
)

// ErrEngine marks a failed generation engine call. It is fatal for the
// current user message only.
var ErrEngine = errors.New("generation engine call failed")

// DefaultMaxToolCycles bounds the engine calls made for one user message.
const DefaultMaxToolCycles = 3

// State is a step of the per-message state machine.
type State int

const (
	StateAwaitingModel State = iota
	StateHandlingTool
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "AWAITING_MODEL"
	case StateHandlingTool:
		return "HANDLING_TOOL"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ToolDispatcher resolves one tool invocation. *tools.Dispatcher implements it.
type ToolDispatcher interface {
	Schemas() []llm.ToolSchema
	Dispatch(ctx context.Context, name, rawArguments string) tools.Outcome
}

// Orchestrator turns user messages into assistant answers, running at most
// maxCycles engine calls per message. It holds no per-session state and can
// serve many sessions; each session is processed one message at a time.
type Orchestrator struct {
	engine       llm.Engine
	dispatcher   ToolDispatcher
	monitor      monitor.Monitor
	maxCycles    int
	fallback     string
	toolsEnabled bool

	promptMu     sync.RWMutex
	systemPrompt string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSystemPrompt sets the instruction prepended to every request.
func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) { o.systemPrompt = prompt }
}

// WithMaxToolCycles overrides DefaultMaxToolCycles. Values below 1 are ignored.
func WithMaxToolCycles(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxCycles = n
		}
	}
}

// WithFallbackMessage overrides the text returned when the cycle cap is hit.
func WithFallbackMessage(msg string) Option {
	return func(o *Orchestrator) {
		if msg != "" {
			o.fallback = msg
		}
	}
}

// WithMonitor reports every dispatched tool call to m.
func WithMonitor(m monitor.Monitor) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.monitor = m
		}
	}
}

// WithToolsEnabled toggles tool calling. Disabled, the engine gets no schemas
// and a "none" tool choice.
func WithToolsEnabled(enabled bool) Option {
	return func(o *Orchestrator) { o.toolsEnabled = enabled }
}

// FromSystemConfig maps engine-level settings to options.
func FromSystemConfig(sys *config.SystemConfig) []Option {
	if sys == nil {
		return nil
	}
	return []Option{
		WithMaxToolCycles(sys.MaxToolCycles),
		WithFallbackMessage(sys.FallbackMessage),
		WithToolsEnabled(sys.EnableTools),
	}
}

// New creates an Orchestrator. The engine is shared by every session, so
// its calls are serialized.
func New(engine llm.Engine, dispatcher ToolDispatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:       llm.Serialize(engine),
		dispatcher:   dispatcher,
		monitor:      monitor.Nop{},
		maxCycles:    DefaultMaxToolCycles,
		fallback:     config.DefaultFallbackMessage,
		toolsEnabled: true,
		systemPrompt: config.DefaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetSystemPrompt swaps the system instruction for subsequent requests.
func (o *Orchestrator) SetSystemPrompt(prompt string) {
	o.promptMu.Lock()
	defer o.promptMu.Unlock()
	o.systemPrompt = prompt
}

// SystemPrompt returns the current system instruction.
func (o *Orchestrator) SystemPrompt() string {
	o.promptMu.RLock()
	defer o.promptMu.RUnlock()
	return o.systemPrompt
}

// FallbackMessage returns the text returned on cycle exhaustion.
func (o *Orchestrator) FallbackMessage() string {
	return o.fallback
}

// Chat processes one user message on session and returns the answer text.
func (o *Orchestrator) Chat(ctx context.Context, session *llm.ChatHistory, userText string) (string, error) {
	answer, err := o.Answer(ctx, session, userText)
	if err != nil {
		return "", err
	}
	return answer.Text, nil
}

// Answer processes one user message on session.
//
// Only the user turn and the final assistant turn are stored in session; the
// tool invocation and outcome turns live in the outbound context of this call.
// An engine error leaves session with just the user turn and is returned
// wrapped in ErrEngine. Reaching the cycle cap returns the fallback message
// with the tool activity of the aborted cycles and stores no assistant turn.
func (o *Orchestrator) Answer(ctx context.Context, session *llm.ChatHistory, userText string) (llm.Answer, error) {
	unlock := session.LockTurn()
	defer unlock()

	ctx = monitor.WithSession(ctx, session.ID())

	session.Add(llm.NewUserMessage(userText))

	outbound := o.buildContext(session)

	schemas, choice := o.toolPolicy()

	var activity []llm.ToolActivity
	state := StateAwaitingModel
	for cycle := 1; cycle <= o.maxCycles; cycle++ {
		slog.DebugContext(ctx, "Orchestrator step", "state", state, "cycle", cycle, "context", len(outbound))

		reply, err := o.engine.Complete(ctx, outbound, schemas, choice)
		if err != nil {
			slog.ErrorContext(ctx, "Engine call failed", "cycle", cycle, "error", err)
			return llm.Answer{}, fmt.Errorf("%w (cycle %d/%d): %w", ErrEngine, cycle, o.maxCycles, err)
		}

		switch r := reply.(type) {
		case llm.TextReply:
			state = StateDone
			msg := llm.NewAssistantMessage(r.Content)
			msg.Activity = activity
			session.Add(msg)
			slog.DebugContext(ctx, "Orchestrator step", "state", state, "cycle", cycle, "tool_calls", len(activity))
			return llm.Answer{Text: r.Content, Activity: activity}, nil

		case llm.ToolCallReply:
			if len(r.Calls) == 0 {
				return llm.Answer{}, fmt.Errorf("%w: %w: tool call reply without calls", ErrEngine, llm.ErrMalformedReply)
			}
			state = StateHandlingTool
			call := o.firstCall(ctx, r)
			slog.DebugContext(ctx, "Orchestrator step", "state", state, "cycle", cycle, "tool", call.Name, "id", call.ID)
			toolCallMsg, resultMsg, act := o.handleToolCall(ctx, call)
			outbound = append(outbound, toolCallMsg, resultMsg)
			activity = append(activity, act)
			state = StateAwaitingModel

		default:
			return llm.Answer{}, fmt.Errorf("%w: %w: unexpected reply type %T", ErrEngine, llm.ErrMalformedReply, reply)
		}
	}

	slog.WarnContext(ctx, "Tool cycle cap reached without an answer", "max", o.maxCycles, "tool_calls", len(activity))
	return llm.Answer{Text: o.fallback, Activity: activity, Fallback: true}, nil
}

// buildContext prepends the system instruction to the stored turns.
func (o *Orchestrator) buildContext(session *llm.ChatHistory) []llm.Message {
	stored := session.GetMessages()
	outbound := make([]llm.Message, 0, len(stored)+1+2*o.maxCycles)
	if prompt := o.SystemPrompt(); prompt != "" {
		outbound = append(outbound, llm.NewSystemMessage(prompt))
	}
	for _, m := range stored {
		outbound = append(outbound, llm.Message{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp})
	}
	return outbound
}

func (o *Orchestrator) toolPolicy() ([]llm.ToolSchema, llm.ToolChoice) {
	if !o.toolsEnabled || o.dispatcher == nil {
		return nil, llm.ToolChoiceNone
	}
	return o.dispatcher.Schemas(), llm.ToolChoiceAuto
}

// firstCall honours only the first invocation of a reply and gives it an ID
// when the engine sent none.
func (o *Orchestrator) firstCall(ctx context.Context, r llm.ToolCallReply) llm.ToolCall {
	if len(r.Calls) > 1 {
		dropped := make([]string, 0, len(r.Calls)-1)
		for _, c := range r.Calls[1:] {
			dropped = append(dropped, c.Name)
		}
		slog.WarnContext(ctx, "Ignoring extra tool calls in one reply", "kept", r.Calls[0].Name, "dropped", dropped)
	}
	call := r.Calls[0]
	if call.ID == "" {
		call.ID = "call_" + uuid.NewString()
	}
	return call
}

// handleToolCall dispatches call and returns the invocation turn, the outcome
// turn tagged with the same ID, and a display record.
func (o *Orchestrator) handleToolCall(ctx context.Context, call llm.ToolCall) (llm.Message, llm.Message, llm.ToolActivity) {
	var outcome tools.Outcome
	if o.dispatcher == nil {
		outcome = tools.Failed(call.Name, tools.ErrUnknownTool, fmt.Errorf("no tools are registered"))
	} else {
		outcome = o.dispatcher.Dispatch(ctx, call.Name, call.Arguments)
	}
	serialized := outcome.Serialize()

	act := llm.ToolActivity{
		Name:      call.Name,
		Arguments: call.Arguments,
		Outcome:   serialized,
		Success:   outcome.Success,
	}
	o.monitor.OnToolCall(ctx, act)
	if m, ok := monitor.FromContext(ctx); ok {
		m.OnToolCall(ctx, act)
	}

	return llm.NewToolCallMessage(call), llm.NewToolResultMessage(call, serialized), act
}
