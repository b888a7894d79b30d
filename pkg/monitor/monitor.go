package monitor

import (
	"context"

	"crucible/pkg/llm"
)

// Monitor observes tool activity inside the orchestration loop.
type Monitor interface {
	// OnToolCall is called once per dispatched tool invocation.
	OnToolCall(ctx context.Context, activity llm.ToolActivity)
}

// Nop discards everything.
type Nop struct{}

// OnToolCall implements Monitor.
func (Nop) OnToolCall(context.Context, llm.ToolActivity) {}

type monitorKey struct{}

// NewContext attaches m to ctx. The orchestrator reports to it in addition to
// its own monitor, so a front-end can watch only its own sessions.
func NewContext(ctx context.Context, m Monitor) context.Context {
	return context.WithValue(ctx, monitorKey{}, m)
}

// FromContext returns the monitor attached by NewContext.
func FromContext(ctx context.Context) (Monitor, bool) {
	if ctx == nil {
		return nil, false
	}
	m, ok := ctx.Value(monitorKey{}).(Monitor)
	return m, ok && m != nil
}

// WithSession tags ctx with a session ID. The log handler prints it and the
// engines use it to group debug dumps.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, llm.DebugDirContextKey, sessionID)
}

// SessionFrom returns the session ID stored by WithSession.
func SessionFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(llm.DebugDirContextKey).(string)
	return id
}
