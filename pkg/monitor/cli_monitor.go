package monitor

import (
	"context"
	"fmt"
	"io"
	"sync"

	"crucible/pkg/llm"
)

// CLIMonitor prints tool activity to a terminal, the way the interactive
// prompt shows what the assistant did behind an answer.
type CLIMonitor struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewCLIMonitorTo creates a monitor writing to w.
func NewCLIMonitorTo(w io.Writer) *CLIMonitor {
	return &CLIMonitor{writer: w}
}

// OnToolCall implements Monitor.
func (m *CLIMonitor) OnToolCall(ctx context.Context, activity llm.ToolActivity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fmt.Fprintf(m.writer, "\n\033[90m[Tool: %s]\033[0m %s\n", activity.Name, activity.Arguments)
	fmt.Fprintf(m.writer, "\033[90m[Result]\033[0m %s\n\n", activity.Outcome)
}
