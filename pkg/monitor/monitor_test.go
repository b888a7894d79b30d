package monitor

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"crucible/pkg/llm"

	"github.com/stretchr/testify/require"
)

func TestCustomHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCustomHandler(&buf, slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx := WithSession(context.Background(), "0123456789abcdef")
	logger.With("provider", "ollama").InfoContext(ctx, "Engine ready", "model", "llama3.1", "tools", 1)
	logger.DebugContext(ctx, "hidden")

	line := strings.TrimSpace(buf.String())
	require.NotContains(t, line, "hidden")
	require.Regexp(t, `^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] \[INFO\] \[01234567\] Engine ready`, line)
	require.True(t, strings.HasSuffix(line, `provider="ollama" model="llama3.1" tools=1`), line)
}

func TestCustomHandlerWithoutSession(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCustomHandler(&buf, slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Debug("Starting")
	require.Regexp(t, `\] \[DEBUG\] Starting\n$`, buf.String())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestSessionFrom(t *testing.T) {
	require.Empty(t, SessionFrom(context.Background()))
	require.Equal(t, "abc", SessionFrom(WithSession(context.Background(), "abc")))
}

func TestMonitorContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	var buf bytes.Buffer
	m := NewCLIMonitorTo(&buf)
	got, ok := FromContext(NewContext(context.Background(), m))
	require.True(t, ok)
	require.Same(t, m, got)

	_, ok = FromContext(NewContext(context.Background(), nil))
	require.False(t, ok)
}

func TestCLIMonitor(t *testing.T) {
	var buf bytes.Buffer
	m := NewCLIMonitorTo(&buf)

	m.OnToolCall(context.Background(), llm.ToolActivity{
		Name:      "identify_material",
		Arguments: `{"peak_1":465}`,
		Outcome:   `{"success":true}`,
		Success:   true,
	})

	out := buf.String()
	require.Contains(t, out, "[Tool: identify_material]")
	require.Contains(t, out, `{"peak_1":465}`)
	require.Contains(t, out, `[Result]`)
	require.Contains(t, out, `{"success":true}`)
}
