package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RequestDebugger dumps raw engine requests and responses to disk.
// It centralizes directory creation, file naming and safe writing.
type RequestDebugger struct {
	file    *os.File
	enabled bool
}

// NewRequestDebugger opens a dump file for one engine call when enabled.
// Files go to debug/requests/<provider>, nested under the session ID found
// in ctx under DebugDirContextKey.
func NewRequestDebugger(ctx context.Context, provider string, enabled bool) *RequestDebugger {
	return newRequestDebugger(ctx, "debug", provider, enabled)
}

func newRequestDebugger(ctx context.Context, root, provider string, enabled bool) *RequestDebugger {
	if !enabled {
		return &RequestDebugger{}
	}

	debugDir := filepath.Join(root, "requests", provider)
	if dir, ok := ctx.Value(DebugDirContextKey).(string); ok && dir != "" {
		debugDir = filepath.Join(root, "requests", dir, provider)
	}

	if err := os.MkdirAll(debugDir, 0755); err != nil {
		slog.Error("Failed to create debug directory", "dir", debugDir, "error", err)
		return &RequestDebugger{}
	}

	filename := filepath.Join(debugDir, fmt.Sprintf("%s.log", time.Now().Format("20060102_150405.000000")))
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Error("Failed to open debug file", "file", filename, "error", err)
		return &RequestDebugger{}
	}

	slog.Debug("Debug mode ON", "provider", provider, "file", filename)
	return &RequestDebugger{file: f, enabled: true}
}

// Dump writes v as one JSON line, prefixed by a label.
func (d *RequestDebugger) Dump(label string, v any) {
	if !d.enabled || d.file == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to marshal debug payload", "label", label, "error", err)
		return
	}
	if _, err := fmt.Fprintf(d.file, "%s %s\n", label, data); err != nil {
		slog.Warn("Failed to write to debug file", "error", err)
	}
}

// Close closes the dump file.
func (d *RequestDebugger) Close() {
	if d.file != nil {
		d.file.Close()
		d.file = nil
	}
}
