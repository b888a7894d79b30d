package llm

// StopReason constants define normalized reasons for generation termination.
// All providers normalize their native stop reasons to these values.
const (
	StopReasonStop     = "stop"       // Normal completion
	StopReasonLength   = "length"     // Output truncated due to token limit
	StopReasonToolCall = "tool_calls" // Turn ended with a function call
)

type contextKey string

// DebugDirContextKey carries the session ID used to group debug dumps.
const DebugDirContextKey contextKey = "llm_debug_dir"
