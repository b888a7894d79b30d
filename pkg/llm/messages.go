package llm

import (
	"time"
)

//----------------------------------------------------------------
// Message - one turn of a conversation
//----------------------------------------------------------------

// Role constants for Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of a conversation. Turns are appended to a history
// and never mutated afterwards.
type Message struct {
	Role      string `json:"role"`              // "system", "user", "assistant", "tool"
	Content   string `json:"content,omitempty"` // empty on a pending tool invocation
	Timestamp int64  `json:"timestamp,omitempty"`

	// ToolCall is the invocation requested by the engine (role: assistant only).
	ToolCall *ToolCall `json:"tool_call,omitempty"`

	// ToolCallID ties a tool result to the invocation it resolves (role: tool only).
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolName is the name of the resolved tool (role: tool only). Gemini needs it.
	ToolName string `json:"tool_name,omitempty"`

	// Activity records the tool calls that led to a final assistant answer.
	// It is for display only and never sent to an engine.
	Activity []ToolActivity `json:"activity,omitempty"`
}

// ToolCall is a tool invocation request produced by the engine.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON text as produced by the engine

	// Meta keeps provider specific data (e.g. Gemini thought signatures).
	// Not serialized.
	Meta map[string]any `json:"-"`
}

// ToolActivity is a display record of one dispatched tool call.
type ToolActivity struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Outcome   string `json:"outcome"`
	Success   bool   `json:"success"`
}

// Answer is the result of processing one user message. Activity lists the
// tool calls made on the way, including those of a cut-off loop, whose
// Fallback text is never stored.
type Answer struct {
	Text     string         `json:"text"`
	Activity []ToolActivity `json:"activity,omitempty"`
	Fallback bool           `json:"fallback,omitempty"`
}

//----------------------------------------------------------------
// Helper Functions - Message
//----------------------------------------------------------------

// NewTextMessage builds a plain text message.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:      role,
		Content:   text,
		Timestamp: time.Now().Unix(),
	}
}

// NewSystemMessage builds a system instruction message.
func NewSystemMessage(text string) Message {
	return NewTextMessage(RoleSystem, text)
}

// NewUserMessage builds a user message.
func NewUserMessage(text string) Message {
	return NewTextMessage(RoleUser, text)
}

// NewAssistantMessage builds a final assistant message.
func NewAssistantMessage(text string) Message {
	return NewTextMessage(RoleAssistant, text)
}

// NewToolCallMessage builds the assistant turn that represents a pending
// invocation. Its content is empty.
func NewToolCallMessage(call ToolCall) Message {
	c := call
	return Message{
		Role:      RoleAssistant,
		ToolCall:  &c,
		Timestamp: time.Now().Unix(),
	}
}

// NewToolResultMessage builds the tool turn carrying a serialized outcome.
func NewToolResultMessage(call ToolCall, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Timestamp:  time.Now().Unix(),
	}
}

// IsToolCall reports whether the message is a pending invocation turn.
func (m *Message) IsToolCall() bool {
	return m.Role == RoleAssistant && m.ToolCall != nil
}
