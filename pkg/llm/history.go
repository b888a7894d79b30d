package llm

import (
	"sync"

	"github.com/google/uuid"
)

// ChatHistory is one conversation session: an append-only sequence of turns
// owned by a single caller. The system instruction is never stored here.
type ChatHistory struct {
	id       string
	messages []Message
	mu       sync.RWMutex

	// turn serializes user messages: one is processed fully before the next.
	turn sync.Mutex
}

// NewChatHistory creates an empty session with a fresh ID.
func NewChatHistory() *ChatHistory {
	return NewChatHistoryWithID(uuid.NewString())
}

// NewChatHistoryWithID creates an empty session with the given ID.
func NewChatHistoryWithID(id string) *ChatHistory {
	return &ChatHistory{
		id:       id,
		messages: make([]Message, 0),
	}
}

// ID returns the session identifier.
func (h *ChatHistory) ID() string {
	return h.id
}

// Add appends a turn.
func (h *ChatHistory) Add(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, msg)
}

// GetMessages returns a copy of the stored turns.
func (h *ChatHistory) GetMessages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cp := make([]Message, len(h.messages))
	copy(cp, h.messages)
	return cp
}

// Len returns the number of stored turns.
func (h *ChatHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Clear drops every stored turn.
func (h *ChatHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = make([]Message, 0)
}

// ToolCallCount counts the tool calls recorded on assistant turns.
func (h *ChatHistory) ToolCallCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, m := range h.messages {
		n += len(m.Activity)
	}
	return n
}

// LockTurn blocks until no other user message is in flight on this session.
// The returned func releases it.
func (h *ChatHistory) LockTurn() func() {
	h.turn.Lock()
	return h.turn.Unlock
}
