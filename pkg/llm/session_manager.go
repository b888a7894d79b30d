package llm

import (
	"sync"
)

// SessionManager keeps independent in-memory sessions for hosts that serve
// several conversations at once. Nothing is persisted.
type SessionManager struct {
	histories map[string]*ChatHistory
	mu        sync.RWMutex
}

// NewSessionManager creates an empty manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		histories: make(map[string]*ChatHistory),
	}
}

// Create starts a new session and returns it.
func (sm *SessionManager) Create() *ChatHistory {
	h := NewChatHistory()

	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.histories[h.ID()] = h
	return h
}

// GetHistory returns the session with the given ID.
func (sm *SessionManager) GetHistory(sessionID string) (*ChatHistory, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	h, ok := sm.histories[sessionID]
	return h, ok
}

// Delete destroys a session.
func (sm *SessionManager) Delete(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.histories, sessionID)
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.histories)
}
