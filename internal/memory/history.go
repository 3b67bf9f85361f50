// Package memory keeps conversation state: per-client short-term
// history, learned user patterns, and a persistent long-term store.
package memory

import "sync"

// Turn is one message in a conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HistoryStore holds per-client conversation history for the lifetime
// of a connection. Histories are dropped when the client disconnects.
type HistoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]Turn
}

// NewHistoryStore creates an empty history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		conversations: make(map[string][]Turn),
	}
}

// History returns a copy of the client's conversation history, oldest
// first. Unknown clients get an empty history.
func (s *HistoryStore) History(clientID string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.conversations[clientID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Append records a completed exchange as a user turn followed by an
// assistant turn.
func (s *HistoryStore) Append(clientID, userMessage, aiResponse string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[clientID] = append(s.conversations[clientID],
		Turn{Role: "user", Content: userMessage},
		Turn{Role: "assistant", Content: aiResponse},
	)
}

// Clear removes the client's history. Clearing an unknown client is a
// no-op.
func (s *HistoryStore) Clear(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, clientID)
}

// Len returns the number of turns stored for the client.
func (s *HistoryStore) Len(clientID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations[clientID])
}
