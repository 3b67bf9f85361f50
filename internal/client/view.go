package client

import (
	"sync"

	"github.com/sibylchat/sibyl/internal/agent"
)

// EntryKind labels a conversation entry.
type EntryKind string

const (
	EntryUser      EntryKind = "user"
	EntryAssistant EntryKind = "assistant"
	EntryError     EntryKind = "error"
	EntrySystem    EntryKind = "system"
)

// Entry is one item in the conversation transcript. Sources carries
// citation links on assistant entries, for frontends that render them.
type Entry struct {
	Kind      EntryKind
	Text      string
	HTML      string
	RequestID string
	Sources   []agent.Source
}

// ConversationView is the append-only transcript a frontend renders
// from. User messages are echoed optimistically when submitted; the
// matching assistant entry (or error) arrives later. A transient
// status line tracks in-flight progress without entering the
// transcript.
type ConversationView struct {
	mu      sync.Mutex
	entries []Entry
	status  string
}

// NewConversationView creates an empty view.
func NewConversationView() *ConversationView {
	return &ConversationView{}
}

// Append adds an entry to the transcript.
func (v *ConversationView) Append(e Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = append(v.entries, e)
	v.status = ""
}

// SetStatus replaces the transient status line.
func (v *ConversationView) SetStatus(status string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = status
}

// Status returns the transient status line, or "" when idle.
func (v *ConversationView) Status() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Entries returns a copy of the transcript.
func (v *ConversationView) Entries() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Len returns the number of transcript entries.
func (v *ConversationView) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}

// Reset clears the transcript, keeping the view usable.
func (v *ConversationView) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = nil
	v.status = ""
}
