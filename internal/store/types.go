package store

import (
	"context"
	"time"
)

// Turn roles match the role tags the mobile clients already store.
const (
	RoleUser = "User"
	RoleAI   = "AI"
)

// Turn is a single conversational turn, immutable once appended.
type Turn struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	ResponseID string    `json:"response_id,omitempty"`
	KeyData    bool      `json:"key_data,omitempty"`
	Redacted   bool      `json:"redacted,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// MemoryEntry is one day's emotional-memory summary.
type MemoryEntry struct {
	Date            string    `json:"date"`
	Memory          string    `json:"memory"`
	LastMessageTime time.Time `json:"last_message_time"`
}

// LongTermMemory is a user's rolling memory timeline, newest entry last.
// It is produced by the external summarization job; this service only reads it.
type LongTermMemory struct {
	UserID   string        `json:"user_id"`
	Timeline []MemoryEntry `json:"timeline"`
}

// Latest returns the most recent timeline entry, or false when empty.
func (m *LongTermMemory) Latest() (MemoryEntry, bool) {
	if m == nil || len(m.Timeline) == 0 {
		return MemoryEntry{}, false
	}
	return m.Timeline[len(m.Timeline)-1], true
}

// HistoryStore is the durable per-user turn log.
type HistoryStore interface {
	// AppendTurns persists turns for a user as one ordered write.
	AppendTurns(ctx context.Context, userID string, turns ...Turn) error
	// ReadAll returns the full turn log in chronological order; empty for
	// unknown users.
	ReadAll(ctx context.Context, userID string) ([]Turn, error)
	Close() error
}

// MemoryStore reads the long-term memory timeline.
type MemoryStore interface {
	// LatestMemory returns the user's memory timeline, or nil when the user
	// has no memory yet.
	LatestMemory(ctx context.Context, userID string) (*LongTermMemory, error)
	Close() error
}

// Store combines both durable collaborators; every backend implements both
// so one connection serves the whole service.
type Store interface {
	HistoryStore
	MemoryStore
}
