package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	turns    map[string][]Turn
	memories map[string]*LongTermMemory
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		turns:    make(map[string][]Turn),
		memories: make(map[string]*LongTermMemory),
	}
}

func (s *InMemoryStore) AppendTurns(_ context.Context, userID string, turns ...Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range turns {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now().UTC()
		}
		t.UserID = userID
		s.turns[userID] = append(s.turns[userID], t)
	}
	return nil
}

func (s *InMemoryStore) ReadAll(_ context.Context, userID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.turns[userID]
	if len(arr) == 0 {
		return nil, nil
	}
	out := make([]Turn, len(arr))
	copy(out, arr)
	return out, nil
}

func (s *InMemoryStore) LatestMemory(_ context.Context, userID string) (*LongTermMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mem, ok := s.memories[userID]
	if !ok || len(mem.Timeline) == 0 {
		return nil, nil
	}
	out := &LongTermMemory{
		UserID:   mem.UserID,
		Timeline: make([]MemoryEntry, len(mem.Timeline)),
	}
	copy(out.Timeline, mem.Timeline)
	return out, nil
}

// PutMemory replaces a user's memory timeline. The production summarizer
// writes through the database directly; this exists for dev and tests.
func (s *InMemoryStore) PutMemory(userID string, mem LongTermMemory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mem.UserID = userID
	s.memories[userID] = &mem
}

func (s *InMemoryStore) Close() error { return nil }
