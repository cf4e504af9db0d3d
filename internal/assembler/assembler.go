package assembler

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Upendra2003/Aira-Backend/internal/retrieval"
	"github.com/Upendra2003/Aira-Backend/internal/session"
	"github.com/Upendra2003/Aira-Backend/internal/store"
)

// noMemoryPlaceholder is what the generator sees for brand-new users.
const noMemoryPlaceholder = "No memory available yet."

// GenerationContext bundles everything the generator needs for one turn.
type GenerationContext struct {
	UserID            string
	ContinuityPhrase  string
	MemorySummary     string
	History           []store.Turn
	RetrievedSnippets []string
	UserMessage       string
	Now               time.Time
}

// Assembler builds the generation context for a turn: short-term history
// from the session cache, the long-term memory summary, a continuity phrase
// for the elapsed-time gap, and best-effort reference snippets.
type Assembler struct {
	sessions  *session.Cache
	memory    store.MemoryStore
	retriever retrieval.Retriever

	clock            session.Clock
	historyLimit     int
	retrievalK       int
	retrievalTimeout time.Duration
}

func New(sessions *session.Cache, memory store.MemoryStore, retriever retrieval.Retriever, historyLimit, retrievalK int, retrievalTimeout time.Duration) *Assembler {
	if historyLimit <= 0 {
		historyLimit = 32
	}
	if retrievalK <= 0 {
		retrievalK = 2
	}
	if retrievalTimeout <= 0 {
		retrievalTimeout = 2 * time.Second
	}
	return &Assembler{
		sessions:         sessions,
		memory:           memory,
		retriever:        retriever,
		clock:            func() time.Time { return time.Now().UTC() },
		historyLimit:     historyLimit,
		retrievalK:       retrievalK,
		retrievalTimeout: retrievalTimeout,
	}
}

// SetClock overrides the assembler's clock. Call before use; not synchronized.
func (a *Assembler) SetClock(clock session.Clock) {
	if clock != nil {
		a.clock = clock
	}
}

// Assemble never fails: every collaborator fault degrades to an empty or
// placeholder section so the turn can still be generated.
func (a *Assembler) Assemble(ctx context.Context, userID, userMessage string) GenerationContext {
	now := a.clock()

	history := a.sessions.Get(ctx, userID)
	if len(history) > a.historyLimit {
		history = history[len(history)-a.historyLimit:]
	}

	memorySummary, memoryLast, memoryKnown := a.loadMemory(ctx, userID)

	last, known := lastContact(history, memoryLast, memoryKnown)
	phrase := continuityPhrase(now, last, known)

	snippets := a.retrieveSnippets(ctx, userMessage)

	return GenerationContext{
		UserID:            userID,
		ContinuityPhrase:  phrase,
		MemorySummary:     memorySummary,
		History:           history,
		RetrievedSnippets: snippets,
		UserMessage:       userMessage,
		Now:               now,
	}
}

func (a *Assembler) loadMemory(ctx context.Context, userID string) (summary string, lastMessage time.Time, known bool) {
	summary = noMemoryPlaceholder
	if a.memory == nil {
		return summary, time.Time{}, false
	}

	mem, err := a.memory.LatestMemory(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("memory store read failed, assembling without memory")
		return summary, time.Time{}, false
	}
	latest, ok := mem.Latest()
	if !ok {
		return summary, time.Time{}, false
	}

	if latest.Memory != "" {
		summary = latest.Memory
	}
	if latest.LastMessageTime.IsZero() {
		// Malformed timeline entry; the memory text is still usable but the
		// gap is unknown.
		return summary, time.Time{}, false
	}
	return summary, latest.LastMessageTime, true
}

func (a *Assembler) retrieveSnippets(ctx context.Context, userMessage string) []string {
	if a.retriever == nil {
		return nil
	}
	rctx, cancel := context.WithTimeout(ctx, a.retrievalTimeout)
	defer cancel()

	snippets, err := a.retriever.Similar(rctx, userMessage, a.retrievalK)
	if err != nil {
		log.WithError(err).Debug("snippet retrieval failed, continuing without references")
		return nil
	}
	return snippets
}

// lastContact picks the most recent turn timestamp, falling back to the
// memory timeline when the session history is empty.
func lastContact(history []store.Turn, memoryLast time.Time, memoryKnown bool) (time.Time, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].CreatedAt.IsZero() {
			return history[i].CreatedAt, true
		}
	}
	if memoryKnown {
		return memoryLast, true
	}
	return time.Time{}, false
}
