package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Upendra2003/Aira-Backend/internal/assembler"
	"github.com/Upendra2003/Aira-Backend/internal/llm"
	"github.com/Upendra2003/Aira-Backend/internal/retrieval"
	"github.com/Upendra2003/Aira-Backend/internal/session"
	"github.com/Upendra2003/Aira-Backend/internal/store"
)

type fakeGenerator struct {
	reply string
	err   error
}

func (f *fakeGenerator) Complete(_ context.Context, gc assembler.GenerationContext) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.reply != "" {
		return f.reply, nil
	}
	return fmt.Sprintf("heard: %s ||| I'm here.", gc.UserMessage), nil
}

type failingHistory struct {
	*store.InMemoryStore
}

func (f *failingHistory) AppendTurns(context.Context, string, ...store.Turn) error {
	return errors.New("disk full")
}

func newTestPipeline(st store.Store, gen llm.Generator) (*Pipeline, *session.Cache) {
	sessions := session.NewCache(st, nil, 5*time.Minute, 10*time.Minute)
	asm := assembler.New(sessions, st, retrieval.NewNoopRetriever(), 32, 2, time.Second)
	p := NewPipeline(asm, gen, st, sessions, nil, 5*time.Second)
	return p, sessions
}

func TestHandleTurnPersistsAtomicPair(t *testing.T) {
	st := store.NewInMemoryStore()
	p, _ := newTestPipeline(st, &fakeGenerator{})
	ctx := context.Background()

	reply, err := p.HandleTurn(ctx, "u1", "rough day today")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if len(reply.Bubbles) != 2 {
		t.Fatalf("len(Bubbles) = %d, want 2", len(reply.Bubbles))
	}
	if reply.ResponseID == "" {
		t.Fatalf("ResponseID empty")
	}

	turns, err := st.ReadAll(ctx, "u1")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want user+assistant pair", len(turns))
	}
	if turns[0].Role != store.RoleUser || turns[1].Role != store.RoleAI {
		t.Fatalf("roles = %q,%q, want User,AI", turns[0].Role, turns[1].Role)
	}
	if turns[0].ResponseID != turns[1].ResponseID {
		t.Fatalf("pair ResponseIDs differ: %q vs %q", turns[0].ResponseID, turns[1].ResponseID)
	}
	if turns[1].CreatedAt.Before(turns[0].CreatedAt) {
		t.Fatalf("assistant turn predates user turn")
	}
}

func TestCacheMatchesStoreAfterTurns(t *testing.T) {
	st := store.NewInMemoryStore()
	p, sessions := newTestPipeline(st, &fakeGenerator{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := p.HandleTurn(ctx, "u1", fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("HandleTurn() error = %v", err)
		}
	}

	cached := sessions.Get(ctx, "u1")
	durable, err := st.ReadAll(ctx, "u1")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(cached) != len(durable) {
		t.Fatalf("cached %d turns, store has %d", len(cached), len(durable))
	}
	for i := range cached {
		if cached[i].ID != durable[i].ID {
			t.Fatalf("turn %d: cached ID %q != stored ID %q", i, cached[i].ID, durable[i].ID)
		}
	}
}

func TestHandleTurnRejectsEmptyMessage(t *testing.T) {
	st := store.NewInMemoryStore()
	p, _ := newTestPipeline(st, &fakeGenerator{})
	ctx := context.Background()

	_, err := p.HandleTurn(ctx, "u1", "   \n ")
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("HandleTurn() error = %v, want ErrEmptyMessage", err)
	}
	if IsRetryable(err) {
		t.Fatalf("empty message classified retryable")
	}

	turns, _ := st.ReadAll(ctx, "u1")
	if len(turns) != 0 {
		t.Fatalf("len(turns) = %d, want nothing persisted", len(turns))
	}
}

func TestHandleTurnGenerationFailurePersistsNothing(t *testing.T) {
	st := store.NewInMemoryStore()
	p, _ := newTestPipeline(st, &fakeGenerator{err: &llm.StatusError{Code: 503, Body: "overloaded"}})
	ctx := context.Background()

	_, err := p.HandleTurn(ctx, "u1", "hello")
	if err == nil {
		t.Fatalf("HandleTurn() error = nil, want generation failure")
	}
	var te *TurnError
	if !errors.As(err, &te) || te.Stage != StageGenerate {
		t.Fatalf("error = %v, want generate-stage TurnError", err)
	}
	if !IsRetryable(err) {
		t.Fatalf("503 generation failure should be retryable")
	}

	turns, _ := st.ReadAll(ctx, "u1")
	if len(turns) != 0 {
		t.Fatalf("len(turns) = %d, want no phantom user turn", len(turns))
	}
}

func TestHandleTurnNonRetryableStatus(t *testing.T) {
	st := store.NewInMemoryStore()
	p, _ := newTestPipeline(st, &fakeGenerator{err: &llm.StatusError{Code: 400, Body: "bad request"}})

	_, err := p.HandleTurn(context.Background(), "u1", "hello")
	if err == nil {
		t.Fatalf("HandleTurn() error = nil, want failure")
	}
	if IsRetryable(err) {
		t.Fatalf("400 generation failure should not be retryable")
	}
}

func TestHandleTurnPersistFailureInvalidatesCache(t *testing.T) {
	st := &failingHistory{InMemoryStore: store.NewInMemoryStore()}
	sessions := session.NewCache(st, nil, 5*time.Minute, 10*time.Minute)
	asm := assembler.New(sessions, st, retrieval.NewNoopRetriever(), 32, 2, time.Second)
	p := NewPipeline(asm, &fakeGenerator{}, st, sessions, nil, 5*time.Second)
	ctx := context.Background()

	_, err := p.HandleTurn(ctx, "u1", "hello")
	var te *TurnError
	if !errors.As(err, &te) || te.Stage != StagePersist {
		t.Fatalf("error = %v, want persist-stage TurnError", err)
	}
	if !te.Retryable {
		t.Fatalf("persist failure should be retryable")
	}
	if sessions.Len() != 0 {
		t.Fatalf("cache Len() = %d, want invalidated after persist failure", sessions.Len())
	}
}

func TestHandleTurnRedactsAndFlagsUserTurn(t *testing.T) {
	st := store.NewInMemoryStore()
	p, _ := newTestPipeline(st, &fakeGenerator{})
	ctx := context.Background()

	_, err := p.HandleTurn(ctx, "u1", "urgent, please email me at sam@example.com")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	turns, _ := st.ReadAll(ctx, "u1")
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	user := turns[0]
	if !user.KeyData {
		t.Fatalf("KeyData = false, want urgent message flagged")
	}
	if !user.Redacted || strings.Contains(user.Content, "sam@example.com") {
		t.Fatalf("Content = %q, want email redacted", user.Content)
	}
	if !strings.Contains(user.Content, "[REDACTED_EMAIL]") {
		t.Fatalf("Content = %q, want redaction marker", user.Content)
	}
}

func TestConcurrentTurnsSameUserStayPaired(t *testing.T) {
	st := store.NewInMemoryStore()
	p, _ := newTestPipeline(st, &fakeGenerator{})
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := p.HandleTurn(ctx, "u1", fmt.Sprintf("message %d", i)); err != nil {
				t.Errorf("HandleTurn() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	turns, err := st.ReadAll(ctx, "u1")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(turns) != 2*n {
		t.Fatalf("len(turns) = %d, want %d", len(turns), 2*n)
	}
	for i := 0; i < len(turns); i += 2 {
		if turns[i].Role != store.RoleUser || turns[i+1].Role != store.RoleAI {
			t.Fatalf("pair %d roles = %q,%q, want User,AI", i/2, turns[i].Role, turns[i+1].Role)
		}
		if turns[i].ResponseID != turns[i+1].ResponseID {
			t.Fatalf("pair %d interleaved: %q vs %q", i/2, turns[i].ResponseID, turns[i+1].ResponseID)
		}
	}
	if p.InFlight() != 0 {
		t.Fatalf("InFlight() = %d, want lock table drained", p.InFlight())
	}
}

func TestConcurrentTurnsDifferentUsersProceed(t *testing.T) {
	st := store.NewInMemoryStore()
	p, _ := newTestPipeline(st, &fakeGenerator{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, user := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			if _, err := p.HandleTurn(ctx, user, "hi"); err != nil {
				t.Errorf("HandleTurn(%s) error = %v", user, err)
			}
		}(user)
	}
	wg.Wait()

	for _, user := range []string{"a", "b", "c"} {
		turns, _ := st.ReadAll(ctx, user)
		if len(turns) != 2 {
			t.Fatalf("user %s len(turns) = %d, want 2", user, len(turns))
		}
	}
}
