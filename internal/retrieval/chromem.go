package retrieval

import (
	"context"
	"fmt"
	"os"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

const snippetCollection = "therapist_replies"

// ChromemRetriever serves top-k snippet retrieval from an embedded,
// disk-persisted vector store.
type ChromemRetriever struct {
	mu      sync.RWMutex
	db      *chromem.DB
	embedFn chromem.EmbeddingFunc
}

func NewChromemRetriever(cfg Config) (*ChromemRetriever, error) {
	if err := os.MkdirAll(cfg.VectorDir, 0o750); err != nil {
		return nil, fmt.Errorf("create vector dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(cfg.VectorDir, false)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	embedFn := chromem.NewEmbeddingFuncOpenAICompat(
		cfg.EmbeddingsBaseURL,
		cfg.EmbeddingsAPIKey,
		cfg.EmbeddingsModel,
		nil,
	)
	return &ChromemRetriever{db: db, embedFn: embedFn}, nil
}

func (r *ChromemRetriever) collection() (*chromem.Collection, error) {
	col, err := r.db.GetOrCreateCollection(snippetCollection, nil, r.embedFn)
	if err != nil {
		return nil, fmt.Errorf("open snippet collection: %w", err)
	}
	return col, nil
}

func (r *ChromemRetriever) Similar(ctx context.Context, text string, k int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	col, err := r.collection()
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	// chromem occasionally rejects k despite the Count clamp; step down
	// instead of failing the whole lookup.
	var results []chromem.Result
	for attemptK := k; attemptK > 0; attemptK-- {
		results, err = col.Query(ctx, text, attemptK, nil, nil)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(results))
	for _, res := range results {
		out = append(out, res.Content)
	}
	return out, nil
}

// Add indexes (or re-indexes) one reference snippet.
func (r *ChromemRetriever) Add(ctx context.Context, id, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	col, err := r.collection()
	if err != nil {
		return err
	}
	return col.AddDocument(ctx, chromem.Document{ID: id, Content: content})
}
