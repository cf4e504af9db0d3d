package retrieval

import (
	"context"
	"strings"
)

// Retriever finds reference snippets semantically similar to a user message.
// Retrieval is an enhancement: callers treat any error as "no snippets".
type Retriever interface {
	Similar(ctx context.Context, text string, k int) ([]string, error)
}

// Indexer is implemented by retrievers that accept new reference snippets.
type Indexer interface {
	Add(ctx context.Context, id, content string) error
}

// Config controls retriever construction.
type Config struct {
	VectorDir         string
	EmbeddingsBaseURL string
	EmbeddingsAPIKey  string
	EmbeddingsModel   string
}

// New returns a chromem-backed retriever when a vector directory and an
// embeddings endpoint are configured, otherwise a no-op retriever.
func New(cfg Config) (Retriever, error) {
	if strings.TrimSpace(cfg.VectorDir) == "" || strings.TrimSpace(cfg.EmbeddingsBaseURL) == "" {
		return NewNoopRetriever(), nil
	}
	return NewChromemRetriever(cfg)
}

// NoopRetriever always returns no snippets.
type NoopRetriever struct{}

func NewNoopRetriever() *NoopRetriever { return &NoopRetriever{} }

func (r *NoopRetriever) Similar(context.Context, string, int) ([]string, error) {
	return nil, nil
}
