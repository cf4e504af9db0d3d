package store

import (
	"context"
	"strings"
)

// NewStore picks a backend: postgres when DATABASE_URL is configured, a
// sqlite file when SQLITE_PATH is, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL, sqlitePath string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(sqlitePath) != "" {
		return NewSQLiteStore(ctx, sqlitePath)
	}
	return NewInMemoryStore(), nil
}
