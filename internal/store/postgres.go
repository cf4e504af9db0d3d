package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists chat history and memory timelines in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_turns (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			response_id TEXT NOT NULL DEFAULT '',
			key_data BOOLEAN NOT NULL DEFAULT FALSE,
			redacted BOOLEAN NOT NULL DEFAULT FALSE,
			seq BIGSERIAL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_turns_user_seq ON chat_turns (user_id, seq);`,
		`CREATE TABLE IF NOT EXISTS memory_timeline (
			user_id TEXT NOT NULL,
			date TEXT NOT NULL,
			memory TEXT NOT NULL,
			last_message_time TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, date)
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// AppendTurns writes the turns in order inside one transaction so a
// user/assistant pair is never half-persisted.
func (s *PostgresStore) AppendTurns(ctx context.Context, userID string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range turns {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO chat_turns (id, user_id, role, content, response_id, key_data, redacted, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			t.ID, userID, t.Role, t.Content, t.ResponseID, t.KeyData, t.Redacted, t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("append turn: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReadAll(ctx context.Context, userID string) ([]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, role, content, response_id, key_data, redacted, created_at
		 FROM chat_turns WHERE user_id=$1 ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Content, &t.ResponseID, &t.KeyData, &t.Redacted, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return turns, nil
}

func (s *PostgresStore) LatestMemory(ctx context.Context, userID string) (*LongTermMemory, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, memory, last_message_time
		 FROM memory_timeline WHERE user_id=$1 ORDER BY date`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query memory timeline: %w", err)
	}
	defer rows.Close()

	mem := &LongTermMemory{UserID: userID}
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.Date, &e.Memory, &e.LastMessageTime); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		mem.Timeline = append(mem.Timeline, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory rows: %w", err)
	}
	if len(mem.Timeline) == 0 {
		return nil, nil
	}
	return mem, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
