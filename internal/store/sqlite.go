package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file backend for installs without Postgres.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite handles are not safe for concurrent writers.
	db.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_turns (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			response_id TEXT NOT NULL DEFAULT '',
			key_data INTEGER NOT NULL DEFAULT 0,
			redacted INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_turns_user_seq ON chat_turns (user_id, seq);`,
		`CREATE TABLE IF NOT EXISTS memory_timeline (
			user_id TEXT NOT NULL,
			date TEXT NOT NULL,
			memory TEXT NOT NULL,
			last_message_time TEXT NOT NULL,
			PRIMARY KEY (user_id, date)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AppendTurns(ctx context.Context, userID string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	for _, t := range turns {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chat_turns (id, user_id, role, content, response_id, key_data, redacted, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, userID, t.Role, t.Content, t.ResponseID, t.KeyData, t.Redacted, t.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("append turn: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReadAll(ctx context.Context, userID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, role, content, response_id, key_data, redacted, created_at
		 FROM chat_turns WHERE user_id=? ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var createdAt string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Content, &t.ResponseID, &t.KeyData, &t.Redacted, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse turn timestamp %q: %w", createdAt, err)
		}
		t.CreatedAt = ts
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return turns, nil
}

func (s *SQLiteStore) LatestMemory(ctx context.Context, userID string) (*LongTermMemory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, memory, last_message_time
		 FROM memory_timeline WHERE user_id=? ORDER BY date`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query memory timeline: %w", err)
	}
	defer rows.Close()

	mem := &LongTermMemory{UserID: userID}
	for rows.Next() {
		var e MemoryEntry
		var lastMsg string
		if err := rows.Scan(&e.Date, &e.Memory, &lastMsg); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, lastMsg)
		if err != nil {
			return nil, fmt.Errorf("parse memory timestamp %q: %w", lastMsg, err)
		}
		e.LastMessageTime = ts
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
