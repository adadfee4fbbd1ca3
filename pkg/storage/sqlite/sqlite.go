// Package sqlite provides a SQLite-backed message store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/inkwellco/spool/pkg/storage"
)

// SQLiteDriver implements storage.Driver using SQLite.
type SQLiteDriver struct {
	db *sql.DB
}

// NewSQLiteDriver creates a new SQLite-backed message store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDriver(dbPath string) (*SQLiteDriver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite-specific pragmas
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteDriver{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating messages table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`); err != nil {
		return fmt.Errorf("creating conversation index: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS summaries (
			conversation_id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			token_count INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating summaries table: %w", err)
	}
	return nil
}

// CreateMessage stores a message, filling in a missing ID or CreatedAt.
func (s *SQLiteDriver) CreateMessage(ctx context.Context, msg *storage.Message) error {
	if msg == nil {
		return errors.New("cannot store nil message")
	}
	if msg.ConversationID == "" {
		return errors.New("message conversation ID is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages(id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages in chronological order.
func (s *SQLiteDriver) ListMessages(ctx context.Context, conversationID string) ([]storage.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at, id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []storage.Message
	for rows.Next() {
		var msg storage.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}

// LatestSummary returns the newest summary for a conversation, or nil.
func (s *SQLiteDriver) LatestSummary(ctx context.Context, conversationID string) (*storage.Summary, error) {
	var summary storage.Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, content, token_count, created_at FROM summaries WHERE conversation_id = ?`,
		conversationID,
	).Scan(&summary.ConversationID, &summary.Content, &summary.TokenCount, &summary.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("querying summary: %w", err)
	}
	return &summary, nil
}

// PutSummary stores a summary as the conversation's latest.
func (s *SQLiteDriver) PutSummary(ctx context.Context, summary *storage.Summary) error {
	if summary == nil {
		return errors.New("cannot store nil summary")
	}
	if summary.ConversationID == "" {
		return errors.New("summary conversation ID is required")
	}

	createdAt := summary.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries(conversation_id, content, token_count, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			content = excluded.content,
			token_count = excluded.token_count,
			created_at = excluded.created_at
	`, summary.ConversationID, summary.Content, summary.TokenCount, createdAt)
	if err != nil {
		return fmt.Errorf("storing summary: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteDriver) Close() error {
	return s.db.Close()
}
