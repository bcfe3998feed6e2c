// Package sqlite persists collected messages in a local SQLite database
// with insert-if-absent semantics over the (id, chat_id) pair.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	"tgvault/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER NOT NULL,
	chat_id INTEGER NOT NULL,
	sender TEXT,
	text TEXT,
	date TIMESTAMP,
	PRIMARY KEY (id, chat_id)
);

CREATE INDEX IF NOT EXISTS idx_chat_id ON messages(chat_id);
CREATE INDEX IF NOT EXISTS idx_date ON messages(date);
`

type Store struct {
	db *sqlx.DB
}

// Open connects to the database file at path. SQLite does not support
// concurrent writers, so the pool is capped at a single connection.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("db path is required")
	}

	db, err := sqlx.Connect("sqlite", filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Init creates the messages table and its indexes. Safe to call on every
// process start.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Save inserts the message if the (id, chat_id) pair is absent and reports
// whether a new row was written. A duplicate is a normal outcome under
// at-least-once delivery and overlapping history windows, never an error.
func (s *Store) Save(ctx context.Context, msg domain.Message) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO messages (id, chat_id, sender, text, date) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.Sender, msg.Text, msg.Date)
	if err != nil {
		return false, fmt.Errorf("save message %d in chat %d: %w", msg.ID, msg.ChatID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save message %d in chat %d: %w", msg.ID, msg.ChatID, err)
	}
	return affected > 0, nil
}

// Count returns the total number of stored messages.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM messages`); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// CountByChat returns the number of stored messages for one chat.
func (s *Store) CountByChat(ctx context.Context, chatID int64) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM messages WHERE chat_id = ?`, chatID); err != nil {
		return 0, fmt.Errorf("count messages for chat %d: %w", chatID, err)
	}
	return n, nil
}
