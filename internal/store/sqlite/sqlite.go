package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/inaumanmajeed/epicrealm-support/internal/store"
)

// schema is applied on every open; statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	is_admin      BOOLEAN NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS chats (
	id                   TEXT PRIMARY KEY,
	visitor_kind         TEXT NOT NULL,
	visitor_id           TEXT NOT NULL,
	assigned_staff_id    INTEGER,
	subject              TEXT NOT NULL,
	priority             TEXT NOT NULL DEFAULT 'medium',
	status               TEXT NOT NULL DEFAULT 'open',
	is_active            BOOLEAN NOT NULL DEFAULT 1,
	unread_by_staff      INTEGER NOT NULL DEFAULT 0,
	unread_by_visitor    INTEGER NOT NULL DEFAULT 0,
	visitor_display_name TEXT NOT NULL DEFAULT '',
	visitor_handle       TEXT NOT NULL DEFAULT '',
	last_message_id      INTEGER,
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL,
	FOREIGN KEY (assigned_staff_id) REFERENCES accounts(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_chats_visitor ON chats(visitor_kind, visitor_id, status);
CREATE INDEX IF NOT EXISTS idx_chats_updated ON chats(is_active, updated_at DESC);

CREATE TABLE IF NOT EXISTS chat_messages (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id            TEXT NOT NULL,
	sender_kind        TEXT NOT NULL,
	sender_id          TEXT NOT NULL,
	content            TEXT NOT NULL,
	message_type       TEXT NOT NULL DEFAULT 'text',
	attachments        TEXT NOT NULL DEFAULT '[]',
	is_read_by_staff   BOOLEAN NOT NULL DEFAULT 0,
	read_by_staff_at   DATETIME,
	is_read_by_visitor BOOLEAN NOT NULL DEFAULT 0,
	read_by_visitor_at DATETIME,
	is_internal_note   BOOLEAN NOT NULL DEFAULT 0,
	is_edited          BOOLEAN NOT NULL DEFAULT 0,
	edited_at          DATETIME,
	created_at         DATETIME NOT NULL,
	FOREIGN KEY (chat_id) REFERENCES chats(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_chat ON chat_messages(chat_id, created_at, id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file, or ":memory:".
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate applies the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// inTx runs fn inside a transaction, committing only when fn succeeds.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
