package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/inaumanmajeed/epicrealm-support/internal/store"
)

const accountColumns = `id, username, name, email, password_hash, is_admin, created_at`

// CreateAccount inserts an account and fills its ID and CreatedAt.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *store.Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO accounts (username, name, email, password_hash, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		account.Username,
		account.Name,
		account.Email,
		account.PasswordHash,
		account.IsAdmin,
		account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	account.ID = id
	return nil
}

// GetAccountByID retrieves an account by ID.
func (s *SQLiteStore) GetAccountByID(ctx context.Context, id int64) (*store.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("account %d: %w", id, err)
	}
	return account, nil
}

// GetAccountByUsername retrieves an account by username.
func (s *SQLiteStore) GetAccountByUsername(ctx context.Context, username string) (*store.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = ?`
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, username))
	if err != nil {
		return nil, fmt.Errorf("account %q: %w", username, err)
	}
	return account, nil
}

func scanAccount(row rowScanner) (*store.Account, error) {
	var account store.Account
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Name,
		&account.Email,
		&account.PasswordHash,
		&account.IsAdmin,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &account, nil
}
