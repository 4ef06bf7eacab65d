package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/inaumanmajeed/epicrealm-support/internal/store"
)

const chatSelect = `
	SELECT c.id, c.visitor_kind, c.visitor_id, c.assigned_staff_id,
	       COALESCE(a.username, ''), COALESCE(a.name, ''),
	       c.subject, c.priority, c.status, c.is_active,
	       c.unread_by_staff, c.unread_by_visitor,
	       c.visitor_display_name, c.visitor_handle, c.last_message_id,
	       c.created_at, c.updated_at
	FROM chats c
	LEFT JOIN accounts a ON a.id = c.assigned_staff_id
`

// CreateChat inserts a chat with the ID already set.
func (s *SQLiteStore) CreateChat(ctx context.Context, chat *store.Chat) error {
	now := time.Now().UTC()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}
	if chat.UpdatedAt.IsZero() {
		chat.UpdatedAt = chat.CreatedAt
	}

	var staffID *int64
	if chat.AssignedStaff != nil {
		staffID = &chat.AssignedStaff.ID
	}

	query := `
		INSERT INTO chats (
			id, visitor_kind, visitor_id, assigned_staff_id, subject, priority, status, is_active,
			unread_by_staff, unread_by_visitor, visitor_display_name, visitor_handle, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		chat.ID,
		chat.Visitor.Kind,
		chat.Visitor.ID,
		staffID,
		chat.Subject,
		chat.Priority,
		chat.Status,
		chat.IsActive,
		chat.UnreadByStaff,
		chat.UnreadByVisitor,
		chat.VisitorDisplayName,
		chat.VisitorHandle,
		chat.CreatedAt,
		chat.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

// GetChat retrieves a chat by ID.
func (s *SQLiteStore) GetChat(ctx context.Context, id string) (*store.Chat, error) {
	return getChat(ctx, s.db, id)
}

func getChat(ctx context.Context, q querier, id string) (*store.Chat, error) {
	chat, err := scanChat(q.QueryRowContext(ctx, chatSelect+` WHERE c.id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("chat %s: %w", id, err)
	}
	return chat, nil
}

// FindActiveChat returns the visitor's open or in-progress chat.
func (s *SQLiteStore) FindActiveChat(ctx context.Context, visitor store.Party) (*store.Chat, error) {
	query := chatSelect + `
		WHERE c.visitor_kind = ? AND c.visitor_id = ?
		  AND c.status IN ('open', 'in-progress')
		  AND c.is_active = 1
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT 1
	`
	chat, err := scanChat(s.db.QueryRowContext(ctx, query, visitor.Kind, visitor.ID))
	if err != nil {
		return nil, fmt.Errorf("active chat for %s: %w", visitor, err)
	}
	return chat, nil
}

// ListActiveChatIDs returns ids of active chats, optionally only one visitor's.
func (s *SQLiteStore) ListActiveChatIDs(ctx context.Context, visitor *store.Party) ([]string, error) {
	query := `SELECT id FROM chats WHERE is_active = 1`
	var args []any
	if visitor != nil {
		query += ` AND visitor_kind = ? AND visitor_id = ?`
		args = append(args, visitor.Kind, visitor.ID)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListChats lists active chats most recently updated first.
func (s *SQLiteStore) ListChats(ctx context.Context, filter store.ChatFilter) ([]*store.Chat, error) {
	var (
		where = []string{"c.is_active = 1"}
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "c.status = ?")
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		where = append(where, "c.priority = ?")
		args = append(args, filter.Priority)
	}

	limit := filter.Limit
	if limit <= 0 || limit > store.MaxChatListLimit {
		limit = store.MaxChatListLimit
	}
	args = append(args, limit)

	query := chatSelect + ` WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY c.updated_at DESC, c.id DESC
		LIMIT ?
	`
	return queryChats(ctx, s.db, query, args...)
}

func queryChats(ctx context.Context, q querier, query string, args ...any) ([]*store.Chat, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	var chats []*store.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// UpdateChat applies a partial update and returns the new state.
func (s *SQLiteStore) UpdateChat(ctx context.Context, id string, update store.ChatUpdate, at time.Time) (*store.Chat, error) {
	sets := []string{"updated_at = ?"}
	args := []any{at.UTC()}

	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *update.Status)
	}
	if update.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *update.Priority)
	}
	switch {
	case update.ClearAssignment:
		sets = append(sets, "assigned_staff_id = NULL")
	case update.AssignStaffID != nil:
		sets = append(sets, "assigned_staff_id = ?")
		args = append(args, *update.AssignStaffID)
	}
	args = append(args, id)

	var chat *store.Chat
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE chats SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update chat: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("chat %s: %w", id, store.ErrNotFound)
		}
		chat, err = getChat(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// SetVisitorDisplay renames the visitor on all of their chats.
func (s *SQLiteStore) SetVisitorDisplay(ctx context.Context, visitor store.Party, displayName, handle string) (int64, error) {
	query := `
		UPDATE chats
		SET visitor_display_name = ?, visitor_handle = ?
		WHERE visitor_kind = ? AND visitor_id = ?
	`
	result, err := s.db.ExecContext(ctx, query, displayName, handle, visitor.Kind, visitor.ID)
	if err != nil {
		return 0, fmt.Errorf("update visitor display: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// DeleteChat removes a chat and all of its messages.
func (s *SQLiteStore) DeleteChat(ctx context.Context, id string) (*store.Chat, error) {
	var chat *store.Chat
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		chat, err = getChat(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE chat_id = ?`, id); err != nil {
			return fmt.Errorf("delete chat messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete chat: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// DeleteActiveChats removes every active chat with its messages.
func (s *SQLiteStore) DeleteActiveChats(ctx context.Context) ([]*store.Chat, error) {
	var chats []*store.Chat
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		chats, err = queryChats(ctx, tx, chatSelect+` WHERE c.is_active = 1`)
		if err != nil {
			return err
		}
		deleteMessages := `DELETE FROM chat_messages WHERE chat_id IN (SELECT id FROM chats WHERE is_active = 1)`
		if _, err := tx.ExecContext(ctx, deleteMessages); err != nil {
			return fmt.Errorf("delete chat messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE is_active = 1`); err != nil {
			return fmt.Errorf("delete chats: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chats, nil
}

// Stats counts chats and messages; TodayChats counts chats created at or after since.
func (s *SQLiteStore) Stats(ctx context.Context, since time.Time) (*store.ChatStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM chats WHERE is_active = 1),
			(SELECT COUNT(*) FROM chats WHERE is_active = 1 AND created_at >= ?),
			(SELECT COUNT(*) FROM chats WHERE is_active = 1 AND status IN ('open', 'in-progress')),
			(SELECT COUNT(*) FROM chat_messages)
	`
	var stats store.ChatStats
	err := s.db.QueryRowContext(ctx, query, since.UTC()).Scan(
		&stats.TotalChats,
		&stats.TodayChats,
		&stats.ActiveChats,
		&stats.TotalMessages,
	)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	return &stats, nil
}

func scanChat(row rowScanner) (*store.Chat, error) {
	var (
		chat          store.Chat
		staffID       sql.NullInt64
		staffUsername string
		staffName     string
		lastMessageID sql.NullInt64
	)
	err := row.Scan(
		&chat.ID,
		&chat.Visitor.Kind,
		&chat.Visitor.ID,
		&staffID,
		&staffUsername,
		&staffName,
		&chat.Subject,
		&chat.Priority,
		&chat.Status,
		&chat.IsActive,
		&chat.UnreadByStaff,
		&chat.UnreadByVisitor,
		&chat.VisitorDisplayName,
		&chat.VisitorHandle,
		&lastMessageID,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan chat: %w", err)
	}

	if staffID.Valid {
		chat.AssignedStaff = &store.StaffRef{ID: staffID.Int64, Username: staffUsername, Name: staffName}
	}
	if lastMessageID.Valid {
		chat.LastMessageID = &lastMessageID.Int64
	}
	return &chat, nil
}
