package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/inaumanmajeed/epicrealm-support/internal/store"
)

const messageColumns = `
	id, chat_id, sender_kind, sender_id, content, message_type, attachments,
	is_read_by_staff, read_by_staff_at, is_read_by_visitor, read_by_visitor_at,
	is_internal_note, is_edited, edited_at, created_at
`

// RecordMessage inserts msg and applies bump to its chat in one transaction.
func (s *SQLiteStore) RecordMessage(ctx context.Context, msg *store.Message, bump store.MessageBump) (*store.Chat, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Type == "" {
		msg.Type = store.MessageTypeText
	}
	if msg.Attachments == nil {
		msg.Attachments = []store.Attachment{}
	}

	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return nil, fmt.Errorf("encode attachments: %w", err)
	}

	var chat *store.Chat
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := bumpCounters(ctx, tx, msg.ChatID, bump); err != nil {
			return err
		}

		if bump.AutoAssignStaffID != nil {
			autoAssign := `
				UPDATE chats
				SET assigned_staff_id = ?, status = 'in-progress'
				WHERE id = ? AND assigned_staff_id IS NULL
			`
			if _, err := tx.ExecContext(ctx, autoAssign, *bump.AutoAssignStaffID, msg.ChatID); err != nil {
				return fmt.Errorf("auto-assign chat: %w", err)
			}
		}

		insert := `
			INSERT INTO chat_messages (
				chat_id, sender_kind, sender_id, content, message_type, attachments,
				is_read_by_staff, read_by_staff_at, is_read_by_visitor, read_by_visitor_at,
				is_internal_note, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		result, err := tx.ExecContext(ctx, insert,
			msg.ChatID,
			msg.Sender.Kind,
			msg.Sender.ID,
			msg.Content,
			msg.Type,
			string(attachments),
			msg.IsReadByStaff,
			msg.ReadByStaffAt,
			msg.IsReadByVisitor,
			msg.ReadByVisitorAt,
			msg.IsInternalNote,
			msg.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		msg.ID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("get last insert id: %w", err)
		}

		touch := `UPDATE chats SET last_message_id = ?, updated_at = ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, touch, msg.ID, msg.CreatedAt, msg.ChatID); err != nil {
			return fmt.Errorf("touch chat: %w", err)
		}

		chat, err = getChat(ctx, tx, msg.ChatID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func bumpCounters(ctx context.Context, tx *sql.Tx, chatID string, bump store.MessageBump) error {
	own, other := "unread_by_staff", "unread_by_visitor"
	if bump.SenderSide == store.ReadSideVisitor {
		own, other = other, own
	}

	query := `UPDATE chats SET ` + own + ` = 0`
	if !bump.SkipOtherSide {
		query += `, ` + other + ` = ` + other + ` + 1`
	}
	query += ` WHERE id = ?`

	result, err := tx.ExecContext(ctx, query, chatID)
	if err != nil {
		return fmt.Errorf("update unread counters: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("chat %s: %w", chatID, store.ErrNotFound)
	}
	return nil
}

// ListMessages returns a chat's messages in creation order.
func (s *SQLiteStore) ListMessages(ctx context.Context, chatID string, includeInternal bool) ([]*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE chat_id = ?`
	if !includeInternal {
		query += ` AND is_internal_note = 0`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// MarkRead flags unread messages for one side and zeroes that side's counter.
func (s *SQLiteStore) MarkRead(ctx context.Context, chatID string, side store.ReadSide, at time.Time) (int64, int, error) {
	counter := "unread_by_staff"
	flags := `is_read_by_staff = 1, read_by_staff_at = ?`
	where := `chat_id = ? AND is_read_by_staff = 0`
	if side == store.ReadSideVisitor {
		counter = "unread_by_visitor"
		flags = `is_read_by_visitor = 1, read_by_visitor_at = ?`
		where = `chat_id = ? AND is_read_by_visitor = 0 AND is_internal_note = 0`
	}

	var (
		marked       int64
		unreadBefore int
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT `+counter+` FROM chats WHERE id = ?`, chatID).Scan(&unreadBefore)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("chat %s: %w", chatID, store.ErrNotFound)
			}
			return fmt.Errorf("read unread counter: %w", err)
		}

		result, err := tx.ExecContext(ctx, `UPDATE chat_messages SET `+flags+` WHERE `+where, at.UTC(), chatID)
		if err != nil {
			return fmt.Errorf("mark messages read: %w", err)
		}
		if marked, err = result.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE chats SET `+counter+` = 0 WHERE id = ?`, chatID); err != nil {
			return fmt.Errorf("reset unread counter: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return marked, unreadBefore, nil
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var (
		msg             store.Message
		attachments     string
		readByStaffAt   sql.NullTime
		readByVisitorAt sql.NullTime
		editedAt        sql.NullTime
	)
	err := row.Scan(
		&msg.ID,
		&msg.ChatID,
		&msg.Sender.Kind,
		&msg.Sender.ID,
		&msg.Content,
		&msg.Type,
		&attachments,
		&msg.IsReadByStaff,
		&readByStaffAt,
		&msg.IsReadByVisitor,
		&readByVisitorAt,
		&msg.IsInternalNote,
		&msg.IsEdited,
		&editedAt,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}

	if err := json.Unmarshal([]byte(attachments), &msg.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments of message %d: %w", msg.ID, err)
	}
	msg.ReadByStaffAt = nullTime(readByStaffAt)
	msg.ReadByVisitorAt = nullTime(readByVisitorAt)
	msg.EditedAt = nullTime(editedAt)
	return &msg, nil
}
