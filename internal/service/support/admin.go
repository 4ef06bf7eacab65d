package support

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inaumanmajeed/epicrealm-support/internal/core"
	"github.com/inaumanmajeed/epicrealm-support/internal/store"
)

// UpdateStatus changes status and/or priority. Staff only.
func (s *Service) UpdateStatus(ctx context.Context, who core.Identity, change core.StatusChange) (*store.Chat, error) {
	if err := requireStaff(who); err != nil {
		return nil, err
	}
	if change.Status == "" && change.Priority == "" {
		return nil, fmt.Errorf("%w: status or priority is required", core.ErrBadRequest)
	}
	if change.Status != "" && !change.Status.Valid() {
		return nil, core.ErrInvalidStatus
	}
	if change.Priority != "" && !change.Priority.Valid() {
		return nil, core.ErrInvalidPriority
	}

	chat, err := s.Authorize(ctx, who, change.ChatID)
	if err != nil {
		return nil, err
	}

	var update store.ChatUpdate
	if change.Status != "" {
		status := change.Status
		if status.Active() && !chat.Status.Active() {
			if err := s.ensureNoOtherActive(ctx, chat); err != nil {
				return nil, err
			}
		}
		if status == store.ChatStatusOpen {
			update.ClearAssignment = true
		}
		update.Status = &status
	}
	if change.Priority != "" {
		priority := change.Priority
		update.Priority = &priority
	}

	updated, err := s.store.UpdateChat(ctx, chat.ID, update, s.now().UTC())
	if err != nil {
		return nil, s.storeErr("update chat", chat.ID, err)
	}
	s.log.Info().
		Str("chat_id", chat.ID).
		Str("status", string(updated.Status)).
		Str("priority", string(updated.Priority)).
		Msg("chat updated")
	return updated, nil
}

// ensureNoOtherActive guards reopening a terminal chat.
func (s *Service) ensureNoOtherActive(ctx context.Context, chat *store.Chat) error {
	other, err := s.store.FindActiveChat(ctx, chat.Visitor)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("find active chat: %w", err)
	case other.ID != chat.ID:
		return fmt.Errorf("chat %s: %w", other.ID, core.ErrActiveChatExists)
	}
	return nil
}

// Assign assigns the chat to the calling staff member.
// Only open chats can be claimed; claiming your own chat again is a no-op.
func (s *Service) Assign(ctx context.Context, who core.Identity, chatID string) (*store.Chat, error) {
	if err := requireStaff(who); err != nil {
		return nil, err
	}
	chat, err := s.Authorize(ctx, who, chatID)
	if err != nil {
		return nil, err
	}

	staffID, _ := who.Party.AccountID()
	if chat.AssignedStaff != nil && chat.AssignedStaff.ID == staffID {
		return chat, nil
	}
	if chat.Status != store.ChatStatusOpen {
		return nil, fmt.Errorf("assign %s chat: %w", chat.Status, core.ErrInvalidTransition)
	}

	status := store.ChatStatusInProgress
	updated, err := s.store.UpdateChat(ctx, chat.ID, store.ChatUpdate{
		Status:        &status,
		AssignStaffID: &staffID,
	}, s.now().UTC())
	if err != nil {
		return nil, s.storeErr("assign chat", chat.ID, err)
	}
	s.log.Info().Str("chat_id", chat.ID).Int64("staff_id", staffID).Msg("chat assigned")
	return updated, nil
}

// Unassign clears the assignment and reopens the chat.
func (s *Service) Unassign(ctx context.Context, who core.Identity, chatID string) (*store.Chat, error) {
	if err := requireStaff(who); err != nil {
		return nil, err
	}
	chat, err := s.Authorize(ctx, who, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.Status.Active() {
		return nil, fmt.Errorf("unassign %s chat: %w", chat.Status, core.ErrInvalidTransition)
	}

	status := store.ChatStatusOpen
	updated, err := s.store.UpdateChat(ctx, chat.ID, store.ChatUpdate{
		Status:          &status,
		ClearAssignment: true,
	}, s.now().UTC())
	if err != nil {
		return nil, s.storeErr("unassign chat", chat.ID, err)
	}
	s.log.Info().Str("chat_id", chat.ID).Msg("chat unassigned")
	return updated, nil
}

// ListChats lists active chats for the staff dashboard.
func (s *Service) ListChats(ctx context.Context, who core.Identity, filter store.ChatFilter) ([]*store.Chat, error) {
	if err := requireStaff(who); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, core.ErrInvalidStatus
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, core.ErrInvalidPriority
	}

	if filter.Limit <= 0 || filter.Limit > store.MaxChatListLimit {
		filter.Limit = store.MaxChatListLimit
	}

	chats, err := s.store.ListChats(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	if chats == nil {
		chats = []*store.Chat{}
	}
	return chats, nil
}

// Stats returns dashboard counters. TodayChats counts chats created since local midnight.
func (s *Service) Stats(ctx context.Context, who core.Identity) (*store.ChatStats, error) {
	if err := requireStaff(who); err != nil {
		return nil, err
	}
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats, err := s.store.Stats(ctx, midnight)
	if err != nil {
		return nil, fmt.Errorf("chat stats: %w", err)
	}
	return stats, nil
}

// DeleteChat removes one chat with its messages. Staff only.
func (s *Service) DeleteChat(ctx context.Context, who core.Identity, chatID string) (*store.Chat, error) {
	if err := requireStaff(who); err != nil {
		return nil, err
	}
	if chatID == "" {
		return nil, fmt.Errorf("%w: chatId is required", core.ErrBadRequest)
	}

	chat, err := s.store.DeleteChat(ctx, chatID)
	if err != nil {
		return nil, s.storeErr("delete chat", chatID, err)
	}
	return chat, nil
}

// DeleteAllChats removes every active chat when confirm matches. Staff only.
func (s *Service) DeleteAllChats(ctx context.Context, who core.Identity, confirm string) ([]*store.Chat, error) {
	if err := requireStaff(who); err != nil {
		return nil, err
	}
	if confirm != ConfirmDeleteAll {
		return nil, core.ErrConfirmation
	}

	chats, err := s.store.DeleteActiveChats(ctx)
	if err != nil {
		return nil, fmt.Errorf("delete all chats: %w", err)
	}
	s.log.Warn().Int("count", len(chats)).Str("party", who.Party.String()).Msg("all chats deleted")
	return chats, nil
}

// StaffHistory returns active chats with messages for replay to a staff connection.
func (s *Service) StaffHistory(ctx context.Context, who core.Identity, limit int) ([]*core.ChatSnapshot, error) {
	if err := requireStaff(who); err != nil {
		return nil, err
	}
	chats, err := s.store.ListChats(ctx, store.ChatFilter{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	snapshots := make([]*core.ChatSnapshot, 0, len(chats))
	for _, chat := range chats {
		messages, err := s.history(ctx, who, chat)
		if err != nil {
			return nil, err
		}
		if len(messages) == 0 {
			continue
		}
		snapshots = append(snapshots, &core.ChatSnapshot{Chat: chat, Messages: messages})
	}
	return snapshots, nil
}

func (s *Service) storeErr(op, chatID string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", op, chatID, core.ErrChatNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
