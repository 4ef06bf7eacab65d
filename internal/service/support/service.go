package support

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/inaumanmajeed/epicrealm-support/internal/core"
	"github.com/inaumanmajeed/epicrealm-support/internal/store"
	"github.com/inaumanmajeed/epicrealm-support/internal/utils"
)

const (
	// DefaultSubject is used when a visitor opens a chat without one.
	DefaultSubject = "Support Chat"
	// DefaultStaffDisplayName is shown for staff accounts without a name.
	DefaultStaffDisplayName = "Epic Realm"
	// ConfirmDeleteAll must be sent verbatim to delete every chat.
	ConfirmDeleteAll = "DELETE ALL CHATS"
)

// Config holds support chat policy.
type Config struct {
	StaffDisplayName string
	// PermissiveAnonymousAccess lets any anonymous visitor act on any anonymous chat.
	PermissiveAnonymousAccess bool
}

// Service implements core.ChatService on top of a store.
type Service struct {
	store store.Store
	cfg   Config
	log   *zerolog.Logger
	now   func() time.Time
}

var _ core.ChatService = (*Service)(nil)

// New creates a new support chat service.
func New(st store.Store, cfg Config, logger *zerolog.Logger) *Service {
	if cfg.StaffDisplayName == "" {
		cfg.StaffDisplayName = DefaultStaffDisplayName
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		store: st,
		cfg:   cfg,
		log:   logger,
		now:   time.Now,
	}
}

// OpenChat returns the caller's active chat, or creates a new open one.
func (s *Service) OpenChat(ctx context.Context, who core.Identity, req core.NewChat) (*core.ChatSnapshot, error) {
	existing, err := s.store.FindActiveChat(ctx, who.Party)
	switch {
	case err == nil:
		messages, err := s.history(ctx, who, existing)
		if err != nil {
			return nil, err
		}
		return &core.ChatSnapshot{Chat: existing, Messages: messages, Resumed: true}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("find active chat: %w", err)
	}

	priority := req.Priority
	if priority == "" {
		priority = store.ChatPriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("open chat: %w", core.ErrInvalidPriority)
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = DefaultSubject
	}

	now := s.now().UTC()
	chat := &store.Chat{
		ID:                 utils.NewChatID(),
		Visitor:            who.Party,
		Subject:            subject,
		Priority:           priority,
		Status:             store.ChatStatusOpen,
		IsActive:           true,
		VisitorDisplayName: firstNonEmpty(who.Name, who.UserName),
		VisitorHandle:      firstNonEmpty(who.UserName, who.Name),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.CreateChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return &core.ChatSnapshot{Chat: chat, Messages: []core.MessageView{}}, nil
}

// JoinChat checks access and returns the chat with its visible history.
func (s *Service) JoinChat(ctx context.Context, who core.Identity, chatID string) (*core.ChatSnapshot, error) {
	chat, err := s.Authorize(ctx, who, chatID)
	if err != nil {
		return nil, err
	}

	// Anonymous visitors that picked a name carry it into their chat record.
	if who.IsAnonymous() && chat.Visitor == who.Party &&
		who.Name != "" && who.Name != core.AnonymousDisplayName && who.Name != chat.VisitorDisplayName {
		handle := firstNonEmpty(who.UserName, who.Name)
		if _, err := s.store.SetVisitorDisplay(ctx, who.Party, who.Name, handle); err != nil {
			s.log.Warn().Err(err).Str("chat_id", chat.ID).Msg("propagate display name")
		} else {
			chat.VisitorDisplayName = who.Name
			chat.VisitorHandle = handle
		}
	}

	messages, err := s.history(ctx, who, chat)
	if err != nil {
		return nil, err
	}
	return &core.ChatSnapshot{Chat: chat, Messages: messages}, nil
}

// Authorize checks that who may act on the chat.
func (s *Service) Authorize(ctx context.Context, who core.Identity, chatID string) (*store.Chat, error) {
	if chatID == "" {
		return nil, fmt.Errorf("%w: chatId is required", core.ErrBadRequest)
	}
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("chat %s: %w", chatID, core.ErrChatNotFound)
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if !s.canAccess(who, chat) {
		return nil, fmt.Errorf("chat %s: %w", chatID, core.ErrAccessDenied)
	}
	return chat, nil
}

func (s *Service) canAccess(who core.Identity, chat *store.Chat) bool {
	if who.IsStaff() || chat.Visitor == who.Party {
		return true
	}
	return s.cfg.PermissiveAnonymousAccess && who.IsAnonymous() && chat.Visitor.IsAnonymous()
}

func requireStaff(who core.Identity) error {
	if !who.IsStaff() {
		return core.ErrStaffOnly
	}
	return nil
}

// SendMessage persists a message and updates the chat's bookkeeping.
func (s *Service) SendMessage(ctx context.Context, who core.Identity, out core.OutgoingMessage) (*core.SendResult, error) {
	chat, err := s.Authorize(ctx, who, out.ChatID)
	if err != nil {
		return nil, err
	}
	if out.InternalNote && !who.IsStaff() {
		return nil, core.ErrInternalNote
	}
	content := strings.TrimSpace(out.Content)
	if content == "" {
		return nil, core.ErrEmptyContent
	}
	msgType := out.Type
	if msgType == "" {
		msgType = store.MessageTypeText
	}
	if !msgType.Valid() {
		return nil, core.ErrInvalidType
	}

	now := s.now().UTC()
	msg := &store.Message{
		ChatID:         chat.ID,
		Sender:         who.Party,
		Content:        content,
		Type:           msgType,
		Attachments:    out.Attachments,
		IsInternalNote: out.InternalNote,
		CreatedAt:      now,
	}

	var (
		bump    store.MessageBump
		staffID int64
	)
	if who.IsStaff() {
		staffID, _ = who.Party.AccountID()
		msg.IsReadByStaff = true
		msg.ReadByStaffAt = &now
		bump.SenderSide = store.ReadSideStaff
		if out.InternalNote {
			bump.SkipOtherSide = true
		} else {
			bump.AutoAssignStaffID = &staffID
		}
	} else {
		msg.IsReadByVisitor = true
		msg.ReadByVisitorAt = &now
		bump.SenderSide = store.ReadSideVisitor
	}

	claimable := bump.AutoAssignStaffID != nil && chat.AssignedStaff == nil
	if claimable && !chat.Status.Active() {
		// Claiming reopens the chat; the visitor may already have another active one.
		if err := s.ensureNoOtherActive(ctx, chat); err != nil {
			if !errors.Is(err, core.ErrActiveChatExists) {
				return nil, err
			}
			s.log.Debug().Err(err).Str("chat_id", chat.ID).Msg("skip auto-assign of terminal chat")
			bump.AutoAssignStaffID = nil
			claimable = false
		}
	}
	updated, err := s.store.RecordMessage(ctx, msg, bump)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("chat %s: %w", chat.ID, core.ErrChatNotFound)
		}
		return nil, fmt.Errorf("record message: %w", err)
	}

	autoAssigned := claimable && updated.AssignedStaff != nil && updated.AssignedStaff.ID == staffID
	if autoAssigned {
		s.log.Info().Str("chat_id", chat.ID).Int64("staff_id", staffID).Msg("chat auto-assigned")
	}

	return &core.SendResult{
		Chat:         updated,
		Message:      core.MessageView{Message: msg, Sender: s.liveSender(ctx, who, updated)},
		AutoAssigned: autoAssigned,
	}, nil
}

// MarkRead flags the caller's side of a chat as read.
func (s *Service) MarkRead(ctx context.Context, who core.Identity, chatID string) (*core.ReadResult, error) {
	chat, err := s.Authorize(ctx, who, chatID)
	if err != nil {
		return nil, err
	}

	side := store.ReadSideVisitor
	if who.IsStaff() {
		side = store.ReadSideStaff
	}
	marked, unreadBefore, err := s.store.MarkRead(ctx, chat.ID, side, s.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("chat %s: %w", chat.ID, core.ErrChatNotFound)
		}
		return nil, fmt.Errorf("mark read: %w", err)
	}

	if side == store.ReadSideStaff {
		chat.UnreadByStaff = 0
	} else {
		chat.UnreadByVisitor = 0
	}
	return &core.ReadResult{Chat: chat, Marked: marked, Changed: marked > 0 || unreadBefore > 0}, nil
}

// SetDisplayName validates a display name and applies it to the caller's chats.
func (s *Service) SetDisplayName(ctx context.Context, who core.Identity, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", core.ErrInvalidName
	}
	if utf8.RuneCountInString(name) > core.MaxDisplayNameRunes {
		name = string([]rune(name)[:core.MaxDisplayNameRunes])
	}

	n, err := s.store.SetVisitorDisplay(ctx, who.Party, name, name)
	if err != nil {
		return "", fmt.Errorf("set display name: %w", err)
	}
	s.log.Debug().Str("party", who.Party.String()).Int64("chats", n).Msg("display name updated")
	return name, nil
}

// ActiveChatIDs lists the rooms a new connection joins automatically.
func (s *Service) ActiveChatIDs(ctx context.Context, who core.Identity) ([]string, error) {
	if who.IsStaff() {
		return s.store.ListActiveChatIDs(ctx, nil)
	}
	party := who.Party
	return s.store.ListActiveChatIDs(ctx, &party)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
