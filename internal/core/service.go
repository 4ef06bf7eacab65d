package core

import (
	"context"

	"github.com/inaumanmajeed/epicrealm-support/internal/store"
)

// MessageView is a stored message with its sender resolved.
type MessageView struct {
	Message *store.Message
	Sender  Participant
}

// ChatSnapshot is a chat together with the history visible to the caller.
type ChatSnapshot struct {
	Chat     *store.Chat
	Messages []MessageView
	// Resumed is set when an existing active chat was returned instead of a new one.
	Resumed bool
}

// NewChat carries the optional fields of a chat creation request.
type NewChat struct {
	Subject  string
	Priority store.ChatPriority
}

// OutgoingMessage is a message a connection asks to send.
type OutgoingMessage struct {
	ChatID       string
	Content      string
	Type         store.MessageType
	Attachments  []store.Attachment
	InternalNote bool
}

// SendResult describes a persisted message and the chat state after it.
type SendResult struct {
	Chat    *store.Chat
	Message MessageView
	// AutoAssigned is set when this message assigned the chat to its staff sender.
	AutoAssigned bool
}

// ReadResult describes the outcome of marking a chat read.
type ReadResult struct {
	Chat   *store.Chat
	Marked int64
	// Changed is false when nothing was unread on the caller's side.
	Changed bool
}

// StatusChange updates status and/or priority. Empty fields are left unchanged.
type StatusChange struct {
	ChatID   string
	Status   store.ChatStatus
	Priority store.ChatPriority
}

// ChatService abstracts support chat business logic for the Hub.
// All methods enforce access rules for who.
type ChatService interface {
	// OpenChat returns the caller's active chat, or creates a new open one.
	OpenChat(ctx context.Context, who Identity, req NewChat) (*ChatSnapshot, error)

	// JoinChat checks access and returns the chat with its visible history.
	JoinChat(ctx context.Context, who Identity, chatID string) (*ChatSnapshot, error)

	// Authorize checks that who may act on the chat.
	Authorize(ctx context.Context, who Identity, chatID string) (*store.Chat, error)

	// SendMessage persists a message and updates the chat's bookkeeping.
	SendMessage(ctx context.Context, who Identity, msg OutgoingMessage) (*SendResult, error)

	// MarkRead flags the caller's side of a chat as read.
	MarkRead(ctx context.Context, who Identity, chatID string) (*ReadResult, error)

	// UpdateStatus changes status and/or priority. Staff only.
	UpdateStatus(ctx context.Context, who Identity, change StatusChange) (*store.Chat, error)

	// Assign assigns the chat to the calling staff member.
	Assign(ctx context.Context, who Identity, chatID string) (*store.Chat, error)

	// Unassign clears the assignment and reopens the chat.
	Unassign(ctx context.Context, who Identity, chatID string) (*store.Chat, error)

	// SetDisplayName validates a display name and applies it to the caller's chats.
	// It returns the normalized name.
	SetDisplayName(ctx context.Context, who Identity, name string) (string, error)

	// ListChats lists active chats for the staff dashboard.
	ListChats(ctx context.Context, who Identity, filter store.ChatFilter) ([]*store.Chat, error)

	// Stats returns dashboard counters. Staff only.
	Stats(ctx context.Context, who Identity) (*store.ChatStats, error)

	// DeleteChat removes one chat with its messages. Staff only.
	DeleteChat(ctx context.Context, who Identity, chatID string) (*store.Chat, error)

	// DeleteAllChats removes every active chat when confirm matches. Staff only.
	DeleteAllChats(ctx context.Context, who Identity, confirm string) ([]*store.Chat, error)

	// ActiveChatIDs lists the rooms a new connection joins automatically.
	ActiveChatIDs(ctx context.Context, who Identity) ([]string, error)

	// StaffHistory returns active chats with messages for replay to a staff connection.
	StaffHistory(ctx context.Context, who Identity, limit int) ([]*ChatSnapshot, error)
}
