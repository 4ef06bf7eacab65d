package store

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// PartyKind tells authenticated accounts and anonymous connections apart.
type PartyKind string

const (
	PartyUser      PartyKind = "user"
	PartyAnonymous PartyKind = "anonymous"
)

// AnonymousPrefix is prepended to a connection id to form an anonymous party id.
const AnonymousPrefix = "anon_"

// Party references one side of a conversation.
// For users ID is the decimal account id, for anonymous visitors it is "anon_" + connection id.
type Party struct {
	Kind PartyKind
	ID   string
}

// UserParty returns the party of an authenticated account.
func UserParty(accountID int64) Party {
	return Party{Kind: PartyUser, ID: strconv.FormatInt(accountID, 10)}
}

// AnonymousParty returns the party bound to a single connection.
func AnonymousParty(connectionID string) Party {
	return Party{Kind: PartyAnonymous, ID: AnonymousPrefix + connectionID}
}

// IsAnonymous reports whether the party has no durable account.
func (p Party) IsAnonymous() bool {
	return p.Kind == PartyAnonymous
}

// AccountID returns the account id of a user party.
func (p Party) AccountID() (int64, bool) {
	if p.Kind != PartyUser {
		return 0, false
	}
	id, err := strconv.ParseInt(p.ID, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Key is a stable map key for the party.
func (p Party) Key() string {
	return string(p.Kind) + ":" + p.ID
}

func (p Party) String() string {
	return p.Key()
}

// Account is a registered user; staff accounts have IsAdmin set.
type Account struct {
	ID           int64
	Username     string
	Name         string
	Email        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// ChatStatus is the lifecycle state of a chat.
type ChatStatus string

const (
	ChatStatusOpen       ChatStatus = "open"
	ChatStatusInProgress ChatStatus = "in-progress"
	ChatStatusResolved   ChatStatus = "resolved"
	ChatStatusClosed     ChatStatus = "closed"
)

// Valid reports whether s is a known status.
func (s ChatStatus) Valid() bool {
	switch s {
	case ChatStatusOpen, ChatStatusInProgress, ChatStatusResolved, ChatStatusClosed:
		return true
	}
	return false
}

// Active reports whether a chat in this status still counts as the visitor's live chat.
func (s ChatStatus) Active() bool {
	return s == ChatStatusOpen || s == ChatStatusInProgress
}

// ChatPriority ranks chats on the staff dashboard.
type ChatPriority string

const (
	ChatPriorityLow    ChatPriority = "low"
	ChatPriorityMedium ChatPriority = "medium"
	ChatPriorityHigh   ChatPriority = "high"
	ChatPriorityUrgent ChatPriority = "urgent"
)

// Valid reports whether p is a known priority.
func (p ChatPriority) Valid() bool {
	switch p {
	case ChatPriorityLow, ChatPriorityMedium, ChatPriorityHigh, ChatPriorityUrgent:
		return true
	}
	return false
}

// MessageType describes message content.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
		return true
	}
	return false
}

// StaffRef is the assigned staff member with display fields joined from accounts.
type StaffRef struct {
	ID       int64
	Username string
	Name     string
}

// Chat is one support conversation between a visitor and the staff pool.
type Chat struct {
	ID                 string
	Visitor            Party
	AssignedStaff      *StaffRef
	Subject            string
	Priority           ChatPriority
	Status             ChatStatus
	IsActive           bool
	UnreadByStaff      int
	UnreadByVisitor    int
	VisitorDisplayName string
	VisitorHandle      string
	LastMessageID      *int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Attachment is a file reference uploaded elsewhere.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	FileType string `json:"fileType"`
}

// Message is a persisted chat message.
type Message struct {
	ID              int64
	ChatID          string
	Sender          Party
	Content         string
	Type            MessageType
	Attachments     []Attachment
	IsReadByStaff   bool
	ReadByStaffAt   *time.Time
	IsReadByVisitor bool
	ReadByVisitorAt *time.Time
	IsInternalNote  bool
	IsEdited        bool
	EditedAt        *time.Time
	CreatedAt       time.Time
}

// ReadSide selects which party's read flags an operation touches.
type ReadSide int

const (
	ReadSideStaff ReadSide = iota
	ReadSideVisitor
)

// MaxChatListLimit caps a staff chat listing.
const MaxChatListLimit = 100

// ChatFilter narrows staff chat listings. Zero values match everything.
type ChatFilter struct {
	Status   ChatStatus
	Priority ChatPriority
	// Limit is clamped to (0, MaxChatListLimit]; zero means the cap.
	Limit int
}

// ChatUpdate is a partial update of a chat. Nil fields are left unchanged.
type ChatUpdate struct {
	Status          *ChatStatus
	Priority        *ChatPriority
	AssignStaffID   *int64
	ClearAssignment bool
}

// MessageBump describes the chat bookkeeping applied together with a new message.
type MessageBump struct {
	// SenderSide is zeroed and the opposite side incremented unless SkipOtherSide is set.
	SenderSide    ReadSide
	SkipOtherSide bool
	// AutoAssignStaffID assigns the chat and moves it to in-progress when it has no staff yet,
	// whatever its current status.
	AutoAssignStaffID *int64
}

// ChatStats aggregates dashboard counters.
type ChatStats struct {
	TotalChats    int64
	TodayChats    int64
	ActiveChats   int64
	TotalMessages int64
}

// AccountStore handles account lookup and seeding.
type AccountStore interface {
	// CreateAccount inserts an account and fills its ID and CreatedAt.
	CreateAccount(ctx context.Context, account *Account) error

	// GetAccountByID retrieves an account by ID.
	GetAccountByID(ctx context.Context, id int64) (*Account, error)

	// GetAccountByUsername retrieves an account by username.
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)
}

// ChatStore handles chat persistence.
type ChatStore interface {
	// CreateChat inserts a chat with the ID already set.
	CreateChat(ctx context.Context, chat *Chat) error

	// GetChat retrieves a chat by ID.
	GetChat(ctx context.Context, id string) (*Chat, error)

	// FindActiveChat returns the visitor's open or in-progress chat.
	FindActiveChat(ctx context.Context, visitor Party) (*Chat, error)

	// ListActiveChatIDs returns ids of active chats, optionally only one visitor's.
	ListActiveChatIDs(ctx context.Context, visitor *Party) ([]string, error)

	// ListChats lists active chats most recently updated first.
	ListChats(ctx context.Context, filter ChatFilter) ([]*Chat, error)

	// UpdateChat applies a partial update and returns the new state.
	UpdateChat(ctx context.Context, id string, update ChatUpdate, at time.Time) (*Chat, error)

	// SetVisitorDisplay renames the visitor on all of their chats.
	SetVisitorDisplay(ctx context.Context, visitor Party, displayName, handle string) (int64, error)

	// DeleteChat removes a chat and all of its messages.
	DeleteChat(ctx context.Context, id string) (*Chat, error)

	// DeleteActiveChats removes every active chat with its messages.
	DeleteActiveChats(ctx context.Context) ([]*Chat, error)

	// Stats counts chats and messages; TodayChats counts chats created at or after since.
	Stats(ctx context.Context, since time.Time) (*ChatStats, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// RecordMessage inserts msg and applies bump to its chat in one transaction.
	RecordMessage(ctx context.Context, msg *Message, bump MessageBump) (*Chat, error)

	// ListMessages returns a chat's messages in creation order.
	ListMessages(ctx context.Context, chatID string, includeInternal bool) ([]*Message, error)

	// MarkRead flags unread messages for one side and zeroes that side's counter.
	// It returns the number of messages that changed and the chat's counter before reset.
	MarkRead(ctx context.Context, chatID string, side ReadSide, at time.Time) (marked int64, unreadBefore int, err error)
}

// Store aggregates all storage interfaces.
type Store interface {
	AccountStore
	ChatStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
