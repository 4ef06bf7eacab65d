package proto

import "time"

// Participant is the public shape of a sender or actor.
type Participant struct {
	ID          string `json:"id"`
	UserName    string `json:"userName"`
	Name        string `json:"name"`
	IsAdmin     bool   `json:"isAdmin"`
	IsAnonymous bool   `json:"isAnonymous"`
}

// Attachment is a file reference uploaded elsewhere.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	FileType string `json:"fileType"`
}

// Visitor identifies who opened a chat.
type Visitor struct {
	Kind        string `json:"kind"`
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Handle      string `json:"handle"`
}

// Staff is the assigned staff member.
type Staff struct {
	ID       int64  `json:"id"`
	UserName string `json:"userName"`
	Name     string `json:"name"`
}

// Chat is a support conversation.
type Chat struct {
	ID              string    `json:"id"`
	Visitor         Visitor   `json:"visitor"`
	AssignedStaff   *Staff    `json:"assignedStaff"`
	Subject         string    `json:"subject"`
	Priority        string    `json:"priority"`
	Status          string    `json:"status"`
	IsActive        bool      `json:"isActive"`
	UnreadByStaff   int       `json:"unreadByStaff"`
	UnreadByVisitor int       `json:"unreadByVisitor"`
	LastMessageID   *int64    `json:"lastMessageId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Message is a chat message with its resolved sender.
type Message struct {
	ID              int64        `json:"id"`
	ChatID          string       `json:"chatId"`
	Sender          Participant  `json:"sender"`
	Content         string       `json:"content"`
	MessageType     string       `json:"messageType"`
	Attachments     []Attachment `json:"attachments"`
	IsReadByStaff   bool         `json:"isReadByStaff"`
	ReadByStaffAt   *time.Time   `json:"readByStaffAt,omitempty"`
	IsReadByVisitor bool         `json:"isReadByVisitor"`
	ReadByVisitorAt *time.Time   `json:"readByVisitorAt,omitempty"`
	IsInternalNote  bool         `json:"isInternalNote"`
	IsEdited        bool         `json:"isEdited"`
	EditedAt        *time.Time   `json:"editedAt,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// EventConnected greets a connection.
type EventConnected struct {
	ConnectionID string      `json:"connectionId"`
	User         Participant `json:"user"`
	IsStaff      bool        `json:"isStaff"`
	Protocol     int         `json:"protocol"`
}

// EventAuthError reports rejected credentials.
type EventAuthError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// EventChatCreated answers create_chat.
type EventChatCreated struct {
	Chat     Chat      `json:"chat"`
	Messages []Message `json:"messages"`
	Resumed  bool      `json:"resumed"`
}

// EventNewChat notifies staff about a chat.
type EventNewChat struct {
	Chat    Chat        `json:"chat"`
	User    Participant `json:"user"`
	Resumed bool        `json:"resumed"`
}

// EventChatHistory replays a chat's visible messages.
type EventChatHistory struct {
	ChatID   string    `json:"chatId"`
	Chat     *Chat     `json:"chat,omitempty"`
	Messages []Message `json:"messages"`
}

// EventMessageNotice notifies one side about a message outside the room.
type EventMessageNotice struct {
	ChatID  string  `json:"chatId"`
	Message Message `json:"message"`
	Chat    *Chat   `json:"chat,omitempty"`
}

// EventTyping announces typing activity.
type EventTyping struct {
	ChatID string      `json:"chatId"`
	User   Participant `json:"user"`
}

// EventMessagesRead tells the room that one side read the chat.
type EventMessagesRead struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsAdmin  bool   `json:"isAdmin"`
	Count    int    `json:"count"`
}

// EventChatUpdate carries a chat after a status or assignment change.
type EventChatUpdate struct {
	ChatID string       `json:"chatId"`
	Chat   Chat         `json:"chat"`
	By     *Participant `json:"by,omitempty"`
}

// EventAllChats answers list_chats.
type EventAllChats struct {
	Success bool   `json:"success"`
	Chats   []Chat `json:"chats"`
}

// Stats are dashboard counters.
type Stats struct {
	Chats struct {
		Total  int64 `json:"total"`
		Unread int64 `json:"unread"`
		Today  int64 `json:"today"`
	} `json:"chats"`
	Messages struct {
		Total int64 `json:"total"`
	} `json:"messages"`
}

// EventChatStats answers get_stats.
type EventChatStats struct {
	Success bool  `json:"success"`
	Stats   Stats `json:"stats"`
}

// EventChatDeleted notifies staff about deleted chats.
type EventChatDeleted struct {
	ChatID    string       `json:"chatId,omitempty"`
	Count     int          `json:"count,omitempty"`
	DeletedBy *Participant `json:"deletedBy,omitempty"`
}

// EventDeleteOK acknowledges a deletion to the caller.
type EventDeleteOK struct {
	Success bool   `json:"success"`
	ChatID  string `json:"chatId,omitempty"`
	Count   int    `json:"count"`
}

// EventChatDeletedForVisitor tells a visitor their chat is gone.
type EventChatDeletedForVisitor struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// EventDisplayNameSet answers set_display_name.
type EventDisplayNameSet struct {
	Success bool   `json:"success"`
	Name    string `json:"name,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EventPresenceUpdated announces a presence change.
type EventPresenceUpdated struct {
	User   Participant `json:"user"`
	Status string      `json:"status"`
}

// PresenceEntry is one row of the staff presence listing.
type PresenceEntry struct {
	User        Participant `json:"user"`
	Status      string      `json:"status"`
	Connections int         `json:"connections"`
}
