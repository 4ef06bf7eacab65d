package core

import "github.com/inaumanmajeed/epicrealm-support/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventConnected greets a connection with its resolved identity.
	EventConnected EventKind = iota
	// EventAuthError reports rejected credentials; the connection continues anonymously.
	EventAuthError
	// EventChatCreated answers create_chat with a new or resumed chat.
	EventChatCreated
	// EventNewChat notifies staff about a chat a visitor opened.
	EventNewChat
	// EventChatHistory delivers the visible messages of a chat.
	EventChatHistory
	// EventNewMessage delivers a message to the room (or to staff for internal notes).
	EventNewMessage
	// EventVisitorMessageNotice notifies staff about a visitor message.
	EventVisitorMessageNotice
	// EventStaffReplyNotice notifies a visitor about a staff reply.
	EventStaffReplyNotice
	// EventTyping signals that someone is typing.
	EventTyping
	// EventTypingStopped signals that someone stopped typing.
	EventTypingStopped
	// EventMessagesRead tells the room that one side read the chat.
	EventMessagesRead
	// EventChatStatusUpdated announces a status or priority change.
	EventChatStatusUpdated
	// EventChatAssigned announces an assignment to room and staff.
	EventChatAssigned
	// EventChatAssignedToStaff tells the visitor who picked up their chat.
	EventChatAssignedToStaff
	// EventChatUnassigned announces an unassignment to room and staff.
	EventChatUnassigned
	// EventChatUnassignedFromStaff tells the visitor their chat is back in the queue.
	EventChatUnassignedFromStaff
	// EventAllChats answers list_chats.
	EventAllChats
	// EventChatStats answers get_stats.
	EventChatStats
	// EventChatDeleted notifies staff about a deleted chat.
	EventChatDeleted
	// EventChatDeleteOK acknowledges delete_chat to the caller.
	EventChatDeleteOK
	// EventAllChatsDeleted notifies staff about a bulk deletion.
	EventAllChatsDeleted
	// EventAllChatsDeleteOK acknowledges delete_all_chats to the caller.
	EventAllChatsDeleteOK
	// EventChatDeletedForVisitor tells a visitor their chat is gone.
	EventChatDeletedForVisitor
	// EventDisplayNameSet answers set_display_name.
	EventDisplayNameSet
	// EventPresenceUpdated announces a presence change.
	EventPresenceUpdated
	// EventError notifies clients about a domain error.
	EventError
)

var eventNames = map[EventKind]string{
	EventConnected:               "connected",
	EventAuthError:               "auth_error",
	EventChatCreated:             "chat_created",
	EventNewChat:                 "new_chat",
	EventChatHistory:             "chat_history",
	EventNewMessage:              "new_message",
	EventVisitorMessageNotice:    "new_visitor_message_notice",
	EventStaffReplyNotice:        "staff_reply_notice",
	EventTyping:                  "typing",
	EventTypingStopped:           "typing_stopped",
	EventMessagesRead:            "messages_read",
	EventChatStatusUpdated:       "chat_status_updated",
	EventChatAssigned:            "chat_assigned",
	EventChatAssignedToStaff:     "chat_assigned_to_staff",
	EventChatUnassigned:          "chat_unassigned",
	EventChatUnassignedFromStaff: "chat_unassigned_from_staff",
	EventAllChats:                "all_chats",
	EventChatStats:               "chat_stats",
	EventChatDeleted:             "chat_deleted",
	EventChatDeleteOK:            "chat_delete_ok",
	EventAllChatsDeleted:         "all_chats_deleted",
	EventAllChatsDeleteOK:        "all_chats_delete_ok",
	EventChatDeletedForVisitor:   "chat_deleted_for_visitor",
	EventDisplayNameSet:          "display_name_set",
	EventPresenceUpdated:         "presence_updated",
	EventError:                   "error",
}

// String returns the wire name of the event.
func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is sent to clients to describe what happened in the system.
// Events are shared between recipients and must not be mutated after sending.
type Event struct {
	Kind   EventKind
	ChatID string

	Chat     *store.Chat
	Chats    []*store.Chat
	Message  *MessageView
	Messages []MessageView
	Stats    *store.ChatStats

	// Actor is who caused the event: typist, reader, updater, assignee.
	Actor *Participant

	// Connected carries the greeting of EventConnected.
	Connected *ConnectedInfo

	// Presence carries EventPresenceUpdated.
	Presence *PresenceChange

	Resumed bool
	Success bool
	Name    string
	Count   int
	Notice  string

	Auth  *AuthFailure
	Error *CoreError
}

// ConnectedInfo is the greeting sent after registration.
type ConnectedInfo struct {
	ConnectionID string
	User         Participant
	IsStaff      bool
}

// PresenceChange describes a presence transition of one identity.
type PresenceChange struct {
	User   Participant
	Status string
}

func errorEvent(err *CoreError) *Event {
	return &Event{Kind: EventError, Error: err}
}
