package core

import "github.com/inaumanmajeed/epicrealm-support/internal/store"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandCreateChat opens a chat or resumes the caller's active one.
	CommandCreateChat CommandKind = iota
	// CommandJoinChat subscribes the client to a chat room and replays history.
	CommandJoinChat
	// CommandLeaveChat unsubscribes the client from a chat room.
	CommandLeaveChat
	// CommandSendMessage delivers a message to a chat.
	CommandSendMessage
	// CommandTypingStart signals that the client started typing.
	CommandTypingStart
	// CommandTypingStop signals that the client stopped typing.
	CommandTypingStop
	// CommandMarkRead marks the caller's side of a chat as read.
	CommandMarkRead
	// CommandSetDisplayName sets a custom display name for the connection.
	CommandSetDisplayName
	// CommandSetPresence updates the connection's presence status.
	CommandSetPresence

	// Staff commands.

	// CommandUpdateStatus changes status and/or priority of a chat.
	CommandUpdateStatus
	// CommandAssign assigns a chat to the caller.
	CommandAssign
	// CommandUnassign reopens an assigned chat.
	CommandUnassign
	// CommandListChats lists active chats.
	CommandListChats
	// CommandGetStats requests dashboard counters.
	CommandGetStats
	// CommandDeleteChat removes one chat.
	CommandDeleteChat
	// CommandDeleteAllChats removes every active chat.
	CommandDeleteAllChats
)

var commandNames = map[CommandKind]string{
	CommandCreateChat:     "create_chat",
	CommandJoinChat:       "join_chat",
	CommandLeaveChat:      "leave_chat",
	CommandSendMessage:    "send_message",
	CommandTypingStart:    "typing_start",
	CommandTypingStop:     "typing_stop",
	CommandMarkRead:       "mark_read",
	CommandSetDisplayName: "set_display_name",
	CommandSetPresence:    "set_presence",
	CommandUpdateStatus:   "update_status",
	CommandAssign:         "assign",
	CommandUnassign:       "unassign",
	CommandListChats:      "list_chats",
	CommandGetStats:       "get_stats",
	CommandDeleteChat:     "delete_chat",
	CommandDeleteAllChats: "delete_all_chats",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command represents an action requested by a client.
// Only the fields relevant to Kind are set.
type Command struct {
	Kind   CommandKind
	ChatID string

	// create_chat
	Subject  string
	Priority store.ChatPriority

	// send_message
	Content      string
	MessageType  store.MessageType
	Attachments  []store.Attachment
	InternalNote bool

	// update_status
	Status store.ChatStatus

	// set_display_name
	Name string

	// set_presence
	Presence string

	// list_chats
	Filter store.ChatFilter

	// delete_all_chats
	ConfirmText string
}
