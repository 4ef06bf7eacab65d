package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeCreateChat     = "create_chat"
	InboundTypeJoinChat       = "join_chat"
	InboundTypeLeaveChat      = "leave_chat"
	InboundTypeSendMessage    = "send_message"
	InboundTypeTypingStart    = "typing_start"
	InboundTypeTypingStop     = "typing_stop"
	InboundTypeMarkRead       = "mark_read"
	InboundTypeSetDisplayName = "set_display_name"
	InboundTypeSetPresence    = "set_presence"
	InboundTypeUpdateStatus   = "update_status"
	InboundTypeAssign         = "assign"
	InboundTypeUnassign       = "unassign"
	InboundTypeListChats      = "list_chats"
	InboundTypeGetStats       = "get_stats"
	InboundTypeDeleteChat     = "delete_chat"
	InboundTypeDeleteAllChats = "delete_all_chats"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// CreateChatData opens a support chat.
type CreateChatData struct {
	Subject  string `json:"subject,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// ChatRef addresses a single chat.
type ChatRef struct {
	ChatID string `json:"chatId"`
}

// SendMessageData is a chat message from the client.
type SendMessageData struct {
	ChatID         string       `json:"chatId"`
	Content        string       `json:"content"`
	MessageType    string       `json:"messageType,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	IsInternalNote bool         `json:"isInternalNote,omitempty"`
}

// DisplayNameData sets a custom display name.
type DisplayNameData struct {
	Name string `json:"name"`
}

// PresenceData sets the connection's presence status.
type PresenceData struct {
	Status string `json:"status"`
}

// UpdateStatusData changes status and/or priority of a chat.
type UpdateStatusData struct {
	ChatID   string `json:"chatId"`
	Status   string `json:"status,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// ListChatsData filters the staff chat list.
type ListChatsData struct {
	Status   string `json:"status,omitempty"`
	Priority string `json:"priority,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// DeleteAllData carries the confirmation phrase.
type DeleteAllData struct {
	ConfirmText string `json:"confirmText"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
