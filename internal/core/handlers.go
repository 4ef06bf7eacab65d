package core

import (
	"context"
	"fmt"

	"github.com/inaumanmajeed/epicrealm-support/internal/store"
)

const (
	noticeChatDeleted     = "Your support chat has been closed by an administrator."
	noticeAllChatsCleared = "All support chats have been cleared by an administrator."
)

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	if h.svc == nil {
		h.fail(c, cmd, fmt.Errorf("%s: chat service unavailable", cmd.Kind))
		return
	}

	switch cmd.Kind {
	case CommandCreateChat:
		h.handleCreateChat(ctx, c, cmd)
	case CommandJoinChat:
		h.handleJoinChat(ctx, c, cmd)
	case CommandLeaveChat:
		h.leaveRoom(c, cmd.ChatID)
	case CommandSendMessage:
		h.handleSendMessage(ctx, c, cmd)
	case CommandTypingStart, CommandTypingStop:
		h.handleTyping(ctx, c, cmd)
	case CommandMarkRead:
		h.handleMarkRead(ctx, c, cmd)
	case CommandSetDisplayName:
		h.handleSetDisplayName(ctx, c, cmd)
	case CommandSetPresence:
		h.presence.SetStatus(c, cmd.Presence)
		h.announcePresence(c, cmd.Presence)
	case CommandUpdateStatus:
		h.handleUpdateStatus(ctx, c, cmd)
	case CommandAssign:
		h.handleAssign(ctx, c, cmd)
	case CommandUnassign:
		h.handleUnassign(ctx, c, cmd)
	case CommandListChats:
		chats, err := h.svc.ListChats(ctx, c.Identity, cmd.Filter)
		if err != nil {
			h.fail(c, cmd, err)
			return
		}
		c.send(&Event{Kind: EventAllChats, Chats: chats, Success: true})
	case CommandGetStats:
		stats, err := h.svc.Stats(ctx, c.Identity)
		if err != nil {
			h.fail(c, cmd, err)
			return
		}
		c.send(&Event{Kind: EventChatStats, Stats: stats, Success: true})
	case CommandDeleteChat:
		h.handleDeleteChat(ctx, c, cmd)
	case CommandDeleteAllChats:
		h.handleDeleteAllChats(ctx, c, cmd)
	default:
		c.send(errorEvent(coreError(ErrCodeInvalidMessage, "unknown command")))
	}
}

// fail reports err to the initiating connection only.
func (h *Hub) fail(c *Client, cmd *Command, err error) {
	ce := Classify(err)
	logEvent := h.log.Debug()
	if ce.Code == ErrCodeInternal {
		logEvent = h.log.Error()
	}
	logEvent.Err(err).
		Str("client_id", c.ID).
		Str("command", cmd.Kind.String()).
		Str("chat_id", cmd.ChatID).
		Msg("command failed")
	c.send(errorEvent(ce))
}

func (h *Hub) handleCreateChat(ctx context.Context, c *Client, cmd *Command) {
	snap, err := h.svc.OpenChat(ctx, c.Identity, NewChat{Subject: cmd.Subject, Priority: cmd.Priority})
	if err != nil {
		h.fail(c, cmd, err)
		return
	}
	chatID := snap.Chat.ID
	h.joinRoom(c, chatID)
	// Other connections of the same visitor follow the chat too.
	for _, own := range h.presence.Connections(c.Identity.Party) {
		h.joinRoom(own, chatID)
	}

	c.send(&Event{
		Kind:     EventChatCreated,
		ChatID:   chatID,
		Chat:     snap.Chat,
		Messages: snap.Messages,
		Resumed:  snap.Resumed,
	})

	actor := c.Identity.Participant()
	notice := &Event{Kind: EventNewChat, ChatID: chatID, Chat: snap.Chat, Actor: &actor, Resumed: snap.Resumed}
	for _, staff := range h.presence.StaffConnections() {
		h.joinRoom(staff, chatID)
		if staff != c {
			staff.send(notice)
		}
	}

	h.log.Info().
		Str("chat_id", chatID).
		Str("party", c.Identity.Party.String()).
		Bool("resumed", snap.Resumed).
		Msg("chat opened")
}

func (h *Hub) handleJoinChat(ctx context.Context, c *Client, cmd *Command) {
	snap, err := h.svc.JoinChat(ctx, c.Identity, cmd.ChatID)
	if err != nil {
		h.fail(c, cmd, err)
		return
	}
	h.joinRoom(c, snap.Chat.ID)
	c.send(&Event{Kind: EventChatHistory, ChatID: snap.Chat.ID, Messages: snap.Messages})
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Client, cmd *Command) {
	res, err := h.svc.SendMessage(ctx, c.Identity, OutgoingMessage{
		ChatID:       cmd.ChatID,
		Content:      cmd.Content,
		Type:         cmd.MessageType,
		Attachments:  cmd.Attachments,
		InternalNote: cmd.InternalNote,
	})
	if err != nil {
		h.fail(c, cmd, err)
		return
	}

	chatID := res.Chat.ID
	h.joinRoom(c, chatID)
	actor := c.Identity.Participant()

	if res.AutoAssigned {
		h.toRoomAndStaff(chatID, &Event{
			Kind:   EventChatStatusUpdated,
			ChatID: chatID,
			Chat:   res.Chat,
			Actor:  &actor,
		})
	}

	message := res.Message
	delivery := &Event{Kind: EventNewMessage, ChatID: chatID, Message: &message}
	if message.Message.IsInternalNote {
		h.toStaff(delivery, nil)
		return
	}
	h.toRoom(chatID, delivery, nil)

	if c.Identity.IsStaff() {
		h.toParty(res.Chat.Visitor, &Event{Kind: EventStaffReplyNotice, ChatID: chatID, Message: &message})
		return
	}
	h.toStaff(&Event{Kind: EventVisitorMessageNotice, ChatID: chatID, Message: &message, Chat: res.Chat}, nil)
}

func (h *Hub) handleTyping(ctx context.Context, c *Client, cmd *Command) {
	if !h.inRoom(c, cmd.ChatID) {
		if _, err := h.svc.Authorize(ctx, c.Identity, cmd.ChatID); err != nil {
			h.fail(c, cmd, err)
			return
		}
		h.joinRoom(c, cmd.ChatID)
	}

	kind := EventTyping
	if cmd.Kind == CommandTypingStop {
		kind = EventTypingStopped
	}
	actor := c.Identity.Participant()
	h.toRoom(cmd.ChatID, &Event{Kind: kind, ChatID: cmd.ChatID, Actor: &actor}, c)
}

func (h *Hub) handleMarkRead(ctx context.Context, c *Client, cmd *Command) {
	res, err := h.svc.MarkRead(ctx, c.Identity, cmd.ChatID)
	if err != nil {
		h.fail(c, cmd, err)
		return
	}
	if !res.Changed {
		return
	}
	actor := c.Identity.Participant()
	h.toRoom(cmd.ChatID, &Event{Kind: EventMessagesRead, ChatID: cmd.ChatID, Actor: &actor, Count: int(res.Marked)}, c)
}

func (h *Hub) handleSetDisplayName(ctx context.Context, c *Client, cmd *Command) {
	name, err := h.svc.SetDisplayName(ctx, c.Identity, cmd.Name)
	if err != nil {
		ce := Classify(err)
		h.log.Debug().Err(err).Str("client_id", c.ID).Msg("set display name")
		c.send(&Event{Kind: EventDisplayNameSet, Success: false, Notice: ce.Message})
		return
	}
	h.presence.Rename(c, name)
	c.send(&Event{Kind: EventDisplayNameSet, Success: true, Name: name})
}

func (h *Hub) handleUpdateStatus(ctx context.Context, c *Client, cmd *Command) {
	chat, err := h.svc.UpdateStatus(ctx, c.Identity, StatusChange{
		ChatID:   cmd.ChatID,
		Status:   cmd.Status,
		Priority: cmd.Priority,
	})
	if err != nil {
		h.fail(c, cmd, err)
		return
	}
	actor := c.Identity.Participant()
	h.toRoomAndStaff(chat.ID, &Event{Kind: EventChatStatusUpdated, ChatID: chat.ID, Chat: chat, Actor: &actor})
}

func (h *Hub) handleAssign(ctx context.Context, c *Client, cmd *Command) {
	chat, err := h.svc.Assign(ctx, c.Identity, cmd.ChatID)
	if err != nil {
		h.fail(c, cmd, err)
		return
	}
	actor := c.Identity.Participant()
	h.toRoomAndStaff(chat.ID, &Event{Kind: EventChatAssigned, ChatID: chat.ID, Chat: chat, Actor: &actor})
	h.toParty(chat.Visitor, &Event{Kind: EventChatAssignedToStaff, ChatID: chat.ID, Chat: chat, Actor: &actor})
}

func (h *Hub) handleUnassign(ctx context.Context, c *Client, cmd *Command) {
	chat, err := h.svc.Unassign(ctx, c.Identity, cmd.ChatID)
	if err != nil {
		h.fail(c, cmd, err)
		return
	}
	actor := c.Identity.Participant()
	h.toRoomAndStaff(chat.ID, &Event{Kind: EventChatUnassigned, ChatID: chat.ID, Chat: chat, Actor: &actor})
	h.toParty(chat.Visitor, &Event{Kind: EventChatUnassignedFromStaff, ChatID: chat.ID, Chat: chat})
}

func (h *Hub) handleDeleteChat(ctx context.Context, c *Client, cmd *Command) {
	chat, err := h.svc.DeleteChat(ctx, c.Identity, cmd.ChatID)
	if err != nil {
		h.fail(c, cmd, err)
		return
	}
	actor := c.Identity.Participant()
	h.toStaff(&Event{Kind: EventChatDeleted, ChatID: chat.ID, Actor: &actor}, nil)
	h.notifyDeleted(chat, noticeChatDeleted)
	c.send(&Event{Kind: EventChatDeleteOK, ChatID: chat.ID, Success: true})
	h.dissolveRoom(chat.ID)

	h.log.Info().Str("chat_id", chat.ID).Str("client_id", c.ID).Msg("chat deleted")
}

func (h *Hub) handleDeleteAllChats(ctx context.Context, c *Client, cmd *Command) {
	chats, err := h.svc.DeleteAllChats(ctx, c.Identity, cmd.ConfirmText)
	if err != nil {
		h.fail(c, cmd, err)
		return
	}
	actor := c.Identity.Participant()
	h.toStaff(&Event{Kind: EventAllChatsDeleted, Count: len(chats), Actor: &actor}, nil)
	for _, chat := range chats {
		h.notifyDeleted(chat, noticeAllChatsCleared)
		h.dissolveRoom(chat.ID)
	}
	c.send(&Event{Kind: EventAllChatsDeleteOK, Count: len(chats), Success: true})

	h.log.Info().Int("count", len(chats)).Str("client_id", c.ID).Msg("all chats deleted")
}

func (h *Hub) notifyDeleted(chat *store.Chat, notice string) {
	h.toParty(chat.Visitor, &Event{Kind: EventChatDeletedForVisitor, ChatID: chat.ID, Notice: notice})
}
