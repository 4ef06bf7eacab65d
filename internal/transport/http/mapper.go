package http

import (
	"bytes"
	"encoding/json"

	"github.com/inaumanmajeed/epicrealm-support/internal/core"
	"github.com/inaumanmajeed/epicrealm-support/internal/proto"
	"github.com/inaumanmajeed/epicrealm-support/internal/store"
)

func decodeData(data json.RawMessage, v any) *proto.Error {
	if len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid payload"}
	}
	return nil
}

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeCreateChat:
		var req proto.CreateChatData
		if perr := decodeData(inbound.Data, &req); perr != nil {
			return nil, perr
		}
		return &core.Command{
			Kind:     core.CommandCreateChat,
			Subject:  req.Subject,
			Priority: store.ChatPriority(req.Priority),
		}, nil
	case proto.InboundTypeJoinChat, proto.InboundTypeLeaveChat, proto.InboundTypeTypingStart,
		proto.InboundTypeTypingStop, proto.InboundTypeMarkRead, proto.InboundTypeAssign,
		proto.InboundTypeUnassign, proto.InboundTypeDeleteChat:
		var ref proto.ChatRef
		if perr := decodeData(inbound.Data, &ref); perr != nil {
			return nil, perr
		}
		if ref.ChatID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "chatId is required"}
		}
		return &core.Command{Kind: chatRefKinds[inbound.Type], ChatID: ref.ChatID}, nil
	case proto.InboundTypeSendMessage:
		var msg proto.SendMessageData
		if perr := decodeData(inbound.Data, &msg); perr != nil {
			return nil, perr
		}
		attachments := make([]store.Attachment, 0, len(msg.Attachments))
		for _, a := range msg.Attachments {
			attachments = append(attachments, store.Attachment{URL: a.URL, Filename: a.Filename, FileType: a.FileType})
		}
		return &core.Command{
			Kind:         core.CommandSendMessage,
			ChatID:       msg.ChatID,
			Content:      msg.Content,
			MessageType:  store.MessageType(msg.MessageType),
			Attachments:  attachments,
			InternalNote: msg.IsInternalNote,
		}, nil
	case proto.InboundTypeSetDisplayName:
		var req proto.DisplayNameData
		if perr := decodeData(inbound.Data, &req); perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandSetDisplayName, Name: req.Name}, nil
	case proto.InboundTypeSetPresence:
		var req proto.PresenceData
		if perr := decodeData(inbound.Data, &req); perr != nil {
			return nil, perr
		}
		status := req.Status
		if status == "" {
			status = core.PresenceOnline
		}
		return &core.Command{Kind: core.CommandSetPresence, Presence: status}, nil
	case proto.InboundTypeUpdateStatus:
		var req proto.UpdateStatusData
		if perr := decodeData(inbound.Data, &req); perr != nil {
			return nil, perr
		}
		return &core.Command{
			Kind:     core.CommandUpdateStatus,
			ChatID:   req.ChatID,
			Status:   store.ChatStatus(req.Status),
			Priority: store.ChatPriority(req.Priority),
		}, nil
	case proto.InboundTypeListChats:
		var req proto.ListChatsData
		if perr := decodeData(inbound.Data, &req); perr != nil {
			return nil, perr
		}
		return &core.Command{
			Kind: core.CommandListChats,
			Filter: store.ChatFilter{
				Status:   store.ChatStatus(req.Status),
				Priority: store.ChatPriority(req.Priority),
				Limit:    req.Limit,
			},
		}, nil
	case proto.InboundTypeGetStats:
		return &core.Command{Kind: core.CommandGetStats}, nil
	case proto.InboundTypeDeleteAllChats:
		var req proto.DeleteAllData
		if perr := decodeData(inbound.Data, &req); perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandDeleteAllChats, ConfirmText: req.ConfirmText}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}
}

var chatRefKinds = map[string]core.CommandKind{
	proto.InboundTypeJoinChat:    core.CommandJoinChat,
	proto.InboundTypeLeaveChat:   core.CommandLeaveChat,
	proto.InboundTypeTypingStart: core.CommandTypingStart,
	proto.InboundTypeTypingStop:  core.CommandTypingStop,
	proto.InboundTypeMarkRead:    core.CommandMarkRead,
	proto.InboundTypeAssign:      core.CommandAssign,
	proto.InboundTypeUnassign:    core.CommandUnassign,
	proto.InboundTypeDeleteChat:  core.CommandDeleteChat,
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	if event.Kind == core.EventError {
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "internal error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	}
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: event.Kind.String(),
		Data:  eventData(event),
	}
}

func eventData(event *core.Event) any {
	switch event.Kind {
	case core.EventConnected:
		if event.Connected == nil {
			return nil
		}
		return proto.EventConnected{
			ConnectionID: event.Connected.ConnectionID,
			User:         participantDTO(event.Connected.User),
			IsStaff:      event.Connected.IsStaff,
			Protocol:     proto.ProtocolVersion,
		}
	case core.EventAuthError:
		if event.Auth == nil {
			return nil
		}
		return proto.EventAuthError{Type: event.Auth.Type, Message: event.Auth.Message, Code: event.Auth.Code}
	case core.EventChatCreated:
		return proto.EventChatCreated{
			Chat:     chatDTO(event.Chat),
			Messages: messagesDTO(event.Messages),
			Resumed:  event.Resumed,
		}
	case core.EventNewChat:
		return proto.EventNewChat{
			Chat:    chatDTO(event.Chat),
			User:    actorDTO(event.Actor),
			Resumed: event.Resumed,
		}
	case core.EventChatHistory:
		data := proto.EventChatHistory{ChatID: event.ChatID, Messages: messagesDTO(event.Messages)}
		if event.Chat != nil {
			chat := chatDTO(event.Chat)
			data.Chat = &chat
		}
		return data
	case core.EventNewMessage:
		if event.Message == nil {
			return nil
		}
		return messageDTO(*event.Message)
	case core.EventVisitorMessageNotice, core.EventStaffReplyNotice:
		if event.Message == nil {
			return nil
		}
		data := proto.EventMessageNotice{ChatID: event.ChatID, Message: messageDTO(*event.Message)}
		if event.Chat != nil {
			chat := chatDTO(event.Chat)
			data.Chat = &chat
		}
		return data
	case core.EventTyping, core.EventTypingStopped:
		return proto.EventTyping{ChatID: event.ChatID, User: actorDTO(event.Actor)}
	case core.EventMessagesRead:
		actor := actorDTO(event.Actor)
		return proto.EventMessagesRead{
			ChatID:   event.ChatID,
			UserID:   actor.ID,
			UserName: actor.UserName,
			IsAdmin:  actor.IsAdmin,
			Count:    event.Count,
		}
	case core.EventChatStatusUpdated, core.EventChatAssigned, core.EventChatAssignedToStaff,
		core.EventChatUnassigned, core.EventChatUnassignedFromStaff:
		data := proto.EventChatUpdate{ChatID: event.ChatID, Chat: chatDTO(event.Chat)}
		if event.Actor != nil {
			by := participantDTO(*event.Actor)
			data.By = &by
		}
		return data
	case core.EventAllChats:
		chats := make([]proto.Chat, 0, len(event.Chats))
		for _, chat := range event.Chats {
			chats = append(chats, chatDTO(chat))
		}
		return proto.EventAllChats{Success: event.Success, Chats: chats}
	case core.EventChatStats:
		return proto.EventChatStats{Success: event.Success, Stats: statsDTO(event.Stats)}
	case core.EventChatDeleted, core.EventAllChatsDeleted:
		data := proto.EventChatDeleted{ChatID: event.ChatID, Count: event.Count}
		if event.Actor != nil {
			by := participantDTO(*event.Actor)
			data.DeletedBy = &by
		}
		return data
	case core.EventChatDeleteOK, core.EventAllChatsDeleteOK:
		return proto.EventDeleteOK{Success: event.Success, ChatID: event.ChatID, Count: event.Count}
	case core.EventChatDeletedForVisitor:
		return proto.EventChatDeletedForVisitor{ChatID: event.ChatID, Message: event.Notice}
	case core.EventDisplayNameSet:
		return proto.EventDisplayNameSet{Success: event.Success, Name: event.Name, Error: event.Notice}
	case core.EventPresenceUpdated:
		if event.Presence == nil {
			return nil
		}
		return proto.EventPresenceUpdated{User: participantDTO(event.Presence.User), Status: event.Presence.Status}
	default:
		return nil
	}
}

func participantDTO(p core.Participant) proto.Participant {
	return proto.Participant{
		ID:          p.ID,
		UserName:    p.UserName,
		Name:        p.Name,
		IsAdmin:     p.IsAdmin,
		IsAnonymous: p.IsAnonymous,
	}
}

func actorDTO(p *core.Participant) proto.Participant {
	if p == nil {
		return proto.Participant{}
	}
	return participantDTO(*p)
}

func chatDTO(chat *store.Chat) proto.Chat {
	if chat == nil {
		return proto.Chat{}
	}
	dto := proto.Chat{
		ID: chat.ID,
		Visitor: proto.Visitor{
			Kind:        string(chat.Visitor.Kind),
			ID:          chat.Visitor.ID,
			DisplayName: chat.VisitorDisplayName,
			Handle:      chat.VisitorHandle,
		},
		Subject:         chat.Subject,
		Priority:        string(chat.Priority),
		Status:          string(chat.Status),
		IsActive:        chat.IsActive,
		UnreadByStaff:   chat.UnreadByStaff,
		UnreadByVisitor: chat.UnreadByVisitor,
		LastMessageID:   chat.LastMessageID,
		CreatedAt:       chat.CreatedAt,
		UpdatedAt:       chat.UpdatedAt,
	}
	if chat.AssignedStaff != nil {
		dto.AssignedStaff = &proto.Staff{
			ID:       chat.AssignedStaff.ID,
			UserName: chat.AssignedStaff.Username,
			Name:     chat.AssignedStaff.Name,
		}
	}
	return dto
}

func messageDTO(view core.MessageView) proto.Message {
	msg := view.Message
	if msg == nil {
		return proto.Message{Sender: participantDTO(view.Sender)}
	}
	attachments := make([]proto.Attachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		attachments = append(attachments, proto.Attachment{URL: a.URL, Filename: a.Filename, FileType: a.FileType})
	}
	return proto.Message{
		ID:              msg.ID,
		ChatID:          msg.ChatID,
		Sender:          participantDTO(view.Sender),
		Content:         msg.Content,
		MessageType:     string(msg.Type),
		Attachments:     attachments,
		IsReadByStaff:   msg.IsReadByStaff,
		ReadByStaffAt:   msg.ReadByStaffAt,
		IsReadByVisitor: msg.IsReadByVisitor,
		ReadByVisitorAt: msg.ReadByVisitorAt,
		IsInternalNote:  msg.IsInternalNote,
		IsEdited:        msg.IsEdited,
		EditedAt:        msg.EditedAt,
		CreatedAt:       msg.CreatedAt,
	}
}

func messagesDTO(views []core.MessageView) []proto.Message {
	out := make([]proto.Message, 0, len(views))
	for _, v := range views {
		out = append(out, messageDTO(v))
	}
	return out
}

func statsDTO(stats *store.ChatStats) proto.Stats {
	var dto proto.Stats
	if stats == nil {
		return dto
	}
	dto.Chats.Total = stats.TotalChats
	dto.Chats.Unread = stats.ActiveChats
	dto.Chats.Today = stats.TodayChats
	dto.Messages.Total = stats.TotalMessages
	return dto
}

func presenceDTO(entries []core.PresenceEntry) []proto.PresenceEntry {
	out := make([]proto.PresenceEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, proto.PresenceEntry{User: participantDTO(e.User), Status: e.Status, Connections: e.Connections})
	}
	return out
}
