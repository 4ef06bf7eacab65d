package support

import (
	"context"
	"errors"
	"fmt"

	"github.com/inaumanmajeed/epicrealm-support/internal/core"
	"github.com/inaumanmajeed/epicrealm-support/internal/store"
)

// history loads the messages of chat visible to who, with senders resolved.
func (s *Service) history(ctx context.Context, who core.Identity, chat *store.Chat) ([]core.MessageView, error) {
	messages, err := s.store.ListMessages(ctx, chat.ID, who.IsStaff())
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	senders := make(map[store.Party]core.Participant)
	views := make([]core.MessageView, 0, len(messages))
	for _, msg := range messages {
		sender, ok := senders[msg.Sender]
		if !ok {
			sender = s.storedSender(ctx, msg.Sender, chat)
			senders[msg.Sender] = sender
		}
		views = append(views, core.MessageView{Message: msg, Sender: sender})
	}
	return views, nil
}

// storedSender resolves the sender of a persisted message.
// Anonymous senders borrow names from the chat record.
func (s *Service) storedSender(ctx context.Context, party store.Party, chat *store.Chat) core.Participant {
	if party.IsAnonymous() {
		return core.Participant{
			ID:          party.ID,
			UserName:    firstNonEmpty(chat.VisitorHandle, chat.VisitorDisplayName, core.AnonymousDisplayName),
			Name:        firstNonEmpty(chat.VisitorDisplayName, chat.VisitorHandle, core.AnonymousDisplayName),
			IsAnonymous: true,
		}
	}

	unknown := core.Participant{ID: party.ID, UserName: core.UnknownDisplayName, Name: core.UnknownDisplayName}
	accountID, ok := party.AccountID()
	if !ok {
		return unknown
	}
	account, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn().Err(err).Str("party", party.String()).Msg("resolve message sender")
		}
		return unknown
	}
	return s.accountSender(party, account.Username, account.Name, account.IsAdmin)
}

// liveSender renders the sender of a message that was just sent by who into chat.
// Anonymous senders read names from the chat record, as history does.
func (s *Service) liveSender(ctx context.Context, who core.Identity, chat *store.Chat) core.Participant {
	if who.IsAnonymous() {
		return s.storedSender(ctx, who.Party, chat)
	}
	return s.accountSender(who.Party, who.UserName, who.Name, who.IsStaff())
}

func (s *Service) accountSender(party store.Party, userName, name string, isAdmin bool) core.Participant {
	fallback := "User"
	if isAdmin {
		fallback = s.cfg.StaffDisplayName
	}
	return core.Participant{
		ID:       party.ID,
		UserName: firstNonEmpty(userName, fallback),
		Name:     firstNonEmpty(name, fallback),
		IsAdmin:  isAdmin,
	}
}
