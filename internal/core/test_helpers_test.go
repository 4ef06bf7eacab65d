package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/inaumanmajeed/epicrealm-support/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustNoEvent fails if an event of kind arrives within a short window.
func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event %v: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// countEvents drains ch for a short window and counts events of kind.
func countEvents(ch <-chan *Event, kind EventKind) int {
	n := 0
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				n++
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	return n
}

func startHub(t *testing.T, svc ChatService) *Hub {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	hub := NewHub(svc, nil, HubConfig{}, nil)
	go hub.Run(ctx)
	return hub
}

func visitor(id string) Identity {
	return AnonymousIdentity(id)
}

func staff(id int64, name string) Identity {
	return Identity{Party: store.UserParty(id), UserName: name, Name: name, IsAdmin: true}
}

func connect(t *testing.T, hub *Hub, id string, identity Identity) *Client {
	t.Helper()
	c := hub.NewClient(id, identity)
	hub.RegisterClient(c)
	mustEvent(t, c.Events, EventConnected)
	return c
}

// fakeService is an in-memory ChatService with the access rules the hub relies on.
type fakeService struct {
	mu       sync.Mutex
	seq      int
	chats    map[string]*store.Chat
	messages map[string][]MessageView
}

func newFakeService() *fakeService {
	return &fakeService{
		chats:    make(map[string]*store.Chat),
		messages: make(map[string][]MessageView),
	}
}

var _ ChatService = (*fakeService)(nil)

func clone(chat *store.Chat) *store.Chat {
	c := *chat
	return &c
}

func (f *fakeService) authorize(who Identity, chatID string) (*store.Chat, error) {
	chat, ok := f.chats[chatID]
	if !ok {
		return nil, fmt.Errorf("chat %s: %w", chatID, ErrChatNotFound)
	}
	if !who.IsStaff() && chat.Visitor != who.Party {
		return nil, ErrAccessDenied
	}
	return chat, nil
}

func (f *fakeService) visible(who Identity, chatID string) []MessageView {
	var out []MessageView
	for _, m := range f.messages[chatID] {
		if m.Message.IsInternalNote && !who.IsStaff() {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (f *fakeService) OpenChat(_ context.Context, who Identity, req NewChat) (*ChatSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, chat := range f.chats {
		if chat.Visitor == who.Party && chat.Status.Active() {
			return &ChatSnapshot{Chat: clone(chat), Messages: f.visible(who, chat.ID), Resumed: true}, nil
		}
	}
	f.seq++
	chat := &store.Chat{
		ID:       fmt.Sprintf("chat-%d", f.seq),
		Visitor:  who.Party,
		Subject:  req.Subject,
		Priority: store.ChatPriorityMedium,
		Status:   store.ChatStatusOpen,
		IsActive: true,
	}
	f.chats[chat.ID] = chat
	return &ChatSnapshot{Chat: clone(chat)}, nil
}

func (f *fakeService) JoinChat(_ context.Context, who Identity, chatID string) (*ChatSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, err := f.authorize(who, chatID)
	if err != nil {
		return nil, err
	}
	return &ChatSnapshot{Chat: clone(chat), Messages: f.visible(who, chatID)}, nil
}

func (f *fakeService) Authorize(_ context.Context, who Identity, chatID string) (*store.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, err := f.authorize(who, chatID)
	if err != nil {
		return nil, err
	}
	return clone(chat), nil
}

func (f *fakeService) SendMessage(_ context.Context, who Identity, msg OutgoingMessage) (*SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, err := f.authorize(who, msg.ChatID)
	if err != nil {
		return nil, err
	}
	if msg.Content == "" {
		return nil, ErrEmptyContent
	}
	if msg.InternalNote && !who.IsStaff() {
		return nil, ErrInternalNote
	}

	f.seq++
	view := MessageView{
		Message: &store.Message{
			ID:             int64(f.seq),
			ChatID:         chat.ID,
			Sender:         who.Party,
			Content:        msg.Content,
			Type:           store.MessageTypeText,
			IsInternalNote: msg.InternalNote,
		},
		Sender: who.Participant(),
	}
	f.messages[chat.ID] = append(f.messages[chat.ID], view)

	autoAssigned := false
	if who.IsStaff() && !msg.InternalNote && chat.AssignedStaff == nil && chat.Status == store.ChatStatusOpen {
		id, _ := who.Party.AccountID()
		chat.AssignedStaff = &store.StaffRef{ID: id, Username: who.UserName}
		chat.Status = store.ChatStatusInProgress
		autoAssigned = true
	}
	return &SendResult{Chat: clone(chat), Message: view, AutoAssigned: autoAssigned}, nil
}

func (f *fakeService) MarkRead(_ context.Context, who Identity, chatID string) (*ReadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, err := f.authorize(who, chatID)
	if err != nil {
		return nil, err
	}
	var marked int64
	for _, m := range f.messages[chatID] {
		if who.IsStaff() && !m.Message.IsReadByStaff {
			m.Message.IsReadByStaff = true
			marked++
		}
		if !who.IsStaff() && !m.Message.IsReadByVisitor && !m.Message.IsInternalNote {
			m.Message.IsReadByVisitor = true
			marked++
		}
	}
	return &ReadResult{Chat: clone(chat), Marked: marked, Changed: marked > 0}, nil
}

func (f *fakeService) UpdateStatus(_ context.Context, who Identity, change StatusChange) (*store.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !who.IsStaff() {
		return nil, ErrStaffOnly
	}
	chat, err := f.authorize(who, change.ChatID)
	if err != nil {
		return nil, err
	}
	if change.Status != "" {
		if !change.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		chat.Status = change.Status
	}
	return clone(chat), nil
}

func (f *fakeService) Assign(_ context.Context, who Identity, chatID string) (*store.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !who.IsStaff() {
		return nil, ErrStaffOnly
	}
	chat, err := f.authorize(who, chatID)
	if err != nil {
		return nil, err
	}
	id, _ := who.Party.AccountID()
	chat.AssignedStaff = &store.StaffRef{ID: id, Username: who.UserName}
	chat.Status = store.ChatStatusInProgress
	return clone(chat), nil
}

func (f *fakeService) Unassign(_ context.Context, who Identity, chatID string) (*store.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !who.IsStaff() {
		return nil, ErrStaffOnly
	}
	chat, err := f.authorize(who, chatID)
	if err != nil {
		return nil, err
	}
	chat.AssignedStaff = nil
	chat.Status = store.ChatStatusOpen
	return clone(chat), nil
}

func (f *fakeService) SetDisplayName(_ context.Context, _ Identity, name string) (string, error) {
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}

func (f *fakeService) ListChats(_ context.Context, who Identity, _ store.ChatFilter) ([]*store.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !who.IsStaff() {
		return nil, ErrStaffOnly
	}
	chats := make([]*store.Chat, 0, len(f.chats))
	for _, chat := range f.chats {
		chats = append(chats, chat)
	}
	return chats, nil
}

func (f *fakeService) Stats(_ context.Context, who Identity) (*store.ChatStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !who.IsStaff() {
		return nil, ErrStaffOnly
	}
	return &store.ChatStats{TotalChats: int64(len(f.chats))}, nil
}

func (f *fakeService) DeleteChat(_ context.Context, who Identity, chatID string) (*store.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !who.IsStaff() {
		return nil, ErrStaffOnly
	}
	chat, err := f.authorize(who, chatID)
	if err != nil {
		return nil, err
	}
	delete(f.chats, chatID)
	delete(f.messages, chatID)
	return clone(chat), nil
}

func (f *fakeService) DeleteAllChats(_ context.Context, who Identity, confirm string) ([]*store.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !who.IsStaff() {
		return nil, ErrStaffOnly
	}
	if confirm != "DELETE ALL CHATS" {
		return nil, ErrConfirmation
	}
	chats := make([]*store.Chat, 0, len(f.chats))
	for _, chat := range f.chats {
		chats = append(chats, chat)
	}
	f.chats = make(map[string]*store.Chat)
	f.messages = make(map[string][]MessageView)
	return chats, nil
}

func (f *fakeService) ActiveChatIDs(_ context.Context, who Identity) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, chat := range f.chats {
		if who.IsStaff() || chat.Visitor == who.Party {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeService) StaffHistory(_ context.Context, who Identity, limit int) ([]*ChatSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*ChatSnapshot
	for id, chat := range f.chats {
		if limit > 0 && len(out) == limit {
			break
		}
		if len(f.messages[id]) > 0 {
			out = append(out, &ChatSnapshot{Chat: clone(chat), Messages: f.visible(who, id)})
		}
	}
	return out, nil
}
