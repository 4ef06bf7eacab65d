package support

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inaumanmajeed/epicrealm-support/internal/core"
	"github.com/inaumanmajeed/epicrealm-support/internal/store"
	"github.com/inaumanmajeed/epicrealm-support/internal/store/sqlite"
)

type fixture struct {
	st    *sqlite.SQLiteStore
	svc   *Service
	staff core.Identity
	ctx   context.Context
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	account := &store.Account{Username: "agent", IsAdmin: true}
	require.NoError(t, st.CreateAccount(ctx, account))

	return &fixture{
		st:    st,
		svc:   New(st, cfg, nil),
		staff: core.AccountIdentity(account),
		ctx:   ctx,
	}
}

func (f *fixture) open(t *testing.T, who core.Identity, subject string) *store.Chat {
	t.Helper()
	snap, err := f.svc.OpenChat(f.ctx, who, core.NewChat{Subject: subject})
	require.NoError(t, err)
	return snap.Chat
}

func (f *fixture) send(t *testing.T, who core.Identity, chatID, content string) *core.SendResult {
	t.Helper()
	res, err := f.svc.SendMessage(f.ctx, who, core.OutgoingMessage{ChatID: chatID, Content: content})
	require.NoError(t, err)
	return res
}

func TestOpenChatReusesActiveChat(t *testing.T) {
	f := newFixture(t, Config{})
	guest := core.AnonymousIdentity("conn-a")

	first, err := f.svc.OpenChat(f.ctx, guest, core.NewChat{Subject: "Need help"})
	require.NoError(t, err)
	assert.False(t, first.Resumed)
	assert.Equal(t, "Need help", first.Chat.Subject)
	assert.Equal(t, store.ChatStatusOpen, first.Chat.Status)
	assert.Equal(t, store.ChatPriorityMedium, first.Chat.Priority)
	assert.Equal(t, core.AnonymousDisplayName, first.Chat.VisitorDisplayName)

	f.send(t, guest, first.Chat.ID, "Hello")

	second, err := f.svc.OpenChat(f.ctx, guest, core.NewChat{Subject: "Other"})
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.Chat.ID, second.Chat.ID)
	require.Len(t, second.Messages, 1)
	assert.Equal(t, "Hello", second.Messages[0].Message.Content)
}

func TestOpenChatDefaultsAndValidation(t *testing.T) {
	f := newFixture(t, Config{})

	chat := f.open(t, core.AnonymousIdentity("conn-a"), "  ")
	assert.Equal(t, DefaultSubject, chat.Subject)

	_, err := f.svc.OpenChat(f.ctx, core.AnonymousIdentity("conn-b"), core.NewChat{Priority: "critical"})
	assert.ErrorIs(t, err, core.ErrInvalidPriority)
}

func TestSupportScenario(t *testing.T) {
	f := newFixture(t, Config{})
	guest := core.AnonymousIdentity("conn-a")

	chat := f.open(t, guest, "Need help")
	sent := f.send(t, guest, chat.ID, "  Hello  ")
	assert.Equal(t, "Hello", sent.Message.Message.Content)
	assert.Equal(t, 1, sent.Chat.UnreadByStaff)
	assert.False(t, sent.AutoAssigned)
	assert.True(t, sent.Message.Message.IsReadByVisitor)

	reply := f.send(t, f.staff, chat.ID, "Hi, how can I help?")
	assert.True(t, reply.AutoAssigned)
	assert.Equal(t, store.ChatStatusInProgress, reply.Chat.Status)
	require.NotNil(t, reply.Chat.AssignedStaff)
	assert.Equal(t, "agent", reply.Chat.AssignedStaff.Username)
	assert.Equal(t, 0, reply.Chat.UnreadByStaff)
	assert.Equal(t, 1, reply.Chat.UnreadByVisitor)
	assert.True(t, reply.Message.Sender.IsAdmin)
	assert.Equal(t, DefaultStaffDisplayName, reply.Message.Sender.Name)

	// A second staff reply does not re-announce the assignment.
	again := f.send(t, f.staff, chat.ID, "Still here")
	assert.False(t, again.AutoAssigned)
	assert.Equal(t, 2, again.Chat.UnreadByVisitor)
}

func TestStaffReplyReopensUnassignedTerminalChat(t *testing.T) {
	f := newFixture(t, Config{})
	guest := core.AnonymousIdentity("conn-a")

	chat := f.open(t, guest, "Need help")
	f.send(t, guest, chat.ID, "Hello")
	_, err := f.svc.UpdateStatus(f.ctx, f.staff, core.StatusChange{ChatID: chat.ID, Status: store.ChatStatusResolved})
	require.NoError(t, err)

	reply := f.send(t, f.staff, chat.ID, "Reopening this")
	assert.True(t, reply.AutoAssigned)
	assert.Equal(t, store.ChatStatusInProgress, reply.Chat.Status)
	require.NotNil(t, reply.Chat.AssignedStaff)
	assert.Equal(t, "agent", reply.Chat.AssignedStaff.Username)
}

func TestStaffReplyKeepsTerminalChatWhenVisitorHasAnother(t *testing.T) {
	f := newFixture(t, Config{})
	guest := core.AnonymousIdentity("conn-a")

	old := f.open(t, guest, "First")
	_, err := f.svc.UpdateStatus(f.ctx, f.staff, core.StatusChange{ChatID: old.ID, Status: store.ChatStatusClosed})
	require.NoError(t, err)
	current := f.open(t, guest, "Second")
	require.NotEqual(t, old.ID, current.ID)

	reply := f.send(t, f.staff, old.ID, "Following up")
	assert.False(t, reply.AutoAssigned)
	assert.Equal(t, store.ChatStatusClosed, reply.Chat.Status)
	assert.Nil(t, reply.Chat.AssignedStaff)

	active, err := f.st.FindActiveChat(f.ctx, guest.Party)
	require.NoError(t, err)
	assert.Equal(t, current.ID, active.ID)
}

func TestInternalNotes(t *testing.T) {
	f := newFixture(t, Config{})
	guest := core.AnonymousIdentity("conn-a")
	chat := f.open(t, guest, "")

	_, err := f.svc.SendMessage(f.ctx, guest, core.OutgoingMessage{ChatID: chat.ID, Content: "x", InternalNote: true})
	assert.ErrorIs(t, err, core.ErrInternalNote)

	note, err := f.svc.SendMessage(f.ctx, f.staff, core.OutgoingMessage{ChatID: chat.ID, Content: "vip", InternalNote: true})
	require.NoError(t, err)
	assert.False(t, note.AutoAssigned, "internal notes never claim a chat")
	assert.Equal(t, 0, note.Chat.UnreadByVisitor)
	assert.Nil(t, note.Chat.AssignedStaff)

	visitorView, err := f.svc.JoinChat(f.ctx, guest, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, visitorView.Messages)

	staffView, err := f.svc.JoinChat(f.ctx, f.staff, chat.ID)
	require.NoError(t, err)
	require.Len(t, staffView.Messages, 1)
	assert.True(t, staffView.Messages[0].Message.IsInternalNote)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t, Config{})
	guest := core.AnonymousIdentity("conn-a")
	chat := f.open(t, guest, "")

	_, err := f.svc.SendMessage(f.ctx, guest, core.OutgoingMessage{ChatID: chat.ID, Content: "   "})
	assert.ErrorIs(t, err, core.ErrEmptyContent)

	_, err = f.svc.SendMessage(f.ctx, guest, core.OutgoingMessage{ChatID: chat.ID, Content: "x", Type: "video"})
	assert.ErrorIs(t, err, core.ErrInvalidType)

	_, err = f.svc.SendMessage(f.ctx, guest, core.OutgoingMessage{ChatID: "missing", Content: "x"})
	assert.ErrorIs(t, err, core.ErrChatNotFound)

	_, err = f.svc.SendMessage(f.ctx, core.AnonymousIdentity("conn-b"), core.OutgoingMessage{ChatID: chat.ID, Content: "x"})
	assert.ErrorIs(t, err, core.ErrAccessDenied)
}

func TestPermissiveAnonymousAccess(t *testing.T) {
	strict := newFixture(t, Config{})
	chat := strict.open(t, core.AnonymousIdentity("conn-a"), "")
	_, err := strict.svc.Authorize(strict.ctx, core.AnonymousIdentity("conn-b"), chat.ID)
	assert.ErrorIs(t, err, core.ErrAccessDenied)

	loose := newFixture(t, Config{PermissiveAnonymousAccess: true})
	chat = loose.open(t, core.AnonymousIdentity("conn-a"), "")
	_, err = loose.svc.Authorize(loose.ctx, core.AnonymousIdentity("conn-b"), chat.ID)
	assert.NoError(t, err)

	member := core.Identity{Party: store.UserParty(99), UserName: "member"}
	_, err = loose.svc.Authorize(loose.ctx, member, chat.ID)
	assert.ErrorIs(t, err, core.ErrAccessDenied, "accounts never get the relaxation")
}

func TestMarkReadIdempotent(t *testing.T) {
	f := newFixture(t, Config{})
	guest := core.AnonymousIdentity("conn-a")
	chat := f.open(t, guest, "")
	f.send(t, guest, chat.ID, "one")
	f.send(t, guest, chat.ID, "two")

	res, err := f.svc.MarkRead(f.ctx, f.staff, chat.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, int64(2), res.Marked)

	res, err = f.svc.MarkRead(f.ctx, f.staff, chat.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	stored, err := f.st.GetChat(f.ctx, chat.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.UnreadByStaff)
}

func TestHistoryOrderAndSenders(t *testing.T) {
	f := newFixture(t, Config{StaffDisplayName: "Support Team"})
	guest := core.AnonymousIdentity("conn-a")
	guest.Name = "Jane"
	guest.UserName = "jane"
	chat := f.open(t, guest, "")

	base := time.Now().UTC()
	tick := 0
	f.svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	f.send(t, guest, chat.ID, "first")
	f.send(t, f.staff, chat.ID, "second")
	f.send(t, guest, chat.ID, "third")

	ghost := &store.Message{ChatID: chat.ID, Sender: store.UserParty(4242), Content: "fourth", CreatedAt: base.Add(time.Hour)}
	_, err := f.st.RecordMessage(f.ctx, ghost, store.MessageBump{SenderSide: store.ReadSideVisitor})
	require.NoError(t, err)

	snap, err := f.svc.JoinChat(f.ctx, f.staff, chat.ID)
	require.NoError(t, err)
	require.Len(t, snap.Messages, 4)

	var contents []string
	for _, m := range snap.Messages {
		contents = append(contents, m.Message.Content)
	}
	assert.Equal(t, []string{"first", "second", "third", "fourth"}, contents)

	assert.Equal(t, core.Participant{ID: guest.Party.ID, UserName: "jane", Name: "Jane", IsAnonymous: true}, snap.Messages[0].Sender)
	assert.Equal(t, "agent", snap.Messages[1].Sender.UserName)
	assert.Equal(t, "Support Team", snap.Messages[1].Sender.Name)
	assert.True(t, snap.Messages[1].Sender.IsAdmin)
	assert.Equal(t, core.UnknownDisplayName, snap.Messages[3].Sender.Name)
}

func TestAnonymousLiveSenderUsesChatRecord(t *testing.T) {
	f := newFixture(t, Config{})
	guest := core.AnonymousIdentity("conn-a")
	guest.Name = "Jane"
	guest.UserName = "jane"
	chat := f.open(t, guest, "")

	// The session name changed without reaching the chat record.
	guest.Name = "Someone Else"
	guest.UserName = "someone"
	sent := f.send(t, guest, chat.ID, "hello")

	want := core.Participant{ID: guest.Party.ID, UserName: "jane", Name: "Jane", IsAnonymous: true}
	assert.Equal(t, want, sent.Message.Sender)

	snap, err := f.svc.JoinChat(f.ctx, f.staff, chat.ID)
	require.NoError(t, err)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, sent.Message.Sender, snap.Messages[0].Sender)
}

func TestJoinChatPropagatesDisplayName(t *testing.T) {
	f := newFixture(t, Config{})
	guest := core.AnonymousIdentity("conn-a")
	chat := f.open(t, guest, "")

	guest.Name = "Jane"
	guest.UserName = "Jane"
	snap, err := f.svc.JoinChat(f.ctx, guest, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", snap.Chat.VisitorDisplayName)

	stored, err := f.st.GetChat(f.ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", stored.VisitorDisplayName)
}

func TestSetDisplayName(t *testing.T) {
	f := newFixture(t, Config{})
	guest := core.AnonymousIdentity("conn-a")
	chat := f.open(t, guest, "")

	_, err := f.svc.SetDisplayName(f.ctx, guest, "   ")
	assert.ErrorIs(t, err, core.ErrInvalidName)

	long := strings.Repeat("é", 60)
	name, err := f.svc.SetDisplayName(f.ctx, guest, "  "+long+"  ")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", core.MaxDisplayNameRunes), name)

	stored, err := f.st.GetChat(f.ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, name, stored.VisitorDisplayName)
	assert.Equal(t, name, stored.VisitorHandle)
}

func TestAssignRules(t *testing.T) {
	f := newFixture(t, Config{})
	guest := core.AnonymousIdentity("conn-a")
	chat := f.open(t, guest, "")

	_, err := f.svc.Assign(f.ctx, guest, chat.ID)
	assert.ErrorIs(t, err, core.ErrStaffOnly)

	assigned, err := f.svc.Assign(f.ctx, f.staff, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ChatStatusInProgress, assigned.Status)
	require.NotNil(t, assigned.AssignedStaff)

	again, err := f.svc.Assign(f.ctx, f.staff, chat.ID)
	require.NoError(t, err, "re-assigning to yourself is idempotent")
	assert.Equal(t, assigned.AssignedStaff.ID, again.AssignedStaff.ID)

	other := &store.Account{Username: "other", IsAdmin: true}
	require.NoError(t, f.st.CreateAccount(f.ctx, other))
	_, err = f.svc.Assign(f.ctx, core.AccountIdentity(other), chat.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	unassigned, err := f.svc.Unassign(f.ctx, core.AccountIdentity(other), chat.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ChatStatusOpen, unassigned.Status)
	assert.Nil(t, unassigned.AssignedStaff)

	resolved := store.ChatStatusResolved
	_, err = f.svc.UpdateStatus(f.ctx, f.staff, core.StatusChange{ChatID: chat.ID, Status: resolved})
	require.NoError(t, err)
	_, err = f.svc.Unassign(f.ctx, f.staff, chat.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	_, err = f.svc.Assign(f.ctx, f.staff, chat.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t, Config{})
	guest := core.AnonymousIdentity("conn-a")
	chat := f.open(t, guest, "")
	f.send(t, f.staff, chat.ID, "claiming")

	_, err := f.svc.UpdateStatus(f.ctx, guest, core.StatusChange{ChatID: chat.ID, Status: store.ChatStatusClosed})
	assert.ErrorIs(t, err, core.ErrStaffOnly)

	_, err = f.svc.UpdateStatus(f.ctx, f.staff, core.StatusChange{ChatID: chat.ID, Status: "archived"})
	assert.ErrorIs(t, err, core.ErrInvalidStatus)

	_, err = f.svc.UpdateStatus(f.ctx, f.staff, core.StatusChange{ChatID: chat.ID, Priority: "critical"})
	assert.ErrorIs(t, err, core.ErrInvalidPriority)

	_, err = f.svc.UpdateStatus(f.ctx, f.staff, core.StatusChange{ChatID: chat.ID})
	assert.ErrorIs(t, err, core.ErrBadRequest)

	updated, err := f.svc.UpdateStatus(f.ctx, f.staff, core.StatusChange{ChatID: chat.ID, Priority: store.ChatPriorityUrgent})
	require.NoError(t, err)
	assert.Equal(t, store.ChatPriorityUrgent, updated.Priority)
	assert.Equal(t, store.ChatStatusInProgress, updated.Status)

	reopened, err := f.svc.UpdateStatus(f.ctx, f.staff, core.StatusChange{ChatID: chat.ID, Status: store.ChatStatusOpen})
	require.NoError(t, err)
	assert.Nil(t, reopened.AssignedStaff, "open chats have no assignee")

	_, err = f.svc.UpdateStatus(f.ctx, f.staff, core.StatusChange{ChatID: chat.ID, Status: store.ChatStatusClosed})
	require.NoError(t, err)

	// The visitor opens a new chat; the closed one can no longer be revived.
	fresh := f.open(t, guest, "follow up")
	assert.NotEqual(t, chat.ID, fresh.ID)
	_, err = f.svc.UpdateStatus(f.ctx, f.staff, core.StatusChange{ChatID: chat.ID, Status: store.ChatStatusOpen})
	assert.ErrorIs(t, err, core.ErrActiveChatExists)
}

func TestDeleteChat(t *testing.T) {
	f := newFixture(t, Config{})
	guest := core.AnonymousIdentity("conn-a")
	chat := f.open(t, guest, "")
	f.send(t, guest, chat.ID, "bye")

	_, err := f.svc.DeleteChat(f.ctx, guest, chat.ID)
	assert.ErrorIs(t, err, core.ErrStaffOnly)

	deleted, err := f.svc.DeleteChat(f.ctx, f.staff, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, deleted.ID)

	messages, err := f.st.ListMessages(f.ctx, chat.ID, true)
	require.NoError(t, err)
	assert.Empty(t, messages)

	_, err = f.svc.JoinChat(f.ctx, guest, chat.ID)
	assert.ErrorIs(t, err, core.ErrChatNotFound)

	_, err = f.svc.DeleteChat(f.ctx, f.staff, chat.ID)
	assert.ErrorIs(t, err, core.ErrChatNotFound)
}

func TestDeleteAllChatsConfirmation(t *testing.T) {
	f := newFixture(t, Config{})
	f.open(t, core.AnonymousIdentity("conn-a"), "")
	f.open(t, core.AnonymousIdentity("conn-b"), "")

	_, err := f.svc.DeleteAllChats(f.ctx, f.staff, "wrong phrase")
	assert.ErrorIs(t, err, core.ErrConfirmation)

	chats, err := f.svc.ListChats(f.ctx, f.staff, store.ChatFilter{})
	require.NoError(t, err)
	assert.Len(t, chats, 2, "nothing is deleted without the phrase")

	deleted, err := f.svc.DeleteAllChats(f.ctx, f.staff, ConfirmDeleteAll)
	require.NoError(t, err)
	assert.Len(t, deleted, 2)

	chats, err = f.svc.ListChats(f.ctx, f.staff, store.ChatFilter{})
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestStatsAndListing(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.open(t, core.AnonymousIdentity("conn-a"), "")
	f.open(t, core.AnonymousIdentity("conn-b"), "")
	f.send(t, core.AnonymousIdentity("conn-a"), a.ID, "hi")
	_, err := f.svc.UpdateStatus(f.ctx, f.staff, core.StatusChange{ChatID: a.ID, Status: store.ChatStatusResolved})
	require.NoError(t, err)

	_, err = f.svc.Stats(f.ctx, core.AnonymousIdentity("conn-a"))
	assert.ErrorIs(t, err, core.ErrStaffOnly)

	stats, err := f.svc.Stats(f.ctx, f.staff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalChats)
	assert.Equal(t, int64(2), stats.TodayChats)
	assert.Equal(t, int64(1), stats.ActiveChats)
	assert.Equal(t, int64(1), stats.TotalMessages)

	resolved, err := f.svc.ListChats(f.ctx, f.staff, store.ChatFilter{Status: store.ChatStatusResolved})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, a.ID, resolved[0].ID)

	_, err = f.svc.ListChats(f.ctx, f.staff, store.ChatFilter{Status: "bogus"})
	assert.ErrorIs(t, err, core.ErrInvalidStatus)
}

func TestListChatsIsCapped(t *testing.T) {
	f := newFixture(t, Config{})
	for i := range store.MaxChatListLimit + 20 {
		f.open(t, core.AnonymousIdentity(fmt.Sprintf("conn-%03d", i)), "")
	}

	chats, err := f.svc.ListChats(f.ctx, f.staff, store.ChatFilter{Limit: 500})
	require.NoError(t, err)
	assert.Len(t, chats, store.MaxChatListLimit)

	chats, err = f.svc.ListChats(f.ctx, f.staff, store.ChatFilter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, chats, 3)
}

func TestStaffHistoryAndActiveChatIDs(t *testing.T) {
	f := newFixture(t, Config{})
	guest := core.AnonymousIdentity("conn-a")
	withMessages := f.open(t, guest, "")
	f.send(t, guest, withMessages.ID, "hi")
	f.open(t, core.AnonymousIdentity("conn-b"), "")

	history, err := f.svc.StaffHistory(f.ctx, f.staff, 100)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, withMessages.ID, history[0].Chat.ID)

	staffIDs, err := f.svc.ActiveChatIDs(f.ctx, f.staff)
	require.NoError(t, err)
	assert.Len(t, staffIDs, 2)

	guestIDs, err := f.svc.ActiveChatIDs(f.ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, []string{withMessages.ID}, guestIDs)
}
