package core

import "github.com/inaumanmajeed/epicrealm-support/internal/store"

const (
	// AnonymousDisplayName is the display name of visitors without a custom name.
	AnonymousDisplayName = "Anonymous User"
	// UnknownDisplayName renders senders whose account no longer exists.
	UnknownDisplayName = "Unknown User"
	// MaxDisplayNameRunes bounds custom display names.
	MaxDisplayNameRunes = 50
)

// Identity is the resolved principal behind one connection.
type Identity struct {
	Party    store.Party
	UserName string
	Name     string
	Email    string
	IsAdmin  bool
}

// AnonymousIdentity builds the identity of a visitor without credentials.
func AnonymousIdentity(connectionID string) Identity {
	short := connectionID
	if len(short) > 6 {
		short = short[:6]
	}
	return Identity{
		Party:    store.AnonymousParty(connectionID),
		UserName: "Anonymous_" + short,
		Name:     AnonymousDisplayName,
	}
}

// AccountIdentity builds the identity of an authenticated account.
func AccountIdentity(account *store.Account) Identity {
	return Identity{
		Party:    store.UserParty(account.ID),
		UserName: account.Username,
		Name:     account.Name,
		Email:    account.Email,
		IsAdmin:  account.IsAdmin,
	}
}

// IsStaff reports whether the identity acts with staff privileges.
func (i Identity) IsStaff() bool {
	return i.IsAdmin && i.Party.Kind == store.PartyUser
}

// IsAnonymous reports whether the identity has no account.
func (i Identity) IsAnonymous() bool {
	return i.Party.IsAnonymous()
}

// Participant renders the identity for other connections.
func (i Identity) Participant() Participant {
	return Participant{
		ID:          i.Party.ID,
		UserName:    i.UserName,
		Name:        i.Name,
		IsAdmin:     i.IsStaff(),
		IsAnonymous: i.IsAnonymous(),
	}
}

// Participant is the uniform public shape of a message sender or actor.
type Participant struct {
	ID          string
	UserName    string
	Name        string
	IsAdmin     bool
	IsAnonymous bool
}

// AuthFailure is reported to a connection whose credentials were rejected.
type AuthFailure struct {
	Type    string
	Message string
	Code    string
}

const (
	AuthCodeTokenExpired = "TOKEN_EXPIRED"
	AuthCodeTokenInvalid = "TOKEN_INVALID"
)
