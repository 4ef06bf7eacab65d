package utils

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID returns a random connection identifier.
func NewID() string {
	return uuid.NewString()
}

// NewChatID returns a lexicographically sortable chat identifier.
func NewChatID() string {
	return ulid.Make().String()
}
