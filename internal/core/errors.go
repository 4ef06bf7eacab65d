package core

import (
	"errors"

	"github.com/inaumanmajeed/epicrealm-support/internal/store"
)

// Error codes for domain errors.
const (
	ErrCodeAccessDenied     = "access_denied"
	ErrCodeChatNotFound     = "chat_not_found"
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeInternal         = "internal"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInvalidMessage   = "invalid_message"
)

var (
	ErrAccessDenied      = errors.New("access denied")
	ErrStaffOnly         = errors.New("access denied: staff only")
	ErrChatNotFound      = errors.New("chat not found")
	ErrBadRequest        = errors.New("bad request")
	ErrEmptyContent      = errors.New("message content is required")
	ErrInvalidStatus     = errors.New("invalid chat status")
	ErrInvalidPriority   = errors.New("invalid chat priority")
	ErrInvalidType       = errors.New("invalid message type")
	ErrInternalNote      = errors.New("only staff can send internal notes")
	ErrInvalidTransition = errors.New("invalid chat transition")
	ErrActiveChatExists  = errors.New("visitor already has an active chat")
	ErrConfirmation      = errors.New("invalid confirmation text")
	ErrInvalidName       = errors.New("invalid name")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

var validationErrors = []error{
	ErrEmptyContent,
	ErrInvalidStatus,
	ErrInvalidPriority,
	ErrInvalidType,
	ErrInternalNote,
	ErrInvalidTransition,
	ErrActiveChatExists,
	ErrConfirmation,
	ErrInvalidName,
}

// Classify maps an error returned by the chat service onto a wire error.
// Unknown errors become a generic internal error so storage details never leak.
func Classify(err error) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case errors.Is(err, ErrStaffOnly):
		return coreError(ErrCodeAccessDenied, "Access denied. Staff only.")
	case errors.Is(err, ErrAccessDenied):
		return coreError(ErrCodeAccessDenied, "Access denied")
	case errors.Is(err, ErrChatNotFound), errors.Is(err, store.ErrNotFound):
		return coreError(ErrCodeChatNotFound, "Chat not found")
	case errors.Is(err, ErrBadRequest):
		return coreError(ErrCodeBadRequest, err.Error())
	}

	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return coreError(ErrCodeValidationFailed, target.Error())
		}
	}
	return coreError(ErrCodeInternal, "internal error")
}
