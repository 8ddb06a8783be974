package types

import "errors"

// Validation errors surfaced in acks and HTTP responses.
var (
	ErrInvalidSessionCode = errors.New("invalid session code")
	ErrInvalidEvent       = errors.New("unknown event")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrMissingRecipient   = errors.New("relay message missing recipient")
	ErrInvalidFilename    = errors.New("invalid recording filename")
)
