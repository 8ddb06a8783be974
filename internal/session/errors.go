package session

import "errors"

// Session store error types
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrCodeSpaceExhausted = errors.New("could not generate an unused session code")
	ErrEmptyHost          = errors.New("session host cannot be empty")
	ErrHostCannotQueue    = errors.New("host cannot join own queue")
)
