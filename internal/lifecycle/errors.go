package lifecycle

import "errors"

// Lifecycle error types. Their messages are the ack error strings.
var (
	ErrNotSessionHost = errors.New("not session host")
	ErrAlreadyBound   = errors.New("already bound to another session")
	ErrInvalidPolicy  = errors.New("invalid role policy")
)
