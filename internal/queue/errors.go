package queue

import "interviewhub/internal/session"

// Queue errors are the store's errors; they are re-exported so callers of
// the queue manager need not import the store.
var (
	ErrSessionNotFound = session.ErrSessionNotFound
	ErrHostCannotQueue = session.ErrHostCannotQueue
)
