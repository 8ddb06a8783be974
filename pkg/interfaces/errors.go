package interfaces

import "errors"

// Common interface errors used across components
var (
	ErrRecordingNotFound = errors.New("recording not found")
	ErrDatabaseClosed    = errors.New("database manager is closed")
)
