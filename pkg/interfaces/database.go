package interfaces

import (
	"context"

	"interviewhub/pkg/types"
)

// EventRecorder appends to the interview audit log. RecordEvent must not
// block the caller on I/O.
type EventRecorder interface {
	RecordEvent(event *types.InterviewEvent)
}

// RecordingIndex keeps metadata of saved recording blobs.
type RecordingIndex interface {
	// StoreRecording indexes a saved recording blob.
	StoreRecording(ctx context.Context, rec *types.Recording) error

	// GetRecording returns one indexed recording.
	GetRecording(ctx context.Context, id string) (*types.Recording, error)

	// ListRecordings returns indexed recordings, newest first.
	ListRecordings(ctx context.Context, sessionCode string) ([]*types.Recording, error)
}

// DatabaseManager handles all persistence operations.
type DatabaseManager interface {
	EventRecorder
	RecordingIndex

	// SessionHistory returns the audit log of one session in insertion order.
	SessionHistory(ctx context.Context, sessionCode string) ([]*types.InterviewEvent, error)

	// HealthCheck verifies database connectivity.
	HealthCheck(ctx context.Context) error

	// Close flushes pending writes and closes the database.
	Close() error
}
