package recording

import (
	"errors"

	"interviewhub/pkg/interfaces"
)

// Recording store errors
var (
	ErrTooLarge       = errors.New("recording exceeds size limit")
	ErrEmptyRecording = errors.New("recording is empty")
	ErrNotFound       = interfaces.ErrRecordingNotFound
)
