package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"interviewhub/internal/metrics"
	"interviewhub/pkg/interfaces"
	"interviewhub/pkg/types"
)

const defaultContentType = "application/octet-stream"

// Store saves opaque recording blobs to a directory and indexes them.
// It never looks inside the bytes.
type Store struct {
	dir      string
	maxBytes int64
	index    interfaces.RecordingIndex
	logger   *zap.Logger
	now      func() time.Time
}

// NewStore creates dir if needed. maxBytes <= 0 means unlimited.
func NewStore(dir string, maxBytes int64, index interfaces.RecordingIndex, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		return nil, errors.New("recordings directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}
	return &Store{
		dir:      dir,
		maxBytes: maxBytes,
		index:    index,
		logger:   logger.With(zap.String("component", "recording")),
		now:      time.Now,
	}, nil
}

// Save writes the blob from r under a sanitized, time-prefixed name and
// indexes it. sessionCode is optional.
func (s *Store) Save(ctx context.Context, sessionCode, filename, contentType string, r io.Reader) (*types.Recording, error) {
	clean, err := types.SanitizeFilename(filename)
	if err != nil {
		return nil, err
	}
	if sessionCode != "" {
		if sessionCode, err = types.NormalizeSessionCode(sessionCode); err != nil {
			return nil, err
		}
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	now := s.now().UTC()
	id := uuid.NewString()
	path := filepath.Join(s.dir, fmt.Sprintf("%d-%s-%s", now.UnixMilli(), id[:8], clean))

	size, err := s.writeFile(path, r)
	if err != nil {
		return nil, err
	}

	rec := &types.Recording{
		ID:          id,
		SessionCode: sessionCode,
		Filename:    clean,
		Path:        path,
		Size:        size,
		ContentType: contentType,
		CreatedAt:   now,
	}
	if err := s.index.StoreRecording(ctx, rec); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to index recording: %w", err)
	}

	metrics.RecordingsStoredTotal.Inc()
	s.logger.Info("recording saved",
		zap.String("id", id), zap.String("code", sessionCode), zap.Int64("bytes", size))
	return rec, nil
}

func (s *Store) writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create recording file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	switch {
	case err != nil:
		err = fmt.Errorf("failed to write recording: %w", err)
	case s.maxBytes > 0 && n > s.maxBytes:
		err = ErrTooLarge
	case n == 0:
		err = ErrEmptyRecording
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}

// Open returns the metadata and an open file for one recording. The
// caller closes the file.
func (s *Store) Open(ctx context.Context, id string) (*types.Recording, *os.File, error) {
	rec, err := s.index.GetRecording(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(rec.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to open recording: %w", err)
	}
	return rec, f, nil
}

// List returns indexed recordings, newest first. An empty code lists all.
func (s *Store) List(ctx context.Context, sessionCode string) ([]*types.Recording, error) {
	if sessionCode != "" {
		code, err := types.NormalizeSessionCode(sessionCode)
		if err != nil {
			return nil, err
		}
		sessionCode = code
	}
	return s.index.ListRecordings(ctx, sessionCode)
}

// MaxBytes returns the configured upload limit, or 0 when unlimited.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}
