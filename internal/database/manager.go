package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	dbconfig "interviewhub/pkg/database"
	"interviewhub/pkg/interfaces"
	"interviewhub/pkg/types"
)

const defaultRetryDelay = 500 * time.Millisecond

// Manager implements interfaces.DatabaseManager on SQLite. All writes go
// through one writer goroutine; reads use the pool directly.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
	retryDelay   time.Duration
	logger       *zap.Logger
}

// writeOperation is one unit of work for the writer. result is nil for
// fire-and-forget writes.
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies migrations, validates the schema
// and starts the writer.
func NewManager(config *dbconfig.Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := dbconfig.Open(config)
	if err != nil {
		return nil, err
	}
	if err := dbconfig.NewMigrationManager(db).ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if err := dbconfig.NewSchemaValidator(db).Validate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	m := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, config.WriteBuffer),
		shutdown:     make(chan struct{}),
		retryDelay:   defaultRetryDelay,
		logger:       logger.With(zap.String("component", "database")),
	}

	m.wg.Add(1)
	go m.writeLoop()

	m.logger.Info("database ready", zap.String("path", config.DatabasePath))
	return m, nil
}

func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			m.run(op)

		case <-m.shutdown:
			// Flush what was queued before Close.
			for {
				select {
				case op := <-m.writeChannel:
					m.run(op)
				default:
					return
				}
			}
		}
	}
}

// run executes op, retrying once after a short delay.
func (m *Manager) run(op writeOperation) {
	err := op.operation(m.db)
	if err != nil {
		m.logger.Warn("database write failed, retrying", zap.Error(err))
		time.Sleep(m.retryDelay)
		if err = op.operation(m.db); err != nil {
			m.logger.Error("database write failed after retry", zap.Error(err))
		}
	}
	if op.result != nil {
		op.result <- err
	}
}

// executeWrite queues a write and waits for its result.
func (m *Manager) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return interfaces.ErrDatabaseClosed
	}

	result := make(chan error, 1)
	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordEvent appends to the audit log without waiting. When the write
// queue is full the event is dropped and logged.
func (m *Manager) RecordEvent(event *types.InterviewEvent) {
	if event == nil {
		return
	}
	e := *event

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}

	op := writeOperation{operation: func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT INTO interview_events (session_code, kind, connection_id, occurred_at) VALUES (?, ?, ?, ?)`,
			e.SessionCode, e.Kind, e.ConnectionID, e.Timestamp.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert interview event: %w", err)
		}
		return nil
	}}

	select {
	case m.writeChannel <- op:
	default:
		m.logger.Warn("audit event dropped, write queue full",
			zap.String("code", e.SessionCode), zap.String("kind", e.Kind))
	}
}

// SessionHistory returns the audit log of one session in insertion order.
func (m *Manager) SessionHistory(ctx context.Context, sessionCode string) ([]*types.InterviewEvent, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, session_code, kind, connection_id, occurred_at
		FROM interview_events
		WHERE session_code = ?
		ORDER BY id ASC
	`, sessionCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query session history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []*types.InterviewEvent{}
	for rows.Next() {
		var e types.InterviewEvent
		if err := rows.Scan(&e.ID, &e.SessionCode, &e.Kind, &e.ConnectionID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

// StoreRecording indexes a saved recording blob.
func (m *Manager) StoreRecording(ctx context.Context, rec *types.Recording) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO recordings (id, session_code, filename, path, size, content_type, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, rec.SessionCode, rec.Filename, rec.Path, rec.Size, rec.ContentType, rec.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert recording: %w", err)
		}
		return nil
	})
}

const recordingColumns = `id, session_code, filename, path, size, content_type, created_at`

// GetRecording returns one indexed recording.
func (m *Manager) GetRecording(ctx context.Context, id string) (*types.Recording, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrRecordingNotFound
		}
		return nil, fmt.Errorf("failed to query recording: %w", err)
	}
	return rec, nil
}

// ListRecordings returns recordings newest first, optionally limited to
// one session code.
func (m *Manager) ListRecordings(ctx context.Context, sessionCode string) ([]*types.Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings`
	var args []interface{}
	if sessionCode != "" {
		query += ` WHERE session_code = ?`
		args = append(args, sessionCode)
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recordings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	recordings := []*types.Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recording row: %w", err)
		}
		recordings = append(recordings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recording rows: %w", err)
	}
	return recordings, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecording(s scanner) (*types.Recording, error) {
	var rec types.Recording
	err := s.Scan(&rec.ID, &rec.SessionCode, &rec.Filename, &rec.Path, &rec.Size, &rec.ContentType, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// HealthCheck validates database connectivity.
func (m *Manager) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return interfaces.ErrDatabaseClosed
	}

	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var n int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close flushes queued writes and closes the database. Safe to call twice.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	m.logger.Info("database closed")
	return nil
}
