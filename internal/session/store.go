package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// maxCodeAttempts bounds collision retries. With 32^6 codes it is only
// reached if the generator is broken.
const maxCodeAttempts = 32

// Store holds every live session keyed by code. Each exported method is one
// atomic step: no caller can observe a half-updated queue.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	generate CodeGenerator
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithCodeGenerator replaces the random code generator.
func WithCodeGenerator(gen CodeGenerator) Option {
	return func(s *Store) {
		s.generate = gen
	}
}

// WithClock replaces time.Now for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty session store.
func NewStore(logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		sessions: make(map[string]*Session),
		generate: RandomCode,
		logger:   logger.With(zap.String("component", "session_store")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create generates an unused code, stores an empty session hosted by
// hostID and returns the code.
func (s *Store) Create(hostID string) (string, error) {
	if hostID == "" {
		return "", ErrEmptyHost
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			return "", fmt.Errorf("generate session code: %w", err)
		}
		if _, taken := s.sessions[code]; taken {
			continue
		}

		s.sessions[code] = &Session{
			Code:      code,
			Host:      hostID,
			Queue:     []string{},
			CreatedAt: s.now(),
		}
		s.logger.Info("session created", zap.String("code", code), zap.String("host", hostID))
		return code, nil
	}

	return "", ErrCodeSpaceExhausted
}

// Get returns a copy of the session stored under code.
func (s *Store) Get(code string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[code]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return clone(sess), nil
}

// Exists reports whether code names a live session.
func (s *Store) Exists(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[code]
	return ok
}

// Update runs fn on the live session under the write lock. fn may mutate
// the queue and active slot; if it returns an error the error is passed
// through and fn is responsible for not having mutated anything.
func (s *Store) Update(code string, fn func(*Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[code]
	if !ok {
		return ErrSessionNotFound
	}
	return fn(sess)
}

// Delete removes the session and returns its final state.
func (s *Store) Delete(code string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[code]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(s.sessions, code)
	s.logger.Info("session deleted", zap.String("code", code), zap.Int("evicted", len(sess.Members())))
	return sess, nil
}

// FindByHost scans for the session hosted by hostID.
func (s *Store) FindByHost(hostID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for code, sess := range s.sessions {
		if sess.Host == hostID {
			return code, true
		}
	}
	return "", false
}

// List returns copies of every live session ordered by creation time.
func (s *Store) List() []*Session {
	s.mu.RLock()
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, clone(sess))
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].Code < list[j].Code
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// Stats returns counts for health reporting and metrics.
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	queued, active := 0, 0
	for _, sess := range s.sessions {
		queued += len(sess.Queue)
		if sess.ActiveCandidate != "" {
			active++
		}
	}
	return map[string]int{
		"active_sessions":   len(s.sessions),
		"queued_candidates": queued,
		"active_interviews": active,
	}
}

func clone(sess *Session) *Session {
	queue := make([]string, len(sess.Queue))
	copy(queue, sess.Queue)
	return &Session{
		Code:            sess.Code,
		Host:            sess.Host,
		Queue:           queue,
		ActiveCandidate: sess.ActiveCandidate,
		CreatedAt:       sess.CreatedAt,
	}
}
