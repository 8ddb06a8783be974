package queue

import (
	"time"

	"go.uber.org/zap"

	"interviewhub/internal/metrics"
	"interviewhub/internal/session"
	"interviewhub/pkg/interfaces"
	"interviewhub/pkg/types"
)

// Promotion reports what PromoteNext did. Either field may be empty.
type Promotion struct {
	Evicted  string
	Promoted string
}

// Removal reports which slot a disconnecting candidate occupied.
type Removal int

const (
	RemovedNone Removal = iota
	RemovedFromQueue
	RemovedActive
)

func (r Removal) String() string {
	switch r {
	case RemovedFromQueue:
		return "queue"
	case RemovedActive:
		return "active"
	default:
		return "none"
	}
}

// Manager implements FIFO admission and promotion over the session store.
// Every operation mutates the store in one Update call and only then sends
// notifications, so recipients never see a half-applied change.
type Manager struct {
	store    *session.Store
	notifier interfaces.Notifier
	recorder interfaces.EventRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager creates a queue manager. recorder may be nil.
func NewManager(store *session.Store, notifier interfaces.Notifier, recorder interfaces.EventRecorder, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		notifier: notifier,
		recorder: recorder,
		logger:   logger.With(zap.String("component", "queue")),
		now:      time.Now,
	}
}

// Enqueue appends connID to the tail of the session queue and returns its
// 1-indexed position. Joining again while queued or active changes nothing
// and reports the current position (0 while being interviewed).
func (m *Manager) Enqueue(code, connID string) (int, error) {
	var (
		position int
		changed  bool
		snap     types.SessionSnapshot
	)

	err := m.store.Update(code, func(s *session.Session) error {
		if s.Host == connID {
			return ErrHostCannotQueue
		}
		if s.ActiveCandidate == connID {
			return nil
		}
		if p := s.Position(connID); p > 0 {
			position = p
			return nil
		}

		s.Queue = append(s.Queue, connID)
		position = len(s.Queue)
		changed = true
		snap = s.Snapshot()
		return nil
	})
	if err != nil {
		return 0, err
	}

	if changed {
		m.logger.Info("candidate queued",
			zap.String("code", code), zap.String("candidate", connID), zap.Int("position", position))
		m.record(code, types.AuditCandidateJoined, connID)
		m.broadcast(snap)
	}
	return position, nil
}

// PromoteNext ends the current interview, if any, and moves the queue head
// into the active slot. Eviction and promotion happen in one store update.
func (m *Manager) PromoteNext(code string) (Promotion, error) {
	var (
		result Promotion
		snap   types.SessionSnapshot
	)

	err := m.store.Update(code, func(s *session.Session) error {
		result.Evicted = s.ActiveCandidate
		s.ActiveCandidate = ""

		if len(s.Queue) > 0 {
			result.Promoted = s.Queue[0]
			s.Queue = s.Queue[1:]
			s.ActiveCandidate = result.Promoted
		}
		snap = s.Snapshot()
		return nil
	})
	if err != nil {
		return Promotion{}, err
	}

	if result.Evicted != "" {
		m.notifyEnded(snap.Host, code, result.Evicted)
	}

	if result.Promoted != "" {
		m.notifier.Notify(result.Promoted, types.EventInterviewStart, types.InterviewStart{HostID: snap.Host})
		m.notifier.Notify(snap.Host, types.EventCandidateSelected, types.CandidateSelected{Candidate: result.Promoted})
		metrics.InterviewsStartedTotal.Inc()
		m.record(code, types.AuditInterviewStarted, result.Promoted)
		m.logger.Info("interview started", zap.String("code", code), zap.String("candidate", result.Promoted))
	}

	m.broadcast(snap)
	return result, nil
}

// EndInterview clears the active slot and returns who was evicted. The
// queue is left alone: nobody is promoted automatically.
func (m *Manager) EndInterview(code string) (string, error) {
	var (
		evicted string
		snap    types.SessionSnapshot
	)

	err := m.store.Update(code, func(s *session.Session) error {
		evicted = s.ActiveCandidate
		s.ActiveCandidate = ""
		snap = s.Snapshot()
		return nil
	})
	if err != nil {
		return "", err
	}

	if evicted != "" {
		m.notifyEnded(snap.Host, code, evicted)
	}
	m.broadcast(snap)
	return evicted, nil
}

// RemoveOnDisconnect drops a vanished candidate from whichever slot it held.
// The candidate itself is not notified; its connection is already gone.
func (m *Manager) RemoveOnDisconnect(code, connID string) (Removal, error) {
	var (
		removed Removal
		snap    types.SessionSnapshot
	)

	err := m.store.Update(code, func(s *session.Session) error {
		switch {
		case s.RemoveFromQueue(connID):
			removed = RemovedFromQueue
		case s.ActiveCandidate == connID:
			s.ActiveCandidate = ""
			removed = RemovedActive
		}
		snap = s.Snapshot()
		return nil
	})
	if err != nil {
		return RemovedNone, err
	}

	switch removed {
	case RemovedFromQueue:
		m.record(code, types.AuditCandidateLeftQueue, connID)
		m.broadcast(snap)
	case RemovedActive:
		m.record(code, types.AuditCandidateDisconnected, connID)
		m.notifier.Notify(snap.Host, types.EventCandidateDisconnected, nil)
	}

	if removed != RemovedNone {
		m.logger.Info("candidate disconnected",
			zap.String("code", code), zap.String("candidate", connID), zap.Stringer("slot", removed))
	}
	return removed, nil
}

// Broadcast resends the current queue of a session to its host and waiters.
func (m *Manager) Broadcast(code string) error {
	sess, err := m.store.Get(code)
	if err != nil {
		return err
	}
	m.broadcast(sess.Snapshot())
	return nil
}

// broadcast sends the full queue to the host and the full queue plus own
// position to every waiter.
func (m *Manager) broadcast(snap types.SessionSnapshot) {
	m.notifier.Notify(snap.Host, types.EventQueueUpdate, types.QueueUpdate{Queue: snap.Queue})
	for i, id := range snap.Queue {
		m.notifier.Notify(id, types.EventQueueUpdate, types.QueueUpdate{Queue: snap.Queue, You: i + 1})
	}
}

func (m *Manager) notifyEnded(host, code, candidate string) {
	m.notifier.Notify(candidate, types.EventInterviewEnded, nil)
	m.notifier.Notify(host, types.EventInterviewEndedHost, nil)
	m.record(code, types.AuditInterviewEnded, candidate)
	m.logger.Info("interview ended", zap.String("code", code), zap.String("candidate", candidate))
}

func (m *Manager) record(code, kind, connID string) {
	if m.recorder == nil {
		return
	}
	m.recorder.RecordEvent(&types.InterviewEvent{
		SessionCode:  code,
		Kind:         kind,
		ConnectionID: connID,
		Timestamp:    m.now(),
	})
}
