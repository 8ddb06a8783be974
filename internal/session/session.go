package session

import (
	"time"

	"interviewhub/pkg/types"
)

// Session is one host's interview round.
//
// Invariants: a connection appears at most once across Queue and
// ActiveCandidate, and Host never appears in either.
type Session struct {
	Code            string
	Host            string
	Queue           []string
	ActiveCandidate string
	CreatedAt       time.Time
}

// Position returns the 1-indexed queue position of connID, or 0 when
// connID is not waiting.
func (s *Session) Position(connID string) int {
	for i, id := range s.Queue {
		if id == connID {
			return i + 1
		}
	}
	return 0
}

// Holds reports whether connID is waiting or being interviewed.
func (s *Session) Holds(connID string) bool {
	return s.ActiveCandidate == connID || s.Position(connID) > 0
}

// Members returns every candidate identity in the session, active first.
func (s *Session) Members() []string {
	members := make([]string, 0, len(s.Queue)+1)
	if s.ActiveCandidate != "" {
		members = append(members, s.ActiveCandidate)
	}
	return append(members, s.Queue...)
}

// RemoveFromQueue splices connID out of the queue and reports whether it was there.
func (s *Session) RemoveFromQueue(connID string) bool {
	for i, id := range s.Queue {
		if id == connID {
			s.Queue = append(s.Queue[:i], s.Queue[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns a deep copy safe to hand to other goroutines.
func (s *Session) Snapshot() types.SessionSnapshot {
	queue := make([]string, len(s.Queue))
	copy(queue, s.Queue)
	return types.SessionSnapshot{
		Code:            s.Code,
		Host:            s.Host,
		Queue:           queue,
		ActiveCandidate: s.ActiveCandidate,
		CreatedAt:       s.CreatedAt,
	}
}
