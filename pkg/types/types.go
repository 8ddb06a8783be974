package types

import (
	"encoding/json"
	"time"
)

// Client -> server request events.
const (
	EventCreateSession   = "create_session"
	EventJoinSession     = "join_session"
	EventStartNext       = "start_next"
	EventEndInterview    = "end_interview"
	EventEndInterviewNow = "end_interview_now"
)

// Relayed events. The server forwards these between two connections
// without looking inside the payload.
const (
	EventWebRTCOffer        = "webrtc_offer"
	EventWebRTCAnswer       = "webrtc_answer"
	EventWebRTCICE          = "webrtc_ice"
	EventHostReady          = "host_ready"
	EventScreenShareStarted = "screen_share_started"
	EventScreenShareStopped = "screen_share_stopped"
)

// Server -> client events.
const (
	EventAck                   = "ack"
	EventConnected             = "connected"
	EventQueueUpdate           = "queue_update"
	EventInterviewStart        = "interview_start"
	EventCandidateSelected     = "candidate_selected"
	EventInterviewEnded        = "interview_ended"
	EventInterviewEndedHost    = "interview_ended_host"
	EventSessionDeleted        = "session_deleted"
	EventCandidateDisconnected = "candidate_disconnected"
)

// Role is what a connection became after its first successful request.
type Role string

const (
	RoleUnbound   Role = ""
	RoleHost      Role = "host"
	RoleCandidate Role = "candidate"
)

// Envelope is the JSON frame carried by every WebSocket text message.
// A non-zero ID on a request asks for exactly one ack carrying the same ID.
type Envelope struct {
	Event string          `json:"event"`
	ID    uint64          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Ack answers a request that carried an ID.
type Ack struct {
	OK       bool   `json:"ok"`
	Code     string `json:"code,omitempty"`
	Position int    `json:"position,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SessionRequest is the payload of join_session, start_next and end_interview.
type SessionRequest struct {
	Code string `json:"code"`
}

// RelayRequest is what a sender submits for any relayed event.
// SDP and Candidate are opaque to the server.
type RelayRequest struct {
	To        string          `json:"to"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// RelayDelivery is what the recipient of a relayed event receives.
type RelayDelivery struct {
	From      string          `json:"from"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Connected tells a fresh connection its own identity.
type Connected struct {
	ID string `json:"id"`
}

// QueueUpdate is broadcast after every queue mutation. You is the
// recipient's 1-indexed position and is omitted for the host.
type QueueUpdate struct {
	Queue []string `json:"queue"`
	You   int      `json:"you,omitempty"`
}

// InterviewStart is sent to a candidate when it is promoted.
type InterviewStart struct {
	HostID string `json:"hostId"`
}

// CandidateSelected is sent to the host when a candidate is promoted.
type CandidateSelected struct {
	Candidate string `json:"candidate"`
}

// SessionSnapshot is a read-only copy of a live session.
type SessionSnapshot struct {
	Code            string    `json:"code"`
	Host            string    `json:"host"`
	Queue           []string  `json:"queue"`
	ActiveCandidate string    `json:"active_candidate,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Interview event kinds written to the audit log.
const (
	AuditSessionCreated        = "session_created"
	AuditCandidateJoined       = "candidate_joined"
	AuditInterviewStarted      = "interview_started"
	AuditInterviewEnded        = "interview_ended"
	AuditCandidateLeftQueue    = "candidate_left_queue"
	AuditCandidateDisconnected = "candidate_disconnected"
	AuditSessionDeleted        = "session_deleted"
)

// InterviewEvent is one row of the interview audit log.
type InterviewEvent struct {
	ID           int64     `json:"id" db:"id"`
	SessionCode  string    `json:"session_code" db:"session_code"`
	Kind         string    `json:"kind" db:"kind"`
	ConnectionID string    `json:"connection_id,omitempty" db:"connection_id"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
}

// Recording describes a saved recording blob.
type Recording struct {
	ID          string    `json:"id" db:"id"`
	SessionCode string    `json:"session_code,omitempty" db:"session_code"`
	Filename    string    `json:"filename" db:"filename"`
	Path        string    `json:"-" db:"path"`
	Size        int64     `json:"size" db:"size"`
	ContentType string    `json:"content_type" db:"content_type"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
