package lifecycle

import (
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"interviewhub/internal/metrics"
	"interviewhub/internal/queue"
	"interviewhub/internal/relay"
	"interviewhub/internal/session"
	"interviewhub/pkg/interfaces"
	"interviewhub/pkg/types"
)

// ackErrors are the errors whose message is sent to clients verbatim.
var ackErrors = []error{
	session.ErrSessionNotFound,
	session.ErrHostCannotQueue,
	ErrNotSessionHost,
	ErrAlreadyBound,
	types.ErrInvalidSessionCode,
	types.ErrInvalidEvent,
	types.ErrInvalidPayload,
}

// Manager binds connections to roles, dispatches their requests and
// repairs session state when they go away. It is not safe for concurrent
// use; the hub calls it from its single event goroutine.
type Manager struct {
	store    *session.Store
	queue    *queue.Manager
	relay    *relay.Relay
	notifier interfaces.Notifier
	recorder interfaces.EventRecorder
	policy   Policy
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager creates a lifecycle manager. recorder may be nil.
func NewManager(
	store *session.Store,
	queueManager *queue.Manager,
	signalRelay *relay.Relay,
	notifier interfaces.Notifier,
	recorder interfaces.EventRecorder,
	policy Policy,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == "" {
		policy = PolicyEnforceHost
	}
	return &Manager{
		store:    store,
		queue:    queueManager,
		relay:    signalRelay,
		notifier: notifier,
		recorder: recorder,
		policy:   policy,
		logger:   logger.With(zap.String("component", "lifecycle")),
		now:      time.Now,
	}
}

// Handle processes one inbound frame to completion. Requests carrying an
// ID get exactly one ack; failures of requests without one are logged.
func (m *Manager) Handle(conn interfaces.Connection, env *types.Envelope) {
	ack, err := m.dispatch(conn, env)
	if err != nil {
		ack = types.Ack{OK: false, Error: ackMessage(err)}
		m.logger.Debug("request failed",
			zap.String("connection", conn.ID()),
			zap.String("event", env.Event),
			zap.Error(err))
	} else {
		ack.OK = true
	}

	if env.ID == 0 {
		return
	}
	if sendErr := conn.SendAck(env.ID, &ack); sendErr != nil {
		m.logger.Debug("ack not sent", zap.String("connection", conn.ID()), zap.Error(sendErr))
	}
}

func (m *Manager) dispatch(conn interfaces.Connection, env *types.Envelope) (types.Ack, error) {
	if types.IsRelayEvent(env.Event) {
		return types.Ack{}, m.forward(conn, env)
	}

	switch env.Event {
	case types.EventCreateSession:
		return m.createSession(conn)
	case types.EventJoinSession:
		return m.joinSession(conn, env.Data)
	case types.EventStartNext:
		return types.Ack{}, m.startNext(conn, env.Data)
	case types.EventEndInterview:
		return types.Ack{}, m.endInterview(conn, env.Data)
	case types.EventEndInterviewNow:
		return types.Ack{}, m.endInterviewNow(conn)
	default:
		return types.Ack{}, types.ErrInvalidEvent
	}
}

func (m *Manager) createSession(conn interfaces.Connection) (types.Ack, error) {
	if conn.Role() != types.RoleUnbound {
		return types.Ack{}, ErrAlreadyBound
	}

	code, err := m.store.Create(conn.ID())
	if err != nil {
		return types.Ack{}, err
	}
	conn.Bind(types.RoleHost, code)

	metrics.SessionsCreatedTotal.Inc()
	m.record(code, types.AuditSessionCreated, conn.ID())
	m.logger.Info("host bound", zap.String("connection", conn.ID()), zap.String("code", code))
	return types.Ack{Code: code}, nil
}

func (m *Manager) joinSession(conn interfaces.Connection, data json.RawMessage) (types.Ack, error) {
	code, err := decodeCode(data)
	if err != nil {
		return types.Ack{}, err
	}

	switch conn.Role() {
	case types.RoleHost:
		if conn.SessionCode() == code {
			return types.Ack{}, session.ErrHostCannotQueue
		}
		return types.Ack{}, ErrAlreadyBound
	case types.RoleCandidate:
		if bound := conn.SessionCode(); bound != code && m.stillHeld(bound, conn.ID()) {
			return types.Ack{}, ErrAlreadyBound
		}
	}

	position, err := m.queue.Enqueue(code, conn.ID())
	if err != nil {
		return types.Ack{}, err
	}
	conn.Bind(types.RoleCandidate, code)
	return types.Ack{Position: position}, nil
}

func (m *Manager) startNext(conn interfaces.Connection, data json.RawMessage) error {
	code, err := decodeCode(data)
	if err != nil {
		return err
	}
	if err := m.authorize(conn, code); err != nil {
		return err
	}
	_, err = m.queue.PromoteNext(code)
	return err
}

func (m *Manager) endInterview(conn interfaces.Connection, data json.RawMessage) error {
	code, err := decodeCode(data)
	if err != nil {
		return err
	}
	if err := m.authorize(conn, code); err != nil {
		return err
	}
	_, err = m.queue.EndInterview(code)
	return err
}

// endInterviewNow ends the interview of whichever session conn hosts.
func (m *Manager) endInterviewNow(conn interfaces.Connection) error {
	code, ok := m.store.FindByHost(conn.ID())
	if !ok {
		return session.ErrSessionNotFound
	}
	_, err := m.queue.EndInterview(code)
	return err
}

func (m *Manager) forward(conn interfaces.Connection, env *types.Envelope) error {
	var req types.RelayRequest
	if err := decode(env.Data, &req); err != nil {
		return err
	}
	err := m.relay.Forward(env.Event, conn.ID(), &req)
	if errors.Is(err, types.ErrMissingRecipient) {
		return types.ErrInvalidPayload
	}
	// Drops are never reported to the sender.
	return nil
}

// Disconnect repairs session state after conn has closed.
func (m *Manager) Disconnect(conn interfaces.Connection) {
	m.relay.Disconnected(conn.ID())

	code := conn.SessionCode()
	switch conn.Role() {
	case types.RoleHost:
		sess, err := m.store.Delete(code)
		if err != nil {
			return
		}
		for _, member := range sess.Members() {
			m.notifier.Notify(member, types.EventSessionDeleted, nil)
		}
		m.record(code, types.AuditSessionDeleted, conn.ID())
		m.logger.Info("host left, session deleted",
			zap.String("connection", conn.ID()),
			zap.String("code", code),
			zap.Int("notified", len(sess.Members())))

	case types.RoleCandidate:
		if _, err := m.queue.RemoveOnDisconnect(code, conn.ID()); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
			m.logger.Warn("candidate cleanup failed", zap.String("connection", conn.ID()), zap.Error(err))
		}
	}
}

// authorize applies the role policy to queue-driving requests.
func (m *Manager) authorize(conn interfaces.Connection, code string) error {
	sess, err := m.store.Get(code)
	if err != nil {
		return err
	}
	if m.policy == PolicyEnforceHost && sess.Host != conn.ID() {
		return ErrNotSessionHost
	}
	return nil
}

func (m *Manager) stillHeld(code, connID string) bool {
	sess, err := m.store.Get(code)
	if err != nil {
		return false
	}
	return sess.Holds(connID)
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

func decodeCode(data json.RawMessage) (string, error) {
	var req types.SessionRequest
	if err := decode(data, &req); err != nil {
		return "", err
	}
	return types.NormalizeSessionCode(req.Code)
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return types.ErrInvalidPayload
	}
	return nil
}

func ackMessage(err error) string {
	for _, known := range ackErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal error"
}

// Cleanup prunes idle per-connection relay state.
func (m *Manager) Cleanup() {
	m.relay.Cleanup()
}

// Stats returns the session store counters.
func (m *Manager) Stats() map[string]int {
	return m.store.Stats()
}
