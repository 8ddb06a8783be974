package interfaces

import "interviewhub/pkg/types"

// Connection is one live client transport as seen by the lifecycle manager.
type Connection interface {
	// ID returns the connection identity peers address relay messages to.
	ID() string

	// Role returns the role bound by the first successful create or join.
	Role() types.Role

	// SessionCode returns the session this connection is bound to, or "".
	SessionCode() string

	// Bind records the role and session of the connection.
	Bind(role types.Role, sessionCode string)

	// Send queues one event frame without waiting for delivery.
	Send(event string, payload interface{}) error

	// SendAck queues the ack for a request ID.
	SendAck(id uint64, ack *types.Ack) error

	// Close terminates the connection.
	Close() error
}
