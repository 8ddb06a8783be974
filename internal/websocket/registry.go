package websocket

import (
	"sync"

	"interviewhub/internal/metrics"
	"interviewhub/pkg/types"
)

// Registry tracks live connections by identity. It is the Notifier used
// by the queue manager and the relay.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
	}
}

// Register adds conn under its identity.
func (r *Registry) Register(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	r.connections[conn.ID()] = conn
	count := len(r.connections)
	r.mu.Unlock()

	metrics.ActiveConnections.Set(float64(count))
	return nil
}

// Unregister removes conn. It is a no-op when a different instance holds
// the same identity or conn is already gone.
func (r *Registry) Unregister(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	registered, exists := r.connections[conn.ID()]
	if !exists || registered != conn {
		r.mu.Unlock()
		return
	}
	delete(r.connections, conn.ID())
	count := len(r.connections)
	r.mu.Unlock()

	metrics.ActiveConnections.Set(float64(count))
}

// Get returns the live connection with the given identity.
func (r *Registry) Get(connID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[connID]
	return conn, ok
}

// Notify sends one event frame to connID. It reports false when the
// connection is not live or its buffer is full.
func (r *Registry) Notify(connID, event string, payload interface{}) bool {
	conn, ok := r.Get(connID)
	if !ok {
		return false
	}
	return conn.Send(event, payload) == nil
}

// SessionConnections counts live connections bound to a session code.
func (r *Registry) SessionConnections(code string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, conn := range r.connections {
		if conn.SessionCode() == code {
			n++
		}
	}
	return n
}

// Stats returns registry statistics for monitoring.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hosts, candidates := 0, 0
	for _, conn := range r.connections {
		switch conn.Role() {
		case types.RoleHost:
			hosts++
		case types.RoleCandidate:
			candidates++
		}
	}
	return map[string]int{
		"total_connections": len(r.connections),
		"hosts":             hosts,
		"candidates":        candidates,
	}
}

// CloseAll closes every live connection. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}
