package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"interviewhub/internal/metrics"
	"interviewhub/pkg/types"
)

const (
	defaultBufferSize   = 100
	defaultWriteTimeout = 5 * time.Second
)

// Connection implements interfaces.Connection over one WebSocket.
// All writes go through a single writer goroutine.
type Connection struct {
	conn         *websocket.Conn
	id           string
	writeCh      chan []byte
	writeTimeout time.Duration

	role        types.Role
	sessionCode string
	mu          sync.RWMutex

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps conn under a fresh random identity and starts its
// writer. bufferSize and writeTimeout fall back to 100 frames and 5s.
func NewConnection(conn *websocket.Conn, bufferSize int, writeTimeout time.Duration) *Connection {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		id:           uuid.NewString(),
		writeCh:      make(chan []byte, bufferSize),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				_ = c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// ID returns the connection identity.
func (c *Connection) ID() string {
	return c.id
}

// Role returns the bound role.
func (c *Connection) Role() types.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// SessionCode returns the bound session code.
func (c *Connection) SessionCode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionCode
}

// Bind records the role and session of the connection.
func (c *Connection) Bind(role types.Role, sessionCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.role = role
	c.sessionCode = sessionCode
}

// Send queues an event frame. It never blocks: when the buffer is full
// the frame is dropped and ErrBufferFull returned.
func (c *Connection) Send(event string, payload interface{}) error {
	env := types.Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return ErrInvalidJSON
		}
		env.Data = data
	}
	return c.enqueue(&env)
}

// SendAck queues the ack frame for request id.
func (c *Connection) SendAck(id uint64, ack *types.Ack) error {
	data, err := json.Marshal(ack)
	if err != nil {
		return ErrInvalidJSON
	}
	return c.enqueue(&types.Envelope{Event: types.EventAck, ID: id, Data: data})
}

func (c *Connection) enqueue(env *types.Envelope) error {
	select {
	case <-c.ctx.Done():
		metrics.DroppedFramesTotal.Inc()
		return ErrConnectionClosed
	default:
	}

	frame, err := json.Marshal(env)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- frame:
		return nil
	default:
		metrics.DroppedFramesTotal.Inc()
		return ErrBufferFull
	}
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close stops the writer and closes the socket. Safe to call repeatedly.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}
