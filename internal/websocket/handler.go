package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"interviewhub/pkg/interfaces"
	"interviewhub/pkg/types"
)

// Dispatcher receives decoded frames and closes in per-connection order.
type Dispatcher interface {
	Dispatch(conn interfaces.Connection, env *types.Envelope) error
	Disconnected(conn interfaces.Connection) error
}

// Options tunes the transport.
type Options struct {
	PingInterval    time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	BufferSize      int
	MaxMessageBytes int64
	AllowedOrigins  []string
}

// DefaultOptions returns the heartbeat and buffer settings used when none
// are configured.
func DefaultOptions() Options {
	return Options{
		PingInterval:    30 * time.Second,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    defaultWriteTimeout,
		BufferSize:      defaultBufferSize,
		MaxMessageBytes: 64 * 1024,
	}
}

// Handler upgrades HTTP requests and pumps frames into a Dispatcher.
type Handler struct {
	registry   *Registry
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
	opts       Options
	logger     *zap.Logger
}

// NewHandler creates a WebSocket handler. Zero option fields take their
// DefaultOptions value.
func NewHandler(registry *Registry, dispatcher Dispatcher, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultOptions()
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaults.PingInterval
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaults.ReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaults.BufferSize
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = defaults.MaxMessageBytes
	}

	h := &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger.With(zap.String("component", "websocket")),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// checkOrigin allows every origin unless an allow list is configured.
func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request, registers the connection and tells the
// client its identity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := NewConnection(ws, h.opts.BufferSize, h.opts.WriteTimeout)
	if err := h.registry.Register(conn); err != nil {
		h.logger.Error("failed to register connection", zap.Error(err))
		_ = conn.Close()
		return
	}

	if err := conn.Send(types.EventConnected, types.Connected{ID: conn.ID()}); err != nil {
		h.logger.Warn("failed to greet connection", zap.String("connection", conn.ID()), zap.Error(err))
	}
	h.logger.Debug("connection opened",
		zap.String("connection", conn.ID()), zap.String("remote", r.RemoteAddr))

	go h.handleConnection(conn)
}

// handleConnection runs the heartbeat and the read pump until the socket
// fails, then hands the close to the dispatcher.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		h.registry.Unregister(conn)
		if err := h.dispatcher.Disconnected(conn); err != nil {
			h.logger.Warn("disconnect not dispatched", zap.String("connection", conn.ID()), zap.Error(err))
		}
		_ = conn.Close()
		h.logger.Debug("connection closed", zap.String("connection", conn.ID()))
	}()

	ws := conn.conn
	ws.SetReadLimit(h.opts.MaxMessageBytes)
	if err := ws.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout)); err != nil {
		return
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	})

	go h.pingLoop(conn)

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Info("websocket read error", zap.String("connection", conn.ID()), zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			h.logger.Debug("malformed frame dropped", zap.String("connection", conn.ID()))
			continue
		}

		if err := h.dispatcher.Dispatch(conn, &env); err != nil {
			h.logger.Warn("frame not dispatched", zap.String("connection", conn.ID()), zap.Error(err))
			return
		}
	}
}

func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-conn.Done():
			return
		}
	}
}
