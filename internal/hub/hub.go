package hub

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"interviewhub/internal/metrics"
	"interviewhub/pkg/interfaces"
	"interviewhub/pkg/types"
)

const (
	eventBufferSize        = 1024
	defaultCleanupInterval = time.Minute
)

// Processor handles connection events. The hub never calls it from more
// than one goroutine at a time.
type Processor interface {
	Handle(conn interfaces.Connection, env *types.Envelope)
	Disconnect(conn interfaces.Connection)
	Cleanup()
	Stats() map[string]int
}

type eventKind int

const (
	eventMessage eventKind = iota
	eventDisconnect
)

type event struct {
	kind eventKind
	conn interfaces.Connection
	env  *types.Envelope
}

// Hub is the single event-processing stream. Messages and disconnects of
// all connections go through one channel, so each is handled to completion
// before the next and a connection's disconnect is never processed ahead
// of its earlier messages.
type Hub struct {
	events   chan event
	shutdown chan struct{}
	done     chan struct{}

	processor       Processor
	cleanupInterval time.Duration
	logger          *zap.Logger

	running bool
	mu      sync.RWMutex
}

// NewHub creates a hub feeding processor. cleanupInterval <= 0 uses one minute.
func NewHub(processor Processor, cleanupInterval time.Duration, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}
	return &Hub{
		events:          make(chan event, eventBufferSize),
		processor:       processor,
		cleanupInterval: cleanupInterval,
		logger:          logger.With(zap.String("component", "hub")),
	}
}

// Start launches the processing goroutine.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.shutdown = make(chan struct{})
	h.done = make(chan struct{})

	h.logger.Info("starting event hub")
	go h.run(ctx, h.shutdown, h.done)
	return nil
}

// Stop ends processing after the event in flight and waits for the loop
// to exit. Queued events are discarded.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	close(h.shutdown)
	done := h.done
	h.mu.Unlock()

	<-done
	h.logger.Info("event hub stopped")
	return nil
}

// IsRunning reports whether the hub accepts events.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Dispatch queues an inbound frame of conn. It blocks while the queue is
// full, which throttles only the reading connection.
func (h *Hub) Dispatch(conn interfaces.Connection, env *types.Envelope) error {
	return h.enqueue(event{kind: eventMessage, conn: conn, env: env})
}

// Disconnected queues the close of conn.
func (h *Hub) Disconnected(conn interfaces.Connection) error {
	return h.enqueue(event{kind: eventDisconnect, conn: conn})
}

func (h *Hub) enqueue(ev event) error {
	if ev.conn == nil {
		return ErrNilConnection
	}

	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	shutdown := h.shutdown
	h.mu.RUnlock()

	select {
	case h.events <- ev:
		return nil
	case <-shutdown:
		return ErrHubNotRunning
	}
}

func (h *Hub) run(ctx context.Context, shutdown <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-h.events:
			h.process(ev)

		case <-ticker.C:
			h.processor.Cleanup()

		case <-shutdown:
			h.logger.Debug("hub shutdown requested")
			return

		case <-ctx.Done():
			h.logger.Debug("hub context cancelled")
			h.mu.Lock()
			if h.running {
				h.running = false
				close(h.shutdown)
			}
			h.mu.Unlock()
			return
		}
	}
}

// process runs one event. A panicking handler is logged and does not take
// the hub down with it.
func (h *Hub) process(ev event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("event handler panicked",
				zap.String("connection", ev.conn.ID()),
				zap.Any("panic", r))
		}
	}()

	switch ev.kind {
	case eventMessage:
		h.processor.Handle(ev.conn, ev.env)
	case eventDisconnect:
		h.processor.Disconnect(ev.conn)
	}
	metrics.SetSessionStats(h.processor.Stats())
}
