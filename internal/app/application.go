package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"interviewhub/internal/api"
	"interviewhub/internal/config"
	"interviewhub/internal/database"
	"interviewhub/internal/hub"
	"interviewhub/internal/lifecycle"
	"interviewhub/internal/queue"
	"interviewhub/internal/recording"
	"interviewhub/internal/relay"
	"interviewhub/internal/session"
	"interviewhub/internal/websocket"
	"interviewhub/pkg/interfaces"
)

// Application coordinates all system components.
// Initialization order: Database → Sessions → Registry → Queue/Relay →
// Lifecycle → Hub → Transport → Recordings → API → HTTP
type Application struct {
	config     *config.Config
	logger     *zap.Logger
	dbManager  *database.Manager
	store      *session.Store
	registry   *websocket.Registry
	lifecycle  *lifecycle.Manager
	eventHub   *hub.Hub
	apiServer  *api.Server
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	serveErr chan error
}

// NewApplication wires every component. cfg defaults when nil.
func NewApplication(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	policy, err := lifecycle.ParsePolicy(cfg.Queue.RolePolicy)
	if err != nil {
		return nil, err
	}

	app := &Application{
		config: cfg,
		logger: logger.With(zap.String("component", "app")),
	}

	// STEP 1: Database (optional). Migrations and schema validation run inside NewManager.
	var (
		recorder interfaces.EventRecorder
		dbDeps   interfaces.DatabaseManager
		recDeps  api.Recordings
	)
	if cfg.Database.Enabled() {
		dbManager, err := database.NewManager(cfg.Database.Store(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database manager: %w", err)
		}
		app.dbManager = dbManager
		recorder = dbManager
		dbDeps = dbManager

		// STEP 1.5: Recording blobs are indexed in the database.
		recordings, err := recording.NewStore(cfg.Recordings.Dir, cfg.Recordings.MaxBytes, dbManager, logger)
		if err != nil {
			dbManager.Close()
			return nil, fmt.Errorf("failed to initialize recording store: %w", err)
		}
		recDeps = recordings
	} else {
		app.logger.Warn("database disabled: event history and recordings are unavailable")
	}

	// STEP 2: Session store
	app.store = session.NewStore(logger)

	// STEP 3: Connection registry, which is also the notifier for every component
	app.registry = websocket.NewRegistry()

	// STEP 4: Queue manager and signaling relay
	queueManager := queue.NewManager(app.store, app.registry, recorder, logger)
	signalRelay := relay.New(app.registry, cfg.Relay.MaxPerMinute, logger)

	// STEP 5: Lifecycle manager owns the request contract
	app.lifecycle = lifecycle.NewManager(app.store, queueManager, signalRelay, app.registry, recorder, policy, logger)

	// STEP 6: Hub serializes every event through the lifecycle manager
	app.eventHub = hub.NewHub(app.lifecycle, cfg.Relay.CleanupInterval, logger)

	// STEP 7: WebSocket transport
	wsHandler := websocket.NewHandler(app.registry, app.eventHub, websocket.Options{
		PingInterval:    cfg.WebSocket.PingInterval,
		ReadTimeout:     cfg.WebSocket.ReadTimeout,
		WriteTimeout:    cfg.WebSocket.WriteTimeout,
		BufferSize:      cfg.WebSocket.BufferSize,
		MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
	}, logger)

	// STEP 8: HTTP surface
	app.apiServer = api.NewServer(api.Dependencies{
		Sessions:       app.store,
		Connections:    app.registry,
		Database:       dbDeps,
		Recordings:     recDeps,
		ICEServers:     cfg.ICE.Servers,
		WebSocket:      wsHandler,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, logger)

	app.httpServer = &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      app.apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return app, nil
}

// Start runs the hub, then binds the listener and serves in the background.
// Listen errors are returned synchronously.
func (app *Application) Start(ctx context.Context) error {
	// STEP 1: Start the hub before accepting connections
	if err := app.eventHub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	// STEP 2: Bind and serve
	ln, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		app.eventHub.Stop()
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}

	app.mu.Lock()
	app.listener = ln
	app.serveErr = make(chan error, 1)
	app.mu.Unlock()

	go func() {
		err := app.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("HTTP server error", zap.Error(err))
			app.serveErr <- err
		}
		close(app.serveErr)
	}()

	app.logger.Info("interviewhub started",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("database", app.dbManager != nil),
		zap.String("role_policy", app.config.Queue.RolePolicy))
	return nil
}

// Errors reports a serve failure after Start. It is closed on shutdown.
func (app *Application) Errors() <-chan error {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.serveErr
}

// Stop shuts down in reverse dependency order: HTTP → Connections → Hub → Database.
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("shutting down")
	var errs []error

	// STEP 1: Stop accepting requests
	if err := app.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	// STEP 2: Close hijacked WebSocket connections; their disconnects drain through the hub
	app.registry.CloseAll()

	// STEP 3: Stop event processing
	if err := app.eventHub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		errs = append(errs, fmt.Errorf("hub stop: %w", err))
	}

	// STEP 4: Flush and close the database
	if app.dbManager != nil {
		if err := app.dbManager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}

	app.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

// Addr returns the bound address once started, else the configured one.
func (app *Application) Addr() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}

// Handler exposes the full HTTP surface.
func (app *Application) Handler() http.Handler {
	return app.apiServer
}
