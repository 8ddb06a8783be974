package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"interviewhub/internal/recording"
	"interviewhub/internal/session"
	"interviewhub/pkg/interfaces"
	"interviewhub/pkg/types"
)

// multipartOverhead is the allowance for form boundaries and fields on top
// of the recording size limit.
const multipartOverhead = 1 << 20

// Sessions is the read side of the session store.
type Sessions interface {
	Get(code string) (*session.Session, error)
	List() []*session.Session
	Stats() map[string]int
}

// Connections exposes live transport counts.
type Connections interface {
	SessionConnections(code string) int
	Stats() map[string]int
}

// Recordings stores and serves uploaded recording blobs.
type Recordings interface {
	Save(ctx context.Context, sessionCode, filename, contentType string, r io.Reader) (*types.Recording, error)
	Open(ctx context.Context, id string) (*types.Recording, *os.File, error)
	List(ctx context.Context, sessionCode string) ([]*types.Recording, error)
	MaxBytes() int64
}

// Dependencies are the components the HTTP surface reads from. Database and
// Recordings are nil when persistence is disabled.
type Dependencies struct {
	Sessions       Sessions
	Connections    Connections
	Database       interfaces.DatabaseManager
	Recordings     Recordings
	ICEServers     []webrtc.ICEServer
	WebSocket      http.Handler
	AllowedOrigins []string
}

// Server is the HTTP surface: inspection, history, ICE config, recordings
// and the WebSocket endpoint. It holds no business logic.
type Server struct {
	deps   Dependencies
	router chi.Router
	logger *zap.Logger
}

func NewServer(deps Dependencies, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		deps:   deps,
		router: chi.NewRouter(),
		logger: logger.With(zap.String("component", "api")),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	origins := s.deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := s.router
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.With(jsonContent).Get("/health", s.healthCheck)
	r.Handle("/metrics", promhttp.Handler())
	if s.deps.WebSocket != nil {
		r.Handle("/ws", s.deps.WebSocket)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContent)
		r.Get("/ice-servers", s.iceServers)
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.listSessions)
			r.Get("/{code}", s.getSession)
			r.Get("/{code}/events", s.sessionEvents)
		})
		r.Route("/recordings", func(r chi.Router) {
			r.Post("/", s.uploadRecording)
			r.Get("/", s.listRecordings)
			r.Get("/{id}", s.downloadRecording)
		})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type SessionSummary struct {
	types.SessionSnapshot
	QueueLength     int `json:"queue_length"`
	ConnectionCount int `json:"connection_count"`
}

type ListSessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

type SessionEventsResponse struct {
	Code   string                  `json:"code"`
	Events []*types.InterviewEvent `json:"events"`
}

type ListRecordingsResponse struct {
	Recordings []*types.Recording `json:"recordings"`
}

type ICEServersResponse struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Sessions    map[string]int `json:"sessions"`
	Connections map[string]int `json:"connections"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) summarize(sess *session.Session) SessionSummary {
	return SessionSummary{
		SessionSnapshot: sess.Snapshot(),
		QueueLength:     len(sess.Queue),
		ConnectionCount: s.deps.Connections.SessionConnections(sess.Code),
	}
}

// GET /api/sessions
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.deps.Sessions.List()
	summaries := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, s.summarize(sess))
	}
	s.writeJSON(w, http.StatusOK, ListSessionsResponse{Sessions: summaries})
}

// GET /api/sessions/{code}
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	code, ok := s.sessionCode(w, r)
	if !ok {
		return
	}
	sess, err := s.deps.Sessions.Get(code)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			s.sendError(w, "Session not found", http.StatusNotFound)
		} else {
			s.sendError(w, "Failed to get session", http.StatusInternalServerError)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, s.summarize(sess))
}

// GET /api/sessions/{code}/events. History outlives the session.
func (s *Server) sessionEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Database == nil {
		s.sendError(w, "Event history is disabled", http.StatusServiceUnavailable)
		return
	}
	code, ok := s.sessionCode(w, r)
	if !ok {
		return
	}
	events, err := s.deps.Database.SessionHistory(r.Context(), code)
	if err != nil {
		s.logger.Error("failed to load session history", zap.String("code", code), zap.Error(err))
		s.sendError(w, "Failed to load session history", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*types.InterviewEvent{}
	}
	s.writeJSON(w, http.StatusOK, SessionEventsResponse{Code: code, Events: events})
}

// GET /api/ice-servers
func (s *Server) iceServers(w http.ResponseWriter, r *http.Request) {
	servers := s.deps.ICEServers
	if servers == nil {
		servers = []webrtc.ICEServer{}
	}
	s.writeJSON(w, http.StatusOK, ICEServersResponse{ICEServers: servers})
}

// POST /api/recordings (multipart: "recording" file, optional "session")
func (s *Server) uploadRecording(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recordings == nil {
		s.sendError(w, "Recording storage is disabled", http.StatusServiceUnavailable)
		return
	}

	if limit := s.deps.Recordings.MaxBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.sendError(w, "Recording too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.sendError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("recording")
	if err != nil {
		s.sendError(w, "Field 'recording' is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	rec, err := s.deps.Recordings.Save(r.Context(), r.FormValue("session"), header.Filename,
		header.Header.Get("Content-Type"), file)
	if err != nil {
		switch {
		case errors.Is(err, recording.ErrTooLarge):
			s.sendError(w, err.Error(), http.StatusRequestEntityTooLarge)
		case errors.Is(err, recording.ErrEmptyRecording),
			errors.Is(err, types.ErrInvalidFilename),
			errors.Is(err, types.ErrInvalidSessionCode):
			s.sendError(w, err.Error(), http.StatusBadRequest)
		default:
			s.logger.Error("failed to save recording", zap.Error(err))
			s.sendError(w, "Failed to save recording", http.StatusInternalServerError)
		}
		return
	}
	s.writeJSON(w, http.StatusCreated, rec)
}

// GET /api/recordings?session=CODE
func (s *Server) listRecordings(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recordings == nil {
		s.sendError(w, "Recording storage is disabled", http.StatusServiceUnavailable)
		return
	}
	recs, err := s.deps.Recordings.List(r.Context(), r.URL.Query().Get("session"))
	if err != nil {
		if errors.Is(err, types.ErrInvalidSessionCode) {
			s.sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("failed to list recordings", zap.Error(err))
		s.sendError(w, "Failed to list recordings", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []*types.Recording{}
	}
	s.writeJSON(w, http.StatusOK, ListRecordingsResponse{Recordings: recs})
}

// GET /api/recordings/{id}
func (s *Server) downloadRecording(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recordings == nil {
		s.sendError(w, "Recording storage is disabled", http.StatusServiceUnavailable)
		return
	}
	rec, file, err := s.deps.Recordings.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, recording.ErrNotFound) {
			s.sendError(w, "Recording not found", http.StatusNotFound)
			return
		}
		s.logger.Error("failed to open recording", zap.Error(err))
		s.sendError(w, "Failed to open recording", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.Filename))
	http.ServeContent(w, r, rec.Filename, rec.CreatedAt, file)
}

// GET /health
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "disabled"
	if s.deps.Database != nil {
		dbStatus = "healthy"
		if err := s.deps.Database.HealthCheck(ctx); err != nil {
			status = "unhealthy"
			dbStatus = fmt.Sprintf("error: %v", err)
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, HealthResponse{
		Status:      status,
		Timestamp:   time.Now().UTC(),
		Database:    dbStatus,
		Sessions:    s.deps.Sessions.Stats(),
		Connections: s.deps.Connections.Stats(),
	})
}

func (s *Server) sessionCode(w http.ResponseWriter, r *http.Request) (string, bool) {
	code, err := types.NormalizeSessionCode(chi.URLParam(r, "code"))
	if err != nil {
		s.sendError(w, "Invalid session code", http.StatusBadRequest)
		return "", false
	}
	return code, true
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", zap.Error(err))
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.writeJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}
