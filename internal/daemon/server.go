package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/codelab/internal/assessment"
	"github.com/felixgeelhaar/codelab/internal/config"
	"github.com/felixgeelhaar/codelab/internal/domain"
	"github.com/felixgeelhaar/codelab/internal/events"
)

// heartbeatInterval keeps idle event streams open through proxies
const heartbeatInterval = 15 * time.Second

// Server represents the codelab daemon HTTP server
type Server struct {
	cfg     *config.LocalConfig
	server  *http.Server
	router  *http.ServeMux
	handler http.Handler
	logger  *slog.Logger
	version string
	started time.Time

	manager *assessment.Manager
	bus     *events.Bus
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Config  *config.LocalConfig
	Manager *assessment.Manager
	Bus     *events.Bus
	Logger  *slog.Logger
	Version string
}

// NewServer creates a new daemon server
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Manager == nil {
		return nil, errors.New("assessment manager is required")
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg.Config,
		router:  http.NewServeMux(),
		logger:  logger,
		version: cfg.Version,
		started: time.Now(),
		manager: cfg.Manager,
		bus:     cfg.Bus,
	}

	s.setupRoutes()

	s.handler = chain(s.router,
		correlationIDMiddleware,
		recoveryMiddleware(logger),
		loggingMiddleware(logger),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // event streams lift this per request
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

func (s *Server) setupRoutes() {
	// Health & Status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)
	s.router.HandleFunc("GET /v1/config", s.handleGetConfig)

	// Problems
	s.router.HandleFunc("GET /v1/problems", s.handleListOpen)
	s.router.HandleFunc("POST /v1/problems/{course}/{problem}/open", s.handleOpen)
	s.router.HandleFunc("GET /v1/problems/{course}/{problem}", s.handleView)
	s.router.HandleFunc("DELETE /v1/problems/{course}/{problem}", s.handleCloseSession)

	// Editing
	s.router.HandleFunc("PUT /v1/problems/{course}/{problem}/code", s.handleEdit)
	s.router.HandleFunc("PUT /v1/problems/{course}/{problem}/language", s.handleLanguage)
	s.router.HandleFunc("PUT /v1/problems/{course}/{problem}/console", s.handleConsole)
	s.router.HandleFunc("PUT /v1/problems/{course}/{problem}/active-case", s.handleActiveCase)

	// Judge
	s.router.HandleFunc("POST /v1/problems/{course}/{problem}/run", s.handleRun)
	s.router.HandleFunc("POST /v1/problems/{course}/{problem}/run-custom", s.handleRunCustom)
	s.router.HandleFunc("POST /v1/problems/{course}/{problem}/submit", s.handleSubmit)

	// Events
	s.router.HandleFunc("GET /v1/events", s.handleEvents)
	s.router.HandleFunc("GET /v1/problems/{course}/{problem}/events", s.handleEvents)
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the server
func (s *Server) Start() error {
	s.logger.Info("starting codelab daemon", "addr", s.server.Addr, "version", s.version)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server and closes open sessions
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down codelab daemon")
	err := s.server.Shutdown(ctx)
	s.manager.Close()
	return err
}

// Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	keys := s.manager.Keys()
	open := make([]string, len(keys))
	for i, k := range keys {
		open[i] = k.String()
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":         "running",
		"version":        s.version,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"judge_url":      s.cfg.Judge.BaseURL,
		"storage":        s.cfg.Storage.Backend,
		"events_amqp":    s.cfg.Events.AMQPURL != "",
		"open_sessions":  open,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	// Secrets are tagged yaml:"-" and never leave the daemon
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"daemon": s.cfg.Daemon,
		"judge": map[string]any{
			"base_url":        s.cfg.Judge.BaseURL,
			"timeout_seconds": s.cfg.Judge.TimeoutSeconds,
			"max_concurrent":  s.cfg.Judge.MaxConcurrent,
			"rate_per_second": s.cfg.Judge.RatePerSecond,
			"languages":       s.cfg.Judge.Languages,
			"token_set":       s.cfg.Judge.Token != "",
		},
		"assessment": s.cfg.Assessment,
		"storage": map[string]any{
			"backend": s.cfg.Storage.Backend,
			"path":    s.cfg.Storage.Path,
		},
		"events": map[string]any{
			"amqp":  s.cfg.Events.AMQPURL != "",
			"queue": s.cfg.Events.Queue,
		},
	})
}

func (s *Server) handleListOpen(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"problems": s.manager.Keys(),
	})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reload bool `json:"reload"`
	}
	if !s.decodeOptional(w, r, &req) {
		return
	}

	sess, err := s.manager.Open(r.Context(), problemKey(r), req.Reload)
	if err != nil {
		s.sessionError(w, err, nil)
		return
	}
	s.respondView(w, sess)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respondView(w, sess)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Remove(problemKey(r)); err != nil {
		s.sessionError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Code *string `json:"code"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Code == nil {
		s.jsonError(w, http.StatusBadRequest, "code is required", nil)
		return
	}

	if err := sess.Edit(r.Context(), *req.Code); err != nil {
		s.sessionError(w, err, nil)
		return
	}
	s.respondView(w, sess)
}

func (s *Server) handleLanguage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Language string `json:"language"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Language == "" {
		s.jsonError(w, http.StatusBadRequest, "language is required", nil)
		return
	}

	if err := sess.SwitchLanguage(r.Context(), req.Language); err != nil {
		s.sessionError(w, err, nil)
		return
	}
	s.respondView(w, sess)
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Tab string `json:"tab"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	tab, err := assessment.ParseConsoleTab(req.Tab)
	if err != nil {
		s.sessionError(w, err, nil)
		return
	}
	if err := sess.SetConsoleTab(tab); err != nil {
		s.sessionError(w, err, nil)
		return
	}
	s.respondView(w, sess)
}

func (s *Server) handleActiveCase(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Index int `json:"index"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := sess.SelectCase(req.Index); err != nil {
		s.sessionError(w, err, nil)
		return
	}
	s.respondView(w, sess)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	view, err := sess.Run(r.Context())
	if err != nil {
		s.sessionError(w, err, view)
		return
	}
	s.jsonResponse(w, http.StatusOK, view)
}

func (s *Server) handleRunCustom(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Input string `json:"input"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	view, err := sess.RunCustom(r.Context(), req.Input)
	if err != nil {
		s.sessionError(w, err, view)
		return
	}
	s.jsonResponse(w, http.StatusOK, view)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	view, err := sess.Submit(r.Context())
	if err != nil {
		s.sessionError(w, err, view)
		return
	}
	s.jsonResponse(w, http.StatusOK, view)
}

// handleEvents streams bus events as server-sent events. Without a path
// key every event is sent.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	key := problemKey(r)
	if (key.CourseID == "") != (key.ProblemID == "") {
		s.jsonError(w, http.StatusBadRequest, "course and problem id are required", nil)
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.bus.SubscribeChan(64)
	defer unsubscribe()

	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		s.logger.Warn("event stream does not support flushing", "error", err)
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			if err := rc.Flush(); err != nil {
				return
			}

		case e, ok := <-ch:
			if !ok {
				return
			}
			env, err := events.NewEnvelope(e)
			if err != nil {
				s.logger.Warn("encode event", "type", e.EventType(), "error", err)
				continue
			}
			if !env.Matches(key) {
				continue
			}
			data, err := json.Marshal(env)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", env.ID, env.Type, data)
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// Helpers

func problemKey(r *http.Request) domain.ProblemKey {
	return domain.ProblemKey{
		CourseID:  r.PathValue("course"),
		ProblemID: r.PathValue("problem"),
	}
}

// session resolves the open session named by the request path
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*assessment.Session, bool) {
	sess, err := s.manager.Get(problemKey(r))
	if err != nil {
		s.sessionError(w, err, nil)
		return nil, false
	}
	return sess, true
}

func (s *Server) respondView(w http.ResponseWriter, sess *assessment.Session) {
	view, err := sess.View()
	if err != nil {
		s.sessionError(w, err, nil)
		return
	}
	s.jsonResponse(w, http.StatusOK, view)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

// decodeOptional accepts an empty body
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return s.decode(w, r, v)
}

// statusFor maps the domain error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrEmptyInput),
		errors.Is(err, domain.ErrInvalidTab),
		errors.Is(err, domain.ErrLanguageUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProblemNotFound),
		errors.Is(err, domain.ErrSessionNotOpen):
		return http.StatusNotFound
	case assessment.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTransport):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// sessionError writes err with the matching status. A view, when present,
// lets clients render the state left behind by a failed call.
func (s *Server) sessionError(w http.ResponseWriter, err error, view *assessment.View) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "error", err, "status", status)
	}
	s.writeError(w, errorBody{
		Error:  err.Error(),
		Status: status,
		View:   view,
	})
}

type errorBody struct {
	Error   string           `json:"error"`
	Status  int              `json:"status"`
	Details string           `json:"details,omitempty"`
	View    *assessment.View `json:"view,omitempty"`
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	if err := writeJSON(w, status, data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	body := errorBody{Error: message, Status: status}
	if err != nil {
		body.Details = err.Error()
	}
	s.writeError(w, body)
}

func (s *Server) writeError(w http.ResponseWriter, body errorBody) {
	s.jsonResponse(w, body.Status, body)
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}
