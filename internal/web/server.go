// Package web provides the HTTP dashboard and control endpoints.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/sweeney/hydro-controller/internal/controller"
	"github.com/sweeney/hydro-controller/internal/logic"
	"github.com/sweeney/hydro-controller/internal/status"
)

// Response bodies for the control endpoints.
const (
	MsgFlushInitiated = "Flush Initiated"
	MsgFlushBusy      = "Conflict: A cycle is already active."
	MsgFlushHalted    = "Forbidden: System is halted. Press Resume first."
	MsgHalted         = "All systems halted"
	MsgResumed        = "System Resumed"
	MsgUnavailable    = "Service Unavailable: controller did not respond"
	MsgInvalid        = "Bad Request: unknown command"
)

// DefaultCommandTimeout bounds how long a control request waits for a tick.
const DefaultCommandTimeout = 2 * time.Second

// Commander accepts operator commands.
type Commander interface {
	Submit(ctx context.Context, kind controller.CommandKind) (controller.Result, error)
}

// Options configures a Server.
type Options struct {
	Addr           string
	Tracker        *status.Tracker
	Commander      Commander
	Metrics        http.Handler // mounted at /metrics when set
	CommandTimeout time.Duration
	Logger         zerolog.Logger
}

// Server serves the dashboard and control endpoints over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commander  Commander
	timeout    time.Duration
}

// New creates a Server that reads state from the tracker and sends commands
// to the commander.
func New(o Options) *Server {
	s := &Server{
		tracker:   o.Tracker,
		commander: o.Commander,
		timeout:   o.CommandTimeout,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultCommandTimeout
	}

	log := o.Logger.With().Str("component", "http").Logger()

	r := chi.NewRouter()
	r.Use(hlog.NewHandler(log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	r.Get("/readings", s.handleReadings)
	r.Get("/index.json", s.handleReadings)
	r.Get("/status", s.handleStatus)

	for path, kind := range map[string]controller.CommandKind{
		"/flush":  controller.CommandFlush,
		"/stop":   controller.CommandHalt,
		"/resume": controller.CommandResume,
	} {
		h := s.handleCommand(kind)
		r.Get(path, h)
		r.Post(path, h)
	}

	if o.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", o.Metrics)
	}

	s.httpServer = &http.Server{
		Addr:              o.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("render dashboard")
	}
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(status.FormatReadings(snap))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleCommand(kind controller.CommandKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()

		res, err := s.commander.Submit(ctx, kind)
		if err != nil {
			code := http.StatusServiceUnavailable
			if errors.Is(err, context.Canceled) {
				// Client went away; nobody reads the reply.
				code = http.StatusRequestTimeout
			}
			hlog.FromRequest(r).Warn().Err(err).Str("command", string(kind)).Msg("command not answered")
			writeText(w, code, MsgUnavailable)
			return
		}

		hlog.FromRequest(r).Info().
			Str("command", string(kind)).
			Stringer("outcome", res.Outcome).
			Msg("command")

		code, body := commandResponse(kind, res.Outcome)
		writeText(w, code, body)
	}
}

// commandResponse maps a command outcome to its HTTP status and body.
func commandResponse(kind controller.CommandKind, outcome logic.Outcome) (int, string) {
	switch outcome {
	case logic.OutcomeRejectedHalted:
		return http.StatusForbidden, MsgFlushHalted
	case logic.OutcomeRejectedBusy:
		return http.StatusConflict, MsgFlushBusy
	case logic.OutcomeInvalid:
		return http.StatusBadRequest, MsgInvalid
	}
	switch kind {
	case controller.CommandHalt:
		return http.StatusOK, MsgHalted
	case controller.CommandResume:
		return http.StatusOK, MsgResumed
	default:
		return http.StatusOK, MsgFlushInitiated
	}
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	w.Write([]byte(body))
}
