// Package health serves liveness and readiness checks over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/scriptbot/core/logger"
)

const defaultCheckTimeout = 2 * time.Second

// Check reports whether a dependency is ready.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Options configures the health server.
type Options struct {
	Listen       string
	Checks       []Check
	CheckTimeout time.Duration
}

// Server exposes GET /healthz and GET /readyz.
type Server struct {
	router  *chi.Mux
	srv     *http.Server
	checks  []Check
	timeout time.Duration
	done    chan struct{}
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// New builds the server; it does not listen until Start.
func New(opts Options) *Server {
	timeout := opts.CheckTimeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	s := &Server{
		router:  chi.NewRouter(),
		checks:  opts.Checks,
		timeout: timeout,
	}
	s.router.Use(chimiddleware.Recoverer)
	s.router.Get("/healthz", s.handleLive)
	s.router.Get("/readyz", s.handleReady)

	s.srv = &http.Server{
		Addr:              opts.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.done = make(chan struct{})
	logger.Info(context.Background(), "health", "health.listen",
		slog.String("addr", ln.Addr().String()),
	)
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "health", "health.serve",
				logger.ErrAttr(err),
			)
		}
	}()
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.done == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	<-s.done
	return err
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	resp := statusResponse{Status: "ok", Checks: make(map[string]string, len(s.checks))}
	code := http.StatusOK
	for _, c := range s.checks {
		if c.Run == nil {
			continue
		}
		if err := c.Run(ctx); err != nil {
			resp.Checks[c.Name] = "fail"
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			logger.Warn(ctx, "health", "health.check",
				slog.String("check", c.Name),
				logger.ErrAttr(err),
			)
			continue
		}
		resp.Checks[c.Name] = "ok"
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
