// Package health serves the liveness endpoint used by container probes.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"tg_assistant_bot/internal/logging"
)

const (
	checkTimeout      = 2 * time.Second
	readHeaderTimeout = 2 * time.Second

	statusOK       = "ok"
	statusDegraded = "degraded"
	statusError    = "error"
)

// Pinger is a dependency that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type check struct {
	name   string
	pinger Pinger
}

// Server answers GET /healthz with the aggregated state of its checks.
type Server struct {
	server *http.Server
	logger *logrus.Entry
	checks []check
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Option adds behavior to a Server.
type Option func(*Server)

// WithCheck reports p under name. Nil pingers are ignored, so optional
// dependencies can be passed through unconditionally.
func WithCheck(name string, p Pinger) Option {
	return func(s *Server) {
		if p == nil {
			return
		}
		s.checks = append(s.checks, check{name: name, pinger: p})
	}
}

// NewServer builds a health server listening on port. With no checks the
// endpoint always reports {"status":"ok"}.
func NewServer(port int, logger *logrus.Entry, opts ...Option) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{logger: logger}
	for _, opt := range opts {
		opt(srv)
	}
	sort.Slice(srv.checks, func(i, j int) bool { return srv.checks[i].name < srv.checks[j].name })

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe blocks until the server fails or Shutdown is called. A clean
// shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event":  "health_listen",
		"addr":   s.server.Addr,
		"checks": len(s.checks),
	}).Info("starting health server")

	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server listen: %w", err)
	}

	s.logger.WithField("event", "health_stopped").Info("health server stopped")
	return nil
}

// Shutdown stops accepting connections and waits for in-flight probes.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.evaluate(r.Context())); err != nil {
		s.logger.WithField("event", "health_write_error").WithError(err).Error("failed to encode health response")
	}
}

func (s *Server) evaluate(ctx context.Context) report {
	out := report{Status: statusOK}
	if len(s.checks) == 0 {
		return out
	}

	out.Checks = make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.pinger.Ping(pingCtx)
		cancel()

		if err != nil {
			out.Status = statusDegraded
			out.Checks[c.name] = statusError
			s.logger.WithFields(logging.Fields{
				"event": "health_check_failed",
				"check": c.name,
			}).WithError(err).Warn("health check failed")
			continue
		}
		out.Checks[c.name] = statusOK
	}

	return out
}
