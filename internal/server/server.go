// Package server implements the HTTP layout service.
//
// The service answers POST /layout with the flattened coordinates of the
// posted graph document. Every other method or path gets a fixed 404 body,
// except for the utility routes /healthz, /version and /metrics.
//
// Each request is handled on its own goroutine by [pipeline.Runner]; the
// server itself holds no graph state between requests.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/viewgraph/pkg/config"
	"github.com/matzehuels/viewgraph/pkg/pipeline"
)

// Server is the layout HTTP server: a chi router wrapped in an http.Server.
type Server struct {
	srv     *http.Server
	router  *chi.Mux
	runner  *pipeline.Runner
	logger  *log.Logger
	metrics *Metrics

	maxBodyBytes int64
}

// Option configures a Server.
type Option func(*Server) error

// New creates a server for cfg that executes requests with runner. Options
// run after the default middlewares and routes are installed.
func New(cfg *config.Config, runner *pipeline.Runner, logger *log.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if runner == nil {
		return nil, errors.New("server: runner is required")
	}
	if logger == nil {
		logger = log.Default()
	}

	mux := chi.NewRouter()
	s := &Server{
		srv: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      mux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		router:       mux,
		runner:       runner,
		logger:       logger,
		metrics:      NewMetrics(),
		maxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = config.DefaultMaxBodyBytes
	}

	mux.Use(Middlewares(s)...)
	mux.NotFound(notFound)
	mux.MethodNotAllowed(notFound)

	defaults := []Option{
		WithRoutes(LayoutRoutes(s)...),
		WithRoutes(UtilityRoutes(s)...),
	}
	for _, opt := range append(defaults, opts...) {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
	}
	return s, nil
}

// WithRoutes adds routes to the router.
func WithRoutes(routes ...Route) Option {
	return func(s *Server) error {
		if s.router == nil {
			return errors.New("default server is missing a router")
		}
		for _, route := range routes {
			s.router.Method(route.method, route.pattern, route.handler)
		}
		return nil
	}
}

// Handler returns the root handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Addr returns the configured listening address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// ListenAndServe blocks serving requests on the configured address. It
// returns nil after a graceful [Server.Shutdown].
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ln)
}

// Serve blocks serving requests on ln.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	return s.srv.Shutdown(ctx)
}
