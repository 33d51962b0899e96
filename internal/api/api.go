// Package api provides the HTTP surface of Hamraz.
//
// It exposes RESTful endpoints for enrolling participants, submitting
// conversation messages, draining buffered message bursts, and ending
// sessions. The API integrates with the store and flow modules; message
// transport (apps, chat frontends) lives outside this service.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/Hamraz/internal/flow"
	"github.com/BTreeMap/Hamraz/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Server timeouts.
const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server hosts the HTTP endpoints over the orchestration core.
type Server struct {
	st           store.Store
	orchestrator *flow.Orchestrator
	addr         string
	httpServer   *http.Server
}

// NewServer creates an API server over the given store and orchestrator.
func NewServer(st store.Store, orchestrator *flow.Orchestrator, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{st: st, orchestrator: orchestrator, addr: cfg.Addr}
}

// Handler returns the routed HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/participants", s.participantsHandler)
	mux.HandleFunc("/messages", s.messagesHandler)
	mux.HandleFunc("/messages/buffered", s.bufferedHandler)
	mux.HandleFunc("/sessions/end", s.endSessionHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	slog.Info("API server listening", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
