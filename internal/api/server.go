package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vidsum/internal/config"
	"vidsum/internal/jobs"
	"vidsum/internal/logging"
	"vidsum/internal/metrics"
	"vidsum/internal/workflow"
)

// StatusReporter supplies the workflow portion of the health report.
// *workflow.Manager satisfies it.
type StatusReporter interface {
	Status(ctx context.Context) workflow.StatusSummary
}

// Deps are the collaborators the HTTP surface needs. Workflow and Metrics
// may be nil.
type Deps struct {
	Store    *jobs.Store
	Workflow StatusReporter
	Metrics  *metrics.Registry
	Logger   *slog.Logger
}

// Server is the HTTP listener.
type Server struct {
	bind     string
	logger   *slog.Logger
	handler  http.Handler
	server   *http.Server
	listener net.Listener
}

// NewServer builds the router and HTTP server for cfg.API.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("api: job store is required")
	}
	logger := logging.NewComponentLogger(deps.Logger, "api-server")
	deps.Logger = logger
	handler := NewRouter(cfg.API.Token, deps)
	return &Server{
		bind:    cfg.API.Bind,
		logger:  logger,
		handler: handler,
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}, nil
}

// NewRouter wires routes and middleware. The health and metrics endpoints
// never require the token.
func NewRouter(token string, deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	h := &handlers{store: deps.Store, workflow: deps.Workflow, logger: deps.Logger}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recoverer(deps.Logger))
	r.Use(Logger(deps.Logger))
	r.Use(deps.Metrics.InstrumentHandler)

	r.Get("/api/health", h.health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api/jobs", func(r chi.Router) {
		r.Use(BearerAuth(token))
		r.Post("/", h.submit)
		r.Get("/", h.list)
		r.Get("/{id}", h.describe)
		r.Get("/{id}/result", h.result)
		r.Post("/{id}/retry", h.retry)
		r.Delete("/{id}", h.remove)
	})
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the configured address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listen"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting up to five seconds for requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}
