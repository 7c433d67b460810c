// Package server exposes the quote flow over HTTP and reports liveness over
// the standard gRPC health protocol.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/pharma-quotes/internal/metrics"
	"github.com/joseph-ayodele/pharma-quotes/internal/pipeline"
	"github.com/joseph-ayodele/pharma-quotes/internal/quotes"
	"github.com/joseph-ayodele/pharma-quotes/internal/segment"
)

// ServiceName is the gRPC health service name reported for the quote flow.
const ServiceName = "pharma.quotes.v1.Quotes"

// QuoteService is the quote flow the handlers drive. *quotes.Service satisfies it.
type QuoteService interface {
	Extract(ctx context.Context, sessionID string, doc segment.Document, onProgress pipeline.ProgressFunc) (quotes.Summary, error)
	Finish(ctx context.Context, sessionID string, compare bool) (quotes.Workbook, error)
	Discard(sessionID string) bool
	CanCompare() bool
}

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

type Config struct {
	HTTPAddr       string
	GRPCAddr       string
	MaxUploadBytes int64
	HealthInterval time.Duration
}

type Server struct {
	cfg    Config
	svc    QuoteService
	check  Checker
	logger *slog.Logger

	router chi.Router
	http   *http.Server
	grpc   *grpc.Server
	health *health.Server

	stop chan struct{}
}

// New builds the HTTP router and the gRPC health server. check may be nil
// when no catalog database is configured.
func New(cfg Config, svc QuoteService, check Checker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = 30 * time.Second
	}

	s := &Server{
		cfg:    cfg,
		svc:    svc,
		check:  check,
		logger: logger,
		router: chi.NewRouter(),
		health: health.NewServer(),
		stop:   make(chan struct{}),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.http = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.grpc = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)
	// Reflection for grpcurl
	reflection.Register(s.grpc)
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(metrics.Metrics)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/v1/quotes", func(r chi.Router) {
		r.With(limitBody(s.cfg.MaxUploadBytes)).Post("/", s.handleExtract)
		r.Post("/{session}/export", s.handleExport)
		r.Delete("/{session}", s.handleDiscard)
	})
}

// Handler returns the HTTP handler; used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP and gRPC until Shutdown. It returns the first serve error.
func (s *Server) Start() error {
	errCh := make(chan error, 2)

	if s.cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", s.cfg.GRPCAddr)
		if err != nil {
			return err
		}
		go func() {
			s.logger.Info("grpc.listen", "addr", s.cfg.GRPCAddr)
			if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- err
			}
		}()
	}

	go s.watchHealth()

	go func() {
		s.logger.Info("http.listen", "addr", s.cfg.HTTPAddr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-s.stop:
		return nil
	}
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server.shutdown")
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	s.health.Shutdown()
	s.grpc.GracefulStop()

	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("server.shutdown.forced", "error", err)
		return s.http.Close()
	}
	s.logger.Info("server.shutdown.complete")
	return nil
}

// Ready runs the dependency check and updates the gRPC serving status.
func (s *Server) Ready(ctx context.Context) error {
	var err error
	if s.check != nil {
		err = s.check(ctx)
	}
	status := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return err
}

func (s *Server) watchHealth() {
	t := time.NewTicker(s.cfg.HealthInterval)
	defer t.Stop()
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.Ready(ctx); err != nil {
			s.logger.Warn("health.check.failed", "error", err)
		}
		cancel()
		select {
		case <-t.C:
		case <-s.stop:
			return
		}
	}
}
