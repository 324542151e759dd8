package grpcserver

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// CatalogService is the health service name reported for the catalog store.
const CatalogService = "vrstore.Catalog"

const (
	DefaultInterval = 10 * time.Second
	pingTimeout     = 2 * time.Second
)

// Pinger is the part of the catalog store the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes grpc.health.v1 with a status that follows the store.
type Server struct {
	Store    Pinger
	Interval time.Duration
	Logger   *log.Logger

	health *health.Server
}

func NewServer(store Pinger, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		Store:    store,
		Interval: DefaultInterval,
		Logger:   logger,
		health:   health.NewServer(),
	}
}

// Register attaches the health and reflection services to gs.
func (s *Server) Register(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, s.health)
	reflection.Register(gs)
}

// Check pings the store once and publishes the result for both the overall
// server ("") and CatalogService.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := s.Store.Ping(ctx); err != nil {
		s.Logger.Warn("[grpc] catalog ping failed", "err", err)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(CatalogService, st)
	return st
}

// Watch re-checks the store every Interval until ctx ends, then marks every
// service NOT_SERVING.
func (s *Server) Watch(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}
