// Package grpcserver runs the gRPC side of a service: the standard health
// service, kept in step with a readiness probe, plus server reflection.
package grpcserver

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const (
	DefaultProbeInterval = 5 * time.Second
	stopTimeout          = 10 * time.Second
)

type Options struct {
	ServiceName   string
	Logger        *zap.Logger
	Ready         func(ctx context.Context) error
	ProbeInterval time.Duration
}

type Server struct {
	GRPC   *grpc.Server
	Health *health.Server

	opts     Options
	log      *zap.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = DefaultProbeInterval
	}
	g := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(g, hs)
	reflection.Register(g)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(opts.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{
		GRPC:   g,
		Health: hs,
		opts:   opts,
		log:    opts.Logger,
		stop:   make(chan struct{}),
	}
}

// Serve serves on lis until Shutdown and runs the readiness probe loop alongside.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("grpc server starting", zap.String("addr", lis.Addr().String()))
	go s.probeLoop()
	return s.GRPC.Serve(lis)
}

// Probe runs the readiness check once and publishes the result.
func (s *Server) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.opts.Ready != nil {
		if err := s.opts.Ready(ctx); err != nil {
			s.log.Debug("grpc readiness probe failed", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.Health.SetServingStatus("", status)
	s.Health.SetServingStatus(s.opts.ServiceName, status)
	return status
}

func (s *Server) probeLoop() {
	ticker := time.NewTicker(s.opts.ProbeInterval)
	defer ticker.Stop()
	for {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.ProbeInterval)
		s.Probe(ctx)
		cancel()
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
	}
}

// Shutdown flips health to NOT_SERVING and drains in-flight RPCs. If ctx ends
// first the server is stopped hard. Concurrent and repeated calls wait for the
// first one to finish.
func (s *Server) Shutdown(ctx context.Context) {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.Health.Shutdown()

		stopped := make(chan struct{})
		go func() {
			s.GRPC.GracefulStop()
			close(stopped)
		}()
		timer := time.NewTimer(stopTimeout)
		defer timer.Stop()
		select {
		case <-stopped:
		case <-ctx.Done():
			s.GRPC.Stop()
		case <-timer.C:
			s.GRPC.Stop()
		}
	})
}
