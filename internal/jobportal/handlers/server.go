// Package handlers provides the HTTP API and the gRPC health endpoint of
// the job portal, bridging the transport layer and the job service.
package handlers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gartstein/jobportal/internal/jobportal/auth"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 5 * time.Second

// NewRouter wires the REST API, the metrics endpoint and the request
// middleware into a single handler.
func NewRouter(h *JobHandler, mw *auth.Middleware, corsOrigins []string, logger *zap.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(recoverer(logger), requestLogger(logger.Named("access")))
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	h.Routes(r, mw)
	return withCORS(corsOrigins, r)
}

// Server holds references to both a gRPC server and an HTTP server. The
// gRPC side only serves the standard health service.
type Server struct {
	grpcServer   *grpc.Server
	httpServer   *http.Server
	health       *health.Server
	logger       *zap.Logger
	grpcEndpoint string
	httpEndpoint string
}

// NewServer constructs a Server serving handler over HTTP on httpAddr and
// the health service over gRPC on grpcAddr.
func NewServer(grpcAddr, httpAddr string, handler http.Handler, logger *zap.Logger, grpcOpts ...grpc.ServerOption) *Server {
	s := &Server{
		grpcServer: grpc.NewServer(grpcOpts...),
		httpServer: &http.Server{
			Addr:              httpAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		health:       health.NewServer(),
		logger:       logger.Named("server"),
		grpcEndpoint: grpcAddr,
		httpEndpoint: httpAddr,
	}
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	return s
}

// Start runs the gRPC and HTTP servers concurrently, returning on the first
// error. It returns nil once both have been stopped.
func (s *Server) Start() error {
	var wg sync.WaitGroup
	wg.Add(2)
	errChan := make(chan error, 2)

	go func() {
		defer wg.Done()
		s.logger.Info("Starting gRPC server", zap.String("endpoint", s.grpcEndpoint))
		lis, err := net.Listen("tcp", s.grpcEndpoint)
		if err != nil {
			errChan <- fmt.Errorf("gRPC listen error: %w", err)
			return
		}
		if err := s.grpcServer.Serve(lis); err != nil {
			errChan <- fmt.Errorf("gRPC serve error: %w", err)
		}
	}()

	go func() {
		defer wg.Done()
		s.logger.Info("Starting HTTP server", zap.String("endpoint", s.httpEndpoint))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP serve error: %w", err)
		}
	}()

	go func() {
		wg.Wait()
		close(errChan)
	}()

	for err := range errChan {
		if err != nil {
			return err
		}
	}
	return nil
}

// MonitorHealth runs probe every interval until ctx is done and reports
// the result as the overall gRPC health status.
func (s *Server) MonitorHealth(ctx context.Context, probe func(context.Context) error, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		probeCtx, cancel := context.WithTimeout(ctx, interval)
		err := probe(probeCtx)
		cancel()

		switch {
		case err != nil && healthy:
			s.logger.Warn("Health probe failed", zap.Error(err))
			s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
			healthy = false
		case err == nil && !healthy:
			s.logger.Info("Health probe recovered")
			s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
			healthy = true
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop gracefully shuts down both servers.
func (s *Server) Stop() {
	s.logger.Info("Shutting down servers...")
	s.health.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	s.grpcServer.GracefulStop()

	s.logger.Info("Servers stopped")
}
