package web

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the service reported alongside the overall ("") status.
const HealthServiceName = "yieldvault.Vault"

// HealthServer serves the standard gRPC health protocol. The status follows
// whether the ledger answers reads.
type HealthServer struct {
	ledger   Ledger
	health   *health.Server
	interval time.Duration
}

// NewHealthServer builds a health server polling ledger every interval.
func NewHealthServer(ledger Ledger, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &HealthServer{ledger: ledger, health: health.NewServer(), interval: interval}
}

// Refresh probes the ledger once and publishes the resulting status.
func (hs *HealthServer) Refresh() healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := hs.ledger.Ping(); err != nil {
		webLogger.Warn().Err(err).Msg("Ledger health probe failed")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.health.SetServingStatus("", status)
	hs.health.SetServingStatus(HealthServiceName, status)
	return status
}

// Register attaches the health service to s.
func (hs *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, hs.health)
}

// Watch refreshes the status until ctx is done, then reports NOT_SERVING.
func (hs *HealthServer) Watch(ctx context.Context) {
	hs.Refresh()
	ticker := time.NewTicker(hs.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.health.Shutdown()
			return
		case <-ticker.C:
			hs.Refresh()
		}
	}
}

// ServeGRPC serves the health service on port until ctx is cancelled.
func (hs *HealthServer) ServeGRPC(ctx context.Context, port string) error {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", port, err)
	}
	grpcServer := grpc.NewServer()
	hs.Register(grpcServer)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go hs.Watch(watchCtx)

	serverErr := make(chan error, 1)
	go func() {
		webLogger.Info().Str("port", port).Msg("gRPC health service listening")
		serverErr <- grpcServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			webLogger.Warn().Msg("Forcing gRPC shutdown")
			grpcServer.Stop()
		}
		return nil
	case err := <-serverErr:
		return err
	}
}
