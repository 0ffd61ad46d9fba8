package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/paw-chain/prover/app/health"
)

// MetricsHandler serves gatherer on /metrics.
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// serveHTTP runs handler on addr until ctx is done.
func serveHTTP(ctx context.Context, name, addr string, handler http.Handler, logger log.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "server", name, "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// serveGRPCHealth exposes the checker over grpc.health.v1 and refreshes its
// status every interval.
func serveGRPCHealth(ctx context.Context, addr string, checker *health.Checker, interval time.Duration, logger log.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, checker.GRPCServer())

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "server", "grpc-health", "addr", listener.Addr().String())
		errCh <- server.Serve(listener)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := checker.Check(ctx, false); err != nil {
			logger.Error("health check failed", "error", err)
		}

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			server.GracefulStop()
			return nil
		case <-ticker.C:
		}
	}
}
