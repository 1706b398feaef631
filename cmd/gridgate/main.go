// Command gridgate serves one set of business operations over three wire
// protocols: a REST API, a binary streaming-RPC service, and a JSON-RPC
// request/subscription endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gridgate/gridgate/internal/config"
	"github.com/gridgate/gridgate/internal/directory"
	"github.com/gridgate/gridgate/internal/dispatch"
	"github.com/gridgate/gridgate/internal/gateway/grpcapi"
	"github.com/gridgate/gridgate/internal/gateway/jsonrpc"
	"github.com/gridgate/gridgate/internal/gateway/rest"
	"github.com/gridgate/gridgate/internal/logging"
	"github.com/gridgate/gridgate/internal/metrics"
	"github.com/gridgate/gridgate/internal/store"
	"github.com/gridgate/gridgate/internal/stream"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.Default()
		logging.NewTextLogger(cfg.Logging.Level).Info("Failed to load config file, using defaults", logging.LogFields{
			"path":  *configPath,
			"error": err.Error(),
		})
	}

	logger := logging.NewTextLogger(cfg.Logging.Level)

	m := metrics.New()
	engine := stream.NewEngine(logger, m, stream.Options{
		Buffer:          cfg.Stream.Buffer,
		DefaultInterval: cfg.DefaultInterval(),
	})
	dispatcher := dispatch.New(store.New(), directory.New(), engine, m)

	restServer := &http.Server{
		Addr: cfg.Server.RESTAddr,
		Handler: rest.NewServer(dispatcher, logger, rest.Options{
			RateLimitRPS:   cfg.RateLimit.RPS,
			RateLimitBurst: cfg.RateLimit.Burst,
		}).Handler(),
	}
	jsonrpcServer := &http.Server{
		Addr:    cfg.Server.JSONRPCAddr,
		Handler: jsonrpc.NewServer(dispatcher, logger).Handler(),
	}
	grpcServer := grpcapi.NewServer(dispatcher, logger)

	grpcListener, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("Failed to listen for gRPC", err, logging.LogFields{"addr": cfg.Server.GRPCAddr})
		os.Exit(1)
	}

	errCh := make(chan error, 4)

	logger.Info("Starting REST API server", logging.LogFields{"addr": cfg.Server.RESTAddr})
	go func() {
		if err := restServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("Starting JSON-RPC server", logging.LogFields{"addr": cfg.Server.JSONRPCAddr})
	go func() {
		if err := jsonrpcServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("Starting gRPC server", logging.LogFields{"addr": cfg.Server.GRPCAddr})
	go func() {
		if err := grpcServer.Serve(grpcListener); err != nil {
			errCh <- err
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		logger.Info("Starting metrics server", logging.LogFields{"addr": cfg.Metrics.Addr})
		go func() {
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", nil)
	case err := <-errCh:
		logger.Error("Server failed", err, nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("REST shutdown failed", err, nil)
	}
	if err := jsonrpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("JSON-RPC shutdown failed", err, nil)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics shutdown failed", err, nil)
		}
	}
	grpcServer.GracefulStop()

	if err := engine.Close(); err != nil {
		logger.Error("Subscription engine shutdown failed", err, nil)
	}
	logger.Info("Shutdown complete", nil)
}
