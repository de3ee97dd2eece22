// Command gateway is the bot-fleet gRPC gateway daemon (C8 bootstrap).
// Grounded on the teacher's cmd/gateway/main.go flag/config-load shape and
// internal/gateway/server.go's Run/Shutdown signal handling.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Opizontas-Studio/grpc-opizontas/internal/auth"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/config"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/janitor"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/logging"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/pool"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/registry"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/router"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/server"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/session"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/tracing"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/gateway.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("grpc-opizontas %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *validateOnly {
		fmt.Println("configuration is valid")
		os.Exit(0)
	}

	logger, logCloser, err := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Output:     cfg.Logging.Output,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	if logCloser != nil {
		defer logCloser.Close()
	}
	logging.SetGlobal(logger)

	logging.Info("starting gateway",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.String("address", cfg.Server.Address),
	)

	tracer, err := tracing.New(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		logging.Error("failed to initialize tracing", zap.Error(err))
		os.Exit(1)
	}
	defer tracer.Close()

	validator := auth.NewValidator(cfg.Security.Tokens)
	reg := registry.New(validator)
	connPool := pool.New(pool.Config{
		MaxConnections: cfg.Pool.MaxConnections,
		ConnectionTTL:  cfg.ConnectionTTL(),
		IdleTimeout:    cfg.IdleTimeout(),
	})
	sessions := session.NewManager()
	r := router.New(router.Config{
		RequestTimeout:        cfg.RequestTimeout(),
		RetryAttempts:         cfg.Router.RetryAttempts,
		MaxConcurrentRequests: cfg.Router.MaxConcurrentRequests,
	}, reg, sessions, connPool)

	srv := server.New(cfg.Server.Address, reg, validator, sessions, r)

	ctx, cancel := context.WithCancel(context.Background())
	j := janitor.New(reg, connPool, cfg.CleanupInterval(), cfg.HeartbeatTimeout())
	go j.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logging.Error("server error", zap.Error(err))
			cancel()
			os.Exit(1)
		}
	case <-quit:
		logging.Info("shutting down gracefully")
		cancel()
		shutdown(srv, connPool, 30*time.Second)
	}
}

func shutdown(srv *server.Server, p *pool.Pool, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		srv.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logging.Warn("graceful shutdown timed out")
	}
	p.Close()
}
