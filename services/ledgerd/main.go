package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	solcfg "solaire/config"
	"solaire/core"
	"solaire/observability/logging"
	telemetry "solaire/observability/otel"
	"solaire/services/ledgerd/config"
	"solaire/services/ledgerd/index"
	"solaire/services/ledgerd/middleware"
	"solaire/services/ledgerd/server"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/ledgerd/config.yaml", "path to ledgerd configuration file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("ledgerd: load config: %v", err)
	}

	env := strings.TrimSpace(os.Getenv("SOLAIRE_ENV"))
	logOpts := logging.Options{Level: logging.ParseLevel(cfg.Log.Level)}
	if cfg.Log.File != "" {
		logOpts.File = &logging.FileOptions{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   true,
		}
	}
	logger := logging.Setup("ledgerd", env, logOpts)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "ledgerd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatalf("ledgerd: init telemetry: %v", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	deployment, err := solcfg.Load(cfg.Deployment)
	if err != nil {
		log.Fatalf("ledgerd: load deployment: %v", err)
	}
	if cfg.State.Backend != "" {
		deployment.StorageBackend = cfg.State.Backend
	}
	if cfg.State.Path != "" {
		deployment.DataDir = cfg.State.Path
	}

	ix, err := index.Open(cfg.Index.Driver, cfg.Index.DSN, logger)
	if err != nil {
		log.Fatalf("ledgerd: open index: %v", err)
	}
	defer ix.Close()

	// The index is fed synchronously on commit; only websocket clients use the hub.
	ledger, err := core.Open(deployment, core.WithLogger(logger), core.WithSink(ix))
	if err != nil {
		log.Fatalf("ledgerd: open ledger: %v", err)
	}
	defer ledger.Close()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    cfg.Auth.Enabled,
		HMACSecret: cfg.Auth.HMACSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ClockSkew:  cfg.Auth.ClockSkew.Duration,
	}, logger)
	if !cfg.Auth.Enabled {
		logger.Warn("authentication disabled; callers are taken from the " + middleware.CallerHeader + " header")
	}
	limiter := middleware.NewRateLimiter(middleware.RateLimit{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	}, logger)

	srv, err := server.New(server.Config{
		ListenAddress:   cfg.ListenAddress,
		AllowedOrigins:  cfg.AllowedOrigins,
		ShutdownTimeout: cfg.ShutdownTimeout.Duration,
	}, ledger, ix, auth, limiter, logger)
	if err != nil {
		log.Fatalf("ledgerd: server: %v", err)
	}

	logger.Info("ledgerd starting",
		slog.String("network", deployment.NetworkName),
		slog.String("root", ledger.Root().Hex()))
	if err := srv.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("http server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
