package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solaire/config"
	"solaire/core"
	"solaire/core/events"
	"solaire/observability/logging"
	telemetry "solaire/observability/otel"
)

const envName = "SOLAIRE_ENV"

func main() {
	var (
		cfgPath       string
		metricsAddr   string
		priceInterval time.Duration
	)
	flag.StringVar(&cfgPath, "config", "./config/deployment.toml", "path to deployment configuration file")
	flag.StringVar(&metricsAddr, "metrics", ":9464", "listen address for /metrics and /healthz (empty disables)")
	flag.DurationVar(&priceInterval, "price-interval", 30*time.Second, "how often to sample the oracle price (0 disables)")
	flag.Parse()

	if err := run(cfgPath, metricsAddr, priceInterval); err != nil {
		fmt.Fprintf(os.Stderr, "solaired: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath, metricsAddr string, priceInterval time.Duration) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv(envName))
	logger := logging.Setup("solaired", env, loggingOptions(cfg.Logging))

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.FromEnv("solaired", env))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	ledger, err := core.Open(cfg, core.WithLogger(logger))
	if err != nil {
		return err
	}
	defer ledger.Close()
	logger.Info("ledger opened",
		slog.String("network", cfg.NetworkName),
		slog.String("backend", cfg.StorageBackend),
		slog.String("root", ledger.Root().Hex()),
		slog.String("tokens", strings.Join(ledger.Symbols(), ",")))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	updates, unsubscribe := ledger.Subscribe(256)
	defer unsubscribe()
	go logEvents(ctx, logger, updates)

	if priceInterval > 0 {
		go samplePrice(ctx, logger, ledger, priceInterval)
	}

	if metricsAddr == "" {
		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	}
	return serveMetrics(ctx, logger, ledger, metricsAddr)
}

func loggingOptions(cfg config.Logging) logging.Options {
	opts := logging.Options{Level: logging.ParseLevel(cfg.Level)}
	if strings.TrimSpace(cfg.File) != "" {
		opts.File = &logging.FileOptions{
			Path:       cfg.File,
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAgeDays: cfg.MaxAgeDays,
			Compress:   true,
		}
	}
	return opts
}

// logEvents writes every committed event to the structured log.
func logEvents(ctx context.Context, logger *slog.Logger, updates <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-updates:
			if !ok {
				return
			}
			logger.Info("event committed", eventAttrs(evt)...)
		}
	}
}

func eventAttrs(evt events.Event) []any {
	attrs := []any{slog.String("type", evt.EventType())}
	typed, ok := evt.(events.Typed)
	if !ok {
		return attrs
	}
	flat := typed.Event()
	if flat == nil {
		return attrs
	}
	keys := make([]string, 0, len(flat.Attributes))
	for k := range flat.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value := flat.Attributes[k]
		if k == "iban" {
			value = logging.MaskIBAN(value)
		}
		attrs = append(attrs, slog.String(k, value))
	}
	return attrs
}

func samplePrice(ctx context.Context, logger *slog.Logger, ledger *core.Ledger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := ledger.Price(); err != nil {
				logger.Warn("oracle price unavailable", slog.String("error", err.Error()))
			}
		}
	}
}

func serveMetrics(ctx context.Context, logger *slog.Logger, ledger *core.Ledger, addr string) error {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintf(w, "ok %s\n", ledger.Root().Hex())
	})
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", slog.String("addr", listener.Addr().String()))
		errCh <- srv.Serve(listener)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
