package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"solaire/core"
	"solaire/crypto"
	nativecommon "solaire/native/common"
	"solaire/services/ledgerd/index"
	"solaire/services/ledgerd/middleware"
)

// Config controls the HTTP listener.
type Config struct {
	ListenAddress   string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// Server exposes the ledger over HTTP.
type Server struct {
	cfg     Config
	ledger  *core.Ledger
	index   *index.Indexer
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	logger  *slog.Logger
}

// New wires the HTTP surface over ledger and the event index.
func New(cfg Config, ledger *core.Ledger, indexer *index.Indexer, auth *middleware.Authenticator, limiter *middleware.RateLimiter, logger *slog.Logger) (*Server, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if auth == nil {
		return nil, fmt.Errorf("authenticator required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if limiter == nil {
		limiter = middleware.NewRateLimiter(middleware.RateLimit{}, logger)
	}
	return &Server{cfg: cfg, ledger: ledger, index: indexer, auth: auth, limiter: limiter, logger: logger}, nil
}

// Handler builds the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Observe(s.logger))
	r.Use(middleware.CORS(s.cfg.AllowedOrigins))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		s.mountViews(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Use(s.limiter.Middleware)
		s.mountOps(r)
	})
	return otelhttp.NewHandler(r, "ledgerd")
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(ctx, listener)
}

// Serve runs the HTTP server on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ledgerd listening", slog.String("addr", listener.Addr().String()))
		errCh <- srv.Serve(listener)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return ctx.Err()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ledger.Proxies(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"root":   s.ledger.Root().Hex(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Class string `json:"class"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	class := nativecommon.Classify(err)
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("error", err.Error()))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Class: string(class)})
}

func statusForError(err error) int {
	if errors.Is(err, core.ErrClosed) {
		return http.StatusServiceUnavailable
	}
	var bad badRequest
	if errors.As(err, &bad) {
		return http.StatusBadRequest
	}
	switch nativecommon.Classify(err) {
	case nativecommon.ClassAuthorization, nativecommon.ClassEligibility:
		return http.StatusForbidden
	case nativecommon.ClassQuota:
		return http.StatusTooManyRequests
	case nativecommon.ClassState:
		return http.StatusConflict
	case nativecommon.ClassValue:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// badRequest marks malformed input that never reached the ledger.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return badRequest{msg: fmt.Sprintf(format, args...)}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return badRequestf("decode body: %v", err)
	}
	return nil
}

func parseAccount(field, raw string) ([20]byte, error) {
	acct, err := crypto.ParseAccount(raw)
	if err != nil {
		return [20]byte{}, badRequestf("%s: %v", field, err)
	}
	return acct, nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, badRequestf("%s required", field)
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, badRequestf("%s: invalid integer %q", field, raw)
	}
	return v, nil
}

func parseOptionalAmount(field, raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return parseAmount(field, raw)
}

func parseUint(field, raw string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, badRequestf("%s: invalid number %q", field, raw)
	}
	return v, nil
}

func caller(r *http.Request) [20]byte {
	acct, _ := middleware.CallerFromContext(r.Context())
	return acct
}

func symbolParam(r *http.Request) string {
	return nativecommon.NormaliseSymbol(chi.URLParam(r, "symbol"))
}

func addressString(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return crypto.FromRaw(addr).String()
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
