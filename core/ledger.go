package core

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"solaire/config"
	"solaire/core/events"
	"solaire/core/state"
	"solaire/crypto"
	"solaire/native/bank"
	nativecommon "solaire/native/common"
	"solaire/native/compliance"
	"solaire/native/governance"
	"solaire/native/oracle"
	"solaire/native/swap"
	"solaire/native/token"
	"solaire/native/vault"
	"solaire/observability"
	"solaire/storage"
)

var (
	ErrUnknownToken = nativecommon.Mark(nativecommon.ClassState, errors.New("ledger: unknown token"))
	ErrUnknownScope = nativecommon.Mark(nativecommon.ClassState, errors.New("ledger: unknown scope"))
	ErrClosed       = errors.New("ledger: closed")
)

var (
	// VaultAccount holds deposited native collateral.
	VaultAccount = crypto.ModuleAddress("vault")
	// SwapAccount holds swap liquidity.
	SwapAccount = crypto.ModuleAddress("swap")
)

// Ledger serialises every operation against one state overlay. Each call runs
// inside a snapshot; it commits and publishes its events on success and is
// rolled back without events on failure.
type Ledger struct {
	mu     sync.Mutex
	closed bool

	db     storage.Database
	state  *state.Manager
	buffer *events.Buffer
	hub    *Hub
	sink   events.Emitter
	logger *slog.Logger
	nowFn  func() time.Time
	quota  nativecommon.Quota

	bank       *bank.Ledger
	controller *governance.Controller
	compliance *compliance.Registry
	tokens     map[string]*token.Engine
	symbols    []string
	vault      *vault.Engine
	swap       *swap.Engine
	prices     *oracle.Reader
	feed       oracle.Feed
}

// Option customises a Ledger at construction.
type Option func(*Ledger)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithNowFunc overrides the clock shared by every component.
func WithNowFunc(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.nowFn = now
		}
	}
}

// WithFeed replaces the configured price feed.
func WithFeed(feed oracle.Feed) Option {
	return func(l *Ledger) { l.feed = feed }
}

// WithSink receives every committed event in addition to subscribers.
func WithSink(sink events.Emitter) Option {
	return func(l *Ledger) { l.sink = sink }
}

// New wires every component over db and, on an empty database, applies the
// deployment's genesis.
func New(db storage.Database, cfg *config.Config, opts ...Option) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger: database required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("ledger: config required")
	}
	mgr, err := state.NewManager(db)
	if err != nil {
		return nil, err
	}
	l := &Ledger{
		db:     db,
		state:  mgr,
		buffer: &events.Buffer{},
		hub:    NewHub(),
		logger: slog.Default(),
		nowFn:  func() time.Time { return time.Now().UTC() },
		quota: nativecommon.Quota{
			MaxRequestsPerEpoch: cfg.Quota.MaxRequestsPerEpoch,
			EpochSeconds:        cfg.Quota.EpochSeconds,
		},
		tokens: make(map[string]*token.Engine),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.feed == nil {
		feed, err := feedFromConfig(cfg.Oracle, l.nowFn)
		if err != nil {
			return nil, err
		}
		l.feed = feed
	}
	if err := l.wire(cfg); err != nil {
		return nil, err
	}
	var done bool
	if _, err := l.state.KVGet(genesisKey, &done); err != nil {
		return nil, err
	}
	if !done {
		if err := l.genesis(cfg); err != nil {
			return nil, fmt.Errorf("genesis: %w", err)
		}
	}
	return l, nil
}

// Open opens the deployment's storage backend under DataDir and the ledger on
// top of it. The ledger owns the database and closes it on Close.
func Open(cfg *config.Config, opts ...Option) (*Ledger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ledger: config required")
	}
	path := StatePath(cfg.StorageBackend, cfg.DataDir)
	if path != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: create data dir: %w", err)
		}
	}
	db, err := storage.Open(cfg.StorageBackend, path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open storage: %w", err)
	}
	l, err := New(db, cfg, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// StatePath resolves where a backend keeps its files inside dataDir.
func StatePath(backend, dataDir string) string {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case storage.BackendBolt:
		return filepath.Join(dataDir, "state.db")
	case storage.BackendLevelDB:
		return filepath.Join(dataDir, "state")
	default:
		return ""
	}
}

func feedFromConfig(cfg config.Oracle, now func() time.Time) (oracle.Feed, error) {
	switch cfg.Kind {
	case "http":
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		return oracle.NewHTTPFeed(&http.Client{Timeout: timeout}, cfg.Endpoint, cfg.Decimals, cfg.RequestsPerSecond, timeout)
	default:
		answer, err := config.ParseAmount(cfg.InitialAnswer)
		if err != nil {
			return nil, err
		}
		mock := oracle.NewMockAggregator(cfg.Decimals, answer)
		mock.SetNowFunc(now)
		return mock, nil
	}
}

func (l *Ledger) wire(cfg *config.Config) error {
	emitter := l.buffer
	pauses := nativecommon.PauseSet{}

	l.bank = bank.NewLedger(l.state)

	l.controller = governance.NewController()
	l.controller.SetState(l.state)
	l.controller.SetEmitter(emitter)
	l.controller.SetNowFunc(l.nowFn)
	if err := l.controller.SetTimelock(time.Duration(cfg.Governance.TimelockSeconds) * time.Second); err != nil {
		return err
	}
	pauses = append(pauses, l.controller)

	l.compliance = compliance.NewRegistry()
	l.compliance.SetState(l.state)
	l.compliance.SetEmitter(emitter)
	l.compliance.SetNowFunc(l.nowFn)

	for _, sc := range cfg.Stablecoins {
		kind, err := token.ParseKind(sc.Kind)
		if err != nil {
			return err
		}
		minTransfer, err := config.ParseAmount(sc.MinTransfer)
		if err != nil {
			return err
		}
		tok, err := token.NewEngine(token.Config{
			Symbol:      sc.Symbol,
			Name:        sc.Name,
			Currency:    sc.Currency,
			Kind:        kind,
			Decimals:    sc.Decimals,
			MinTransfer: minTransfer,
		})
		if err != nil {
			return err
		}
		if _, exists := l.tokens[tok.Symbol()]; exists {
			return fmt.Errorf("token %s declared twice", tok.Symbol())
		}
		tok.SetState(l.state)
		tok.SetCompliance(l.compliance)
		tok.SetPauses(pauses)
		tok.SetEmitter(emitter)
		tok.SetNowFunc(l.nowFn)
		l.tokens[tok.Symbol()] = tok
		l.symbols = append(l.symbols, tok.Symbol())
	}

	l.prices = oracle.NewReader(l.feed, time.Duration(cfg.Oracle.MaxAgeSeconds)*time.Second)
	l.prices.SetNowFunc(l.nowFn)

	l.vault = vault.NewEngine(VaultAccount)
	l.vault.SetState(l.state)
	l.vault.SetBank(l.bank)
	l.vault.SetPriceSource(l.prices)
	l.vault.SetPayer(vaultPayer{ledger: l})
	l.vault.SetPauses(pauses)
	l.vault.SetNativeDecimals(cfg.Vault.NativeDecimals)
	l.vault.SetEmitter(emitter)

	l.swap = swap.NewEngine(SwapAccount)
	l.swap.SetState(l.state)
	l.swap.SetTokens(swapTokens{ledger: l})
	l.swap.SetPauses(pauses)
	l.swap.SetEmitter(emitter)
	return nil
}

func (l *Ledger) now() time.Time { return l.nowFn() }

// Execute runs fn as one atomic operation on behalf of caller. module and op
// label logs and metrics and key the caller's quota.
func (l *Ledger) Execute(module, op string, caller [20]byte, fn func() error) error {
	start := time.Now()
	l.mu.Lock()
	err := l.execute(module, op, caller, fn)
	l.mu.Unlock()
	observability.Ledger().Observe(module, op, time.Since(start), err)
	attrs := []any{
		slog.String("module", module),
		slog.String("op", op),
		slog.String("caller", crypto.FromRaw(caller).String()),
		slog.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("class", string(nativecommon.Classify(err))), slog.String("error", err.Error()))
		l.logger.Warn("ledger operation rejected", attrs...)
	} else {
		l.logger.Debug("ledger operation committed", attrs...)
	}
	return err
}

func (l *Ledger) execute(module, op string, caller [20]byte, fn func() error) (err error) {
	if l.closed {
		return ErrClosed
	}
	snapshot := l.state.Snapshot()
	l.buffer.Reset()
	defer func() {
		if r := recover(); r != nil {
			err = nativecommon.Mark(nativecommon.ClassInternal, fmt.Errorf("ledger: %s.%s panicked: %v", module, op, r))
		}
		if err != nil {
			l.state.RevertToSnapshot(snapshot)
			l.buffer.Reset()
		}
	}()
	if err = l.consumeQuota(module, caller); err != nil {
		observability.Ledger().RecordThrottle(module, "quota_exceeded")
		return err
	}
	if err = fn(); err != nil {
		return err
	}
	if _, err = l.state.Commit(); err != nil {
		return err
	}
	committed := l.buffer.Flush(events.Fanout{l.hub, l.sink})
	l.recordCommitted(committed)
	return nil
}

func (l *Ledger) recordCommitted(committed []events.Event) {
	metrics := observability.Ledger()
	vaultTouched := false
	for _, evt := range committed {
		observability.Events().Record(evt.EventType())
		switch e := evt.(type) {
		case events.TokenSwapped:
			metrics.AddSwapVolume(e.TokenIn, e.TokenOut, e.AmountIn)
		case events.Deposited, events.Withdrawn, events.EmergencyWithdrawn:
			vaultTouched = true
		}
	}
	if vaultTouched {
		if total, err := l.vault.TotalDeposits(); err == nil {
			metrics.SetVaultDeposits(total)
		}
	}
	l.recordPauses()
}

func quotaKey(module string, caller [20]byte) []byte {
	return append([]byte("ledger/quota/"+module+"/"), caller[:]...)
}

func (l *Ledger) consumeQuota(module string, caller [20]byte) error {
	if l.quota.MaxRequestsPerEpoch == 0 || l.quota.EpochSeconds == 0 {
		return nil
	}
	var prev nativecommon.QuotaNow
	if _, err := l.state.KVGet(quotaKey(module, caller), &prev); err != nil {
		return err
	}
	next, err := nativecommon.CheckQuota(l.quota, l.quota.EpochOf(l.now().Unix()), prev, 1)
	if err != nil {
		return err
	}
	return l.state.KVPut(quotaKey(module, caller), next)
}

func (l *Ledger) recordPauses() {
	metrics := observability.Ledger()
	metrics.SetPaused("governance", l.controller.Paused())
	metrics.SetPaused("vault", l.vault.Paused())
	metrics.SetPaused("swap", l.swap.Paused())
	for _, sym := range l.symbols {
		metrics.SetPaused("token/"+sym, l.tokens[sym].Paused())
	}
}

// View runs fn under the ledger lock without opening an operation.
func (l *Ledger) View(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	return fn()
}

// Subscribe streams committed events until cancel is called. Subscribers that
// fall behind miss events; durable consumers should use WithSink.
func (l *Ledger) Subscribe(buffer int) (<-chan events.Event, func()) {
	return l.hub.Subscribe(buffer)
}

// DroppedEvents counts deliveries skipped for lagging subscribers.
func (l *Ledger) DroppedEvents() uint64 { return l.hub.Dropped() }

// Root returns the hash chaining every committed operation.
func (l *Ledger) Root() common.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Root()
}

// Close stops accepting operations and closes the database.
func (l *Ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.hub.Close()
	l.db.Close()
}

func (l *Ledger) token(symbol string) (*token.Engine, error) {
	sym := nativecommon.NormaliseSymbol(symbol)
	tok, ok := l.tokens[sym]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, sym)
	}
	return tok, nil
}

// Symbols lists the deployed tokens in declaration order.
func (l *Ledger) Symbols() []string {
	return append([]string(nil), l.symbols...)
}

// Modules returns the component names accepted by pause and role operations.
func (l *Ledger) Modules() []string {
	out := []string{"governance", "compliance", "vault", "swap"}
	for _, sym := range l.symbols {
		out = append(out, "token/"+sym)
	}
	sort.Strings(out[4:])
	return out
}
