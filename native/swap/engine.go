package swap

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"solaire/core/events"
	"solaire/native/access"
	nativecommon "solaire/native/common"
)

const moduleName = "swap"

const (
	// BpsDenominator is one hundred percent in basis points.
	BpsDenominator uint64 = 10_000
	// DefaultFeeBps is charged on every swap until changed.
	DefaultFeeBps uint64 = 3
	// DefaultMaxSlippageBps bounds the tolerance below the fee-adjusted output.
	DefaultMaxSlippageBps uint64 = 100
)

var (
	ErrInvalidBps          = nativecommon.Mark(nativecommon.ClassValue, errors.New("swap: basis points must not exceed 10000"))
	ErrInvalidAmount       = nativecommon.Mark(nativecommon.ClassValue, errors.New("swap: amount must be positive"))
	ErrAmountOverflow      = nativecommon.Mark(nativecommon.ClassValue, errors.New("swap: amount overflows 256 bits"))
	ErrSlippageExceeded    = nativecommon.Mark(nativecommon.ClassValue, errors.New("swap: slippage exceeded"))
	ErrIdenticalTokens     = nativecommon.Mark(nativecommon.ClassValue, errors.New("swap: identical tokens"))
	ErrZeroOutput          = nativecommon.Mark(nativecommon.ClassValue, errors.New("swap: output rounds to zero"))
	ErrTokenInUnsupported  = nativecommon.Mark(nativecommon.ClassState, errors.New("swap: token in not supported"))
	ErrTokenOutUnsupported = nativecommon.Mark(nativecommon.ClassState, errors.New("swap: token out not supported"))
	ErrUnknownToken        = nativecommon.Mark(nativecommon.ClassState, errors.New("swap: unknown token"))
	ErrAlreadyPaused       = nativecommon.Mark(nativecommon.ClassState, errors.New("swap: already paused"))
	ErrNotPaused           = nativecommon.Mark(nativecommon.ClassState, errors.New("swap: not paused"))
	errStateNotConfigured  = errors.New("swap: state not configured")
	errTokensNotConfigured = errors.New("swap: token registry not configured")
)

// Policy is the role each privileged swap operation requires.
var Policy = access.Policy{
	"addSupportedToken":    access.RoleAdmin,
	"removeSupportedToken": access.RoleAdmin,
	"setSwapFee":           access.RoleAdmin,
	"setMaxSlippage":       access.RoleAdmin,
	"pause":                access.RolePauser,
	"unpause":              access.RolePauser,
}

var (
	supportedPrefix = []byte("swap/supported/")
	supportedList   = []byte("swap/tokens")
	feeKey          = []byte("swap/fee-bps")
	slippageKey     = []byte("swap/slippage-bps")
	pausedKey       = []byte("swap/paused")
)

// Token is the slice of a token ledger the engine moves funds through.
type Token interface {
	TransferFrom(spender, from, to [20]byte, amount *big.Int) error
	Transfer(caller, to [20]byte, amount *big.Int) error
}

// TokenRegistry resolves token symbols to their ledgers.
type TokenRegistry interface {
	Token(symbol string) (Token, bool)
}

type engineState interface {
	access.State
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVRemove(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Quote is the outcome of pricing a swap.
type Quote struct {
	ExpectedOut *big.Int
	MinOut      *big.Int
	Fee         *big.Int
}

// Engine exchanges supported stablecoins 1:1 less a fee, holding liquidity
// under its own address.
type Engine struct {
	address [20]byte

	state   engineState
	roles   *access.Table
	tokens  TokenRegistry
	pauses  nativecommon.PauseView
	emitter events.Emitter
	guard   nativecommon.ReentrancyGuard
}

// NewEngine creates a swap engine that holds liquidity under address.
func NewEngine(address [20]byte) *Engine {
	return &Engine{
		address: address,
		roles:   access.NewTable(moduleName, Policy),
		emitter: events.NoopEmitter{},
	}
}

// SetState attaches the state backend for supported tokens and parameters.
func (e *Engine) SetState(state engineState) {
	e.state = state
	e.roles.SetState(state)
}

// SetTokens sets the registry used to resolve token engines by symbol.
func (e *Engine) SetTokens(tokens TokenRegistry) { e.tokens = tokens }

// SetPauses sets the upstream pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Roles exposes the swap role table.
func (e *Engine) Roles() *access.Table { return e.roles }

// Address is the account that holds swap liquidity.
func (e *Engine) Address() [20]byte { return e.address }

// SetEmitter configures the sink for swap notifications.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
	e.roles.SetEmitter(emitter)
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

func normaliseToken(token string) string {
	return nativecommon.NormaliseSymbol(token)
}

func supportedKey(symbol string) []byte {
	return append(append([]byte(nil), supportedPrefix...), symbol...)
}

// Paused reports whether the engine's own switch or an upstream switch is on.
func (e *Engine) Paused() bool {
	return e.ownPaused() || (e.pauses != nil && e.pauses.IsPaused(moduleName))
}

func (e *Engine) ownPaused() bool {
	if e.state == nil {
		return false
	}
	var paused bool
	ok, err := e.state.KVGet(pausedKey, &paused)
	return err == nil && ok && paused
}

func (e *Engine) whenNotPaused() error {
	if e.ownPaused() {
		return fmt.Errorf("%s: %w", moduleName, nativecommon.ErrModulePaused)
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) readBps(key []byte, fallback uint64) (uint64, error) {
	if e.state == nil {
		return 0, errStateNotConfigured
	}
	var value uint64
	ok, err := e.state.KVGet(key, &value)
	if err != nil {
		return 0, err
	}
	if !ok {
		return fallback, nil
	}
	return value, nil
}

// SwapFee returns the fee in basis points.
func (e *Engine) SwapFee() (uint64, error) { return e.readBps(feeKey, DefaultFeeBps) }

// MaxSlippage returns the tolerated slippage in basis points.
func (e *Engine) MaxSlippage() (uint64, error) { return e.readBps(slippageKey, DefaultMaxSlippageBps) }

// IsSupported reports whether token may be swapped.
func (e *Engine) IsSupported(token string) bool {
	if e.state == nil {
		return false
	}
	var supported bool
	ok, err := e.state.KVGet(supportedKey(normaliseToken(token)), &supported)
	return err == nil && ok && supported
}

// SupportedTokens lists swappable symbols in the order they were added.
func (e *Engine) SupportedTokens() ([]string, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	var raw [][]byte
	if err := e.state.KVGetList(supportedList, &raw); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, b := range raw {
		out = append(out, string(b))
	}
	return out, nil
}

// AddSupportedToken makes token swappable.
func (e *Engine) AddSupportedToken(caller [20]byte, token string) error {
	return e.setSupported(caller, "addSupportedToken", token, true)
}

// RemoveSupportedToken stops token from being swapped.
func (e *Engine) RemoveSupportedToken(caller [20]byte, token string) error {
	return e.setSupported(caller, "removeSupportedToken", token, false)
}

func (e *Engine) setSupported(caller [20]byte, op, token string, supported bool) error {
	if e.state == nil {
		return errStateNotConfigured
	}
	if err := e.roles.Authorize(op, caller); err != nil {
		return err
	}
	symbol := normaliseToken(token)
	if symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrUnknownToken)
	}
	if supported {
		if e.tokens == nil {
			return errTokensNotConfigured
		}
		if _, ok := e.tokens.Token(symbol); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownToken, symbol)
		}
	}
	if err := e.state.KVPut(supportedKey(symbol), supported); err != nil {
		return err
	}
	if supported {
		if err := e.state.KVAppend(supportedList, []byte(symbol)); err != nil {
			return err
		}
	} else if err := e.state.KVRemove(supportedList, []byte(symbol)); err != nil {
		return err
	}
	e.emit(events.SupportedTokenUpdated{Token: symbol, Supported: supported})
	return nil
}

// SetSwapFee updates the fee charged on each swap.
func (e *Engine) SetSwapFee(caller [20]byte, bps uint64) error {
	return e.setBps(caller, "setSwapFee", feeKey, bps)
}

// SetMaxSlippage updates the tolerance callers may request below the expected output.
func (e *Engine) SetMaxSlippage(caller [20]byte, bps uint64) error {
	return e.setBps(caller, "setMaxSlippage", slippageKey, bps)
}

func (e *Engine) setBps(caller [20]byte, op string, key []byte, bps uint64) error {
	if e.state == nil {
		return errStateNotConfigured
	}
	if err := e.roles.Authorize(op, caller); err != nil {
		return err
	}
	if bps > BpsDenominator {
		return fmt.Errorf("%w: %d", ErrInvalidBps, bps)
	}
	if err := e.state.KVPut(key, bps); err != nil {
		return err
	}
	fee, err := e.SwapFee()
	if err != nil {
		return err
	}
	slippage, err := e.MaxSlippage()
	if err != nil {
		return err
	}
	e.emit(events.SwapParametersUpdated{FeeBps: fee, MaxSlippageBps: slippage})
	return nil
}

// ComputeQuote prices amountIn with the given fee and slippage using exact
// 256-bit integer arithmetic. The fee rounds down, so expectedOut is
// amountIn - floor(amountIn*fee/10000).
func ComputeQuote(amountIn *big.Int, feeBps, slippageBps uint64) (Quote, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return Quote{}, ErrInvalidAmount
	}
	if feeBps > BpsDenominator || slippageBps > BpsDenominator {
		return Quote{}, ErrInvalidBps
	}
	in, overflow := uint256.FromBig(amountIn)
	if overflow {
		return Quote{}, ErrAmountOverflow
	}
	denom := uint256.NewInt(BpsDenominator)
	fee, overflow := new(uint256.Int).MulOverflow(in, uint256.NewInt(feeBps))
	if overflow {
		return Quote{}, ErrAmountOverflow
	}
	fee.Div(fee, denom)
	expected := new(uint256.Int).Sub(in, fee)
	minOut, overflow := new(uint256.Int).MulOverflow(expected, uint256.NewInt(BpsDenominator-slippageBps))
	if overflow {
		return Quote{}, ErrAmountOverflow
	}
	minOut.Div(minOut, denom)
	return Quote{ExpectedOut: expected.ToBig(), MinOut: minOut.ToBig(), Fee: fee.ToBig()}, nil
}

// GetAmountOut quotes a swap at the current fee and slippage settings.
func (e *Engine) GetAmountOut(tokenIn, tokenOut string, amountIn *big.Int) (*big.Int, *big.Int, error) {
	quote, err := e.quote(tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, nil, err
	}
	return quote.ExpectedOut, quote.MinOut, nil
}

func (e *Engine) quote(tokenIn, tokenOut string, amountIn *big.Int) (Quote, error) {
	in, out := normaliseToken(tokenIn), normaliseToken(tokenOut)
	if !e.IsSupported(in) {
		return Quote{}, fmt.Errorf("%w: %s", ErrTokenInUnsupported, in)
	}
	if !e.IsSupported(out) {
		return Quote{}, fmt.Errorf("%w: %s", ErrTokenOutUnsupported, out)
	}
	fee, err := e.SwapFee()
	if err != nil {
		return Quote{}, err
	}
	slippage, err := e.MaxSlippage()
	if err != nil {
		return Quote{}, err
	}
	return ComputeQuote(amountIn, fee, slippage)
}

// Swap pulls amountIn of tokenIn from caller, which must have approved the
// engine, and pays the fee-adjusted amount of tokenOut from the engine's
// liquidity. A nil or zero callerMinOut uses the engine minimum.
func (e *Engine) Swap(caller [20]byte, tokenIn, tokenOut string, amountIn, callerMinOut *big.Int) (*big.Int, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	if e.tokens == nil {
		return nil, errTokensNotConfigured
	}
	if err := e.whenNotPaused(); err != nil {
		return nil, err
	}
	if err := e.guard.Enter(); err != nil {
		return nil, err
	}
	defer e.guard.Exit()

	in, out := normaliseToken(tokenIn), normaliseToken(tokenOut)
	if in == out {
		return nil, fmt.Errorf("%w: %s", ErrIdenticalTokens, in)
	}
	quote, err := e.quote(in, out, amountIn)
	if err != nil {
		return nil, err
	}
	if quote.ExpectedOut.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrZeroOutput, amountIn, in)
	}
	floor := quote.MinOut
	if callerMinOut != nil && callerMinOut.Sign() > 0 {
		if callerMinOut.Cmp(quote.MinOut) < 0 {
			return nil, fmt.Errorf("%w: requested minimum %s below tolerated %s", ErrSlippageExceeded, callerMinOut, quote.MinOut)
		}
		floor = callerMinOut
	}
	if quote.ExpectedOut.Cmp(floor) < 0 {
		return nil, fmt.Errorf("%w: output %s below minimum %s", ErrSlippageExceeded, quote.ExpectedOut, floor)
	}
	inToken, ok := e.tokens.Token(in)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, in)
	}
	outToken, ok := e.tokens.Token(out)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, out)
	}
	if err := inToken.TransferFrom(e.address, caller, e.address, amountIn); err != nil {
		return nil, err
	}
	if err := outToken.Transfer(e.address, caller, quote.ExpectedOut); err != nil {
		return nil, err
	}
	e.emit(events.TokenSwapped{
		Account:   caller,
		TokenIn:   in,
		TokenOut:  out,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: new(big.Int).Set(quote.ExpectedOut),
		Fee:       quote.Fee,
	})
	return quote.ExpectedOut, nil
}

// Pause engages the engine's own switch.
func (e *Engine) Pause(caller [20]byte) error {
	return e.setPaused(caller, "pause", true)
}

// Unpause releases the engine's own switch.
func (e *Engine) Unpause(caller [20]byte) error {
	return e.setPaused(caller, "unpause", false)
}

func (e *Engine) setPaused(caller [20]byte, op string, paused bool) error {
	if e.state == nil {
		return errStateNotConfigured
	}
	if err := e.roles.Authorize(op, caller); err != nil {
		return err
	}
	current := e.ownPaused()
	if paused && current {
		return ErrAlreadyPaused
	}
	if !paused && !current {
		return ErrNotPaused
	}
	if err := e.state.KVPut(pausedKey, paused); err != nil {
		return err
	}
	if paused {
		e.emit(events.Paused{Module: moduleName, Account: caller})
	} else {
		e.emit(events.Unpaused{Module: moduleName, Account: caller})
	}
	return nil
}
