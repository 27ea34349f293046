package vault

import (
	"errors"
	"fmt"
	"math/big"

	"solaire/core/events"
	"solaire/native/access"
	nativecommon "solaire/native/common"
	"solaire/native/oracle"
)

const moduleName = "vault"

// DefaultNativeDecimals is the scale of the native asset.
const DefaultNativeDecimals uint8 = 18

var (
	ErrZeroDeposit           = nativecommon.Mark(nativecommon.ClassValue, errors.New("vault: deposit must be greater than zero"))
	ErrInvalidAmount         = nativecommon.Mark(nativecommon.ClassValue, errors.New("vault: amount must be positive"))
	ErrAmountTooSmall        = nativecommon.Mark(nativecommon.ClassValue, errors.New("vault: amount too small to value"))
	ErrInsufficientDeposit   = nativecommon.Mark(nativecommon.ClassValue, errors.New("vault: insufficient deposit"))
	ErrDepositCeiling        = nativecommon.Mark(nativecommon.ClassQuota, errors.New("vault: deposit ceiling exceeded"))
	ErrUnsupportedStablecoin = nativecommon.Mark(nativecommon.ClassState, errors.New("vault: stablecoin not supported"))
	ErrNoDeposit             = nativecommon.Mark(nativecommon.ClassState, errors.New("vault: no deposit to withdraw"))
	ErrAlreadyPaused         = nativecommon.Mark(nativecommon.ClassState, errors.New("vault: already paused"))
	ErrNotPaused             = nativecommon.Mark(nativecommon.ClassState, errors.New("vault: not paused"))
	errStateNotConfigured    = errors.New("vault: state not configured")
	errDependencyMissing     = errors.New("vault: bank, price source or payer not configured")
)

// Policy is the role each privileged vault operation requires.
var Policy = access.Policy{
	"pause":             access.RolePauser,
	"unpause":           access.RolePauser,
	"addStablecoin":     access.RoleAdmin,
	"removeStablecoin":  access.RoleAdmin,
	"setDepositCeiling": access.RoleAdmin,
}

var (
	depositPrefix    = []byte("vault/deposit/")
	stablePrefix     = []byte("vault/stable/")
	stableListKey    = []byte("vault/stables")
	totalDepositsKey = []byte("vault/total")
	pausedKey        = []byte("vault/paused")
	ceilingKey       = []byte("vault/ceiling")
)

// NativeBank moves the native asset between accounts.
type NativeBank interface {
	Transfer(from, to [20]byte, amount *big.Int) error
}

// PriceSource yields validated native asset prices.
type PriceSource interface {
	CurrentPrice() (oracle.PriceReading, error)
	RoundData(roundID uint64) (oracle.RoundData, error)
}

// StablecoinPayer delivers stablecoins to withdrawing depositors.
type StablecoinPayer interface {
	StablecoinDecimals(token string) (uint8, error)
	PayStablecoin(token string, to [20]byte, amount *big.Int) error
}

type engineState interface {
	access.State
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVRemove(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Engine holds native collateral and pays stablecoins against it at the oracle price.
type Engine struct {
	address        [20]byte
	nativeDecimals uint8

	state   engineState
	roles   *access.Table
	bank    NativeBank
	prices  PriceSource
	payer   StablecoinPayer
	pauses  nativecommon.PauseView
	emitter events.Emitter
	guard   nativecommon.ReentrancyGuard
}

// NewEngine creates a vault that custodies funds under address.
func NewEngine(address [20]byte) *Engine {
	return &Engine{
		address:        address,
		nativeDecimals: DefaultNativeDecimals,
		roles:          access.NewTable(moduleName, Policy),
		emitter:        events.NoopEmitter{},
	}
}

// SetState attaches the state backend holding deposits and vault settings.
func (e *Engine) SetState(state engineState) {
	e.state = state
	e.roles.SetState(state)
}

// SetBank sets the ledger that moves native collateral.
func (e *Engine) SetBank(bank NativeBank) { e.bank = bank }

// SetPriceSource sets the oracle used to value withdrawals.
func (e *Engine) SetPriceSource(prices PriceSource) { e.prices = prices }

// SetPayer sets how stablecoin withdrawals are paid out.
func (e *Engine) SetPayer(payer StablecoinPayer) { e.payer = payer }

// SetPauses sets the upstream pause switches, such as the governance controller.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNativeDecimals sets the precision of the native asset.
func (e *Engine) SetNativeDecimals(decimals uint8) { e.nativeDecimals = decimals }

// Roles exposes the vault role table.
func (e *Engine) Roles() *access.Table { return e.roles }

// Address is the account that holds deposited collateral.
func (e *Engine) Address() [20]byte { return e.address }

// SetEmitter configures the sink for vault notifications.
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

func (e *Engine) ready() error {
	if e.state == nil {
		return errStateNotConfigured
	}
	if e.bank == nil || e.prices == nil || e.payer == nil {
		return errDependencyMissing
	}
	return nil
}

// Paused reports whether the vault's own switch or an upstream switch is on.
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

func depositKey(addr [20]byte) []byte {
	return append(append([]byte(nil), depositPrefix...), addr[:]...)
}

func stableKey(token string) []byte {
	return append(append([]byte(nil), stablePrefix...), token...)
}

func normaliseToken(token string) string {
	return nativecommon.NormaliseSymbol(token)
}

func (e *Engine) readAmount(key []byte) (*big.Int, error) {
	out := new(big.Int)
	if _, err := e.state.KVGet(key, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) writeDeposit(addr [20]byte, amount, delta *big.Int) error {
	if err := e.state.KVPut(depositKey(addr), amount); err != nil {
		return err
	}
	total, err := e.TotalDeposits()
	if err != nil {
		return err
	}
	total.Add(total, delta)
	if total.Sign() < 0 {
		return fmt.Errorf("vault: total deposits underflow")
	}
	return e.state.KVPut(totalDepositsKey, total)
}

// Deposits returns the native amount credited to addr.
func (e *Engine) Deposits(addr [20]byte) (*big.Int, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.readAmount(depositKey(addr))
}

// TotalDeposits sums every outstanding deposit.
func (e *Engine) TotalDeposits() (*big.Int, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.readAmount(totalDepositsKey)
}

// DepositCeiling returns the per-account ceiling; zero means unlimited.
func (e *Engine) DepositCeiling() (*big.Int, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.readAmount(ceilingKey)
}

// Deposit moves amount of the native asset from caller into the vault.
func (e *Engine) Deposit(caller [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.whenNotPaused(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroDeposit
	}
	current, err := e.Deposits(caller)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(current, amount)
	ceiling, err := e.DepositCeiling()
	if err != nil {
		return err
	}
	if ceiling.Sign() > 0 && next.Cmp(ceiling) > 0 {
		return fmt.Errorf("%w: ceiling %s", ErrDepositCeiling, ceiling)
	}
	if err := e.bank.Transfer(caller, e.address, amount); err != nil {
		return err
	}
	if err := e.writeDeposit(caller, next, amount); err != nil {
		return err
	}
	e.emit(events.Deposited{Account: caller, Amount: new(big.Int).Set(amount)})
	return nil
}

// GetEthPrice returns the raw validated oracle answer.
func (e *Engine) GetEthPrice() (*big.Int, error) {
	if e.prices == nil {
		return nil, errDependencyMissing
	}
	reading, err := e.prices.CurrentPrice()
	if err != nil {
		return nil, err
	}
	return reading.Price, nil
}

// GetEthRequiredForStablecoins values stableAmount, expressed with the native
// asset's decimals, in native units at the current price.
func (e *Engine) GetEthRequiredForStablecoins(stableAmount *big.Int) (*big.Int, error) {
	return e.requiredNative(stableAmount, e.nativeDecimals)
}

// RequiredNative values amount of token in native units at the current price.
func (e *Engine) RequiredNative(token string, amount *big.Int) (*big.Int, error) {
	if e.payer == nil {
		return nil, errDependencyMissing
	}
	decimals, err := e.payer.StablecoinDecimals(normaliseToken(token))
	if err != nil {
		return nil, err
	}
	return e.requiredNative(amount, decimals)
}

func (e *Engine) requiredNative(stableAmount *big.Int, stableDecimals uint8) (*big.Int, error) {
	if stableAmount == nil || stableAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if e.prices == nil {
		return nil, errDependencyMissing
	}
	reading, err := e.prices.CurrentPrice()
	if err != nil {
		return nil, err
	}
	return RequiredNative(stableAmount, reading.Price, reading.Decimals, e.nativeDecimals, stableDecimals), nil
}

// RequiredNative computes stable * 10^(feedDecimals+nativeDecimals) /
// (price * 10^stableDecimals), rounding down.
func RequiredNative(stable, price *big.Int, feedDecimals, nativeDecimals, stableDecimals uint8) *big.Int {
	num := new(big.Int).Mul(stable, pow10(uint64(feedDecimals)+uint64(nativeDecimals)))
	den := new(big.Int).Mul(price, pow10(uint64(stableDecimals)))
	return num.Quo(num, den)
}

func pow10(n uint64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), new(big.Int).SetUint64(n), nil)
}

// WithdrawStable converts part of caller's deposit into stableAmount of token.
// The deposit is reduced before the payout is made.
func (e *Engine) WithdrawStable(caller [20]byte, stableAmount *big.Int, token string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.whenNotPaused(); err != nil {
		return err
	}
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	symbol := normaliseToken(token)
	if !e.IsStablecoin(symbol) {
		return fmt.Errorf("%w: %s", ErrUnsupportedStablecoin, symbol)
	}
	required, err := e.RequiredNative(symbol, stableAmount)
	if err != nil {
		return err
	}
	deposit, err := e.Deposits(caller)
	if err != nil {
		return err
	}
	if deposit.Sign() == 0 || deposit.Cmp(required) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientDeposit, deposit, required)
	}
	if required.Sign() == 0 {
		return ErrAmountTooSmall
	}
	if err := e.writeDeposit(caller, new(big.Int).Sub(deposit, required), new(big.Int).Neg(required)); err != nil {
		return err
	}
	if err := e.payer.PayStablecoin(symbol, caller, stableAmount); err != nil {
		return err
	}
	e.emit(events.Withdrawn{
		Account:      caller,
		StableAmount: new(big.Int).Set(stableAmount),
		NativeAmount: required,
		Token:        symbol,
	})
	return nil
}

// EmergencyWithdraw returns caller's whole deposit. It is only available while
// the vault is paused.
func (e *Engine) EmergencyWithdraw(caller [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.Paused() {
		return nil, ErrNotPaused
	}
	if err := e.guard.Enter(); err != nil {
		return nil, err
	}
	defer e.guard.Exit()

	deposit, err := e.Deposits(caller)
	if err != nil {
		return nil, err
	}
	if deposit.Sign() == 0 {
		return nil, ErrNoDeposit
	}
	if err := e.writeDeposit(caller, big.NewInt(0), new(big.Int).Neg(deposit)); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(e.address, caller, deposit); err != nil {
		return nil, err
	}
	e.emit(events.EmergencyWithdrawn{Account: caller, Amount: new(big.Int).Set(deposit)})
	return deposit, nil
}

// GetRoundData exposes a historical oracle round for monitoring.
func (e *Engine) GetRoundData(roundID uint64) (oracle.RoundData, error) {
	if e.prices == nil {
		return oracle.RoundData{}, errDependencyMissing
	}
	return e.prices.RoundData(roundID)
}

// IsStablecoin reports whether token is an accepted payout currency.
func (e *Engine) IsStablecoin(token string) bool {
	if e.state == nil {
		return false
	}
	var supported bool
	ok, err := e.state.KVGet(stableKey(normaliseToken(token)), &supported)
	return err == nil && ok && supported
}

// Stablecoins lists the accepted payout currencies.
func (e *Engine) Stablecoins() ([]string, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	var raw [][]byte
	if err := e.state.KVGetList(stableListKey, &raw); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, b := range raw {
		out = append(out, string(b))
	}
	return out, nil
}

// AddStablecoin accepts token as a payout currency.
func (e *Engine) AddStablecoin(caller [20]byte, token string) error {
	return e.setStablecoin(caller, "addStablecoin", token, true)
}

// RemoveStablecoin stops paying out token.
func (e *Engine) RemoveStablecoin(caller [20]byte, token string) error {
	return e.setStablecoin(caller, "removeStablecoin", token, false)
}

func (e *Engine) setStablecoin(caller [20]byte, op, token string, supported bool) error {
	if e.state == nil {
		return errStateNotConfigured
	}
	if err := e.roles.Authorize(op, caller); err != nil {
		return err
	}
	symbol := normaliseToken(token)
	if symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrUnsupportedStablecoin)
	}
	if supported && e.payer != nil {
		if _, err := e.payer.StablecoinDecimals(symbol); err != nil {
			return err
		}
	}
	if err := e.state.KVPut(stableKey(symbol), supported); err != nil {
		return err
	}
	if supported {
		if err := e.state.KVAppend(stableListKey, []byte(symbol)); err != nil {
			return err
		}
	} else if err := e.state.KVRemove(stableListKey, []byte(symbol)); err != nil {
		return err
	}
	e.emit(events.StablecoinUpdated{Token: symbol, Supported: supported})
	return nil
}

// SetDepositCeiling bounds each account's outstanding deposit. Zero disables it.
func (e *Engine) SetDepositCeiling(caller [20]byte, ceiling *big.Int) error {
	if e.state == nil {
		return errStateNotConfigured
	}
	if err := e.roles.Authorize("setDepositCeiling", caller); err != nil {
		return err
	}
	if ceiling == nil || ceiling.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := e.state.KVPut(ceilingKey, new(big.Int).Set(ceiling)); err != nil {
		return err
	}
	e.emit(events.DepositCeilingUpdated{Ceiling: new(big.Int).Set(ceiling)})
	return nil
}

// Pause engages the vault's own switch.
func (e *Engine) Pause(caller [20]byte) error {
	return e.setPaused(caller, "pause", true)
}

// Unpause releases the vault's own switch.
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
