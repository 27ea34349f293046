package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"solaire/core/events"
	"solaire/native/access"
	nativecommon "solaire/native/common"
)

const moduleName = "token"

var (
	ErrInvalidAmount         = nativecommon.Mark(nativecommon.ClassValue, errors.New("token: amount must be positive"))
	ErrInsufficientBalance   = nativecommon.Mark(nativecommon.ClassValue, errors.New("token: transfer amount exceeds balance"))
	ErrInsufficientAllowance = nativecommon.Mark(nativecommon.ClassValue, errors.New("token: insufficient allowance"))
	ErrBelowMinimumTransfer  = nativecommon.Mark(nativecommon.ClassValue, errors.New("token: transfer amount too small"))
	ErrZeroAddress           = nativecommon.Mark(nativecommon.ClassValue, errors.New("token: zero address"))
	ErrAlreadyPaused         = nativecommon.Mark(nativecommon.ClassState, errors.New("token: already paused"))
	ErrNotPaused             = nativecommon.Mark(nativecommon.ClassState, errors.New("token: not paused"))
	ErrUnsupportedOperation  = nativecommon.Mark(nativecommon.ClassState, errors.New("token: operation not supported by this token kind"))
	errStateNotConfigured    = errors.New("token: state not configured")
	errComplianceMissing     = errors.New("token: compliance registry not configured")
)

// Policy is the role each privileged token operation requires.
var Policy = access.Policy{
	"mint":               access.RoleMinter,
	"burn":               access.RoleBurner,
	"pause":              access.RolePauser,
	"unpause":            access.RolePauser,
	"updateCollateral":   access.RoleCollateralManager,
	"registerIban":       access.RoleCompliance,
	"addGoldBar":         access.RoleAdmin,
	"deactivateGoldBar":  access.RoleAdmin,
	"assignBarOwnership": access.RoleAdmin,
}

// Compliance is the subset of the registry a token consults on every movement.
type Compliance interface {
	CheckEligibility(parties ...[20]byte) error
	CheckEMRT(parties ...[20]byte) error
	CheckAndConsumeLimit(account [20]byte, amount *big.Int, now time.Time) error
}

type engineState interface {
	access.State
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVRemove(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Engine is a single compliance-gated stablecoin.
type Engine struct {
	symbol      string
	name        string
	currency    string
	kind        Kind
	decimals    uint8
	minTransfer *big.Int

	state      engineState
	roles      *access.Table
	compliance Compliance
	pauses     nativecommon.PauseView
	emitter    events.Emitter
	nowFn      func() time.Time
}

// NewEngine builds a token from cfg. Backed tokens default their transfer floor
// to DefaultMinTransfer.
func NewEngine(cfg Config) (*Engine, error) {
	symbol := nativecommon.NormaliseSymbol(cfg.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("token: symbol required")
	}
	kind := cfg.Kind
	if kind == "" {
		kind = KindStandard
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	var floor *big.Int
	if kind == KindBacked {
		floor = new(big.Int).Set(DefaultMinTransfer)
		if cfg.MinTransfer != nil {
			floor.Set(cfg.MinTransfer)
		}
	}
	return &Engine{
		symbol:      symbol,
		name:        strings.TrimSpace(cfg.Name),
		currency:    strings.ToUpper(strings.TrimSpace(cfg.Currency)),
		kind:        kind,
		decimals:    cfg.Decimals,
		minTransfer: floor,
		roles:       access.NewTable(moduleName+"/"+symbol, Policy),
		emitter:     events.NoopEmitter{},
		nowFn:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetState attaches the state backend for balances, allowances and bars.
func (e *Engine) SetState(state engineState) {
	e.state = state
	e.roles.SetState(state)
}

// SetCompliance sets the registry consulted before every movement.
func (e *Engine) SetCompliance(c Compliance) { e.compliance = c }

// SetPauses sets the upstream pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetEmitter configures the sink for token notifications.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
	e.roles.SetEmitter(emitter)
}

// SetNowFunc overrides the clock used for limits and message timestamps.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	e.nowFn = now
}

// Roles exposes the token role table.
func (e *Engine) Roles() *access.Table { return e.roles }
func (e *Engine) Symbol() string       { return e.symbol }
func (e *Engine) Name() string         { return e.name }
func (e *Engine) Currency() string     { return e.currency }
func (e *Engine) Kind() Kind           { return e.kind }
func (e *Engine) Decimals() uint8      { return e.decimals }

// MinTransfer returns the transfer floor, or nil when the token has none.
func (e *Engine) MinTransfer() *big.Int {
	if e.minTransfer == nil {
		return nil
	}
	return new(big.Int).Set(e.minTransfer)
}

func (e *Engine) now() time.Time { return e.nowFn() }

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

func (e *Engine) ready() error {
	if e.state == nil {
		return errStateNotConfigured
	}
	if e.compliance == nil {
		return errComplianceMissing
	}
	return nil
}

// Paused reports whether the token's own switch or an upstream switch is on.
func (e *Engine) Paused() bool {
	return e.ownPaused() || (e.pauses != nil && e.pauses.IsPaused(moduleName))
}

func (e *Engine) ownPaused() bool {
	if e.state == nil {
		return false
	}
	var paused bool
	ok, err := e.state.KVGet(e.pausedKey(), &paused)
	return err == nil && ok && paused
}

func (e *Engine) guard() error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.ownPaused() {
		return fmt.Errorf("%s: %w", e.symbol, nativecommon.ErrModulePaused)
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) readAmount(key []byte) (*big.Int, error) {
	out := new(big.Int)
	if _, err := e.state.KVGet(key, out); err != nil {
		return nil, err
	}
	return out, nil
}

// BalanceOf returns addr's balance.
func (e *Engine) BalanceOf(addr [20]byte) (*big.Int, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.readAmount(e.balanceKey(addr))
}

// TotalSupply returns the outstanding supply.
func (e *Engine) TotalSupply() (*big.Int, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.readAmount(e.supplyKey())
}

// Allowance returns how much spender may move on behalf of owner.
func (e *Engine) Allowance(owner, spender [20]byte) (*big.Int, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.readAmount(e.allowanceKey(owner, spender))
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e *Engine) checkParties(parties ...[20]byte) error {
	if err := e.compliance.CheckEligibility(parties...); err != nil {
		return err
	}
	if e.kind == KindEMRT {
		return e.compliance.CheckEMRT(parties...)
	}
	return nil
}

// Mint creates amount for to. Mints skip the daily limit and the transfer floor.
func (e *Engine) Mint(caller, to [20]byte, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if err := e.roles.Authorize("mint", caller); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	if err := e.checkParties(to); err != nil {
		return err
	}
	bal, err := e.BalanceOf(to)
	if err != nil {
		return err
	}
	supply, err := e.TotalSupply()
	if err != nil {
		return err
	}
	if err := e.state.KVPut(e.balanceKey(to), bal.Add(bal, amount)); err != nil {
		return err
	}
	if err := e.state.KVPut(e.supplyKey(), supply.Add(supply, amount)); err != nil {
		return err
	}
	e.emit(events.Mint{Token: e.symbol, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Burn destroys amount held by from. Burns skip the daily limit and the floor.
func (e *Engine) Burn(caller, from [20]byte, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if err := e.roles.Authorize("burn", caller); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := e.checkParties(from); err != nil {
		return err
	}
	bal, err := e.BalanceOf(from)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	supply, err := e.TotalSupply()
	if err != nil {
		return err
	}
	if err := e.state.KVPut(e.balanceKey(from), bal.Sub(bal, amount)); err != nil {
		return err
	}
	if err := e.state.KVPut(e.supplyKey(), supply.Sub(supply, amount)); err != nil {
		return err
	}
	e.emit(events.Burn{Token: e.symbol, From: from, Amount: new(big.Int).Set(amount)})
	return nil
}

// Transfer moves amount from caller to to.
func (e *Engine) Transfer(caller, to [20]byte, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.move(caller, to, amount)
}

// Approve sets spender's allowance over caller's balance.
func (e *Engine) Approve(caller, spender [20]byte, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if spender == ([20]byte{}) {
		return ErrZeroAddress
	}
	if err := e.state.KVPut(e.allowanceKey(caller, spender), new(big.Int).Set(amount)); err != nil {
		return err
	}
	e.emit(events.Approval{Token: e.symbol, Owner: caller, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// TransferFrom moves amount from from to to against spender's allowance. The
// daily limit is charged to from.
func (e *Engine) TransferFrom(spender, from, to [20]byte, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	allowance, err := e.Allowance(from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := e.move(from, to, amount); err != nil {
		return err
	}
	return e.state.KVPut(e.allowanceKey(from, spender), allowance.Sub(allowance, amount))
}

// move applies the shared transfer checks: eligibility (blacklist before
// whitelist), the EMRT flag, the floor and balance, then the sender's daily
// limit, and only then writes balances.
func (e *Engine) move(from, to [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if from == ([20]byte{}) || to == ([20]byte{}) {
		return ErrZeroAddress
	}
	if err := e.checkParties(from, to); err != nil {
		return err
	}
	if e.minTransfer != nil && amount.Cmp(e.minTransfer) < 0 {
		return fmt.Errorf("%w: minimum %s", ErrBelowMinimumTransfer, e.minTransfer)
	}
	fromBal, err := e.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := e.compliance.CheckAndConsumeLimit(from, amount, e.now()); err != nil {
		return err
	}
	if from != to {
		toBal, err := e.BalanceOf(to)
		if err != nil {
			return err
		}
		if err := e.state.KVPut(e.balanceKey(from), fromBal.Sub(fromBal, amount)); err != nil {
			return err
		}
		if err := e.state.KVPut(e.balanceKey(to), toBal.Add(toBal, amount)); err != nil {
			return err
		}
	}
	e.emit(events.Transfer{Token: e.symbol, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// TransferISO20022 performs a transfer and records the payment message with it.
// Message identifiers are opaque and not required to be unique.
func (e *Engine) TransferISO20022(caller, to [20]byte, amount *big.Int, messageID, purpose string) (uint64, error) {
	if err := e.Transfer(caller, to, amount); err != nil {
		return 0, err
	}
	var seq uint64
	if _, err := e.state.KVGet(e.isoSeqKey(), &seq); err != nil {
		return 0, err
	}
	seq++
	msg := &ISO20022Message{
		Sequence:  seq,
		From:      caller,
		To:        to,
		Amount:    new(big.Int).Set(amount),
		MessageID: nativecommon.NormaliseText(messageID),
		Purpose:   nativecommon.NormaliseText(purpose),
		Timestamp: uint64(e.now().Unix()),
	}
	if err := e.state.KVPut(e.isoKey(seq), msg); err != nil {
		return 0, err
	}
	if err := e.state.KVPut(e.isoSeqKey(), seq); err != nil {
		return 0, err
	}
	e.emit(events.ISO20022Transfer{
		Token:     e.symbol,
		Sequence:  seq,
		From:      caller,
		To:        to,
		Amount:    new(big.Int).Set(amount),
		MessageID: msg.MessageID,
		Purpose:   msg.Purpose,
	})
	return seq, nil
}

// ISO20022Message returns a recorded payment message.
func (e *Engine) ISO20022Message(seq uint64) (*ISO20022Message, bool, error) {
	if e.state == nil {
		return nil, false, errStateNotConfigured
	}
	msg := new(ISO20022Message)
	ok, err := e.state.KVGet(e.isoKey(seq), msg)
	if err != nil || !ok {
		return nil, ok, err
	}
	return msg, true, nil
}

// Pause engages the token's own switch.
func (e *Engine) Pause(caller [20]byte) error {
	return e.setPaused(caller, "pause", true)
}

// Unpause releases the token's own switch.
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
	if err := e.state.KVPut(e.pausedKey(), paused); err != nil {
		return err
	}
	if paused {
		e.emit(events.Paused{Module: moduleName + "/" + e.symbol, Account: caller})
	} else {
		e.emit(events.Unpaused{Module: moduleName + "/" + e.symbol, Account: caller})
	}
	return nil
}
