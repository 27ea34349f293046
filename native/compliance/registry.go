package compliance

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"solaire/core/events"
	"solaire/native/access"
	nativecommon "solaire/native/common"
)

const moduleName = "compliance"

var (
	ErrBlacklisted        = nativecommon.Mark(nativecommon.ClassEligibility, errors.New("compliance: address is blacklisted"))
	ErrNotWhitelisted     = nativecommon.Mark(nativecommon.ClassEligibility, errors.New("compliance: address not whitelisted"))
	ErrEMRTNonCompliant   = nativecommon.Mark(nativecommon.ClassEligibility, errors.New("compliance: EMRT compliance required"))
	ErrDailyLimitExceeded = nativecommon.Mark(nativecommon.ClassQuota, errors.New("compliance: daily transfer limit exceeded"))
	ErrInvalidTier        = nativecommon.Mark(nativecommon.ClassValue, errors.New("compliance: invalid KYC tier"))
	ErrInvalidAmount      = nativecommon.Mark(nativecommon.ClassValue, errors.New("compliance: amount must not be negative"))
	errStateNotConfigured = errors.New("compliance: state not configured")
)

// Policy is the role each registry mutation requires.
var Policy = access.Policy{
	"setWhitelisted":      access.RoleCompliance,
	"setBlacklisted":      access.RoleCompliance,
	"setEMRTCompliance":   access.RoleCompliance,
	"updateKYCStatus":     access.RoleCompliance,
	"setTransactionLimit": access.RoleCompliance,
	"setTransferLimit":    access.RoleCompliance,
}

type registryState interface {
	access.State
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Registry is the single source of truth for account eligibility and limits.
type Registry struct {
	state   registryState
	roles   *access.Table
	emitter events.Emitter
	nowFn   func() time.Time
}

// NewRegistry returns a registry scoped to the compliance role table.
func NewRegistry() *Registry {
	return &Registry{
		roles:   access.NewTable(moduleName, Policy),
		emitter: events.NoopEmitter{},
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// SetState attaches the state backend for account records and tier limits.
func (r *Registry) SetState(state registryState) {
	r.state = state
	r.roles.SetState(state)
}

// SetEmitter configures the sink for compliance notifications.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	r.emitter = emitter
	r.roles.SetEmitter(emitter)
}

// SetNowFunc overrides the clock used for KYC expiry and rolling windows.
func (r *Registry) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	r.nowFn = now
}

// Roles exposes the registry's role table.
func (r *Registry) Roles() *access.Table { return r.roles }

func (r *Registry) now() time.Time { return r.nowFn() }

func (r *Registry) emit(evt events.Event) {
	if r.emitter != nil {
		r.emitter.Emit(evt)
	}
}

func (r *Registry) load(addr [20]byte) (*accountRecord, error) {
	if r.state == nil {
		return nil, errStateNotConfigured
	}
	rec := new(accountRecord)
	if _, err := r.state.KVGet(accountKey(addr), rec); err != nil {
		return nil, err
	}
	rec.normalise()
	return rec, nil
}

func (r *Registry) store(addr [20]byte, rec *accountRecord) error {
	rec.normalise()
	return r.state.KVPut(accountKey(addr), rec)
}

func (r *Registry) mutate(op string, caller, account [20]byte, fn func(*accountRecord) events.Event) error {
	if err := r.roles.Authorize(op, caller); err != nil {
		return err
	}
	rec, err := r.load(account)
	if err != nil {
		return err
	}
	evt := fn(rec)
	if err := r.store(account, rec); err != nil {
		return err
	}
	r.emit(evt)
	return nil
}

// SetWhitelisted sets the whitelist flag. Repeating the same value is harmless.
func (r *Registry) SetWhitelisted(caller, account [20]byte, listed bool) error {
	return r.mutate("setWhitelisted", caller, account, func(rec *accountRecord) events.Event {
		rec.Whitelisted = listed
		return events.ComplianceUpdated{Account: account, Flag: events.FlagWhitelisted, Value: listed}
	})
}

// SetBlacklisted sets the blacklist flag. Blacklisting overrides any whitelist.
func (r *Registry) SetBlacklisted(caller, account [20]byte, listed bool) error {
	return r.mutate("setBlacklisted", caller, account, func(rec *accountRecord) events.Event {
		rec.Blacklisted = listed
		return events.ComplianceUpdated{Account: account, Flag: events.FlagBlacklisted, Value: listed}
	})
}

// SetEMRTCompliance sets the jurisdiction flag checked by EMRT tokens.
func (r *Registry) SetEMRTCompliance(caller, account [20]byte, compliant bool) error {
	return r.mutate("setEMRTCompliance", caller, account, func(rec *accountRecord) events.Event {
		rec.EMRT = compliant
		return events.ComplianceUpdated{Account: account, Flag: events.FlagEMRT, Value: compliant}
	})
}

// UpdateKYCStatus records the account's verification tier and its expiry.
func (r *Registry) UpdateKYCStatus(caller, account [20]byte, tier uint8, expiry time.Time) error {
	if tier > MaxKYCTier {
		return fmt.Errorf("%w: %d", ErrInvalidTier, tier)
	}
	var exp uint64
	if !expiry.IsZero() && expiry.Unix() > 0 {
		exp = uint64(expiry.Unix())
	}
	return r.mutate("updateKYCStatus", caller, account, func(rec *accountRecord) events.Event {
		rec.KYCTier = tier
		rec.KYCExpiry = exp
		return events.KYCUpdated{Account: account, Tier: tier, Expiry: expiry}
	})
}

// SetTransferLimit sets an explicit daily ceiling for account. Zero removes it.
func (r *Registry) SetTransferLimit(caller, account [20]byte, limit *big.Int) error {
	if limit == nil || limit.Sign() < 0 {
		return ErrInvalidAmount
	}
	value := new(big.Int).Set(limit)
	return r.mutate("setTransferLimit", caller, account, func(rec *accountRecord) events.Event {
		rec.DailyLimit = value
		return events.TransferLimitSet{Account: account, Limit: value}
	})
}

// SetTransactionLimit sets the default daily ceiling applied to verified
// accounts of tier that carry no explicit limit.
func (r *Registry) SetTransactionLimit(caller [20]byte, tier uint8, limit *big.Int) error {
	if tier == 0 || tier > MaxKYCTier {
		return fmt.Errorf("%w: %d", ErrInvalidTier, tier)
	}
	if limit == nil || limit.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := r.roles.Authorize("setTransactionLimit", caller); err != nil {
		return err
	}
	if r.state == nil {
		return errStateNotConfigured
	}
	value := new(big.Int).Set(limit)
	if err := r.state.KVPut(tierLimitKey(tier), value); err != nil {
		return err
	}
	r.emit(events.TierLimitSet{Tier: tier, Limit: value})
	return nil
}

// TransactionLimit returns the default ceiling for tier.
func (r *Registry) TransactionLimit(tier uint8) (*big.Int, error) {
	if r.state == nil {
		return nil, errStateNotConfigured
	}
	limit := new(big.Int)
	if _, err := r.state.KVGet(tierLimitKey(tier), limit); err != nil {
		return nil, err
	}
	return limit, nil
}

func (r *Registry) effectiveLimit(rec *accountRecord, now time.Time) (*big.Int, error) {
	if rec.DailyLimit.Sign() > 0 {
		return rec.DailyLimit, nil
	}
	if !rec.kycVerified(now) {
		return nil, nil
	}
	limit, err := r.TransactionLimit(rec.KYCTier)
	if err != nil {
		return nil, err
	}
	if limit.Sign() == 0 {
		return nil, nil
	}
	return limit, nil
}

// CheckEligibility verifies both parties of a movement: blacklist first, then
// whitelist. The zero account stands for mint sources and burn sinks and is exempt.
func (r *Registry) CheckEligibility(parties ...[20]byte) error {
	recs := make([]*accountRecord, len(parties))
	for i, party := range parties {
		if party == ([20]byte{}) {
			continue
		}
		rec, err := r.load(party)
		if err != nil {
			return err
		}
		if rec.Blacklisted {
			return ErrBlacklisted
		}
		recs[i] = rec
	}
	for _, rec := range recs {
		if rec != nil && !rec.Whitelisted {
			return ErrNotWhitelisted
		}
	}
	return nil
}

// CheckEMRT verifies every non-zero party carries the EMRT flag.
func (r *Registry) CheckEMRT(parties ...[20]byte) error {
	for _, party := range parties {
		if party == ([20]byte{}) {
			continue
		}
		rec, err := r.load(party)
		if err != nil {
			return err
		}
		if !rec.EMRT {
			return ErrEMRTNonCompliant
		}
	}
	return nil
}

// CheckLimit reports whether amount would fit inside account's rolling window
// at now without consuming it.
func (r *Registry) CheckLimit(account [20]byte, amount *big.Int, now time.Time) error {
	_, _, err := r.nextWindow(account, amount, now)
	return err
}

// CheckAndConsumeLimit charges amount against account's rolling daily window.
// The window resets once now reaches windowStart + 24h. On failure nothing is
// recorded.
func (r *Registry) CheckAndConsumeLimit(account [20]byte, amount *big.Int, now time.Time) error {
	rec, next, err := r.nextWindow(account, amount, now)
	if err != nil || rec == nil {
		return err
	}
	rec.Used = next.Used
	rec.WindowStart = next.Start
	return r.store(account, rec)
}

func (r *Registry) nextWindow(account [20]byte, amount *big.Int, now time.Time) (*accountRecord, nativecommon.Window, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, nativecommon.Window{}, ErrInvalidAmount
	}
	rec, err := r.load(account)
	if err != nil {
		return nil, nativecommon.Window{}, err
	}
	limit, err := r.effectiveLimit(rec, now)
	if err != nil {
		return nil, nativecommon.Window{}, err
	}
	if limit == nil {
		return nil, nativecommon.Window{}, nil
	}
	prev := nativecommon.Window{Used: rec.Used, Start: rec.WindowStart}
	next, err := nativecommon.ConsumeRolling(limit, prev, amount, now)
	if errors.Is(err, nativecommon.ErrRollingLimitExceeded) {
		return nil, nativecommon.Window{}, fmt.Errorf("%w: limit %s", ErrDailyLimitExceeded, limit)
	}
	if err != nil {
		return nil, nativecommon.Window{}, err
	}
	return rec, next, nil
}

// Status aggregates the account's compliance record as seen now.
func (r *Registry) Status(account [20]byte) (Status, error) {
	rec, err := r.load(account)
	if err != nil {
		return Status{}, err
	}
	now := r.now()
	limit, err := r.effectiveLimit(rec, now)
	if err != nil {
		return Status{}, err
	}
	if limit == nil {
		limit = big.NewInt(0)
	}
	window := nativecommon.Window{Used: rec.Used, Start: rec.WindowStart}.Current(now)
	status := Status{
		Whitelisted:   rec.Whitelisted,
		Blacklisted:   rec.Blacklisted,
		EMRTCompliant: rec.EMRT,
		KYCLevel:      rec.KYCTier,
		KYCVerified:   rec.kycVerified(now),
		DailyLimit:    new(big.Int).Set(limit),
		Used:          window.Used,
	}
	if rec.KYCExpiry > 0 {
		status.KYCExpiry = time.Unix(int64(rec.KYCExpiry), 0).UTC()
	}
	if window.Start == rec.WindowStart && rec.WindowStart > 0 {
		status.WindowStart = time.Unix(int64(rec.WindowStart), 0).UTC()
	}
	return status, nil
}

// IsWhitelisted is a convenience view.
func (r *Registry) IsWhitelisted(account [20]byte) bool {
	rec, err := r.load(account)
	return err == nil && rec.Whitelisted
}

// IsBlacklisted is a convenience view.
func (r *Registry) IsBlacklisted(account [20]byte) bool {
	rec, err := r.load(account)
	return err == nil && rec.Blacklisted
}
