package bank

import (
	"errors"
	"fmt"
	"math/big"

	nativecommon "solaire/native/common"
)

var (
	ErrInsufficientBalance = nativecommon.Mark(nativecommon.ClassValue, errors.New("bank: insufficient native balance"))
	ErrInvalidAmount       = nativecommon.Mark(nativecommon.ClassValue, errors.New("bank: amount must be positive"))
	errStateNotConfigured  = errors.New("bank: state not configured")
)

var (
	balancePrefix = []byte("bank/balance/")
	supplyKey     = []byte("bank/supply")
)

type bankState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger tracks balances of the native asset.
type Ledger struct {
	state bankState
}

// NewLedger keeps native balances in state.
func NewLedger(state bankState) *Ledger {
	return &Ledger{state: state}
}

func balanceKey(addr [20]byte) []byte {
	return append(append([]byte(nil), balancePrefix...), addr[:]...)
}

// Balance returns addr's native balance.
func (l *Ledger) Balance(addr [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errStateNotConfigured
	}
	out := new(big.Int)
	if _, err := l.state.KVGet(balanceKey(addr), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Supply returns the total native amount ever credited minus debited.
func (l *Ledger) Supply() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errStateNotConfigured
	}
	out := new(big.Int)
	if _, err := l.state.KVGet(supplyKey, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) adjustSupply(delta *big.Int) error {
	supply, err := l.Supply()
	if err != nil {
		return err
	}
	supply.Add(supply, delta)
	if supply.Sign() < 0 {
		return fmt.Errorf("bank: supply underflow")
	}
	return l.state.KVPut(supplyKey, supply)
}

// Credit mints amount into addr. Used for genesis allocations.
func (l *Ledger) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	bal, err := l.Balance(addr)
	if err != nil {
		return err
	}
	if err := l.state.KVPut(balanceKey(addr), bal.Add(bal, amount)); err != nil {
		return err
	}
	return l.adjustSupply(amount)
}

// Debit removes amount from addr.
func (l *Ledger) Debit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	bal, err := l.Balance(addr)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := l.state.KVPut(balanceKey(addr), bal.Sub(bal, amount)); err != nil {
		return err
	}
	return l.adjustSupply(new(big.Int).Neg(amount))
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if from == to {
		bal, err := l.Balance(from)
		if err != nil {
			return err
		}
		if bal.Cmp(amount) < 0 {
			return ErrInsufficientBalance
		}
		return nil
	}
	fromBal, err := l.Balance(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBal, amount)
	}
	toBal, err := l.Balance(to)
	if err != nil {
		return err
	}
	if err := l.state.KVPut(balanceKey(from), fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	return l.state.KVPut(balanceKey(to), toBal.Add(toBal, amount))
}
