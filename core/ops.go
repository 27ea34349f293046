package core

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"solaire/native/access"
	"solaire/native/token"
)

// Role administration.

func (l *Ledger) table(scope string) (*access.Table, error) {
	name := strings.ToLower(strings.TrimSpace(scope))
	if strings.HasPrefix(name, "token/") {
		name = "token/" + strings.ToUpper(strings.TrimPrefix(name, "token/"))
	}
	for _, st := range l.tables() {
		if st.name == name {
			return st.table, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownScope, scope)
}

func (l *Ledger) GrantRole(caller [20]byte, scope, role string, account [20]byte) error {
	return l.Execute("access", "grant", caller, func() error {
		t, err := l.table(scope)
		if err != nil {
			return err
		}
		return t.Grant(caller, role, account)
	})
}

func (l *Ledger) RevokeRole(caller [20]byte, scope, role string, account [20]byte) error {
	return l.Execute("access", "revoke", caller, func() error {
		t, err := l.table(scope)
		if err != nil {
			return err
		}
		return t.Revoke(caller, role, account)
	})
}

func (l *Ledger) RenounceRole(caller [20]byte, scope, role string) error {
	return l.Execute("access", "renounce", caller, func() error {
		t, err := l.table(scope)
		if err != nil {
			return err
		}
		return t.Renounce(caller, role)
	})
}

// HasRole reports whether account holds role in scope.
func (l *Ledger) HasRole(scope, role string, account [20]byte) (bool, error) {
	var has bool
	err := l.View(func() error {
		t, err := l.table(scope)
		if err != nil {
			return err
		}
		has = t.Has(role, account)
		return nil
	})
	return has, err
}

// Governance.

func (l *Ledger) RegisterProxy(caller [20]byte, id, implementation string) error {
	return l.Execute("governance", "registerProxy", caller, func() error {
		return l.controller.RegisterProxy(caller, id, implementation)
	})
}

func (l *Ledger) RequestUpgrade(caller [20]byte, id, implementation string) error {
	return l.Execute("governance", "requestUpgrade", caller, func() error {
		return l.controller.RequestUpgrade(caller, id, implementation)
	})
}

func (l *Ledger) ApproveUpgrade(caller [20]byte, id string) error {
	return l.Execute("governance", "approveUpgrade", caller, func() error {
		return l.controller.ApproveUpgrade(caller, id)
	})
}

// Pause engages the pause switch of module. "governance" halts every component.
func (l *Ledger) Pause(caller [20]byte, module string) error {
	return l.setPaused(caller, module, true)
}

// Unpause releases the pause switch of module.
func (l *Ledger) Unpause(caller [20]byte, module string) error {
	return l.setPaused(caller, module, false)
}

type pausable interface {
	Pause(caller [20]byte) error
	Unpause(caller [20]byte) error
}

func (l *Ledger) setPaused(caller [20]byte, module string, paused bool) error {
	name := strings.ToLower(strings.TrimSpace(module))
	op := "unpause"
	if paused {
		op = "pause"
	}
	return l.Execute(name, op, caller, func() error {
		var target pausable
		switch {
		case name == "governance":
			target = l.controller
		case name == "vault":
			target = l.vault
		case name == "swap":
			target = l.swap
		case strings.HasPrefix(name, "token/"):
			tok, err := l.token(strings.TrimPrefix(name, "token/"))
			if err != nil {
				return err
			}
			target = tok
		default:
			return fmt.Errorf("ledger: module %q cannot be paused", module)
		}
		if paused {
			return target.Pause(caller)
		}
		return target.Unpause(caller)
	})
}

// Compliance.

func (l *Ledger) SetWhitelisted(caller, account [20]byte, listed bool) error {
	return l.Execute("compliance", "setWhitelisted", caller, func() error {
		return l.compliance.SetWhitelisted(caller, account, listed)
	})
}

func (l *Ledger) SetBlacklisted(caller, account [20]byte, listed bool) error {
	return l.Execute("compliance", "setBlacklisted", caller, func() error {
		return l.compliance.SetBlacklisted(caller, account, listed)
	})
}

func (l *Ledger) SetEMRTCompliance(caller, account [20]byte, compliant bool) error {
	return l.Execute("compliance", "setEMRTCompliance", caller, func() error {
		return l.compliance.SetEMRTCompliance(caller, account, compliant)
	})
}

func (l *Ledger) UpdateKYCStatus(caller, account [20]byte, tier uint8, expiry time.Time) error {
	return l.Execute("compliance", "updateKYCStatus", caller, func() error {
		return l.compliance.UpdateKYCStatus(caller, account, tier, expiry)
	})
}

func (l *Ledger) SetTransferLimit(caller, account [20]byte, limit *big.Int) error {
	return l.Execute("compliance", "setTransferLimit", caller, func() error {
		return l.compliance.SetTransferLimit(caller, account, limit)
	})
}

func (l *Ledger) SetTransactionLimit(caller [20]byte, tier uint8, limit *big.Int) error {
	return l.Execute("compliance", "setTransactionLimit", caller, func() error {
		return l.compliance.SetTransactionLimit(caller, tier, limit)
	})
}

// Tokens.

func (l *Ledger) withToken(op, symbol string, caller [20]byte, fn func(*token.Engine) error) error {
	return l.Execute("token", op, caller, func() error {
		tok, err := l.token(symbol)
		if err != nil {
			return err
		}
		return fn(tok)
	})
}

func (l *Ledger) Mint(caller [20]byte, symbol string, to [20]byte, amount *big.Int) error {
	return l.withToken("mint", symbol, caller, func(t *token.Engine) error { return t.Mint(caller, to, amount) })
}

func (l *Ledger) Burn(caller [20]byte, symbol string, from [20]byte, amount *big.Int) error {
	return l.withToken("burn", symbol, caller, func(t *token.Engine) error { return t.Burn(caller, from, amount) })
}

func (l *Ledger) Transfer(caller [20]byte, symbol string, to [20]byte, amount *big.Int) error {
	return l.withToken("transfer", symbol, caller, func(t *token.Engine) error { return t.Transfer(caller, to, amount) })
}

func (l *Ledger) Approve(caller [20]byte, symbol string, spender [20]byte, amount *big.Int) error {
	return l.withToken("approve", symbol, caller, func(t *token.Engine) error { return t.Approve(caller, spender, amount) })
}

func (l *Ledger) TransferFrom(caller [20]byte, symbol string, from, to [20]byte, amount *big.Int) error {
	return l.withToken("transferFrom", symbol, caller, func(t *token.Engine) error {
		return t.TransferFrom(caller, from, to, amount)
	})
}

// TransferISO20022 moves tokens with a payment message and returns its sequence number.
func (l *Ledger) TransferISO20022(caller [20]byte, symbol string, to [20]byte, amount *big.Int, messageID, purpose string) (uint64, error) {
	var seq uint64
	err := l.withToken("transferISO20022", symbol, caller, func(t *token.Engine) error {
		var err error
		seq, err = t.TransferISO20022(caller, to, amount, messageID, purpose)
		return err
	})
	return seq, err
}

func (l *Ledger) UpdateCollateral(caller [20]byte, symbol string, amount *big.Int) error {
	return l.withToken("updateCollateral", symbol, caller, func(t *token.Engine) error { return t.UpdateCollateral(caller, amount) })
}

func (l *Ledger) RegisterIBAN(caller [20]byte, symbol string, account [20]byte, iban string) error {
	return l.withToken("registerIban", symbol, caller, func(t *token.Engine) error { return t.RegisterIBAN(caller, account, iban) })
}

// AddGoldBar registers a bar against a backed token and returns its id.
func (l *Ledger) AddGoldBar(caller [20]byte, symbol, serial string, weight uint64, refinery string, purity uint64, location string) (uint64, error) {
	var id uint64
	err := l.withToken("addGoldBar", symbol, caller, func(t *token.Engine) error {
		var err error
		id, err = t.AddGoldBar(caller, serial, weight, refinery, purity, location)
		return err
	})
	return id, err
}

func (l *Ledger) DeactivateGoldBar(caller [20]byte, symbol string, id uint64) error {
	return l.withToken("deactivateGoldBar", symbol, caller, func(t *token.Engine) error { return t.DeactivateGoldBar(caller, id) })
}

func (l *Ledger) AssignBarOwnership(caller [20]byte, symbol string, id uint64, owner [20]byte) error {
	return l.withToken("assignBarOwnership", symbol, caller, func(t *token.Engine) error {
		return t.AssignBarOwnership(caller, id, owner)
	})
}

// Native asset.

func (l *Ledger) TransferNative(caller, to [20]byte, amount *big.Int) error {
	return l.Execute("bank", "transfer", caller, func() error {
		return l.bank.Transfer(caller, to, amount)
	})
}

// Vault.

func (l *Ledger) Deposit(caller [20]byte, amount *big.Int) error {
	return l.Execute("vault", "deposit", caller, func() error { return l.vault.Deposit(caller, amount) })
}

func (l *Ledger) WithdrawStable(caller [20]byte, amount *big.Int, symbol string) error {
	return l.Execute("vault", "withdrawStable", caller, func() error { return l.vault.WithdrawStable(caller, amount, symbol) })
}

// EmergencyWithdraw returns caller's full deposit while the vault is paused.
func (l *Ledger) EmergencyWithdraw(caller [20]byte) (*big.Int, error) {
	var returned *big.Int
	err := l.Execute("vault", "emergencyWithdraw", caller, func() error {
		var err error
		returned, err = l.vault.EmergencyWithdraw(caller)
		return err
	})
	return returned, err
}

func (l *Ledger) AddVaultStablecoin(caller [20]byte, symbol string) error {
	return l.Execute("vault", "addStablecoin", caller, func() error { return l.vault.AddStablecoin(caller, symbol) })
}

func (l *Ledger) RemoveVaultStablecoin(caller [20]byte, symbol string) error {
	return l.Execute("vault", "removeStablecoin", caller, func() error { return l.vault.RemoveStablecoin(caller, symbol) })
}

func (l *Ledger) SetDepositCeiling(caller [20]byte, ceiling *big.Int) error {
	return l.Execute("vault", "setDepositCeiling", caller, func() error { return l.vault.SetDepositCeiling(caller, ceiling) })
}

// Swap.

// Swap exchanges amountIn of tokenIn for tokenOut and returns the amount paid out.
func (l *Ledger) Swap(caller [20]byte, tokenIn, tokenOut string, amountIn, minOut *big.Int) (*big.Int, error) {
	var out *big.Int
	err := l.Execute("swap", "swap", caller, func() error {
		var err error
		out, err = l.swap.Swap(caller, tokenIn, tokenOut, amountIn, minOut)
		return err
	})
	return out, err
}

func (l *Ledger) AddSupportedToken(caller [20]byte, symbol string) error {
	return l.Execute("swap", "addSupportedToken", caller, func() error { return l.swap.AddSupportedToken(caller, symbol) })
}

func (l *Ledger) RemoveSupportedToken(caller [20]byte, symbol string) error {
	return l.Execute("swap", "removeSupportedToken", caller, func() error { return l.swap.RemoveSupportedToken(caller, symbol) })
}

func (l *Ledger) SetSwapFee(caller [20]byte, bps uint64) error {
	return l.Execute("swap", "setSwapFee", caller, func() error { return l.swap.SetSwapFee(caller, bps) })
}

func (l *Ledger) SetMaxSlippage(caller [20]byte, bps uint64) error {
	return l.Execute("swap", "setMaxSlippage", caller, func() error { return l.swap.SetMaxSlippage(caller, bps) })
}
