package events

import (
	"math/big"

	"solaire/core/types"
)

const (
	TypeVaultDeposited          = "vault.deposited"
	TypeVaultWithdrawn          = "vault.withdrawn"
	TypeVaultEmergencyWithdrawn = "vault.emergency_withdrawn"
	TypeVaultStablecoinUpdated  = "vault.stablecoin_updated"
	TypeVaultCeilingUpdated     = "vault.ceiling_updated"
)

// Deposited is emitted when native asset enters the vault.
type Deposited struct {
	Account [20]byte
	Amount  *big.Int
}

func (Deposited) EventType() string { return TypeVaultDeposited }

func (e Deposited) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultDeposited,
		Attributes: map[string]string{
			"account": addressString(e.Account),
			"amount":  amountString(e.Amount),
		},
	}
}

// Withdrawn is emitted when a deposit is converted into stablecoins.
type Withdrawn struct {
	Account      [20]byte
	StableAmount *big.Int
	NativeAmount *big.Int
	Token        string
}

func (Withdrawn) EventType() string { return TypeVaultWithdrawn }

func (e Withdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultWithdrawn,
		Attributes: map[string]string{
			"account":      addressString(e.Account),
			"amount":       amountString(e.StableAmount),
			"nativeAmount": amountString(e.NativeAmount),
			"token":        e.Token,
		},
	}
}

// EmergencyWithdrawn is emitted when a paused vault returns a full deposit.
type EmergencyWithdrawn struct {
	Account [20]byte
	Amount  *big.Int
}

func (EmergencyWithdrawn) EventType() string { return TypeVaultEmergencyWithdrawn }

func (e EmergencyWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultEmergencyWithdrawn,
		Attributes: map[string]string{
			"account": addressString(e.Account),
			"amount":  amountString(e.Amount),
		},
	}
}

// StablecoinUpdated records a change to the vault's payout set.
type StablecoinUpdated struct {
	Token     string
	Supported bool
}

func (StablecoinUpdated) EventType() string { return TypeVaultStablecoinUpdated }

func (e StablecoinUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultStablecoinUpdated,
		Attributes: map[string]string{
			"token":     e.Token,
			"supported": boolString(e.Supported),
		},
	}
}

// DepositCeilingUpdated records a new per-account deposit ceiling.
type DepositCeilingUpdated struct {
	Ceiling *big.Int
}

func (DepositCeilingUpdated) EventType() string { return TypeVaultCeilingUpdated }

func (e DepositCeilingUpdated) Event() *types.Event {
	return &types.Event{
		Type:       TypeVaultCeilingUpdated,
		Attributes: map[string]string{"ceiling": amountString(e.Ceiling)},
	}
}
