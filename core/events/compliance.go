package events

import (
	"math/big"
	"strconv"
	"time"

	"solaire/core/types"
)

const (
	TypeComplianceUpdated = "compliance.status_updated"
	TypeKYCUpdated        = "compliance.kyc_updated"
	TypeTransferLimitSet  = "compliance.transfer_limit_set"
	TypeTierLimitSet      = "compliance.tier_limit_set"
)

// Compliance flag names carried by ComplianceUpdated.
const (
	FlagWhitelisted = "whitelisted"
	FlagBlacklisted = "blacklisted"
	FlagEMRT        = "emrt"
)

// ComplianceUpdated is emitted when a boolean compliance flag changes.
type ComplianceUpdated struct {
	Account [20]byte
	Flag    string
	Value   bool
}

func (ComplianceUpdated) EventType() string { return TypeComplianceUpdated }

func (e ComplianceUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeComplianceUpdated,
		Attributes: map[string]string{
			"account": addressString(e.Account),
			"flag":    e.Flag,
			"value":   boolString(e.Value),
		},
	}
}

// KYCUpdated is emitted when an account's verification tier changes.
type KYCUpdated struct {
	Account [20]byte
	Tier    uint8
	Expiry  time.Time
}

func (KYCUpdated) EventType() string { return TypeKYCUpdated }

func (e KYCUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeKYCUpdated,
		Attributes: map[string]string{
			"account": addressString(e.Account),
			"tier":    strconv.FormatUint(uint64(e.Tier), 10),
			"expiry":  unixString(e.Expiry),
		},
	}
}

// TransferLimitSet is emitted when an account's daily ceiling is set.
type TransferLimitSet struct {
	Account [20]byte
	Limit   *big.Int
}

func (TransferLimitSet) EventType() string { return TypeTransferLimitSet }

func (e TransferLimitSet) Event() *types.Event {
	return &types.Event{
		Type: TypeTransferLimitSet,
		Attributes: map[string]string{
			"account": addressString(e.Account),
			"limit":   amountString(e.Limit),
		},
	}
}

// TierLimitSet is emitted when a KYC tier's default ceiling changes.
type TierLimitSet struct {
	Tier  uint8
	Limit *big.Int
}

func (TierLimitSet) EventType() string { return TypeTierLimitSet }

func (e TierLimitSet) Event() *types.Event {
	return &types.Event{
		Type: TypeTierLimitSet,
		Attributes: map[string]string{
			"tier":  strconv.FormatUint(uint64(e.Tier), 10),
			"limit": amountString(e.Limit),
		},
	}
}
