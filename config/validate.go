package config

import (
	"fmt"
	"strings"

	nativecommon "solaire/native/common"
	"solaire/native/compliance"
	"solaire/native/token"
	"solaire/storage"
)

// MaxBps bounds every basis-point setting.
const MaxBps = uint64(10_000)

// MaxTimelockSeconds caps the upgrade delay at one year.
const MaxTimelockSeconds = uint64(365 * 24 * 60 * 60)

// Validate rejects deployments the ledger could not bootstrap.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case storage.BackendMemory, storage.BackendLevelDB, storage.BackendBolt:
	default:
		return fmt.Errorf("storage: unknown backend %q", c.StorageBackend)
	}
	if _, err := c.DeployerAccount(); err != nil {
		return fmt.Errorf("deployer: %w", err)
	}
	for name, list := range map[string][]string{
		"admin":              c.Roles.Admin,
		"upgrader":           c.Roles.Upgrader,
		"pauser":             c.Roles.Pauser,
		"compliance":         c.Roles.Compliance,
		"minter":             c.Roles.Minter,
		"burner":             c.Roles.Burner,
		"collateral_manager": c.Roles.CollateralManager,
		"whitelist":          c.Compliance.Whitelist,
	} {
		if _, err := Accounts(list); err != nil {
			return fmt.Errorf("roles.%s: %w", name, err)
		}
	}
	if c.Governance.TimelockSeconds > MaxTimelockSeconds {
		return fmt.Errorf("governance: TimelockSeconds %d exceeds %d", c.Governance.TimelockSeconds, MaxTimelockSeconds)
	}
	if c.Swap.FeeBps > MaxBps {
		return fmt.Errorf("swap: FeeBps %d exceeds %d", c.Swap.FeeBps, MaxBps)
	}
	if c.Swap.MaxSlippageBps > MaxBps {
		return fmt.Errorf("swap: MaxSlippageBps %d exceeds %d", c.Swap.MaxSlippageBps, MaxBps)
	}
	seenTier := map[uint8]bool{}
	for _, tl := range c.Compliance.TierLimits {
		if tl.Tier == 0 || tl.Tier > compliance.MaxKYCTier {
			return fmt.Errorf("compliance: tier %d outside 1..%d", tl.Tier, compliance.MaxKYCTier)
		}
		if seenTier[tl.Tier] {
			return fmt.Errorf("compliance: tier %d declared twice", tl.Tier)
		}
		seenTier[tl.Tier] = true
		if _, err := ParseAmount(tl.Limit); err != nil {
			return fmt.Errorf("compliance: tier %d: %w", tl.Tier, err)
		}
	}
	seen := map[string]bool{}
	for _, s := range c.Stablecoins {
		if s.Symbol == "" {
			return fmt.Errorf("stablecoins: symbol required")
		}
		if seen[s.Symbol] {
			return fmt.Errorf("stablecoins: duplicate symbol %s", s.Symbol)
		}
		seen[s.Symbol] = true
		if _, err := token.ParseKind(s.Kind); err != nil {
			return fmt.Errorf("stablecoins: %s: %w", s.Symbol, err)
		}
		if _, err := ParseAmount(s.MinTransfer); err != nil {
			return fmt.Errorf("stablecoins: %s: %w", s.Symbol, err)
		}
	}
	for _, sym := range c.Vault.Stablecoins {
		if !seen[nativecommon.NormaliseSymbol(sym)] {
			return fmt.Errorf("vault: payout token %s is not declared", sym)
		}
	}
	if _, err := ParseAmount(c.Vault.DepositCeiling); err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	switch c.Oracle.Kind {
	case "mock":
		answer, err := ParseAmount(c.Oracle.InitialAnswer)
		if err != nil {
			return fmt.Errorf("oracle: %w", err)
		}
		if answer == nil || answer.Sign() == 0 {
			return fmt.Errorf("oracle: mock feed needs a positive InitialAnswer")
		}
	case "http":
		if strings.TrimSpace(c.Oracle.Endpoint) == "" {
			return fmt.Errorf("oracle: http feed needs an Endpoint")
		}
	default:
		return fmt.Errorf("oracle: unknown kind %q", c.Oracle.Kind)
	}
	if err := c.validateAllocations("allocations", c.Allocations, seen); err != nil {
		return err
	}
	if err := c.validateAllocations("swap.Liquidity", c.Swap.Liquidity, seen); err != nil {
		return err
	}
	proxies := map[string]bool{}
	for _, p := range c.Governance.Proxies {
		id := strings.TrimSpace(p.ID)
		if id == "" || strings.TrimSpace(p.Implementation) == "" {
			return fmt.Errorf("governance: proxies need an ID and Implementation")
		}
		if proxies[id] {
			return fmt.Errorf("governance: duplicate proxy %s", id)
		}
		proxies[id] = true
	}
	return nil
}

func (c *Config) validateAllocations(section string, list []Allocation, symbols map[string]bool) error {
	for _, a := range list {
		if section == "swap.Liquidity" {
			if strings.TrimSpace(a.Symbol) == "" {
				return fmt.Errorf("%s: symbol required", section)
			}
		} else if _, err := Accounts([]string{a.Account}); err != nil {
			return fmt.Errorf("%s: %w", section, err)
		}
		if sym := nativecommon.NormaliseSymbol(a.Symbol); sym != "" && !symbols[sym] {
			return fmt.Errorf("%s: unknown symbol %s", section, a.Symbol)
		}
		amount, err := ParseAmount(a.Amount)
		if err != nil {
			return fmt.Errorf("%s: %w", section, err)
		}
		if amount == nil || amount.Sign() == 0 {
			return fmt.Errorf("%s: amount must be positive", section)
		}
	}
	return nil
}
