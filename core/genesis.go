package core

import (
	"fmt"
	"strings"

	"solaire/config"
	"solaire/native/access"
)

var genesisKey = []byte("ledger/genesis")

type scopedTable struct {
	name  string
	table *access.Table
	roles []string
}

func (l *Ledger) tables() []scopedTable {
	out := []scopedTable{
		{name: "governance", table: l.controller.Roles(), roles: []string{access.RoleUpgrader, access.RolePauser}},
		{name: "compliance", table: l.compliance.Roles(), roles: []string{access.RoleCompliance}},
		{name: "vault", table: l.vault.Roles(), roles: []string{access.RolePauser}},
		{name: "swap", table: l.swap.Roles(), roles: []string{access.RolePauser}},
	}
	for _, sym := range l.symbols {
		out = append(out, scopedTable{
			name:  "token/" + sym,
			table: l.tokens[sym].Roles(),
			roles: []string{access.RoleMinter, access.RoleBurner, access.RolePauser, access.RoleCollateralManager, access.RoleCompliance},
		})
	}
	return out
}

// genesis applies the deployment in one operation. The deployer receives every
// role in every scope; configured holders are granted alongside. Genesis
// whitelist entries, module accounts and allocation recipients are onboarded
// as whitelisted and EMRT compliant.
func (l *Ledger) genesis(cfg *config.Config) error {
	deployer, err := cfg.DeployerAccount()
	if err != nil {
		return err
	}
	holders := map[string][]string{
		access.RoleAdmin:             cfg.Roles.Admin,
		access.RoleUpgrader:          cfg.Roles.Upgrader,
		access.RolePauser:            cfg.Roles.Pauser,
		access.RoleCompliance:        cfg.Roles.Compliance,
		access.RoleMinter:            cfg.Roles.Minter,
		access.RoleBurner:            cfg.Roles.Burner,
		access.RoleCollateralManager: cfg.Roles.CollateralManager,
	}
	return l.Execute("ledger", "genesis", deployer, func() error {
		for _, st := range l.tables() {
			if err := st.table.Bootstrap(deployer, st.roles...); err != nil {
				return fmt.Errorf("%s: %w", st.name, err)
			}
			for _, role := range append([]string{access.RoleAdmin}, st.roles...) {
				accounts, err := config.Accounts(holders[role])
				if err != nil {
					return err
				}
				for _, acct := range accounts {
					if err := st.table.Grant(deployer, role, acct); err != nil {
						return fmt.Errorf("%s: %w", st.name, err)
					}
				}
			}
		}

		for _, tl := range cfg.Compliance.TierLimits {
			limit, err := config.ParseAmount(tl.Limit)
			if err != nil {
				return err
			}
			if err := l.compliance.SetTransactionLimit(deployer, tl.Tier, limit); err != nil {
				return err
			}
		}
		whitelist, err := config.Accounts(cfg.Compliance.Whitelist)
		if err != nil {
			return err
		}
		whitelist = append(whitelist, VaultAccount, SwapAccount)
		for _, a := range cfg.Allocations {
			acct, err := config.Accounts([]string{a.Account})
			if err != nil {
				return err
			}
			whitelist = append(whitelist, acct[0])
		}
		for _, acct := range whitelist {
			if err := l.compliance.SetWhitelisted(deployer, acct, true); err != nil {
				return err
			}
			if err := l.compliance.SetEMRTCompliance(deployer, acct, true); err != nil {
				return err
			}
		}

		for _, p := range cfg.Governance.Proxies {
			if err := l.controller.RegisterProxy(deployer, p.ID, p.Implementation); err != nil {
				return err
			}
		}

		for _, sym := range cfg.Vault.Stablecoins {
			tok, err := l.token(sym)
			if err != nil {
				return err
			}
			if err := tok.Roles().Grant(deployer, access.RoleMinter, VaultAccount); err != nil {
				return err
			}
			if err := l.vault.AddStablecoin(deployer, tok.Symbol()); err != nil {
				return err
			}
		}
		if ceiling, err := config.ParseAmount(cfg.Vault.DepositCeiling); err != nil {
			return err
		} else if ceiling != nil {
			if err := l.vault.SetDepositCeiling(deployer, ceiling); err != nil {
				return err
			}
		}

		if err := l.swap.SetSwapFee(deployer, cfg.Swap.FeeBps); err != nil {
			return err
		}
		if err := l.swap.SetMaxSlippage(deployer, cfg.Swap.MaxSlippageBps); err != nil {
			return err
		}
		for _, sc := range cfg.Stablecoins {
			if !sc.Swappable {
				continue
			}
			if err := l.swap.AddSupportedToken(deployer, sc.Symbol); err != nil {
				return err
			}
		}
		for _, liq := range cfg.Swap.Liquidity {
			if err := l.allocate(deployer, SwapAccount, liq); err != nil {
				return err
			}
		}

		for _, a := range cfg.Allocations {
			acct, err := config.Accounts([]string{a.Account})
			if err != nil {
				return err
			}
			if err := l.allocate(deployer, acct[0], a); err != nil {
				return err
			}
		}
		return l.state.KVPut(genesisKey, true)
	})
}

func (l *Ledger) allocate(deployer, to [20]byte, a config.Allocation) error {
	amount, err := config.ParseAmount(a.Amount)
	if err != nil {
		return err
	}
	if strings.TrimSpace(a.Symbol) == "" {
		return l.bank.Credit(to, amount)
	}
	tok, err := l.token(a.Symbol)
	if err != nil {
		return err
	}
	return tok.Mint(deployer, to, amount)
}
