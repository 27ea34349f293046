package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"solaire/config"
	"solaire/core"
	"solaire/storage"
)

type roleReport struct {
	Admin             []string `json:"admin"`
	Upgrader          []string `json:"upgrader"`
	Pauser            []string `json:"pauser"`
	Compliance        []string `json:"compliance"`
	Minter            []string `json:"minter"`
	Burner            []string `json:"burner"`
	CollateralManager []string `json:"collateralManager"`
}

type tokenReport struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Currency    string `json:"currency"`
	Kind        string `json:"kind"`
	Decimals    uint8  `json:"decimals"`
	MinTransfer string `json:"minTransfer,omitempty"`
	Swappable   bool   `json:"swappable"`
	VaultPayout bool   `json:"vaultPayout"`
	Supply      string `json:"genesisSupply,omitempty"`
}

type tierReport struct {
	Tier  uint8  `json:"tier"`
	Limit string `json:"limit"`
}

type auditReport struct {
	Network  string     `json:"network"`
	Deployer string     `json:"deployer"`
	Storage  string     `json:"storage"`
	Roles    roleReport `json:"roles"`

	Governance struct {
		TimelockSeconds uint64            `json:"timelockSeconds"`
		Proxies         map[string]string `json:"proxies"`
	} `json:"governance"`

	Compliance struct {
		TierLimits []tierReport `json:"tierLimits"`
		Whitelist  int          `json:"whitelistedAtGenesis"`
	} `json:"compliance"`

	Swap struct {
		FeeBps         uint64            `json:"feeBps"`
		MaxSlippageBps uint64            `json:"maxSlippageBps"`
		Liquidity      map[string]string `json:"liquidity"`
	} `json:"swap"`

	Vault struct {
		Stablecoins    []string `json:"stablecoins"`
		DepositCeiling string   `json:"depositCeiling"`
		NativeDecimals uint8    `json:"nativeDecimals"`
	} `json:"vault"`

	Oracle struct {
		Kind          string `json:"kind"`
		Decimals      uint8  `json:"decimals"`
		Endpoint      string `json:"endpoint,omitempty"`
		MaxAgeSeconds uint64 `json:"maxAgeSeconds"`
	} `json:"oracle"`

	Tokens      []tokenReport `json:"tokens"`
	GenesisRoot string        `json:"genesisRoot,omitempty"`
	Warnings    []string      `json:"warnings"`
}

func main() {
	configPath := flag.String("config", "./config/deployment.toml", "Path to deployment configuration file")
	simulate := flag.Bool("simulate", false, "Run genesis in memory and include the resulting root and supplies")
	flag.Parse()

	if err := run(*configPath, *simulate, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(path string, simulate bool, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	report := buildReport(cfg)
	if simulate {
		if err := simulateGenesis(cfg, &report); err != nil {
			return fmt.Errorf("failed to simulate genesis: %w", err)
		}
	}
	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = fmt.Fprintln(out, string(output))
	return err
}

// withDeployer lists the effective holders of a role: the deployer plus any
// configured accounts.
func withDeployer(deployer string, holders []string) []string {
	out := []string{deployer}
	for _, h := range holders {
		if h != deployer {
			out = append(out, h)
		}
	}
	return out
}

func buildReport(cfg *config.Config) auditReport {
	var report auditReport
	report.Network = cfg.NetworkName
	report.Deployer = cfg.Deployer
	report.Storage = cfg.StorageBackend
	report.Roles = roleReport{
		Admin:             withDeployer(cfg.Deployer, cfg.Roles.Admin),
		Upgrader:          withDeployer(cfg.Deployer, cfg.Roles.Upgrader),
		Pauser:            withDeployer(cfg.Deployer, cfg.Roles.Pauser),
		Compliance:        withDeployer(cfg.Deployer, cfg.Roles.Compliance),
		Minter:            withDeployer(cfg.Deployer, cfg.Roles.Minter),
		Burner:            withDeployer(cfg.Deployer, cfg.Roles.Burner),
		CollateralManager: withDeployer(cfg.Deployer, cfg.Roles.CollateralManager),
	}

	report.Governance.TimelockSeconds = cfg.Governance.TimelockSeconds
	report.Governance.Proxies = make(map[string]string, len(cfg.Governance.Proxies))
	for _, p := range cfg.Governance.Proxies {
		report.Governance.Proxies[p.ID] = p.Implementation
	}

	for _, tl := range cfg.Compliance.TierLimits {
		report.Compliance.TierLimits = append(report.Compliance.TierLimits, tierReport{Tier: tl.Tier, Limit: tl.Limit})
	}
	report.Compliance.Whitelist = len(cfg.Compliance.Whitelist)

	report.Swap.FeeBps = cfg.Swap.FeeBps
	report.Swap.MaxSlippageBps = cfg.Swap.MaxSlippageBps
	report.Swap.Liquidity = make(map[string]string, len(cfg.Swap.Liquidity))
	for _, l := range cfg.Swap.Liquidity {
		report.Swap.Liquidity[l.Symbol] = l.Amount
	}

	report.Vault.Stablecoins = append([]string{}, cfg.Vault.Stablecoins...)
	report.Vault.DepositCeiling = cfg.Vault.DepositCeiling
	if report.Vault.DepositCeiling == "" {
		report.Vault.DepositCeiling = "0"
	}
	report.Vault.NativeDecimals = cfg.Vault.NativeDecimals

	report.Oracle.Kind = cfg.Oracle.Kind
	report.Oracle.Decimals = cfg.Oracle.Decimals
	report.Oracle.Endpoint = cfg.Oracle.Endpoint
	report.Oracle.MaxAgeSeconds = cfg.Oracle.MaxAgeSeconds

	payout := make(map[string]bool, len(cfg.Vault.Stablecoins))
	for _, s := range cfg.Vault.Stablecoins {
		payout[s] = true
	}
	for _, sc := range cfg.Stablecoins {
		report.Tokens = append(report.Tokens, tokenReport{
			Symbol:      sc.Symbol,
			Name:        sc.Name,
			Currency:    sc.Currency,
			Kind:        sc.Kind,
			Decimals:    sc.Decimals,
			MinTransfer: sc.MinTransfer,
			Swappable:   sc.Swappable,
			VaultPayout: payout[sc.Symbol],
		})
	}
	report.Warnings = warnings(cfg)
	return report
}

func warnings(cfg *config.Config) []string {
	out := []string{}
	if len(cfg.Roles.Admin) == 0 && len(cfg.Roles.Pauser) == 0 {
		out = append(out, "deployer is the only admin and pauser")
	}
	if cfg.Oracle.Kind == "mock" {
		out = append(out, "oracle uses the in-memory mock feed")
	}
	if cfg.Oracle.MaxAgeSeconds == 0 {
		out = append(out, "oracle staleness check disabled")
	}
	if cfg.Swap.MaxSlippageBps > 500 {
		out = append(out, fmt.Sprintf("swap slippage tolerance %d bps exceeds 5%%", cfg.Swap.MaxSlippageBps))
	}
	if cfg.Vault.DepositCeiling == "" || cfg.Vault.DepositCeiling == "0" {
		out = append(out, "vault deposit ceiling unlimited")
	}
	if cfg.Governance.TimelockSeconds < config.DefaultTimelockSeconds {
		out = append(out, fmt.Sprintf("upgrade timelock %ds is shorter than the %ds default", cfg.Governance.TimelockSeconds, config.DefaultTimelockSeconds))
	}
	return out
}

func simulateGenesis(cfg *config.Config, report *auditReport) error {
	ledger, err := core.New(storage.NewMemDB(), cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()
	report.GenesisRoot = ledger.Root().Hex()
	for i := range report.Tokens {
		info, err := ledger.TokenInfo(report.Tokens[i].Symbol)
		if err != nil {
			return err
		}
		report.Tokens[i].Supply = info.TotalSupply.String()
	}
	return nil
}
