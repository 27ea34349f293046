package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"solaire/crypto"
)

var (
	deployerHex = "0x00000000000000000000000000000000000000ad"
	aliceBech   = crypto.FromRaw([20]byte{0xa1}).String()
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solaire.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `Deployer = "`+deployerHex+`"

[[stablecoins]]
Symbol = "usds"
Decimals = 6
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NetworkName != DefaultNetworkName {
		t.Fatalf("unexpected network %q", cfg.NetworkName)
	}
	if cfg.Governance.TimelockSeconds != DefaultTimelockSeconds {
		t.Fatalf("unexpected timelock %d", cfg.Governance.TimelockSeconds)
	}
	if cfg.Swap.FeeBps != 3 || cfg.Swap.MaxSlippageBps != 100 {
		t.Fatalf("unexpected swap defaults %+v", cfg.Swap)
	}
	if len(cfg.Compliance.TierLimits) != 3 || cfg.Compliance.TierLimits[0].Limit != "10000000000" {
		t.Fatalf("unexpected tier limits %+v", cfg.Compliance.TierLimits)
	}
	if cfg.Oracle.Kind != "mock" || cfg.Oracle.Decimals != 8 || cfg.Oracle.InitialAnswer != DefaultOracleAnswer {
		t.Fatalf("unexpected oracle defaults %+v", cfg.Oracle)
	}
	if cfg.Stablecoins[0].Symbol != "USDS" || cfg.Stablecoins[0].Kind != "standard" {
		t.Fatalf("stablecoin not normalised: %+v", cfg.Stablecoins[0])
	}
}

func TestLoadKeepsExplicitZeroFee(t *testing.T) {
	path := writeConfig(t, `Deployer = "`+deployerHex+`"

[swap]
FeeBps = 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Swap.FeeBps != 0 || cfg.Swap.MaxSlippageBps != DefaultMaxSlippageBps {
		t.Fatalf("unexpected swap config %+v", cfg.Swap)
	}
}

func TestLoadKeepsExplicitZeroTimelock(t *testing.T) {
	path := writeConfig(t, `Deployer = "`+deployerHex+`"

[governance]
TimelockSeconds = 0

[oracle]
Kind = "mock"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Governance.TimelockSeconds != 0 {
		t.Fatalf("explicit zero timelock overridden: %d", cfg.Governance.TimelockSeconds)
	}
	if cfg.Oracle.InitialAnswer != DefaultOracleAnswer {
		t.Fatalf("mock feed missing default answer: %+v", cfg.Oracle)
	}
}

func TestLoadParsesFullDeployment(t *testing.T) {
	path := writeConfig(t, `NetworkName = "solaire-test"
StorageBackend = "bolt"
Deployer = "`+deployerHex+`"

[roles]
Admin = ["`+aliceBech+`"]
Pauser = ["`+deployerHex+`"]

[governance]
TimelockSeconds = 3600
Proxies = [{ ID = "vault", Implementation = "vault-v1" }]

[compliance]
TierLimits = [{ Tier = 1, Limit = "500" }]
Whitelist = ["`+aliceBech+`"]

[vault]
DepositCeiling = "1000000000000000000000"
Stablecoins = ["USDS"]

[oracle]
Kind = "http"
Endpoint = "http://oracle.local/eth-usd"
MaxAgeSeconds = 3600

[[stablecoins]]
Symbol = "USDS"
Decimals = 6
Swappable = true

[[stablecoins]]
Symbol = "XAUS"
Kind = "backed"
MinTransfer = "10000"

[[allocations]]
Account = "`+aliceBech+`"
Amount = "5000000000000000000"

[[allocations]]
Account = "`+aliceBech+`"
Symbol = "USDS"
Amount = "1000000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageBackend != "bolt" || cfg.Governance.TimelockSeconds != 3600 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.Governance.Proxies) != 1 || cfg.Governance.Proxies[0].Implementation != "vault-v1" {
		t.Fatalf("unexpected proxies %+v", cfg.Governance.Proxies)
	}
	admins, err := Accounts(cfg.Roles.Admin)
	if err != nil || admins[0] != [20]byte{0xa1} {
		t.Fatalf("unexpected admins %v %v", admins, err)
	}
	if s, ok := cfg.Stablecoin("xaus"); !ok || s.MinTransfer != "10000" {
		t.Fatalf("unexpected backed token %+v", s)
	}
	if len(cfg.Allocations) != 2 {
		t.Fatalf("unexpected allocations %+v", cfg.Allocations)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"fee bps":          {func(c *Config) { c.Swap.FeeBps = 10_001 }, "FeeBps"},
		"slippage bps":     {func(c *Config) { c.Swap.MaxSlippageBps = 20_000 }, "MaxSlippageBps"},
		"tier":             {func(c *Config) { c.Compliance.TierLimits = []TierLimit{{Tier: 4, Limit: "1"}} }, "tier 4"},
		"duplicate symbol": {func(c *Config) { c.Stablecoins = append(c.Stablecoins, c.Stablecoins[0]) }, "duplicate symbol"},
		"kind":             {func(c *Config) { c.Stablecoins[0].Kind = "wrapped" }, "USDS"},
		"bad address":      {func(c *Config) { c.Roles.Pauser = []string{"not-an-address"} }, "roles.pauser"},
		"deployer":         {func(c *Config) { c.Deployer = "" }, "deployer"},
		"vault payout":     {func(c *Config) { c.Vault.Stablecoins = []string{"GBPS"} }, "not declared"},
		"oracle kind":      {func(c *Config) { c.Oracle.Kind = "chainlink" }, "unknown kind"},
		"http endpoint":    {func(c *Config) { c.Oracle.Kind = "http" }, "Endpoint"},
		"backend":          {func(c *Config) { c.StorageBackend = "rocks" }, "unknown backend"},
		"timelock":         {func(c *Config) { c.Governance.TimelockSeconds = MaxTimelockSeconds + 1 }, "TimelockSeconds"},
		"mock answer":      {func(c *Config) { c.Oracle.InitialAnswer = "0" }, "InitialAnswer"},
		"zero allocation": {func(c *Config) {
			c.Allocations = []Allocation{{Account: deployerHex, Amount: "0"}}
		}, "positive"},
		"liquidity symbol": {func(c *Config) {
			c.Swap.Liquidity = []Allocation{{Amount: "10"}}
		}, "symbol required"},
		"duplicate proxy": {func(c *Config) {
			c.Governance.Proxies = []Proxy{{ID: "swap", Implementation: "a"}, {ID: "swap", Implementation: "b"}}
		}, "duplicate proxy"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default(deployerHex)
			if err := cfg.Validate(); err != nil {
				t.Fatalf("default config invalid: %v", err)
			}
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "solaire.toml")
	cfg := Default(deployerHex)
	cfg.Roles.Admin = []string{aliceBech}
	if err := Write(path, cfg); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Roles.Admin[0] != aliceBech || len(loaded.Stablecoins) != 3 {
		t.Fatalf("unexpected round trip %+v", loaded)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `Deployer = "`+deployerHex+`"
Bootnodes = ["1.1.1.1:6001"]
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "Bootnodes") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestSampleDeploymentLoads(t *testing.T) {
	cfg, err := Load("deployment.toml")
	if err != nil {
		t.Fatalf("load sample deployment: %v", err)
	}
	if len(cfg.Stablecoins) != 3 || len(cfg.Governance.Proxies) != 2 {
		t.Fatalf("unexpected sample contents: %d tokens, %d proxies", len(cfg.Stablecoins), len(cfg.Governance.Proxies))
	}
	if cfg.Oracle.MaxAgeSeconds != 3600 {
		t.Fatalf("unexpected oracle max age %d", cfg.Oracle.MaxAgeSeconds)
	}
}
