package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"solaire/crypto"
	nativecommon "solaire/native/common"
	"solaire/storage"
)

const (
	DefaultNetworkName     = "solaire-local"
	DefaultTimelockSeconds = uint64(48 * 60 * 60)
	DefaultSwapFeeBps      = uint64(3)
	DefaultMaxSlippageBps  = uint64(100)
	DefaultOracleDecimals  = uint8(8)
	DefaultOracleAnswer    = "200000000000"
	DefaultNativeDecimals  = uint8(18)
	DefaultOracleTimeout   = uint64(5)
	DefaultOracleRPS       = 5.0
)

// DefaultTierLimits are the rolling 24h limits for KYC tiers 1 to 3, in
// six-decimal stablecoin units.
var DefaultTierLimits = []TierLimit{
	{Tier: 1, Limit: "10000000000"},
	{Tier: 2, Limit: "100000000000"},
	{Tier: 3, Limit: "1000000000000"},
}

// Config is a ledger deployment.
type Config struct {
	NetworkName    string `toml:"NetworkName"`
	DataDir        string `toml:"DataDir"`
	StorageBackend string `toml:"StorageBackend"`
	Deployer       string `toml:"Deployer"`

	Roles       Roles        `toml:"roles"`
	Governance  Governance   `toml:"governance"`
	Compliance  Compliance   `toml:"compliance"`
	Swap        Swap         `toml:"swap"`
	Vault       Vault        `toml:"vault"`
	Oracle      Oracle       `toml:"oracle"`
	Quota       Quota        `toml:"quota"`
	Stablecoins []Stablecoin `toml:"stablecoins"`
	Allocations []Allocation `toml:"allocations"`
	Logging     Logging      `toml:"logging"`
}

// Load decodes the deployment at path, applies defaults and validates it.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}
	if !meta.IsDefined("swap", "FeeBps") {
		cfg.Swap.FeeBps = DefaultSwapFeeBps
	}
	if !meta.IsDefined("swap", "MaxSlippageBps") {
		cfg.Swap.MaxSlippageBps = DefaultMaxSlippageBps
	}
	if !meta.IsDefined("governance", "TimelockSeconds") {
		cfg.Governance.TimelockSeconds = DefaultTimelockSeconds
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a single-operator development deployment administered by deployer.
func Default(deployer string) *Config {
	cfg := &Config{
		NetworkName:    DefaultNetworkName,
		DataDir:        "./solaire-data",
		StorageBackend: storage.BackendLevelDB,
		Deployer:       deployer,
		Governance:     Governance{TimelockSeconds: DefaultTimelockSeconds},
		Swap:           Swap{FeeBps: DefaultSwapFeeBps, MaxSlippageBps: DefaultMaxSlippageBps},
		Oracle:         Oracle{Kind: "mock", InitialAnswer: DefaultOracleAnswer},
		Stablecoins: []Stablecoin{
			{Symbol: "USDS", Name: "Solaire Dollar", Currency: "USD", Kind: "standard", Decimals: 6, Swappable: true},
			{Symbol: "EURS", Name: "Solaire Euro", Currency: "EUR", Kind: "emrt", Decimals: 6, Swappable: true},
			{Symbol: "XAUS", Name: "Solaire Gold", Currency: "XAU", Kind: "backed", Decimals: 6},
		},
		Vault: Vault{Stablecoins: []string{"USDS"}},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = DefaultNetworkName
	}
	if strings.TrimSpace(c.StorageBackend) == "" {
		c.StorageBackend = storage.BackendMemory
	}
	if len(c.Compliance.TierLimits) == 0 {
		c.Compliance.TierLimits = append([]TierLimit(nil), DefaultTierLimits...)
	}
	if c.Vault.NativeDecimals == 0 {
		c.Vault.NativeDecimals = DefaultNativeDecimals
	}
	if strings.TrimSpace(c.Oracle.Kind) == "" {
		c.Oracle.Kind = "mock"
	}
	c.Oracle.Kind = strings.ToLower(strings.TrimSpace(c.Oracle.Kind))
	if c.Oracle.Kind == "mock" && strings.TrimSpace(c.Oracle.InitialAnswer) == "" {
		c.Oracle.InitialAnswer = DefaultOracleAnswer
	}
	if c.Oracle.Decimals == 0 {
		c.Oracle.Decimals = DefaultOracleDecimals
	}
	if c.Oracle.TimeoutSeconds == 0 {
		c.Oracle.TimeoutSeconds = DefaultOracleTimeout
	}
	if c.Oracle.RequestsPerSecond == 0 {
		c.Oracle.RequestsPerSecond = DefaultOracleRPS
	}
	for i := range c.Stablecoins {
		c.Stablecoins[i].Symbol = nativecommon.NormaliseSymbol(c.Stablecoins[i].Symbol)
		if strings.TrimSpace(c.Stablecoins[i].Kind) == "" {
			c.Stablecoins[i].Kind = "standard"
		}
	}
	if c.Roles.Admin == nil {
		c.Roles.Admin = []string{}
	}
}

// Write persists cfg to path, creating parent directories.
func Write(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// DeployerAccount parses the deployer address.
func (c *Config) DeployerAccount() ([20]byte, error) {
	return crypto.ParseAccount(c.Deployer)
}

// Accounts parses a list of addresses.
func Accounts(values []string) ([][20]byte, error) {
	out := make([][20]byte, 0, len(values))
	for _, v := range values {
		acct, err := crypto.ParseAccount(v)
		if err != nil {
			return nil, fmt.Errorf("address %q: %w", v, err)
		}
		out = append(out, acct)
	}
	return out, nil
}

// ParseAmount parses a non-negative base-10 integer. Empty strings yield nil.
func ParseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative: %s", value)
	}
	return amount, nil
}

// Stablecoin returns the declared token with symbol.
func (c *Config) Stablecoin(symbol string) (Stablecoin, bool) {
	symbol = nativecommon.NormaliseSymbol(symbol)
	for _, s := range c.Stablecoins {
		if s.Symbol == symbol {
			return s, true
		}
	}
	return Stablecoin{}, false
}
