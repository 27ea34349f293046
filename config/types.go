package config

// Roles names the accounts granted each privileged role at bootstrap. Entries
// are bech32 or 0x-prefixed hex addresses.
type Roles struct {
	Admin             []string `toml:"Admin"`
	Upgrader          []string `toml:"Upgrader"`
	Pauser            []string `toml:"Pauser"`
	Compliance        []string `toml:"Compliance"`
	Minter            []string `toml:"Minter"`
	Burner            []string `toml:"Burner"`
	CollateralManager []string `toml:"CollateralManager"`
}

// Governance tunes the upgrade controller.
type Governance struct {
	TimelockSeconds uint64  `toml:"TimelockSeconds"`
	Proxies         []Proxy `toml:"Proxies"`
}

// Proxy registers an upgradeable component at bootstrap.
type Proxy struct {
	ID             string `toml:"ID"`
	Implementation string `toml:"Implementation"`
}

// TierLimit is the rolling 24h transfer limit for a verified KYC tier.
type TierLimit struct {
	Tier  uint8  `toml:"Tier"`
	Limit string `toml:"Limit"`
}

// Compliance seeds the registry.
type Compliance struct {
	TierLimits []TierLimit `toml:"TierLimits"`
	Whitelist  []string    `toml:"Whitelist"`
}

// Swap tunes the swap engine.
type Swap struct {
	FeeBps         uint64 `toml:"FeeBps"`
	MaxSlippageBps uint64 `toml:"MaxSlippageBps"`
	// Liquidity is minted to the swap module per symbol at bootstrap.
	Liquidity []Allocation `toml:"Liquidity"`
}

// Vault tunes the collateral vault.
type Vault struct {
	NativeDecimals uint8    `toml:"NativeDecimals"`
	DepositCeiling string   `toml:"DepositCeiling"`
	Stablecoins    []string `toml:"Stablecoins"`
}

// Oracle selects and tunes the native asset price feed.
type Oracle struct {
	Kind              string  `toml:"Kind"`
	Decimals          uint8   `toml:"Decimals"`
	InitialAnswer     string  `toml:"InitialAnswer"`
	Endpoint          string  `toml:"Endpoint"`
	MaxAgeSeconds     uint64  `toml:"MaxAgeSeconds"`
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	TimeoutSeconds    uint64  `toml:"TimeoutSeconds"`
}

// Quota defines per-caller operation limits for each module.
type Quota struct {
	MaxRequestsPerEpoch uint32 `toml:"MaxRequestsPerEpoch"`
	EpochSeconds        uint32 `toml:"EpochSeconds"`
}

// Stablecoin declares a token deployed at bootstrap.
type Stablecoin struct {
	Symbol      string `toml:"Symbol"`
	Name        string `toml:"Name"`
	Currency    string `toml:"Currency"`
	Kind        string `toml:"Kind"`
	Decimals    uint8  `toml:"Decimals"`
	MinTransfer string `toml:"MinTransfer"`
	Swappable   bool   `toml:"Swappable"`
}

// Allocation credits Amount to Account. Symbol is empty for the native asset.
type Allocation struct {
	Account string `toml:"Account"`
	Symbol  string `toml:"Symbol,omitempty"`
	Amount  string `toml:"Amount"`
}

// Logging configures the structured logger.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}
