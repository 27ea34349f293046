package core

import (
	"math/big"

	"solaire/native/compliance"
	"solaire/native/governance"
	"solaire/native/oracle"
	"solaire/native/token"
	"solaire/observability"
)

// TokenInfo summarises a deployed token.
type TokenInfo struct {
	Symbol          string
	Name            string
	Currency        string
	Kind            token.Kind
	Decimals        uint8
	MinTransfer     *big.Int
	TotalSupply     *big.Int
	Collateral      *big.Int
	CollateralRatio *big.Int
	Paused          bool
	Swappable       bool
	VaultPayout     bool
}

// SwapParameters are the swap engine's current settings.
type SwapParameters struct {
	FeeBps         uint64
	MaxSlippageBps uint64
	Tokens         []string
	Paused         bool
}

func (l *Ledger) NativeBalance(account [20]byte) (*big.Int, error) {
	var out *big.Int
	err := l.View(func() (err error) {
		out, err = l.bank.Balance(account)
		return err
	})
	return out, err
}

func (l *Ledger) BalanceOf(symbol string, account [20]byte) (*big.Int, error) {
	var out *big.Int
	err := l.View(func() error {
		tok, err := l.token(symbol)
		if err != nil {
			return err
		}
		out, err = tok.BalanceOf(account)
		return err
	})
	return out, err
}

func (l *Ledger) Allowance(symbol string, owner, spender [20]byte) (*big.Int, error) {
	var out *big.Int
	err := l.View(func() error {
		tok, err := l.token(symbol)
		if err != nil {
			return err
		}
		out, err = tok.Allowance(owner, spender)
		return err
	})
	return out, err
}

func (l *Ledger) TokenInfo(symbol string) (TokenInfo, error) {
	var info TokenInfo
	err := l.View(func() error {
		tok, err := l.token(symbol)
		if err != nil {
			return err
		}
		info = TokenInfo{
			Symbol:      tok.Symbol(),
			Name:        tok.Name(),
			Currency:    tok.Currency(),
			Kind:        tok.Kind(),
			Decimals:    tok.Decimals(),
			MinTransfer: tok.MinTransfer(),
			Paused:      tok.Paused(),
			Swappable:   l.swap.IsSupported(tok.Symbol()),
			VaultPayout: l.vault.IsStablecoin(tok.Symbol()),
		}
		if info.TotalSupply, err = tok.TotalSupply(); err != nil {
			return err
		}
		if info.Collateral, err = tok.Collateral(); err != nil {
			return err
		}
		info.CollateralRatio, err = tok.CollateralRatio()
		return err
	})
	return info, err
}

func (l *Ledger) ISO20022Message(symbol string, seq uint64) (*token.ISO20022Message, bool, error) {
	var (
		msg   *token.ISO20022Message
		found bool
	)
	err := l.View(func() error {
		tok, err := l.token(symbol)
		if err != nil {
			return err
		}
		msg, found, err = tok.ISO20022Message(seq)
		return err
	})
	return msg, found, err
}

func (l *Ledger) GoldBar(symbol string, id uint64) (*token.GoldBar, error) {
	var bar *token.GoldBar
	err := l.View(func() error {
		tok, err := l.token(symbol)
		if err != nil {
			return err
		}
		bar, err = tok.GoldBar(id)
		return err
	})
	return bar, err
}

func (l *Ledger) OwnedBars(symbol string, owner [20]byte) ([]uint64, error) {
	var ids []uint64
	err := l.View(func() error {
		tok, err := l.token(symbol)
		if err != nil {
			return err
		}
		ids, err = tok.OwnedBars(owner)
		return err
	})
	return ids, err
}

func (l *Ledger) IBAN(symbol string, account [20]byte) (string, error) {
	var iban string
	err := l.View(func() error {
		tok, err := l.token(symbol)
		if err != nil {
			return err
		}
		iban, err = tok.IBAN(account)
		return err
	})
	return iban, err
}

func (l *Ledger) ComplianceStatus(account [20]byte) (compliance.Status, error) {
	var status compliance.Status
	err := l.View(func() (err error) {
		status, err = l.compliance.Status(account)
		return err
	})
	return status, err
}

func (l *Ledger) Proxy(id string) (*governance.Proxy, error) {
	var proxy *governance.Proxy
	err := l.View(func() (err error) {
		proxy, err = l.controller.Proxy(id)
		return err
	})
	return proxy, err
}

func (l *Ledger) Proxies() ([]string, error) {
	var ids []string
	err := l.View(func() (err error) {
		ids, err = l.controller.Proxies()
		return err
	})
	return ids, err
}

// GlobalPaused reports whether the controller's pause switch is engaged.
func (l *Ledger) GlobalPaused() bool {
	var paused bool
	_ = l.View(func() error {
		paused = l.controller.Paused()
		return nil
	})
	return paused
}

func (l *Ledger) Deposits(account [20]byte) (*big.Int, error) {
	var out *big.Int
	err := l.View(func() (err error) {
		out, err = l.vault.Deposits(account)
		return err
	})
	return out, err
}

func (l *Ledger) TotalDeposits() (*big.Int, error) {
	var out *big.Int
	err := l.View(func() (err error) {
		out, err = l.vault.TotalDeposits()
		return err
	})
	return out, err
}

// RequiredNative values amount of symbol in native units at the current price.
func (l *Ledger) RequiredNative(symbol string, amount *big.Int) (*big.Int, error) {
	var out *big.Int
	err := l.View(func() (err error) {
		out, err = l.vault.RequiredNative(symbol, amount)
		return err
	})
	return out, err
}

// Price returns the validated current price of the native asset.
func (l *Ledger) Price() (oracle.PriceReading, error) {
	var reading oracle.PriceReading
	err := l.View(func() (err error) {
		reading, err = l.prices.CurrentPrice()
		return err
	})
	if err == nil {
		observability.Ledger().SetOraclePrice(reading.Price)
	}
	return reading, err
}

func (l *Ledger) RoundData(roundID uint64) (oracle.RoundData, error) {
	var round oracle.RoundData
	err := l.View(func() (err error) {
		round, err = l.vault.GetRoundData(roundID)
		return err
	})
	return round, err
}

// Quote prices a swap without executing it.
func (l *Ledger) Quote(tokenIn, tokenOut string, amountIn *big.Int) (*big.Int, *big.Int, error) {
	var expected, minOut *big.Int
	err := l.View(func() (err error) {
		expected, minOut, err = l.swap.GetAmountOut(tokenIn, tokenOut, amountIn)
		return err
	})
	return expected, minOut, err
}

func (l *Ledger) SwapParameters() (SwapParameters, error) {
	var params SwapParameters
	err := l.View(func() (err error) {
		if params.FeeBps, err = l.swap.SwapFee(); err != nil {
			return err
		}
		if params.MaxSlippageBps, err = l.swap.MaxSlippage(); err != nil {
			return err
		}
		params.Paused = l.swap.Paused()
		params.Tokens, err = l.swap.SupportedTokens()
		return err
	})
	return params, err
}
