package core

import (
	"math/big"

	"solaire/native/swap"
)

// vaultPayer mints vault payouts. The vault account holds the minter role on
// every payout token.
type vaultPayer struct{ ledger *Ledger }

func (p vaultPayer) StablecoinDecimals(symbol string) (uint8, error) {
	tok, err := p.ledger.token(symbol)
	if err != nil {
		return 0, err
	}
	return tok.Decimals(), nil
}

func (p vaultPayer) PayStablecoin(symbol string, to [20]byte, amount *big.Int) error {
	tok, err := p.ledger.token(symbol)
	if err != nil {
		return err
	}
	return tok.Mint(VaultAccount, to, amount)
}

// swapTokens exposes deployed tokens to the swap engine.
type swapTokens struct{ ledger *Ledger }

func (s swapTokens) Token(symbol string) (swap.Token, bool) {
	tok, err := s.ledger.token(symbol)
	if err != nil {
		return nil, false
	}
	return tok, true
}
