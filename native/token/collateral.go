package token

import (
	"math/big"

	"solaire/core/events"
	"solaire/native/compliance"
)

// RatioScale is the fixed-point scale collateral ratios are expressed in.
var RatioScale = big.NewInt(1_000_000_000_000_000_000)

// UpdateCollateral records an attested collateral amount and recomputes the
// ratio against the current supply. The figure is trusted as reported.
func (e *Engine) UpdateCollateral(caller [20]byte, amount *big.Int) error {
	if e.state == nil {
		return errStateNotConfigured
	}
	if err := e.roles.Authorize("updateCollateral", caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	supply, err := e.TotalSupply()
	if err != nil {
		return err
	}
	ratio := big.NewInt(0)
	if supply.Sign() > 0 {
		ratio.Mul(amount, RatioScale)
		ratio.Quo(ratio, supply)
	}
	rec := collateralRecord{Amount: new(big.Int).Set(amount), Ratio: ratio}
	if err := e.state.KVPut(e.collateralKey(), rec); err != nil {
		return err
	}
	e.emit(events.CollateralUpdated{Token: e.symbol, Collateral: new(big.Int).Set(amount), Ratio: new(big.Int).Set(ratio)})
	return nil
}

func (e *Engine) collateral() (collateralRecord, error) {
	rec := collateralRecord{}
	if e.state == nil {
		return rec, errStateNotConfigured
	}
	if _, err := e.state.KVGet(e.collateralKey(), &rec); err != nil {
		return rec, err
	}
	if rec.Amount == nil {
		rec.Amount = big.NewInt(0)
	}
	if rec.Ratio == nil {
		rec.Ratio = big.NewInt(0)
	}
	return rec, nil
}

// Collateral returns the last attested collateral amount.
func (e *Engine) Collateral() (*big.Int, error) {
	rec, err := e.collateral()
	return rec.Amount, err
}

// CollateralRatio returns collateral * 1e18 / supply as of the last update.
func (e *Engine) CollateralRatio() (*big.Int, error) {
	rec, err := e.collateral()
	return rec.Ratio, err
}

// RegisterIBAN links a validated bank account identifier to account.
func (e *Engine) RegisterIBAN(caller, account [20]byte, iban string) error {
	if e.state == nil {
		return errStateNotConfigured
	}
	if err := e.roles.Authorize("registerIban", caller); err != nil {
		return err
	}
	if account == ([20]byte{}) {
		return ErrZeroAddress
	}
	normalised, err := compliance.ValidateIBAN(iban)
	if err != nil {
		return err
	}
	if err := e.state.KVPut(e.ibanKey(account), normalised); err != nil {
		return err
	}
	e.emit(events.IBANRegistered{Token: e.symbol, Account: account, IBAN: normalised})
	return nil
}

// IBAN returns the identifier registered for account, if any.
func (e *Engine) IBAN(account [20]byte) (string, error) {
	if e.state == nil {
		return "", errStateNotConfigured
	}
	var iban string
	if _, err := e.state.KVGet(e.ibanKey(account), &iban); err != nil {
		return "", err
	}
	return iban, nil
}
