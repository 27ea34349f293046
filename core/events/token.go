package events

import (
	"math/big"
	"strconv"

	"solaire/core/types"
)

const (
	TypeTokenTransfer     = "token.transfer"
	TypeTokenMint         = "token.mint"
	TypeTokenBurn         = "token.burn"
	TypeTokenApproval     = "token.approval"
	TypeISO20022Transfer  = "token.iso20022_transfer"
	TypeCollateralUpdated = "token.collateral_updated"
	TypeIBANRegistered    = "token.iban_registered"
)

// Transfer is emitted for every balance movement between two accounts.
type Transfer struct {
	Token  string
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTokenTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenTransfer,
		Attributes: map[string]string{
			"token":  e.Token,
			"from":   addressString(e.From),
			"to":     addressString(e.To),
			"amount": amountString(e.Amount),
		},
	}
}

// Mint is emitted when supply is created.
type Mint struct {
	Token  string
	To     [20]byte
	Amount *big.Int
}

func (Mint) EventType() string { return TypeTokenMint }

func (e Mint) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenMint,
		Attributes: map[string]string{
			"token":  e.Token,
			"to":     addressString(e.To),
			"amount": amountString(e.Amount),
		},
	}
}

// Burn is emitted when supply is destroyed.
type Burn struct {
	Token  string
	From   [20]byte
	Amount *big.Int
}

func (Burn) EventType() string { return TypeTokenBurn }

func (e Burn) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenBurn,
		Attributes: map[string]string{
			"token":  e.Token,
			"from":   addressString(e.From),
			"amount": amountString(e.Amount),
		},
	}
}

// Approval is emitted when an owner sets a spender allowance.
type Approval struct {
	Token   string
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

func (Approval) EventType() string { return TypeTokenApproval }

func (e Approval) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenApproval,
		Attributes: map[string]string{
			"token":   e.Token,
			"owner":   addressString(e.Owner),
			"spender": addressString(e.Spender),
			"amount":  amountString(e.Amount),
		},
	}
}

// ISO20022Transfer carries the payment message metadata of a tagged transfer.
type ISO20022Transfer struct {
	Token     string
	Sequence  uint64
	From      [20]byte
	To        [20]byte
	Amount    *big.Int
	MessageID string
	Purpose   string
}

func (ISO20022Transfer) EventType() string { return TypeISO20022Transfer }

func (e ISO20022Transfer) Event() *types.Event {
	return &types.Event{
		Type: TypeISO20022Transfer,
		Attributes: map[string]string{
			"token":     e.Token,
			"sequence":  strconv.FormatUint(e.Sequence, 10),
			"from":      addressString(e.From),
			"to":        addressString(e.To),
			"amount":    amountString(e.Amount),
			"messageId": e.MessageID,
			"purpose":   e.Purpose,
		},
	}
}

// CollateralUpdated reports a new attested collateral figure and the derived ratio.
type CollateralUpdated struct {
	Token      string
	Collateral *big.Int
	Ratio      *big.Int
}

func (CollateralUpdated) EventType() string { return TypeCollateralUpdated }

func (e CollateralUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralUpdated,
		Attributes: map[string]string{
			"token":      e.Token,
			"collateral": amountString(e.Collateral),
			"ratio":      amountString(e.Ratio),
		},
	}
}

// IBANRegistered links a bank account identifier to a holder.
type IBANRegistered struct {
	Token   string
	Account [20]byte
	IBAN    string
}

func (IBANRegistered) EventType() string { return TypeIBANRegistered }

func (e IBANRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeIBANRegistered,
		Attributes: map[string]string{
			"token":   e.Token,
			"account": addressString(e.Account),
			"iban":    e.IBAN,
		},
	}
}
