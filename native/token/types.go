package token

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Kind selects the rule set a stablecoin enforces on top of the base token.
type Kind string

const (
	KindStandard Kind = "standard"
	// KindEMRT requires every counterparty to carry the EMRT compliance flag.
	KindEMRT Kind = "emrt"
	// KindBacked tracks physical reserve bars and enforces a minimum transfer.
	KindBacked Kind = "backed"
)

// ParseKind normalises a configured kind. Empty means standard.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case "", KindStandard:
		return KindStandard, nil
	case KindEMRT:
		return KindEMRT, nil
	case KindBacked:
		return KindBacked, nil
	default:
		return "", fmt.Errorf("token: unknown kind %q", raw)
	}
}

// DefaultMinTransfer is the backed variant's floor in base units.
var DefaultMinTransfer = big.NewInt(10_000)

// MaxPurity is the highest accepted bar fineness in basis points.
const MaxPurity = 9_999

// Config describes a stablecoin instance.
type Config struct {
	Symbol      string
	Name        string
	Currency    string
	Kind        Kind
	Decimals    uint8
	MinTransfer *big.Int
}

// GoldBar is a physical reserve bar backing a token.
type GoldBar struct {
	ID       uint64
	Serial   string
	Weight   uint64
	Refinery string
	Purity   uint64
	Location string
	Active   bool
	Owner    [20]byte
	AddedAt  uint64
}

// Clone returns a copy of the bar.
func (b *GoldBar) Clone() *GoldBar {
	if b == nil {
		return nil
	}
	out := *b
	return &out
}

// ISO20022Message records a payment message attached to a transfer.
type ISO20022Message struct {
	Sequence  uint64
	From      [20]byte
	To        [20]byte
	Amount    *big.Int
	MessageID string
	Purpose   string
	Timestamp uint64
}

// Time returns the message timestamp.
func (m *ISO20022Message) Time() time.Time {
	return time.Unix(int64(m.Timestamp), 0).UTC()
}

type collateralRecord struct {
	Amount *big.Int
	Ratio  *big.Int
}
