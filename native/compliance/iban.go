package compliance

import (
	"errors"
	"math/big"
	"strings"

	nativecommon "solaire/native/common"
)

var ErrInvalidIBAN = nativecommon.Mark(nativecommon.ClassValue, errors.New("compliance: invalid IBAN"))

var ninetySeven = big.NewInt(97)

// NormaliseIBAN folds the identifier to NFKC, strips spaces and upper-cases it.
func NormaliseIBAN(raw string) string {
	return strings.ReplaceAll(nativecommon.NormaliseSymbol(raw), " ", "")
}

// ValidateIBAN checks the structure and ISO 13616 mod-97 checksum of iban and
// returns its normalised form.
func ValidateIBAN(raw string) (string, error) {
	iban := NormaliseIBAN(raw)
	if len(iban) < 15 || len(iban) > 34 {
		return "", ErrInvalidIBAN
	}
	for i, c := range iban {
		switch {
		case i < 2 && (c < 'A' || c > 'Z'):
			return "", ErrInvalidIBAN
		case i >= 2 && i < 4 && (c < '0' || c > '9'):
			return "", ErrInvalidIBAN
		case (c < '0' || c > '9') && (c < 'A' || c > 'Z'):
			return "", ErrInvalidIBAN
		}
	}
	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, c := range rearranged {
		if c >= 'A' && c <= 'Z' {
			digits.WriteString(big.NewInt(int64(c - 'A' + 10)).String())
			continue
		}
		digits.WriteRune(c)
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok || new(big.Int).Mod(n, ninetySeven).Int64() != 1 {
		return "", ErrInvalidIBAN
	}
	return iban, nil
}
