package crypto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AccountPrefix is the bech32 human-readable part for ledger accounts.
const AccountPrefix = "slr"

const accountLength = 20

var errEmptyAccount = errors.New("empty address")

// Address is a 20-byte ledger account paired with its bech32 prefix.
type Address struct {
	hrp string
	raw [accountLength]byte
}

// FromRaw wraps an account identifier with the default prefix.
func FromRaw(raw [accountLength]byte) Address {
	return Address{hrp: AccountPrefix, raw: raw}
}

// String renders the bech32 form. Encoding a fixed 20-byte payload cannot fail
// for a valid prefix, so the hex form is returned as a fallback.
func (a Address) String() string {
	words, err := bech32.ConvertBits(a.raw[:], 8, 5, true)
	if err != nil {
		return a.Hex()
	}
	hrp := a.hrp
	if hrp == "" {
		hrp = AccountPrefix
	}
	encoded, err := bech32.Encode(hrp, words)
	if err != nil {
		return a.Hex()
	}
	return encoded
}

// Raw returns the identifier used as a state key.
func (a Address) Raw() [accountLength]byte { return a.raw }

// Prefix returns the bech32 human-readable part.
func (a Address) Prefix() string { return a.hrp }

// Hex renders the account as an EIP-55 checksummed 0x string.
func (a Address) Hex() string {
	return common.BytesToAddress(a.raw[:]).Hex()
}

// DecodeAddress parses a bech32 account of any prefix.
func DecodeAddress(value string) (Address, error) {
	hrp, words, err := bech32.Decode(value)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	payload, err := bech32.ConvertBits(words, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("convert bech32 payload: %w", err)
	}
	if len(payload) != accountLength {
		return Address{}, fmt.Errorf("invalid address length %d", len(payload))
	}
	addr := Address{hrp: hrp}
	copy(addr.raw[:], payload)
	return addr, nil
}

// ParseAccount accepts either a bech32 string or a 0x-prefixed hex address.
func ParseAccount(value string) ([accountLength]byte, error) {
	trimmed := strings.TrimSpace(value)
	switch {
	case trimmed == "":
		return [accountLength]byte{}, errEmptyAccount
	case strings.HasPrefix(trimmed, "0x"), strings.HasPrefix(trimmed, "0X"):
		if !common.IsHexAddress(trimmed) {
			return [accountLength]byte{}, fmt.Errorf("invalid hex address %q", trimmed)
		}
		return common.HexToAddress(trimmed), nil
	}
	addr, err := DecodeAddress(trimmed)
	if err != nil {
		return [accountLength]byte{}, err
	}
	return addr.Raw(), nil
}

// ModuleAddress derives the account a native module holds funds under.
func ModuleAddress(name string) [accountLength]byte {
	var raw [accountLength]byte
	copy(raw[:], crypto.Keccak256([]byte("solaire/module/" + name))[12:])
	return raw
}
