package events

import (
	"math/big"
	"strconv"
	"time"

	"solaire/crypto"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addressString(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return crypto.FromRaw(addr).String()
}

func unixString(ts time.Time) string {
	if ts.IsZero() {
		return "0"
	}
	return strconv.FormatInt(ts.Unix(), 10)
}
