package compliance

import "strconv"

var (
	accountPrefix   = []byte("compliance/account/")
	tierLimitPrefix = []byte("compliance/tier-limit/")
)

func accountKey(addr [20]byte) []byte {
	return append(append([]byte(nil), accountPrefix...), addr[:]...)
}

func tierLimitKey(tier uint8) []byte {
	return append(append([]byte(nil), tierLimitPrefix...), strconv.Itoa(int(tier))...)
}
