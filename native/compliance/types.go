package compliance

import (
	"math/big"
	"time"
)

// MaxKYCTier is the highest verification tier.
const MaxKYCTier uint8 = 3

// Status is the aggregate compliance view of an account.
type Status struct {
	Whitelisted   bool
	Blacklisted   bool
	EMRTCompliant bool
	KYCLevel      uint8
	KYCExpiry     time.Time
	KYCVerified   bool
	DailyLimit    *big.Int
	Used          *big.Int
	WindowStart   time.Time
}

type accountRecord struct {
	Whitelisted bool
	Blacklisted bool
	EMRT        bool
	KYCTier     uint8
	KYCExpiry   uint64
	DailyLimit  *big.Int
	Used        *big.Int
	WindowStart uint64
}

func (r *accountRecord) normalise() {
	if r.DailyLimit == nil {
		r.DailyLimit = big.NewInt(0)
	}
	if r.Used == nil {
		r.Used = big.NewInt(0)
	}
}

func (r *accountRecord) kycVerified(now time.Time) bool {
	return r.KYCTier > 0 && r.KYCExpiry > uint64(now.Unix())
}
