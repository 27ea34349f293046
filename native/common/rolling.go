package common

import (
	"errors"
	"math/big"
	"time"
)

// RollingPeriod is the length of a transfer limit window.
const RollingPeriod = 24 * time.Hour

var ErrRollingLimitExceeded = Mark(ClassQuota, errors.New("daily transfer limit exceeded"))

// Window tracks usage against a rolling limit. Start is a unix timestamp; zero
// means the window has never been opened.
type Window struct {
	Used  *big.Int
	Start uint64
}

// Expired reports whether now is at or beyond the end of the window.
func (w Window) Expired(now time.Time) bool {
	if w.Start == 0 {
		return true
	}
	end := time.Unix(int64(w.Start), 0).Add(RollingPeriod)
	return !now.Before(end)
}

// Current returns the window as seen at now, reset when it has expired.
func (w Window) Current(now time.Time) Window {
	if w.Expired(now) {
		return Window{Used: big.NewInt(0), Start: uint64(now.Unix())}
	}
	used := big.NewInt(0)
	if w.Used != nil {
		used.Set(w.Used)
	}
	return Window{Used: used, Start: w.Start}
}

// ConsumeRolling charges amount against limit inside the window active at now.
// A nil or zero limit means unlimited and leaves prev untouched. On failure the
// previous window is returned unchanged.
func ConsumeRolling(limit *big.Int, prev Window, amount *big.Int, now time.Time) (Window, error) {
	if limit == nil || limit.Sign() == 0 {
		return prev, nil
	}
	next := prev.Current(now)
	if amount != nil && amount.Sign() > 0 {
		next.Used.Add(next.Used, amount)
	}
	if next.Used.Cmp(limit) > 0 {
		return prev, ErrRollingLimitExceeded
	}
	return next, nil
}
