package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

var errFeedNotConfigured = errors.New("oracle: feed not configured")

// PriceReading is a validated price observation.
type PriceReading struct {
	Price     *big.Int
	Decimals  uint8
	Timestamp time.Time
	RoundID   uint64
}

// Reader validates feed rounds before they are used for valuation.
type Reader struct {
	feed   Feed
	maxAge time.Duration
	nowFn  func() time.Time
}

// NewReader wraps feed. A zero maxAge disables the staleness check.
func NewReader(feed Feed, maxAge time.Duration) *Reader {
	return &Reader{
		feed:   feed,
		maxAge: maxAge,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock used for staleness checks.
func (r *Reader) SetNowFunc(now func() time.Time) {
	if now == nil {
		r.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	r.nowFn = now
}

// MaxAge reports the staleness bound.
func (r *Reader) MaxAge() time.Duration { return r.maxAge }

// Decimals returns the feed's answer scale.
func (r *Reader) Decimals() uint8 {
	if r == nil || r.feed == nil {
		return 0
	}
	return r.feed.Decimals()
}

// CurrentPrice returns the latest answer after checking it is positive, fresh
// and answered in its own round.
func (r *Reader) CurrentPrice() (PriceReading, error) {
	if r == nil || r.feed == nil {
		return PriceReading{}, errFeedNotConfigured
	}
	round, err := r.feed.LatestRoundData()
	if err != nil {
		return PriceReading{}, fmt.Errorf("oracle: latest round: %w", err)
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return PriceReading{}, ErrInvalidPrice
	}
	if round.AnsweredInRound < round.RoundID {
		return PriceReading{}, fmt.Errorf("%w: answered in %d, round %d", ErrStaleRound, round.AnsweredInRound, round.RoundID)
	}
	if r.maxAge > 0 {
		if round.UpdatedAt.IsZero() {
			return PriceReading{}, ErrStalePrice
		}
		if age := r.nowFn().Sub(round.UpdatedAt); age > r.maxAge {
			return PriceReading{}, fmt.Errorf("%w: age %s exceeds %s", ErrStalePrice, age, r.maxAge)
		}
	}
	return PriceReading{
		Price:     new(big.Int).Set(round.Answer),
		Decimals:  r.feed.Decimals(),
		Timestamp: round.UpdatedAt,
		RoundID:   round.RoundID,
	}, nil
}

// RoundData returns a historical round without validation.
func (r *Reader) RoundData(roundID uint64) (RoundData, error) {
	if r == nil || r.feed == nil {
		return RoundData{}, errFeedNotConfigured
	}
	return r.feed.GetRoundData(roundID)
}
