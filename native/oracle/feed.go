package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	nativecommon "solaire/native/common"
)

var (
	ErrInvalidPrice = nativecommon.Mark(nativecommon.ClassValue, errors.New("oracle: invalid price feed data"))
	ErrStalePrice   = nativecommon.Mark(nativecommon.ClassValue, errors.New("oracle: price is stale"))
	ErrStaleRound   = nativecommon.Mark(nativecommon.ClassValue, errors.New("oracle: answer carried over from an earlier round"))
	ErrUnknownRound = nativecommon.Mark(nativecommon.ClassValue, errors.New("oracle: round not found"))
)

// RoundData mirrors a single aggregator round.
type RoundData struct {
	RoundID         uint64
	Answer          *big.Int
	StartedAt       time.Time
	UpdatedAt       time.Time
	AnsweredInRound uint64
}

// Clone returns a deep copy of the round.
func (r RoundData) Clone() RoundData {
	out := r
	if r.Answer != nil {
		out.Answer = new(big.Int).Set(r.Answer)
	}
	return out
}

// Feed is a price source reporting the native asset price in quote units
// scaled by 10^Decimals.
type Feed interface {
	Decimals() uint8
	LatestRoundData() (RoundData, error)
	GetRoundData(roundID uint64) (RoundData, error)
}

// MockAggregator is an in-memory feed that keeps its full round history.
type MockAggregator struct {
	mu       sync.RWMutex
	decimals uint8
	rounds   []RoundData
	nowFn    func() time.Time
}

// NewMockAggregator seeds round 1 with the initial answer.
func NewMockAggregator(decimals uint8, initial *big.Int) *MockAggregator {
	m := &MockAggregator{decimals: decimals, nowFn: func() time.Time { return time.Now().UTC() }}
	m.UpdateAnswer(initial)
	return m
}

// SetNowFunc overrides the clock used to stamp new rounds.
func (m *MockAggregator) SetNowFunc(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now == nil {
		m.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	m.nowFn = now
}

// UpdateAnswer opens a new round carrying answer.
func (m *MockAggregator) UpdateAnswer(answer *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uint64(len(m.rounds) + 1)
	now := m.nowFn()
	value := big.NewInt(0)
	if answer != nil {
		value.Set(answer)
	}
	m.rounds = append(m.rounds, RoundData{
		RoundID:         id,
		Answer:          value,
		StartedAt:       now,
		UpdatedAt:       now,
		AnsweredInRound: id,
	})
}

// SetRound overwrites round metadata. Tests use it to simulate lagging feeds.
func (m *MockAggregator) SetRound(round RoundData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if round.RoundID == 0 {
		return
	}
	for uint64(len(m.rounds)) < round.RoundID {
		m.rounds = append(m.rounds, RoundData{RoundID: uint64(len(m.rounds) + 1), Answer: big.NewInt(0)})
	}
	m.rounds[round.RoundID-1] = round.Clone()
}

// Decimals reports the scale of answers.
func (m *MockAggregator) Decimals() uint8 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.decimals
}

// LatestRoundData returns the most recent round.
func (m *MockAggregator) LatestRoundData() (RoundData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.rounds) == 0 {
		return RoundData{}, ErrUnknownRound
	}
	return m.rounds[len(m.rounds)-1].Clone(), nil
}

// GetRoundData returns a recorded round or ErrUnknownRound.
func (m *MockAggregator) GetRoundData(roundID uint64) (RoundData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if roundID == 0 || roundID > uint64(len(m.rounds)) {
		return RoundData{}, fmt.Errorf("%w: %d", ErrUnknownRound, roundID)
	}
	return m.rounds[roundID-1].Clone(), nil
}
