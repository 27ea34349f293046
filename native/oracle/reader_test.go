package oracle

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestCurrentPriceReturnsRawAnswer(t *testing.T) {
	feed := NewMockAggregator(8, big.NewInt(200_000_000_000))
	reader := NewReader(feed, 0)

	reading, err := reader.CurrentPrice()
	if err != nil {
		t.Fatalf("current price: %v", err)
	}
	if reading.Price.Cmp(big.NewInt(200_000_000_000)) != 0 || reading.Decimals != 8 || reading.RoundID != 1 {
		t.Fatalf("unexpected reading: %+v", reading)
	}
}

func TestCurrentPriceRejectsNonPositive(t *testing.T) {
	feed := NewMockAggregator(8, big.NewInt(0))
	reader := NewReader(feed, 0)
	if _, err := reader.CurrentPrice(); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for zero, got %v", err)
	}
	feed.UpdateAnswer(big.NewInt(-1))
	if _, err := reader.CurrentPrice(); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for negative, got %v", err)
	}
}

func TestCurrentPriceStaleness(t *testing.T) {
	base := time.Unix(1_700_000_000, 0).UTC()
	feed := NewMockAggregator(8, nil)
	feed.SetNowFunc(func() time.Time { return base })
	feed.UpdateAnswer(big.NewInt(100))

	reader := NewReader(feed, time.Hour)
	reader.SetNowFunc(func() time.Time { return base.Add(time.Hour) })
	if _, err := reader.CurrentPrice(); err != nil {
		t.Fatalf("price at max age must be accepted: %v", err)
	}
	reader.SetNowFunc(func() time.Time { return base.Add(time.Hour + time.Second) })
	if _, err := reader.CurrentPrice(); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice, got %v", err)
	}
}

func TestCurrentPriceRejectsCarriedAnswer(t *testing.T) {
	feed := NewMockAggregator(8, big.NewInt(100))
	feed.SetRound(RoundData{RoundID: 2, Answer: big.NewInt(100), AnsweredInRound: 1})
	reader := NewReader(feed, 0)
	if _, err := reader.CurrentPrice(); !errors.Is(err, ErrStaleRound) {
		t.Fatalf("expected ErrStaleRound, got %v", err)
	}
}

func TestRoundDataHistory(t *testing.T) {
	feed := NewMockAggregator(8, big.NewInt(100))
	feed.UpdateAnswer(big.NewInt(200))
	reader := NewReader(feed, 0)

	round, err := reader.RoundData(1)
	if err != nil {
		t.Fatalf("round 1: %v", err)
	}
	if round.Answer.Int64() != 100 {
		t.Fatalf("unexpected round 1 answer %s", round.Answer)
	}
	if _, err := reader.RoundData(9); !errors.Is(err, ErrUnknownRound) {
		t.Fatalf("expected ErrUnknownRound, got %v", err)
	}
}
