package common

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestConsumeRollingBoundaryAndReset(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	limit := big.NewInt(5_000_000)

	w, err := ConsumeRolling(limit, Window{}, big.NewInt(3_000_000), start)
	if err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	if w.Start != uint64(start.Unix()) || w.Used.Int64() != 3_000_000 {
		t.Fatalf("unexpected window %+v", w)
	}

	w, err = ConsumeRolling(limit, w, big.NewInt(2_000_000), start.Add(time.Hour))
	if err != nil {
		t.Fatalf("transfer reaching the limit exactly: %v", err)
	}

	denied, err := ConsumeRolling(limit, w, big.NewInt(1), start.Add(RollingPeriod-time.Second))
	if !errors.Is(err, ErrRollingLimitExceeded) {
		t.Fatalf("expected limit error, got %v", err)
	}
	if denied.Used.Cmp(w.Used) != 0 || denied.Start != w.Start {
		t.Fatalf("window changed on denial: %+v", denied)
	}

	reset, err := ConsumeRolling(limit, w, big.NewInt(3_000_000), start.Add(RollingPeriod))
	if err != nil {
		t.Fatalf("transfer after window end: %v", err)
	}
	if reset.Used.Int64() != 3_000_000 || reset.Start != uint64(start.Add(RollingPeriod).Unix()) {
		t.Fatalf("expected reset window, got %+v", reset)
	}
}

func TestConsumeRollingUnlimited(t *testing.T) {
	prev := Window{}
	next, err := ConsumeRolling(nil, prev, big.NewInt(1_000_000_000), time.Unix(10, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Start != 0 || next.Used != nil {
		t.Fatalf("unlimited accounts must not open a window: %+v", next)
	}
}

func TestGuardAndPauseSet(t *testing.T) {
	set := PauseSet{nil, stubPause{"vault": true}}
	if err := Guard(set, "vault"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if err := Guard(set, "swap"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Guard(nil, "vault"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
}

func TestReentrancyGuard(t *testing.T) {
	var g ReentrancyGuard
	if err := g.Enter(); err != nil {
		t.Fatalf("first enter: %v", err)
	}
	if err := g.Enter(); !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("expected reentrancy error, got %v", err)
	}
	g.Exit()
	if err := g.Enter(); err != nil {
		t.Fatalf("enter after exit: %v", err)
	}
}

type stubPause map[string]bool

func (s stubPause) IsPaused(module string) bool { return s[module] }
