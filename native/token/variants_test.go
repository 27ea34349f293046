package token

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"solaire/core/events"
	"solaire/native/compliance"
)

func TestEMRTRequiresFlag(t *testing.T) {
	f := newTokenFixture(t, Config{Symbol: "EURT", Kind: KindEMRT, Decimals: 6})
	f.whitelist(t, alice, bob)
	if err := f.token.Mint(admin, alice, big.NewInt(1)); !errors.Is(err, compliance.ErrEMRTNonCompliant) {
		t.Fatalf("expected EMRT error on mint, got %v", err)
	}
	_ = f.reg.SetEMRTCompliance(officer, alice, true)
	if err := f.token.Mint(admin, alice, big.NewInt(10_000_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.token.Transfer(alice, bob, big.NewInt(1)); !errors.Is(err, compliance.ErrEMRTNonCompliant) {
		t.Fatalf("expected EMRT error, got %v", err)
	}
	_ = f.reg.SetEMRTCompliance(officer, bob, true)
	if err := f.token.Transfer(alice, bob, big.NewInt(1)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
}

func TestEMRTDailyLimit(t *testing.T) {
	f := newTokenFixture(t, Config{Symbol: "EURT", Kind: KindEMRT, Decimals: 6})
	f.whitelist(t, alice, bob)
	_ = f.reg.SetEMRTCompliance(officer, alice, true)
	_ = f.reg.SetEMRTCompliance(officer, bob, true)
	_ = f.token.Mint(admin, alice, big.NewInt(20_000_000))

	if err := f.token.Transfer(alice, bob, big.NewInt(3_000_000)); err != nil {
		t.Fatalf("unlimited transfer: %v", err)
	}

	f.now = f.now.Add(time.Hour)
	_ = f.reg.SetTransferLimit(officer, alice, big.NewInt(5_000_000))
	// usage before a limit existed is not counted
	if err := f.token.Transfer(alice, bob, big.NewInt(3_000_000)); err != nil {
		t.Fatalf("first limited transfer: %v", err)
	}
	if err := f.token.Transfer(alice, bob, big.NewInt(3_000_000)); !errors.Is(err, compliance.ErrDailyLimitExceeded) {
		t.Fatalf("expected daily limit exceeded, got %v", err)
	}
	f.now = f.now.Add(86_400 * time.Second)
	if err := f.token.Transfer(alice, bob, big.NewInt(3_000_000)); err != nil {
		t.Fatalf("transfer after 24h: %v", err)
	}

	f.now = f.now.Add(86_400 * time.Second)
	_ = f.reg.SetTransferLimit(officer, alice, big.NewInt(2_000_000))
	if err := f.token.Transfer(alice, bob, big.NewInt(3_000_000)); !errors.Is(err, compliance.ErrDailyLimitExceeded) {
		t.Fatalf("expected lowered limit to apply, got %v", err)
	}
}

func newBackedFixture(t *testing.T) *tokenFixture {
	t.Helper()
	f := newTokenFixture(t, Config{Symbol: "XAUT", Kind: KindBacked, Decimals: 6})
	f.whitelist(t, alice, bob)
	return f
}

func TestBackedMinimumTransfer(t *testing.T) {
	f := newBackedFixture(t)
	_ = f.token.Mint(admin, alice, big.NewInt(100_000))
	if err := f.token.Transfer(alice, bob, big.NewInt(9_999)); !errors.Is(err, ErrBelowMinimumTransfer) {
		t.Fatalf("expected below minimum, got %v", err)
	}
	if err := f.token.Transfer(alice, bob, big.NewInt(10_000)); err != nil {
		t.Fatalf("transfer at floor: %v", err)
	}
	if err := f.token.Burn(admin, alice, big.NewInt(5_000)); err != nil {
		t.Fatalf("burns are not subject to the floor: %v", err)
	}
	if f.balance(t, alice) != 85_000 {
		t.Fatalf("unexpected balance %d", f.balance(t, alice))
	}
}

func TestGoldBarLifecycle(t *testing.T) {
	f := newBackedFixture(t)
	id, err := f.token.AddGoldBar(admin, "SN-001", 400, "LBMA", 9999, "London")
	if err != nil {
		t.Fatalf("add bar: %v", err)
	}
	if id != 1 {
		t.Fatalf("bar ids must start at 1, got %d", id)
	}
	added := f.rec.OfType(events.TypeGoldBarAdded)
	if len(added) != 1 || added[0].(events.GoldBarAdded).Refinery != "LBMA" {
		t.Fatalf("unexpected add events %v", added)
	}

	if _, err := f.token.AddGoldBar(admin, "SN-002", 400, "LBMA", 10_000, "London"); !errors.Is(err, ErrInvalidPurity) {
		t.Fatalf("expected invalid purity, got %v", err)
	}
	if _, err := f.token.AddGoldBar(admin, "SN-001", 400, "LBMA", 9999, "Zurich"); !errors.Is(err, ErrDuplicateSerial) {
		t.Fatalf("expected duplicate serial, got %v", err)
	}
	id2, err := f.token.AddGoldBar(admin, "SN-002", 100, "LBMA", 9990, "Zurich")
	if err != nil || id2 != 2 {
		t.Fatalf("second bar: %d %v", id2, err)
	}

	if err := f.token.AssignBarOwnership(admin, id, alice); err != nil {
		t.Fatalf("assign: %v", err)
	}
	transfers := f.rec.OfType(events.TypeGoldBarOwnershipTransferred)
	first := transfers[0].(events.GoldBarOwnershipTransferred)
	if first.Previous != ([20]byte{}) || first.Owner != alice {
		t.Fatalf("unexpected ownership event %+v", first)
	}
	if err := f.token.AssignBarOwnership(admin, id, bob); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	aliceBars, _ := f.token.OwnedBars(alice)
	bobBars, _ := f.token.OwnedBars(bob)
	if len(aliceBars) != 0 || len(bobBars) != 1 || bobBars[0] != id {
		t.Fatalf("bar not moved between owner sets: alice=%v bob=%v", aliceBars, bobBars)
	}
	owner, _ := f.token.BarOwner(id)
	if owner != bob {
		t.Fatalf("unexpected owner")
	}

	weight, _ := f.token.ActiveReserveWeight()
	if weight != 500 {
		t.Fatalf("unexpected active weight %d", weight)
	}
	if err := f.token.DeactivateGoldBar(admin, id2); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := f.token.DeactivateGoldBar(admin, id2); !errors.Is(err, ErrBarInactive) {
		t.Fatalf("deactivation is one-way, got %v", err)
	}
	if err := f.token.AssignBarOwnership(admin, id2, alice); !errors.Is(err, ErrBarInactive) {
		t.Fatalf("inactive bars cannot be assigned, got %v", err)
	}
	weight, _ = f.token.ActiveReserveWeight()
	if weight != 400 {
		t.Fatalf("unexpected active weight after deactivation %d", weight)
	}
	if _, err := f.token.GoldBar(99); !errors.Is(err, ErrBarNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGoldBarsOnlyOnBackedTokens(t *testing.T) {
	f := newTokenFixture(t, Config{Symbol: "USDC", Decimals: 6})
	if _, err := f.token.AddGoldBar(admin, "SN", 1, "LBMA", 9999, "x"); !errors.Is(err, ErrUnsupportedOperation) {
		t.Fatalf("expected unsupported operation, got %v", err)
	}
}
