package token

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"solaire/core/events"
	"solaire/core/state"
	"solaire/native/access"
	nativecommon "solaire/native/common"
	"solaire/native/compliance"
	"solaire/storage"
)

var (
	admin   = [20]byte{0xad}
	officer = [20]byte{0xc0}
	alice   = [20]byte{0xa1}
	bob     = [20]byte{0xb0}
	carol   = [20]byte{0xca}
)

type tokenFixture struct {
	mgr   *state.Manager
	reg   *compliance.Registry
	token *Engine
	rec   *events.Recorder
	now   time.Time
}

func newTokenFixture(t *testing.T, cfg Config) *tokenFixture {
	t.Helper()
	mgr, err := state.NewManager(storage.NewMemDB())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	f := &tokenFixture{mgr: mgr, rec: &events.Recorder{}, now: time.Unix(1_700_000_000, 0).UTC()}
	clock := func() time.Time { return f.now }

	f.reg = compliance.NewRegistry()
	f.reg.SetState(mgr)
	f.reg.SetNowFunc(clock)
	if err := f.reg.Roles().Bootstrap(officer, access.RoleCompliance); err != nil {
		t.Fatalf("bootstrap compliance: %v", err)
	}

	tok, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	tok.SetState(mgr)
	tok.SetCompliance(f.reg)
	tok.SetEmitter(f.rec)
	tok.SetNowFunc(clock)
	if err := tok.Roles().Bootstrap(admin, access.RoleMinter, access.RoleBurner, access.RolePauser,
		access.RoleCollateralManager, access.RoleCompliance); err != nil {
		t.Fatalf("bootstrap token: %v", err)
	}
	f.token = tok
	return f
}

func (f *tokenFixture) whitelist(t *testing.T, accounts ...[20]byte) {
	t.Helper()
	for _, a := range accounts {
		if err := f.reg.SetWhitelisted(officer, a, true); err != nil {
			t.Fatalf("whitelist: %v", err)
		}
	}
}

func (f *tokenFixture) balance(t *testing.T, a [20]byte) int64 {
	t.Helper()
	bal, err := f.token.BalanceOf(a)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Int64()
}

func TestMintRequiresMinterAndWhitelist(t *testing.T) {
	f := newTokenFixture(t, Config{Symbol: "USDC", Decimals: 6})
	if err := f.token.Mint(alice, alice, big.NewInt(1)); !errors.Is(err, access.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := f.token.Mint(admin, alice, big.NewInt(1)); !errors.Is(err, compliance.ErrNotWhitelisted) {
		t.Fatalf("expected not whitelisted, got %v", err)
	}
	f.whitelist(t, alice)
	if err := f.token.Mint(admin, alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	supply, _ := f.token.TotalSupply()
	if supply.Int64() != 1_000 || f.balance(t, alice) != 1_000 {
		t.Fatalf("unexpected supply %s", supply)
	}
}

func TestTransferBlacklistedRejected(t *testing.T) {
	f := newTokenFixture(t, Config{Symbol: "USDC", Decimals: 6})
	f.whitelist(t, alice, bob)
	if err := f.token.Mint(admin, alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.reg.SetBlacklisted(officer, bob, true); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	if err := f.token.Transfer(alice, bob, big.NewInt(10)); !errors.Is(err, compliance.ErrBlacklisted) {
		t.Fatalf("expected blacklisted, got %v", err)
	}
	if err := f.token.Transfer(alice, carol, big.NewInt(10)); !errors.Is(err, compliance.ErrNotWhitelisted) {
		t.Fatalf("expected not whitelisted, got %v", err)
	}
	if f.balance(t, alice) != 1_000 {
		t.Fatalf("balance changed on rejected transfer")
	}
}

func TestSymbolIsNFKCFolded(t *testing.T) {
	f := newTokenFixture(t, Config{Symbol: " ｕｓｄｃ ", Decimals: 6})
	if f.token.Symbol() != "USDC" {
		t.Fatalf("unexpected symbol %q", f.token.Symbol())
	}
}

func TestMintAndBurnBlacklistedRejected(t *testing.T) {
	f := newTokenFixture(t, Config{Symbol: "USDC", Decimals: 6})
	f.whitelist(t, alice, bob)
	if err := f.token.Mint(admin, alice, big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	for _, a := range [][20]byte{alice, bob} {
		if err := f.reg.SetBlacklisted(officer, a, true); err != nil {
			t.Fatalf("blacklist: %v", err)
		}
	}
	if err := f.token.Mint(admin, bob, big.NewInt(100)); !errors.Is(err, compliance.ErrBlacklisted) {
		t.Fatalf("expected blacklisted on mint, got %v", err)
	}
	if err := f.token.Burn(admin, alice, big.NewInt(100)); !errors.Is(err, compliance.ErrBlacklisted) {
		t.Fatalf("expected blacklisted on burn, got %v", err)
	}
	supply, _ := f.token.TotalSupply()
	if supply.Int64() != 500 || f.balance(t, alice) != 500 || f.balance(t, bob) != 0 {
		t.Fatalf("balances changed on rejected mint or burn: supply %s", supply)
	}
}

func TestEMRTBlacklistTakesPrecedence(t *testing.T) {
	f := newTokenFixture(t, Config{Symbol: "EURT", Kind: KindEMRT, Decimals: 6})
	f.whitelist(t, alice, bob)
	for _, a := range [][20]byte{alice, bob} {
		if err := f.reg.SetEMRTCompliance(officer, a, true); err != nil {
			t.Fatalf("emrt flag: %v", err)
		}
	}
	if err := f.token.Mint(admin, alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.reg.SetBlacklisted(officer, bob, true); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	if err := f.token.Transfer(alice, bob, big.NewInt(10)); !errors.Is(err, compliance.ErrBlacklisted) {
		t.Fatalf("expected blacklisted on EMRT transfer, got %v", err)
	}
	if err := f.token.Mint(admin, bob, big.NewInt(10)); !errors.Is(err, compliance.ErrBlacklisted) {
		t.Fatalf("expected blacklisted on EMRT mint, got %v", err)
	}
	if err := f.reg.SetBlacklisted(officer, alice, true); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	if err := f.token.Burn(admin, alice, big.NewInt(10)); !errors.Is(err, compliance.ErrBlacklisted) {
		t.Fatalf("expected blacklisted on EMRT burn, got %v", err)
	}
	if f.balance(t, alice) != 1_000 {
		t.Fatalf("balance changed on rejected EMRT operations")
	}
}

func TestTransferISO20022RecordsMessage(t *testing.T) {
	f := newTokenFixture(t, Config{Symbol: "EURS", Decimals: 2})
	f.whitelist(t, alice, bob)
	_ = f.token.Mint(admin, alice, big.NewInt(1_000))

	seq, err := f.token.TransferISO20022(alice, bob, big.NewInt(100), "MSG001", "SALARY")
	if err != nil {
		t.Fatalf("iso transfer: %v", err)
	}
	if seq != 1 {
		t.Fatalf("unexpected sequence %d", seq)
	}
	msg, ok, err := f.token.ISO20022Message(seq)
	if err != nil || !ok {
		t.Fatalf("message lookup: %v %v", ok, err)
	}
	if msg.MessageID != "MSG001" || msg.Purpose != "SALARY" || msg.Amount.Int64() != 100 || msg.From != alice || msg.To != bob {
		t.Fatalf("unexpected message %+v", msg)
	}
	isoEvents := f.rec.OfType(events.TypeISO20022Transfer)
	if len(isoEvents) != 1 {
		t.Fatalf("expected one ISO event, got %d", len(isoEvents))
	}
	evt := isoEvents[0].(events.ISO20022Transfer)
	if evt.MessageID != "MSG001" || evt.Purpose != "SALARY" || evt.From != alice || evt.To != bob {
		t.Fatalf("unexpected event %+v", evt)
	}
	if f.balance(t, bob) != 100 {
		t.Fatalf("unexpected recipient balance")
	}
}

func TestCollateralRatio(t *testing.T) {
	f := newTokenFixture(t, Config{Symbol: "USDC", Decimals: 6})
	ratio, err := f.token.CollateralRatio()
	if err != nil || ratio.Sign() != 0 {
		t.Fatalf("expected zero ratio, got %v %v", ratio, err)
	}
	if err := f.token.UpdateCollateral(admin, big.NewInt(500)); err != nil {
		t.Fatalf("update with no supply: %v", err)
	}
	ratio, _ = f.token.CollateralRatio()
	if ratio.Sign() != 0 {
		t.Fatalf("ratio must be zero with no supply, got %s", ratio)
	}

	f.whitelist(t, alice)
	_ = f.token.Mint(admin, alice, big.NewInt(1_000))
	if err := f.token.UpdateCollateral(admin, big.NewInt(2_000)); err != nil {
		t.Fatalf("update collateral: %v", err)
	}
	ratio, _ = f.token.CollateralRatio()
	want := new(big.Int).Mul(big.NewInt(2), RatioScale)
	if ratio.Cmp(want) != 0 {
		t.Fatalf("expected ratio %s, got %s", want, ratio)
	}
	if err := f.token.UpdateCollateral(alice, big.NewInt(1)); !errors.Is(err, access.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestPauseBlocksMovements(t *testing.T) {
	f := newTokenFixture(t, Config{Symbol: "USDC", Decimals: 6})
	f.whitelist(t, alice, bob)
	_ = f.token.Mint(admin, alice, big.NewInt(1_000))

	if err := f.token.Pause(alice); !errors.Is(err, access.ErrUnauthorized) {
		t.Fatalf("expected unauthorized pause, got %v", err)
	}
	if err := f.token.Pause(admin); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := f.token.Pause(admin); !errors.Is(err, ErrAlreadyPaused) {
		t.Fatalf("expected already paused, got %v", err)
	}
	if err := f.token.Transfer(alice, bob, big.NewInt(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if err := f.token.Mint(admin, alice, big.NewInt(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused mint error, got %v", err)
	}
	if err := f.token.Unpause(admin); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := f.token.Transfer(alice, bob, big.NewInt(1)); err != nil {
		t.Fatalf("transfer after unpause: %v", err)
	}
}

type globalPause bool

func (g globalPause) IsPaused(string) bool { return bool(g) }

func TestUpstreamPauseBlocksMovements(t *testing.T) {
	f := newTokenFixture(t, Config{Symbol: "USDC", Decimals: 6})
	f.whitelist(t, alice, bob)
	_ = f.token.Mint(admin, alice, big.NewInt(10))
	f.token.SetPauses(globalPause(true))
	if !f.token.Paused() {
		t.Fatalf("expected paused view")
	}
	if err := f.token.Transfer(alice, bob, big.NewInt(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
}

func TestTransferFromUsesAllowanceAndOwnerLimit(t *testing.T) {
	f := newTokenFixture(t, Config{Symbol: "USDC", Decimals: 6})
	f.whitelist(t, alice, bob)
	_ = f.token.Mint(admin, alice, big.NewInt(1_000))
	_ = f.reg.SetTransferLimit(officer, alice, big.NewInt(500))

	if err := f.token.TransferFrom(bob, alice, bob, big.NewInt(100)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected allowance error, got %v", err)
	}
	if err := f.token.Approve(alice, bob, big.NewInt(800)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.token.TransferFrom(bob, alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if err := f.token.TransferFrom(bob, alice, bob, big.NewInt(200)); !errors.Is(err, compliance.ErrDailyLimitExceeded) {
		t.Fatalf("expected owner limit to apply, got %v", err)
	}
	allowance, _ := f.token.Allowance(alice, bob)
	if allowance.Int64() != 400 {
		t.Fatalf("unexpected allowance %s", allowance)
	}
}

func TestLimitNotConsumedOnInsufficientBalance(t *testing.T) {
	f := newTokenFixture(t, Config{Symbol: "USDC", Decimals: 6})
	f.whitelist(t, alice, bob)
	_ = f.token.Mint(admin, alice, big.NewInt(100))
	_ = f.reg.SetTransferLimit(officer, alice, big.NewInt(1_000))

	if err := f.token.Transfer(alice, bob, big.NewInt(500)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	status, _ := f.reg.Status(alice)
	if status.Used.Sign() != 0 {
		t.Fatalf("limit consumed by a failed transfer: %s", status.Used)
	}
}

func TestRegisterIBAN(t *testing.T) {
	f := newTokenFixture(t, Config{Symbol: "EURS", Decimals: 2})
	if err := f.token.RegisterIBAN(admin, alice, "GB82 WEST 1234 5698 7654 32"); err != nil {
		t.Fatalf("register iban: %v", err)
	}
	iban, err := f.token.IBAN(alice)
	if err != nil || iban != "GB82WEST12345698765432" {
		t.Fatalf("unexpected iban %q %v", iban, err)
	}
	if err := f.token.RegisterIBAN(admin, alice, "GB00WEST12345698765432"); !errors.Is(err, compliance.ErrInvalidIBAN) {
		t.Fatalf("expected invalid iban, got %v", err)
	}
	if err := f.token.RegisterIBAN(alice, alice, "GB82WEST12345698765432"); !errors.Is(err, access.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRejectsZeroAmount(t *testing.T) {
	f := newTokenFixture(t, Config{Symbol: "USDC", Decimals: 6})
	f.whitelist(t, alice, bob)
	if err := f.token.Transfer(alice, bob, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}
