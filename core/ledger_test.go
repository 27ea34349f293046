package core

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"solaire/config"
	"solaire/core/events"
	"solaire/crypto"
	"solaire/native/access"
	nativecommon "solaire/native/common"
	"solaire/native/compliance"
	"solaire/native/governance"
	"solaire/native/swap"
	"solaire/native/token"
	"solaire/native/vault"
	"solaire/storage"
)

var (
	deployer = [20]byte{0xde}
	alice    = [20]byte{0xa1}
	bob      = [20]byte{0xb0}
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func micro(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000))
}

func testConfig() *config.Config {
	cfg := config.Default(crypto.FromRaw(deployer).String())
	cfg.StorageBackend = storage.BackendMemory
	aliceAddr := crypto.FromRaw(alice).String()
	cfg.Allocations = []config.Allocation{
		{Account: aliceAddr, Amount: ether(10).String()},
		{Account: aliceAddr, Symbol: "XAUS", Amount: "50000"},
	}
	cfg.Swap.Liquidity = []config.Allocation{
		{Symbol: "USDS", Amount: micro(1_000_000).String()},
		{Symbol: "EURS", Amount: micro(1_000_000).String()},
	}
	cfg.Governance.Proxies = []config.Proxy{{ID: "vault", Implementation: "vault-v1"}}
	return cfg
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestLedger(t *testing.T, db storage.Database) (*Ledger, *clock) {
	t.Helper()
	c := &clock{now: time.Unix(1_700_000_000, 0).UTC()}
	l, err := New(db, testConfig(), WithNowFunc(c.Now))
	require.NoError(t, err)
	return l, c
}

func TestGenesisBootstrapsDeployment(t *testing.T) {
	l, _ := newTestLedger(t, storage.NewMemDB())

	has, err := l.HasRole("governance", access.RoleUpgrader, deployer)
	require.NoError(t, err)
	require.True(t, has)
	has, err = l.HasRole("token/usds", access.RoleMinter, VaultAccount)
	require.NoError(t, err)
	require.True(t, has)
	has, err = l.HasRole("token/EURS", access.RoleMinter, VaultAccount)
	require.NoError(t, err)
	require.False(t, has)

	status, err := l.ComplianceStatus(SwapAccount)
	require.NoError(t, err)
	require.True(t, status.Whitelisted)
	require.True(t, status.EMRTCompliant)

	bal, err := l.NativeBalance(alice)
	require.NoError(t, err)
	require.Zero(t, bal.Cmp(ether(10)))

	params, err := l.SwapParameters()
	require.NoError(t, err)
	require.Equal(t, uint64(3), params.FeeBps)
	require.Equal(t, []string{"USDS", "EURS"}, params.Tokens)

	info, err := l.TokenInfo("XAUS")
	require.NoError(t, err)
	require.Equal(t, token.KindBacked, info.Kind)
	require.Zero(t, info.TotalSupply.Cmp(big.NewInt(50_000)))
	require.False(t, info.Swappable)

	proxy, err := l.Proxy("vault")
	require.NoError(t, err)
	require.Equal(t, "vault-v1", proxy.Implementation)

	limit, err := l.compliance.TransactionLimit(1)
	require.NoError(t, err)
	require.Zero(t, limit.Cmp(micro(10_000)))
}

func TestDepositWithdrawSwapFlow(t *testing.T) {
	l, _ := newTestLedger(t, storage.NewMemDB())
	stream, cancel := l.Subscribe(128)
	defer cancel()

	require.NoError(t, l.Deposit(alice, ether(1)))
	require.NoError(t, l.WithdrawStable(alice, micro(2_000), "USDS"))
	deposit, err := l.Deposits(alice)
	require.NoError(t, err)
	require.Zero(t, deposit.Sign())
	require.ErrorIs(t, l.WithdrawStable(alice, micro(1), "USDS"), vault.ErrInsufficientDeposit)

	usds, err := l.BalanceOf("USDS", alice)
	require.NoError(t, err)
	require.Zero(t, usds.Cmp(micro(2_000)))

	require.NoError(t, l.Approve(alice, "USDS", SwapAccount, micro(2_000)))
	out, err := l.Swap(alice, "USDS", "EURS", micro(2_000), nil)
	require.NoError(t, err)
	want := new(big.Int).Div(new(big.Int).Mul(micro(2_000), big.NewInt(9_997)), big.NewInt(10_000))
	require.Zero(t, out.Cmp(want))
	eurs, err := l.BalanceOf("EURS", alice)
	require.NoError(t, err)
	require.Zero(t, eurs.Cmp(want))

	var types []string
	for len(stream) > 0 {
		types = append(types, (<-stream).EventType())
	}
	require.Contains(t, types, events.TypeVaultDeposited)
	require.Contains(t, types, events.TypeVaultWithdrawn)
	require.Contains(t, types, events.TypeTokenSwapped)
}

func TestFailedOperationRevertsStateAndEvents(t *testing.T) {
	l, _ := newTestLedger(t, storage.NewMemDB())
	stream, cancel := l.Subscribe(16)
	defer cancel()
	rootBefore := l.Root()

	boom := errors.New("boom")
	err := l.Execute("token", "mintThenFail", deployer, func() error {
		if err := l.tokens["USDS"].Mint(deployer, alice, micro(5)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, err := l.BalanceOf("USDS", alice)
	require.NoError(t, err)
	require.Zero(t, bal.Sign())
	require.Empty(t, stream)
	require.Equal(t, rootBefore, l.Root())

	err = l.Execute("token", "panics", deployer, func() error { panic("unexpected") })
	require.Error(t, err)
	require.Equal(t, nativecommon.ClassInternal, nativecommon.Classify(err))
}

func TestSwapFailureLeavesBalancesUntouched(t *testing.T) {
	l, _ := newTestLedger(t, storage.NewMemDB())
	require.NoError(t, l.Mint(deployer, "USDS", alice, micro(100)))
	require.NoError(t, l.Approve(alice, "USDS", SwapAccount, micro(100)))
	require.NoError(t, l.RemoveSupportedToken(deployer, "EURS"))

	_, err := l.Swap(alice, "USDS", "EURS", micro(100), nil)
	require.ErrorIs(t, err, swap.ErrTokenOutUnsupported)
	bal, err := l.BalanceOf("USDS", alice)
	require.NoError(t, err)
	require.Zero(t, bal.Cmp(micro(100)))
}

func TestGlobalPauseHaltsComponents(t *testing.T) {
	l, _ := newTestLedger(t, storage.NewMemDB())
	require.NoError(t, l.Deposit(alice, ether(2)))
	require.NoError(t, l.Mint(deployer, "USDS", alice, micro(10)))

	require.ErrorIs(t, l.Pause(alice, "governance"), access.ErrUnauthorized)
	require.NoError(t, l.Pause(deployer, "governance"))
	require.True(t, l.GlobalPaused())

	require.ErrorIs(t, l.Transfer(alice, "USDS", bob, micro(1)), nativecommon.ErrModulePaused)
	require.ErrorIs(t, l.Deposit(alice, ether(1)), nativecommon.ErrModulePaused)
	require.ErrorIs(t, l.RequestUpgrade(deployer, "vault", "vault-v2"), nativecommon.ErrModulePaused)

	returned, err := l.EmergencyWithdraw(alice)
	require.NoError(t, err)
	require.Zero(t, returned.Cmp(ether(2)))

	require.NoError(t, l.Unpause(deployer, "governance"))
	require.NoError(t, l.SetWhitelisted(deployer, bob, true))
	require.NoError(t, l.Transfer(alice, "USDS", bob, micro(1)))
}

func TestComponentPauseIsScoped(t *testing.T) {
	l, _ := newTestLedger(t, storage.NewMemDB())
	require.NoError(t, l.Mint(deployer, "USDS", alice, micro(10)))
	require.NoError(t, l.SetWhitelisted(deployer, bob, true))
	require.NoError(t, l.Pause(deployer, "token/usds"))
	require.ErrorIs(t, l.Transfer(alice, "USDS", bob, micro(1)), nativecommon.ErrModulePaused)
	require.NoError(t, l.Deposit(alice, ether(1)))
	require.Error(t, l.Pause(deployer, "bank"))
}

func TestUpgradeTimelock(t *testing.T) {
	l, c := newTestLedger(t, storage.NewMemDB())
	require.NoError(t, l.RequestUpgrade(deployer, "vault", "vault-v2"))
	c.now = c.now.Add(governance.DefaultTimelock - time.Second)
	require.ErrorIs(t, l.ApproveUpgrade(deployer, "vault"), governance.ErrTimelockNotExpired)
	c.now = c.now.Add(time.Second)
	require.NoError(t, l.ApproveUpgrade(deployer, "vault"))
	proxy, err := l.Proxy("vault")
	require.NoError(t, err)
	require.Equal(t, "vault-v2", proxy.Implementation)
	require.Nil(t, proxy.Pending)
}

func TestDailyLimitThroughLedger(t *testing.T) {
	l, c := newTestLedger(t, storage.NewMemDB())
	require.NoError(t, l.SetWhitelisted(deployer, bob, true))
	require.NoError(t, l.Mint(deployer, "USDS", alice, micro(20_000)))
	require.NoError(t, l.UpdateKYCStatus(deployer, alice, 1, c.now.Add(365*24*time.Hour)))

	require.NoError(t, l.Transfer(alice, "USDS", bob, micro(9_000)))
	require.ErrorIs(t, l.Transfer(alice, "USDS", bob, micro(1_001)), compliance.ErrDailyLimitExceeded)
	c.now = c.now.Add(24 * time.Hour)
	require.NoError(t, l.Transfer(alice, "USDS", bob, micro(1_001)))
}

func TestRoleAdministration(t *testing.T) {
	l, _ := newTestLedger(t, storage.NewMemDB())
	require.NoError(t, l.GrantRole(deployer, "vault", access.RolePauser, bob))
	require.NoError(t, l.Pause(bob, "vault"))
	require.NoError(t, l.RevokeRole(deployer, "vault", access.RolePauser, bob))
	require.ErrorIs(t, l.Unpause(bob, "vault"), access.ErrUnauthorized)
	require.ErrorIs(t, l.GrantRole(bob, "swap", access.RolePauser, bob), access.ErrUnauthorized)
	require.ErrorIs(t, l.GrantRole(deployer, "lending", access.RolePauser, bob), ErrUnknownScope)
	require.NoError(t, l.RenounceRole(deployer, "compliance", access.RoleCompliance))
	require.ErrorIs(t, l.SetWhitelisted(deployer, bob, true), access.ErrUnauthorized)
}

func TestQuotaThrottlesCallers(t *testing.T) {
	cfg := testConfig()
	cfg.Quota = config.Quota{MaxRequestsPerEpoch: 2, EpochSeconds: 3600}
	c := &clock{now: time.Unix(1_700_000_000, 0).UTC()}
	l, err := New(storage.NewMemDB(), cfg, WithNowFunc(c.Now))
	require.NoError(t, err)

	require.NoError(t, l.TransferNative(alice, bob, big.NewInt(1)))
	require.NoError(t, l.TransferNative(alice, bob, big.NewInt(1)))
	require.ErrorIs(t, l.TransferNative(alice, bob, big.NewInt(1)), nativecommon.ErrQuotaRequestsExceeded)
	require.NoError(t, l.Deposit(alice, big.NewInt(1)))
	c.now = c.now.Add(time.Hour)
	require.NoError(t, l.TransferNative(alice, bob, big.NewInt(1)))
}

func TestReopenSkipsGenesis(t *testing.T) {
	db := storage.NewMemDB()
	l, _ := newTestLedger(t, db)
	require.NoError(t, l.Deposit(alice, ether(3)))
	root := l.Root()

	reopened, _ := newTestLedger(t, db)
	require.Equal(t, root, reopened.Root())
	dep, err := reopened.Deposits(alice)
	require.NoError(t, err)
	require.Zero(t, dep.Cmp(ether(3)))
	bal, err := reopened.NativeBalance(alice)
	require.NoError(t, err)
	require.Zero(t, bal.Cmp(ether(7)))

	reopened.Close()
	require.ErrorIs(t, reopened.Deposit(alice, ether(1)), ErrClosed)
}

func TestISO20022AndGoldBars(t *testing.T) {
	l, _ := newTestLedger(t, storage.NewMemDB())
	require.NoError(t, l.Mint(deployer, "USDS", alice, micro(10)))
	require.NoError(t, l.SetWhitelisted(deployer, bob, true))
	seq, err := l.TransferISO20022(alice, "USDS", bob, micro(4), "MSG-1", "SUPP")
	require.NoError(t, err)
	msg, found, err := l.ISO20022Message("USDS", seq)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "MSG-1", msg.MessageID)

	id, err := l.AddGoldBar(deployer, "XAUS", "SN-1", 12_500, "Valcambi", 9_999, "Zurich")
	require.NoError(t, err)
	require.NoError(t, l.AssignBarOwnership(deployer, "XAUS", id, alice))
	owned, err := l.OwnedBars("XAUS", alice)
	require.NoError(t, err)
	require.Equal(t, []uint64{id}, owned)
	_, err = l.AddGoldBar(deployer, "USDS", "SN-2", 1, "x", 1, "y")
	require.ErrorIs(t, err, token.ErrUnsupportedOperation)

	require.NoError(t, l.RegisterIBAN(deployer, "USDS", alice, "GB29 NWBK 6016 1331 9268 19"))
	iban, err := l.IBAN("USDS", alice)
	require.NoError(t, err)
	require.Equal(t, "GB29NWBK60161331926819", iban)
}

func TestOpenPersistsAcrossRestarts(t *testing.T) {
	cfg := testConfig()
	cfg.StorageBackend = storage.BackendBolt
	cfg.DataDir = t.TempDir()

	l, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, l.Deposit(alice, ether(1)))
	root := l.Root()
	l.Close()

	reopened, err := Open(cfg)
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, root, reopened.Root())
	deposit, err := reopened.Deposits(alice)
	require.NoError(t, err)
	require.Equal(t, ether(1), deposit)
}

func TestStatePath(t *testing.T) {
	require.Equal(t, "", StatePath(storage.BackendMemory, "/data"))
	require.Equal(t, "/data/state.db", StatePath("Bolt", "/data"))
	require.Equal(t, "/data/state", StatePath(storage.BackendLevelDB, "/data"))
}
