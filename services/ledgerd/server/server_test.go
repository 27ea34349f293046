package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"nhooyr.io/websocket"

	"solaire/config"
	"solaire/core"
	"solaire/core/events"
	"solaire/crypto"
	nativecommon "solaire/native/common"
	"solaire/services/ledgerd/index"
	"solaire/services/ledgerd/middleware"
	"solaire/storage"
)

const testSecret = "ledgerd-server-secret"

var (
	deployer = [20]byte{0xde}
	alice    = [20]byte{0xa1}
	bob      = [20]byte{0xb0}
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

type fixture struct {
	ledger *core.Ledger
	index  *index.Indexer
	server *httptest.Server
	tokens map[[20]byte]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default(crypto.FromRaw(deployer).String())
	cfg.StorageBackend = storage.BackendMemory
	cfg.Allocations = []config.Allocation{{Account: crypto.FromRaw(alice).String(), Amount: ether(10).String()}}
	cfg.Governance.Proxies = []config.Proxy{{ID: "vault", Implementation: "vault-v1"}}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	ix, err := index.New(db, nil)
	require.NoError(t, err)

	ledger, err := core.New(storage.NewMemDB(), cfg, core.WithSink(ix))
	require.NoError(t, err)

	auth := middleware.NewAuthenticator(middleware.AuthConfig{Enabled: true, HMACSecret: testSecret}, nil)
	srv, err := New(Config{}, ledger, ix, auth, nil, nil)
	require.NoError(t, err)
	httpSrv := httptest.NewServer(srv.Handler())

	f := &fixture{ledger: ledger, index: ix, server: httpSrv, tokens: map[[20]byte]string{}}
	t.Cleanup(func() {
		httpSrv.Close()
		ledger.Close()
	})
	return f
}

func (f *fixture) token(t *testing.T, who [20]byte) string {
	t.Helper()
	if tok, ok := f.tokens[who]; ok {
		return tok
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": crypto.FromRaw(who).String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	f.tokens[who] = signed
	return signed
}

func (f *fixture) post(t *testing.T, who [20]byte, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.token(t, who))
	req.Header.Set("Content-Type", "application/json")
	return doJSON(t, req)
}

func (f *fixture) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.server.URL+path, nil)
	require.NoError(t, err)
	return doJSON(t, req)
}

func doJSON(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return res.StatusCode, out
}

func addr(a [20]byte) string { return crypto.FromRaw(a).String() }

func TestHealthAndReadViews(t *testing.T) {
	f := newFixture(t)

	status, body := f.get(t, "/healthz")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])

	status, body = f.get(t, "/tokens/usds")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "USDS", body["symbol"])

	status, body = f.get(t, "/swap/parameters")
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 3, body["feeBps"])
	require.EqualValues(t, 100, body["maxSlippageBps"])

	status, body = f.get(t, "/governance/proxies/vault")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "vault-v1", body["implementation"])
	require.Equal(t, "idle", body["status"])

	status, body = f.get(t, "/oracle/price")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "200000000000", body["price"])

	status, body = f.get(t, "/swap/quote?in=USDS&out=EURS&amount=10000")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "9997", body["expectedOut"])
	require.Equal(t, "9897", body["minOut"])

	status, _ = f.get(t, "/deposits/not-an-address")
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = f.get(t, "/tokens/NOPE")
	require.Equal(t, http.StatusConflict, status)
}

func TestDepositAndWithdrawOverHTTP(t *testing.T) {
	f := newFixture(t)

	status, _ := f.post(t, alice, "/vault/deposit", map[string]string{"amount": ether(1).String()})
	require.Equal(t, http.StatusOK, status)

	status, body := f.get(t, "/deposits/"+addr(alice))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, ether(1).String(), body["deposit"])

	status, body = f.get(t, "/vault/required?token=USDS&amount=2000000000")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, ether(1).String(), body["required"])

	status, _ = f.post(t, alice, "/vault/withdraw", map[string]string{"amount": "2000000000", "token": "usds"})
	require.Equal(t, http.StatusOK, status)

	status, body = f.get(t, "/tokens/USDS/balances/"+addr(alice))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "2000000000", body["balance"])

	status, body = f.post(t, alice, "/vault/withdraw", map[string]string{"amount": "1", "token": "USDS"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, string(nativecommon.ClassValue), body["class"])
}

func TestMutationsRequireAuthentication(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/vault/deposit", strings.NewReader(`{"amount":"1"}`))
	require.NoError(t, err)
	status, _ := doJSON(t, req)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestErrorClassesMapToStatus(t *testing.T) {
	f := newFixture(t)

	status, body := f.post(t, bob, "/swap/fee", map[string]any{"bps": 10})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, string(nativecommon.ClassAuthorization), body["class"])

	status, _ = f.post(t, alice, "/vault/deposit", map[string]string{"amount": "0"})
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = f.post(t, alice, "/vault/deposit", map[string]any{"amount": "1", "unexpected": true})
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = f.post(t, deployer, "/vault/emergency-withdraw", nil)
	require.Equal(t, http.StatusConflict, status)

	status, body = f.post(t, deployer, "/swap/fee", map[string]any{"bps": 25})
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body["root"])
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nativecommon.Mark(nativecommon.ClassAuthorization, errors.New("a")), http.StatusForbidden},
		{nativecommon.Mark(nativecommon.ClassEligibility, errors.New("e")), http.StatusForbidden},
		{nativecommon.Mark(nativecommon.ClassQuota, errors.New("q")), http.StatusTooManyRequests},
		{nativecommon.Mark(nativecommon.ClassState, errors.New("s")), http.StatusConflict},
		{nativecommon.Mark(nativecommon.ClassValue, errors.New("v")), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", core.ErrClosed), http.StatusServiceUnavailable},
		{badRequestf("bad"), http.StatusBadRequest},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Fatalf("%v: got %d want %d", tc.err, got, tc.want)
		}
	}
}

func TestGovernanceAndPauseOverHTTP(t *testing.T) {
	f := newFixture(t)

	status, _ := f.post(t, deployer, "/governance/upgrades/request", map[string]string{"id": "vault", "implementation": "vault-v2"})
	require.Equal(t, http.StatusOK, status)
	status, body := f.post(t, deployer, "/governance/upgrades/approve", map[string]string{"id": "vault"})
	require.Equal(t, http.StatusConflict, status)
	require.Contains(t, body["error"], "timelock")

	status, _ = f.post(t, deployer, "/pause", map[string]string{"module": "governance"})
	require.Equal(t, http.StatusOK, status)
	status, body = f.get(t, "/governance/proxies")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["paused"])

	status, _ = f.post(t, alice, "/vault/deposit", map[string]string{"amount": "1"})
	require.Equal(t, http.StatusConflict, status)
}

func TestEventsEndpointServesIndex(t *testing.T) {
	f := newFixture(t)
	status, _ := f.post(t, alice, "/vault/deposit", map[string]string{"amount": ether(2).String()})
	require.Equal(t, http.StatusOK, status)

	res, err := http.Get(f.server.URL + "/events?type=" + events.TypeVaultDeposited)
	require.NoError(t, err)
	defer res.Body.Close()
	var records []map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&records))
	require.Len(t, records, 1)

	attrs := records[0]["attributes"].(map[string]any)
	require.Equal(t, ether(2).String(), attrs["amount"])
	require.Equal(t, addr(alice), records[0]["account"])
}

func TestIndexKeepsEveryEventWhenSubscribersLag(t *testing.T) {
	f := newFixture(t)
	_, unsubscribe := f.ledger.Subscribe(1)
	defer unsubscribe()

	const deposits = 300
	for i := 0; i < deposits; i++ {
		require.NoError(t, f.ledger.Deposit(alice, big.NewInt(1)))
	}
	records, err := f.index.Query(context.Background(), index.Filter{Type: events.TypeVaultDeposited, Limit: 1000})
	require.NoError(t, err)
	require.Len(t, records, deposits)
	require.Positive(t, f.ledger.DroppedEvents())
}

func TestEventStreamDeliversCommittedEvents(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/events/ws?type=" + events.TypeVaultDeposited
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	type payload struct {
		Type       string            `json:"type"`
		Attributes map[string]string `json:"attributes"`
	}
	received := make(chan payload, 1)
	go func() {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var evt payload
		if json.Unmarshal(data, &evt) == nil {
			received <- evt
		}
	}()

	// The subscription is registered after the upgrade completes, so keep
	// committing deposits until one is observed.
	deadline := time.Now().Add(4 * time.Second)
	for {
		status, _ := f.post(t, alice, "/vault/deposit", map[string]string{"amount": "1"})
		require.Equal(t, http.StatusOK, status)
		select {
		case evt := <-received:
			require.Equal(t, events.TypeVaultDeposited, evt.Type)
			require.Equal(t, addr(alice), evt.Attributes["account"])
			return
		case <-time.After(50 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatalf("no event received over websocket")
		}
	}
}
