package observability

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	nativecommon "solaire/native/common"
)

// gathered returns the metric in family name whose labels include every pair
// in want, or nil when none matches.
func gathered(t *testing.T, name string, want map[string]string) *dto.Metric {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.Metric {
			if hasLabels(metric, want) {
				return metric
			}
		}
	}
	return nil
}

func hasLabels(metric *dto.Metric, want map[string]string) bool {
	matched := 0
	for _, pair := range metric.GetLabel() {
		if value, ok := want[pair.GetName()]; ok && value == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}

func TestLedgerObserveSegmentsOutcome(t *testing.T) {
	m := Ledger()
	m.Observe("vault", "metrics-test-deposit", 5*time.Millisecond, nil)
	m.Observe("vault", "metrics-test-deposit", time.Millisecond,
		nativecommon.Mark(nativecommon.ClassValue, errors.New("vault: zero")))

	ok := gathered(t, "solaire_ledger_ops_total", map[string]string{"op": "metrics-test-deposit", "outcome": "success"})
	require.NotNil(t, ok)
	require.Equal(t, 1.0, ok.GetCounter().GetValue())

	failed := gathered(t, "solaire_ledger_errors_total", map[string]string{"op": "metrics-test-deposit", "class": "value"})
	require.NotNil(t, failed)
	require.Equal(t, 1.0, failed.GetCounter().GetValue())

	latency := gathered(t, "solaire_ledger_op_duration_seconds", map[string]string{"op": "metrics-test-deposit"})
	require.NotNil(t, latency)
	require.Equal(t, uint64(2), latency.GetHistogram().GetSampleCount())
}

func TestLedgerGauges(t *testing.T) {
	m := Ledger()
	m.SetPaused("metrics-test-module", true)
	m.SetOraclePrice(big.NewInt(200_000_000_000))
	m.SetVaultDeposits(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	m.AddSwapVolume("MTA", "MTB", big.NewInt(1_500))
	m.AddSwapVolume("MTA", "MTB", big.NewInt(500))
	m.RecordThrottle("metrics-test-module", "")

	paused := gathered(t, "solaire_ledger_paused", map[string]string{"module": "metrics-test-module"})
	require.NotNil(t, paused)
	require.Equal(t, 1.0, paused.GetGauge().GetValue())

	price := gathered(t, "solaire_oracle_price", nil)
	require.NotNil(t, price)
	require.Equal(t, 2e11, price.GetGauge().GetValue())

	deposits := gathered(t, "solaire_vault_deposits_total_wei", nil)
	require.NotNil(t, deposits)
	require.Equal(t, 1e18, deposits.GetGauge().GetValue())

	volume := gathered(t, "solaire_swap_volume_total", map[string]string{"token_in": "MTA", "token_out": "MTB"})
	require.NotNil(t, volume)
	require.Equal(t, 2_000.0, volume.GetCounter().GetValue())

	throttle := gathered(t, "solaire_ledger_throttles_total", map[string]string{"module": "metrics-test-module", "reason": "unspecified"})
	require.NotNil(t, throttle)
	require.Equal(t, 1.0, throttle.GetCounter().GetValue())
}

func TestHTTPAndEventCounters(t *testing.T) {
	HTTP().Observe("/metrics-test/{id}", 429, 2*time.Millisecond)
	Events().Record("  Metrics.Test  ")

	requests := gathered(t, "solaire_http_requests_total", map[string]string{"route": "/metrics-test/{id}", "status": "429"})
	require.NotNil(t, requests)
	require.Equal(t, 1.0, requests.GetCounter().GetValue())

	emitted := gathered(t, "solaire_events_emitted_total", map[string]string{"type": "metrics.test"})
	require.NotNil(t, emitted)
	require.Equal(t, 1.0, emitted.GetCounter().GetValue())
}

func TestNilCollectorsAreSafe(t *testing.T) {
	var m *ledgerMetrics
	m.Observe("vault", "deposit", time.Second, nil)
	m.SetOraclePrice(big.NewInt(1))
	var h *httpMetrics
	h.Observe("/", 200, time.Second)
}
