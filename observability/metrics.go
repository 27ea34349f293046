package observability

import (
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	nativecommon "solaire/native/common"
)

const namespace = "solaire"

type ledgerMetrics struct {
	ops       *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
	paused    *prometheus.GaugeVec

	oraclePrice   prometheus.Gauge
	vaultDeposits prometheus.Gauge
	swapVolume    *prometheus.CounterVec
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics

	httpMetricsOnce sync.Once
	httpRegistry    *httpMetrics
)

// Ledger returns the lazily-initialised collectors describing ledger operations.
func Ledger() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			ops: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "ops_total",
				Help:      "Ledger operations segmented by module, operation and outcome.",
			}, []string{"module", "op", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "errors_total",
				Help:      "Rejected ledger operations segmented by error class.",
			}, []string{"module", "op", "class"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "op_duration_seconds",
				Help:      "Latency of ledger operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "op"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "throttles_total",
				Help:      "Operations rejected by per-caller quotas.",
			}, []string{"module", "reason"}),
			paused: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "paused",
				Help:      "Whether a component's pause switch is engaged (1) or not (0).",
			}, []string{"module"}),
			oraclePrice: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "oracle",
				Name:      "price",
				Help:      "Last validated native asset price scaled by the feed decimals.",
			}),
			vaultDeposits: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "vault",
				Name:      "deposits_total_wei",
				Help:      "Native collateral currently deposited in the vault.",
			}),
			swapVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "swap",
				Name:      "volume_total",
				Help:      "Token units swapped in, segmented by pair.",
			}, []string{"token_in", "token_out"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.ops,
			ledgerRegistry.errors,
			ledgerRegistry.latency,
			ledgerRegistry.throttles,
			ledgerRegistry.paused,
			ledgerRegistry.oraclePrice,
			ledgerRegistry.vaultDeposits,
			ledgerRegistry.swapVolume,
		)
	})
	return ledgerRegistry
}

// Observe records the outcome of a ledger operation.
func (m *ledgerMetrics) Observe(module, op string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	module = label(module)
	op = label(op)
	outcome := "success"
	if err != nil {
		outcome = "error"
		m.errors.WithLabelValues(module, op, string(nativecommon.Classify(err))).Inc()
	}
	m.ops.WithLabelValues(module, op, outcome).Inc()
	m.latency.WithLabelValues(module, op).Observe(duration.Seconds())
}

// RecordThrottle counts a quota rejection. Reasons should be stable strings
// such as "quota_exceeded".
func (m *ledgerMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(label(module), reason).Inc()
}

// SetPaused mirrors a pause switch into a gauge.
func (m *ledgerMetrics) SetPaused(module string, paused bool) {
	if m == nil {
		return
	}
	value := 0.0
	if paused {
		value = 1
	}
	m.paused.WithLabelValues(label(module)).Set(value)
}

// SetOraclePrice records the last validated price.
func (m *ledgerMetrics) SetOraclePrice(price *big.Int) {
	if m == nil || price == nil {
		return
	}
	m.oraclePrice.Set(toFloat(price))
}

// SetVaultDeposits records the vault's outstanding deposits.
func (m *ledgerMetrics) SetVaultDeposits(total *big.Int) {
	if m == nil || total == nil {
		return
	}
	m.vaultDeposits.Set(toFloat(total))
}

// AddSwapVolume accumulates amountIn for the pair.
func (m *ledgerMetrics) AddSwapVolume(tokenIn, tokenOut string, amountIn *big.Int) {
	if m == nil || amountIn == nil {
		return
	}
	m.swapVolume.WithLabelValues(label(tokenIn), label(tokenOut)).Add(toFloat(amountIn))
}

func toFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

// HTTP returns the collectors for the ledger service's HTTP surface.
func HTTP() *httpMetrics {
	httpMetricsOnce.Do(func() {
		httpRegistry = &httpMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests segmented by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution of HTTP handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
		}
		prometheus.MustRegister(httpRegistry.requests, httpRegistry.latency)
	})
	return httpRegistry
}

// Observe records a served HTTP request.
func (m *httpMetrics) Observe(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	route = label(route)
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

func label(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
