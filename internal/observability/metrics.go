// Package observability provides Prometheus metrics for the trading agent.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cycle metrics
	CyclesTotal    *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
	LockBusyTotal  prometheus.Counter
	CyclePanics    prometheus.Counter
	LastCycleEnded prometheus.Gauge

	// Discovery metrics
	DiscoveryTier      *prometheus.CounterVec
	DiscoveryFailures  *prometheus.CounterVec
	CandidatesReturned prometheus.Histogram

	// Trade metrics
	TradesOpened     prometheus.Counter
	TradesClosed     *prometheus.CounterVec
	RealizedPnlSol   prometheus.Gauge
	OpenPosition     prometheus.Gauge
	ExitDecisions    *prometheus.CounterVec
	ProceedsSource   *prometheus.CounterVec
	QuoteSamples     prometheus.Counter
	UnrealizedPnlPct prometheus.Gauge

	// External call metrics
	ExternalCallLatency *prometheus.HistogramVec
	ExternalCallErrors  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "lobbi"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "cycles_total",
			Help:      "Trading cycles by outcome",
		}, []string{"outcome"}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a trading cycle, hold included",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
		}),
		LockBusyTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "lock_busy_total",
			Help:      "Cycles skipped because another process held the lock",
		}),
		CyclePanics: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "cycle_panics_total",
			Help:      "Recovered panics inside a cycle",
		}),
		LastCycleEnded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "last_cycle_timestamp",
			Help:      "Unix timestamp of the last completed cycle",
		}),

		DiscoveryTier: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "tier_used_total",
			Help:      "Discovery runs by the tier that produced candidates",
		}, []string{"tier"}),
		DiscoveryFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "feed_failures_total",
			Help:      "Failed discovery feed calls",
		}, []string{"source"}),
		CandidatesReturned: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "candidates_returned",
			Help:      "Candidates returned per discovery run",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		}),

		TradesOpened: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "opened_total",
			Help:      "Positions opened",
		}),
		TradesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "closed_total",
			Help:      "Positions closed by result",
		}, []string{"result"}),
		RealizedPnlSol: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "realized_pnl_sol",
			Help:      "Cumulative realized PnL in SOL since process start",
		}),
		OpenPosition: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "open_position",
			Help:      "1 while a position is open",
		}),
		ExitDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "exit_decisions_total",
			Help:      "Sell decisions by exit rule",
		}, []string{"rule"}),
		ProceedsSource: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "proceeds_source_total",
			Help:      "Which estimate produced the recorded sell proceeds",
		}, []string{"source"}),
		QuoteSamples: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "quote_samples_total",
			Help:      "Hold-monitor quote samples recorded",
		}),
		UnrealizedPnlPct: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "unrealized_pnl_percent",
			Help:      "Last observed unrealized PnL of the open position",
		}),

		ExternalCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "call_duration_seconds",
			Help:      "External API call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "operation"}),
		ExternalCallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "call_errors_total",
			Help:      "Failed external API calls",
		}, []string{"service", "operation"}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordCycle records a finished cycle.
func RecordCycle(outcome string, d time.Duration) {
	DefaultMetrics.CyclesTotal.WithLabelValues(outcome).Inc()
	DefaultMetrics.CycleDuration.Observe(d.Seconds())
	DefaultMetrics.LastCycleEnded.Set(float64(time.Now().Unix()))
}

// RecordLockBusy counts a cycle skipped on lock contention.
func RecordLockBusy() {
	DefaultMetrics.LockBusyTotal.Inc()
}

// RecordPanic counts a recovered cycle panic.
func RecordPanic() {
	DefaultMetrics.CyclePanics.Inc()
}

// RecordDiscovery records which tier produced the pool and how many survived.
func RecordDiscovery(tier string, returned int) {
	DefaultMetrics.DiscoveryTier.WithLabelValues(tier).Inc()
	DefaultMetrics.CandidatesReturned.Observe(float64(returned))
}

// RecordFeedFailure counts a failed discovery call.
func RecordFeedFailure(source string) {
	DefaultMetrics.DiscoveryFailures.WithLabelValues(source).Inc()
}

// RecordBuy records an opened position.
func RecordBuy() {
	DefaultMetrics.TradesOpened.Inc()
	DefaultMetrics.OpenPosition.Set(1)
}

// RecordSell records a closed position and where its proceeds came from.
func RecordSell(pnlSol float64, proceedsSource string) {
	result := "loss"
	if pnlSol > 0 {
		result = "win"
	}
	DefaultMetrics.TradesClosed.WithLabelValues(result).Inc()
	DefaultMetrics.RealizedPnlSol.Add(pnlSol)
	DefaultMetrics.ProceedsSource.WithLabelValues(proceedsSource).Inc()
	DefaultMetrics.OpenPosition.Set(0)
}

// RecordExit counts the rule that triggered a sell.
func RecordExit(rule string) {
	DefaultMetrics.ExitDecisions.WithLabelValues(rule).Inc()
}

// RecordQuote records one hold-monitor sample.
func RecordQuote(pnlPercent *float64) {
	DefaultMetrics.QuoteSamples.Inc()
	if pnlPercent != nil {
		DefaultMetrics.UnrealizedPnlPct.Set(*pnlPercent)
	}
}

// RecordExternalCall records an external API call.
func RecordExternalCall(service, operation string, seconds float64, err error) {
	DefaultMetrics.ExternalCallLatency.WithLabelValues(service, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.ExternalCallErrors.WithLabelValues(service, operation).Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
