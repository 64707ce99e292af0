package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tradesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rascarobingo_trades_created_total",
			Help: "Total number of trades journaled",
		},
	)

	tradesClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rascarobingo_trades_closed_total",
			Help: "Total number of trades moved out of OPEN",
		},
		[]string{"status"},
	)

	closeRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rascarobingo_trade_close_rejected_total",
			Help: "Total number of rejected trade closes",
		},
		[]string{"reason"},
	)

	closeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rascarobingo_trade_close_duration_seconds",
			Help:    "Trade close duration in seconds, lock wait included",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
	)

	persistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rascarobingo_persistence_failures_total",
			Help: "Total number of store errors surfaced to callers",
		},
		[]string{"operation"},
	)

	dailyResetUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rascarobingo_daily_reset_users",
			Help: "Number of users reset by the last daily reset run",
		},
	)

	dailyResetLastRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rascarobingo_daily_reset_last_run_timestamp_seconds",
			Help: "Unix time of the last completed daily reset",
		},
	)
)

// RecordTradeCreated counts a new trade.
func RecordTradeCreated() {
	tradesCreated.Inc()
}

// RecordTradeClosed counts a committed close.
func RecordTradeClosed(status string, d time.Duration) {
	tradesClosed.WithLabelValues(status).Inc()
	closeDuration.Observe(d.Seconds())
}

// RecordCloseRejected counts a refused close by error code.
func RecordCloseRejected(reason string) {
	closeRejected.WithLabelValues(reason).Inc()
}

// RecordPersistenceFailure counts a store error.
func RecordPersistenceFailure(operation string) {
	persistenceFailures.WithLabelValues(operation).Inc()
}

// RecordDailyReset stores the outcome of a reset run.
func RecordDailyReset(users int, at time.Time) {
	dailyResetUsers.Set(float64(users))
	dailyResetLastRun.Set(float64(at.Unix()))
}
