// Package metrics exposes the Prometheus instruments shared by the world
// service. Instruments are registered on the default registry so the admin
// surface can serve them from /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsTotal counts economic transactions by reason and outcome.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshmush_transactions_total",
		Help: "Economic transactions processed, by reason and outcome",
	}, []string{"reason", "outcome"})

	// TransactionDuration observes end-to-end transaction latency.
	TransactionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meshmush_transaction_duration_seconds",
		Help:    "Transaction latency",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"op"})

	// MigrationsTotal counts lazy schema migrations by record type.
	MigrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshmush_migrations_total",
		Help: "Records migrated to the current schema version on read",
	}, []string{"type"})

	// CorruptRecordsTotal counts records that failed to decode or migrate.
	CorruptRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshmush_corrupt_records_total",
		Help: "Records rejected as corrupt during load",
	}, []string{"type"})

	// RecoveredIntentsTotal counts ledger intents replayed at startup.
	RecoveredIntentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meshmush_recovered_intents_total",
		Help: "Pending ledger intents replayed by crash recovery",
	})

	// ParkedIntentsTotal counts ledger intents recovery could not replay.
	ParkedIntentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meshmush_parked_intents_total",
		Help: "Pending ledger intents parked as unreplayable by crash recovery",
	})

	// TradesTotal counts trade sessions by final state.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshmush_trades_total",
		Help: "Trade sessions closed, by final state",
	}, []string{"state"})
)
