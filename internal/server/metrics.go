package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks turn-level counters for the web front end.
type Metrics struct {
	Turns        *prometheus.CounterVec
	TurnDuration prometheus.Histogram
	QueriesRun   *prometheus.CounterVec
}

// NewMetrics registers the assistant metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqlsage",
			Name:      "turns_total",
			Help:      "Conversation turns processed, by outcome.",
		}, []string{"outcome"}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sqlsage",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end duration of one conversation turn.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		QueriesRun: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqlsage",
			Name:      "queries_executed_total",
			Help:      "Generated SQL statements executed, by outcome.",
		}, []string{"outcome"}),
	}
}
