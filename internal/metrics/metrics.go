// Package metrics holds the Prometheus collectors for the refresh pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector so the refresh runner carries one handle.
type Metrics struct {
	CycleDuration   prometheus.Histogram
	CyclesTotal     *prometheus.CounterVec
	TokenErrors     *prometheus.CounterVec
	UpstreamRetries *prometheus.CounterVec
	DiffsPublished  prometheus.Counter
	PatchesTotal    prometheus.Counter
}

// New registers all collectors against the given registerer. Passing
// prometheus.DefaultRegisterer wires the default /metrics output.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		CycleDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "tokenscope",
			Name:      "refresh_cycle_duration_seconds",
			Help:      "Time taken by one full refresh cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		CyclesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenscope",
			Name:      "refresh_cycles_total",
			Help:      "Refresh cycles by outcome (ok, skipped, failed).",
		}, []string{"outcome"}),
		TokenErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenscope",
			Name:      "token_errors_total",
			Help:      "Per-token failures recorded as error entries.",
		}, []string{"label"}),
		UpstreamRetries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenscope",
			Name:      "upstream_retries_total",
			Help:      "Retries issued against upstream providers.",
		}, []string{"provider"}),
		DiffsPublished: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "tokenscope",
			Name:      "diffs_published_total",
			Help:      "Diff records published across all patches.",
		}),
		PatchesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "tokenscope",
			Name:      "patches_published_total",
			Help:      "Non-empty patches published to the bus.",
		}),
	}
}

// NewNop returns metrics bound to a throwaway registry, for tests and for
// callers that do not expose /metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
