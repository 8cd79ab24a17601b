// Package metrics exposes the knowledge collector's Prometheus
// collectors: batch/upsert counters and latency histograms for the
// indexing engine and vector store gateway, surfaced over "/metrics"
// (spec.md §14's supplemented observability surface).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "collector"

// Collector holds every registered metric. Construct one with New and
// share it across the engine and vector store.
type Collector struct {
	BatchesTotal    *prometheus.CounterVec
	BatchDuration   *prometheus.HistogramVec
	DocumentsTotal  *prometheus.CounterVec
	UpsertDuration  prometheus.Histogram
	UpsertFailures  prometheus.Counter
	SearchDuration  prometheus.Histogram
	SearchScores    prometheus.Histogram
}

// New builds and registers every collector against reg. Pass
// prometheus.DefaultRegisterer in production; tests should pass a
// fresh prometheus.NewRegistry() to avoid cross-test collisions.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		BatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total run_batch invocations by source and outcome.",
		}, []string{"source", "status"}),
		BatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "run_batch duration in seconds by source.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		DocumentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_processed_total",
			Help:      "Documents persisted by source.",
		}, []string{"source"}),
		UpsertDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vector_store_upsert_duration_seconds",
			Help:      "Vector store upsert call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		UpsertFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vector_store_upsert_failures_total",
			Help:      "Vector store upserts that exhausted their retries.",
		}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Hybrid search call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		SearchScores: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_result_score",
			Help:      "Distribution of returned search result scores.",
			Buckets:   []float64{0, .1, .2, .3, .4, .5, .6, .7, .8, .9, 1},
		}),
	}
}
