package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	StageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tokenscope",
			Subsystem: "analysis",
			Name:      "stage_latency_seconds",
			Help:      "Latency of each analysis stage",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokenscope",
			Subsystem: "analysis",
			Name:      "total",
			Help:      "Completed analyses by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	HMMIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tokenscope",
			Subsystem: "regime",
			Name:      "baum_welch_iterations",
			Help:      "Baum-Welch iterations per training run",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50},
		},
	)

	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokenscope",
			Subsystem: "series_cache",
			Name:      "requests_total",
			Help:      "Series cache lookups by result",
		},
		[]string{"result"},
	)
)

// Register adds the pipeline collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(StageLatency, AnalysesTotal, HMMIterations, CacheRequests)
	})
}
