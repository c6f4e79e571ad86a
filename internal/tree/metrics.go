package tree

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// mutationTotal counts mutations by operation and outcome kind
	mutationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menu_mutation_total",
		Help: "Total document mutations by operation and result",
	}, []string{"operation", "result"})

	// mutationDuration tracks the full load-mutate-save latency
	mutationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "menu_mutation_duration_seconds",
		Help:    "Document mutation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	}, []string{"operation"})
)

func observeMutation(op Op, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = KindName(Kind(err))
	}
	mutationTotal.WithLabelValues(string(op), result).Inc()
	mutationDuration.WithLabelValues(string(op)).Observe(elapsed.Seconds())
}
