package world

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	queryTypeLabel = "query_type"
)

var (
	raidoWorldCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "world_count",
		Help: "The number of worlds.",
	})

	raidoWorldCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "world_count_total",
		Help: "The total number of worlds.",
	})

	raidoEntityCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "entity_count",
		Help: "The number of indexed entities.",
	})

	raidoStepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "index_step_duration_seconds",
		Help:    "The time spent reindexing and compacting a world.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
	})

	raidoQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "index_query_duration_seconds",
		Help:    "The time spent answering an overlap query.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
	}, []string{queryTypeLabel})
)

func instrumentIncreaseWorldGauge() {
	raidoWorldCount.Inc()
}

func instrumentDecreaseWorldGauge() {
	raidoWorldCount.Dec()
}

func instrumentCountWorld() {
	raidoWorldCountTotal.Inc()
}

func instrumentIncreaseEntityGauge() {
	raidoEntityCount.Inc()
}

func instrumentDecreaseEntityGauge() {
	raidoEntityCount.Dec()
}

func instrumentStepDuration(d time.Duration) {
	raidoStepDuration.Observe(d.Seconds())
}

func instrumentQueryDuration(queryType string, d time.Duration) {
	raidoQueryDuration.
		With(prometheus.Labels{queryTypeLabel: queryType}).
		Observe(d.Seconds())
}
