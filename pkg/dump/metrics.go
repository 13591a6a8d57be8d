package dump

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesProducedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dump_batches_produced_total",
		Help: "number of batches produced by dump workers",
	})
	bytesProducedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dump_bytes_produced_total",
		Help: "total serialized content bytes produced by dump workers",
	})
	liveContextsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dump_contexts_live",
		Help: "number of live dump contexts held by the manager",
	})
	expiredContextsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dump_contexts_expired_total",
		Help: "number of dump contexts collected after their TTL expired",
	})
	nextWaitHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dump_next_wait_duration_seconds",
		Help:    "time consumers spent waiting in Next for a batch",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
)
