package store

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestHistograms = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "store_request_duration_seconds",
		Help:    "request durations for the storage engine",
		Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	},
	[]string{"type", "operation"})

// EngineMetricsWrapper wraps any Engine with metrics
type EngineMetricsWrapper struct {
	Engine     Engine
	engineType string
}

func (e *EngineMetricsWrapper) wrapWithMetrics(op string, f func()) {
	start := time.Now()
	f()
	requestHistograms.WithLabelValues(e.engineType, op).Observe(time.Since(start).Seconds())
}

func (e *EngineMetricsWrapper) Get(ctx context.Context, key []byte) ([]byte, error) {
	var res []byte
	var err error

	e.wrapWithMetrics("Get", func() {
		res, err = e.Engine.Get(ctx, key)
	})
	return res, err
}

func (e *EngineMetricsWrapper) Set(ctx context.Context, key, value []byte) error {
	var err error

	e.wrapWithMetrics("Set", func() {
		err = e.Engine.Set(ctx, key, value)
	})
	return err
}

func (e *EngineMetricsWrapper) Delete(ctx context.Context, key []byte) error {
	var err error

	e.wrapWithMetrics("Delete", func() {
		err = e.Engine.Delete(ctx, key)
	})
	return err
}

func (e *EngineMetricsWrapper) DeleteRange(ctx context.Context, lower, upper []byte) error {
	var err error

	e.wrapWithMetrics("DeleteRange", func() {
		err = e.Engine.DeleteRange(ctx, lower, upper)
	})
	return err
}

func (e *EngineMetricsWrapper) Apply(ctx context.Context, records []Record) error {
	var err error

	e.wrapWithMetrics("Apply", func() {
		err = e.Engine.Apply(ctx, records)
	})
	return err
}

func (e *EngineMetricsWrapper) NewSnapshot() (Snapshot, error) {
	var res Snapshot
	var err error

	e.wrapWithMetrics("NewSnapshot", func() {
		res, err = e.Engine.NewSnapshot()
	})
	return res, err
}

func (e *EngineMetricsWrapper) Close() error {
	var err error

	e.wrapWithMetrics("Close", func() {
		err = e.Engine.Close()
	})
	return err
}

func newEngineMetricsWrapper(engine Engine, engineType string) *EngineMetricsWrapper {
	return &EngineMetricsWrapper{Engine: engine, engineType: engineType}
}
