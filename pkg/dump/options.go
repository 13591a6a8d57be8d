package dump

import "encoding/json"

const (
	DefaultBatchSize     = 16 * 1024
	DefaultPrefetchCount = 2
	DefaultParallelism   = 2
	DefaultTTL           = 600.0
)

// Options is the configuration surface of a dump context. Immutable after
// construction.
type Options struct {
	// BatchSize is the maximum content size of an emitted batch, in bytes.
	// A single record larger than BatchSize forms its own batch; a batch
	// never splits a record.
	BatchSize uint64 `json:"batchSize"`
	// PrefetchCount scales how many completed batches may sit in the channel
	// ahead of the consumer (capacity = PrefetchCount * Parallelism).
	PrefetchCount uint64 `json:"prefetchCount"`
	// Parallelism is the number of worker goroutines.
	Parallelism uint64 `json:"parallelism"`
	// TTL is the context's lease duration in seconds.
	TTL float64 `json:"ttl"`
	// Shards lists the shards to dump.
	Shards []string `json:"shards"`
}

func DefaultOptions() Options {
	return Options{
		BatchSize:     DefaultBatchSize,
		PrefetchCount: DefaultPrefetchCount,
		Parallelism:   DefaultParallelism,
		TTL:           DefaultTTL,
	}
}

// ParseOptions merges the JSON document over the defaults: missing fields keep
// their default, unknown fields are ignored.
func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions()
	if err := json.Unmarshal(data, &opts); err != nil {
		return Options{}, err
	}
	opts.normalize()
	return opts, nil
}

// normalize maps explicit zero values back to defaults. The options form a
// declarative merge surface, not a strictly validated schema.
func (o *Options) normalize() {
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.PrefetchCount == 0 {
		o.PrefetchCount = DefaultPrefetchCount
	}
	if o.Parallelism == 0 {
		o.Parallelism = DefaultParallelism
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
}
