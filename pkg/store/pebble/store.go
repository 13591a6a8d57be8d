package pebble

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/shardstream/shardstream/pkg/logging"
	"github.com/shardstream/shardstream/pkg/store"
)

const DriverName = "pebble"

type Driver struct{}

func (d *Driver) Open(_ context.Context, params store.Params) (store.Engine, error) {
	p := params.Pebble
	if p == nil {
		return nil, fmt.Errorf("missing %s settings: %w", DriverName, store.ErrDriverConfiguration)
	}
	if !p.InMemory && p.Path == "" {
		return nil, fmt.Errorf("%s path is required: %w", DriverName, store.ErrDriverConfiguration)
	}
	opts := &pebble.Options{}
	if p.InMemory {
		opts.FS = vfs.NewMem()
	}
	if p.EnableLogging {
		opts.Logger = &pebbleLogger{logging.Default().WithField("store", DriverName)}
	}
	if p.CacheSizeBytes > 0 {
		cache := pebble.NewCache(p.CacheSizeBytes)
		defer cache.Unref()
		opts.Cache = cache
	}
	db, err := pebble.Open(p.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", store.ErrConnectFailed, err)
	}
	return &Engine{db: db}, nil
}

//nolint:gochecknoinits
func init() {
	store.Register(DriverName, &Driver{})
}

// Engine implements store.Engine over a pebble database.
type Engine struct {
	db *pebble.DB
}

func (e *Engine) Get(_ context.Context, key []byte) ([]byte, error) {
	value, closer, err := e.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("key %v: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(value))
	copy(out, value)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) Set(_ context.Context, key, value []byte) error {
	return e.db.Set(key, value, pebble.Sync)
}

func (e *Engine) Delete(_ context.Context, key []byte) error {
	return e.db.Delete(key, pebble.Sync)
}

func (e *Engine) DeleteRange(_ context.Context, lower, upper []byte) error {
	return e.db.DeleteRange(lower, upper, pebble.Sync)
}

func (e *Engine) Apply(_ context.Context, records []store.Record) error {
	batch := e.db.NewBatch()
	defer func() { _ = batch.Close() }()
	for _, rec := range records {
		if err := batch.Set(rec.Key, rec.Value, nil); err != nil {
			return err
		}
	}
	return e.db.Apply(batch, pebble.Sync)
}

func (e *Engine) NewSnapshot() (store.Snapshot, error) {
	return &Snapshot{snap: e.db.NewSnapshot()}, nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}

// Snapshot implements store.Snapshot over a pebble snapshot.
type Snapshot struct {
	snap *pebble.Snapshot
}

func (s *Snapshot) NewIter(lower, upper []byte) (store.EntriesIterator, error) {
	iter := s.snap.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	return &entriesIterator{iter: iter}, nil
}

func (s *Snapshot) Close() error {
	return s.snap.Close()
}

type entriesIterator struct {
	iter    *pebble.Iterator
	started bool
}

func (it *entriesIterator) Next() bool {
	if !it.started {
		it.started = true
		return it.iter.First()
	}
	return it.iter.Next()
}

func (it *entriesIterator) Key() []byte {
	return it.iter.Key()
}

func (it *entriesIterator) Value() []byte {
	return it.iter.Value()
}

func (it *entriesIterator) Err() error {
	return it.iter.Error()
}

func (it *entriesIterator) Close() error {
	return it.iter.Close()
}

type pebbleLogger struct {
	logger logging.Logger
}

func (l *pebbleLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

func (l *pebbleLogger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatalf(format, args...)
}
