package store

import (
	"context"
	"fmt"
	"sync"
)

// Driver is the interface to access a storage engine as an Engine.
// Each storage provider implements a Driver.
type Driver interface {
	// Open opens access to the underlying storage engine.
	Open(ctx context.Context, params Params) (Engine, error)
}

// Params carries driver selection and per-driver settings.
type Params struct {
	Type   string
	Pebble *PebbleParams
}

// PebbleParams configures the pebble driver.
type PebbleParams struct {
	Path           string
	InMemory       bool
	CacheSizeBytes int64
	EnableLogging  bool
}

// Record is a single key/value pair, used for atomic multi-put.
type Record struct {
	Key   []byte
	Value []byte
}

// Engine is the storage engine boundary: point reads/writes plus consistent
// point-in-time snapshots with range-bounded iteration.
type Engine interface {
	// Get returns the value for key, or ErrNotFound. The returned slice is
	// owned by the caller.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Set stores the given value, overwriting an existing value if one exists.
	Set(ctx context.Context, key, value []byte) error

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key []byte) error

	// DeleteRange removes every key in [lower, upper).
	DeleteRange(ctx context.Context, lower, upper []byte) error

	// Apply writes all records atomically.
	Apply(ctx context.Context, records []Record) error

	// NewSnapshot acquires an immutable point-in-time read view. Snapshots
	// are unaffected by concurrent writes and safe for concurrent readers.
	NewSnapshot() (Snapshot, error)

	// Close access to the storage engine. After calling Close the instance is unusable.
	Close() error
}

// Snapshot is a consistent read view over the engine.
type Snapshot interface {
	// NewIter returns an iterator over [lower, upper) in key order.
	NewIter(lower, upper []byte) (EntriesIterator, error)

	// Close releases the snapshot.
	Close() error
}

// EntriesIterator enumerates entries of a bounded range scan.
type EntriesIterator interface {
	// Next should be called first before accessing Key/Value.
	// It advances to the next entry and reports whether one exists.
	Next() bool

	// Key returns the current key. Only valid until the next call to Next.
	Key() []byte

	// Value returns the current value. Only valid until the next call to Next.
	Value() []byte

	// Err is set to the first error hit while reading entries.
	Err() error

	// Close releases resources used by the scan.
	Close() error
}

// map drivers implementation
var (
	drivers   = make(map[string]Driver)
	driversMu sync.RWMutex
)

// Register 'driver' implementation under 'name'. Panic in case of empty name, nil driver or name already registered.
func Register(name string, driver Driver) {
	if name == "" {
		panic("store register name is missing")
	}
	if driver == nil {
		panic("store Register driver is nil")
	}
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, found := drivers[name]; found {
		panic("store Register driver already registered " + name)
	}
	drivers[name] = driver
}

// Open looks up the driver named by params.Type and opens an Engine with it.
// Fails with ErrUnknownDriver in case the driver is not registered.
func Open(ctx context.Context, params Params) (Engine, error) {
	driversMu.RLock()
	d, ok := drivers[params.Type]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, params.Type)
	}
	engine, err := d.Open(ctx, params)
	if err != nil {
		return nil, err
	}
	return newEngineMetricsWrapper(engine, params.Type), nil
}

// Drivers returns a list of registered driver names
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	return names
}
