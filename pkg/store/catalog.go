package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shardstream/shardstream/pkg/logging"
)

// ShardMeta describes one shard: its name and the keyspace its data lives in.
type ShardMeta struct {
	Name      string    `json:"name"`
	Keyspace  uint64    `json:"keyspace"`
	CreatedAt time.Time `json:"created_at"`
}

// Bounds returns the byte bounds covering the shard's full keyspace.
func (m *ShardMeta) Bounds() (lower, upper []byte) {
	return KeyspaceBounds(m.Keyspace)
}

// Catalog persists shard metadata in the engine's system keyspace and tracks
// existence guards: a shard cannot be dropped while any guard on it is held.
type Catalog struct {
	engine Engine
	logger logging.Logger

	mu     sync.Mutex
	guards map[string]int
}

func NewCatalog(engine Engine, logger logging.Logger) *Catalog {
	return &Catalog{
		engine: engine,
		logger: logger,
		guards: make(map[string]int),
	}
}

// Create registers a new shard and allocates its keyspace.
func (c *Catalog) Create(ctx context.Context, name string) (*ShardMeta, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrMalformedKey)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.engine.Get(ctx, shardMetaKey(name))
	if err == nil {
		return nil, fmt.Errorf("%w: %s", ErrShardExists, name)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup shard %s: %w", name, err)
	}

	keyspace, err := c.allocateKeyspace(ctx)
	if err != nil {
		return nil, err
	}
	meta := &ShardMeta{
		Name:      name,
		Keyspace:  keyspace,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.putMeta(ctx, meta); err != nil {
		return nil, err
	}
	c.logger.WithFields(logging.Fields{
		logging.ShardFieldKey: name,
		"keyspace":            keyspace,
	}).Info("shard created")
	return meta, nil
}

// Get returns the shard's metadata, or ErrShardNotFound.
func (c *Catalog) Get(ctx context.Context, name string) (*ShardMeta, error) {
	value, err := c.engine.Get(ctx, shardMetaKey(name))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrShardNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup shard %s: %w", name, err)
	}
	meta := &ShardMeta{}
	if err := json.Unmarshal(value, meta); err != nil {
		return nil, fmt.Errorf("decode shard %s metadata: %w", name, err)
	}
	return meta, nil
}

// List returns all shards in name order.
func (c *Catalog) List(ctx context.Context) ([]ShardMeta, error) {
	snapshot, err := c.engine.NewSnapshot()
	if err != nil {
		return nil, err
	}
	defer func() { _ = snapshot.Close() }()

	lower, upper := shardMetaBounds()
	it, err := snapshot.NewIter(lower, upper)
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	var shards []ShardMeta
	for it.Next() {
		var meta ShardMeta
		if err := json.Unmarshal(it.Value(), &meta); err != nil {
			return nil, fmt.Errorf("decode shard metadata: %w", err)
		}
		shards = append(shards, meta)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("scan shards: %w", err)
	}
	return shards, nil
}

// Acquire resolves the shard and takes an existence guard on it. While the
// guard is held, Drop on the shard fails with ErrShardInUse. The lookup and
// the guard increment happen under the catalog lock, so a concurrent Drop
// either loses (ErrShardInUse) or wins (Acquire fails ErrShardNotFound); a
// guard is never held on a dropped shard.
func (c *Catalog) Acquire(ctx context.Context, name string) (*ShardGuard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	meta, err := c.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	c.guards[name]++
	return &ShardGuard{meta: meta, catalog: c}, nil
}

// Drop removes the shard's metadata and deletes all of its data. Fails with
// ErrShardInUse while any guard on the shard is held.
func (c *Catalog) Drop(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.guards[name] > 0 {
		return fmt.Errorf("%w: %s", ErrShardInUse, name)
	}
	meta, err := c.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := c.engine.Delete(ctx, shardMetaKey(name)); err != nil {
		return fmt.Errorf("delete shard %s metadata: %w", name, err)
	}
	lower, upper := meta.Bounds()
	if err := c.engine.DeleteRange(ctx, lower, upper); err != nil {
		return fmt.Errorf("delete shard %s data: %w", name, err)
	}
	c.logger.WithField(logging.ShardFieldKey, name).Info("shard dropped")
	return nil
}

func (c *Catalog) allocateKeyspace(ctx context.Context) (uint64, error) {
	var next uint64 = 1
	value, err := c.engine.Get(ctx, nextKeyspaceKey())
	switch {
	case err == nil:
		next = binary.BigEndian.Uint64(value)
	case !errors.Is(err, ErrNotFound):
		return 0, fmt.Errorf("read keyspace counter: %w", err)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next+1)
	if err := c.engine.Set(ctx, nextKeyspaceKey(), buf); err != nil {
		return 0, fmt.Errorf("advance keyspace counter: %w", err)
	}
	return next, nil
}

func (c *Catalog) putMeta(ctx context.Context, meta *ShardMeta) error {
	value, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode shard %s metadata: %w", meta.Name, err)
	}
	if err := c.engine.Set(ctx, shardMetaKey(meta.Name), value); err != nil {
		return fmt.Errorf("store shard %s metadata: %w", meta.Name, err)
	}
	return nil
}

func (c *Catalog) releaseGuard(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.guards[name] <= 1 {
		delete(c.guards, name)
	} else {
		c.guards[name]--
	}
}

// ShardGuard keeps a shard alive. Release is idempotent.
type ShardGuard struct {
	meta    *ShardMeta
	catalog *Catalog
	once    sync.Once
}

func (g *ShardGuard) Shard() *ShardMeta {
	return g.meta
}

func (g *ShardGuard) Release() {
	g.once.Do(func() {
		g.catalog.releaseGuard(g.meta.Name)
	})
}
