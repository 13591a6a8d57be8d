package dump

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/shardstream/shardstream/pkg/logging"
	"github.com/shardstream/shardstream/pkg/store"
)

// shardInfo bundles the per-shard resources of a context: the existence
// guard, the shard metadata and its cached keyspace bounds. Handles live in
// an arena on the context; work items refer to them by index. Read-only after
// construction.
type shardInfo struct {
	guard *store.ShardGuard
	meta  *store.ShardMeta
	lower []byte
	upper []byte
}

// Context owns a full dump of one or more shards: a shared read snapshot, the
// work-partition queue, the worker pool, the bounded batch channel and the
// batch registry. Consumers drain it with Next; a manager leases and expires
// it by TTL.
type Context struct {
	id       string
	user     string
	database string
	options  Options
	logger   logging.Logger

	// expiry timestamp in microseconds since epoch, extended on every lease
	expires atomic.Int64

	snapshot store.Snapshot
	shards   []*shardInfo

	queue    *workQueue
	channel  *boundedChannel
	registry *batchRegistry

	workers sync.WaitGroup

	lastIssuedID atomic.Uint64

	// +1 for a block on the consumer side, -1 for a block on the producer
	// side; diagnostic only
	blockCounter atomic.Int64

	closeOnce sync.Once
}

// NewContext resolves all requested shards (guarding each against drops),
// acquires a snapshot, seeds one full-range work item per shard and starts
// options.Parallelism workers. Fails with store.ErrShardNotFound if any shard
// does not exist; no context is created in that case.
func NewContext(ctx context.Context, engine store.Engine, catalog *store.Catalog, id string, options Options, user, database string, logger logging.Logger) (*Context, error) {
	options.normalize()

	shards := make([]*shardInfo, 0, len(options.Shards))
	releaseAll := func() {
		for _, sh := range shards {
			sh.guard.Release()
		}
	}
	for _, name := range options.Shards {
		guard, err := catalog.Acquire(ctx, name)
		if err != nil {
			releaseAll()
			return nil, err
		}
		meta := guard.Shard()
		lower, upper := meta.Bounds()
		shards = append(shards, &shardInfo{
			guard: guard,
			meta:  meta,
			lower: lower,
			upper: upper,
		})
	}

	snapshot, err := engine.NewSnapshot()
	if err != nil {
		releaseAll()
		return nil, fmt.Errorf("acquire dump snapshot: %w", err)
	}

	c := &Context{
		id:       id,
		user:     user,
		database: database,
		options:  options,
		logger: logger.WithFields(logging.Fields{
			logging.ContextIDFieldKey: id,
			logging.DatabaseFieldKey:  database,
		}),
		snapshot: snapshot,
		shards:   shards,
		queue:    newWorkQueue(int(options.Parallelism)),
		channel:  newBoundedChannel(int(options.PrefetchCount * options.Parallelism)),
		registry: newBatchRegistry(),
	}
	c.ExtendLifetime()

	for i := range shards {
		c.queue.push(workItem{shard: i, lowerBound: 0, upperBound: math.MaxUint64})
	}

	for i := 0; i < int(options.Parallelism); i++ {
		c.workers.Add(1)
		go c.runWorker(i)
	}
	// once every worker has exited, no batch can be produced anymore
	go func() {
		c.workers.Wait()
		c.channel.close()
	}()

	c.logger.WithFields(logging.Fields{
		"shards":      options.Shards,
		"parallelism": options.Parallelism,
		"batch_size":  options.BatchSize,
	}).Info("dump context created")
	return c, nil
}

// ID returns the context id. Immutable.
func (c *Context) ID() string { return c.id }

// Database returns the database the context reads from. Immutable.
func (c *Context) Database() string { return c.database }

// User returns the user that created the context. Immutable.
func (c *Context) User() string { return c.user }

// TTL returns the context's lease duration in seconds. Immutable.
func (c *Context) TTL() float64 { return c.options.TTL }

// CanAccess reports whether the context belongs to exactly this database and
// user. Case-sensitive, no partial matches.
func (c *Context) CanAccess(database, user string) bool {
	return database == c.database && user == c.user
}

// Expires returns the expiry timestamp in seconds since epoch.
func (c *Context) Expires() float64 {
	return float64(c.expires.Load()) / 1e6
}

// ExtendLifetime sets the expiry to now + TTL. Never moves the expiry
// backwards; safe to call concurrently with everything else.
func (c *Context) ExtendLifetime() {
	ttl := time.Duration(c.options.TTL * float64(time.Second))
	for {
		current := c.expires.Load()
		next := time.Now().Add(ttl).UnixMicro()
		if next <= current {
			return
		}
		if c.expires.CompareAndSwap(current, next) {
			return
		}
	}
}

// BlockCounts returns the current value of the block counter: positive when
// the consumer tends to outrun the workers, negative when the workers outrun
// the consumer. Diagnostic only.
func (c *Context) BlockCounts() int64 {
	return c.blockCounter.Load()
}

// Next returns the next available batch with a freshly assigned id, retiring
// lastBatch from the registry first if it is set. Blocks until a batch is
// available or the dump completed; returns (nil, nil) once all shards are
// exhausted. If a worker failed, the latched error is returned instead, on
// this call and every later one.
//
// Batch ids are assigned by the context from a monotonic counter. The
// caller-supplied batchID is an advisory sequencing token; a mismatch is
// logged, never an error.
func (c *Context) Next(batchID uint64, lastBatch *uint64) (*Batch, error) {
	if lastBatch != nil {
		if err := c.registry.remove(*lastBatch); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	b, blocked, ok := c.channel.pop()
	nextWaitHistogram.Observe(time.Since(start).Seconds())
	if blocked {
		c.blockCounter.Add(1)
	}
	if !ok {
		if err := c.queue.err(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	id := c.lastIssuedID.Add(1)
	b.ID = id
	if batchID != id && c.logger.IsDebugging() {
		c.logger.WithFields(logging.Fields{
			logging.BatchIDFieldKey: id,
			"requested_batch_id":    batchID,
		}).Debug("caller batch id out of sequence")
	}
	c.registry.add(id, b)
	return b, nil
}

// Close tears the context down: stops the queue and the channel, joins all
// workers, then releases the shard guards and the snapshot. Idempotent, and
// safe to call while a consumer is blocked in Next; that call wakes and
// observes completion.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		c.queue.stop()
		c.channel.stop()
		c.workers.Wait()

		var combined error
		for _, sh := range c.shards {
			sh.guard.Release()
		}
		if err := c.snapshot.Close(); err != nil {
			combined = multierror.Append(combined, err)
		}
		if combined != nil {
			c.logger.WithError(combined).Warn("dump context teardown")
		}
		c.logger.Debug("dump context closed")
	})
}

func (c *Context) runWorker(ordinal int) {
	defer c.workers.Done()
	log := c.logger.WithField(logging.WorkerFieldKey, ordinal)
	log.Debug("dump worker started")
	for {
		item := c.queue.pop()
		if item.empty() {
			log.Debug("dump worker done")
			return
		}
		if err := c.handleWorkItem(item); err != nil {
			log.WithError(err).Error("dump worker failed")
			c.queue.setError(err)
			// release the consumer right away; buffered batches are moot
			// once the dump is known to be incomplete
			c.channel.stop()
			return
		}
	}
}

// handleWorkItem scans the item's sub-range within its shard and emits
// batches of at most BatchSize bytes. When the range still has entries after
// a batch fills up, the remainder is re-enqueued as a new work item so an
// idle worker can continue the shard in parallel.
func (c *Context) handleWorkItem(item workItem) error {
	sh := c.shards[item.shard]
	lower, upper := store.RangeBounds(sh.meta.Keyspace, item.lowerBound, item.upperBound)

	it, err := c.snapshot.NewIter(lower, upper)
	if err != nil {
		return fmt.Errorf("shard %s: open iterator: %w", sh.meta.Name, err)
	}
	defer func() { _ = it.Close() }()

	var content []byte
	for it.Next() {
		docKey, err := store.DocKey(it.Key())
		if err != nil {
			return fmt.Errorf("shard %s: %w", sh.meta.Name, err)
		}
		line, err := marshalRecord(docKey, it.Value())
		if err != nil {
			return fmt.Errorf("shard %s: serialize document %d: %w", sh.meta.Name, docKey, err)
		}
		if len(content) > 0 && uint64(len(content)+len(line)) > c.options.BatchSize {
			// batch is full; hand the rest of the range back to the queue
			// starting at the current, not yet emitted document
			if stopped := c.pushBatch(sh.meta.Name, content); stopped {
				return nil
			}
			c.queue.push(workItem{shard: item.shard, lowerBound: docKey, upperBound: item.upperBound})
			return nil
		}
		content = append(content, line...)
		if uint64(len(content)) >= c.options.BatchSize {
			if stopped := c.pushBatch(sh.meta.Name, content); stopped {
				return nil
			}
			if docKey == math.MaxUint64 {
				return nil
			}
			// a remainder item with an empty range is harmless, it scans
			// nothing and produces nothing
			c.queue.push(workItem{shard: item.shard, lowerBound: docKey + 1, upperBound: item.upperBound})
			return nil
		}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("shard %s: iterate: %w", sh.meta.Name, err)
	}
	if len(content) > 0 {
		c.pushBatch(sh.meta.Name, content)
	}
	return nil
}

func (c *Context) pushBatch(shard string, content []byte) (stopped bool) {
	b := &Batch{Shard: shard, Content: content}
	stopped, blocked := c.channel.push(b)
	if blocked {
		c.blockCounter.Add(-1)
	}
	if !stopped {
		batchesProducedCounter.Inc()
		bytesProducedCounter.Add(float64(len(content)))
	}
	return stopped
}
