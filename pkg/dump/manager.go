package dump

import (
	"context"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/shardstream/shardstream/pkg/logging"
	"github.com/shardstream/shardstream/pkg/store"
)

const (
	DefaultMaxContexts = 64
	DefaultGCInterval  = 10 * time.Second
)

type managedContext struct {
	dumpCtx *Context
	inUse   int
}

// Manager owns the live dump contexts: it creates them, leases them out by id
// with access checks, and collects them once their TTL expired and no lease
// is outstanding.
type Manager struct {
	logger      logging.Logger
	maxContexts int

	mu       sync.Mutex
	contexts map[string]*managedContext

	stop     chan struct{}
	gcDone   chan struct{}
	stopOnce sync.Once
}

func NewManager(logger logging.Logger, maxContexts int, gcInterval time.Duration) *Manager {
	if maxContexts <= 0 {
		maxContexts = DefaultMaxContexts
	}
	if gcInterval <= 0 {
		gcInterval = DefaultGCInterval
	}
	m := &Manager{
		logger:      logger,
		maxContexts: maxContexts,
		contexts:    make(map[string]*managedContext),
		stop:        make(chan struct{}),
		gcDone:      make(chan struct{}),
	}
	go m.gcLoop(gcInterval)
	return m
}

// CreateContext builds a new dump context with a generated id and returns it
// leased: the caller must Release the id once done with the first use.
func (m *Manager) CreateContext(ctx context.Context, engine store.Engine, catalog *store.Catalog, options Options, user, database string) (*Context, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate context id: %w", err)
	}
	dumpCtx, err := NewContext(ctx, engine, catalog, id, options, user, database, m.logger)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if len(m.contexts) >= m.maxContexts {
		m.mu.Unlock()
		dumpCtx.Close()
		return nil, fmt.Errorf("%w: limit %d", ErrTooManyContexts, m.maxContexts)
	}
	m.contexts[id] = &managedContext{dumpCtx: dumpCtx, inUse: 1}
	m.mu.Unlock()

	liveContextsGauge.Inc()
	return dumpCtx, nil
}

// Find leases the context with the given id. The database/user pair must
// match the context exactly; a mismatch is ErrForbidden. Every successful
// lease extends the context's lifetime.
func (m *Manager) Find(id, database, user string) (*Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.contexts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContextNotFound, id)
	}
	if !mc.dumpCtx.CanAccess(database, user) {
		return nil, ErrForbidden
	}
	mc.inUse++
	mc.dumpCtx.ExtendLifetime()
	return mc.dumpCtx, nil
}

// Release returns a lease taken by CreateContext or Find, extending the
// lifetime once more so an idle-but-recently-used context survives.
func (m *Manager) Release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.contexts[id]
	if !ok {
		return
	}
	if mc.inUse > 0 {
		mc.inUse--
	}
	mc.dumpCtx.ExtendLifetime()
}

// DropContext tears down the context explicitly. Fails while a lease is
// outstanding.
func (m *Manager) DropContext(id, database, user string) error {
	m.mu.Lock()
	mc, ok := m.contexts[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrContextNotFound, id)
	}
	if !mc.dumpCtx.CanAccess(database, user) {
		m.mu.Unlock()
		return ErrForbidden
	}
	if mc.inUse > 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrContextInUse, id)
	}
	delete(m.contexts, id)
	m.mu.Unlock()

	mc.dumpCtx.Close()
	liveContextsGauge.Dec()
	return nil
}

// GarbageCollect destroys contexts that are past their expiry and not leased.
// With force it destroys every unleased context regardless of expiry; this is
// the shutdown path.
func (m *Manager) GarbageCollect(force bool) {
	now := float64(time.Now().UnixMicro()) / 1e6

	var collected []*managedContext
	m.mu.Lock()
	for id, mc := range m.contexts {
		if mc.inUse > 0 {
			continue
		}
		if !force && mc.dumpCtx.Expires() > now {
			continue
		}
		delete(m.contexts, id)
		collected = append(collected, mc)
	}
	m.mu.Unlock()

	for _, mc := range collected {
		m.logger.WithField(logging.ContextIDFieldKey, mc.dumpCtx.ID()).
			Info("collecting dump context")
		mc.dumpCtx.Close()
		liveContextsGauge.Dec()
		if !force {
			expiredContextsCounter.Inc()
		}
	}
}

// Close stops the collector and force-collects all contexts. Contexts still
// leased at shutdown are closed too; their consumers observe completion.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.stop)
		<-m.gcDone

		m.mu.Lock()
		remaining := make([]*managedContext, 0, len(m.contexts))
		for id, mc := range m.contexts {
			delete(m.contexts, id)
			remaining = append(remaining, mc)
		}
		m.mu.Unlock()
		for _, mc := range remaining {
			mc.dumpCtx.Close()
			liveContextsGauge.Dec()
		}
	})
}

func (m *Manager) gcLoop(interval time.Duration) {
	defer close(m.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.GarbageCollect(false)
		}
	}
}
