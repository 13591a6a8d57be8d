package dump

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shardstream/shardstream/pkg/logging"
	"github.com/shardstream/shardstream/pkg/store"
)

func TestManager_LeaseLifecycle(t *testing.T) {
	engine := openTestEngine(t)
	catalog := store.NewCatalog(engine, logging.Dummy())
	seedShard(t, engine, catalog, "users", 10)

	m := NewManager(logging.Dummy(), 4, time.Hour)
	defer m.Close()

	c, err := m.CreateContext(context.Background(), engine, catalog,
		Options{Shards: []string{"users"}}, "alice", "prod")
	require.NoError(t, err)

	// created contexts come back leased once
	_, err = m.Find(c.ID(), "prod", "alice")
	require.NoError(t, err)

	_, err = m.Find(c.ID(), "prod", "bob")
	require.ErrorIs(t, err, ErrForbidden)
	_, err = m.Find(c.ID(), "staging", "alice")
	require.ErrorIs(t, err, ErrForbidden)
	_, err = m.Find("no-such-context", "prod", "alice")
	require.ErrorIs(t, err, ErrContextNotFound)

	// two leases outstanding, drop must refuse
	err = m.DropContext(c.ID(), "prod", "alice")
	require.ErrorIs(t, err, ErrContextInUse)

	m.Release(c.ID())
	m.Release(c.ID())
	require.NoError(t, m.DropContext(c.ID(), "prod", "alice"))

	_, err = m.Find(c.ID(), "prod", "alice")
	require.ErrorIs(t, err, ErrContextNotFound)
}

func TestManager_DropAccessCheck(t *testing.T) {
	engine := openTestEngine(t)
	catalog := store.NewCatalog(engine, logging.Dummy())
	seedShard(t, engine, catalog, "users", 10)

	m := NewManager(logging.Dummy(), 4, time.Hour)
	defer m.Close()

	c, err := m.CreateContext(context.Background(), engine, catalog,
		Options{Shards: []string{"users"}}, "alice", "prod")
	require.NoError(t, err)
	m.Release(c.ID())

	require.ErrorIs(t, m.DropContext(c.ID(), "prod", "eve"), ErrForbidden)
	require.NoError(t, m.DropContext(c.ID(), "prod", "alice"))
}

func TestManager_ExpiredContextsCollected(t *testing.T) {
	engine := openTestEngine(t)
	catalog := store.NewCatalog(engine, logging.Dummy())
	seedShard(t, engine, catalog, "users", 10)

	m := NewManager(logging.Dummy(), 4, time.Hour)
	defer m.Close()

	c, err := m.CreateContext(context.Background(), engine, catalog,
		Options{TTL: 0.05, Shards: []string{"users"}}, "alice", "prod")
	require.NoError(t, err)
	m.Release(c.ID())

	// a leased context is never collected
	leased, err := m.Find(c.ID(), "prod", "alice")
	require.NoError(t, err)
	time.Sleep(150 * time.Millisecond)
	m.GarbageCollect(false)
	_, err = m.Find(leased.ID(), "prod", "alice")
	require.NoError(t, err)
	m.Release(leased.ID())
	m.Release(leased.ID())

	time.Sleep(150 * time.Millisecond)
	m.GarbageCollect(false)
	_, err = m.Find(c.ID(), "prod", "alice")
	require.ErrorIs(t, err, ErrContextNotFound)
}

func TestManager_MaxContexts(t *testing.T) {
	engine := openTestEngine(t)
	catalog := store.NewCatalog(engine, logging.Dummy())
	seedShard(t, engine, catalog, "users", 10)

	m := NewManager(logging.Dummy(), 1, time.Hour)
	defer m.Close()

	_, err := m.CreateContext(context.Background(), engine, catalog,
		Options{Shards: []string{"users"}}, "alice", "prod")
	require.NoError(t, err)

	_, err = m.CreateContext(context.Background(), engine, catalog,
		Options{Shards: []string{"users"}}, "alice", "prod")
	require.ErrorIs(t, err, ErrTooManyContexts)
}

func TestManager_CloseTearsDownContexts(t *testing.T) {
	engine := openTestEngine(t)
	catalog := store.NewCatalog(engine, logging.Dummy())
	seedShard(t, engine, catalog, "users", 10)

	m := NewManager(logging.Dummy(), 4, time.Hour)
	c, err := m.CreateContext(context.Background(), engine, catalog,
		Options{Shards: []string{"users"}}, "alice", "prod")
	require.NoError(t, err)

	m.Close()

	// the context was closed underneath the leaseholder; consumers observe
	// completion
	b, err := c.Next(1, nil)
	require.NoError(t, err)
	require.Nil(t, b)
}
