package pebble_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shardstream/shardstream/pkg/store"
	_ "github.com/shardstream/shardstream/pkg/store/pebble"
)

func openEngine(t *testing.T) store.Engine {
	t.Helper()
	engine, err := store.Open(context.Background(), store.Params{
		Type:   "pebble",
		Pebble: &store.PebbleParams{InMemory: true},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func TestEngine_OpenMissingParams(t *testing.T) {
	_, err := store.Open(context.Background(), store.Params{Type: "pebble"})
	require.ErrorIs(t, err, store.ErrDriverConfiguration)

	_, err = store.Open(context.Background(), store.Params{
		Type:   "pebble",
		Pebble: &store.PebbleParams{},
	})
	require.ErrorIs(t, err, store.ErrDriverConfiguration)
}

func TestEngine_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	engine := openEngine(t)

	key := []byte("k1")
	require.NoError(t, engine.Set(ctx, key, []byte("v1")))

	value, err := engine.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), value)

	require.NoError(t, engine.Set(ctx, key, []byte("v2")))
	value, err = engine.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), value)

	require.NoError(t, engine.Delete(ctx, key))
	_, err = engine.Get(ctx, key)
	require.ErrorIs(t, err, store.ErrNotFound)

	// deleting a missing key is not an error
	require.NoError(t, engine.Delete(ctx, []byte("missing")))
}

func TestEngine_Apply(t *testing.T) {
	ctx := context.Background()
	engine := openEngine(t)

	records := make([]store.Record, 5)
	for i := range records {
		records[i] = store.Record{
			Key:   []byte(fmt.Sprintf("k%d", i)),
			Value: []byte(fmt.Sprintf("v%d", i)),
		}
	}
	require.NoError(t, engine.Apply(ctx, records))

	for _, rec := range records {
		value, err := engine.Get(ctx, rec.Key)
		require.NoError(t, err)
		require.Equal(t, rec.Value, value)
	}
}

func TestEngine_SnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	engine := openEngine(t)

	require.NoError(t, engine.Set(ctx, []byte("a"), []byte("before")))

	snapshot, err := engine.NewSnapshot()
	require.NoError(t, err)
	defer func() { _ = snapshot.Close() }()

	require.NoError(t, engine.Set(ctx, []byte("a"), []byte("after")))
	require.NoError(t, engine.Set(ctx, []byte("b"), []byte("new")))

	it, err := snapshot.NewIter([]byte("a"), []byte("z"))
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	require.True(t, it.Next())
	require.Equal(t, []byte("a"), it.Key())
	require.Equal(t, []byte("before"), it.Value())
	require.False(t, it.Next(), "write after snapshot must not be visible")
	require.NoError(t, it.Err())
}

func TestEngine_BoundedIteration(t *testing.T) {
	ctx := context.Background()
	engine := openEngine(t)

	for i := 0; i < 10; i++ {
		require.NoError(t, engine.Set(ctx, []byte(fmt.Sprintf("k%d", i)), []byte{byte(i)}))
	}

	snapshot, err := engine.NewSnapshot()
	require.NoError(t, err)
	defer func() { _ = snapshot.Close() }()

	it, err := snapshot.NewIter([]byte("k3"), []byte("k7"))
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"k3", "k4", "k5", "k6"}, keys)
}

func TestEngine_DeleteRange(t *testing.T) {
	ctx := context.Background()
	engine := openEngine(t)

	for i := 0; i < 10; i++ {
		require.NoError(t, engine.Set(ctx, []byte(fmt.Sprintf("k%d", i)), []byte{byte(i)}))
	}
	require.NoError(t, engine.DeleteRange(ctx, []byte("k2"), []byte("k8")))

	snapshot, err := engine.NewSnapshot()
	require.NoError(t, err)
	defer func() { _ = snapshot.Close() }()

	it, err := snapshot.NewIter([]byte("k0"), []byte("k9\xff"))
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"k0", "k1", "k8", "k9"}, keys)
}
