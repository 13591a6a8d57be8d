package dump

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBoundedChannel_FIFO(t *testing.T) {
	c := newBoundedChannel(4)
	for i := 0; i < 3; i++ {
		stopped, blocked := c.push(&Batch{Shard: "s", Content: []byte{byte(i)}})
		require.False(t, stopped)
		require.False(t, blocked)
	}
	for i := 0; i < 3; i++ {
		b, blocked, ok := c.pop()
		require.True(t, ok)
		require.False(t, blocked)
		require.Equal(t, []byte{byte(i)}, b.Content)
	}
}

func TestBoundedChannel_ProducerBackpressure(t *testing.T) {
	c := newBoundedChannel(1)
	stopped, blocked := c.push(&Batch{Shard: "s"})
	require.False(t, stopped)
	require.False(t, blocked)

	pushed := make(chan bool, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, blocked := c.push(&Batch{Shard: "s"})
		pushed <- blocked
	}()

	select {
	case <-pushed:
		t.Fatal("push on a full channel must block")
	case <-time.After(50 * time.Millisecond):
	}

	_, _, ok := c.pop()
	require.True(t, ok)
	wg.Wait()
	require.True(t, <-pushed, "producer should report that it blocked")
}

func TestBoundedChannel_ConsumerBlocksUntilPush(t *testing.T) {
	c := newBoundedChannel(1)
	type popResult struct {
		b       *Batch
		blocked bool
		ok      bool
	}
	results := make(chan popResult, 1)
	go func() {
		b, blocked, ok := c.pop()
		results <- popResult{b, blocked, ok}
	}()
	time.Sleep(20 * time.Millisecond)
	c.push(&Batch{Shard: "s"})
	res := <-results
	require.True(t, res.ok)
	require.True(t, res.blocked)
	require.Equal(t, "s", res.b.Shard)
}

func TestBoundedChannel_CloseDrainsThenEnds(t *testing.T) {
	c := newBoundedChannel(2)
	c.push(&Batch{Shard: "a"})
	c.push(&Batch{Shard: "b"})
	c.close()

	b, _, ok := c.pop()
	require.True(t, ok)
	require.Equal(t, "a", b.Shard)
	b, _, ok = c.pop()
	require.True(t, ok)
	require.Equal(t, "b", b.Shard)
	_, _, ok = c.pop()
	require.False(t, ok)
}

func TestBoundedChannel_StopDropsAndReleases(t *testing.T) {
	c := newBoundedChannel(1)
	c.push(&Batch{Shard: "a"})

	results := make(chan bool, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		stopped, _ := c.push(&Batch{Shard: "b"}) // blocks: channel is full
		results <- stopped
	}()
	time.Sleep(20 * time.Millisecond)
	c.stop()
	wg.Wait()
	require.True(t, <-results, "blocked producer must observe the stop")

	_, _, ok := c.pop()
	require.False(t, ok, "buffered batches are dropped on stop")
}
