package dump

import "sync"

// boundedChannel passes completed batches from workers to the consumer with
// backpressure in both directions: producers block while the channel is full,
// the consumer blocks while it is empty. The returned blocked flags feed the
// context's diagnostic block counter and never influence scheduling.
type boundedChannel struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	buf      []*Batch
	capacity int

	closed  bool // producers are done; consumers drain what is buffered
	stopped bool // hard teardown; buffered batches are dropped
}

func newBoundedChannel(capacity int) *boundedChannel {
	if capacity < 1 {
		capacity = 1
	}
	c := &boundedChannel{capacity: capacity}
	c.notFull = sync.NewCond(&c.mu)
	c.notEmpty = sync.NewCond(&c.mu)
	return c
}

// push inserts a batch, blocking while the channel is full. Reports whether
// the channel was stopped before the batch could be inserted and whether the
// call blocked.
func (c *boundedChannel) push(b *Batch) (stopped, blocked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.buf) >= c.capacity && !c.stopped {
		blocked = true
		c.notFull.Wait()
	}
	if c.stopped {
		return true, blocked
	}
	c.buf = append(c.buf, b)
	c.notEmpty.Signal()
	return false, blocked
}

// pop removes the oldest batch, blocking while the channel is empty and still
// open. ok is false once the channel is stopped, or closed and drained.
func (c *boundedChannel) pop() (b *Batch, blocked, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.buf) == 0 && !c.closed && !c.stopped {
		blocked = true
		c.notEmpty.Wait()
	}
	if c.stopped || len(c.buf) == 0 {
		return nil, blocked, false
	}
	b = c.buf[0]
	c.buf = c.buf[1:]
	c.notFull.Signal()
	return b, blocked, true
}

// close marks the producer side finished. Consumers drain the remaining
// batches and then observe end of data.
func (c *boundedChannel) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.notEmpty.Broadcast()
}

// stop tears the channel down, dropping buffered batches and releasing every
// blocked producer and consumer. Idempotent.
func (c *boundedChannel) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.buf = nil
	c.notEmpty.Broadcast()
	c.notFull.Broadcast()
}
