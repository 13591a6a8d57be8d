package dump

import (
	"math"
	"sync"
)

// workItem is a unit of partitioned scan work: a shard (by arena index) and a
// sub-range [lowerBound, upperBound) of its numeric key space.
type workItem struct {
	shard      int
	lowerBound uint64
	upperBound uint64
}

// emptyWorkItem is the queue-closed sentinel handed to workers on shutdown.
var emptyWorkItem = workItem{shard: -1, lowerBound: 0, upperBound: math.MaxUint64}

func (w workItem) empty() bool {
	return w.shard < 0 && w.lowerBound == 0 && w.upperBound == math.MaxUint64
}

// workQueue distributes work items across a fixed set of workers and detects
// work exhaustion cooperatively: when every worker is idle at once and no item
// is pending, the queue completes and every pop returns the empty sentinel.
// The rendezvous matters because a worker holding a large range may still
// re-enqueue a split item; "queue empty" alone does not mean "done".
type workQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []workItem
	waiting int
	workers int

	completed bool
	failure   error
}

func newWorkQueue(workers int) *workQueue {
	q := &workQueue{workers: workers}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push inserts a work item and wakes a waiting worker. Items pushed after
// completion are dropped: a stop was requested and nothing will consume them.
func (q *workQueue) push(item workItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.completed {
		return
	}
	q.items = append(q.items, item)
	q.cond.Signal()
}

// pop returns the next pending item, blocking while none is available. Once
// the queue completes it returns the empty sentinel, to this worker and every
// other one.
func (q *workQueue) pop() workItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.completed {
			return emptyWorkItem
		}
		if n := len(q.items); n > 0 {
			item := q.items[n-1]
			q.items = q.items[:n-1]
			return item
		}
		q.waiting++
		if q.waiting == q.workers {
			// every worker is idle and nothing is pending: no item can
			// ever be produced again
			q.waiting--
			q.completed = true
			q.cond.Broadcast()
			return emptyWorkItem
		}
		q.cond.Wait()
		q.waiting--
	}
}

// stop forces completion. Idempotent; all blocked pops return the sentinel.
func (q *workQueue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = true
	q.cond.Broadcast()
}

// setError latches the first failure and forces completion. Later calls are
// no-ops.
func (q *workQueue) setError(err error) {
	if err == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failure == nil {
		q.failure = err
	}
	q.completed = true
	q.cond.Broadcast()
}

// err returns the latched failure, nil while none was set.
func (q *workQueue) err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.failure
}
