package dump

import (
	"fmt"
	"sync"
)

// batchRegistry retains issued batches until the consumer retires them. It
// has its own lock, deliberately distinct from the queue's and the channel's:
// retiring a batch must never contend with busy producers.
type batchRegistry struct {
	mu      sync.Mutex
	batches map[uint64]*Batch
}

func newBatchRegistry() *batchRegistry {
	return &batchRegistry{batches: make(map[uint64]*Batch)}
}

func (r *batchRegistry) add(id uint64, b *Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[id] = b
}

// remove retires a previously issued batch id. Retiring an unknown or
// already-retired id is rejected: it indicates a lifecycle bug in the caller.
func (r *batchRegistry) remove(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[id]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidBatchID, id)
	}
	delete(r.batches, id)
	return nil
}

func (r *batchRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}
