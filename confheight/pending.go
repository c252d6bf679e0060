package confheight

import (
	"sync"

	"github.com/mezonai/confheight/ledger"
)

// PendingQueue is the process-wide holding area of block hashes
// awaiting confirmation-height propagation, plus the hash currently
// being traversed. It is a set, not a queue: no ordering is offered
// between submissions, and duplicate submissions are idempotent.
//
// The wakeup is a capacity-1 doorbell channel rather than a condition
// variable: Submit performs a non-blocking send, and the worker
// selects on it. A burst of submissions coalesces into a single
// wakeup, same as a single-slot condition variable broadcast would.
type PendingQueue struct {
	mu       sync.Mutex
	pending  map[ledger.Hash]struct{}
	current  ledger.Hash
	doorbell chan struct{}
}

func NewPendingQueue() *PendingQueue {
	return &PendingQueue{
		pending:  make(map[ledger.Hash]struct{}),
		doorbell: make(chan struct{}, 1),
	}
}

// Submit inserts hash into the pending set and wakes the worker.
// Idempotent: submitting a hash already pending or currently being
// processed is a no-op.
func (q *PendingQueue) Submit(hash ledger.Hash) {
	q.mu.Lock()
	if hash == q.current {
		q.mu.Unlock()
		return
	}
	if _, already := q.pending[hash]; already {
		q.mu.Unlock()
		return
	}
	q.pending[hash] = struct{}{}
	q.mu.Unlock()
	q.ring()
}

func (q *PendingQueue) ring() {
	select {
	case q.doorbell <- struct{}{}:
	default:
	}
}

// Size returns the count in the pending set, excluding current().
func (q *PendingQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// IsProcessing reports whether hash equals current() or is present in
// the pending set.
func (q *PendingQueue) IsProcessing(hash ledger.Hash) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if hash == q.current {
		return true
	}
	_, ok := q.pending[hash]
	return ok
}

// Current is a snapshot read of the hash the worker is traversing;
// the zero hash means idle.
func (q *PendingQueue) Current() ledger.Hash {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// take removes an arbitrary hash from the pending set and assigns it
// to current. ok is false when the set was empty.
func (q *PendingQueue) take() (ledger.Hash, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for h := range q.pending {
		delete(q.pending, h)
		q.current = h
		return h, true
	}
	return ledger.Hash{}, false
}

// clearCurrent resets current to the zero hash once a traversal
// finishes.
func (q *PendingQueue) clearCurrent() {
	q.mu.Lock()
	q.current = ledger.Hash{}
	q.mu.Unlock()
}
