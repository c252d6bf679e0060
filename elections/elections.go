// Package elections defines the confirm_block collaborator the
// traversal engine calls into during chain descent, and a reference
// in-process scheduler usable by tests and small deployments. The
// real vote-counting election subsystem that decides which block to
// submit is out of scope here.
package elections

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mezonai/confheight/ledger"
	"github.com/mezonai/confheight/logx"
	"github.com/mezonai/confheight/store"
)

// Sideband carries the context the original nano block_sideband gives
// a confirm_block notification: which account and height the block
// sits at, and the source it references, if any.
type Sideband struct {
	Account ledger.Account
	Height  uint64
	Source  ledger.Hash
}

// Scheduler is the traversal engine's confirm_block collaborator. It
// must be idempotent and safe to call from the worker goroutine while
// concurrently operating on other blocks from elsewhere.
type Scheduler interface {
	ConfirmBlock(tx store.ReadTransaction, block *ledger.Block, side Sideband)
}

// SubscriberID identifies a feed subscribed to confirmation
// notifications, e.g. an RPC/websocket layer outside this repo.
type SubscriberID string

// InProcessScheduler is a reference Scheduler: it idempotently records
// every confirmed block and fans the notification out to subscribers
// with a best-effort, non-blocking channel send per subscriber.
type InProcessScheduler struct {
	mu          sync.Mutex
	confirmed   map[ledger.Hash]Sideband
	subscribers map[SubscriberID]chan Sideband
}

func NewInProcessScheduler() *InProcessScheduler {
	return &InProcessScheduler{
		confirmed:   make(map[ledger.Hash]Sideband),
		subscribers: make(map[SubscriberID]chan Sideband),
	}
}

func (s *InProcessScheduler) ConfirmBlock(tx store.ReadTransaction, block *ledger.Block, side Sideband) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, already := s.confirmed[block.Hash]; already {
		return
	}
	s.confirmed[block.Hash] = side

	for id, ch := range s.subscribers {
		select {
		case ch <- side:
		default:
			logx.Warn("ELECTIONS", fmt.Sprintf("subscriber channel full, dropping notification: subscriber_id=%s", id))
		}
	}
}

// Subscribe registers a feed for confirmation notifications.
func (s *InProcessScheduler) Subscribe() (SubscriberID, <-chan Sideband) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := SubscriberID(uuid.NewString())
	ch := make(chan Sideband, 64)
	s.subscribers[id] = ch
	return id, ch
}

func (s *InProcessScheduler) Unsubscribe(id SubscriberID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// IsConfirmed reports whether ConfirmBlock has already been called
// for hash. Used by tests to assert a block was recorded.
func (s *InProcessScheduler) IsConfirmed(hash ledger.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.confirmed[hash]
	return ok
}
