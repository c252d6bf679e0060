// Package confheight implements the confirmation-height processor: a
// pending queue, an iterative cross-account traversal engine, and a
// batched writer that together advance each account's persisted
// confirmation height as consensus finalizes blocks on its chain.
package confheight

import (
	"sync"

	"github.com/mezonai/confheight/config"
	"github.com/mezonai/confheight/elections"
	"github.com/mezonai/confheight/exception"
	"github.com/mezonai/confheight/ledger"
	"github.com/mezonai/confheight/monitoring"
	"github.com/mezonai/confheight/store"
)

// CementedFunc observes every (account, hash, height) the writer
// successfully commits.
type CementedFunc func(account ledger.Account, hash ledger.Hash, height uint64)

// Processor owns the worker goroutine, the pending queue, and the
// writer. One Processor serves one block store; it is not safe to run
// two processors against the same store concurrently; the design
// assumes a single writer thread.
type Processor struct {
	store     store.BlockStore
	elections elections.Scheduler
	metrics   *monitoring.Metrics
	config    config.Config
	pending   *PendingQueue
	writer    *Writer

	stopCh chan struct{}
	doneCh chan struct{}

	observersMu sync.Mutex
	observers   []CementedFunc
}

// NewProcessor wires a Processor against its collaborators. cfg should
// be validated (config.Config.Validate) before being passed in.
func NewProcessor(s store.BlockStore, sched elections.Scheduler, metrics *monitoring.Metrics, cfg config.Config) *Processor {
	p := &Processor{
		store:     s,
		elections: sched,
		metrics:   metrics,
		config:    cfg,
		pending:   NewPendingQueue(),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	p.writer = NewWriter(s, metrics, cfg.BatchWriteSize, p.notifyCemented)
	return p
}

// Submit enqueues hash for confirmation-height propagation. Fire and
// forget: the processor never returns errors to submitters, and
// idempotence is handled by the pending queue.
func (p *Processor) Submit(hash ledger.Hash) {
	p.pending.Submit(hash)
	p.metrics.SetPendingQueueSize(p.pending.Size())
}

// IsProcessing reports whether hash is the worker's current traversal
// target or still queued. Consulted by the elections subsystem so it
// doesn't redundantly re-submit a block the processor has itself
// scheduled a confirm_block call for.
func (p *Processor) IsProcessing(hash ledger.Hash) bool {
	return p.pending.IsProcessing(hash)
}

// PendingSize returns the count of hashes awaiting processing.
func (p *Processor) PendingSize() int {
	return p.pending.Size()
}

// OnCemented registers fn to be called for every confirmation update
// the writer commits. Registered observers run synchronously on the
// worker goroutine right after each write transaction commits, so they
// must not block.
func (p *Processor) OnCemented(fn CementedFunc) {
	p.observersMu.Lock()
	defer p.observersMu.Unlock()
	p.observers = append(p.observers, fn)
}

func (p *Processor) notifyCemented(account ledger.Account, hash ledger.Hash, height uint64) {
	p.observersMu.Lock()
	observers := append([]CementedFunc(nil), p.observers...)
	p.observersMu.Unlock()
	for _, fn := range observers {
		fn(account, hash, height)
	}
}

// Start launches the worker goroutine. A panic on the worker is
// fatal, since a wedged single-consumer loop would silently stall
// every account behind the block it was traversing.
func (p *Processor) Start() {
	exception.SafeGoWithPanic("confheight-worker", p.metrics, func() {
		defer close(p.doneCh)
		p.run()
	})
}

// Stop signals the worker to exit at its next loop boundary and
// blocks until it has done so.
func (p *Processor) Stop() {
	close(p.stopCh)
	<-p.doneCh
}

func (p *Processor) run() {
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		hash, ok := p.pending.take()
		if !ok {
			select {
			case <-p.pending.doorbell:
			case <-p.stopCh:
				return
			}
			continue
		}

		p.traverse(hash)
		p.pending.clearCurrent()
		p.metrics.SetPendingQueueSize(p.pending.Size())
	}
}
