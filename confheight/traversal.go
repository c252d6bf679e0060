package confheight

import (
	"fmt"
	"time"

	"github.com/mezonai/confheight/elections"
	"github.com/mezonai/confheight/ledger"
	"github.com/mezonai/confheight/logx"
	"github.com/mezonai/confheight/store"
)

// update is a confirmation update record: a proposed new confirmation
// height for account, the block at that height, and the delta over
// the persisted height at write time.
type update struct {
	account            ledger.Account
	hash               ledger.Hash
	height             uint64
	numBlocksConfirmed uint64
}

// receiveStackEntry is one entry of the receive-source stack: the
// receive-side update record waiting on its source's confirmation,
// paired with the source hash to descend into next.
type receiveStackEntry struct {
	receive    *update
	sourceHash ledger.Hash
}

// accountMemo is the per-traversal memo keyed by account:
// confirmedHeight is the height already persisted or buffered for
// write within this traversal; iteratedHeight is how far up the chain
// this traversal has already walked, which may run ahead of
// confirmedHeight while a receive's source remains unconfirmed.
type accountMemo struct {
	confirmedHeight uint64
	iteratedHeight  uint64
}

// traversal holds the state owned exclusively by one traverse() call:
// the receive-source stack, the per-account memo, the update buffer,
// and the read transaction held across its iterations. Never shared
// across goroutines: the processor has a single worker.
type traversal struct {
	p      *Processor
	readTx store.ReadTransaction

	stack        []receiveStackEntry
	memo         map[ledger.Account]*accountMemo
	buffer       []*update
	totalPending uint64

	readSteps int
}

// traverse walks the cross-account dependency graph rooted at hash,
// buffering update records and flushing them through the batched
// writer as the buffer or the traversal's natural end demands. It
// never recurses: the receive-source stack is the only
// structure whose depth tracks the graph's depth.
func (p *Processor) traverse(hash ledger.Hash) {
	start := time.Now()
	defer func() { p.metrics.ObserveTraversalDuration(time.Since(start)) }()

	readTx, err := p.store.BeginRead()
	if err != nil {
		logx.Error("CONFHEIGHT", fmt.Sprintf("begin read transaction: %v", err))
		return
	}

	t := &traversal{
		p:      p,
		readTx: readTx,
		memo:   make(map[ledger.Account]*accountMemo),
	}
	defer func() {
		if t.readTx != nil {
			_ = t.readTx.Reset()
		}
	}()

	current := hash
	var pendingReceive *update

	for {
		// Step 1.
		if len(t.stack) > 0 {
			top := t.stack[len(t.stack)-1]
			current = top.sourceHash
			pendingReceive = top.receive
		} else if pendingReceive != nil {
			current = hash
			pendingReceive = nil
		}

		// Step 2.
		block, err := p.store.Block(t.readTx, current)
		if err != nil {
			logx.Error("CONFHEIGHT", fmt.Sprintf("load block during traversal: hash=%s err=%v", current, err))
			t.stack = nil
			break
		}
		account := block.Account
		info, _, err := p.store.AccountGet(t.readTx, account)
		if err != nil {
			logx.Error("CONFHEIGHT", fmt.Sprintf("load account during traversal: account=%s err=%v", account, err))
			t.stack = nil
			break
		}

		confirmationHeight := info.ConfirmationHeight
		iteratedHeight := confirmationHeight
		if m, ok := t.memo[account]; ok {
			if m.confirmedHeight > confirmationHeight {
				confirmationHeight = m.confirmedHeight
				iteratedHeight = confirmationHeight
			}
			if m.iteratedHeight > iteratedHeight {
				iteratedHeight = m.iteratedHeight
			}
		}

		// Step 3.
		stackLenBefore := len(t.stack)
		if block.Height > iteratedHeight {
			t.collect(account, current, iteratedHeight, block.Height)
		}
		pushed := len(t.stack) > stackLenBefore

		// Step 4.
		if err := t.readTx.Reset(); err != nil {
			logx.Error("CONFHEIGHT", fmt.Sprintf("reset read transaction: %v", err))
			t.stack = nil
			break
		}

		// Steps 5/6.
		if !pushed {
			if block.Height > confirmationHeight {
				t.appendUpdate(account, current, block.Height, block.Height-confirmationHeight)
			}
			if pendingReceive != nil {
				prior := t.priorConfirmedFor(pendingReceive.account)
				pendingReceive.numBlocksConfirmed = pendingReceive.height - prior
				t.appendUpdate(pendingReceive.account, pendingReceive.hash, pendingReceive.height, pendingReceive.numBlocksConfirmed)
			}
			if len(t.stack) > 0 {
				t.stack = t.stack[:len(t.stack)-1]
			}
		} else {
			t.raiseIteratedHeight(account, block.Height, confirmationHeight)
		}

		// Step 7.
		if len(t.buffer) > 0 && (len(t.buffer) >= p.config.BatchWriteSize || len(t.stack) == 0) {
			if err := p.writer.WritePending(&t.buffer, &t.totalPending); err != nil {
				t.stack = nil
				break
			}
		}

		// Step 8.
		select {
		case <-p.stopCh:
			t.stack = nil
			return
		default:
		}

		if len(t.stack) == 0 && current == hash {
			break
		}

		// Step 9.
		if err := t.readTx.Renew(); err != nil {
			logx.Error("CONFHEIGHT", fmt.Sprintf("renew read transaction: %v", err))
			t.stack = nil
			break
		}
	}
}

// collect walks up to (blockHeight - iteratedHeight) predecessors
// starting at startHash, notifying elections of each newly-visited
// block and pushing a receive-source stack entry for every receive
// whose source is present in the store (whether or not that source is
// already confirmed).
func (t *traversal) collect(account ledger.Account, startHash ledger.Hash, iteratedHeight, blockHeight uint64) {
	steps := blockHeight - iteratedHeight
	if steps > t.p.config.OversizedChainLogThreshold {
		logx.Warn("CONFHEIGHT", fmt.Sprintf("oversized chain walk: account=%s steps=%d", account, steps))
	}

	current := startHash
	for i := uint64(0); i < steps; i++ {
		block, err := t.p.store.Block(t.readTx, current)
		if err != nil {
			logx.Error("CONFHEIGHT", fmt.Sprintf("collect: load block: hash=%s err=%v", current, err))
			return
		}

		if !t.p.pending.IsProcessing(block.Hash) {
			t.p.elections.ConfirmBlock(t.readTx, block, elections.Sideband{
				Account: block.Account,
				Height:  block.Height,
				Source:  block.ComputedSource(),
			})
		}

		source := block.ComputedSource()
		if !source.IsZero() && source != ledger.EpochLink {
			exists, err := t.p.store.SourceExists(t.readTx, source)
			if err != nil {
				logx.Error("CONFHEIGHT", fmt.Sprintf("collect: source lookup: hash=%s err=%v", source, err))
				return
			}
			if exists {
				if len(t.stack) > 0 {
					top := t.stack[len(t.stack)-1]
					top.receive.numBlocksConfirmed = top.receive.height - block.Height
				}
				t.stack = append(t.stack, receiveStackEntry{
					receive: &update{
						account: account,
						hash:    block.Hash,
						height:  block.Height,
					},
					sourceHash: source,
				})
			}
		}

		if block.Previous.IsZero() {
			break
		}
		current = block.Previous

		t.readSteps++
		if t.readSteps >= t.p.config.BatchReadSize {
			if err := t.readTx.Reset(); err != nil {
				logx.Error("CONFHEIGHT", fmt.Sprintf("collect: reset read tx: %v", err))
				return
			}
			if err := t.readTx.Renew(); err != nil {
				logx.Error("CONFHEIGHT", fmt.Sprintf("collect: renew read tx: %v", err))
				return
			}
			t.readSteps = 0
		}
	}

	if len(t.stack) > 0 {
		top := t.stack[len(t.stack)-1]
		top.receive.numBlocksConfirmed = top.receive.height - iteratedHeight
	}
}

func (t *traversal) appendUpdate(account ledger.Account, hash ledger.Hash, height, numBlocksConfirmed uint64) {
	t.buffer = append(t.buffer, &update{
		account:            account,
		hash:               hash,
		height:             height,
		numBlocksConfirmed: numBlocksConfirmed,
	})
	t.totalPending += numBlocksConfirmed
	t.mergeMemo(account, height)
}

// mergeMemo raises both the confirmed and iterated heights for
// account to height, merging with any prior memo entry rather than
// overwriting it.
func (t *traversal) mergeMemo(account ledger.Account, height uint64) {
	m, ok := t.memo[account]
	if !ok {
		m = &accountMemo{}
		t.memo[account] = m
	}
	if height > m.confirmedHeight {
		m.confirmedHeight = height
	}
	if height > m.iteratedHeight {
		m.iteratedHeight = height
	}
}

// raiseIteratedHeight implements step 6: only the iterated height
// moves; confirmedHeight seeds from the persisted value when the memo
// entry doesn't exist yet.
func (t *traversal) raiseIteratedHeight(account ledger.Account, blockHeight, confirmationHeight uint64) {
	m, ok := t.memo[account]
	if !ok {
		m = &accountMemo{confirmedHeight: confirmationHeight}
		t.memo[account] = m
	}
	if blockHeight > m.iteratedHeight {
		m.iteratedHeight = blockHeight
	}
}

// priorConfirmedFor reads the memo's confirmed height for account. By
// the time a pending receive is finalized, its account's memo entry
// always exists: it was created when the receive was pushed (step 6
// always creates/updates the memo before the entry can be popped).
func (t *traversal) priorConfirmedFor(account ledger.Account) uint64 {
	if m, ok := t.memo[account]; ok {
		return m.confirmedHeight
	}
	return 0
}
