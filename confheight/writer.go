package confheight

import (
	"errors"
	"fmt"

	"github.com/mezonai/confheight/ledger"
	"github.com/mezonai/confheight/logx"
	"github.com/mezonai/confheight/monitoring"
	"github.com/mezonai/confheight/store"
)

// ErrInvalidBlock is a recoverable error: a buffered update
// references a block no longer present in the store at write time.
// The caller aborts the current submission; it is not re-queued, but
// other pending submissions still proceed.
var ErrInvalidBlock = errors.New("confheight: block referenced by confirmation update no longer exists")

// Writer drains a traversal's update buffer into the block store in
// bounded write transactions, amortizing write-lock hold time across
// batches of accounts.
type Writer struct {
	store          store.BlockStore
	metrics        *monitoring.Metrics
	batchWriteSize int
	onCemented     func(account ledger.Account, hash ledger.Hash, height uint64)
}

func NewWriter(s store.BlockStore, metrics *monitoring.Metrics, batchWriteSize int, onCemented func(ledger.Account, ledger.Hash, uint64)) *Writer {
	return &Writer{
		store:          s,
		metrics:        metrics,
		batchWriteSize: batchWriteSize,
		onCemented:     onCemented,
	}
}

// WritePending drains buffer, decrementing totalPending as records are
// consumed, until totalPending reaches zero. Each write transaction
// touches at most batchWriteSize records before committing and
// starting the next.
func (w *Writer) WritePending(buffer *[]*update, totalPending *uint64) error {
	for *totalPending > 0 {
		wtx, err := w.store.BeginWrite()
		if err != nil {
			return fmt.Errorf("confheight: begin write transaction: %w", err)
		}

		var blocksInTx int
		var cemented []*update
		touched := 0
		for len(*buffer) > 0 && touched < w.batchWriteSize {
			u := (*buffer)[0]
			*buffer = (*buffer)[1:]
			touched++

			info, present, err := w.store.AccountGet(wtx, u.account)
			if err != nil {
				_ = wtx.Rollback()
				return fmt.Errorf("confheight: load account %s: %w", u.account, err)
			}
			if !present {
				_ = wtx.Rollback()
				panic(fmt.Sprintf("confheight: account %s missing from store, store corruption", u.account))
			}

			if u.height > info.ConfirmationHeight {
				exists, err := w.store.SourceExists(wtx, u.hash)
				if err != nil {
					_ = wtx.Rollback()
					return fmt.Errorf("confheight: check block %s exists: %w", u.hash, err)
				}
				if !exists {
					_ = wtx.Rollback()
					logx.Error("CONFHEIGHT", fmt.Sprintf("block referenced by confirmation update no longer exists: hash=%s account=%s", u.hash, u.account))
					w.metrics.Inc("confirmation_height", "invalid_block")
					*totalPending -= u.numBlocksConfirmed
					return ErrInvalidBlock
				}

				wantDelta := u.height - info.ConfirmationHeight
				if u.numBlocksConfirmed != wantDelta {
					panic(fmt.Sprintf("confheight: confirmation delta mismatch for %s: claimed %d, computed %d", u.account, u.numBlocksConfirmed, wantDelta))
				}

				info.ConfirmationHeight = u.height
				if err := w.store.AccountPut(wtx, u.account, info); err != nil {
					_ = wtx.Rollback()
					return fmt.Errorf("confheight: persist account %s: %w", u.account, err)
				}

				w.metrics.Add("confirmation_height", "blocks_confirmed", "in", float64(wantDelta))
				blocksInTx += int(wantDelta)
				cemented = append(cemented, u)
			}

			*totalPending -= u.numBlocksConfirmed
		}

		if err := wtx.Commit(); err != nil {
			return fmt.Errorf("confheight: commit write transaction: %w", err)
		}
		if blocksInTx > 0 {
			w.metrics.ObserveWriteBatchSize(blocksInTx)
		}
		if w.onCemented != nil {
			for _, u := range cemented {
				w.onCemented(u.account, u.hash, u.height)
			}
		}
	}
	return nil
}
