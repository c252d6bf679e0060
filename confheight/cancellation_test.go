package confheight

import (
	"sync"
	"testing"

	"github.com/mezonai/confheight/config"
	"github.com/mezonai/confheight/elections"
	"github.com/mezonai/confheight/ledger"
	"github.com/mezonai/confheight/monitoring"
	"github.com/mezonai/confheight/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildReceiveChain seeds n accounts, each holding a single height-1
// block. Account i's block receives from account i+1's block, except
// the last account, whose block is a plain open with no source. This
// is the simplest topology whose traversal produces one buffered
// update record per account rather than one for an entire chain: a
// long single-account, no-receive chain collapses to a single record
// (see write_pending in the original source), so it can never be
// interrupted mid-write. A chain of receives spread across many
// accounts periodically crosses batch_write_size instead.
func buildReceiveChain(s *store.MemStore, n int) []ledger.Account {
	accounts := make([]ledger.Account, n)
	for i := 0; i < n; i++ {
		accounts[i] = account(byte(i + 1))
	}
	for i := 0; i < n; i++ {
		b := ledger.Block{Hash: blockHash(accounts[i], 1), Account: accounts[i], Height: 1}
		if i+1 < n {
			b.Source = blockHash(accounts[i+1], 1)
		}
		s.PutBlock(b)
		s.PutAccountInfo(accounts[i], ledger.AccountInfo{Head: b.Hash, ConfirmationHeight: 0, BlockCount: 1})
	}
	return accounts
}

// TestTraverseCancellationStopsAtLastCommittedBatch exercises
// cancellation signalled right after the first batch write lands: the
// worker must end up having committed exactly that batch, never more,
// and never a partial/inconsistent record.
func TestTraverseCancellationStopsAtLastCommittedBatch(t *testing.T) {
	const numAccounts = 30
	const batchWriteSize = 5

	s := store.NewMemStore()
	accounts := buildReceiveChain(s, numAccounts)

	cfg := config.Defaults()
	cfg.BatchWriteSize = batchWriteSize
	cfg.BatchReadSize = 1000
	metrics := monitoring.NewWithRegisterer(prometheus.NewRegistry())
	sched := elections.NewInProcessScheduler()
	p := NewProcessor(s, sched, metrics, cfg)

	var stopOnce sync.Once
	var cementedCount int
	p.OnCemented(func(_ ledger.Account, _ ledger.Hash, _ uint64) {
		cementedCount++
		stopOnce.Do(func() { close(p.stopCh) })
	})

	p.traverse(blockHash(accounts[0], 1))

	confirmed := 0
	for _, a := range accounts {
		height, ok := readConfirmationHeight(t, s, a)
		require.True(t, ok)
		if height == 1 {
			confirmed++
		} else {
			assert.Equal(t, uint64(0), height)
		}
	}

	assert.Equal(t, batchWriteSize, confirmed, "exactly the first committed batch should be confirmed")
	assert.Equal(t, batchWriteSize, cementedCount)
}
