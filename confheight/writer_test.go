package confheight

import (
	"errors"
	"testing"

	"github.com/mezonai/confheight/ledger"
	"github.com/mezonai/confheight/monitoring"
	"github.com/mezonai/confheight/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePendingCommitsAcrossBatches(t *testing.T) {
	s := store.NewMemStore()
	a := account(1)
	hashes := chain(s, a, 5)
	b := account(2)
	bHashes := chain(s, b, 2)
	c := account(3)
	cHashes := chain(s, c, 1)

	metrics := monitoring.NewWithRegisterer(prometheus.NewRegistry())
	var cemented []uint64
	w := NewWriter(s, metrics, 2, func(_ ledger.Account, _ ledger.Hash, height uint64) {
		cemented = append(cemented, height)
	})

	// Three records with batchWriteSize 2: a and b share the first write
	// transaction, c lands in a second one.
	buffer := []*update{
		{account: a, hash: hashes[4], height: 5, numBlocksConfirmed: 5},
		{account: b, hash: bHashes[1], height: 2, numBlocksConfirmed: 2},
		{account: c, hash: cHashes[0], height: 1, numBlocksConfirmed: 1},
	}
	total := uint64(8)

	require.NoError(t, w.WritePending(&buffer, &total))
	assert.Equal(t, uint64(0), total)
	assert.Empty(t, buffer)
	assert.Equal(t, []uint64{5, 2, 1}, cemented)

	info, ok, err := s.AccountGet(mustReadTx(t, s), a)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(5), info.ConfirmationHeight)

	cHeight, ok := readConfirmationHeight(t, s, c)
	require.True(t, ok)
	assert.Equal(t, uint64(1), cHeight)
}

func TestWritePendingInvalidBlockAbortsAndIncrementsMetric(t *testing.T) {
	s := store.NewMemStore()
	a := account(1)
	hashes := chain(s, a, 5)

	// The block the buffered record points to vanishes between
	// traversal finishing its walk and the writer's own existence
	// check: a store inconsistency discovered at write time.
	s.DeleteBlock(hashes[4])

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewWithRegisterer(reg)
	w := NewWriter(s, metrics, 10, nil)

	buffer := []*update{{account: a, hash: hashes[4], height: 5, numBlocksConfirmed: 5}}
	total := uint64(5)

	err := w.WritePending(&buffer, &total)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidBlock))

	info, _, getErr := s.AccountGet(mustReadTx(t, s), a)
	require.NoError(t, getErr)
	assert.Equal(t, uint64(0), info.ConfirmationHeight, "no partial update should persist past the missing-block record")

	families, gatherErr := reg.Gather()
	require.NoError(t, gatherErr)
	var invalidBlocks float64
	for _, mf := range families {
		if mf.GetName() != "confirmation_height_events_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "detail" && lp.GetValue() == "invalid_block" {
					invalidBlocks += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, float64(1), invalidBlocks)
}

func TestWritePendingPanicsOnDeltaMismatch(t *testing.T) {
	s := store.NewMemStore()
	a := account(1)
	chain(s, a, 5)

	metrics := monitoring.NewWithRegisterer(prometheus.NewRegistry())
	w := NewWriter(s, metrics, 10, nil)

	buffer := []*update{{account: a, hash: blockHash(a, 5), height: 5, numBlocksConfirmed: 99}}
	total := uint64(99)

	assert.Panics(t, func() {
		_ = w.WritePending(&buffer, &total)
	})
}

func TestWritePendingPanicsWhenAccountMissing(t *testing.T) {
	s := store.NewMemStore()
	a := account(1)
	h := blockHash(a, 1)
	s.PutBlock(ledger.Block{Hash: h, Account: a, Height: 1})
	// Deliberately never seed account info for a.

	metrics := monitoring.NewWithRegisterer(prometheus.NewRegistry())
	w := NewWriter(s, metrics, 10, nil)

	buffer := []*update{{account: a, hash: h, height: 1, numBlocksConfirmed: 1}}
	total := uint64(1)

	assert.Panics(t, func() {
		_ = w.WritePending(&buffer, &total)
	})
}
