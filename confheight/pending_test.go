package confheight

import (
	"testing"
	"time"

	"github.com/mezonai/confheight/ledger"
	"github.com/stretchr/testify/assert"
)

func TestPendingQueueSubmitIsIdempotent(t *testing.T) {
	q := NewPendingQueue()
	h := ledger.Hash{1}

	q.Submit(h)
	q.Submit(h)
	assert.Equal(t, 1, q.Size())

	hash, ok := q.take()
	assert.True(t, ok)
	assert.Equal(t, h, hash)
	assert.Equal(t, h, q.Current())

	// Submitting the hash currently being processed is also a no-op.
	q.Submit(h)
	assert.Equal(t, 0, q.Size())
	assert.True(t, q.IsProcessing(h))
}

func TestPendingQueueTakeOnEmptyReturnsFalse(t *testing.T) {
	q := NewPendingQueue()
	_, ok := q.take()
	assert.False(t, ok)
}

func TestPendingQueueClearCurrent(t *testing.T) {
	q := NewPendingQueue()
	h := ledger.Hash{2}
	q.Submit(h)
	q.take()
	assert.True(t, q.IsProcessing(h))

	q.clearCurrent()
	assert.False(t, q.IsProcessing(h))
	assert.Equal(t, ledger.Hash{}, q.Current())
}

func TestPendingQueueRingsDoorbellOnSubmit(t *testing.T) {
	q := NewPendingQueue()
	q.Submit(ledger.Hash{3})

	select {
	case <-q.doorbell:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected doorbell to ring after Submit")
	}
}

func TestPendingQueueCoalescesBurstsIntoOneWakeup(t *testing.T) {
	q := NewPendingQueue()
	q.Submit(ledger.Hash{4})
	q.Submit(ledger.Hash{5})
	q.Submit(ledger.Hash{6})

	select {
	case <-q.doorbell:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected at least one doorbell ring")
	}
	select {
	case <-q.doorbell:
		t.Fatal("doorbell should have coalesced the burst into a single ring")
	default:
	}
	assert.Equal(t, 3, q.Size())
}
