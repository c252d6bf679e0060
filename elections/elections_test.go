package elections

import (
	"testing"

	"github.com/mezonai/confheight/ledger"
	"github.com/stretchr/testify/assert"
)

func TestConfirmBlockIsIdempotentAndFansOut(t *testing.T) {
	s := NewInProcessScheduler()
	id, ch := s.Subscribe()
	defer s.Unsubscribe(id)

	block := &ledger.Block{Hash: ledger.Hash{1}, Account: ledger.Account{2}, Height: 4}
	side := Sideband{Account: block.Account, Height: block.Height}

	s.ConfirmBlock(nil, block, side)
	assert.True(t, s.IsConfirmed(block.Hash))

	select {
	case got := <-ch:
		assert.Equal(t, side, got)
	default:
		t.Fatal("expected a fan-out notification")
	}

	// Idempotent: a second call for the same hash must not notify again.
	s.ConfirmBlock(nil, block, side)
	select {
	case <-ch:
		t.Fatal("expected no further notification for an already-confirmed block")
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := NewInProcessScheduler()
	id, ch := s.Subscribe()
	s.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)
}
