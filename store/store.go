// Package store defines the block-store contract the confirmation
// height processor consumes, and two concrete backends: a
// bbolt-backed durable store (BoltStore) and an in-memory store
// (MemStore) for tests and embedding. The processor never sees
// leveldb/rocksdb/bbolt directly, only this interface.
package store

import (
	"errors"

	"github.com/mezonai/confheight/ledger"
)

// ErrNotFound is returned by lookups with no matching record.
var ErrNotFound = errors.New("store: not found")

// Transaction is the common capability both a ReadTransaction and a
// WriteTransaction offer: every read-only lookup accepts either, since
// the batched writer reads an account's current info from inside the
// very write transaction that is about to update it.
type Transaction interface{}

// ReadTransaction supports a reset/renew lifecycle: a read
// transaction is held across exactly one traversal iteration, reset
// before any write-transaction path, and renewed before the next
// iteration.
type ReadTransaction interface {
	Transaction
	// Reset releases the transaction's snapshot without closing the
	// handle; Renew must be called before further reads.
	Reset() error
	// Renew reacquires a fresh snapshot on a previously Reset handle.
	Renew() error
}

// WriteTransaction is committed by the batched writer after each
// bounded batch of account updates.
type WriteTransaction interface {
	Transaction
	Commit() error
	// Rollback discards the transaction; used on the batched writer's
	// error paths so a partial batch never lingers open.
	Rollback() error
}

// BlockStore is the read/write contract the processor depends on.
type BlockStore interface {
	BeginRead() (ReadTransaction, error)
	BeginWrite() (WriteTransaction, error)

	// Block looks up a block by hash. Returns ErrNotFound if absent.
	Block(tx Transaction, hash ledger.Hash) (*ledger.Block, error)
	// BlockAccount returns the account owning hash.
	BlockAccount(tx Transaction, hash ledger.Hash) (ledger.Account, error)
	// BlockAccountHeight returns the height of hash on its account's chain.
	BlockAccountHeight(tx Transaction, hash ledger.Hash) (uint64, error)
	// AccountGet returns an account's persisted info, and whether it exists.
	AccountGet(tx Transaction, account ledger.Account) (ledger.AccountInfo, bool, error)
	// SourceExists reports whether hash exists in the store at all
	// (used to check a receive's source block is present).
	SourceExists(tx Transaction, hash ledger.Hash) (bool, error)

	// AccountPut is the store's sole mutation: it persists a new
	// AccountInfo for account within an open write transaction.
	AccountPut(tx WriteTransaction, account ledger.Account, info ledger.AccountInfo) error

	Close() error
}
