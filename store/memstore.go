package store

import (
	"errors"
	"sync"

	"github.com/mezonai/confheight/ledger"
)

// MemStore is an in-memory BlockStore, used by tests and by small
// embedded deployments that don't need bbolt's durability.
type MemStore struct {
	mu       sync.RWMutex
	blocks   map[ledger.Hash]ledger.Block
	accounts map[ledger.Account]ledger.AccountInfo
}

func NewMemStore() *MemStore {
	return &MemStore{
		blocks:   make(map[ledger.Hash]ledger.Block),
		accounts: make(map[ledger.Account]ledger.AccountInfo),
	}
}

// PutBlock seeds or overwrites a block directly, bypassing the
// transaction protocol. For fixture setup only.
func (s *MemStore) PutBlock(b ledger.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[b.Hash] = b
}

// DeleteBlock removes a block directly; used to simulate store
// corruption for the "missing block at write time" scenario.
func (s *MemStore) DeleteBlock(hash ledger.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks, hash)
}

// PutAccountInfo seeds or overwrites persisted account info directly.
func (s *MemStore) PutAccountInfo(account ledger.Account, info ledger.AccountInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account] = info
}

func (s *MemStore) Close() error { return nil }

type memReadTx struct {
	store *MemStore
	held  bool
}

func (s *MemStore) BeginRead() (ReadTransaction, error) {
	s.mu.RLock()
	return &memReadTx{store: s, held: true}, nil
}

func (t *memReadTx) Reset() error {
	if t.held {
		t.store.mu.RUnlock()
		t.held = false
	}
	return nil
}

func (t *memReadTx) Renew() error {
	if !t.held {
		t.store.mu.RLock()
		t.held = true
	}
	return nil
}

type memWriteTx struct {
	store *MemStore
	puts  map[ledger.Account]ledger.AccountInfo
	open  bool
}

func (s *MemStore) BeginWrite() (WriteTransaction, error) {
	s.mu.Lock()
	return &memWriteTx{store: s, puts: make(map[ledger.Account]ledger.AccountInfo), open: true}, nil
}

func (t *memWriteTx) Commit() error {
	if !t.open {
		return errors.New("store: transaction already closed")
	}
	for acc, info := range t.puts {
		t.store.accounts[acc] = info
	}
	t.open = false
	t.store.mu.Unlock()
	return nil
}

func (t *memWriteTx) Rollback() error {
	if !t.open {
		return nil
	}
	t.open = false
	t.store.mu.Unlock()
	return nil
}

// blockLookup returns the store's block map if tx is a live read or
// write transaction on this store.
func (s *MemStore) blockLookup(tx Transaction) (map[ledger.Hash]ledger.Block, error) {
	switch t := tx.(type) {
	case *memReadTx:
		if !t.held {
			return nil, errors.New("store: read transaction not held")
		}
	case *memWriteTx:
		if !t.open {
			return nil, errors.New("store: write transaction not open")
		}
	default:
		return nil, errors.New("store: transaction from a different backend")
	}
	return s.blocks, nil
}

func (s *MemStore) Block(tx Transaction, hash ledger.Hash) (*ledger.Block, error) {
	blocks, err := s.blockLookup(tx)
	if err != nil {
		return nil, err
	}
	b, ok := blocks[hash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := b
	return &cp, nil
}

func (s *MemStore) BlockAccount(tx Transaction, hash ledger.Hash) (ledger.Account, error) {
	b, err := s.Block(tx, hash)
	if err != nil {
		return ledger.Account{}, err
	}
	return b.Account, nil
}

func (s *MemStore) BlockAccountHeight(tx Transaction, hash ledger.Hash) (uint64, error) {
	b, err := s.Block(tx, hash)
	if err != nil {
		return 0, err
	}
	return b.Height, nil
}

func (s *MemStore) AccountGet(tx Transaction, account ledger.Account) (ledger.AccountInfo, bool, error) {
	switch t := tx.(type) {
	case *memReadTx:
		if !t.held {
			return ledger.AccountInfo{}, false, errors.New("store: read transaction not held")
		}
		info, ok := s.accounts[account]
		return info, ok, nil
	case *memWriteTx:
		if !t.open {
			return ledger.AccountInfo{}, false, errors.New("store: write transaction not open")
		}
		if info, ok := t.puts[account]; ok {
			return info, true, nil
		}
		info, ok := s.accounts[account]
		return info, ok, nil
	default:
		return ledger.AccountInfo{}, false, errors.New("store: transaction from a different backend")
	}
}

func (s *MemStore) SourceExists(tx Transaction, hash ledger.Hash) (bool, error) {
	blocks, err := s.blockLookup(tx)
	if err != nil {
		return false, err
	}
	_, ok := blocks[hash]
	return ok, nil
}

func (s *MemStore) AccountPut(tx WriteTransaction, account ledger.Account, info ledger.AccountInfo) error {
	wt, ok := tx.(*memWriteTx)
	if !ok || !wt.open {
		return errors.New("store: write transaction not open")
	}
	wt.puts[account] = info
	return nil
}
