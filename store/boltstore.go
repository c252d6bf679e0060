package store

import (
	"encoding/binary"
	"fmt"

	"github.com/mezonai/confheight/ledger"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketBlocks   = []byte("blocks")
	bucketAccounts = []byte("accounts")
)

// BoltStore is the durable BlockStore backend. bbolt's
// Begin(writable) gives exactly the explicit read/write transaction
// handles the processor needs, LMDB-shaped much like a block-lattice
// node's native transaction handle.
type BoltStore struct {
	db *bolt.DB
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bbolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketBlocks); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketAccounts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

// boltReadTx wraps a long-lived bbolt read-only transaction so it can
// be Reset (rolled back) and Renew-ed (re-begun) independently of the
// Go object identity the traversal engine holds onto across iterations.
type boltReadTx struct {
	db *bolt.DB
	tx *bolt.Tx
}

func (s *BoltStore) BeginRead() (ReadTransaction, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, err
	}
	return &boltReadTx{db: s.db, tx: tx}, nil
}

func (t *boltReadTx) Reset() error {
	if t.tx == nil {
		return nil
	}
	err := t.tx.Rollback()
	t.tx = nil
	return err
}

func (t *boltReadTx) Renew() error {
	if t.tx != nil {
		return nil
	}
	tx, err := t.db.Begin(false)
	if err != nil {
		return err
	}
	t.tx = tx
	return nil
}

type boltWriteTx struct {
	tx *bolt.Tx
}

func (s *BoltStore) BeginWrite() (WriteTransaction, error) {
	tx, err := s.db.Begin(true)
	if err != nil {
		return nil, err
	}
	return &boltWriteTx{tx: tx}, nil
}

func (t *boltWriteTx) Commit() error   { return t.tx.Commit() }
func (t *boltWriteTx) Rollback() error { return t.tx.Rollback() }

// boltTx extracts the underlying *bolt.Tx from either a read or write
// handle on this store: both serve reads identically, which is why
// BlockStore's read methods accept the generic Transaction type. The
// batched writer needs to read account info from inside its own open
// write transaction.
func (s *BoltStore) boltTx(tx Transaction) (*bolt.Tx, error) {
	switch t := tx.(type) {
	case *boltReadTx:
		if t.tx == nil {
			return nil, fmt.Errorf("store: read transaction not held")
		}
		return t.tx, nil
	case *boltWriteTx:
		if t.tx == nil {
			return nil, fmt.Errorf("store: write transaction not open")
		}
		return t.tx, nil
	default:
		return nil, fmt.Errorf("store: transaction from a different backend")
	}
}

func (s *BoltStore) Block(tx Transaction, hash ledger.Hash) (*ledger.Block, error) {
	btx, err := s.boltTx(tx)
	if err != nil {
		return nil, err
	}
	raw := btx.Bucket(bucketBlocks).Get(hash[:])
	if raw == nil {
		return nil, ErrNotFound
	}
	return decodeBlock(hash, raw)
}

func (s *BoltStore) BlockAccount(tx Transaction, hash ledger.Hash) (ledger.Account, error) {
	b, err := s.Block(tx, hash)
	if err != nil {
		return ledger.Account{}, err
	}
	return b.Account, nil
}

func (s *BoltStore) BlockAccountHeight(tx Transaction, hash ledger.Hash) (uint64, error) {
	b, err := s.Block(tx, hash)
	if err != nil {
		return 0, err
	}
	return b.Height, nil
}

func (s *BoltStore) AccountGet(tx Transaction, account ledger.Account) (ledger.AccountInfo, bool, error) {
	btx, err := s.boltTx(tx)
	if err != nil {
		return ledger.AccountInfo{}, false, err
	}
	raw := btx.Bucket(bucketAccounts).Get(account[:])
	if raw == nil {
		return ledger.AccountInfo{}, false, nil
	}
	info, err := decodeAccountInfo(raw)
	if err != nil {
		return ledger.AccountInfo{}, false, err
	}
	return info, true, nil
}

func (s *BoltStore) SourceExists(tx Transaction, hash ledger.Hash) (bool, error) {
	btx, err := s.boltTx(tx)
	if err != nil {
		return false, err
	}
	return btx.Bucket(bucketBlocks).Get(hash[:]) != nil, nil
}

func (s *BoltStore) AccountPut(tx WriteTransaction, account ledger.Account, info ledger.AccountInfo) error {
	wt, ok := tx.(*boltWriteTx)
	if !ok {
		return fmt.Errorf("store: write transaction not open")
	}
	return wt.tx.Bucket(bucketAccounts).Put(account[:], encodeAccountInfo(info))
}

// PutBlock writes a block directly in its own write transaction; used
// by callers (tests, bootstrap) to seed the chain outside the
// processor's write protocol.
func (s *BoltStore) PutBlock(b ledger.Block) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocks).Put(b.Hash[:], encodeBlock(b))
	})
}

func (s *BoltStore) DeleteBlock(hash ledger.Hash) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocks).Delete(hash[:])
	})
}

func (s *BoltStore) PutAccountInfo(account ledger.Account, info ledger.AccountInfo) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAccounts).Put(account[:], encodeAccountInfo(info))
	})
}

// Wire format: fixed-width, big-endian. Block: account|previous|height|source|link.
func encodeBlock(b ledger.Block) []byte {
	buf := make([]byte, 32+32+8+32+32)
	copy(buf[0:32], b.Account[:])
	copy(buf[32:64], b.Previous[:])
	binary.BigEndian.PutUint64(buf[64:72], b.Height)
	copy(buf[72:104], b.Source[:])
	copy(buf[104:136], b.Link[:])
	return buf
}

func decodeBlock(hash ledger.Hash, raw []byte) (*ledger.Block, error) {
	if len(raw) != 136 {
		return nil, fmt.Errorf("store: corrupt block record (%d bytes)", len(raw))
	}
	b := &ledger.Block{Hash: hash}
	copy(b.Account[:], raw[0:32])
	copy(b.Previous[:], raw[32:64])
	b.Height = binary.BigEndian.Uint64(raw[64:72])
	copy(b.Source[:], raw[72:104])
	copy(b.Link[:], raw[104:136])
	return b, nil
}

// AccountInfo: head|confirmation_height|block_count.
func encodeAccountInfo(info ledger.AccountInfo) []byte {
	buf := make([]byte, 32+8+8)
	copy(buf[0:32], info.Head[:])
	binary.BigEndian.PutUint64(buf[32:40], info.ConfirmationHeight)
	binary.BigEndian.PutUint64(buf[40:48], info.BlockCount)
	return buf
}

func decodeAccountInfo(raw []byte) (ledger.AccountInfo, error) {
	if len(raw) != 48 {
		return ledger.AccountInfo{}, fmt.Errorf("store: corrupt account record (%d bytes)", len(raw))
	}
	var info ledger.AccountInfo
	copy(info.Head[:], raw[0:32])
	info.ConfirmationHeight = binary.BigEndian.Uint64(raw[32:40])
	info.BlockCount = binary.BigEndian.Uint64(raw[40:48])
	return info, nil
}
