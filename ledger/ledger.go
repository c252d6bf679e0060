// Package ledger defines the external data model consumed by the
// confirmation-height processor: accounts, their linear block chains,
// and the per-account confirmation height the processor advances.
package ledger

import (
	"encoding/hex"
	"fmt"
)

// Hash identifies a block. Account addresses live in the same 256-bit
// space: an account's address is the hash of its first (open) block.
type Hash [32]byte

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// HashFromHex parses a hex-encoded hash, for config/test fixtures.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("ledger: want %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Account is a ledger identity owning a single linear chain of blocks.
type Account = Hash

// EpochLink is the sentinel value used in the Link field of
// protocol-maintenance ("epoch") blocks. A block whose computed source
// equals EpochLink is not treated as a real receive.
var EpochLink = Hash{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Block is a single entry on an account's chain. Height is the
// 1-indexed position of this block on Account's chain; Previous is
// zero for the chain's first (open) block.
//
// Source and Link both carry receive-source information: state blocks
// encode the referenced source block hash in Link when Source itself
// is zero (see collect() in package confheight).
type Block struct {
	Hash     Hash
	Account  Account
	Previous Hash
	Height   uint64
	Source   Hash
	Link     Hash
}

// ComputedSource returns the block's effective source hash: the
// explicit Source field, falling back to Link for state-block-style
// receives that only populate Link.
func (b *Block) ComputedSource() Hash {
	if !b.Source.IsZero() {
		return b.Source
	}
	return b.Link
}

// AccountInfo is the persisted, per-account record the processor
// reads and advances. ConfirmationHeight must never decrease and must
// always equal the height of some block on this account's chain, or 0.
type AccountInfo struct {
	Head               Hash
	ConfirmationHeight uint64
	BlockCount         uint64
}
