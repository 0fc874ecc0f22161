package chain

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/felipemeriga/artemis-network/internal/nodeerr"
)

var log = logrus.WithField("component", "chain")

// Keeper holds the in-memory chain under a single-writer/many-reader lock
// and the fixed PoW difficulty, as specified for the chain keeper.
type Keeper struct {
	mu         sync.RWMutex
	blocks     []Block
	difficulty int
}

// NewKeeper builds a keeper seeded with the genesis block.
func NewKeeper(difficulty int) *Keeper {
	return &Keeper{
		blocks:     []Block{Genesis()},
		difficulty: difficulty,
	}
}

// Difficulty returns the fixed PoW difficulty.
func (k *Keeper) Difficulty() int {
	return k.difficulty
}

// Last returns a snapshot of the chain tip.
func (k *Keeper) Last() Block {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.blocks[len(k.blocks)-1]
}

// Len returns the current chain length.
func (k *Keeper) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.blocks)
}

// Snapshot returns a copy of the full chain.
func (k *Keeper) Snapshot() []Block {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]Block, len(k.blocks))
	copy(out, k.blocks)
	return out
}

// IsValidNew reports whether block may legally extend the current tip:
// its previous_hash must match the tip's hash, its hash must be the
// correct recomputation, the hash must carry the required difficulty, and
// every non-coinbase transaction must verify.
func (k *Keeper) IsValidNew(block Block) bool {
	k.mu.RLock()
	tip := k.blocks[len(k.blocks)-1]
	k.mu.RUnlock()

	if block.PreviousHash != tip.Hash {
		return false
	}
	if block.Hash != block.RecomputeHash() {
		return false
	}
	if !block.IsValid(k.difficulty) {
		return false
	}
	for _, tx := range block.Transactions {
		if !tx.Verify() {
			return false
		}
	}
	return true
}

// IsValidChain checks internal consistency of a candidate chain: for every
// adjacent pair, the later block's previous_hash must match the earlier
// block's hash and its hash must be the correct recomputation. The genesis
// block is trusted and never recomputed.
func IsValidChain(blocks []Block) bool {
	if len(blocks) == 0 {
		return false
	}
	for i := 1; i < len(blocks); i++ {
		prev, cur := blocks[i-1], blocks[i]
		if cur.PreviousHash != prev.Hash {
			return false
		}
		if cur.Hash != cur.RecomputeHash() {
			return false
		}
	}
	return true
}

// Append adds block to the chain without revalidating; callers must have
// already validated it. IsValidNew and Append each take the lock on their
// own, so use AppendIfValid where the check and the append must be one
// critical section.
func (k *Keeper) Append(block Block) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.blocks = append(k.blocks, block)
	log.WithFields(logrus.Fields{"index": block.Index, "hash": block.Hash}).Info("appended block")
}

// AppendIfValid performs the validate-then-append critical section under a
// single lock acquisition, so a concurrent miner or peer cannot extend the
// tip between the check and the append.
func (k *Keeper) AppendIfValid(block Block) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	tip := k.blocks[len(k.blocks)-1]
	if block.PreviousHash != tip.Hash || block.Hash != block.RecomputeHash() || !block.IsValid(k.difficulty) {
		return false
	}
	for _, tx := range block.Transactions {
		if !tx.Verify() {
			return false
		}
	}
	k.blocks = append(k.blocks, block)
	log.WithFields(logrus.Fields{"index": block.Index, "hash": block.Hash}).Info("appended block")
	return true
}

// Replace performs a wholesale chain replacement, used by the sync loop
// when a peer advertises a longer valid chain.
func (k *Keeper) Replace(blocks []Block) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.blocks = blocks
	log.WithField("length", len(blocks)).Info("replaced chain")
}

// ErrMissingTip is the validation error for an operation that needs a
// non-empty chain but finds none. No function in this package returns it:
// a Keeper is always seeded with genesis.
var ErrMissingTip = nodeerr.New(nodeerr.KindValidation, "chain has no blocks")
