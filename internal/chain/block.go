package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Block is an immutable, once-appended unit of the chain; GenesisHash is the
// fixed hash of the trusted genesis block (index 0, previous_hash "0", no
// transactions).
type Block struct {
	Index        uint64        `json:"index"`
	Timestamp    uint64        `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PreviousHash string        `json:"previous_hash"`
	Nonce        uint64        `json:"nonce"`
	Hash         string        `json:"hash"`
}

// RecomputeHash returns the hash that Block's fields should carry:
// SHA256(index ‖ timestamp ‖ concat(tx.hash()) ‖ previous_hash ‖ nonce), all
// as decimal ASCII with no separators between the integer fields.
func (b Block) RecomputeHash() string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(b.Index, 10))
	sb.WriteString(strconv.FormatUint(b.Timestamp, 10))
	for _, tx := range b.Transactions {
		sb.WriteString(tx.Hash())
	}
	sb.WriteString(b.PreviousHash)
	sb.WriteString(strconv.FormatUint(b.Nonce, 10))

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// MineStep increments the nonce and recomputes the hash; one iteration of
// the PoW search.
func (b *Block) MineStep() {
	b.Nonce++
	b.Hash = b.RecomputeHash()
}

// IsValid reports whether the block's hash carries the required number of
// leading hex zeros.
func (b Block) IsValid(difficulty int) bool {
	return hasLeadingZeros(b.Hash, difficulty)
}

func hasLeadingZeros(hash string, difficulty int) bool {
	if len(hash) < difficulty {
		return false
	}
	return strings.Count(hash[:difficulty], "0") == difficulty
}

// GenesisHash is the fixed, trusted hash recorded on the genesis block. It
// is never recomputed; is_valid_chain treats it as an axiom. It is the
// SHA-256 of the genesis block's own canonical preimage (index 0,
// timestamp 0, no transactions, previous_hash "0", nonce 0), computed once
// and pinned so every node agrees on the same genesis hash regardless of
// wall-clock time at startup.
const GenesisHash = "9af15b336e6a9619928537df30b2e6a2376569fcf9d7e773eccede65606529a0"

// Genesis builds the fixed genesis block: index 0, previous_hash "0", no
// transactions, and the predefined GenesisHash.
func Genesis() Block {
	return Block{
		Index:        0,
		Timestamp:    0,
		Transactions: []Transaction{},
		PreviousHash: "0",
		Nonce:        0,
		Hash:         GenesisHash,
	}
}
