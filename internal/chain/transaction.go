// Package chain implements the block and transaction data model, their
// canonical hashing/signing digests, and the in-memory chain keeper
// (validation, append-under-lock, longest-chain replace).
package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/felipemeriga/artemis-network/internal/nodeerr"
	"github.com/felipemeriga/artemis-network/internal/params"
	"github.com/felipemeriga/artemis-network/internal/wallet"
)

// Transaction is a signed value transfer, or an unsigned coinbase payout
// when Sender equals params.CoinbaseSender.
type Transaction struct {
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
	Fee       float64 `json:"fee"`
	Timestamp int64   `json:"timestamp"`
	Signature string  `json:"signature,omitempty"`
}

// formatFloat renders f in the stable, shortest round-trip decimal form
// that both the signer and the verifier must agree on for the hash to
// match. Scientific notation is avoided so the wire representation stays
// predictable across implementations.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// digest builds the canonical preimage that Hash() and the signing digest
// both hash: sender ":" recipient ":" amount ":" fee ":" timestamp.
func (tx Transaction) digest() []byte {
	var b strings.Builder
	b.WriteString(tx.Sender)
	b.WriteByte(':')
	b.WriteString(tx.Recipient)
	b.WriteByte(':')
	b.WriteString(formatFloat(tx.Amount))
	b.WriteByte(':')
	b.WriteString(formatFloat(tx.Fee))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(tx.Timestamp, 10))
	return []byte(b.String())
}

// Hash returns the lowercase hex SHA-256 hash of the transaction, which
// also serves as its signing digest.
func (tx Transaction) Hash() string {
	sum := sha256.Sum256(tx.digest())
	return hex.EncodeToString(sum[:])
}

// IsCoinbase reports whether tx is the synthetic block-reward transaction.
func (tx Transaction) IsCoinbase() bool {
	return tx.Sender == params.CoinbaseSender
}

// Sign signs the transaction's digest with priv and records the resulting
// recoverable signature.
func (tx *Transaction) Sign(priv *secp256k1.PrivateKey) error {
	sig, err := wallet.Sign(priv, tx.digestForSigning())
	if err != nil {
		return err
	}
	tx.Signature = sig
	return nil
}

// digestForSigning hashes the canonical digest; the transaction hash and
// the signing digest are both SHA256 over the same field layout.
func (tx Transaction) digestForSigning() []byte {
	sum := sha256.Sum256(tx.digest())
	return sum[:]
}

// Verify checks the transaction's signature. Coinbase transactions always
// verify: there is nothing to check, they are unsigned by design.
func (tx Transaction) Verify() bool {
	if tx.IsCoinbase() {
		return true
	}
	if tx.Signature == "" {
		return false
	}
	recovered, err := wallet.Recover(tx.Signature, tx.digestForSigning())
	if err != nil {
		return false
	}
	return recovered == tx.Sender
}

// ErrInvalidSignature is returned by VerifyOrErr when verification fails.
var ErrInvalidSignature = nodeerr.New(nodeerr.KindSignature, "transaction signature verification failed")

// VerifyOrErr is Verify with an error classified as nodeerr.KindSignature,
// for callers (the HTTP adapter) that need a status-mappable error instead
// of a bare bool.
func (tx Transaction) VerifyOrErr() error {
	if tx.Verify() {
		return nil
	}
	return ErrInvalidSignature
}
