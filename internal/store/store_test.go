package store

import (
	"testing"

	"github.com/felipemeriga/artemis-network/internal/chain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreBlockRoundTrip(t *testing.T) {
	s := openTestStore(t)
	b := chain.Genesis()

	if err := s.StoreBlock(b); err != nil {
		t.Fatalf("store block: %v", err)
	}

	got, ok, err := s.GetBlock(b.Hash)
	if err != nil {
		t.Fatalf("get block: %v", err)
	}
	if !ok {
		t.Fatal("expected block to be found")
	}
	if got.Hash != b.Hash {
		t.Fatalf("hash mismatch: %s != %s", got.Hash, b.Hash)
	}
}

// TestBalance covers a single transfer: A->B amount=10, fee=0.1 ->
// balance(A) = -10.1, balance(B) = 10.0.
func TestBalance(t *testing.T) {
	s := openTestStore(t)
	tx := chain.Transaction{Sender: "A", Recipient: "B", Amount: 10, Fee: 0.1, Timestamp: 1}

	if err := s.StoreTransaction(tx, tx.Hash()); err != nil {
		t.Fatalf("store transaction: %v", err)
	}

	balA, err := s.Balance("A")
	if err != nil {
		t.Fatalf("balance A: %v", err)
	}
	if balA != -10.1 {
		t.Fatalf("balance(A) = %v, want -10.1", balA)
	}

	balB, err := s.Balance("B")
	if err != nil {
		t.Fatalf("balance B: %v", err)
	}
	if balB != 10.0 {
		t.Fatalf("balance(B) = %v, want 10.0", balB)
	}
}

func TestListBlocksOrderedByIndex(t *testing.T) {
	s := openTestStore(t)
	b2 := chain.Block{Index: 2, Hash: "h2", Transactions: []chain.Transaction{}}
	b1 := chain.Block{Index: 1, Hash: "h1", Transactions: []chain.Transaction{}}
	b0 := chain.Block{Index: 0, Hash: "h0", Transactions: []chain.Transaction{}}

	for _, b := range []chain.Block{b2, b1, b0} {
		if err := s.StoreBlock(b); err != nil {
			t.Fatalf("store block: %v", err)
		}
	}

	blocks, err := s.ListBlocksOrderedByIndex()
	if err != nil {
		t.Fatalf("list blocks: %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	for i, b := range blocks {
		if b.Index != uint64(i) {
			t.Fatalf("blocks not ordered by index: %+v", blocks)
		}
	}
}

func TestGetTransactionsByAddressDeduplicates(t *testing.T) {
	s := openTestStore(t)
	tx := chain.Transaction{Sender: "A", Recipient: "A", Amount: 1, Timestamp: 1}

	if err := s.StoreTransaction(tx, tx.Hash()); err != nil {
		t.Fatalf("store transaction: %v", err)
	}

	txs, err := s.GetTransactionsByAddress("A")
	if err != nil {
		t.Fatalf("get transactions by address: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected de-duplicated index with 1 entry, got %d", len(txs))
	}
}
