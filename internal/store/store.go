// Package store implements the persistent key-value store: blocks keyed by
// hash, transactions keyed by their own hash, and a per-address index of
// transaction hashes used to reconstruct balances and wallet history.
//
// Follows a key-prefixed flat key-value access pattern over a single
// database handle, backed by github.com/syndtr/goleveldb/leveldb.
package store

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/felipemeriga/artemis-network/internal/chain"
	"github.com/felipemeriga/artemis-network/internal/nodeerr"
)

var log = logrus.WithField("component", "store")

const (
	blockPrefix = "block:"
	addrPrefix  = "addr_"
)

// Store wraps a single leveldb handle. Callers serialize access to it
// through a node-level exclusive lock (mu); leveldb itself is safe for
// concurrent use, but the node treats the store as a single opaque
// resource to keep its own bookkeeping (e.g. read-modify-write of the
// address index) atomic.
type Store struct {
	mu sync.Mutex
	db *leveldb.DB
}

// Open opens (creating if absent) the leveldb database rooted at dir, one
// directory per node identifier as specified.
func Open(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindStoreIO, err, "open store at %q", dir)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// StoreBlock persists block under block:<hash>.
func (s *Store) StoreBlock(block chain.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeBlockLocked(block)
}

func (s *Store) storeBlockLocked(block chain.Block) error {
	raw, err := json.Marshal(block)
	if err != nil {
		return nodeerr.Wrap(nodeerr.KindWireEncode, err, "encode block %s", block.Hash)
	}
	if err := s.db.Put([]byte(blockPrefix+block.Hash), raw, nil); err != nil {
		return nodeerr.Wrap(nodeerr.KindStoreIO, err, "put block %s", block.Hash)
	}
	return nil
}

// GetBlock looks up a block by hash. ok is false if it was not found.
func (s *Store) GetBlock(hash string) (block chain.Block, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, getErr := s.db.Get([]byte(blockPrefix+hash), nil)
	if errors.Is(getErr, leveldb.ErrNotFound) {
		return chain.Block{}, false, nil
	}
	if getErr != nil {
		return chain.Block{}, false, nodeerr.Wrap(nodeerr.KindStoreIO, getErr, "get block %s", hash)
	}
	if err := json.Unmarshal(raw, &block); err != nil {
		return chain.Block{}, false, nodeerr.Wrap(nodeerr.KindWireDecode, err, "decode block %s", hash)
	}
	return block, true, nil
}

// ListBlocksOrderedByIndex returns every stored block sorted by index.
func (s *Store) ListBlocksOrderedByIndex() ([]chain.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	var blocks []chain.Block
	prefix := []byte(blockPrefix)
	for iter.Next() {
		key := iter.Key()
		if len(key) < len(prefix) || string(key[:len(prefix)]) != blockPrefix {
			continue
		}
		var b chain.Block
		if err := json.Unmarshal(iter.Value(), &b); err != nil {
			return nil, nodeerr.Wrap(nodeerr.KindWireDecode, err, "decode block at key %s", key)
		}
		blocks = append(blocks, b)
	}
	if err := iter.Error(); err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindStoreIO, err, "iterate blocks")
	}

	sortBlocksByIndex(blocks)
	return blocks, nil
}

func sortBlocksByIndex(blocks []chain.Block) {
	for i := 1; i < len(blocks); i++ {
		for j := i; j > 0 && blocks[j-1].Index > blocks[j].Index; j-- {
			blocks[j-1], blocks[j] = blocks[j], blocks[j-1]
		}
	}
}

// StoreTransaction persists tx under its own hash and appends hash to the
// sender's and recipient's address indexes (de-duplicated).
func (s *Store) StoreTransaction(tx chain.Transaction, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeTransactionLocked(tx, hash)
}

func (s *Store) storeTransactionLocked(tx chain.Transaction, hash string) error {
	raw, err := json.Marshal(tx)
	if err != nil {
		return nodeerr.Wrap(nodeerr.KindWireEncode, err, "encode transaction %s", hash)
	}
	if err := s.db.Put([]byte(hash), raw, nil); err != nil {
		return nodeerr.Wrap(nodeerr.KindStoreIO, err, "put transaction %s", hash)
	}
	if err := s.appendAddrIndexLocked(tx.Sender, hash); err != nil {
		return err
	}
	if err := s.appendAddrIndexLocked(tx.Recipient, hash); err != nil {
		return err
	}
	return nil
}

func (s *Store) appendAddrIndexLocked(address, hash string) error {
	key := []byte(addrPrefix + address)
	hashes, err := s.readIndexLocked(key)
	if err != nil {
		return err
	}
	for _, h := range hashes {
		if h == hash {
			return nil
		}
	}
	hashes = append(hashes, hash)
	if err := s.db.Put(key, []byte(strings.Join(hashes, ",")), nil); err != nil {
		return nodeerr.Wrap(nodeerr.KindStoreIO, err, "put address index %s", address)
	}
	return nil
}

func (s *Store) readIndexLocked(key []byte) ([]string, error) {
	raw, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindStoreIO, err, "get address index")
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return strings.Split(string(raw), ","), nil
}

// GetTransaction looks up a transaction by hash.
func (s *Store) GetTransaction(hash string) (tx chain.Transaction, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, getErr := s.db.Get([]byte(hash), nil)
	if errors.Is(getErr, leveldb.ErrNotFound) {
		return chain.Transaction{}, false, nil
	}
	if getErr != nil {
		return chain.Transaction{}, false, nodeerr.Wrap(nodeerr.KindStoreIO, getErr, "get transaction %s", hash)
	}
	if err := json.Unmarshal(raw, &tx); err != nil {
		return chain.Transaction{}, false, nodeerr.Wrap(nodeerr.KindWireDecode, err, "decode transaction %s", hash)
	}
	return tx, true, nil
}

// GetTransactionsByAddress returns every transaction touching address, in
// the order they were first indexed.
func (s *Store) GetTransactionsByAddress(address string) ([]chain.Transaction, error) {
	s.mu.Lock()
	hashes, err := s.readIndexLocked([]byte(addrPrefix + address))
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	txs := make([]chain.Transaction, 0, len(hashes))
	for _, h := range hashes {
		tx, ok, err := s.GetTransaction(h)
		if err != nil {
			return nil, err
		}
		if ok {
			txs = append(txs, tx)
		}
	}
	return txs, nil
}

// Balance computes the running balance of address by scanning every
// transaction indexed against it: recipient credits are added, sender
// debits (amount + fee) are subtracted. The store does not enforce
// non-negativity.
func (s *Store) Balance(address string) (float64, error) {
	txs, err := s.GetTransactionsByAddress(address)
	if err != nil {
		return 0, err
	}

	var balance float64
	for _, tx := range txs {
		if tx.Recipient == address {
			balance += tx.Amount
		}
		if tx.Sender == address {
			balance -= tx.Amount + tx.Fee
		}
	}
	return balance, nil
}

// StoreChain persists every block and all of its transactions (coinbase
// included), used after a chain replacement and at genesis.
func (s *Store) StoreChain(blocks []chain.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range blocks {
		if err := s.storeBlockLocked(b); err != nil {
			return err
		}
		for _, tx := range b.Transactions {
			if err := s.storeTransactionLocked(tx, tx.Hash()); err != nil {
				return err
			}
		}
	}
	log.WithField("count", len(blocks)).Info("persisted chain")
	return nil
}
