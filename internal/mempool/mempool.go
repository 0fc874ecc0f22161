// Package mempool implements the fee-priority pending transaction pool:
// a max-heap ordered by fee (ties broken by older timestamp first), a live
// map, a tombstone set for lazily deleting heap entries, and a pending map
// tracking transactions handed to the miner but not yet confirmed.
//
// The live/tombstone bookkeeping over a heap follows the shape of Dusk's
// pkg/core/mempool, which keeps a similarly bookkept "verified" pool; the
// pending map adds tracking for transactions in flight to a miner.
package mempool

import (
	"container/heap"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/felipemeriga/artemis-network/internal/chain"
)

var log = logrus.WithField("component", "mempool")

// txHeap is a max-heap of transactions ordered by fee descending, ties
// broken by timestamp ascending (older first).
type txHeap []chain.Transaction

func (h txHeap) Len() int { return len(h) }

func (h txHeap) Less(i, j int) bool {
	return higherPriority(h[i], h[j])
}

// higherPriority defines the pool's strict total order: a > b iff
// a.fee > b.fee, or a.fee == b.fee and a.timestamp < b.timestamp.
func higherPriority(a, b chain.Transaction) bool {
	if a.Fee != b.Fee {
		return a.Fee > b.Fee
	}
	return a.Timestamp < b.Timestamp
}

func (h txHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *txHeap) Push(x interface{}) {
	*h = append(*h, x.(chain.Transaction))
}

func (h *txHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Mempool is the node's shared pending-transaction store.
type Mempool struct {
	mu sync.Mutex

	heap    txHeap
	live    map[string]chain.Transaction
	removed map[string]struct{}
	pending map[string]chain.Transaction
}

// New builds an empty mempool.
func New() *Mempool {
	m := &Mempool{
		live:    make(map[string]chain.Transaction),
		removed: make(map[string]struct{}),
		pending: make(map[string]chain.Transaction),
	}
	heap.Init(&m.heap)
	return m
}

// Add inserts tx into the heap and the live map. It is a no-op if tx's hash
// is already in the live map or the pending map.
func (m *Mempool) Add(tx chain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(tx)
}

func (m *Mempool) addLocked(tx chain.Transaction) {
	h := tx.Hash()
	if _, ok := m.live[h]; ok {
		return
	}
	if _, ok := m.pending[h]; ok {
		return
	}
	m.live[h] = tx
	heap.Push(&m.heap, tx)
}

// Exists reports whether tx is a member of the live map or the pending map.
func (m *Mempool) Exists(tx chain.Transaction) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := tx.Hash()
	if _, ok := m.live[h]; ok {
		return true
	}
	_, ok := m.pending[h]
	return ok
}

// next pops the heap until it finds a transaction that is neither
// tombstoned (the tombstone is consumed on encounter) nor absent from the
// live map, and removes it from the live map. Must be called with mu held.
func (m *Mempool) next() (chain.Transaction, bool) {
	for m.heap.Len() > 0 {
		tx := heap.Pop(&m.heap).(chain.Transaction)
		h := tx.Hash()

		if _, tombstoned := m.removed[h]; tombstoned {
			delete(m.removed, h)
			continue
		}
		if _, ok := m.live[h]; !ok {
			continue
		}
		delete(m.live, h)
		return tx, true
	}
	return chain.Transaction{}, false
}

// TakeForMining pops up to n highest-priority transactions, moving each
// into the pending map, and returns them in pop order (non-increasing fee,
// ties broken by non-decreasing timestamp).
func (m *Mempool) TakeForMining(n int) []chain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	txs := make([]chain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		tx, ok := m.next()
		if !ok {
			break
		}
		m.pending[tx.Hash()] = tx
		txs = append(txs, tx)
	}
	return txs
}

// ProcessMined reconciles the mempool with the outcome of a mining attempt.
// If minedBySelf, the entire pending map is cleared (the local miner's own
// block confirmed all of it). Otherwise, each tx in txs is removed from
// wherever it is found (pending, or live+tombstoned); any pending
// transactions left over (not present in txs) were preempted before being
// confirmed and are re-added to the live pool via Add.
func (m *Mempool) ProcessMined(minedBySelf bool, txs []chain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if minedBySelf {
		m.pending = make(map[string]chain.Transaction)
		return
	}

	for _, tx := range txs {
		h := tx.Hash()
		if _, ok := m.pending[h]; ok {
			delete(m.pending, h)
			continue
		}
		if _, ok := m.live[h]; ok {
			delete(m.live, h)
			m.removed[h] = struct{}{}
		}
	}

	remaining := m.pending
	m.pending = make(map[string]chain.Transaction)
	for _, tx := range remaining {
		m.addLocked(tx)
	}

	if len(remaining) > 0 {
		log.WithField("count", len(remaining)).Debug("restored preempted pending transactions")
	}
}

// Len returns the number of transactions currently live (not pending, not
// tombstoned).
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}
