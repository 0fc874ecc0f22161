package miner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/felipemeriga/artemis-network/internal/chain"
	"github.com/felipemeriga/artemis-network/internal/mempool"
)

type fakeBroadcaster struct {
	mu     sync.Mutex
	blocks []chain.Block
}

func (f *fakeBroadcaster) BroadcastBlock(b chain.Block) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks = append(f.blocks, b)
}

func (f *fakeBroadcaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blocks)
}

type fakePersister struct {
	mu     sync.Mutex
	stored []chain.Block
}

func (f *fakePersister) StoreBlock(b chain.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, b)
	return nil
}

func (f *fakePersister) first() (chain.Block, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.stored) == 0 {
		return chain.Block{}, false
	}
	return f.stored[0], true
}

type alwaysReady struct{}

func (alwaysReady) Ready() bool { return true }

// TestMinerFindsBlock is a variant of Scenario A (PoW boundary): with a low
// difficulty the miner must append exactly one new block to the chain.
func TestMinerFindsBlock(t *testing.T) {
	keeper := chain.NewKeeper(1)
	mp := mempool.New()
	broadcaster := &fakeBroadcaster{}
	persister := &fakePersister{}

	m := New(keeper, mp, broadcaster, persister, alwaysReady{}, "miner-address", make(chan chain.Block, 20))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m.runOneIteration(ctx)

	if keeper.Len() != 2 {
		t.Fatalf("expected chain length 2 after mining one block, got %d", keeper.Len())
	}
	if broadcaster.count() != 1 {
		t.Fatalf("expected exactly one broadcast block, got %d", broadcaster.count())
	}
}

// TestMinerPreemption is Scenario C: before the miner finds a nonce, a
// valid successor block arrives on the preemption channel; the miner must
// abandon its attempt and restore the mempool's original transaction.
func TestMinerPreemption(t *testing.T) {
	keeper := chain.NewKeeper(64) // unreachable difficulty within the test timeout
	mp := mempool.New()
	broadcaster := &fakeBroadcaster{}
	persister := &fakePersister{}
	preempt := make(chan chain.Block, 20)

	original := chain.Transaction{Sender: "COINBASE", Recipient: "r1", Amount: 5, Timestamp: 1}
	mp.Add(original)

	m := New(keeper, mp, broadcaster, persister, alwaysReady{}, "miner-address", preempt)

	tip := keeper.Last()
	incoming := chain.Block{
		Index:        tip.Index + 1,
		Timestamp:    1,
		Transactions: []chain.Transaction{{Sender: "COINBASE", Recipient: "r2", Amount: 5, Timestamp: 2}},
		PreviousHash: tip.Hash,
	}
	incoming.Hash = incoming.RecomputeHash()
	preempt <- incoming

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m.runOneIteration(ctx)

	if !mp.Exists(original) {
		t.Fatal("expected original transaction to be restored to the mempool after preemption")
	}

	var stored chain.Block
	var ok bool
	for i := 0; i < 100; i++ {
		if stored, ok = persister.first(); ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !ok || stored.Hash != incoming.Hash {
		t.Fatal("expected the preempting block to be scheduled for persistence")
	}
}
