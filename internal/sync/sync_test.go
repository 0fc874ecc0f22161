package sync

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/felipemeriga/artemis-network/internal/chain"
	"github.com/felipemeriga/artemis-network/internal/p2p"
	"github.com/felipemeriga/artemis-network/internal/params"
)

type fakePersister struct {
	stored [][]chain.Block
}

func (f *fakePersister) StoreChain(blocks []chain.Block) error {
	f.stored = append(f.stored, blocks)
	return nil
}

// servePeerChain starts a one-shot TCP listener that answers any request
// with the given chain, streamed in the get_blockchain wire format.
func servePeerChain(t *testing.T, blocks []chain.Block) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		defer ln.Close()
		buf := make([]byte, 4096)
		_, _ = conn.Read(buf) // drain the request

		for _, b := range blocks {
			raw, _ := json.Marshal(b)
			conn.Write(raw)
			conn.Write([]byte("\n" + params.EndBlockToken))
		}
		conn.Write([]byte(params.EndChainToken))
	}()
	return ln.Addr().String()
}

// TestSyncAdoptsLongerValidChain is Scenario D: local chain length 1
// (genesis only), peer advertises a valid chain of length 3 with the same
// genesis. After one sync round the local chain is the peer's.
func TestSyncAdoptsLongerValidChain(t *testing.T) {
	keeper := chain.NewKeeper(0)
	g := keeper.Last()

	b1 := chain.Block{Index: 1, Timestamp: 1, PreviousHash: g.Hash, Transactions: []chain.Transaction{}}
	b1.Hash = b1.RecomputeHash()
	b2 := chain.Block{Index: 2, Timestamp: 2, PreviousHash: b1.Hash, Transactions: []chain.Transaction{}}
	b2.Hash = b2.RecomputeHash()
	peerChain := []chain.Block{g, b1, b2}

	peerAddr := servePeerChain(t, peerChain)

	peers := p2p.NewPeerSet("127.0.0.1:0")
	peers.Add(peerAddr)
	persister := &fakePersister{}
	preempt := make(chan chain.Block, params.PreemptionChannelBuffer)

	loop := New(keeper, peers, persister, preempt)
	loop.runOnce()

	if !loop.Ready() {
		t.Fatal("expected first sync round to complete")
	}
	if keeper.Len() != 3 {
		t.Fatalf("expected adopted chain length 3, got %d", keeper.Len())
	}
	if keeper.Last().Hash != b2.Hash {
		t.Fatal("expected tip to be the peer's chain tip")
	}
	if len(persister.stored) != 1 || len(persister.stored[0]) != 3 {
		t.Fatalf("expected the adopted chain to be persisted, got %+v", persister.stored)
	}

	select {
	case <-preempt:
	case <-time.After(time.Second):
		t.Fatal("expected the miner to be signaled after chain adoption")
	}
}

func TestSyncEvictsUnreachablePeer(t *testing.T) {
	keeper := chain.NewKeeper(0)
	peers := p2p.NewPeerSet("127.0.0.1:0")
	peers.Add("127.0.0.1:1") // nothing listens here
	persister := &fakePersister{}
	preempt := make(chan chain.Block, params.PreemptionChannelBuffer)

	loop := New(keeper, peers, persister, preempt)
	loop.runOnce()

	for _, p := range peers.Snapshot() {
		if p == "127.0.0.1:1" {
			t.Fatal("expected unreachable peer to be evicted")
		}
	}
}
