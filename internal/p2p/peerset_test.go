package p2p

import "testing"

func TestPeerSetSelfExcludedFromBroadcastSnapshot(t *testing.T) {
	p := NewPeerSet("self:1000")
	p.Add("peer:2000")

	full := p.Snapshot()
	if len(full) != 2 {
		t.Fatalf("expected self to be a peer-set member, got %v", full)
	}

	exceptSelf := p.SnapshotExceptSelf()
	if len(exceptSelf) != 1 || exceptSelf[0] != "peer:2000" {
		t.Fatalf("expected only peer:2000 in broadcast snapshot, got %v", exceptSelf)
	}
}

func TestPeerSetAddIsIdempotent(t *testing.T) {
	p := NewPeerSet("self:1000")
	if !p.Add("peer:2000") {
		t.Fatal("expected first add to report newly added")
	}
	if p.Add("peer:2000") {
		t.Fatal("expected second add of the same peer to report not-new")
	}
}

func TestPeerSetRemove(t *testing.T) {
	p := NewPeerSet("self:1000")
	p.Add("peer:2000")
	p.Remove("peer:2000")

	for _, addr := range p.Snapshot() {
		if addr == "peer:2000" {
			t.Fatal("expected peer:2000 to be evicted")
		}
	}
}
