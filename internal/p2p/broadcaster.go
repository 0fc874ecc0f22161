package p2p

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/felipemeriga/artemis-network/internal/chain"
	"github.com/felipemeriga/artemis-network/internal/nodeerr"
)

var broadcastLog = logrus.WithField("component", "broadcaster")

const dialTimeout = 5 * time.Second

// Broadcaster pushes new blocks and transactions to every known peer,
// excluding this node's own address, and evicts peers it cannot reach.
type Broadcaster struct {
	peers *PeerSet
}

// NewBroadcaster builds a broadcaster over the shared peer set.
func NewBroadcaster(peers *PeerSet) *Broadcaster {
	return &Broadcaster{peers: peers}
}

// BroadcastTransaction gossips tx to every live peer but self.
func (b *Broadcaster) BroadcastTransaction(tx chain.Transaction) {
	payload, err := EncodeTransactionRequest(tx)
	if err != nil {
		broadcastLog.WithError(err).Error("encode transaction for broadcast")
		return
	}
	b.broadcast(payload)
}

// BroadcastBlock gossips block to every live peer but self.
func (b *Broadcaster) BroadcastBlock(block chain.Block) {
	payload, err := EncodeNewBlockRequest(block)
	if err != nil {
		broadcastLog.WithError(err).Error("encode block for broadcast")
		return
	}
	b.broadcast(payload)
}

func (b *Broadcaster) broadcast(payload []byte) {
	for _, peer := range b.peers.SnapshotExceptSelf() {
		if err := sendOneShot(peer, payload); err != nil {
			broadcastLog.WithField("peer", peer).WithError(err).Warn("broadcast failed, evicting peer")
			b.peers.Remove(peer)
			continue
		}
	}
}

// sendOneShot opens a connection to addr, writes payload as the single
// request message, and closes. Used by the broadcaster; the discovery and
// sync loops dial their peers themselves because they read a response.
func sendOneShot(addr string, payload []byte) error {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nodeerr.Wrap(nodeerr.KindPeerConnect, err, "dial %s", addr)
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		return nodeerr.Wrap(nodeerr.KindPeerConnect, err, "write to %s", addr)
	}
	return nil
}
