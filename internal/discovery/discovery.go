// Package discovery implements the peer discovery loop: an initial delay,
// then periodic registration against every known peer, unioning the
// responses into the local peer set.
//
// The startup-sequencing idiom (a one-shot "done" flag flipped after the
// first successful pass, polled by a dependent subsystem) and the
// register/peer-list exchange follow mini-chain's p2p server.
package discovery

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/felipemeriga/artemis-network/internal/nodeerr"
	"github.com/felipemeriga/artemis-network/internal/p2p"
	"github.com/felipemeriga/artemis-network/internal/params"
)

var log = logrus.WithField("component", "discovery")

// Loop is the discovery subsystem.
type Loop struct {
	peers       *p2p.PeerSet
	nodeID      string
	firstDone   atomic.Bool
	dialTimeout time.Duration
}

// New builds a discovery loop. If bootstrap is non-empty it is inserted
// into the peer set at startup, as specified.
func New(peers *p2p.PeerSet, nodeID, bootstrap string) *Loop {
	if bootstrap != "" {
		peers.Add(bootstrap)
	}
	return &Loop{
		peers:       peers,
		nodeID:      nodeID,
		dialTimeout: 5 * time.Second,
	}
}

// Ready reports whether the first discovery round has completed. The
// miner's startup gate requires it together with the sync loop's flag; the
// sync loop itself does not wait for it and runs its first round at once.
func (l *Loop) Ready() bool {
	return l.firstDone.Load()
}

// Run blocks until ctx is cancelled: waits params.DiscoveryInitialDelay,
// then registers every params.DiscoveryInterval.
func (l *Loop) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(params.DiscoveryInitialDelay):
	}

	l.runOnce()

	ticker := time.NewTicker(params.DiscoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.runOnce()
		}
	}
}

func (l *Loop) runOnce() {
	defer l.firstDone.Store(true)

	for _, peer := range l.peers.SnapshotExceptSelf() {
		addrs, err := l.register(peer)
		if err != nil {
			log.WithField("peer", peer).WithError(err).Warn("registration failed, evicting peer")
			l.peers.Remove(peer)
			continue
		}
		for _, addr := range addrs {
			if addr == l.peers.Self() {
				continue
			}
			l.peers.Add(addr)
		}
		return // stop after the first successful response, as specified
	}
}

func (l *Loop) register(peer string) ([]string, error) {
	req, err := p2p.EncodeRegisterRequest(l.nodeID, l.peers.Self())
	if err != nil {
		return nil, err
	}

	conn, err := net.DialTimeout("tcp", peer, l.dialTimeout)
	if err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindPeerConnect, err, "dial %s", peer)
	}
	defer conn.Close()

	if _, err := conn.Write(req); err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindPeerConnect, err, "write register to %s", peer)
	}

	var addrs []string
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&addrs); err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindWireDecode, err, "decode register response from %s", peer)
	}
	return addrs, nil
}
