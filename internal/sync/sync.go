// Package sync implements the longest-valid-chain reconciliation loop:
// every 120 seconds, pull each peer's chain, keep the longest one that
// validates, and adopt it.
//
// The periodic-poll-and-adopt shape follows mini-chain's p2p sync client;
// the one-shot "done" flag gating dependent subsystems follows the
// startup-sequencing idiom in go-ethereum's node package.
package sync

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/felipemeriga/artemis-network/internal/chain"
	"github.com/felipemeriga/artemis-network/internal/nodeerr"
	"github.com/felipemeriga/artemis-network/internal/p2p"
	"github.com/felipemeriga/artemis-network/internal/params"
)

var log = logrus.WithField("component", "sync")

// Persister is the subset of the store the sync loop needs.
type Persister interface {
	StoreChain(blocks []chain.Block) error
}

// Loop is the sync subsystem: periodically reconciles the local chain
// with every known peer's advertised chain.
type Loop struct {
	keeper      *chain.Keeper
	peers       *p2p.PeerSet
	persister   Persister
	preempt     chan<- chain.Block
	firstDone   atomic.Bool
	dialTimeout time.Duration
}

// New builds a sync loop.
func New(keeper *chain.Keeper, peers *p2p.PeerSet, persister Persister, preempt chan<- chain.Block) *Loop {
	return &Loop{
		keeper:      keeper,
		peers:       peers,
		persister:   persister,
		preempt:     preempt,
		dialTimeout: 5 * time.Second,
	}
}

// Ready reports whether the first sync round has completed, gating the
// miner's startup barrier.
func (l *Loop) Ready() bool {
	return l.firstDone.Load()
}

// Run blocks until ctx is cancelled or a sync round hits a fatal error,
// reconciling every params.SyncInterval. A chain adoption that cannot be
// persisted is fatal per the specified error-handling policy (the in-memory
// chain would otherwise diverge permanently from disk), so Run returns that
// error immediately instead of continuing to poll.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.runOnce(); err != nil {
		return err
	}

	ticker := time.NewTicker(params.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.runOnce(); err != nil {
				return err
			}
		}
	}
}

// runOnce performs one reconciliation round. It returns a non-nil error only
// when an adopted chain could not be persisted; every other failure (a
// single peer being unreachable, a peer's chain being invalid or not longer)
// is absorbed and logged, per the peer-facing error propagation policy.
func (l *Loop) runOnce() error {
	defer l.firstDone.Store(true)

	currentLen := l.keeper.Len()
	var best []chain.Block

	for _, peer := range l.peers.SnapshotExceptSelf() {
		candidate, err := l.fetchChain(peer)
		if err != nil {
			log.WithField("peer", peer).WithError(err).Warn("sync fetch failed, evicting peer")
			l.peers.Remove(peer)
			continue
		}
		if len(candidate) <= currentLen || len(candidate) <= len(best) {
			continue
		}
		if !chain.IsValidChain(candidate) {
			continue
		}
		best = candidate
	}

	if best == nil {
		return nil
	}

	l.keeper.Replace(best)
	tip := best[len(best)-1]
	select {
	case l.preempt <- tip:
	default:
	}
	if err := l.persister.StoreChain(best); err != nil {
		return nodeerr.Wrap(nodeerr.KindStoreIO, err, "persist adopted chain of length %d", len(best))
	}
	log.WithField("length", len(best)).Info("adopted longest valid chain")
	return nil
}

func (l *Loop) fetchChain(peer string) ([]chain.Block, error) {
	req, err := p2p.EncodeGetBlockchainRequest()
	if err != nil {
		return nil, err
	}

	conn, err := net.DialTimeout("tcp", peer, l.dialTimeout)
	if err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindPeerConnect, err, "dial %s", peer)
	}
	defer conn.Close()

	if _, err := conn.Write(req); err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindPeerConnect, err, "write get_blockchain to %s", peer)
	}

	reader := bufio.NewReader(conn)
	var blocks []chain.Block
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, nodeerr.Wrap(nodeerr.KindPeerConnect, err, "read chain stream from %s", peer)
		}
		if line == params.EndChainToken {
			return blocks, nil
		}

		marker, err := reader.ReadString('\n')
		if err != nil {
			return nil, nodeerr.Wrap(nodeerr.KindPeerConnect, err, "read block separator from %s", peer)
		}
		if marker != params.EndBlockToken {
			return nil, nodeerr.New(nodeerr.KindWireDecode, "expected block separator from %s, got %q", peer, marker)
		}

		var b chain.Block
		if err := json.Unmarshal([]byte(strings.TrimSuffix(line, "\n")), &b); err != nil {
			return nil, nodeerr.Wrap(nodeerr.KindWireDecode, err, "decode block chunk from %s", peer)
		}
		blocks = append(blocks, b)
	}
}
