// Package node wires the chain keeper, mempool, store, peer set,
// broadcaster, p2p server, discovery loop, sync loop, miner, and HTTP
// adapter into one running process and governs their startup order.
//
// Uses golang.org/x/sync/errgroup for fan-out across a set of long-lived
// subsystem goroutines.
package node

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/felipemeriga/artemis-network/internal/chain"
	"github.com/felipemeriga/artemis-network/internal/config"
	"github.com/felipemeriga/artemis-network/internal/discovery"
	"github.com/felipemeriga/artemis-network/internal/httpapi"
	"github.com/felipemeriga/artemis-network/internal/mempool"
	"github.com/felipemeriga/artemis-network/internal/miner"
	"github.com/felipemeriga/artemis-network/internal/nodeerr"
	"github.com/felipemeriga/artemis-network/internal/p2p"
	"github.com/felipemeriga/artemis-network/internal/params"
	"github.com/felipemeriga/artemis-network/internal/store"
	"github.com/felipemeriga/artemis-network/internal/sync"
)

var log = logrus.WithField("component", "node")

// startupGates combines the discovery and sync one-shot flags into the
// single StartupGate the miner polls, satisfying the specified barrier:
// the miner waits for both first_discover_done and first_sync_done.
type startupGates struct {
	discovery *discovery.Loop
	sync      *sync.Loop
}

func (g startupGates) Ready() bool {
	return g.discovery.Ready() && g.sync.Ready()
}

// Node is one running instance of the chain.
type Node struct {
	cfg     *config.File
	keeper  *chain.Keeper
	mempool *mempool.Mempool
	store   *store.Store
	peers   *p2p.PeerSet
	broker  *p2p.Broadcaster
	p2pSrv  *p2p.Server
	disc    *discovery.Loop
	syncer  *sync.Loop
	miner   *miner.Miner
	http    *httpapi.Server
}

// Build constructs every subsystem, opening the persistent store and
// seeding genesis. Store failure here is fatal: the caller should treat a
// non-nil error as refusal to start, per the specified startup contract.
// dataRoot holds one directory per node identifier, as specified; callers
// typically pass "data".
func Build(cfg *config.File, dataRoot string) (*Node, error) {
	keeper := chain.NewKeeper(params.Difficulty)

	dataDir := filepath.Join(dataRoot, cfg.NodeID)
	st, err := store.Open(dataDir)
	if err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindStoreIO, err, "open store")
	}
	if err := st.StoreChain(keeper.Snapshot()); err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindStoreIO, err, "persist genesis block")
	}

	mp := mempool.New()
	peers := p2p.NewPeerSet(cfg.TCPAddress)
	broker := p2p.NewBroadcaster(peers)

	// Shared by the miner (receive side) and every sender that can signal
	// it: the p2p server on an accepted new_block, the sync loop on chain
	// replacement.
	preempt := make(chan chain.Block, params.PreemptionChannelBuffer)

	disc := discovery.New(peers, cfg.NodeID, cfg.BootstrapAddress)
	syncer := sync.New(keeper, peers, st, preempt)
	gate := startupGates{discovery: disc, sync: syncer}
	m := miner.New(keeper, mp, broker, st, gate, cfg.MinerWalletAddress, preempt)

	p2pSrv := p2p.NewServer(keeper, mp, peers, broker, preempt)
	httpSrv := httpapi.New(keeper, mp, broker, st)

	return &Node{
		cfg:     cfg,
		keeper:  keeper,
		mempool: mp,
		store:   st,
		peers:   peers,
		broker:  broker,
		p2pSrv:  p2pSrv,
		disc:    disc,
		syncer:  syncer,
		miner:   m,
		http:    httpSrv,
	}, nil
}

// Run starts every long-lived subsystem and blocks until one exits or ctx
// is cancelled.
func (n *Node) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	ln, err := net.Listen("tcp", n.cfg.TCPAddress)
	if err != nil {
		return nodeerr.Wrap(nodeerr.KindPeerConnect, err, "listen on %s", n.cfg.TCPAddress)
	}
	group.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	group.Go(func() error {
		if err := n.p2pSrv.Serve(ln); err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return nodeerr.Wrap(nodeerr.KindPeerConnect, err, "p2p accept loop")
			}
		}
		return nil
	})

	group.Go(func() error {
		n.disc.Run(ctx)
		return nil
	})
	group.Go(func() error {
		return n.syncer.Run(ctx)
	})
	group.Go(func() error {
		n.miner.Run(ctx)
		return nil
	})

	httpServer := &http.Server{Addr: n.cfg.HTTPAddress, Handler: n.http.Handler()}
	group.Go(func() error {
		<-ctx.Done()
		return httpServer.Close()
	})
	group.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return nodeerr.Wrap(nodeerr.KindPeerConnect, err, "http listen on %s", n.cfg.HTTPAddress)
		}
		return nil
	})

	log.WithFields(logrus.Fields{"tcp": n.cfg.TCPAddress, "http": n.cfg.HTTPAddress}).Info(fmt.Sprintf("node %s starting", n.cfg.NodeID))
	return group.Wait()
}

// Close releases the node's persistent store handle.
func (n *Node) Close() error {
	return n.store.Close()
}
