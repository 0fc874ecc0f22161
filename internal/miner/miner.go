// Package miner implements the preemptible proof-of-work loop: build a
// candidate block from the mempool and the current tip, search for a
// valid nonce while yielding to an incoming-block preemption signal, and
// append the winning block under the chain's writer lock.
//
// The coroutine shape (an environment built per sealing attempt, a result
// channel, an abort channel selected on between work units) follows
// go-ethereum's miner.worker, adapted here to a simpler single-CPU hash
// search with no sealing environment to tear down between attempts.
package miner

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/felipemeriga/artemis-network/internal/chain"
	"github.com/felipemeriga/artemis-network/internal/mempool"
	"github.com/felipemeriga/artemis-network/internal/params"
)

var log = logrus.WithField("component", "miner")

// Broadcaster is the subset of the p2p broadcaster the miner needs.
type Broadcaster interface {
	BroadcastBlock(block chain.Block)
}

// Persister is the subset of the store the miner needs, for the
// fire-and-forget persistence scheduled after every append.
type Persister interface {
	StoreBlock(block chain.Block) error
}

// StartupGate is polled once a second until it reports true, gating the
// miner's first iteration on first_discover_done / first_sync_done.
type StartupGate interface {
	Ready() bool
}

// Miner runs the PoW loop described above. Preempt is the capacity-20
// incoming-block channel; sends onto it are non-blocking (the p2p server
// and sync loop own the send side).
type Miner struct {
	keeper        *chain.Keeper
	mempool       *mempool.Mempool
	broadcaster   Broadcaster
	persister     Persister
	gate          StartupGate
	walletAddress string
	preempt       chan chain.Block

	issued uint64 // cumulative coinbase issuance, guarded by the run goroutine only
}

// New builds a miner over a preemption channel created by the caller
// (shared with the p2p server and sync loop, which hold the send side).
func New(keeper *chain.Keeper, mp *mempool.Mempool, broadcaster Broadcaster, persister Persister, gate StartupGate, walletAddress string, preempt chan chain.Block) *Miner {
	return &Miner{
		keeper:        keeper,
		mempool:       mp,
		broadcaster:   broadcaster,
		persister:     persister,
		gate:          gate,
		walletAddress: walletAddress,
		preempt:       preempt,
	}
}

// Preempt returns the send side of the incoming-block channel, for the
// p2p server and sync loop to signal this miner.
func (m *Miner) Preempt() chan<- chain.Block {
	return m.preempt
}

// Run blocks until ctx is cancelled, repeatedly mining one block per
// iteration.
func (m *Miner) Run(ctx context.Context) {
	m.awaitStartupGate(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		m.runOneIteration(ctx)
	}
}

func (m *Miner) awaitStartupGate(ctx context.Context) {
	ticker := time.NewTicker(params.StartupBarrierPoll)
	defer ticker.Stop()
	for {
		if m.gate.Ready() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Miner) runOneIteration(ctx context.Context) {
	txs := m.mempool.TakeForMining(params.TransactionsPerBlock)
	if len(txs) == 0 && !params.MineEmptyBlocks {
		select {
		case <-ctx.Done():
		case <-time.After(params.StartupBarrierPoll):
		}
		return
	}

	tip := m.keeper.Last()
	candidate := chain.Block{
		Index:        tip.Index + 1,
		Timestamp:    uint64(time.Now().Unix()),
		Transactions: m.withCoinbase(txs),
		PreviousHash: tip.Hash,
		Nonce:        0,
	}
	candidate.Hash = candidate.RecomputeHash()

	preempted, ok := m.search(ctx, &candidate)
	if !ok {
		// context cancelled mid-search; nothing to append.
		return
	}
	if preempted != nil {
		m.mempool.ProcessMined(false, preempted.Transactions)
		go m.persist(*preempted)
		return
	}

	if !m.keeper.AppendIfValid(candidate) {
		// another path (a gossip block) extended the tip first; discard
		// and let the next iteration rebuild from the new tip.
		return
	}
	m.mempool.ProcessMined(true, candidate.Transactions)
	m.broadcaster.BroadcastBlock(candidate)
	go m.persist(candidate)

	select {
	case <-ctx.Done():
	case <-time.After(params.MinerRestartDelay):
	}
}

// withCoinbase prepends the block-reward transaction, unless minting it
// would push cumulative issuance past MAX_SUPPLY.
func (m *Miner) withCoinbase(txs []chain.Transaction) []chain.Transaction {
	if m.issued+params.BlockReward > params.MaxSupply {
		out := make([]chain.Transaction, len(txs))
		copy(out, txs)
		return out
	}

	var fees float64
	for _, tx := range txs {
		fees += tx.Fee
	}
	reward := params.BlockReward

	coinbase := chain.Transaction{
		Sender:    params.CoinbaseSender,
		Recipient: m.walletAddress,
		Amount:    float64(reward) + fees,
		Fee:       0,
		Timestamp: time.Now().Unix(),
	}
	m.issued += reward

	out := make([]chain.Transaction, 0, len(txs)+1)
	out = append(out, coinbase)
	out = append(out, txs...)
	return out
}

// search runs the PoW hot loop, checking ctx and the preemption channel
// before every hash step. It returns (nil, true) when a valid nonce is
// found, (block, true) when preempted by an incoming block, and
// (nil, false) if ctx was cancelled first.
func (m *Miner) search(ctx context.Context, candidate *chain.Block) (*chain.Block, bool) {
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case incoming := <-m.preempt:
			log.WithField("hash", incoming.Hash).Info("mining preempted by incoming block")
			return &incoming, true
		default:
		}

		if candidate.IsValid(m.keeper.Difficulty()) {
			return nil, true
		}
		candidate.MineStep()
	}
}

func (m *Miner) persist(block chain.Block) {
	if err := m.persister.StoreBlock(block); err != nil {
		log.WithError(err).WithField("hash", block.Hash).Error("failed to persist mined block")
	}
}
