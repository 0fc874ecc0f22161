// Package params centralizes the protocol constants of the network,
// mirroring the flat-const-list layout of params/protocol_params.go in
// go-ethereum.
package params

import "time"

const (
	// MaxSupply caps the cumulative coinbase issuance. No coinbase is minted
	// once issuing it would push total issuance past this value.
	MaxSupply uint64 = 21_000_000

	// BlockReward is the fixed coinbase reward paid to the miner of a block,
	// on top of the fees of the transactions it includes.
	BlockReward uint64 = 5

	// Difficulty is the fixed number of leading hex zero characters a block
	// hash must have to be considered valid. There is no difficulty
	// adjustment in this protocol.
	Difficulty = 5

	// TransactionsPerBlock bounds how many mempool transactions the miner
	// pulls into a single candidate block.
	TransactionsPerBlock = 20

	// CoinbaseSender is the literal sender address of a coinbase transaction.
	// Coinbase transactions are unsigned and always verify.
	CoinbaseSender = "COINBASE"

	// MineEmptyBlocks controls whether the miner starts a PoW search for a
	// candidate with no pending transactions. True by default: a node with
	// no traffic still earns coinbase rewards instead of stalling forever.
	MineEmptyBlocks = true
)

// Wire protocol command names, as exchanged in the {"command", "data"} TCP
// envelope.
const (
	CommandTransaction   = "transaction"
	CommandNewBlock      = "new_block"
	CommandGetBlockchain = "get_blockchain"
	CommandRegister      = "register"
)

// Stream framing tokens used by the get_blockchain response and consumed by
// the sync loop.
const (
	EndBlockToken = "<END_BLOCK>\n"
	EndChainToken = "<END_CHAIN>\n"
)

// Timing constants governing the cooperating loops.
const (
	SyncInterval            = 120 * time.Second
	DiscoveryInitialDelay   = 3 * time.Second
	DiscoveryInterval       = 60 * time.Second
	MinerRestartDelay       = 2 * time.Second
	StartupBarrierPoll      = 1 * time.Second
	PreemptionChannelBuffer = 20
)
