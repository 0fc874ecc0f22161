package p2p

import (
	"bufio"
	"encoding/json"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/felipemeriga/artemis-network/internal/chain"
	"github.com/felipemeriga/artemis-network/internal/mempool"
	"github.com/felipemeriga/artemis-network/internal/params"
)

var serverLog = logrus.WithField("component", "p2p")

// Server is the TCP accept loop and command dispatcher described for the
// peer-to-peer surface: transaction/new_block gossip, get_blockchain
// streaming, and register.
type Server struct {
	keeper      *chain.Keeper
	mempool     *mempool.Mempool
	peers       *PeerSet
	broadcaster *Broadcaster
	preempt     chan<- chain.Block
}

// NewServer wires the dispatcher to the node's shared state. preempt is the
// capacity-20 channel the miner selects on; sends onto it never block (a
// full channel just drops the signal, the miner reacts on its next tick).
func NewServer(keeper *chain.Keeper, mp *mempool.Mempool, peers *PeerSet, broadcaster *Broadcaster, preempt chan<- chain.Block) *Server {
	return &Server{
		keeper:      keeper,
		mempool:     mp,
		peers:       peers,
		broadcaster: broadcaster,
		preempt:     preempt,
	}
}

// Serve runs the accept loop on ln until it errors (typically on listener
// close during shutdown). Each accepted connection is handled in its own
// goroutine.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	// A streaming decoder, rather than a fixed-size read buffer, so a
	// request JSON document of any size is read in full.
	var req request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		serverLog.WithError(err).Debug("malformed request, closing connection")
		return
	}

	switch req.Command {
	case params.CommandTransaction:
		s.handleTransaction(req.Data)
	case params.CommandNewBlock:
		s.handleNewBlock(req.Data)
	case params.CommandGetBlockchain:
		s.handleGetBlockchain(conn)
	case params.CommandRegister:
		s.handleRegister(conn, req.Data)
	default:
		serverLog.WithField("command", req.Command).Warn("unknown command, closing connection")
	}
}

func (s *Server) handleTransaction(data string) {
	tx, err := decodeTransaction(data)
	if err != nil {
		serverLog.WithError(err).Debug("malformed transaction payload")
		return
	}
	if !s.mempool.Exists(tx) {
		s.broadcaster.BroadcastTransaction(tx)
	}
	s.mempool.Add(tx)
}

func (s *Server) handleNewBlock(data string) {
	block, err := decodeBlock(data)
	if err != nil {
		serverLog.WithError(err).Debug("malformed block payload")
		return
	}

	tip := s.keeper.Last()
	if block.Index <= tip.Index || block.Hash == tip.Hash {
		return
	}
	if !s.keeper.AppendIfValid(block) {
		serverLog.WithField("hash", block.Hash).Debug("rejected incoming block")
		return
	}

	select {
	case s.preempt <- block:
	default:
		serverLog.Debug("preemption channel full, dropping signal")
	}
	s.broadcaster.BroadcastBlock(block)
}

func (s *Server) handleGetBlockchain(conn net.Conn) {
	w := bufio.NewWriter(conn)
	for _, block := range s.keeper.Snapshot() {
		raw, err := json.Marshal(block)
		if err != nil {
			serverLog.WithError(err).Error("encode block for get_blockchain stream")
			return
		}
		if _, err := w.Write(raw); err != nil {
			serverLog.WithError(err).Debug("write block chunk")
			return
		}
		if _, err := w.WriteString("\n" + params.EndBlockToken); err != nil {
			serverLog.WithError(err).Debug("write block separator")
			return
		}
		if err := w.Flush(); err != nil {
			serverLog.WithError(err).Debug("flush block chunk")
			return
		}
	}
	if _, err := w.WriteString(params.EndChainToken); err != nil {
		serverLog.WithError(err).Debug("write chain terminator")
		return
	}
	_ = w.Flush()
}

func (s *Server) handleRegister(conn net.Conn, data string) {
	reg, err := decodeRegister(data)
	if err != nil {
		serverLog.WithError(err).Debug("malformed register payload")
		return
	}
	s.peers.Add(reg.Address)

	raw, err := json.Marshal(s.peers.Snapshot())
	if err != nil {
		serverLog.WithError(err).Error("encode peer set response")
		return
	}
	if _, err := conn.Write(raw); err != nil {
		serverLog.WithError(err).Debug("write register response")
	}
}
