// Package httpapi is the thin HTTP adapter external wallet-holding clients
// use to submit transactions and query node state; it mutates nothing
// directly, delegating every operation to the mempool, the chain keeper,
// the broadcaster and the store.
//
// Follows a single mux wired at construction time, with
// github.com/rs/cors wrapping it for browser clients.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/felipemeriga/artemis-network/internal/chain"
	"github.com/felipemeriga/artemis-network/internal/mempool"
	"github.com/felipemeriga/artemis-network/internal/nodeerr"
	"github.com/felipemeriga/artemis-network/internal/p2p"
	"github.com/felipemeriga/artemis-network/internal/store"
	"github.com/felipemeriga/artemis-network/internal/wallet"
)

var log = logrus.WithField("component", "httpapi")

// Server is the HTTP adapter.
type Server struct {
	keeper      *chain.Keeper
	mempool     *mempool.Mempool
	broadcaster *p2p.Broadcaster
	store       *store.Store
}

// New builds the HTTP adapter over the node's shared state.
func New(keeper *chain.Keeper, mp *mempool.Mempool, broadcaster *p2p.Broadcaster, st *store.Store) *Server {
	return &Server{keeper: keeper, mempool: mp, broadcaster: broadcaster, store: st}
}

// Handler returns the CORS-wrapped http.Handler to be served.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/transaction/submit", s.handleSubmit)
	mux.HandleFunc("/transaction/sign-and-submit", s.handleSignAndSubmit)
	mux.HandleFunc("/transaction/sign", s.handleSign)
	mux.HandleFunc("/create-wallet", s.handleCreateWallet)
	mux.HandleFunc("/transaction/wallet/", s.handleTransactionsByWallet)
	mux.HandleFunc("/transaction/", s.handleGetTransaction)
	mux.HandleFunc("/wallet/balance/", s.handleBalance)
	mux.HandleFunc("/block/", s.handleGetBlock)
	mux.HandleFunc("/blocks", s.handleListBlocks)
	mux.HandleFunc("/health", s.handleHealth)

	return cors.Default().Handler(mux)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func statusFor(err error) int {
	kind, ok := nodeerr.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case nodeerr.KindWireDecode, nodeerr.KindCryptoDecode, nodeerr.KindSignature, nodeerr.KindBalance, nodeerr.KindValidation:
		return http.StatusBadRequest
	case nodeerr.KindStoreIO:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func pathSuffix(r *http.Request, prefix string) string {
	return strings.TrimPrefix(r.URL.Path, prefix)
}

func (s *Server) submit(w http.ResponseWriter, tx chain.Transaction) {
	if err := tx.VerifyOrErr(); err != nil {
		log.WithField("sender", tx.Sender).Debug("rejected transaction with bad signature")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !tx.IsCoinbase() {
		balance, err := s.store.Balance(tx.Sender)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if balance < tx.Amount+tx.Fee {
			writeError(w, http.StatusBadRequest, "insufficient balance")
			return
		}
	}

	s.mempool.Add(tx)
	s.broadcaster.BroadcastTransaction(tx)
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var tx chain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "malformed transaction body")
		return
	}
	s.submit(w, tx)
}

// signAndSubmitRequest is documented as learning-only: it asks the node
// to hold a private key, which a production wallet would never do.
type signAndSubmitRequest struct {
	PrivateKeyHex string            `json:"privateKey"`
	PublicKeyHex  string            `json:"publicKey"`
	Transaction   chain.Transaction `json:"transaction"`
}

func (s *Server) handleSignAndSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req signAndSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	w2, err := wallet.FromHex(req.PrivateKeyHex, req.PublicKeyHex)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tx := req.Transaction
	if err := tx.Sign(w2.PrivateKey); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.submit(w, tx)
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req signAndSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	w2, err := wallet.FromHex(req.PrivateKeyHex, req.PublicKeyHex)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tx := req.Transaction
	if err := tx.Sign(w2.PrivateKey); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w2, err := wallet.New()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"privateKey": hex.EncodeToString(w2.PrivateKey.Serialize()),
		"publicKey":  hex.EncodeToString(w2.PublicKey.SerializeCompressed()),
		"address":    w2.Address,
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	hash := pathSuffix(r, "/transaction/")
	tx, ok, err := s.store.GetTransaction(hash)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleTransactionsByWallet(w http.ResponseWriter, r *http.Request) {
	address := pathSuffix(r, "/transaction/wallet/")
	txs, err := s.store.GetTransactionsByAddress(address)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	address := pathSuffix(r, "/wallet/balance/")
	balance, err := s.store.Balance(address)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"balance": balance})
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	hash := pathSuffix(r, "/block/")
	block, ok, err := s.store.GetBlock(hash)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.store.ListBlocksOrderedByIndex()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
