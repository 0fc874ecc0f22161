package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/felipemeriga/artemis-network/internal/chain"
	"github.com/felipemeriga/artemis-network/internal/mempool"
	"github.com/felipemeriga/artemis-network/internal/p2p"
	"github.com/felipemeriga/artemis-network/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	keeper := chain.NewKeeper(1)
	mp := mempool.New()
	peers := p2p.NewPeerSet("127.0.0.1:0")
	broker := p2p.NewBroadcaster(peers)
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(keeper, mp, broker, st), st
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateWallet(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/create-wallet", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["address"] == "" || body["privateKey"] == "" {
		t.Fatalf("expected address and privateKey, got %+v", body)
	}
}

func TestSubmitCoinbaseSkipsBalanceCheck(t *testing.T) {
	srv, _ := newTestServer(t)
	tx := chain.Transaction{Sender: "COINBASE", Recipient: "someone", Amount: 1, Timestamp: 1}
	raw, _ := json.Marshal(tx)

	req := httptest.NewRequest(http.MethodPost, "/transaction/submit", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	// a coinbase transaction always verifies and is exempt from the balance
	// check, so it is accepted even though nothing is recorded for it.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected coinbase submit to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitRejectsBadSignature(t *testing.T) {
	srv, _ := newTestServer(t)
	tx := chain.Transaction{Sender: "some-address", Recipient: "r", Amount: 1, Fee: 0, Timestamp: 1, Signature: "not-a-real-signature"}
	raw, _ := json.Marshal(tx)

	req := httptest.NewRequest(http.MethodPost, "/transaction/submit", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature, got %d", rec.Code)
	}
}

func TestGetBlockNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/block/doesnotexist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
