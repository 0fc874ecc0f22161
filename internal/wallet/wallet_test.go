package wallet

import "testing"

func TestSignAndRecover(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}

	digest := []byte("some digest bytes padded to 32+ for the test")
	sig, err := Sign(w.PrivateKey, digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	recovered, err := Recover(sig, digest)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != w.Address {
		t.Fatalf("recovered address %s != wallet address %s", recovered, w.Address)
	}
}

func TestSignatureHexLength(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	sig, err := Sign(w.PrivateKey, []byte("digest"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != SignatureSize*2 {
		t.Fatalf("expected %d hex chars, got %d", SignatureSize*2, len(sig))
	}
}

func TestAddressFromPublicKeyDeterministic(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	if AddressFromPublicKey(w.PublicKey) != w.Address {
		t.Fatal("address derivation must be deterministic")
	}
}
