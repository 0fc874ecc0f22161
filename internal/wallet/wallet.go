// Package wallet implements the cryptographic primitives needed to mint an
// address, and to sign/verify transactions with a recoverable secp256k1
// ECDSA signature.
//
// Key management is built on github.com/decred/dcrd/dcrec/secp256k1/v4,
// the same library dcrd's rpctest.memWallet uses for its signing keys.
package wallet

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	dcrecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/felipemeriga/artemis-network/internal/nodeerr"
)

// SignatureSize is the length, in bytes, of a recoverable signature: 64
// bytes of compact (R, S) followed by 1 byte of recovery id.
const SignatureSize = 65

// Wallet holds a secp256k1 keypair and the address derived from it.
type Wallet struct {
	PrivateKey *secp256k1.PrivateKey
	PublicKey  *secp256k1.PublicKey
	Address    string
}

// New generates a fresh random wallet.
func New() (*Wallet, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindCryptoDecode, err, "generate private key")
	}
	return FromPrivateKey(priv), nil
}

// FromPrivateKey derives the wallet (public key + address) from a private key.
func FromPrivateKey(priv *secp256k1.PrivateKey) *Wallet {
	pub := priv.PubKey()
	return &Wallet{
		PrivateKey: priv,
		PublicKey:  pub,
		Address:    AddressFromPublicKey(pub),
	}
}

// FromHex parses hex-encoded private and public key material into a Wallet.
// The public key is re-derived from the private key; the hex-decoded public
// key is only used to validate that it matches, catching a caller mismatch
// early.
func FromHex(privHex, pubHex string) (*Wallet, error) {
	privBytes, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindCryptoDecode, err, "decode private key hex")
	}
	priv := secp256k1.PrivKeyFromBytes(privBytes)
	w := FromPrivateKey(priv)

	if pubHex != "" {
		pubBytes, err := hex.DecodeString(pubHex)
		if err != nil {
			return nil, nodeerr.Wrap(nodeerr.KindCryptoDecode, err, "decode public key hex")
		}
		pub, err := secp256k1.ParsePubKey(pubBytes)
		if err != nil {
			return nil, nodeerr.Wrap(nodeerr.KindCryptoDecode, err, "parse public key")
		}
		if AddressFromPublicKey(pub) != w.Address {
			return nil, nodeerr.New(nodeerr.KindCryptoDecode, "public key does not match private key")
		}
	}
	return w, nil
}

// AddressFromPublicKey derives the lowercase-hex address of a public key:
// SHA256 of its compressed serialization.
func AddressFromPublicKey(pub *secp256k1.PublicKey) string {
	sum := sha256.Sum256(pub.SerializeCompressed())
	return hex.EncodeToString(sum[:])
}

// Sign produces a recoverable signature over digest, in wire order: 64
// bytes of compact (R, S) followed by a 1-byte recovery id.
func Sign(priv *secp256k1.PrivateKey, digest []byte) (string, error) {
	// dcrec's SignCompact returns [recoveryCode || R || S]; the recovery
	// code is biased by 27 (+4 if the key is compressed). We always sign
	// with compressed keys (our address derivation uses the compressed
	// serialization), then rotate into the wire's [R || S || recoveryID]
	// layout with the bias stripped back out.
	compact := dcrecdsa.SignCompact(priv, digest, true)
	if len(compact) != SignatureSize {
		return "", nodeerr.New(nodeerr.KindCryptoDecode, "unexpected signature length %d", len(compact))
	}
	recoveryCode := compact[0]
	recoveryID := recoveryCode - 31 // undo the +27 (uncompressed) +4 (compressed) bias
	wire := make([]byte, SignatureSize)
	copy(wire, compact[1:])
	wire[64] = recoveryID
	return hex.EncodeToString(wire), nil
}

// Recover recovers the public key that produced signatureHex over digest,
// and returns the address derived from it.
func Recover(signatureHex string, digest []byte) (string, error) {
	wire, err := hex.DecodeString(signatureHex)
	if err != nil {
		return "", nodeerr.Wrap(nodeerr.KindCryptoDecode, err, "decode signature hex")
	}
	if len(wire) != SignatureSize {
		return "", nodeerr.New(nodeerr.KindCryptoDecode, "signature must be %d bytes, got %d", SignatureSize, len(wire))
	}
	recoveryID := wire[64]
	compact := make([]byte, SignatureSize)
	compact[0] = recoveryID + 31
	copy(compact[1:], wire[:64])

	pub, _, err := dcrecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return "", nodeerr.Wrap(nodeerr.KindCryptoDecode, err, "recover public key")
	}
	return AddressFromPublicKey(pub), nil
}
