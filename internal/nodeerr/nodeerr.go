// Package nodeerr defines the error taxonomy shared by every subsystem of
// the node: wire decode/encode failures, crypto/signature failures,
// insufficient balance, store I/O failures, peer connect failures and
// block/chain validation failures.
package nodeerr

import (
	"github.com/cockroachdb/errors"
)

// Kind classifies an error for logging and HTTP status mapping.
type Kind int

const (
	// KindWireDecode marks a malformed JSON message received over the wire.
	KindWireDecode Kind = iota
	// KindWireEncode marks a (should-not-happen) serialization failure.
	KindWireEncode
	// KindCryptoDecode marks bad hex, a bad key or a bad signature encoding.
	KindCryptoDecode
	// KindSignature marks a signature that failed verification.
	KindSignature
	// KindBalance marks insufficient funds at submission time.
	KindBalance
	// KindStoreIO marks a persistent-store read/write failure.
	KindStoreIO
	// KindPeerConnect marks a failure to reach a peer.
	KindPeerConnect
	// KindValidation marks a rejected block or chain.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindWireDecode:
		return "wire_decode"
	case KindWireEncode:
		return "wire_encode"
	case KindCryptoDecode:
		return "crypto_decode"
	case KindSignature:
		return "signature"
	case KindBalance:
		return "balance"
	case KindStoreIO:
		return "store_io"
	case KindPeerConnect:
		return "peer_connect"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

type nodeError struct {
	kind Kind
	error
}

// New builds a new node error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) error {
	return &nodeError{kind: kind, error: errors.Newf(format, args...)}
}

// Wrap attaches a kind to an existing error, preserving it in the chain so
// errors.Is/errors.As/errors.Unwrap keep working.
func Wrap(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &nodeError{kind: kind, error: errors.Wrapf(err, format, args...)}
}

// KindOf extracts the Kind carried by err, if any was attached via New/Wrap.
func KindOf(err error) (Kind, bool) {
	var ne *nodeError
	if errors.As(err, &ne) {
		return ne.kind, true
	}
	return 0, false
}

func (e *nodeError) Unwrap() error { return e.error }
