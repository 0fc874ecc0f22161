package p2p

import (
	"encoding/json"

	"github.com/felipemeriga/artemis-network/internal/chain"
	"github.com/felipemeriga/artemis-network/internal/nodeerr"
	"github.com/felipemeriga/artemis-network/internal/params"
)

// request is the single control message every TCP connection carries:
// {"command": string, "data": string}.
type request struct {
	Command string `json:"command"`
	Data    string `json:"data"`
}

// registerPayload is the data field of a register command.
type registerPayload struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

func decodeTransaction(data string) (chain.Transaction, error) {
	var tx chain.Transaction
	if err := json.Unmarshal([]byte(data), &tx); err != nil {
		return chain.Transaction{}, nodeerr.Wrap(nodeerr.KindWireDecode, err, "decode transaction payload")
	}
	return tx, nil
}

func decodeBlock(data string) (chain.Block, error) {
	var b chain.Block
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return chain.Block{}, nodeerr.Wrap(nodeerr.KindWireDecode, err, "decode block payload")
	}
	return b, nil
}

func decodeRegister(data string) (registerPayload, error) {
	var r registerPayload
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return registerPayload{}, nodeerr.Wrap(nodeerr.KindWireDecode, err, "decode register payload")
	}
	return r, nil
}

// encodeRequest builds the single-document {"command","data"} wire message
// used both by outgoing gossip (broadcaster) and by the sync/discovery
// loops' queries.
func encodeRequest(command string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindWireEncode, err, "encode %s payload", command)
	}
	req := request{Command: command, Data: string(raw)}
	out, err := json.Marshal(req)
	if err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindWireEncode, err, "encode %s request", command)
	}
	return out, nil
}

// EncodeTransactionRequest builds the wire message for gossiping tx.
func EncodeTransactionRequest(tx chain.Transaction) ([]byte, error) {
	return encodeRequest(params.CommandTransaction, tx)
}

// EncodeNewBlockRequest builds the wire message for gossiping block.
func EncodeNewBlockRequest(block chain.Block) ([]byte, error) {
	return encodeRequest(params.CommandNewBlock, block)
}

// EncodeRegisterRequest builds the wire message for the discovery loop's
// register call.
func EncodeRegisterRequest(nodeID, selfAddress string) ([]byte, error) {
	return encodeRequest(params.CommandRegister, registerPayload{ID: nodeID, Address: selfAddress})
}

// EncodeGetBlockchainRequest builds the wire message for the sync loop's
// get_blockchain call.
func EncodeGetBlockchainRequest() ([]byte, error) {
	return encodeRequest(params.CommandGetBlockchain, "")
}
