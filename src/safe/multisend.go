package safe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stake-plus/multisig-relay/src/evm"
)

// MultiSendCallOnly v1.3.0, deployed at the same address on every supported chain.
var MultiSendCallOnly = common.HexToAddress("0x40A2aCCbd92BCA938b02010E17A5b8929b49130D")

var multiSendABI = evm.MustParseABI(`[
	{"type":"function","name":"multiSend","stateMutability":"payable",
	 "inputs":[{"name":"transactions","type":"bytes"}],"outputs":[]}
]`)

// MetaTx is one call inside a MultiSend batch.
type MetaTx struct {
	Operation Operation
	To        common.Address
	Value     *big.Int
	Data      []byte
}

// EncodeMultiSend packs txs and returns multiSend(bytes) calldata.
func EncodeMultiSend(txs []MetaTx) ([]byte, error) {
	if len(txs) == 0 {
		return nil, fmt.Errorf("multisend: empty batch")
	}
	var packed bytes.Buffer
	for _, tx := range txs {
		value := tx.Value
		if value == nil {
			value = new(big.Int)
		}
		packed.WriteByte(byte(tx.Operation))
		packed.Write(tx.To.Bytes())
		packed.Write(math.U256Bytes(new(big.Int).Set(value)))
		packed.Write(math.U256Bytes(big.NewInt(int64(len(tx.Data)))))
		packed.Write(tx.Data)
	}
	return multiSendABI.Pack("multiSend", packed.Bytes())
}

// DecodeMultiSend parses multiSend(bytes) calldata. The bool is false when
// data is not a multiSend call.
func DecodeMultiSend(data []byte) ([]MetaTx, bool, error) {
	method := multiSendABI.Methods["multiSend"]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return nil, false, nil
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, true, fmt.Errorf("multisend: %w", err)
	}
	packed, ok := args[0].([]byte)
	if !ok {
		return nil, true, fmt.Errorf("multisend: unexpected argument type")
	}

	var out []MetaTx
	for off := 0; off < len(packed); {
		if off+85 > len(packed) {
			return nil, true, fmt.Errorf("multisend: truncated entry at %d", off)
		}
		tx := MetaTx{
			Operation: Operation(packed[off]),
			To:        common.BytesToAddress(packed[off+1 : off+21]),
			Value:     new(big.Int).SetBytes(packed[off+21 : off+53]),
		}
		lenWord := packed[off+53 : off+85]
		if !bytes.Equal(lenWord[:24], make([]byte, 24)) {
			return nil, true, fmt.Errorf("multisend: data length overflow at %d", off)
		}
		n := int(binary.BigEndian.Uint64(lenWord[24:]))
		off += 85
		if n < 0 || off+n > len(packed) {
			return nil, true, fmt.Errorf("multisend: data out of range at %d", off)
		}
		tx.Data = append([]byte{}, packed[off:off+n]...)
		off += n
		out = append(out, tx)
	}
	return out, true, nil
}
