package decoder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stake-plus/multisig-relay/src/evm"
	"github.com/stake-plus/multisig-relay/src/safe"
	"github.com/stake-plus/multisig-relay/src/types"
)

// DecodeEVM describes a Safe transaction. txHash identifies it when decoding
// fails.
func DecodeEVM(to common.Address, value *big.Int, data []byte, txHash string) (Decoded, error) {
	d, err := decodeEVM(to, value, data, 0)
	if err != nil {
		return raw(types.FamilyEVM, txHash), err
	}
	d.CallHash = txHash
	return d, nil
}

func decodeEVM(to common.Address, value *big.Int, data []byte, depth int) (Decoded, error) {
	if depth > maxDepth {
		return Decoded{}, fmt.Errorf("multisend nesting deeper than %d", maxDepth)
	}
	if value == nil {
		value = new(big.Int)
	}
	d := Decoded{Family: types.FamilyEVM}

	if len(data) == 0 {
		d.Kind = KindTransfer
		d.Method = "transfer"
		d.Recipients = []Transfer{{To: to.Hex(), Value: value.String()}}
		return d, nil
	}

	if rcpt, amount, ok := evm.DecodeERC20Transfer(data); ok {
		d.Kind = KindTransfer
		d.Method = "transfer(address,uint256)"
		d.Recipients = []Transfer{{To: rcpt.Hex(), Value: amount.String(), Token: to.Hex()}}
		return d, nil
	}

	txs, ok, err := safe.DecodeMultiSend(data)
	if err != nil {
		return Decoded{}, err
	}
	if ok {
		d.Kind = KindBatch
		d.Method = "multiSend(bytes)"
		for i, tx := range txs {
			in, err := decodeEVM(tx.To, tx.Value, tx.Data, depth+1)
			if err != nil {
				return Decoded{}, fmt.Errorf("multisend entry %d: %w", i, err)
			}
			if tx.Operation == safe.DelegateCall {
				in.CustomTx = true
			}
			d.Inner = append(d.Inner, in)
		}
		d.collect()
		return d, nil
	}

	d.Kind = KindCustom
	d.Method = evm.MethodID(data)
	d.CustomTx = true
	if value.Sign() > 0 {
		d.Recipients = []Transfer{{To: to.Hex(), Value: value.String()}}
	}
	return d, nil
}
