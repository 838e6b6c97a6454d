// Package safe builds, hashes and relays Safe multisig transactions.
package safe

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Operation is the Safe call type.
type Operation uint8

const (
	Call         Operation = 0
	DelegateCall Operation = 1
)

// Safe EIP-712 type hashes
var (
	domainTypeHash = crypto.Keccak256([]byte("EIP712Domain(uint256 chainId,address verifyingContract)"))
	safeTxTypeHash = crypto.Keccak256([]byte(
		"SafeTx(address to,uint256 value,bytes data,uint8 operation," +
			"uint256 safeTxGas,uint256 baseGas,uint256 gasPrice," +
			"address gasToken,address refundReceiver,uint256 nonce)",
	))
)

// Transaction is a Safe transaction before signatures.
type Transaction struct {
	To             common.Address
	Value          *big.Int
	Data           []byte
	Operation      Operation
	SafeTxGas      *big.Int
	BaseGas        *big.Int
	GasPrice       *big.Int
	GasToken       common.Address
	RefundReceiver common.Address
	Nonce          uint64
}

// Hash returns the EIP-712 safeTxHash owners sign.
func (tx Transaction) Hash(safe common.Address, chainID int64) common.Hash {
	domainSep := crypto.Keccak256(
		domainTypeHash,
		word(big.NewInt(chainID)),
		common.LeftPadBytes(safe.Bytes(), 32),
	)

	structHash := crypto.Keccak256(
		safeTxTypeHash,
		common.LeftPadBytes(tx.To.Bytes(), 32),
		word(tx.Value),
		crypto.Keccak256(tx.Data),
		word(big.NewInt(int64(tx.Operation))),
		word(tx.SafeTxGas),
		word(tx.BaseGas),
		word(tx.GasPrice),
		common.LeftPadBytes(tx.GasToken.Bytes(), 32),
		common.LeftPadBytes(tx.RefundReceiver.Bytes(), 32),
		word(new(big.Int).SetUint64(tx.Nonce)),
	)

	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domainSep, structHash)
}

func word(v *big.Int) []byte {
	if v == nil {
		return make([]byte, 32)
	}
	return math.U256Bytes(new(big.Int).Set(v))
}
