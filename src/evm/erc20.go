package evm

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20JSON = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

// ERC20 is the parsed subset of the ERC-20 ABI used by the relay.
var ERC20 = MustParseABI(erc20JSON)

// MustParseABI parses a JSON ABI definition and panics on error.
func MustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EncodeERC20Transfer returns calldata for transfer(to, value).
func EncodeERC20Transfer(to common.Address, value *big.Int) ([]byte, error) {
	return ERC20.Pack("transfer", to, value)
}

// DecodeERC20Transfer parses transfer(to, value) calldata. The bool is false
// when data is not an ERC-20 transfer.
func DecodeERC20Transfer(data []byte) (common.Address, *big.Int, bool) {
	method := ERC20.Methods["transfer"]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return common.Address{}, nil, false
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil || len(args) != 2 {
		return common.Address{}, nil, false
	}
	to, ok1 := args[0].(common.Address)
	value, ok2 := args[1].(*big.Int)
	if !ok1 || !ok2 {
		return common.Address{}, nil, false
	}
	return to, value, true
}

// MethodID returns the 4-byte selector of data as hex, or "" when shorter.
func MethodID(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	return fmt.Sprintf("0x%x", data[:4])
}
