package safe

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/stake-plus/multisig-relay/src/evm"
)

// VerifyOwnerSignature checks an owner signature on a safeTxHash. Signatures
// with v of 31/32 were produced with eth_sign over the prefixed hash.
func VerifyOwnerSignature(owner string, safeTxHash, sig []byte) error {
	if len(sig) != 65 {
		return fmt.Errorf("invalid signature length: %d", len(sig))
	}
	if sig[64] > 30 {
		adjusted := append([]byte{}, sig...)
		adjusted[64] -= 4
		return evm.VerifyHash(owner, accounts.TextHash(safeTxHash), adjusted)
	}
	return evm.VerifyHash(owner, safeTxHash, sig)
}
