package chain_test

import (
	"testing"

	"github.com/stake-plus/multisig-relay/src/chain"
	"github.com/stake-plus/multisig-relay/src/data/datatest"
	"github.com/stake-plus/multisig-relay/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySeedsDefaults(t *testing.T) {
	db := datatest.NewDB(t)

	r, err := chain.NewRegistry(db)
	require.NoError(t, err)
	assert.Len(t, r.All(), len(chain.Defaults))

	dot, err := r.ByName("Polkadot")
	require.NoError(t, err)
	assert.Equal(t, types.FamilySubstrate, dot.Family)
	assert.EqualValues(t, 10, dot.Decimals)
	assert.Equal(t, []string{"wss://rpc.polkadot.io"}, chain.RPCURLs(dot))

	// second start does not duplicate rows
	_, err = chain.NewRegistry(db)
	require.NoError(t, err)
	var rpcs int64
	require.NoError(t, db.Model(&types.NetworkRPC{}).Count(&rpcs).Error)
	assert.EqualValues(t, len(chain.Defaults), rpcs)
}

func TestRegistryLookups(t *testing.T) {
	r := chain.NewStaticRegistry(chain.Defaults)

	eth, err := r.ByID(20)
	require.NoError(t, err)
	assert.Equal(t, "ethereum", eth.Name)

	_, err = r.ByName("solana")
	assert.ErrorIs(t, err, chain.ErrUnknownNetwork)

	_, err = r.ByID(999)
	assert.ErrorIs(t, err, chain.ErrUnknownNetwork)
}

func TestExplorerURLs(t *testing.T) {
	r := chain.NewStaticRegistry(chain.Defaults)
	dot, _ := r.ByName("polkadot")
	eth, _ := r.ByName("ethereum")

	assert.Equal(t, "https://polkadot.subscan.io/extrinsic/0xab", chain.ExplorerTxURL(dot, "0xab"))
	assert.Equal(t, "https://etherscan.io/tx/0xab", chain.ExplorerTxURL(eth, "0xab"))
	assert.Equal(t, "https://etherscan.io/address/0x1", chain.ExplorerAddressURL(eth, "0x1"))
	assert.Equal(t, "https://polkadot.subscan.io/account/1abc", chain.ExplorerAddressURL(dot, "1abc"))
	assert.Empty(t, chain.ExplorerTxURL(types.Network{}, "0xab"))
}
