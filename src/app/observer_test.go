package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/safe"
	"github.com/stake-plus/multisig-relay/src/substrate"
	"github.com/stake-plus/multisig-relay/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	polkadot = types.Network{ID: 1, Name: "polkadot", Family: types.FamilySubstrate, SS58Prefix: 0}
	sepolia  = types.Network{ID: 2, Name: "sepolia", Family: types.FamilyEVM, ChainID: 11155111}

	msAccount = bytes.Repeat([]byte{0xaa}, 32)
	callHash  = "0x" + string(bytes.Repeat([]byte("ab"), 32))
)

type fakeMultisigs struct {
	entry *substrate.MultisigEntry
	err   error

	gotAccount, gotHash []byte
}

func (f *fakeMultisigs) MultisigEntry(_ context.Context, account, hash []byte) (*substrate.MultisigEntry, bool, error) {
	f.gotAccount, f.gotHash = account, hash
	return f.entry, f.entry != nil, f.err
}

type fakeSafeTxs struct {
	tx    *safe.MultisigTx
	err   error
	nonce uint64
}

func (f *fakeSafeTxs) GetTransaction(context.Context, string) (*safe.MultisigTx, error) {
	return f.tx, f.err
}

func (f *fakeSafeTxs) Nonce(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func testObserver(ms *fakeMultisigs, safes *fakeSafeTxs, now time.Time) *Observer {
	return &Observer{
		substrate: func(context.Context, types.Network) (multisigReader, error) { return ms, nil },
		safes:     func(types.Network) (safeTxReader, error) { return safes, nil },
		grace:     inclusionGrace,
		now:       func() time.Time { return now },
	}
}

func substrateFixture(created time.Time, approvals ...string) (*types.Multisig, *types.PendingTransaction) {
	ms := &types.Multisig{Address: "0x" + string(bytes.Repeat([]byte("aa"), 32)), NetworkID: polkadot.ID}
	tx := &types.PendingTransaction{CallHash: callHash, Threshold: 2, Approvals: approvals, CreatedAt: created}
	return ms, tx
}

func TestObserveSubstrateOpenEntry(t *testing.T) {
	now := time.Now()
	signer := bytes.Repeat([]byte{0x01}, 32)
	reader := &fakeMultisigs{entry: &substrate.MultisigEntry{Approvals: [][]byte{signer}}}
	o := testObserver(reader, nil, now)

	ms, tx := substrateFixture(now.Add(-time.Hour))
	obs, err := o.Observe(context.Background(), polkadot, ms, tx)
	require.NoError(t, err)

	want, err := address.EncodeSS58(signer, polkadot.SS58Prefix)
	require.NoError(t, err)
	assert.Equal(t, []string{want}, obs.Approvals)
	assert.False(t, obs.Executed)
	assert.False(t, obs.Cancelled)
	assert.Equal(t, msAccount, reader.gotAccount)
	assert.Len(t, reader.gotHash, 32)
}

func TestObserveSubstrateMissingEntry(t *testing.T) {
	now := time.Now()
	o := testObserver(&fakeMultisigs{}, nil, now)

	t.Run("fresh proposal is left alone", func(t *testing.T) {
		ms, tx := substrateFixture(now.Add(-30 * time.Second))
		obs, err := o.Observe(context.Background(), polkadot, ms, tx)
		require.NoError(t, err)
		assert.False(t, obs.Executed)
		assert.False(t, obs.Cancelled)
	})

	t.Run("enough approvals means executed", func(t *testing.T) {
		ms, tx := substrateFixture(now.Add(-time.Hour), "alice")
		obs, err := o.Observe(context.Background(), polkadot, ms, tx)
		require.NoError(t, err)
		assert.True(t, obs.Executed)
	})

	t.Run("too few approvals means cancelled", func(t *testing.T) {
		ms, tx := substrateFixture(now.Add(-time.Hour))
		tx.Threshold = 3
		obs, err := o.Observe(context.Background(), polkadot, ms, tx)
		require.NoError(t, err)
		assert.True(t, obs.Cancelled)
	})
}

func TestObserveSubstrateErrors(t *testing.T) {
	now := time.Now()
	o := testObserver(&fakeMultisigs{err: errors.New("rpc down")}, nil, now)
	ms, tx := substrateFixture(now)
	_, err := o.Observe(context.Background(), polkadot, ms, tx)
	require.Error(t, err)

	ms.Address = "not-an-address"
	_, err = o.Observe(context.Background(), polkadot, ms, tx)
	require.ErrorIs(t, err, address.ErrInvalidAddress)
}

func safeFixture(created time.Time) (*types.Multisig, *types.PendingTransaction) {
	ms := &types.Multisig{Address: "0x1111111111111111111111111111111111111111", NetworkID: sepolia.ID}
	tx := &types.PendingTransaction{CallHash: callHash, Threshold: 2, CreatedAt: created}
	return ms, tx
}

func TestObserveSafe(t *testing.T) {
	now := time.Now()
	owner := "0x2222222222222222222222222222222222222222"
	executed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("executed", func(t *testing.T) {
		o := testObserver(nil, &fakeSafeTxs{tx: &safe.MultisigTx{
			IsExecuted:    true,
			ExecutionDate: &executed,
			Nonce:         json.Number("4"),
			Confirmations: []safe.Confirmation{{Owner: owner}},
		}}, now)
		ms, tx := safeFixture(now.Add(-time.Hour))
		obs, err := o.Observe(context.Background(), sepolia, ms, tx)
		require.NoError(t, err)
		assert.True(t, obs.Executed)
		assert.Equal(t, executed, obs.ExecutedAt)
		assert.Equal(t, []string{address.Checksum(owner)}, obs.Approvals)
	})

	t.Run("open with confirmations", func(t *testing.T) {
		o := testObserver(nil, &fakeSafeTxs{nonce: 4, tx: &safe.MultisigTx{
			Nonce:         json.Number("4"),
			Confirmations: []safe.Confirmation{{Owner: owner}},
		}}, now)
		ms, tx := safeFixture(now.Add(-time.Hour))
		obs, err := o.Observe(context.Background(), sepolia, ms, tx)
		require.NoError(t, err)
		assert.False(t, obs.Executed)
		assert.False(t, obs.Cancelled)
		assert.Len(t, obs.Approvals, 1)
	})

	t.Run("nonce consumed by another tx", func(t *testing.T) {
		o := testObserver(nil, &fakeSafeTxs{nonce: 5, tx: &safe.MultisigTx{Nonce: json.Number("4")}}, now)
		ms, tx := safeFixture(now.Add(-time.Hour))
		obs, err := o.Observe(context.Background(), sepolia, ms, tx)
		require.NoError(t, err)
		assert.True(t, obs.Cancelled)
	})

	t.Run("unknown to the service", func(t *testing.T) {
		o := testObserver(nil, &fakeSafeTxs{err: safe.ErrNotFound}, now)
		ms, tx := safeFixture(now.Add(-10 * time.Second))
		obs, err := o.Observe(context.Background(), sepolia, ms, tx)
		require.NoError(t, err)
		assert.False(t, obs.Cancelled)

		tx.CreatedAt = now.Add(-time.Hour)
		obs, err = o.Observe(context.Background(), sepolia, ms, tx)
		require.NoError(t, err)
		assert.True(t, obs.Cancelled)
	})
}

func TestObserveUnknownFamily(t *testing.T) {
	o := testObserver(nil, nil, time.Now())
	_, err := o.Observe(context.Background(), types.Network{Family: "cosmos"}, &types.Multisig{}, &types.PendingTransaction{})
	require.Error(t, err)
}
