package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stake-plus/multisig-relay/src/data/datatest"
	"github.com/stake-plus/multisig-relay/src/store"
	"github.com/stake-plus/multisig-relay/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	alice         = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	alicePolkadot = "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5"
	bob           = "0x8eaf04151687736326c9fea17e25fc5287613693c912909cb226aa4794f26a48"
	charlie       = "0x90b5ab205c6974c9ea841be688864633dc9ca8a357843eeacf2314649965fe22"
	dave          = "0x306721211d5404bd9da88e0204360a1a9ab8b87c66c1bc2fcdd37f3c2222cc20"
	multisigAddr  = "0x49daa32c7287890f38b7e1a8cd2961723d36d20baa0bf3b82e0c4bdda93b1c0a"
	otherMultisig = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

func newStore(t *testing.T) *store.Store {
	return store.New(datatest.NewDB(t), nil, zap.NewNop(), 4)
}

func signatories(addrs ...string) []types.MultisigSignatory {
	out := make([]types.MultisigSignatory, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, types.MultisigSignatory{Address: a})
	}
	return out
}

func createMultisig(t *testing.T, st *store.Store, addr string) *types.Multisig {
	ms := &types.Multisig{
		Address:     addr,
		NetworkID:   1,
		Name:        "treasury",
		Threshold:   2,
		Signatories: signatories(alice, bob, charlie),
	}
	require.NoError(t, st.CreateMultisig(context.Background(), ms, 2))
	return ms
}

func pending(ms *types.Multisig, hash string, created time.Time) *types.PendingTransaction {
	return &types.PendingTransaction{
		NetworkID:  ms.NetworkID,
		CallHash:   hash,
		MultisigID: ms.ID,
		To:         bob,
		Value:      "10500000000000",
		Proposer:   alice,
		Approvals:  []string{alice},
		Threshold:  ms.Threshold,
		CreatedAt:  created,
	}
}

func TestCreateMultisigValidation(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	tests := []struct {
		name string
		ms   types.Multisig
		want error
	}{
		{"threshold below minimum", types.Multisig{Address: multisigAddr, NetworkID: 1, Threshold: 1, Signatories: signatories(alice, bob)}, store.ErrInvalidThreshold},
		{"threshold above signatories", types.Multisig{Address: multisigAddr, NetworkID: 1, Threshold: 3, Signatories: signatories(alice, bob)}, store.ErrInvalidThreshold},
		{"duplicate signatory", types.Multisig{Address: multisigAddr, NetworkID: 1, Threshold: 2, Signatories: signatories(alice, alicePolkadot)}, store.ErrInvalidMultisig},
		{"bad address", types.Multisig{Address: "nope", NetworkID: 1, Threshold: 2, Signatories: signatories(alice, bob)}, store.ErrInvalidMultisig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := tt.ms
			assert.ErrorIs(t, st.CreateMultisig(ctx, &ms, 2), tt.want)
		})
	}

	createMultisig(t, st, multisigAddr)
	dup := &types.Multisig{Address: multisigAddr, NetworkID: 1, Threshold: 2, Signatories: signatories(alice, bob)}
	assert.ErrorIs(t, st.CreateMultisig(ctx, dup, 2), store.ErrAlreadyExists)
}

func TestMultisigLookupAcrossEncodings(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	ms := createMultisig(t, st, multisigAddr)

	found, err := st.MultisigsBySignatory(ctx, alicePolkadot)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, ms.ID, found[0].ID)
	assert.Len(t, found[0].Signatories, 3)
	assert.True(t, store.IsSignatory(&found[0], alicePolkadot))
	assert.False(t, store.IsSignatory(&found[0], dave))

	_, err = st.MultisigByAddress(ctx, 2, multisigAddr)
	assert.ErrorIs(t, err, store.ErrNotFound)

	updated, err := st.UpdateMultisig(ctx, ms.ID, " ops ", "")
	require.NoError(t, err)
	assert.Equal(t, "ops", updated.Name)

	require.NoError(t, st.DisableMultisig(ctx, ms.ID))
	found, err = st.MultisigsBySignatory(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.ErrorIs(t, st.DisableMultisig(ctx, 999), store.ErrNotFound)
}

func TestRecordTransactionUpserts(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	ms := createMultisig(t, st, multisigAddr)

	require.NoError(t, st.RecordTransaction(ctx, pending(ms, "0xaa", time.Now())))
	again := pending(ms, "0xaa", time.Now())
	again.Note = "payroll"
	require.NoError(t, st.RecordTransaction(ctx, again))

	txs, err := st.GetPending(ctx, ms.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "payroll", txs[0].Note)
	assert.Equal(t, []string{alice}, txs[0].Approvals)
}

func TestApprovalsAndThreshold(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	ms := createMultisig(t, st, multisigAddr)
	require.NoError(t, st.RecordTransaction(ctx, pending(ms, "0xbb", time.Now())))

	approvals, err := st.AddApproval(ctx, 1, ms.ID, "0xbb", alicePolkadot)
	require.NoError(t, err)
	assert.Len(t, approvals, 1, "approving twice is a no-op")

	_, err = st.AddApproval(ctx, 1, ms.ID, "0xbb", dave)
	assert.ErrorIs(t, err, store.ErrNotSignatory)

	_, err = st.AddApproval(ctx, 1, ms.ID, "0xmissing", bob)
	assert.ErrorIs(t, err, store.ErrNotFound)

	txs, err := st.GetPending(ctx, ms.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	approvals, err = st.AddApproval(ctx, 1, ms.ID, "0xbb", bob)
	require.NoError(t, err)
	assert.Len(t, approvals, 2)
	assert.LessOrEqual(t, len(approvals), len(ms.Signatories))

	txs, err = st.GetPending(ctx, ms.ID)
	require.NoError(t, err)
	assert.Empty(t, txs, "threshold reached, row is no longer pending")
}

func TestMarkExecutedMovesToHistory(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	ms := createMultisig(t, st, multisigAddr)
	created := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, st.RecordTransaction(ctx, pending(ms, "0xcc", created)))
	require.NoError(t, st.RecordTransaction(ctx, pending(ms, "0xdd", created.Add(time.Minute))))

	h, err := st.MarkExecuted(ctx, 1, ms.ID, "0xcc", time.Now(), "52.50")
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecuted, h.Status)
	assert.Equal(t, multisigAddr, h.From)
	assert.Equal(t, "52.50", h.AmountUSD)

	_, err = st.MarkCancelled(ctx, 1, ms.ID, "0xdd", time.Now())
	require.NoError(t, err)

	_, err = st.PendingByHash(ctx, 1, ms.ID, "0xcc")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.MarkExecuted(ctx, 1, ms.ID, "0xcc", time.Now(), "")
	assert.ErrorIs(t, err, store.ErrNotFound)

	page, err := st.GetHistory(ctx, ms.ID, store.Page{Number: 1, Size: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "0xdd", page.Items[0].CallHash, "newest first")

	page, err = st.GetHistory(ctx, ms.ID, store.Page{Number: 2, Size: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "0xcc", page.Items[0].CallHash)
}

func TestSameCallHashOnTwoMultisigs(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	a := createMultisig(t, st, multisigAddr)
	b := createMultisig(t, st, otherMultisig)

	require.NoError(t, st.RecordTransaction(ctx, pending(a, "0xbbbb", time.Now())))
	require.NoError(t, st.RecordTransaction(ctx, pending(b, "0xbbbb", time.Now())))

	for _, ms := range []*types.Multisig{a, b} {
		txs, err := st.GetPending(ctx, ms.ID)
		require.NoError(t, err)
		require.Len(t, txs, 1, ms.Address)
		assert.Equal(t, ms.ID, txs[0].MultisigID)
	}

	approvals, err := st.AddApproval(ctx, 1, b.ID, "0xbbbb", bob)
	require.NoError(t, err)
	assert.Len(t, approvals, 2)
	tx, err := st.PendingByHash(ctx, 1, a.ID, "0xbbbb")
	require.NoError(t, err)
	assert.Equal(t, []string{alice}, tx.Approvals, "approving on one multisig leaves the other alone")

	h, err := st.MarkExecuted(ctx, 1, a.ID, "0xbbbb", time.Now(), "")
	require.NoError(t, err)
	assert.Equal(t, a.ID, h.MultisigID)
	_, err = st.PendingByHash(ctx, 1, b.ID, "0xbbbb")
	assert.NoError(t, err)
}

func TestSameCallExecutedTwice(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	ms := createMultisig(t, st, multisigAddr)

	first := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{first, first.AddDate(0, 1, 0)} {
		require.NoError(t, st.RecordTransaction(ctx, pending(ms, "0xaaaa", at)))
		_, err := st.MarkExecuted(ctx, 1, ms.ID, "0xaaaa", at.Add(time.Hour), "")
		require.NoError(t, err, "payment %d", i+1)
	}

	page, err := st.GetHistory(ctx, ms.ID, store.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	_, err = st.PendingByHash(ctx, 1, ms.ID, "0xaaaa")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFanOutIsolatesFailures(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	fetch := func(_ context.Context, id uint64) ([]types.PendingTransaction, error) {
		if id == 2 {
			return nil, errors.New("backend down")
		}
		return []types.PendingTransaction{
			{CallHash: "old", CreatedAt: base},
			{CallHash: "new", CreatedAt: base.Add(2 * time.Hour)},
			{CallHash: "mid", CreatedAt: base.Add(time.Hour)},
		}, nil
	}
	out := store.FanOut(context.Background(), zap.NewNop(), 2, []uint64{1, 2}, fetch,
		func(tx types.PendingTransaction) time.Time { return tx.CreatedAt })

	require.Len(t, out, 3)
	assert.Equal(t, "new", out[0].CallHash)
	assert.Equal(t, "mid", out[1].CallHash)
	assert.Equal(t, "old", out[2].CallHash)
}

func TestOrganisationFanOut(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	first := createMultisig(t, st, multisigAddr)
	second := createMultisig(t, st, otherMultisig)

	org, err := st.CreateOrganisation(ctx, "Stake Plus", alice, []string{bob, alicePolkadot})
	require.NoError(t, err)
	assert.Len(t, org.Members, 2)
	require.NoError(t, st.AddMultisigToOrganisation(ctx, org.ID, first.ID))
	require.NoError(t, st.AddMultisigToOrganisation(ctx, org.ID, second.ID))
	assert.ErrorIs(t, st.AddMultisigToOrganisation(ctx, "missing", first.ID), store.ErrNotFound)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.RecordTransaction(ctx, pending(first, "0x01", now.Add(-2*time.Minute))))
	require.NoError(t, st.RecordTransaction(ctx, pending(second, "0x02", now.Add(-time.Minute))))
	require.NoError(t, st.RecordTransaction(ctx, pending(first, "0x03", now)))

	txs, err := st.PendingForOrganisation(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, []string{"0x03", "0x02", "0x01"}, []string{txs[0].CallHash, txs[1].CallHash, txs[2].CallHash})

	loaded, err := st.GetOrganisation(ctx, org.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Multisigs, 2)

	m, err := st.Member(ctx, org.ID, alicePolkadot)
	require.NoError(t, err)
	assert.True(t, m.IsAdmin)
	_, err = st.Member(ctx, org.ID, dave)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddressBook(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	org, err := st.CreateOrganisation(ctx, "Stake Plus", alice, nil)
	require.NoError(t, err)

	require.NoError(t, st.AddToAddressBook(ctx, &types.AddressBookEntry{OrganisationID: org.ID, Address: bob, Name: "Bob"}))
	require.NoError(t, st.AddToAddressBook(ctx, &types.AddressBookEntry{OrganisationID: org.ID, Address: bob, Name: "Robert", Roles: []string{"ops", "ops"}}))
	assert.Error(t, st.AddToAddressBook(ctx, &types.AddressBookEntry{OrganisationID: org.ID, Address: "bad", Name: "x"}))

	book, err := st.AddressBook(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, book, 1)
	assert.Equal(t, "Robert", book[0].Name)
	assert.Equal(t, []string{"ops"}, book[0].Roles)

	require.NoError(t, st.RemoveFromAddressBook(ctx, org.ID, bob))
	assert.ErrorIs(t, st.RemoveFromAddressBook(ctx, org.ID, bob), store.ErrNotFound)
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	p, err := st.Preferences(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, p.ChannelPreferences)

	p.ChannelPreferences["email"] = types.ChannelPreference{Enabled: true, Handle: "a@example.com", Verified: true}
	p.TriggerPreferences["initiatedTransaction"] = types.TriggerPreference{Enabled: true}
	require.NoError(t, st.SavePreferences(ctx, p))

	got, err := st.Preferences(ctx, alicePolkadot)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.ChannelPreferences["email"].Handle)
	assert.True(t, got.TriggerPreferences["initiatedTransaction"].Enabled)
}
