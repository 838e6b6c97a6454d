package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stake-plus/multisig-relay/src/chain"
	"github.com/stake-plus/multisig-relay/src/store"
	"github.com/stake-plus/multisig-relay/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeObserver map[string]store.Observation

func (f fakeObserver) Observe(_ context.Context, _ types.Network, _ *types.Multisig, tx *types.PendingTransaction) (store.Observation, error) {
	obs, ok := f[tx.CallHash]
	if !ok {
		return store.Observation{}, errors.New("relay unavailable")
	}
	return obs, nil
}

type fixedValuer string

func (v fixedValuer) USDValue(context.Context, types.Network, string) (string, error) {
	return string(v), nil
}

func TestReconcilerRunOnce(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	ms := createMultisig(t, st, multisigAddr)
	for _, h := range []string{"0x01", "0x02", "0x03", "0x04"} {
		require.NoError(t, st.RecordTransaction(ctx, pending(ms, h, time.Now())))
	}

	executedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	obs := fakeObserver{
		"0x01": {Executed: true, ExecutedAt: executedAt},
		"0x02": {Cancelled: true},
		"0x03": {Approvals: []string{alice, charlie}},
	}
	registry := chain.NewStaticRegistry([]types.Network{{ID: 1, Name: "polkadot", Family: types.FamilySubstrate, Active: true}})

	var closed []string
	onClosed := func(_ context.Context, _ types.Network, _ *types.Multisig, h *types.HistoricalTransaction) {
		closed = append(closed, h.CallHash+":"+h.Status)
	}
	r := store.NewReconciler(st, registry, obs, fixedValuer("52.50"), onClosed, time.Minute, zap.NewNop())

	n, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"0x01:executed", "0x02:cancelled"}, closed)

	page, err := st.GetHistory(ctx, ms.ID, store.Page{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	for _, h := range page.Items {
		if h.CallHash == "0x01" {
			assert.Equal(t, "52.50", h.AmountUSD)
			assert.True(t, h.ExecutedAt.Equal(executedAt))
		}
	}

	open, err := st.GetPending(ctx, ms.ID)
	require.NoError(t, err)
	assert.Len(t, open, 1, "0x03 reached threshold through the relay, 0x04 still open")
	assert.Equal(t, "0x04", open[0].CallHash)

	tx, err := st.PendingByHash(ctx, 1, ms.ID, "0x03")
	require.NoError(t, err)
	assert.Len(t, tx.Approvals, 2)
}

func TestReconcilerRunStopsWithContext(t *testing.T) {
	st := newStore(t)
	r := store.NewReconciler(st, chain.NewStaticRegistry(nil), fakeObserver{}, nil, nil, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop")
	}
}

func TestReconcilerRemindsWaitingSignatories(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	ms := createMultisig(t, st, multisigAddr)
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, st.RecordTransaction(ctx, pending(ms, "0x0a", old)))
	require.NoError(t, st.RecordTransaction(ctx, pending(ms, "0x0b", time.Now())))
	full := pending(ms, "0x0c", old)
	full.Approvals = []string{alice, bob}
	require.NoError(t, st.RecordTransaction(ctx, full))

	reminded := map[string][]string{}
	remind := func(_ context.Context, _ types.Network, _ *types.Multisig, tx *types.PendingTransaction, waiting []string) {
		reminded[tx.CallHash] = waiting
	}
	registry := chain.NewStaticRegistry([]types.Network{{ID: 1, Name: "polkadot", Family: types.FamilySubstrate, Active: true}})
	// the relay is down for every row; reminders work from stored approvals
	r := store.NewReconciler(st, registry, fakeObserver{}, nil, nil, time.Minute, zap.NewNop()).
		RemindAfter(24*time.Hour, remind)

	_, err := r.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, reminded, 1, "0x0b is too young, 0x0c already has enough approvals")
	assert.ElementsMatch(t, []string{bob, charlie}, reminded["0x0a"])

	tx, err := st.PendingByHash(ctx, 1, ms.ID, "0x0a")
	require.NoError(t, err)
	require.NotNil(t, tx.LastRemindedAt)

	reminded = map[string][]string{}
	_, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, reminded, "reminded at most once per interval")
}
