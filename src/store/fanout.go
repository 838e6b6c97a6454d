package store

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/stake-plus/multisig-relay/src/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FanOut calls fetch once per multisig with at most limit calls in flight.
// A failing fetch is logged and contributes nothing; the merged result is
// sorted by created time, newest first.
func FanOut[T any](ctx context.Context, lg *zap.Logger, limit int, ids []uint64,
	fetch func(context.Context, uint64) ([]T, error), created func(T) time.Time) []T {

	parts := make([][]T, len(ids))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			items, err := fetch(ctx, id)
			if err != nil {
				lg.Warn("multisig fetch failed", zap.Uint64("multisig_id", id), zap.Error(err))
				return nil
			}
			parts[i] = items
			return nil
		})
	}
	_ = g.Wait()

	out := lo.Flatten(parts)
	sort.SliceStable(out, func(a, b int) bool {
		return created(out[a]).After(created(out[b]))
	})
	return out
}

// PendingForOrganisation merges the pending transactions of every multisig
// in an organisation.
func (s *Store) PendingForOrganisation(ctx context.Context, orgID string) ([]types.PendingTransaction, error) {
	ids, err := s.OrganisationMultisigIDs(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return FanOut(ctx, s.lg, s.fanout, ids, s.GetPending,
		func(tx types.PendingTransaction) time.Time { return tx.CreatedAt }), nil
}

// HistoryForOrganisation merges one history page of every multisig in an
// organisation.
func (s *Store) HistoryForOrganisation(ctx context.Context, orgID string, page Page) ([]types.HistoricalTransaction, error) {
	ids, err := s.OrganisationMultisigIDs(ctx, orgID)
	if err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context, id uint64) ([]types.HistoricalTransaction, error) {
		p, err := s.GetHistory(ctx, id, page)
		if err != nil {
			return nil, err
		}
		return p.Items, nil
	}
	return FanOut(ctx, s.lg, s.fanout, ids, fetch,
		func(tx types.HistoricalTransaction) time.Time { return tx.CreatedAt }), nil
}
