package store

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/stake-plus/multisig-relay/src/types"
	"go.uber.org/zap"
)

// Observation is what a relay reports about a pending transaction.
type Observation struct {
	Approvals  []string
	Executed   bool
	Cancelled  bool
	ExecutedAt time.Time
}

// Observer queries the relay of a network for the state of a proposal.
type Observer interface {
	Observe(ctx context.Context, n types.Network, ms *types.Multisig, tx *types.PendingTransaction) (Observation, error)
}

// Valuer prices an amount in smallest units at execution time.
type Valuer interface {
	USDValue(ctx context.Context, n types.Network, smallest string) (string, error)
}

// Networks resolves network metadata by ID.
type Networks interface {
	ByID(id uint16) (types.Network, error)
}

// ClosedFunc is called after a pending row moves to history.
type ClosedFunc func(ctx context.Context, n types.Network, ms *types.Multisig, h *types.HistoricalTransaction)

// RemindFunc is called with the signatories that have not approved a row
// left pending longer than the reminder interval.
type RemindFunc func(ctx context.Context, n types.Network, ms *types.Multisig, tx *types.PendingTransaction, waiting []string)

// Reconciler periodically refreshes pending rows from their relays and moves
// executed or cancelled rows to history.
type Reconciler struct {
	store    *Store
	networks Networks
	observer Observer
	valuer   Valuer
	onClosed ClosedFunc
	interval time.Duration
	lg       *zap.Logger
	now      func() time.Time

	remind      RemindFunc
	remindEvery time.Duration
}

// NewReconciler returns a reconciler. valuer and onClosed may be nil.
func NewReconciler(st *Store, networks Networks, observer Observer, valuer Valuer, onClosed ClosedFunc,
	interval time.Duration, lg *zap.Logger) *Reconciler {
	return &Reconciler{
		store:    st,
		networks: networks,
		observer: observer,
		valuer:   valuer,
		onClosed: onClosed,
		interval: interval,
		lg:       lg.Named("reconciler"),
		now:      time.Now,
	}
}

// RemindAfter enables approval reminders for rows pending longer than every.
// A row is reminded again at most once per every.
func (r *Reconciler) RemindAfter(every time.Duration, fn RemindFunc) *Reconciler {
	r.remindEvery, r.remind = every, fn
	return r
}

// Run reconciles every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.lg.Info("reconciler started", zap.Duration("interval", r.interval))
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.lg.Error("reconcile pass", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			r.lg.Info("reconciler stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce reconciles all pending rows and returns how many were closed.
// Per-row relay errors are logged and skipped. Rows that stay open are
// reminded when due.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	rows, err := r.store.AllPending(ctx)
	if err != nil {
		return 0, err
	}
	closed := 0
	for i := range rows {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		tx := &rows[i]
		lg := r.lg.With(zap.String("call_hash", tx.CallHash), zap.Uint16("network_id", tx.NetworkID))

		n, err := r.networks.ByID(tx.NetworkID)
		if err != nil {
			lg.Warn("unknown network", zap.Error(err))
			continue
		}
		ms, err := r.store.MultisigByID(ctx, tx.MultisigID)
		if err != nil {
			lg.Warn("multisig lookup", zap.Error(err))
			continue
		}
		obs, err := r.observer.Observe(ctx, n, ms, tx)
		if err != nil {
			lg.Warn("relay query failed", zap.Error(err))
			r.remindIfDue(ctx, n, ms, tx, lg)
			continue
		}
		if len(obs.Approvals) > 0 && !sameAddresses(obs.Approvals, tx.Approvals) {
			if err := r.store.SetApprovals(ctx, tx, obs.Approvals); err != nil {
				lg.Warn("update approvals", zap.Error(err))
			}
		}

		var h *types.HistoricalTransaction
		switch {
		case obs.Executed:
			at := obs.ExecutedAt
			if at.IsZero() {
				at = r.now()
			}
			h, err = r.store.MarkExecuted(ctx, tx.NetworkID, tx.MultisigID, tx.CallHash, at, r.usd(ctx, n, tx.Value))
		case obs.Cancelled:
			h, err = r.store.MarkCancelled(ctx, tx.NetworkID, tx.MultisigID, tx.CallHash, r.now())
		default:
			r.remindIfDue(ctx, n, ms, tx, lg)
			continue
		}
		if err != nil {
			lg.Error("move to history", zap.Error(err))
			continue
		}
		closed++
		lg.Info("transaction closed", zap.String("status", h.Status))
		if r.onClosed != nil {
			r.onClosed(ctx, n, ms, h)
		}
	}
	return closed, nil
}

func (r *Reconciler) remindIfDue(ctx context.Context, n types.Network, ms *types.Multisig, tx *types.PendingTransaction, lg *zap.Logger) {
	if r.remind == nil || r.remindEvery <= 0 || len(tx.Approvals) >= tx.Threshold {
		return
	}
	since := tx.CreatedAt
	if tx.LastRemindedAt != nil && tx.LastRemindedAt.After(since) {
		since = *tx.LastRemindedAt
	}
	now := r.now()
	if now.Sub(since) < r.remindEvery {
		return
	}
	waiting := waitingSignatories(ms, tx.Approvals)
	if len(waiting) == 0 {
		return
	}
	if err := r.store.MarkReminded(ctx, tx, now); err != nil {
		lg.Warn("mark reminded", zap.Error(err))
		return
	}
	lg.Info("approval reminder", zap.Int("waiting", len(waiting)))
	r.remind(ctx, n, ms, tx, waiting)
}

// waitingSignatories returns the signatories of ms missing from approvals.
func waitingSignatories(ms *types.Multisig, approvals []string) []string {
	approved := lo.SliceToMap(approvals, func(a string) (string, struct{}) {
		return canonicalOr(a), struct{}{}
	})
	return lo.FilterMap(ms.Signatories, func(s types.MultisigSignatory, _ int) (string, bool) {
		_, ok := approved[canonicalOr(s.Address)]
		return s.Address, !ok
	})
}

func (r *Reconciler) usd(ctx context.Context, n types.Network, value string) string {
	if r.valuer == nil || value == "" {
		return ""
	}
	v, err := r.valuer.USDValue(ctx, n, value)
	if err != nil {
		r.lg.Debug("usd value unavailable", zap.String("network", n.Name), zap.Error(err))
		return ""
	}
	return v
}

func sameAddresses(a, b []string) bool {
	a, b = dedupeAddresses(a), dedupeAddresses(b)
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		set[canonicalOr(x)] = struct{}{}
	}
	for _, y := range b {
		if _, ok := set[canonicalOr(y)]; !ok {
			return false
		}
	}
	return true
}
