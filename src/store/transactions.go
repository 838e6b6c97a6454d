package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects a 1-based page of results.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"pageSize"`
}

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Size
}

// HistoryPage is one page of history plus the total row count.
type HistoryPage struct {
	Items []types.HistoricalTransaction `json:"items"`
	Total int64                         `json:"total"`
	Page  Page                          `json:"page"`
}

// RecordTransaction inserts tx or, when the multisig already has a row with
// the same call hash on the network, updates it in place. Approvals are
// deduplicated.
func (s *Store) RecordTransaction(ctx context.Context, tx *types.PendingTransaction) error {
	if tx.CallHash == "" || tx.NetworkID == 0 || tx.MultisigID == 0 {
		return fmt.Errorf("record transaction: missing call hash, network or multisig")
	}
	if tx.Status == "" {
		tx.Status = types.StatusPending
	}
	tx.Approvals = dedupeAddresses(tx.Approvals)

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "network_id"}, {Name: "multisig_id"}, {Name: "call_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"call_data", "to", "value", "approvals", "threshold", "status",
			"nonce", "note", "category", "transaction_fields", "updated_at",
		}),
	}).Create(tx).Error
	if err != nil {
		return fmt.Errorf("record transaction %s: %w", tx.CallHash, err)
	}
	s.invalidate(ctx, tx.MultisigID)
	return nil
}

const pendingWhere = "network_id = ? AND multisig_id = ? AND call_hash = ?"

// PendingByHash returns a multisig's pending row for a call hash.
func (s *Store) PendingByHash(ctx context.Context, networkID uint16, multisigID uint64, callHash string) (*types.PendingTransaction, error) {
	var tx types.PendingTransaction
	err := s.db.WithContext(ctx).
		Where(pendingWhere, networkID, multisigID, callHash).
		First(&tx, "status = ?", types.StatusPending).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &tx, nil
}

// AddApproval records signer's approval. Approving twice is a no-op and only
// signatories of the multisig may approve. The resulting approvals are returned.
func (s *Store) AddApproval(ctx context.Context, networkID uint16, multisigID uint64, callHash, signer string) ([]string, error) {
	var approvals []string
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var tx types.PendingTransaction
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(pendingWhere, networkID, multisigID, callHash).
			First(&tx, "status = ?", types.StatusPending).Error; err != nil {
			return notFound(err)
		}

		var ms types.Multisig
		if err := db.Preload("Signatories").First(&ms, tx.MultisigID).Error; err != nil {
			return notFound(err)
		}
		if !IsSignatory(&ms, signer) {
			return fmt.Errorf("%s: %w", signer, ErrNotSignatory)
		}
		for _, a := range tx.Approvals {
			if address.Equal(a, signer) {
				approvals = tx.Approvals
				return nil
			}
		}
		approvals = append(tx.Approvals, signer)
		return db.Model(&tx).Update("approvals", approvals).Error
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, multisigID)
	return approvals, nil
}

// SetApprovals replaces the approvals of a pending row with those observed on
// the relay.
func (s *Store) SetApprovals(ctx context.Context, tx *types.PendingTransaction, approvals []string) error {
	approvals = dedupeAddresses(approvals)
	if err := s.db.WithContext(ctx).Model(tx).Update("approvals", approvals).Error; err != nil {
		return err
	}
	tx.Approvals = approvals
	s.invalidate(ctx, tx.MultisigID)
	return nil
}

// MarkReminded records when the waiting signatories of tx were last reminded.
func (s *Store) MarkReminded(ctx context.Context, tx *types.PendingTransaction, at time.Time) error {
	if err := s.db.WithContext(ctx).Model(tx).Update("last_reminded_at", at).Error; err != nil {
		return err
	}
	tx.LastRemindedAt = &at
	s.invalidate(ctx, tx.MultisigID)
	return nil
}

// GetPending lists the open proposals of a multisig, newest first. Rows whose
// approvals already reached the threshold are left out.
func (s *Store) GetPending(ctx context.Context, multisigID uint64) ([]types.PendingTransaction, error) {
	if s.cache != nil {
		if txs, ok := s.cache.Get(ctx, multisigID); ok {
			return txs, nil
		}
	}

	var rows []types.PendingTransaction
	if err := s.db.WithContext(ctx).
		Where("multisig_id = ? AND status = ?", multisigID, types.StatusPending).
		Order("created_at desc").Order("id desc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.PendingTransaction, 0, len(rows))
	for _, r := range rows {
		if len(r.Approvals) < r.Threshold {
			out = append(out, r)
		}
	}

	if s.cache != nil {
		s.cache.Set(ctx, multisigID, out)
	}
	return out, nil
}

// AllPending returns every open row, oldest first.
func (s *Store) AllPending(ctx context.Context) ([]types.PendingTransaction, error) {
	var rows []types.PendingTransaction
	err := s.db.WithContext(ctx).Where("status = ?", types.StatusPending).
		Order("created_at asc").Find(&rows).Error
	return rows, err
}

// GetHistory returns one page of executed and cancelled transactions, newest first.
func (s *Store) GetHistory(ctx context.Context, multisigID uint64, page Page) (*HistoryPage, error) {
	page = page.normalize()
	scope := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&types.HistoricalTransaction{}).Where("multisig_id = ?", multisigID)
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, err
	}
	items := []types.HistoricalTransaction{}
	if err := scope().Order("created_at desc").Order("id desc").
		Offset(page.offset()).Limit(page.Size).Find(&items).Error; err != nil {
		return nil, err
	}
	return &HistoryPage{Items: items, Total: total, Page: page}, nil
}

// MarkExecuted moves a multisig's pending row to history as executed.
func (s *Store) MarkExecuted(ctx context.Context, networkID uint16, multisigID uint64, callHash string, executedAt time.Time, usd string) (*types.HistoricalTransaction, error) {
	return s.close(ctx, networkID, multisigID, callHash, types.StatusExecuted, executedAt, usd)
}

// MarkCancelled moves a multisig's pending row to history as cancelled.
func (s *Store) MarkCancelled(ctx context.Context, networkID uint16, multisigID uint64, callHash string, at time.Time) (*types.HistoricalTransaction, error) {
	return s.close(ctx, networkID, multisigID, callHash, types.StatusCancelled, at, "")
}

func (s *Store) close(ctx context.Context, networkID uint16, multisigID uint64, callHash, status string, at time.Time, usd string) (*types.HistoricalTransaction, error) {
	var h types.HistoricalTransaction
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var tx types.PendingTransaction
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&tx, pendingWhere, networkID, multisigID, callHash).Error; err != nil {
			return notFound(err)
		}
		var ms types.Multisig
		if err := db.First(&ms, tx.MultisigID).Error; err != nil {
			return notFound(err)
		}

		h = types.HistoricalTransaction{
			NetworkID:         tx.NetworkID,
			CallHash:          tx.CallHash,
			MultisigID:        tx.MultisigID,
			From:              ms.Address,
			To:                tx.To,
			AmountToken:       tx.Value,
			AmountUSD:         usd,
			Approvals:         tx.Approvals,
			Status:            status,
			Note:              tx.Note,
			Category:          tx.Category,
			TransactionFields: tx.TransactionFields,
			CreatedAt:         tx.CreatedAt,
			ExecutedAt:        at,
		}
		if err := db.Create(&h).Error; err != nil {
			return err
		}
		return db.Delete(&tx).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("close %s: %w", callHash, err)
		}
		return nil, err
	}
	s.invalidate(ctx, h.MultisigID)
	return &h, nil
}

func (s *Store) invalidate(ctx context.Context, multisigID uint64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, multisigID)
	}
}

func dedupeAddresses(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, a := range in {
		c := canonicalOr(a)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, a)
	}
	return out
}

func canonicalOr(a string) string {
	if c := address.Canonical(a); c != "" {
		return c
	}
	return a
}
