// Package store persists multisigs, proposals, organisations, address books and
// notification preferences on top of gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound         = errors.New("store: not found")
	ErrInvalidMultisig  = errors.New("store: invalid multisig")
	ErrNotSignatory     = errors.New("store: address is not a signatory")
	ErrAlreadyExists    = errors.New("store: already exists")
	ErrInvalidThreshold = errors.New("store: invalid threshold")
)

const defaultFanout = 8

// Store is the persistence adapter used by the API and the proposal flow.
type Store struct {
	db     *gorm.DB
	cache  *PendingCache
	lg     *zap.Logger
	fanout int
}

// New returns a store. cache may be nil; fanout bounds concurrent
// per-multisig fetches for organisation queries.
func New(db *gorm.DB, cache *PendingCache, lg *zap.Logger, fanout int) *Store {
	if fanout <= 0 {
		fanout = defaultFanout
	}
	return &Store{db: db, cache: cache, lg: lg.Named("store"), fanout: fanout}
}

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// CreateMultisig stores ms with its signatories. minThreshold is the lowest
// threshold accepted; ms.Canonical and signatory canonicals are filled in.
func (s *Store) CreateMultisig(ctx context.Context, ms *types.Multisig, minThreshold int) error {
	if err := ValidateMultisig(ms, minThreshold); err != nil {
		return err
	}
	ms.Canonical = address.Canonical(ms.Address)
	for i := range ms.Signatories {
		ms.Signatories[i].Canonical = address.Canonical(ms.Signatories[i].Address)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&types.Multisig{}).
			Where("canonical = ? AND network_id = ?", ms.Canonical, ms.NetworkID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("multisig %s: %w", ms.Address, ErrAlreadyExists)
		}
		return tx.Create(ms).Error
	})
}

// ValidateMultisig checks addresses, duplicate signatories and
// minThreshold <= threshold <= len(signatories).
func ValidateMultisig(ms *types.Multisig, minThreshold int) error {
	if minThreshold < 1 {
		minThreshold = 1
	}
	if _, err := address.Decode(ms.Address); err != nil {
		return fmt.Errorf("%w: address: %v", ErrInvalidMultisig, err)
	}
	seen := make(map[string]struct{}, len(ms.Signatories))
	for _, sig := range ms.Signatories {
		if _, err := address.Decode(sig.Address); err != nil {
			return fmt.Errorf("%w: signatory %q: %v", ErrInvalidMultisig, sig.Address, err)
		}
		c := address.Canonical(sig.Address)
		if _, dup := seen[c]; dup {
			return fmt.Errorf("%w: duplicate signatory %s", ErrInvalidMultisig, sig.Address)
		}
		seen[c] = struct{}{}
	}
	if ms.Threshold < minThreshold || ms.Threshold > len(ms.Signatories) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidThreshold, ms.Threshold, len(ms.Signatories))
	}
	return nil
}

// MultisigByAddress finds a multisig on a network by any encoding of its address.
func (s *Store) MultisigByAddress(ctx context.Context, networkID uint16, addr string) (*types.Multisig, error) {
	var ms types.Multisig
	err := s.db.WithContext(ctx).Preload("Signatories").
		First(&ms, "canonical = ? AND network_id = ?", address.Canonical(addr), networkID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &ms, nil
}

func (s *Store) MultisigByID(ctx context.Context, id uint64) (*types.Multisig, error) {
	var ms types.Multisig
	if err := s.db.WithContext(ctx).Preload("Signatories").First(&ms, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &ms, nil
}

// MultisigsBySignatory returns the enabled multisigs addr signs for, across
// all networks.
func (s *Store) MultisigsBySignatory(ctx context.Context, addr string) ([]types.Multisig, error) {
	var ids []uint64
	if err := s.db.WithContext(ctx).Model(&types.MultisigSignatory{}).
		Where("canonical = ?", address.Canonical(addr)).
		Pluck("multisig_id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []types.Multisig{}, nil
	}
	var out []types.Multisig
	err := s.db.WithContext(ctx).Preload("Signatories").
		Where("id IN ? AND disabled = ?", lo.Uniq(ids), false).
		Order("id asc").Find(&out).Error
	return out, err
}

// UpdateMultisig changes the display name and proxy of a multisig.
func (s *Store) UpdateMultisig(ctx context.Context, id uint64, name, proxy string) (*types.Multisig, error) {
	res := s.db.WithContext(ctx).Model(&types.Multisig{}).Where("id = ?", id).
		Updates(map[string]interface{}{"name": strings.TrimSpace(name), "proxy_address": strings.TrimSpace(proxy)})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.MultisigByID(ctx, id)
}

func (s *Store) DisableMultisig(ctx context.Context, id uint64) error {
	res := s.db.WithContext(ctx).Model(&types.Multisig{}).Where("id = ?", id).Update("disabled", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IsSignatory reports whether addr signs for ms.
func IsSignatory(ms *types.Multisig, addr string) bool {
	c := address.Canonical(addr)
	return c != "" && lo.ContainsBy(ms.Signatories, func(s types.MultisigSignatory) bool {
		return s.Canonical == c
	})
}

// SavePreferences upserts a user's notification preferences.
func (s *Store) SavePreferences(ctx context.Context, p *types.NotificationPreferences) error {
	p.Canonical = address.Canonical(p.Address)
	if p.Canonical == "" {
		return fmt.Errorf("preferences: %w", address.ErrInvalidAddress)
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "canonical"}},
		DoUpdates: clause.AssignmentColumns([]string{"address", "channel_preferences", "trigger_preferences", "updated_at"}),
	}).Create(p).Error
}

// Preferences returns the stored preferences of addr, or empty ones.
func (s *Store) Preferences(ctx context.Context, addr string) (*types.NotificationPreferences, error) {
	c := address.Canonical(addr)
	p := types.NotificationPreferences{
		Canonical:          c,
		Address:            addr,
		ChannelPreferences: map[string]types.ChannelPreference{},
		TriggerPreferences: map[string]types.TriggerPreference{},
	}
	err := s.db.WithContext(ctx).First(&p, "canonical = ?", c).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if p.ChannelPreferences == nil {
		p.ChannelPreferences = map[string]types.ChannelPreference{}
	}
	if p.TriggerPreferences == nil {
		p.TriggerPreferences = map[string]types.TriggerPreference{}
	}
	return &p, nil
}
