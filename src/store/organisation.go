package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateOrganisation creates an organisation with creator as its admin.
func (s *Store) CreateOrganisation(ctx context.Context, name, creator string, members []string) (*types.Organisation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("organisation name required")
	}
	org := types.Organisation{ID: uuid.NewString(), Name: name}
	org.Members = append(org.Members, types.OrgMember{
		Canonical: address.Canonical(creator), Address: creator, IsAdmin: true,
	})
	for _, m := range lo.Uniq(members) {
		c := address.Canonical(m)
		if c == "" {
			return nil, fmt.Errorf("member %q: %w", m, address.ErrInvalidAddress)
		}
		if c == org.Members[0].Canonical {
			continue
		}
		org.Members = append(org.Members, types.OrgMember{Canonical: c, Address: m})
	}
	if err := s.db.WithContext(ctx).Create(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// GetOrganisation loads an organisation with members, multisigs and address book.
func (s *Store) GetOrganisation(ctx context.Context, id string) (*types.Organisation, error) {
	var org types.Organisation
	err := s.db.WithContext(ctx).
		Preload("Members").
		Preload("Multisigs", "disabled = ?", false).
		Preload("Multisigs.Signatories").
		Preload("AddressBook", func(db *gorm.DB) *gorm.DB { return db.Order("name asc") }).
		First(&org, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &org, nil
}

// OrganisationsFor lists the organisations addr is a member of.
func (s *Store) OrganisationsFor(ctx context.Context, addr string) ([]types.Organisation, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&types.OrgMember{}).
		Where("canonical = ?", address.Canonical(addr)).
		Pluck("organisation_id", &ids).Error; err != nil {
		return nil, err
	}
	out := []types.Organisation{}
	if len(ids) == 0 {
		return out, nil
	}
	err := s.db.WithContext(ctx).Preload("Members").Where("id IN ?", ids).Order("name asc").Find(&out).Error
	return out, err
}

// Member returns the membership of addr in an organisation.
func (s *Store) Member(ctx context.Context, orgID, addr string) (*types.OrgMember, error) {
	var m types.OrgMember
	err := s.db.WithContext(ctx).
		First(&m, "organisation_id = ? AND canonical = ?", orgID, address.Canonical(addr)).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// AddMultisigToOrganisation attaches an existing multisig to an organisation.
func (s *Store) AddMultisigToOrganisation(ctx context.Context, orgID string, multisigID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var org types.Organisation
		if err := tx.First(&org, "id = ?", orgID).Error; err != nil {
			return notFound(err)
		}
		res := tx.Model(&types.Multisig{}).Where("id = ?", multisigID).Update("organisation_id", orgID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// OrganisationMultisigIDs returns the enabled multisigs of an organisation.
func (s *Store) OrganisationMultisigIDs(ctx context.Context, orgID string) ([]uint64, error) {
	var ids []uint64
	err := s.db.WithContext(ctx).Model(&types.Multisig{}).
		Where("organisation_id = ? AND disabled = ?", orgID, false).
		Order("id asc").Pluck("id", &ids).Error
	return ids, err
}

// AddToAddressBook inserts or updates the entry keyed by organisation and address.
func (s *Store) AddToAddressBook(ctx context.Context, e *types.AddressBookEntry) error {
	e.Canonical = address.Canonical(e.Address)
	if e.Canonical == "" {
		return fmt.Errorf("address book: %w", address.ErrInvalidAddress)
	}
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("address book: name required")
	}
	e.Roles = lo.Uniq(e.Roles)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "organisation_id"}, {Name: "canonical"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"address", "name", "nick_name", "email", "discord", "telegram", "roles", "updated_at",
		}),
	}).Create(e).Error
}

func (s *Store) RemoveFromAddressBook(ctx context.Context, orgID, addr string) error {
	res := s.db.WithContext(ctx).
		Where("organisation_id = ? AND canonical = ?", orgID, address.Canonical(addr)).
		Delete(&types.AddressBookEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddressBook lists an organisation's entries sorted by name.
func (s *Store) AddressBook(ctx context.Context, orgID string) ([]types.AddressBookEntry, error) {
	out := []types.AddressBookEntry{}
	err := s.db.WithContext(ctx).Where("organisation_id = ?", orgID).Order("name asc").Find(&out).Error
	return out, err
}
