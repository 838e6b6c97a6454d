package types

import "time"

// Chain families
const (
	FamilySubstrate = "substrate"
	FamilyEVM       = "evm"
)

// Transaction statuses
const (
	StatusPending   = "pending"
	StatusExecuted  = "executed"
	StatusCancelled = "cancelled"
)

// Networks
type Network struct {
	ID             uint16       `gorm:"primaryKey"`
	Name           string       `gorm:"size:32;uniqueIndex;not null"`
	DisplayName    string       `gorm:"size:64"`
	Family         string       `gorm:"size:16;not null"`
	Symbol         string       `gorm:"size:16;not null"`
	Decimals       int32        `gorm:"not null"`
	SS58Prefix     uint16       `gorm:"not null"`
	ChainID        int64        `gorm:"not null"`
	ExplorerURL    string       `gorm:"size:256"`
	SafeServiceURL string       `gorm:"size:256"`
	PriceID        string       `gorm:"size:64"` // price oracle asset id, e.g. "polkadot"
	Active         bool         `gorm:"default:true"`
	RPCs           []NetworkRPC `gorm:"foreignKey:NetworkID"`
}

// Network RPC endpoints
type NetworkRPC struct {
	ID        uint32 `gorm:"primaryKey"`
	NetworkID uint16 `gorm:"index"`
	URL       string `gorm:"size:256;not null"`
	Active    bool   `gorm:"default:true"`
}

// Settings
type Setting struct {
	ID    uint32 `gorm:"primaryKey"`
	Name  string `gorm:"size:64;uniqueIndex;not null"`
	Value string `gorm:"type:text;not null"`
}

// Multisig accounts linked or created through the dashboard. Rows are never
// deleted, only disabled.
type Multisig struct {
	ID             uint64              `gorm:"primaryKey"`
	Address        string              `gorm:"size:128;not null"`
	Canonical      string              `gorm:"size:128;uniqueIndex:idx_multisig_net;not null"`
	NetworkID      uint16              `gorm:"uniqueIndex:idx_multisig_net;not null"`
	Name           string              `gorm:"size:128"`
	Threshold      int                 `gorm:"not null"`
	ProxyAddress   string              `gorm:"size:128"`
	Disabled       bool                `gorm:"default:false"`
	OrganisationID *string             `gorm:"size:36;index"`
	Signatories    []MultisigSignatory `gorm:"foreignKey:MultisigID"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Signatories of a multisig
type MultisigSignatory struct {
	MultisigID uint64 `gorm:"primaryKey"`
	Canonical  string `gorm:"primaryKey;size:128"`
	Address    string `gorm:"size:128;not null"`
}

// SignatoryAddresses returns the addresses in insertion order.
func (m Multisig) SignatoryAddresses() []string {
	out := make([]string, 0, len(m.Signatories))
	for _, s := range m.Signatories {
		out = append(out, s.Address)
	}
	return out
}

// Proposed transactions waiting for approvals. Call hashes are unique per
// multisig only: two multisigs can propose the same call.
type PendingTransaction struct {
	ID                uint64            `gorm:"primaryKey"`
	NetworkID         uint16            `gorm:"uniqueIndex:idx_pending_multisig_call,priority:1;not null"`
	MultisigID        uint64            `gorm:"uniqueIndex:idx_pending_multisig_call,priority:2;index;not null"`
	CallHash          string            `gorm:"size:80;uniqueIndex:idx_pending_multisig_call,priority:3;not null"`
	CallData          string            `gorm:"type:text"`
	To                string            `gorm:"size:128"`
	Value             string            `gorm:"size:80"`
	Proposer          string            `gorm:"size:128;not null"`
	Approvals         []string          `gorm:"serializer:json;type:text"`
	Threshold         int               `gorm:"not null"`
	Status            string            `gorm:"size:16;index;not null"`
	Nonce             *uint64           `gorm:"default:null"`
	Note              string            `gorm:"type:text"`
	Category          string            `gorm:"size:64"`
	TransactionFields map[string]string `gorm:"serializer:json;type:text"`
	LastRemindedAt    *time.Time        `gorm:"default:null"`
	CreatedAt         time.Time         `gorm:"index"`
	UpdatedAt         time.Time
}

// Executed or cancelled transactions; written once. The same call can be
// executed again later, so call hashes repeat here.
type HistoricalTransaction struct {
	ID                uint64            `gorm:"primaryKey"`
	NetworkID         uint16            `gorm:"index:idx_history_call;not null"`
	CallHash          string            `gorm:"size:80;index:idx_history_call;not null"`
	MultisigID        uint64            `gorm:"index;not null"`
	From              string            `gorm:"size:128;not null"`
	To                string            `gorm:"size:128"`
	AmountToken       string            `gorm:"size:80"`
	AmountUSD         string            `gorm:"size:40"`
	Approvals         []string          `gorm:"serializer:json;type:text"`
	Status            string            `gorm:"size:16;not null"`
	Note              string            `gorm:"type:text"`
	Category          string            `gorm:"size:64"`
	TransactionFields map[string]string `gorm:"serializer:json;type:text"`
	CreatedAt         time.Time         `gorm:"index"`
	ExecutedAt        time.Time         `gorm:"index"`
}

// Organisations group multisigs and share an address book.
type Organisation struct {
	ID          string             `gorm:"primaryKey;size:36"`
	Name        string             `gorm:"size:128;not null"`
	Members     []OrgMember        `gorm:"foreignKey:OrganisationID"`
	Multisigs   []Multisig         `gorm:"foreignKey:OrganisationID"`
	AddressBook []AddressBookEntry `gorm:"foreignKey:OrganisationID"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Organisation members
type OrgMember struct {
	OrganisationID string `gorm:"primaryKey;size:36"`
	Canonical      string `gorm:"primaryKey;size:128"`
	Address        string `gorm:"size:128;not null"`
	IsAdmin        bool   `gorm:"default:false"`
}

// Address book entries, unique per organisation by canonical address.
type AddressBookEntry struct {
	ID             uint64   `gorm:"primaryKey"`
	OrganisationID string   `gorm:"size:36;uniqueIndex:idx_book_addr;not null"`
	Canonical      string   `gorm:"size:128;uniqueIndex:idx_book_addr;not null"`
	Address        string   `gorm:"size:128;not null"`
	Name           string   `gorm:"size:128;not null"`
	NickName       string   `gorm:"size:128"`
	Email          string   `gorm:"size:256"`
	Discord        string   `gorm:"size:64"`
	Telegram       string   `gorm:"size:64"`
	Roles          []string `gorm:"serializer:json;type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ChannelPreference holds the settings of one delivery channel.
type ChannelPreference struct {
	Enabled  bool   `json:"enabled"`
	Handle   string `json:"handle"`
	Verified bool   `json:"verified"`
}

// TriggerPreference holds the settings of one notification trigger.
type TriggerPreference struct {
	Enabled bool              `json:"enabled"`
	Params  map[string]string `json:"params,omitempty"`
}

// Per-user notification settings
type NotificationPreferences struct {
	Canonical          string                       `gorm:"primaryKey;size:128"`
	Address            string                       `gorm:"size:128;not null"`
	ChannelPreferences map[string]ChannelPreference `gorm:"serializer:json;type:text"`
	TriggerPreferences map[string]TriggerPreference `gorm:"serializer:json;type:text"`
	UpdatedAt          time.Time
}

// AllModels lists every table managed by AutoMigrate.
var AllModels = []interface{}{
	&Network{}, &NetworkRPC{}, &Setting{},
	&Organisation{}, &OrgMember{},
	&Multisig{}, &MultisigSignatory{},
	&PendingTransaction{}, &HistoricalTransaction{},
	&AddressBookEntry{}, &NotificationPreferences{},
}
