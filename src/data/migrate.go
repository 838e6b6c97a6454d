package data

import (
	"fmt"

	"github.com/stake-plus/multisig-relay/src/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Tables in drop order (children first).
var dropOrder = []string{
	"notification_preferences", "address_book_entries",
	"historical_transactions", "pending_transactions",
	"multisig_signatories", "multisigs",
	"org_members", "organisations",
	"settings", "network_rpcs", "networks",
}

// Indexes from earlier schemas. AutoMigrate adds indexes but never drops
// them, and these unique ones reject rows the current schema allows.
var staleIndexes = []struct {
	model interface{}
	name  string
}{
	{&types.PendingTransaction{}, "idx_pending_hash"},
	{&types.HistoricalTransaction{}, "idx_history_hash"},
}

// Migrate runs AutoMigrate for every model. When the first attempt fails and
// dropOnFailure is set the schema is dropped and recreated.
func Migrate(db *gorm.DB, lg *zap.Logger, dropOnFailure bool) error {
	err := db.AutoMigrate(types.AllModels...)
	if err == nil {
		return dropStaleIndexes(db, lg)
	}
	if !dropOnFailure {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	lg.Warn("auto-migrate failed, dropping and recreating schema", zap.Error(err))
	for _, table := range dropOrder {
		_ = db.Migrator().DropTable(table)
	}
	if err := db.AutoMigrate(types.AllModels...); err != nil {
		return fmt.Errorf("migrate after drop: %w", err)
	}
	return nil
}

func dropStaleIndexes(db *gorm.DB, lg *zap.Logger) error {
	m := db.Migrator()
	for _, idx := range staleIndexes {
		if !m.HasIndex(idx.model, idx.name) {
			continue
		}
		if err := m.DropIndex(idx.model, idx.name); err != nil {
			return fmt.Errorf("drop index %s: %w", idx.name, err)
		}
		lg.Info("dropped stale index", zap.String("index", idx.name))
	}
	return nil
}
