package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addBroadcastRunsCreatedAtIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_add_broadcast_runs_created_at_index",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_broadcast_runs_created_at ON broadcast_runs (created_at DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS idx_broadcast_runs_created_at`).Error
		},
	}
}
