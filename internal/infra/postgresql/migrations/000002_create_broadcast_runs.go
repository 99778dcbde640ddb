package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/Er1one/telegram-bot-template/internal/repository"
)

func createBroadcastRunsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_broadcast_runs",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BroadcastRunModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_broadcast_runs_status ON broadcast_runs (status) WHERE status IN ('QUEUED', 'RUNNING')`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BroadcastRunModel{})
		},
	}
}
