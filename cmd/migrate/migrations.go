package main

import (
	"gorm.io/gorm"

	"github.com/instanti8/engine/internal/models"
)

// runMigrations executes all database migrations
func runMigrations(db *gorm.DB, driver string) error {
	// Run AutoMigrate for all models
	if err := db.AutoMigrate(models.All()...); err != nil {
		return err
	}
	if driver != "" && driver != "postgres" {
		return nil
	}

	// Run custom migrations
	return runCustomMigrations(db)
}

// runCustomMigrations handles schema changes AutoMigrate can't handle
func runCustomMigrations(db *gorm.DB) error {
	migrations := []func(*gorm.DB) error{
		addInflightDeploymentIndex,
		addStatusCheck,
	}

	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}

	return nil
}

// addInflightDeploymentIndex keeps lookups of held leases cheap.
func addInflightDeploymentIndex(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_infrastructures_inflight
		ON infrastructures(updated_at)
		WHERE status = 'deploying'
	`).Error
}

// addStatusCheck rejects statuses outside the state machine.
func addStatusCheck(db *gorm.DB) error {
	return db.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_infrastructures_status') THEN
				ALTER TABLE infrastructures ADD CONSTRAINT chk_infrastructures_status
				CHECK (status IN ('generated', 'deploying', 'deployed', 'failed'));
			END IF;
		END $$
	`).Error
}
