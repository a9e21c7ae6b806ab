package db

import (
	"fmt"

	"github.com/zulandar/skimmer/internal/config"
	"github.com/zulandar/skimmer/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.StoreEntry{},
		&models.Run{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Open connects and migrates in one step.
func Open(store config.StoreConfig) (*gorm.DB, error) {
	gdb, err := Connect(store)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}
