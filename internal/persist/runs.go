package persist

import (
	"context"
	"fmt"

	"github.com/zulandar/skimmer/internal/models"
	"gorm.io/gorm"
)

// GormRuns keeps the run history in the runs table.
type GormRuns struct {
	db *gorm.DB
}

// NewGormRuns wraps a migrated database.
func NewGormRuns(db *gorm.DB) *GormRuns {
	return &GormRuns{db: db}
}

// SaveRun inserts or updates run by ID.
func (g *GormRuns) SaveRun(ctx context.Context, run models.Run) error {
	if err := g.db.WithContext(ctx).Save(&run).Error; err != nil {
		return fmt.Errorf("persist: save run %s: %w", run.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (g *GormRuns) Recent(ctx context.Context, limit int) ([]models.Run, error) {
	var runs []models.Run
	err := g.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("persist: list runs: %w", err)
	}
	return runs, nil
}
