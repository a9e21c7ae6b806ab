package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/skimmer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormKV stores keys as models.StoreEntry rows.
type GormKV struct {
	db *gorm.DB
}

// NewGormKV wraps a migrated database.
func NewGormKV(db *gorm.DB) *GormKV {
	return &GormKV{db: db}
}

func (g *GormKV) Get(ctx context.Context, key string) ([]byte, error) {
	var e models.StoreEntry
	err := g.db.WithContext(ctx).Where(&models.StoreEntry{Key: key}).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("persist: get %s: %w", key, err)
	}
	return []byte(e.Value), nil
}

func (g *GormKV) Set(ctx context.Context, key string, value []byte) error {
	e := models.StoreEntry{Key: key, Value: string(value), UpdatedAt: time.Now()}
	result := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e)
	if result.Error != nil {
		return fmt.Errorf("persist: set %s: %w", key, result.Error)
	}
	return nil
}

func (g *GormKV) Delete(ctx context.Context, keys ...string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, k := range keys {
			if err := tx.Where(&models.StoreEntry{Key: k}).Delete(&models.StoreEntry{}).Error; err != nil {
				return fmt.Errorf("persist: delete %s: %w", k, err)
			}
		}
		return nil
	})
}
