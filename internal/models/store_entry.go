package models

import "time"

// StoreEntry is one key of the extractor's persisted key-value store.
type StoreEntry struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:longtext"`
	UpdatedAt time.Time
}
