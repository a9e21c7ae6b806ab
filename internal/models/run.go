package models

import "time"

// Run records one extraction session.
type Run struct {
	ID          string `gorm:"primaryKey;size:36"`
	ChannelID   string `gorm:"size:32;index"`
	ChannelName string `gorm:"size:128"`
	Phase       string `gorm:"size:16;index"`
	Messages    int
	Threads     int
	RangeFrom   string    `gorm:"size:32"`
	RangeTo     string    `gorm:"size:32"`
	Error       string    `gorm:"type:text"`
	StartedAt   time.Time `gorm:"index"`
	FinishedAt  *time.Time
}
