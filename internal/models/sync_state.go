package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncState tracks per-scope ingestion progress (scope is "<source>:<sport>").
// StatsJSON holds the last cycle's created/updated/errors counters so the
// status endpoint can report them without recomputing.
type SyncState struct {
	Scope         string         `gorm:"primaryKey;type:varchar(64)"`
	Cursor        *string        `gorm:"type:text"`
	WatermarkTS   *time.Time     `gorm:"type:timestamptz"`
	LastSuccessAt *time.Time     `gorm:"type:timestamptz"`
	LastAttemptAt *time.Time     `gorm:"type:timestamptz"`
	LastError     *string        `gorm:"type:text"`
	StatsJSON     datatypes.JSON `gorm:"type:jsonb"`
}

func (SyncState) TableName() string {
	return "sync_state"
}
