package models

import (
	"time"

	"gorm.io/datatypes"
)

// EventLog is the append-only store of every published domain event.
// Seq is assigned by the database and is the replay/audit ordering key;
// EventID is a ULID so entries stay sortable even outside the store.
type EventLog struct {
	Seq           uint64         `gorm:"primaryKey;autoIncrement"`
	EventID       string         `gorm:"type:varchar(26);uniqueIndex;not null"`
	EventType     string         `gorm:"type:varchar(64);not null;index"`
	AggregateType string         `gorm:"type:varchar(32);not null;index:idx_event_log_aggregate,priority:1"`
	AggregateID   string         `gorm:"type:varchar(64);not null;index:idx_event_log_aggregate,priority:2"`
	Payload       datatypes.JSON `gorm:"type:jsonb;not null"`
	OccurredAt    time.Time      `gorm:"type:timestamptz;not null;index"`
}

func (EventLog) TableName() string {
	return "event_log"
}
