package models

import (
	"time"

	"gorm.io/datatypes"
)

// League is a competition as reported by one provider. Identity is
// (source, external_id); internal IDs are never exposed upstream.
type League struct {
	ID         uint64         `gorm:"primaryKey;autoIncrement"`
	ExternalID string         `gorm:"type:varchar(64);not null;uniqueIndex:uq_leagues_source_external,priority:2"`
	Source     string         `gorm:"type:varchar(32);not null;uniqueIndex:uq_leagues_source_external,priority:1"`
	Sport      Sport          `gorm:"type:varchar(32);not null;index"`
	Name       string         `gorm:"type:varchar(256);not null"`
	Country    *string        `gorm:"type:varchar(64)"`
	LogoURL    *string        `gorm:"type:text"`
	Season     *string        `gorm:"type:varchar(16)"`
	IsActive   bool           `gorm:"not null;default:true"`
	IsFeatured bool           `gorm:"not null;default:false"`
	Metadata   datatypes.JSON `gorm:"type:jsonb"`
	LastSeenAt time.Time      `gorm:"type:timestamptz;not null"`
	CreatedAt  time.Time      `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"type:timestamptz;autoUpdateTime"`
}

func (League) TableName() string {
	return "leagues"
}
