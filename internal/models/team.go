package models

import (
	"time"

	"gorm.io/datatypes"
)

// Team is a participant as reported by one provider. LeagueID is a weak
// reference resolved at upsert time and may stay null until the league has
// been synced.
type Team struct {
	ID            uint64         `gorm:"primaryKey;autoIncrement"`
	ExternalID    string         `gorm:"type:varchar(64);not null;uniqueIndex:uq_teams_source_external,priority:2"`
	Source        string         `gorm:"type:varchar(32);not null;uniqueIndex:uq_teams_source_external,priority:1"`
	Sport         Sport          `gorm:"type:varchar(32);not null;index"`
	LeagueID      *uint64        `gorm:"index"`
	Name          string         `gorm:"type:varchar(128);not null"`
	Code          *string        `gorm:"type:varchar(16)"`
	Country       *string        `gorm:"type:varchar(64)"`
	LogoURL       *string        `gorm:"type:text"`
	VenueName     *string        `gorm:"type:varchar(128)"`
	VenueCity     *string        `gorm:"type:varchar(64)"`
	VenueCapacity *int           `gorm:""`
	Metadata      datatypes.JSON `gorm:"type:jsonb"`
	LastSeenAt    time.Time      `gorm:"type:timestamptz;not null"`
	CreatedAt     time.Time      `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Team) TableName() string {
	return "teams"
}
