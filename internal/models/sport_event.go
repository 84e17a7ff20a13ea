package models

import (
	"time"

	"gorm.io/datatypes"
)

// SportEvent is the central entity of the pipeline: one scheduled, live or
// finished contest from one provider. Home/away/league references are weak
// and repaired on later upserts; once resolved they are only ever corrected,
// never cleared.
type SportEvent struct {
	ID         uint64  `gorm:"primaryKey;autoIncrement"`
	ExternalID string  `gorm:"type:varchar(64);not null;uniqueIndex:uq_events_source_external,priority:2"`
	Source     string  `gorm:"type:varchar(32);not null;uniqueIndex:uq_events_source_external,priority:1"`
	Sport      Sport   `gorm:"type:varchar(32);not null;index"`
	LeagueID   *uint64 `gorm:"index"`
	HomeTeamID *uint64 `gorm:"index"`
	AwayTeamID *uint64 `gorm:"index"`

	// Display names are kept alongside the weak references so events stay
	// renderable before their teams have been synced.
	HomeTeamName string `gorm:"type:varchar(128)"`
	AwayTeamName string `gorm:"type:varchar(128)"`

	// External reference IDs back the FK repair pass on later upserts.
	LeagueExternalID   *string `gorm:"type:varchar(64)"`
	HomeTeamExternalID *string `gorm:"type:varchar(64)"`
	AwayTeamExternalID *string `gorm:"type:varchar(64)"`

	Season    *string        `gorm:"type:varchar(16)"`
	Round     *string        `gorm:"type:varchar(64)"`
	StartTime time.Time      `gorm:"type:timestamptz;not null;index"`
	Status    EventStatus    `gorm:"type:varchar(16);not null;default:SCHEDULED;index"`
	HomeScore *int           `gorm:""`
	AwayScore *int           `gorm:""`
	HasMarket bool           `gorm:"not null;default:false"`
	Metadata  datatypes.JSON `gorm:"type:jsonb"`

	LastSeenAt time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (SportEvent) TableName() string {
	return "sport_events"
}

// IsLive reports whether the event belongs in the cross-cutting live room.
func (e *SportEvent) IsLive() bool {
	return e.Status == StatusLive || e.Status == StatusHalftime
}
