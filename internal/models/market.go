package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Market is a betting market derived from a SportEvent once the odds feed has
// priced it. The ingestion pipeline only gates creation via SportEvent.HasMarket;
// market rows are written by the odds sync pass.
type Market struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement"`
	ExternalID string          `gorm:"type:varchar(64);not null;uniqueIndex:uq_markets_source_external,priority:2"`
	Source     string          `gorm:"type:varchar(32);not null;uniqueIndex:uq_markets_source_external,priority:1"`
	EventID    uint64          `gorm:"not null;index"`
	Kind       string          `gorm:"type:varchar(32);not null"`
	HomeOdds   decimal.Decimal `gorm:"type:numeric(10,4)"`
	AwayOdds   decimal.Decimal `gorm:"type:numeric(10,4)"`
	DrawOdds   *decimal.Decimal `gorm:"type:numeric(10,4)"`
	IsOpen     bool            `gorm:"not null;default:true"`
	Outcomes   datatypes.JSON  `gorm:"type:jsonb"`
	LastSeenAt time.Time       `gorm:"type:timestamptz;not null"`
	CreatedAt  time.Time       `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Market) TableName() string {
	return "markets"
}
