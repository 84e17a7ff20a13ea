package db

import (
	"sportsync/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.League{},
		&models.Team{},
		&models.SportEvent{},
		&models.Market{},
		&models.SyncState{},
		&models.EventLog{},
	)
}
