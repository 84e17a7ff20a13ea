package eventbus

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"sportsync/internal/models"
	"sportsync/internal/repository"
)

// Store persists events to the append-only event_log table. The log is the
// durable record; the bus only carries the post-commit notification.
type Store struct {
	Repo repository.CatalogRepository
}

func NewStore(repo repository.CatalogRepository) *Store {
	return &Store{Repo: repo}
}

// AppendTx writes the events inside the caller's transaction so the log
// entry commits or rolls back together with the rows it describes.
func (s *Store) AppendTx(ctx context.Context, tx *gorm.DB, events []Event) error {
	if s == nil || s.Repo == nil || len(events) == 0 {
		return nil
	}
	rows := make([]models.EventLog, 0, len(events))
	for _, ev := range events {
		rows = append(rows, models.EventLog{
			EventID:       ev.ID,
			EventType:     ev.Type,
			AggregateType: ev.AggregateType,
			AggregateID:   ev.AggregateID,
			Payload:       datatypes.JSON(ev.Payload),
			OccurredAt:    ev.OccurredAt,
		})
	}
	return s.Repo.AppendEventLogTx(ctx, tx, rows)
}

// List reads back a slice of the log, oldest first.
func (s *Store) List(ctx context.Context, params repository.EventLogParams) ([]models.EventLog, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListEventLog(ctx, params)
}
