package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"sportsync/internal/models"
)

// Identity is the only externally visible identity of a canonical record.
type Identity struct {
	Source     string
	ExternalID string
}

// UpsertResult is the batch engine's contract: partial failures are counted,
// never raised.
type UpsertResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

func (r *UpsertResult) Add(other UpsertResult) {
	r.Created += other.Created
	r.Updated += other.Updated
	r.Errors += other.Errors
}

type ListEventsParams struct {
	Sport    *models.Sport
	Status   *models.EventStatus
	Source   *string
	Season   *string
	DateFrom *time.Time
	DateTo   *time.Time
	OrderBy  string
	Asc      bool
	Limit    int
	Offset   int
}

type EventLogParams struct {
	AggregateType *string
	AggregateID   *string
	EventType     *string
	Since         *time.Time
	Until         *time.Time
	AfterSeq      *uint64
	Limit         int
}

// CatalogRepository is the relational-store capability the ingestion core
// consumes: table-scoped bulk lookups, chunked conflict-target upserts and
// per-row writes, all reachable inside one transaction via InTx.
type CatalogRepository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Pre-fetch phase: one in-list lookup per entity type.
	MapLeagueIDs(ctx context.Context, keys []Identity) (map[Identity]uint64, error)
	MapTeamIDs(ctx context.Context, keys []Identity) (map[Identity]uint64, error)
	ListEventsByIdentity(ctx context.Context, keys []Identity) ([]models.SportEvent, error)

	// Write phase: chunked upserts plus per-row fallbacks.
	UpsertLeagues(ctx context.Context, items []models.League) error
	UpsertLeague(ctx context.Context, item *models.League) error
	UpsertTeams(ctx context.Context, items []models.Team) error
	UpsertTeam(ctx context.Context, item *models.Team) error
	InsertEvents(ctx context.Context, items []models.SportEvent) error
	InsertEvent(ctx context.Context, item *models.SportEvent) error
	UpdateEvent(ctx context.Context, item *models.SportEvent) error
	UpsertMarkets(ctx context.Context, items []models.Market) error
	UpsertMarket(ctx context.Context, item *models.Market) error
	MapMarketIDs(ctx context.Context, keys []Identity) (map[Identity]uint64, error)
	DeactivateLeaguesNotSeenSince(ctx context.Context, sport models.Sport, source string, cutoff time.Time) (int64, error)

	// Query surface for the status/listing endpoints.
	ListEvents(ctx context.Context, params ListEventsParams) ([]models.SportEvent, error)
	CountEvents(ctx context.Context, params ListEventsParams) (int64, error)
	GetEventByIdentity(ctx context.Context, key Identity) (*models.SportEvent, error)

	// Sync state.
	GetSyncState(ctx context.Context, scope string) (*models.SyncState, error)
	SaveSyncState(ctx context.Context, state *models.SyncState) error
	ListSyncStates(ctx context.Context) ([]models.SyncState, error)

	// Event store.
	AppendEventLogTx(ctx context.Context, tx *gorm.DB, items []models.EventLog) error
	ListEventLog(ctx context.Context, params EventLogParams) ([]models.EventLog, error)
}
