package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sportsync/internal/models"
	"sportsync/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- pre-fetch lookups ------------------------------------------------------

// identityTuples builds the composite (source, external_id) in-list.
func identityTuples(keys []repository.Identity) [][]any {
	tuples := make([][]any, 0, len(keys))
	for _, k := range keys {
		tuples = append(tuples, []any{k.Source, k.ExternalID})
	}
	return tuples
}

func (s *Store) MapLeagueIDs(ctx context.Context, keys []repository.Identity) (map[repository.Identity]uint64, error) {
	if s == nil || s.db == nil || len(keys) == 0 {
		return map[repository.Identity]uint64{}, nil
	}
	var rows []models.League
	if err := s.db.WithContext(ctx).
		Model(&models.League{}).
		Select("id", "source", "external_id").
		Where("(source, external_id) IN ?", identityTuples(keys)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[repository.Identity]uint64, len(rows))
	for _, row := range rows {
		out[repository.Identity{Source: row.Source, ExternalID: row.ExternalID}] = row.ID
	}
	return out, nil
}

func (s *Store) MapTeamIDs(ctx context.Context, keys []repository.Identity) (map[repository.Identity]uint64, error) {
	if s == nil || s.db == nil || len(keys) == 0 {
		return map[repository.Identity]uint64{}, nil
	}
	var rows []models.Team
	if err := s.db.WithContext(ctx).
		Model(&models.Team{}).
		Select("id", "source", "external_id").
		Where("(source, external_id) IN ?", identityTuples(keys)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[repository.Identity]uint64, len(rows))
	for _, row := range rows {
		out[repository.Identity{Source: row.Source, ExternalID: row.ExternalID}] = row.ID
	}
	return out, nil
}

func (s *Store) MapMarketIDs(ctx context.Context, keys []repository.Identity) (map[repository.Identity]uint64, error) {
	if s == nil || s.db == nil || len(keys) == 0 {
		return map[repository.Identity]uint64{}, nil
	}
	var rows []models.Market
	if err := s.db.WithContext(ctx).
		Model(&models.Market{}).
		Select("id", "source", "external_id").
		Where("(source, external_id) IN ?", identityTuples(keys)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[repository.Identity]uint64, len(rows))
	for _, row := range rows {
		out[repository.Identity{Source: row.Source, ExternalID: row.ExternalID}] = row.ID
	}
	return out, nil
}

func (s *Store) ListEventsByIdentity(ctx context.Context, keys []repository.Identity) ([]models.SportEvent, error) {
	if s == nil || s.db == nil || len(keys) == 0 {
		return nil, nil
	}
	var rows []models.SportEvent
	if err := s.db.WithContext(ctx).
		Where("(source, external_id) IN ?", identityTuples(keys)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// --- writes -----------------------------------------------------------------

var leagueUpdateColumns = []string{
	"sport",
	"name",
	"country",
	"logo_url",
	"season",
	"is_active",
	"metadata",
	"last_seen_at",
	"updated_at",
}

func (s *Store) UpsertLeagues(ctx context.Context, items []models.League) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return createInBatches(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(leagueUpdateColumns),
	}), items, 50)
}

func (s *Store) UpsertLeague(ctx context.Context, item *models.League) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(leagueUpdateColumns),
	}).Create(item).Error
}

var teamUpdateColumns = []string{
	"sport",
	"league_id",
	"name",
	"code",
	"country",
	"logo_url",
	"venue_name",
	"venue_city",
	"venue_capacity",
	"metadata",
	"last_seen_at",
	"updated_at",
}

func (s *Store) UpsertTeams(ctx context.Context, items []models.Team) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return createInBatches(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(teamUpdateColumns),
	}), items, 50)
}

func (s *Store) UpsertTeam(ctx context.Context, item *models.Team) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(teamUpdateColumns),
	}).Create(item).Error
}

func (s *Store) InsertEvents(ctx context.Context, items []models.SportEvent) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	// Insert-or-nothing keeps re-ingested batches idempotent; genuine updates
	// go through UpdateEvent so the monotonic status guard is applied.
	return createInBatches(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "external_id"}},
		DoNothing: true,
	}), items, 50)
}

func (s *Store) InsertEvent(ctx context.Context, item *models.SportEvent) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(item).Error
}

func (s *Store) UpdateEvent(ctx context.Context, item *models.SportEvent) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if item.ID == 0 {
		return errors.New("update event: missing internal id")
	}
	return s.db.WithContext(ctx).
		Model(&models.SportEvent{}).
		Where("id = ?", item.ID).
		Select("league_id", "home_team_id", "away_team_id", "home_team_name", "away_team_name",
			"league_external_id", "home_team_external_id", "away_team_external_id",
			"season", "round", "start_time", "status", "home_score", "away_score",
			"has_market", "metadata", "last_seen_at", "updated_at").
		Updates(item).Error
}

var marketUpdateColumns = []string{
	"event_id",
	"kind",
	"home_odds",
	"away_odds",
	"draw_odds",
	"is_open",
	"outcomes",
	"last_seen_at",
	"updated_at",
}

func (s *Store) UpsertMarkets(ctx context.Context, items []models.Market) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return createInBatches(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(marketUpdateColumns),
	}), items, 50)
}

func (s *Store) UpsertMarket(ctx context.Context, item *models.Market) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(marketUpdateColumns),
	}).Create(item).Error
}

// DeactivateLeaguesNotSeenSince soft-deactivates leagues a full sync no
// longer reports. Leagues are never hard-deleted.
func (s *Store) DeactivateLeaguesNotSeenSince(ctx context.Context, sport models.Sport, source string, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.League{}).
		Where("sport = ? AND source = ? AND is_active = ? AND last_seen_at < ?", sport, source, true, cutoff).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

// --- query surface ----------------------------------------------------------

func applyEventFilters(query *gorm.DB, params repository.ListEventsParams) *gorm.DB {
	if params.Sport != nil {
		query = query.Where("sport = ?", *params.Sport)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Source != nil && strings.TrimSpace(*params.Source) != "" {
		query = query.Where("source = ?", strings.TrimSpace(*params.Source))
	}
	if params.Season != nil && *params.Season != "" {
		query = query.Where("season = ?", *params.Season)
	}
	if params.DateFrom != nil && !params.DateFrom.IsZero() {
		query = query.Where("start_time >= ?", *params.DateFrom)
	}
	if params.DateTo != nil && !params.DateTo.IsZero() {
		query = query.Where("start_time < ?", *params.DateTo)
	}
	return query
}

func (s *Store) ListEvents(ctx context.Context, params repository.ListEventsParams) ([]models.SportEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyEventFilters(s.db.WithContext(ctx).Model(&models.SportEvent{}), params)
	orderBy := params.OrderBy
	if orderBy == "" {
		orderBy = "start_time"
	}
	direction := "desc"
	if params.Asc {
		direction = "asc"
	}
	query = query.Order(orderBy + " " + direction)
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.SportEvent
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountEvents(ctx context.Context, params repository.ListEventsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := applyEventFilters(s.db.WithContext(ctx).Model(&models.SportEvent{}), params).Count(&count).Error
	return count, err
}

func (s *Store) GetEventByIdentity(ctx context.Context, key repository.Identity) (*models.SportEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.SportEvent
	err := s.db.WithContext(ctx).
		Where("source = ? AND external_id = ?", key.Source, key.ExternalID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- sync state -------------------------------------------------------------

func (s *Store) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var state models.SyncState
	err := s.db.WithContext(ctx).Where("scope = ?", scope).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	if s == nil || s.db == nil || state == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cursor",
			"watermark_ts",
			"last_success_at",
			"last_attempt_at",
			"last_error",
			"stats_json",
		}),
	}).Create(state).Error
}

func (s *Store) ListSyncStates(ctx context.Context) ([]models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var states []models.SyncState
	if err := s.db.WithContext(ctx).Order("scope asc").Find(&states).Error; err != nil {
		return nil, err
	}
	return states, nil
}

// --- event store ------------------------------------------------------------

func (s *Store) AppendEventLogTx(ctx context.Context, tx *gorm.DB, items []models.EventLog) error {
	if s == nil || len(items) == 0 {
		return nil
	}
	if tx == nil {
		tx = s.db
	}
	return tx.WithContext(ctx).Create(&items).Error
}

func (s *Store) ListEventLog(ctx context.Context, params repository.EventLogParams) ([]models.EventLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.EventLog{})
	if params.AggregateType != nil {
		query = query.Where("aggregate_type = ?", *params.AggregateType)
	}
	if params.AggregateID != nil {
		query = query.Where("aggregate_id = ?", *params.AggregateID)
	}
	if params.EventType != nil {
		query = query.Where("event_type = ?", *params.EventType)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("occurred_at >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("occurred_at < ?", *params.Until)
	}
	if params.AfterSeq != nil {
		query = query.Where("seq > ?", *params.AfterSeq)
	}
	limit := normalizeLimit(params.Limit, 200)
	var items []models.EventLog
	if err := query.Order("seq asc").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		if err := db.CreateInBatches(items[i:end], batchSize).Error; err != nil {
			return err
		}
	}
	return nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
