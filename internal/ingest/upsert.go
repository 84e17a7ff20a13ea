package ingest

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"sportsync/internal/eventbus"
	"sportsync/internal/models"
	"sportsync/internal/repository"
)

const defaultChunkSize = 50

// BatchUpserter lands canonical records with two bulk round-trips per batch:
// one in-list prefetch to classify rows, one chunked write per class. A
// failed chunk degrades to per-row writes so one bad record costs one row,
// never the batch.
type BatchUpserter struct {
	Repo      repository.CatalogRepository
	Logger    *zap.Logger
	ChunkSize int
}

func NewBatchUpserter(repo repository.CatalogRepository, logger *zap.Logger, chunkSize int) *BatchUpserter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &BatchUpserter{Repo: repo, Logger: logger, ChunkSize: chunkSize}
}

func (u *BatchUpserter) chunk() int {
	if u == nil || u.ChunkSize <= 0 {
		return defaultChunkSize
	}
	return u.ChunkSize
}

// UpsertLeagues lands a league batch. Leagues publish no events.
func (u *BatchUpserter) UpsertLeagues(ctx context.Context, items []models.League) repository.UpsertResult {
	var result repository.UpsertResult
	if u == nil || len(items) == 0 {
		return result
	}
	keys := make([]repository.Identity, 0, len(items))
	for _, item := range items {
		keys = append(keys, repository.Identity{Source: item.Source, ExternalID: item.ExternalID})
	}
	known, err := u.Repo.MapLeagueIDs(ctx, keys)
	if err != nil {
		u.warn("league prefetch failed, counting all as updates", err)
		known = map[repository.Identity]uint64{}
	}

	for start := 0; start < len(items); start += u.chunk() {
		end := min(start+u.chunk(), len(items))
		slice := items[start:end]
		if err := u.Repo.UpsertLeagues(ctx, slice); err != nil {
			u.warn("league chunk failed, retrying per row", err)
			for i := range slice {
				if rowErr := u.Repo.UpsertLeague(ctx, &slice[i]); rowErr != nil {
					u.rowError("league", slice[i].Source, slice[i].ExternalID, rowErr)
					result.Errors++
					continue
				}
				countRow(&result, known, slice[i].Source, slice[i].ExternalID)
			}
			continue
		}
		for i := range slice {
			countRow(&result, known, slice[i].Source, slice[i].ExternalID)
		}
	}
	return result
}

// UpsertTeams lands a team batch. Teams publish no events.
func (u *BatchUpserter) UpsertTeams(ctx context.Context, items []models.Team) repository.UpsertResult {
	var result repository.UpsertResult
	if u == nil || len(items) == 0 {
		return result
	}
	keys := make([]repository.Identity, 0, len(items))
	for _, item := range items {
		keys = append(keys, repository.Identity{Source: item.Source, ExternalID: item.ExternalID})
	}
	known, err := u.Repo.MapTeamIDs(ctx, keys)
	if err != nil {
		u.warn("team prefetch failed, counting all as updates", err)
		known = map[repository.Identity]uint64{}
	}

	for start := 0; start < len(items); start += u.chunk() {
		end := min(start+u.chunk(), len(items))
		slice := items[start:end]
		if err := u.Repo.UpsertTeams(ctx, slice); err != nil {
			u.warn("team chunk failed, retrying per row", err)
			for i := range slice {
				if rowErr := u.Repo.UpsertTeam(ctx, &slice[i]); rowErr != nil {
					u.rowError("team", slice[i].Source, slice[i].ExternalID, rowErr)
					result.Errors++
					continue
				}
				countRow(&result, known, slice[i].Source, slice[i].ExternalID)
			}
			continue
		}
		for i := range slice {
			countRow(&result, known, slice[i].Source, slice[i].ExternalID)
		}
	}
	return result
}

// UpsertEvents lands an event batch and registers one bus event per created
// row and per materially changed row onto work. Registration happens after
// the row's write succeeded, so a failed write never produces a bus event.
func (u *BatchUpserter) UpsertEvents(ctx context.Context, work *eventbus.Work, items []*models.SportEvent) repository.UpsertResult {
	var result repository.UpsertResult
	if u == nil || len(items) == 0 {
		return result
	}
	items = Dedup(items)

	existing, err := u.prefetchEvents(ctx, items)
	if err != nil {
		u.warn("event prefetch failed, falling back to per-row inserts", err)
		existing = map[repository.Identity]*models.SportEvent{}
	}
	u.resolveReferences(ctx, items)

	var inserts []*models.SportEvent
	var updates []pendingUpdate
	for _, item := range items {
		key := repository.Identity{Source: item.Source, ExternalID: item.ExternalID}
		prev, ok := existing[key]
		if !ok {
			inserts = append(inserts, item)
			continue
		}
		updates = append(updates, pendingUpdate{item: item, changed: reconcile(prev, item)})
	}

	u.insertEvents(ctx, work, inserts, &result)
	u.updateEvents(ctx, work, updates, &result)
	return result
}

func (u *BatchUpserter) prefetchEvents(ctx context.Context, items []*models.SportEvent) (map[repository.Identity]*models.SportEvent, error) {
	keys := make([]repository.Identity, 0, len(items))
	for _, item := range items {
		keys = append(keys, repository.Identity{Source: item.Source, ExternalID: item.ExternalID})
	}
	rows, err := u.Repo.ListEventsByIdentity(ctx, keys)
	if err != nil {
		return nil, err
	}
	existing := make(map[repository.Identity]*models.SportEvent, len(rows))
	for i := range rows {
		existing[repository.Identity{Source: rows[i].Source, ExternalID: rows[i].ExternalID}] = &rows[i]
	}
	return existing, nil
}

// resolveReferences repairs the weak league and team references from the
// external IDs the transformers carried through. Unresolvable references
// stay null and are retried on the next sync.
func (u *BatchUpserter) resolveReferences(ctx context.Context, items []*models.SportEvent) {
	var leagueKeys, teamKeys []repository.Identity
	for _, item := range items {
		if item.LeagueID == nil && item.LeagueExternalID != nil {
			leagueKeys = append(leagueKeys, repository.Identity{Source: item.Source, ExternalID: *item.LeagueExternalID})
		}
		if item.HomeTeamID == nil && item.HomeTeamExternalID != nil {
			teamKeys = append(teamKeys, repository.Identity{Source: item.Source, ExternalID: *item.HomeTeamExternalID})
		}
		if item.AwayTeamID == nil && item.AwayTeamExternalID != nil {
			teamKeys = append(teamKeys, repository.Identity{Source: item.Source, ExternalID: *item.AwayTeamExternalID})
		}
	}

	var leagues, teams map[repository.Identity]uint64
	var err error
	if len(leagueKeys) > 0 {
		if leagues, err = u.Repo.MapLeagueIDs(ctx, leagueKeys); err != nil {
			u.warn("league reference lookup failed", err)
		}
	}
	if len(teamKeys) > 0 {
		if teams, err = u.Repo.MapTeamIDs(ctx, teamKeys); err != nil {
			u.warn("team reference lookup failed", err)
		}
	}

	for _, item := range items {
		if item.LeagueID == nil && item.LeagueExternalID != nil {
			if id, ok := leagues[repository.Identity{Source: item.Source, ExternalID: *item.LeagueExternalID}]; ok {
				item.LeagueID = &id
			}
		}
		if item.HomeTeamID == nil && item.HomeTeamExternalID != nil {
			if id, ok := teams[repository.Identity{Source: item.Source, ExternalID: *item.HomeTeamExternalID}]; ok {
				item.HomeTeamID = &id
			}
		}
		if item.AwayTeamID == nil && item.AwayTeamExternalID != nil {
			if id, ok := teams[repository.Identity{Source: item.Source, ExternalID: *item.AwayTeamExternalID}]; ok {
				item.AwayTeamID = &id
			}
		}
	}
}

// reconcile folds the stored row into the incoming one and reports whether
// anything worth persisting changed. Resolved references and known scores
// are kept when the incoming record lacks them, and the status may only
// move forward.
func reconcile(prev, next *models.SportEvent) bool {
	next.ID = prev.ID
	next.CreatedAt = prev.CreatedAt

	if next.LeagueID == nil {
		next.LeagueID = prev.LeagueID
	}
	if next.HomeTeamID == nil {
		next.HomeTeamID = prev.HomeTeamID
	}
	if next.AwayTeamID == nil {
		next.AwayTeamID = prev.AwayTeamID
	}
	if next.HomeScore == nil {
		next.HomeScore = prev.HomeScore
	}
	if next.AwayScore == nil {
		next.AwayScore = prev.AwayScore
	}
	if next.Season == nil {
		next.Season = prev.Season
	}
	if next.Round == nil {
		next.Round = prev.Round
	}
	if len(next.Metadata) == 0 {
		next.Metadata = prev.Metadata
	}
	if prev.HasMarket {
		next.HasMarket = true
	}
	if !prev.Status.CanTransitionTo(next.Status) {
		next.Status = prev.Status
	}

	return prev.Status != next.Status ||
		!intPtrEq(prev.HomeScore, next.HomeScore) ||
		!intPtrEq(prev.AwayScore, next.AwayScore) ||
		!prev.StartTime.Equal(next.StartTime) ||
		prev.HasMarket != next.HasMarket ||
		!uintPtrEq(prev.LeagueID, next.LeagueID) ||
		!uintPtrEq(prev.HomeTeamID, next.HomeTeamID) ||
		!uintPtrEq(prev.AwayTeamID, next.AwayTeamID)
}

func (u *BatchUpserter) insertEvents(ctx context.Context, work *eventbus.Work, items []*models.SportEvent, result *repository.UpsertResult) {
	for start := 0; start < len(items); start += u.chunk() {
		end := min(start+u.chunk(), len(items))
		slice := items[start:end]
		rows := make([]models.SportEvent, len(slice))
		for i, item := range slice {
			rows[i] = *item
		}
		if err := u.Repo.InsertEvents(ctx, rows); err != nil {
			u.warn("event insert chunk failed, retrying per row", err)
			for _, item := range slice {
				if rowErr := u.Repo.InsertEvent(ctx, item); rowErr != nil {
					u.rowError("event", item.Source, item.ExternalID, rowErr)
					result.Errors++
					continue
				}
				result.Created++
				u.registerEvent(work, item, "created")
			}
			continue
		}
		for i, item := range slice {
			// The store assigned primary keys into the rows copy; carry
			// them back so bus events name the real aggregate.
			if item.ID == 0 {
				item.ID = rows[i].ID
			}
			result.Created++
			u.registerEvent(work, item, "created")
		}
	}
}

// pendingUpdate pairs an existing-identity record with whether reconciling
// it changed anything worth persisting.
type pendingUpdate struct {
	item    *models.SportEvent
	changed bool
}

func (u *BatchUpserter) updateEvents(ctx context.Context, work *eventbus.Work, items []pendingUpdate, result *repository.UpsertResult) {
	for _, pending := range items {
		// Unchanged rows still count as updated so re-ingesting a batch
		// reports stable totals, but they cost no write and no event.
		if !pending.changed {
			result.Updated++
			continue
		}
		item := pending.item
		if err := u.Repo.UpdateEvent(ctx, item); err != nil {
			u.rowError("event", item.Source, item.ExternalID, err)
			result.Errors++
			continue
		}
		result.Updated++
		u.registerEvent(work, item, "updated")
	}
}

// UpsertMarkets lands a market batch and flips HasMarket on the parents.
func (u *BatchUpserter) UpsertMarkets(ctx context.Context, work *eventbus.Work, items []models.Market) repository.UpsertResult {
	var result repository.UpsertResult
	if u == nil || len(items) == 0 {
		return result
	}
	keys := make([]repository.Identity, 0, len(items))
	for _, item := range items {
		keys = append(keys, repository.Identity{Source: item.Source, ExternalID: item.ExternalID})
	}
	known, err := u.Repo.MapMarketIDs(ctx, keys)
	if err != nil {
		u.warn("market prefetch failed, counting all as updates", err)
		known = map[repository.Identity]uint64{}
	}

	for start := 0; start < len(items); start += u.chunk() {
		end := min(start+u.chunk(), len(items))
		slice := items[start:end]
		if err := u.Repo.UpsertMarkets(ctx, slice); err != nil {
			u.warn("market chunk failed, retrying per row", err)
			for i := range slice {
				if rowErr := u.Repo.UpsertMarket(ctx, &slice[i]); rowErr != nil {
					u.rowError("market", slice[i].Source, slice[i].ExternalID, rowErr)
					result.Errors++
					continue
				}
				countRow(&result, known, slice[i].Source, slice[i].ExternalID)
				u.registerMarket(work, &slice[i])
			}
			continue
		}
		for i := range slice {
			countRow(&result, known, slice[i].Source, slice[i].ExternalID)
			u.registerMarket(work, &slice[i])
		}
	}
	return result
}

func (u *BatchUpserter) registerEvent(work *eventbus.Work, item *models.SportEvent, op string) {
	if work == nil {
		return
	}
	ev, err := eventbus.NewEvent(eventbus.TypeSportsUpdate, eventbus.AggregateEvent,
		strconv.FormatUint(item.ID, 10), eventbus.EventPayload{
			Sport:      string(item.Sport),
			Source:     item.Source,
			ExternalID: item.ExternalID,
			Op:         op,
			Status:     string(item.Status),
			Live:       item.IsLive(),
		})
	if err != nil {
		u.warn("event payload encode failed", err)
		return
	}
	work.RegisterEvents(ev)
}

func (u *BatchUpserter) registerMarket(work *eventbus.Work, item *models.Market) {
	if work == nil {
		return
	}
	ev, err := eventbus.NewEvent(eventbus.TypeMarketUpdate, eventbus.AggregateMarket,
		strconv.FormatUint(item.ID, 10), eventbus.EventPayload{
			Source:     item.Source,
			ExternalID: item.ExternalID,
			Op:         "updated",
		})
	if err != nil {
		u.warn("market payload encode failed", err)
		return
	}
	work.RegisterEvents(ev)
}

func countRow(result *repository.UpsertResult, known map[repository.Identity]uint64, source, externalID string) {
	if _, ok := known[repository.Identity{Source: source, ExternalID: externalID}]; ok {
		result.Updated++
	} else {
		result.Created++
	}
}

func (u *BatchUpserter) warn(msg string, err error) {
	if u.Logger != nil {
		u.Logger.Warn(msg, zap.Error(err))
	}
}

func (u *BatchUpserter) rowError(entity, source, externalID string, err error) {
	if u.Logger != nil {
		u.Logger.Error("row write failed",
			zap.String("entity", entity),
			zap.String("source", source),
			zap.String("external_id", externalID),
			zap.Error(err))
	}
}

func intPtrEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func uintPtrEq(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
