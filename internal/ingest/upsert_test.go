package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"gorm.io/gorm"

	"sportsync/internal/eventbus"
	"sportsync/internal/models"
	"sportsync/internal/repository"
)

// stubRepo is an in-memory CatalogRepository. Methods the tests never reach
// fall through to the embedded nil interface and panic, which is the point.
type stubRepo struct {
	repository.CatalogRepository

	leagues map[repository.Identity]uint64
	teams   map[repository.Identity]uint64
	markets map[repository.Identity]uint64
	events  map[repository.Identity]models.SportEvent
	nextID  uint64

	failBatchInsert bool
	failExternalID  string

	eventLog      []models.EventLog
	states        map[string]models.SyncState
	deactivations []time.Time
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		leagues: map[repository.Identity]uint64{},
		teams:   map[repository.Identity]uint64{},
		markets: map[repository.Identity]uint64{},
		events:  map[repository.Identity]models.SportEvent{},
		states:  map[string]models.SyncState{},
		nextID:  1,
	}
}

func (r *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (r *stubRepo) MapLeagueIDs(ctx context.Context, keys []repository.Identity) (map[repository.Identity]uint64, error) {
	out := map[repository.Identity]uint64{}
	for _, k := range keys {
		if id, ok := r.leagues[k]; ok {
			out[k] = id
		}
	}
	return out, nil
}

func (r *stubRepo) MapTeamIDs(ctx context.Context, keys []repository.Identity) (map[repository.Identity]uint64, error) {
	out := map[repository.Identity]uint64{}
	for _, k := range keys {
		if id, ok := r.teams[k]; ok {
			out[k] = id
		}
	}
	return out, nil
}

func (r *stubRepo) MapMarketIDs(ctx context.Context, keys []repository.Identity) (map[repository.Identity]uint64, error) {
	out := map[repository.Identity]uint64{}
	for _, k := range keys {
		if id, ok := r.markets[k]; ok {
			out[k] = id
		}
	}
	return out, nil
}

func (r *stubRepo) ListEventsByIdentity(ctx context.Context, keys []repository.Identity) ([]models.SportEvent, error) {
	var out []models.SportEvent
	for _, k := range keys {
		if ev, ok := r.events[k]; ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *stubRepo) UpsertLeagues(ctx context.Context, items []models.League) error {
	for _, item := range items {
		key := repository.Identity{Source: item.Source, ExternalID: item.ExternalID}
		if _, ok := r.leagues[key]; !ok {
			r.leagues[key] = r.nextID
			r.nextID++
		}
	}
	return nil
}

func (r *stubRepo) UpsertTeams(ctx context.Context, items []models.Team) error {
	for _, item := range items {
		key := repository.Identity{Source: item.Source, ExternalID: item.ExternalID}
		if _, ok := r.teams[key]; !ok {
			r.teams[key] = r.nextID
			r.nextID++
		}
	}
	return nil
}

func (r *stubRepo) InsertEvents(ctx context.Context, items []models.SportEvent) error {
	if r.failBatchInsert {
		return errors.New("bulk insert rejected")
	}
	for i := range items {
		if err := r.InsertEvent(ctx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *stubRepo) InsertEvent(ctx context.Context, item *models.SportEvent) error {
	if item.ExternalID == r.failExternalID && r.failExternalID != "" {
		return errors.New("row rejected")
	}
	key := repository.Identity{Source: item.Source, ExternalID: item.ExternalID}
	if _, ok := r.events[key]; ok {
		return nil // conflict target: do nothing
	}
	item.ID = r.nextID
	r.nextID++
	r.events[key] = *item
	return nil
}

func (r *stubRepo) UpdateEvent(ctx context.Context, item *models.SportEvent) error {
	key := repository.Identity{Source: item.Source, ExternalID: item.ExternalID}
	if _, ok := r.events[key]; !ok {
		return errors.New("no such row")
	}
	r.events[key] = *item
	return nil
}

func (r *stubRepo) UpsertMarkets(ctx context.Context, items []models.Market) error {
	for _, item := range items {
		key := repository.Identity{Source: item.Source, ExternalID: item.ExternalID}
		if _, ok := r.markets[key]; !ok {
			r.markets[key] = r.nextID
			r.nextID++
		}
	}
	return nil
}

func (r *stubRepo) ListEvents(ctx context.Context, params repository.ListEventsParams) ([]models.SportEvent, error) {
	var out []models.SportEvent
	for _, ev := range r.events {
		if params.Sport != nil && ev.Sport != *params.Sport {
			continue
		}
		if params.Status != nil && ev.Status != *params.Status {
			continue
		}
		if params.DateFrom != nil && ev.StartTime.Before(*params.DateFrom) {
			continue
		}
		if params.DateTo != nil && !ev.StartTime.Before(*params.DateTo) {
			continue
		}
		if params.Season != nil && *params.Season != "" {
			if ev.Season == nil || *ev.Season != *params.Season {
				continue
			}
		}
		out = append(out, ev)
	}
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (r *stubRepo) DeactivateLeaguesNotSeenSince(ctx context.Context, sport models.Sport, source string, cutoff time.Time) (int64, error) {
	r.deactivations = append(r.deactivations, cutoff)
	return 0, nil
}

func (r *stubRepo) AppendEventLogTx(ctx context.Context, tx *gorm.DB, items []models.EventLog) error {
	r.eventLog = append(r.eventLog, items...)
	return nil
}

func (r *stubRepo) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	if state, ok := r.states[scope]; ok {
		return &state, nil
	}
	return nil, nil
}

func (r *stubRepo) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	r.states[state.Scope] = *state
	return nil
}

// captureBus records post-commit dispatches.
type captureBus struct {
	events []eventbus.Event
}

func (b *captureBus) Publish(ctx context.Context, ev eventbus.Event) error {
	b.events = append(b.events, ev)
	return nil
}

func (b *captureBus) PublishAll(ctx context.Context, events []eventbus.Event) error {
	b.events = append(b.events, events...)
	return nil
}

func (b *captureBus) Subscribe(string, string, eventbus.Handler) error { return nil }
func (b *captureBus) Unsubscribe(string, string)                      {}
func (b *captureBus) Healthy() bool                                   { return true }
func (b *captureBus) Shutdown(context.Context) error                  { return nil }

func testHarness() (*stubRepo, *captureBus, *BatchUpserter, *eventbus.UnitOfWork) {
	repo := newStubRepo()
	bus := &captureBus{}
	uow := eventbus.NewUnitOfWork(repo, eventbus.NewStore(repo), bus, nil)
	return repo, bus, NewBatchUpserter(repo, nil, 50), uow
}

func batchEvent(externalID string, status models.EventStatus) *models.SportEvent {
	return &models.SportEvent{
		Source:       "providerA",
		ExternalID:   externalID,
		Sport:        models.SportFootball,
		HomeTeamName: "Arsenal",
		AwayTeamName: "Chelsea",
		StartTime:    time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC),
		Status:       status,
		LastSeenAt:   time.Now().UTC(),
	}
}

func TestUpsertEventsCreatesThenUpdates(t *testing.T) {
	_, bus, upserter, uow := testHarness()
	ctx := context.Background()

	work := uow.Begin()
	result := upserter.UpsertEvents(ctx, work, []*models.SportEvent{
		batchEvent("123", models.StatusScheduled),
		batchEvent("456", models.StatusScheduled),
	})
	if err := work.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.Created != 2 || result.Updated != 0 || result.Errors != 0 {
		t.Fatalf("first run = %+v, want created:2", result)
	}
	if len(bus.events) != 2 {
		t.Fatalf("bus saw %d events, want 2", len(bus.events))
	}

	// Same identities again: nothing is created, both report as updated.
	work = uow.Begin()
	result = upserter.UpsertEvents(ctx, work, []*models.SportEvent{
		batchEvent("123", models.StatusScheduled),
		batchEvent("456", models.StatusLive),
	})
	if err := work.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.Created != 0 || result.Updated != 2 || result.Errors != 0 {
		t.Fatalf("second run = %+v, want updated:2", result)
	}
	// Only the materially changed row (456 went live) dispatches again.
	if len(bus.events) != 3 {
		t.Fatalf("bus saw %d events total, want 3", len(bus.events))
	}
}

func TestUpsertEventsBatchCreationNamesAggregates(t *testing.T) {
	repo, bus, upserter, uow := testHarness()
	ctx := context.Background()

	work := uow.Begin()
	upserter.UpsertEvents(ctx, work, []*models.SportEvent{
		batchEvent("123", models.StatusScheduled),
		batchEvent("456", models.StatusScheduled),
	})
	if err := work.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if len(bus.events) != 2 {
		t.Fatalf("bus saw %d events, want 2", len(bus.events))
	}
	for _, ev := range bus.events {
		if ev.AggregateID == "" || ev.AggregateID == "0" {
			t.Fatalf("batch-created event published aggregate_id %q", ev.AggregateID)
		}
	}
	stored := repo.events[repository.Identity{Source: "providerA", ExternalID: "123"}]
	want := strconv.FormatUint(stored.ID, 10)
	if bus.events[0].AggregateID != want {
		t.Fatalf("aggregate_id = %q, want stored row id %q", bus.events[0].AggregateID, want)
	}
}

func TestUpsertEventsPayloadCarriesLiveStatus(t *testing.T) {
	_, bus, upserter, uow := testHarness()
	ctx := context.Background()

	work := uow.Begin()
	upserter.UpsertEvents(ctx, work, []*models.SportEvent{batchEvent("123", models.StatusScheduled)})
	_ = work.Commit(ctx)

	work = uow.Begin()
	upserter.UpsertEvents(ctx, work, []*models.SportEvent{batchEvent("123", models.StatusLive)})
	_ = work.Commit(ctx)

	if len(bus.events) != 2 {
		t.Fatalf("bus saw %d events, want 2", len(bus.events))
	}
	var payload eventbus.EventPayload
	if err := json.Unmarshal(bus.events[1].Payload, &payload); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	if payload.Status != string(models.StatusLive) || !payload.Live {
		t.Fatalf("payload = %+v, want status LIVE and live flag", payload)
	}
	payload = eventbus.EventPayload{}
	if err := json.Unmarshal(bus.events[0].Payload, &payload); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	if payload.Live {
		t.Fatal("scheduled creation flagged live")
	}
}

func TestUpsertEventsDuplicateIdentityInBatch(t *testing.T) {
	_, _, upserter, uow := testHarness()
	ctx := context.Background()

	work := uow.Begin()
	result := upserter.UpsertEvents(ctx, work, []*models.SportEvent{
		batchEvent("123", models.StatusScheduled),
	})
	_ = work.Commit(ctx)
	if result.Created != 1 {
		t.Fatalf("seed run = %+v", result)
	}

	work = uow.Begin()
	result = upserter.UpsertEvents(ctx, work, []*models.SportEvent{
		batchEvent("123", models.StatusScheduled),
		batchEvent("123", models.StatusLive),
	})
	_ = work.Commit(ctx)
	if result.Created != 0 || result.Updated != 1 {
		t.Fatalf("duplicate batch = %+v, want {created:0 updated:1}", result)
	}
}

func TestUpsertEventsStatusNeverMovesBackward(t *testing.T) {
	repo, _, upserter, uow := testHarness()
	ctx := context.Background()

	work := uow.Begin()
	upserter.UpsertEvents(ctx, work, []*models.SportEvent{batchEvent("123", models.StatusFinished)})
	_ = work.Commit(ctx)

	work = uow.Begin()
	upserter.UpsertEvents(ctx, work, []*models.SportEvent{batchEvent("123", models.StatusLive)})
	_ = work.Commit(ctx)

	stored := repo.events[repository.Identity{Source: "providerA", ExternalID: "123"}]
	if stored.Status != models.StatusFinished {
		t.Fatalf("status = %s, want FINISHED to stick", stored.Status)
	}
}

func TestUpsertEventsSecondHalfResumesFromHalftime(t *testing.T) {
	repo, _, upserter, uow := testHarness()
	ctx := context.Background()

	work := uow.Begin()
	upserter.UpsertEvents(ctx, work, []*models.SportEvent{batchEvent("123", models.StatusHalftime)})
	_ = work.Commit(ctx)

	work = uow.Begin()
	upserter.UpsertEvents(ctx, work, []*models.SportEvent{batchEvent("123", models.StatusLive)})
	_ = work.Commit(ctx)

	stored := repo.events[repository.Identity{Source: "providerA", ExternalID: "123"}]
	if stored.Status != models.StatusLive {
		t.Fatalf("status = %s, want LIVE after the break", stored.Status)
	}
}

func TestUpsertEventsPerRowFallback(t *testing.T) {
	repo, _, upserter, uow := testHarness()
	repo.failBatchInsert = true
	repo.failExternalID = "bad"
	ctx := context.Background()

	work := uow.Begin()
	result := upserter.UpsertEvents(ctx, work, []*models.SportEvent{
		batchEvent("123", models.StatusScheduled),
		batchEvent("bad", models.StatusScheduled),
		batchEvent("456", models.StatusScheduled),
	})
	_ = work.Commit(ctx)

	if result.Created != 2 || result.Errors != 1 {
		t.Fatalf("result = %+v, want created:2 errors:1", result)
	}
	if _, ok := repo.events[repository.Identity{Source: "providerA", ExternalID: "123"}]; !ok {
		t.Fatal("good row 123 did not land")
	}
	if _, ok := repo.events[repository.Identity{Source: "providerA", ExternalID: "bad"}]; ok {
		t.Fatal("bad row landed")
	}
}

func TestUpsertEventsRepairsWeakReferences(t *testing.T) {
	repo, _, upserter, uow := testHarness()
	ctx := context.Background()

	leagueKey := repository.Identity{Source: "providerA", ExternalID: "L9"}
	homeKey := repository.Identity{Source: "providerA", ExternalID: "T1"}
	repo.leagues[leagueKey] = 77
	repo.teams[homeKey] = 88

	ev := batchEvent("123", models.StatusScheduled)
	lid, hid, aid := "L9", "T1", "T2"
	ev.LeagueExternalID = &lid
	ev.HomeTeamExternalID = &hid
	ev.AwayTeamExternalID = &aid

	work := uow.Begin()
	upserter.UpsertEvents(ctx, work, []*models.SportEvent{ev})
	_ = work.Commit(ctx)

	stored := repo.events[repository.Identity{Source: "providerA", ExternalID: "123"}]
	if stored.LeagueID == nil || *stored.LeagueID != 77 {
		t.Fatal("league reference not repaired")
	}
	if stored.HomeTeamID == nil || *stored.HomeTeamID != 88 {
		t.Fatal("home team reference not repaired")
	}
	if stored.AwayTeamID != nil {
		t.Fatal("unresolvable away team reference should stay null")
	}
}

func TestUpsertEventsKeepsResolvedReferencesAndScores(t *testing.T) {
	repo, _, upserter, uow := testHarness()
	ctx := context.Background()

	seed := batchEvent("123", models.StatusLive)
	leagueID := uint64(77)
	two, one := 2, 1
	seed.LeagueID = &leagueID
	seed.HomeScore = &two
	seed.AwayScore = &one
	work := uow.Begin()
	upserter.UpsertEvents(ctx, work, []*models.SportEvent{seed})
	_ = work.Commit(ctx)

	// A later payload with no league reference and no scores must not
	// clear what is already known.
	work = uow.Begin()
	upserter.UpsertEvents(ctx, work, []*models.SportEvent{batchEvent("123", models.StatusLive)})
	_ = work.Commit(ctx)

	stored := repo.events[repository.Identity{Source: "providerA", ExternalID: "123"}]
	if stored.LeagueID == nil || *stored.LeagueID != 77 {
		t.Fatal("resolved league reference was cleared")
	}
	if stored.HomeScore == nil || *stored.HomeScore != 2 {
		t.Fatal("known score was cleared")
	}
}

func TestUpsertLeaguesClassifiesCreatedUpdated(t *testing.T) {
	repo, _, upserter, _ := testHarness()
	ctx := context.Background()

	league := func(id string) models.League {
		return models.League{
			Source:     "providerA",
			ExternalID: id,
			Sport:      models.SportFootball,
			Name:       "League " + id,
			LastSeenAt: time.Now().UTC(),
		}
	}
	result := upserter.UpsertLeagues(ctx, []models.League{league("1"), league("2")})
	if result.Created != 2 || result.Updated != 0 {
		t.Fatalf("first run = %+v", result)
	}
	result = upserter.UpsertLeagues(ctx, []models.League{league("1"), league("3")})
	if result.Created != 1 || result.Updated != 1 {
		t.Fatalf("second run = %+v, want created:1 updated:1", result)
	}
	if len(repo.leagues) != 3 {
		t.Fatalf("stored leagues = %d, want 3", len(repo.leagues))
	}
}
