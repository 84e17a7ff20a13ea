package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"sportsync/internal/client/oddsfeed"
	"sportsync/internal/client/sportsdata"
	"sportsync/internal/config"
	"sportsync/internal/eventbus"
	"sportsync/internal/models"
	"sportsync/internal/repository"
	"sportsync/internal/transform"
)

// FixtureClient is the primary-provider surface the orchestrator consumes.
type FixtureClient interface {
	UseSport(sport models.Sport) bool
	FetchFixtures(ctx context.Context, params sportsdata.FixtureParams) ([]json.RawMessage, error)
	FetchLeagues(ctx context.Context, season string) ([]json.RawMessage, error)
	FetchTeams(ctx context.Context, leagueID, season string) ([]json.RawMessage, error)
}

// OddsClient is the secondary-provider surface.
type OddsClient interface {
	Supports(sport models.Sport) bool
	FetchOdds(ctx context.Context, sport models.Sport) ([]oddsfeed.OddsEvent, error)
}

// CycleSummary aggregates one sync cycle across sports.
type CycleSummary struct {
	StartedAt time.Time                     `json:"started_at"`
	Duration  time.Duration                 `json:"duration"`
	Sports    map[models.Sport]SportSummary `json:"sports"`
}

// SportSummary is the per-sport outcome of a cycle.
type SportSummary struct {
	Leagues repository.UpsertResult `json:"leagues,omitempty"`
	Teams   repository.UpsertResult `json:"teams,omitempty"`
	Events  repository.UpsertResult `json:"events"`
	Skipped int                     `json:"skipped"`
	Err     string                  `json:"error,omitempty"`
}

// leagueRetention is how long a league may go unseen in provider listings
// before a full sync soft-deactivates it.
const leagueRetention = 30 * 24 * time.Hour

// Orchestrator drives the pipeline: fetch, transform, dedup, merge, upsert,
// commit. One failed sport never aborts the cycle; a cycle only fails when
// every enabled sport failed.
type Orchestrator struct {
	Primary  FixtureClient
	Odds     OddsClient
	Upserter *BatchUpserter
	Merger   *Merger
	UoW      *eventbus.UnitOfWork
	Repo     repository.CatalogRepository
	Logger   *zap.Logger
	Cfg      config.IngestConfig

	now func() time.Time
}

func NewOrchestrator(primary FixtureClient, odds OddsClient, upserter *BatchUpserter,
	merger *Merger, uow *eventbus.UnitOfWork, repo repository.CatalogRepository,
	logger *zap.Logger, cfg config.IngestConfig) *Orchestrator {
	return &Orchestrator{
		Primary:  primary,
		Odds:     odds,
		Upserter: upserter,
		Merger:   merger,
		UoW:      uow,
		Repo:     repo,
		Logger:   logger,
		Cfg:      cfg,
		now:      time.Now,
	}
}

func (o *Orchestrator) clock() time.Time {
	if o.now != nil {
		return o.now()
	}
	return time.Now()
}

func (o *Orchestrator) sports() []models.Sport {
	if len(o.Cfg.EnabledSports) > 0 {
		out := make([]models.Sport, 0, len(o.Cfg.EnabledSports))
		for _, s := range o.Cfg.EnabledSports {
			out = append(out, models.Sport(s))
		}
		return out
	}
	return models.AllSports
}

// RunCycle performs one full sync: catalog plus fixtures for every enabled
// sport. Per-sport failures are recorded in the summary and in sync state.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleSummary, error) {
	started := o.clock()
	summary := &CycleSummary{
		StartedAt: started.UTC(),
		Sports:    make(map[models.Sport]SportSummary),
	}

	failures := 0
	for _, sport := range o.sports() {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		sportSummary, err := o.SyncSport(ctx, sport)
		if err != nil {
			failures++
			sportSummary.Err = err.Error()
			o.Logger.Warn("sport sync failed",
				zap.String("sport", string(sport)),
				zap.Bool("retriable", retriableFetch(err)),
				zap.Error(err))
		}
		summary.Sports[sport] = sportSummary
		o.saveSyncState(ctx, sportsdata.Source, sport, err, sportSummary)
	}

	summary.Duration = o.clock().Sub(started)
	if failures == len(o.sports()) && failures > 0 {
		return summary, ErrCycleFailed
	}
	return summary, nil
}

// SyncSport performs a full sync for one sport: leagues, teams for those
// leagues, then the fixture window.
func (o *Orchestrator) SyncSport(ctx context.Context, sport models.Sport) (SportSummary, error) {
	var summary SportSummary
	if !o.Primary.UseSport(sport) {
		return summary, fmt.Errorf("no route for sport %s", sport)
	}
	now := o.clock().UTC()
	season := fmt.Sprintf("%d", now.Year())

	leagues, skipped, err := o.fetchLeagues(ctx, sport, season)
	if err != nil {
		return summary, err
	}
	summary.Skipped += skipped
	summary.Leagues = o.Upserter.UpsertLeagues(ctx, leagues)
	if len(leagues) > 0 {
		// A league the provider has not listed for a month is defunct or
		// out of contract; soft-deactivate it rather than delete it.
		cutoff := now.Add(-leagueRetention)
		if n, err := o.Repo.DeactivateLeaguesNotSeenSince(ctx, sport, sportsdata.Source, cutoff); err != nil {
			o.Logger.Warn("league deactivation failed", zap.String("sport", string(sport)), zap.Error(err))
		} else if n > 0 {
			o.Logger.Info("deactivated stale leagues", zap.String("sport", string(sport)), zap.Int64("count", n))
		}
	}

	teams, skipped := o.fetchTeams(ctx, sport, leagues, season)
	summary.Skipped += skipped
	summary.Teams = o.Upserter.UpsertTeams(ctx, teams)

	events, skipped, err := o.fetchWindow(ctx, sport, now)
	if err != nil {
		return summary, err
	}
	summary.Skipped += skipped

	if o.Cfg.Backfill.Enabled {
		events = o.backfill(ctx, sport, events, now)
	}

	events = Dedup(events)
	if o.Merger != nil {
		events = o.Merger.Merge(events)
	}

	work := o.UoW.Begin()
	summary.Events = o.Upserter.UpsertEvents(ctx, work, events)
	if err := work.Commit(ctx); err != nil {
		return summary, fmt.Errorf("commit %s: %w", sport, err)
	}
	return summary, nil
}

// SyncLive refreshes only in-play fixtures. Cheap enough to run every
// minute against the live endpoint.
func (o *Orchestrator) SyncLive(ctx context.Context) (*CycleSummary, error) {
	started := o.clock()
	summary := &CycleSummary{
		StartedAt: started.UTC(),
		Sports:    make(map[models.Sport]SportSummary),
	}

	failures := 0
	for _, sport := range o.sports() {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		var sportSummary SportSummary
		if !o.Primary.UseSport(sport) {
			continue
		}
		raws, err := o.Primary.FetchFixtures(ctx, sportsdata.FixtureParams{Live: true})
		if err != nil {
			failures++
			sportSummary.Err = err.Error()
			summary.Sports[sport] = sportSummary
			continue
		}
		events, skipped := o.transformEvents(sport, raws)
		sportSummary.Skipped = skipped

		work := o.UoW.Begin()
		sportSummary.Events = o.Upserter.UpsertEvents(ctx, work, Dedup(events))
		if err := work.Commit(ctx); err != nil {
			failures++
			sportSummary.Err = err.Error()
		}
		summary.Sports[sport] = sportSummary
	}

	summary.Duration = o.clock().Sub(started)
	if failures == len(o.sports()) && failures > 0 {
		return summary, ErrCycleFailed
	}
	return summary, nil
}

// SyncOdds pulls the secondary provider, correlates its priced fixtures to
// stored events on the match key and lands the markets.
func (o *Orchestrator) SyncOdds(ctx context.Context) (*CycleSummary, error) {
	started := o.clock()
	summary := &CycleSummary{
		StartedAt: started.UTC(),
		Sports:    make(map[models.Sport]SportSummary),
	}
	if o.Odds == nil {
		return summary, nil
	}

	now := o.clock().UTC()
	for _, sport := range o.sports() {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if !o.Odds.Supports(sport) {
			continue
		}
		var sportSummary SportSummary
		priced, err := o.Odds.FetchOdds(ctx, sport)
		if err != nil {
			sportSummary.Err = err.Error()
			summary.Sports[sport] = sportSummary
			o.saveSyncState(ctx, oddsfeed.Source, sport, err, sportSummary)
			continue
		}

		markets, matched, skipped := o.correlateOdds(ctx, sport, priced, now)
		sportSummary.Skipped = skipped

		work := o.UoW.Begin()
		sportSummary.Events = o.Upserter.UpsertEvents(ctx, work, matched)
		result := o.Upserter.UpsertMarkets(ctx, work, markets)
		sportSummary.Events.Errors += result.Errors
		if err := work.Commit(ctx); err != nil {
			sportSummary.Err = err.Error()
		}
		summary.Sports[sport] = sportSummary
		o.saveSyncState(ctx, oddsfeed.Source, sport, nil, sportSummary)
	}

	summary.Duration = o.clock().Sub(started)
	return summary, nil
}

func (o *Orchestrator) fetchLeagues(ctx context.Context, sport models.Sport, season string) ([]models.League, int, error) {
	raws, err := o.Primary.FetchLeagues(ctx, season)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch leagues %s: %w", sport, err)
	}
	fn := transform.LeagueFor(sport)
	now := o.clock().UTC()
	leagues := make([]models.League, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		league, err := fn(sportsdata.Source, raw, now)
		if err != nil {
			if skippableRecord(err) {
				skipped++
				continue
			}
			return nil, skipped, err
		}
		leagues = append(leagues, *league)
	}
	return leagues, skipped, nil
}

func (o *Orchestrator) fetchTeams(ctx context.Context, sport models.Sport, leagues []models.League, season string) ([]models.Team, int) {
	fn := transform.TeamFor(sport)
	now := o.clock().UTC()
	var teams []models.Team
	skipped := 0
	for _, league := range leagues {
		raws, err := o.Primary.FetchTeams(ctx, league.ExternalID, season)
		if err != nil {
			// Team sync is best effort: a failed league costs its teams,
			// not the sport.
			o.Logger.Warn("fetch teams failed",
				zap.String("sport", string(sport)),
				zap.String("league", league.ExternalID),
				zap.Error(err))
			// An open breaker or a spent budget will fail every remaining
			// league the same way; stop burning the loop.
			if breakerRejected(err) || !retriableFetch(err) {
				break
			}
			continue
		}
		for _, raw := range raws {
			team, err := fn(sportsdata.Source, raw, now)
			if err != nil {
				skipped++
				continue
			}
			teams = append(teams, *team)
		}
	}
	return teams, skipped
}

func (o *Orchestrator) fetchWindow(ctx context.Context, sport models.Sport, now time.Time) ([]*models.SportEvent, int, error) {
	daysBehind := o.Cfg.DaysBehind
	daysAhead := o.Cfg.DaysAhead
	if daysAhead <= 0 {
		daysAhead = 7
	}

	// One day of slack each side absorbs provider timezone spill.
	windowFrom := now.AddDate(0, 0, -(daysBehind + 1))
	windowTo := now.AddDate(0, 0, daysAhead+2)

	var events []*models.SportEvent
	skipped := 0
	fetched := false
	var lastErr error
	for offset := -daysBehind; offset <= daysAhead; offset++ {
		if ctx.Err() != nil {
			return events, skipped, ctx.Err()
		}
		date := now.AddDate(0, 0, offset).Format("2006-01-02")
		raws, err := o.Primary.FetchFixtures(ctx, sportsdata.FixtureParams{Date: date})
		if err != nil {
			lastErr = err
			if !retriableFetch(err) {
				break
			}
			continue
		}
		fetched = true
		dayEvents, daySkipped := o.transformEvents(sport, raws)
		skipped += daySkipped
		for _, ev := range dayEvents {
			// Events with an unparseable start time pass; the window only
			// rejects fixtures dated outside what was asked for.
			if !ev.StartTime.IsZero() && !WithinWindow(ev, windowFrom, windowTo) {
				skipped++
				continue
			}
			events = append(events, ev)
		}
	}
	if !fetched && lastErr != nil {
		return nil, skipped, fmt.Errorf("fetch fixtures %s: %w", sport, lastErr)
	}
	return events, skipped, nil
}

func (o *Orchestrator) transformEvents(sport models.Sport, raws []json.RawMessage) ([]*models.SportEvent, int) {
	fn := transform.EventFor(sport)
	now := o.clock().UTC()
	events := make([]*models.SportEvent, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		ev, err := fn(sportsdata.Source, raw, now)
		if err != nil {
			skipped++
			o.Logger.Debug("record skipped",
				zap.String("sport", string(sport)),
				zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events, skipped
}

// backfill keeps the upcoming schedule populated off-season by shifting the
// sport's most recent finished fixtures forward into the window as
// synthetic scheduled rematches. The lookup widens season by season through
// the configured list until the quota is met.
func (o *Orchestrator) backfill(ctx context.Context, sport models.Sport, events []*models.SportEvent, now time.Time) []*models.SportEvent {
	upcoming := 0
	for _, ev := range events {
		if ev.StartTime.After(now) && ev.Status == models.StatusScheduled {
			upcoming++
		}
	}
	need := o.Cfg.Backfill.MinUpcoming - upcoming
	if need <= 0 {
		return events
	}

	finished := models.StatusFinished
	seasons := o.Cfg.Backfill.Seasons
	if len(seasons) == 0 {
		seasons = []string{""} // any season
	}
	var past []models.SportEvent
	for _, season := range seasons {
		if len(past) >= need {
			break
		}
		params := repository.ListEventsParams{
			Sport:   &sport,
			Status:  &finished,
			OrderBy: "start_time",
			Limit:   need - len(past),
		}
		if season != "" {
			s := season
			params.Season = &s
		}
		rows, err := o.Repo.ListEvents(ctx, params)
		if err != nil {
			o.Logger.Warn("backfill lookup failed",
				zap.String("sport", string(sport)),
				zap.String("season", season),
				zap.Error(err))
			return events
		}
		past = append(past, rows...)
	}

	shift := o.Cfg.Backfill.ShiftWindow
	if shift <= 0 {
		shift = 7 * 24 * time.Hour
	}
	for i := range past {
		ev := past[i]
		ev.ID = 0
		ev.ExternalID = fmt.Sprintf("bf-%s-%s", ev.ExternalID, now.Format("20060102"))
		ev.StartTime = now.Add(time.Duration(i+1) * shift / time.Duration(len(past)+1))
		ev.Status = models.StatusScheduled
		ev.HomeScore = nil
		ev.AwayScore = nil
		ev.HasMarket = false
		ev.LastSeenAt = now
		events = append(events, &ev)
	}
	return events
}

// correlateOdds matches priced fixtures to stored events and builds the
// market rows. Unmatched priced fixtures are skipped; the primary provider
// owns the schedule.
func (o *Orchestrator) correlateOdds(ctx context.Context, sport models.Sport, priced []oddsfeed.OddsEvent, now time.Time) ([]models.Market, []*models.SportEvent, int) {
	from := now.AddDate(0, 0, -1)
	to := now.AddDate(0, 0, o.Cfg.DaysAhead+1)
	stored, err := o.Repo.ListEvents(ctx, repository.ListEventsParams{
		Sport:    &sport,
		DateFrom: &from,
		DateTo:   &to,
		OrderBy:  "start_time",
		Asc:      true,
		Limit:    500,
	})
	if err != nil {
		o.Logger.Warn("odds correlation lookup failed", zap.String("sport", string(sport)), zap.Error(err))
		return nil, nil, len(priced)
	}

	index := make(map[MatchKey]*models.SportEvent, len(stored))
	for i := range stored {
		index[KeyFor(&stored[i])] = &stored[i]
	}

	var markets []models.Market
	var matched []*models.SportEvent
	skipped := 0
	for _, oe := range priced {
		key := MatchKey{
			Sport: sport,
			Date:  oe.CommenceTime.UTC().Format("2006-01-02"),
			Home:  NormalizeTeamName(oe.HomeTeam),
			Away:  NormalizeTeamName(oe.AwayTeam),
		}
		ev, ok := index[key]
		if !ok {
			skipped++
			continue
		}
		market, ok := buildMarket(ev, oe, now)
		if !ok {
			skipped++
			continue
		}
		markets = append(markets, market)
		if !ev.HasMarket {
			ev.HasMarket = true
			matched = append(matched, ev)
		}
	}
	return markets, matched, skipped
}

// buildMarket extracts the head-to-head prices from the first bookmaker
// carrying them.
func buildMarket(ev *models.SportEvent, oe oddsfeed.OddsEvent, now time.Time) (models.Market, bool) {
	for _, bookmaker := range oe.Bookmakers {
		for _, m := range bookmaker.Markets {
			if m.Key != "h2h" {
				continue
			}
			market := models.Market{
				ExternalID: oe.ID,
				Source:     oddsfeed.Source,
				EventID:    ev.ID,
				Kind:       "h2h",
				IsOpen:     ev.StartTime.After(now),
				LastSeenAt: now,
			}
			homeNorm := NormalizeTeamName(ev.HomeTeamName)
			for _, outcome := range m.Outcomes {
				price := decimal.NewFromFloat(outcome.Price)
				switch NormalizeTeamName(outcome.Name) {
				case homeNorm:
					market.HomeOdds = price
				case NormalizeTeamName(ev.AwayTeamName):
					market.AwayOdds = price
				case "draw":
					draw := price
					market.DrawOdds = &draw
				}
			}
			if outcomes, err := json.Marshal(m.Outcomes); err == nil {
				market.Outcomes = datatypes.JSON(outcomes)
			}
			if market.HomeOdds.IsZero() || market.AwayOdds.IsZero() {
				return models.Market{}, false
			}
			return market, true
		}
	}
	return models.Market{}, false
}

func (o *Orchestrator) saveSyncState(ctx context.Context, source string, sport models.Sport, syncErr error, summary SportSummary) {
	now := o.clock().UTC()
	scope := source + ":" + string(sport)
	state, err := o.Repo.GetSyncState(ctx, scope)
	if err != nil {
		o.Logger.Warn("sync state load failed", zap.String("scope", scope), zap.Error(err))
		return
	}
	if state == nil {
		state = &models.SyncState{Scope: scope}
	}
	state.LastAttemptAt = &now
	if syncErr != nil {
		msg := syncErr.Error()
		state.LastError = &msg
	} else {
		state.LastSuccessAt = &now
		state.LastError = nil
		ts := now
		state.WatermarkTS = &ts
	}
	if stats, err := json.Marshal(summary); err == nil {
		state.StatsJSON = datatypes.JSON(stats)
	}
	if err := o.Repo.SaveSyncState(ctx, state); err != nil {
		o.Logger.Warn("sync state save failed", zap.String("scope", scope), zap.Error(err))
	}
}
