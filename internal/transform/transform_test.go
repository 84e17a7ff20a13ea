package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"sportsync/internal/models"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFootballEvent(t *testing.T) {
	raw := json.RawMessage(`{
		"fixture": {
			"id": 868549,
			"date": "2026-03-07T15:00:00+00:00",
			"status": {"short": "FT", "elapsed": 90},
			"venue": {"name": "Anfield", "city": "Liverpool"}
		},
		"league": {"id": 39, "name": "Premier League", "season": 2025, "round": "Regular Season - 28"},
		"teams": {
			"home": {"id": 40, "name": "Liverpool", "logo": "https://media.example/40.png", "winner": true},
			"away": {"id": 33, "name": "Manchester United", "logo": "https://media.example/33.png", "winner": false}
		},
		"goals": {"home": 2, "away": 1},
		"score": {"halftime": {"home": 1, "away": 0}, "penalty": {"home": null, "away": null}}
	}`)

	ev, err := FootballEvent("sportdata", raw, testNow)
	if err != nil {
		t.Fatalf("FootballEvent: %v", err)
	}
	if ev.ExternalID != "868549" || ev.Source != "sportdata" {
		t.Fatalf("identity = (%s,%s)", ev.Source, ev.ExternalID)
	}
	if ev.Status != models.StatusFinished {
		t.Fatalf("status = %s, want FINISHED", ev.Status)
	}
	if ev.HomeScore == nil || *ev.HomeScore != 2 || ev.AwayScore == nil || *ev.AwayScore != 1 {
		t.Fatalf("scores = %v/%v", ev.HomeScore, ev.AwayScore)
	}
	if ev.LeagueExternalID == nil || *ev.LeagueExternalID != "39" {
		t.Fatalf("league external id = %v", ev.LeagueExternalID)
	}
	if ev.Season == nil || *ev.Season != "2025" {
		t.Fatalf("season = %v", ev.Season)
	}
	if ev.StartTime.IsZero() {
		t.Fatalf("start time not parsed")
	}

	var bag map[string]any
	if err := json.Unmarshal(ev.Metadata, &bag); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if bag["venue"] != "Anfield" {
		t.Fatalf("metadata venue = %v", bag["venue"])
	}
	if bag["elapsed"] != float64(90) {
		t.Fatalf("metadata elapsed = %v", bag["elapsed"])
	}
	if _, ok := bag["penalties"]; ok {
		t.Fatalf("null penalty score must not fabricate metadata")
	}
}

func TestNBAEventVisitorsMapToAway(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 14051,
		"date": {"start": "2026-03-02T00:30:00Z"},
		"status": {"short": 3, "long": "Finished"},
		"season": 2025,
		"teams": {
			"home": {"id": 20, "name": "Milwaukee Bucks", "nickname": "Bucks"},
			"visitors": {"id": 4, "name": "Brooklyn Nets", "nickname": "Nets"}
		},
		"scores": {
			"home": {"points": 118, "linescore": ["30", "28", "31", "29"]},
			"visitors": {"points": 104, "linescore": ["25", "27", "26", "26"]}
		}
	}`)

	ev, err := NBAEvent("sportdata", raw, testNow)
	if err != nil {
		t.Fatalf("NBAEvent: %v", err)
	}
	if ev.Status != models.StatusFinished {
		t.Fatalf("numeric status 3 should map to FINISHED, got %s", ev.Status)
	}
	if ev.AwayTeamName != "Brooklyn Nets" {
		t.Fatalf("visitors should map to away, got %q", ev.AwayTeamName)
	}
	if ev.AwayScore == nil || *ev.AwayScore != 104 {
		t.Fatalf("away score = %v", ev.AwayScore)
	}
}

func TestMMAEventMetadata(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 9131,
		"date": "2026-03-14T22:00:00+00:00",
		"status": {"short": "NS"},
		"slug": "ufc-313-jones-vs-aspinall",
		"category": "Heavyweight",
		"is_main": true,
		"fighters": {
			"first": {"id": 101, "name": "Jon Jones", "record": "27-1-0"},
			"second": {"id": 202, "name": "Tom Aspinall", "record": "14-3-0"}
		}
	}`)

	ev, err := MMAEvent("sportdata", raw, testNow)
	if err != nil {
		t.Fatalf("MMAEvent: %v", err)
	}
	if ev.HomeTeamName != "Jon Jones" || ev.AwayTeamName != "Tom Aspinall" {
		t.Fatalf("fighters = %q vs %q", ev.HomeTeamName, ev.AwayTeamName)
	}
	var bag map[string]any
	if err := json.Unmarshal(ev.Metadata, &bag); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if bag["weight_class"] != "Heavyweight" {
		t.Fatalf("weight_class = %v", bag["weight_class"])
	}
	records, ok := bag["records"].(map[string]any)
	if !ok || records["first"] != "27-1-0" {
		t.Fatalf("records = %v", bag["records"])
	}
}

func TestAFLEventScoreBreakdown(t *testing.T) {
	raw := json.RawMessage(`{
		"game": {"id": 2710},
		"date": "2026-03-20T08:10:00+00:00",
		"round": "Round 2",
		"status": {"short": "FT"},
		"league": {"id": 1, "season": 2026},
		"teams": {"home": {"id": 7, "name": "Collingwood"}, "away": {"id": 12, "name": "Richmond"}},
		"scores": {
			"home": {"score": 95, "goals": 14, "behinds": 11},
			"away": {"score": 71, "goals": 10, "behinds": 11}
		}
	}`)

	ev, err := AFLEvent("sportdata", raw, testNow)
	if err != nil {
		t.Fatalf("AFLEvent: %v", err)
	}
	if ev.HomeScore == nil || *ev.HomeScore != 95 {
		t.Fatalf("home score = %v", ev.HomeScore)
	}
	var bag map[string]any
	if err := json.Unmarshal(ev.Metadata, &bag); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	breakdown, ok := bag["breakdown"].(map[string]any)
	if !ok {
		t.Fatalf("breakdown missing: %v", bag)
	}
	home := breakdown["home"].(map[string]any)
	if home["goals"] != float64(14) || home["behinds"] != float64(11) {
		t.Fatalf("home breakdown = %v", home)
	}
}

func TestVolleyballSetScores(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 4407,
		"date": "2026-03-05T18:00:00+00:00",
		"status": {"short": "FT"},
		"league": {"id": 82, "season": 2026},
		"teams": {"home": {"id": 1, "name": "Trentino"}, "away": {"id": 2, "name": "Modena"}},
		"scores": {"home": 3, "away": 1},
		"periods": {
			"first": {"home": 25, "away": 21},
			"second": {"home": 23, "away": 25},
			"third": {"home": 25, "away": 18},
			"fourth": {"home": 25, "away": 22},
			"fifth": {"home": null, "away": null}
		}
	}`)

	ev, err := VolleyballEvent("sportdata", raw, testNow)
	if err != nil {
		t.Fatalf("VolleyballEvent: %v", err)
	}
	var bag map[string]any
	if err := json.Unmarshal(ev.Metadata, &bag); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	sets, ok := bag["sets"].(map[string]any)
	if !ok {
		t.Fatalf("sets missing")
	}
	if len(sets) != 4 {
		t.Fatalf("unplayed fifth set must be absent, got %d sets", len(sets))
	}
}

func TestMissingOptionalFieldsStayNil(t *testing.T) {
	raw := json.RawMessage(`{
		"fixture": {"id": 555, "date": "2026-04-01T12:00:00Z", "status": {"short": "NS"}},
		"teams": {"home": {"name": "A"}, "away": {"name": "B"}},
		"goals": {"home": null, "away": null}
	}`)

	ev, err := FootballEvent("sportdata", raw, testNow)
	if err != nil {
		t.Fatalf("FootballEvent: %v", err)
	}
	if ev.HomeScore != nil || ev.AwayScore != nil {
		t.Fatalf("unplayed fixture must not fabricate scores")
	}
	if ev.LeagueExternalID != nil || ev.Season != nil {
		t.Fatalf("absent league must stay nil, got %v/%v", ev.LeagueExternalID, ev.Season)
	}
	if ev.HomeTeamExternalID != nil {
		t.Fatalf("absent team id must stay nil")
	}
}

func TestMalformedPayloadIsTransformError(t *testing.T) {
	_, err := FootballEvent("sportdata", json.RawMessage(`{"fixture": "not-an-object"`), testNow)
	if !errors.Is(err, ErrTransform) {
		t.Fatalf("expected ErrTransform, got %v", err)
	}
	_, err = BasketballEvent("sportdata", json.RawMessage(`{"date": "2026-01-01"}`), testNow)
	if !errors.Is(err, ErrTransform) {
		t.Fatalf("missing id should be a transform error, got %v", err)
	}
}

func TestEventForFallsBackToGeneric(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 77,
		"date": "2026-05-01T10:00:00Z",
		"status": {"short": "FT"},
		"teams": {"home": {"id": 1, "name": "Alpha"}, "away": {"id": 2, "name": "Beta"}},
		"scores": {"home": {"total": 3}, "away": {"total": 2}}
	}`)

	fn := EventFor(models.Sport("cricket"))
	ev, err := fn("sportdata", raw, testNow)
	if err != nil {
		t.Fatalf("generic transform: %v", err)
	}
	if ev.Sport != models.Sport("cricket") {
		t.Fatalf("sport = %s", ev.Sport)
	}
	if ev.Status != models.StatusFinished {
		t.Fatalf("status = %s", ev.Status)
	}
	if ev.HomeScore == nil || *ev.HomeScore != 3 {
		t.Fatalf("home score = %v", ev.HomeScore)
	}
}

func TestGenericStatusCodeSpellings(t *testing.T) {
	cases := []struct {
		short string
		want  models.EventStatus
	}{
		{`"FT"`, models.StatusFinished},
		{`"NS"`, models.StatusScheduled},
		{`3`, models.StatusFinished},
		{`1`, models.StatusScheduled},
		{`null`, models.StatusScheduled},
	}
	for _, tc := range cases {
		raw := json.RawMessage(fmt.Sprintf(`{
			"id": 9,
			"date": "2026-05-01T10:00:00Z",
			"status": {"short": %s},
			"teams": {"home": {"id": 1, "name": "Alpha"}, "away": {"id": 2, "name": "Beta"}}
		}`, tc.short))
		ev, err := GenericEvent(models.Sport("cricket"), "sportdata", raw, testNow)
		if err != nil {
			t.Fatalf("short %s: %v", tc.short, err)
		}
		if ev.Status != tc.want {
			t.Fatalf("short %s: status = %s, want %s", tc.short, ev.Status, tc.want)
		}
	}
}

func TestGenericLeagueAndTeam(t *testing.T) {
	league, err := LeagueFor(models.SportBasketball)("sportdata", json.RawMessage(`{
		"id": 12, "name": "NBA", "type": "League", "logo": "https://media.example/l12.png",
		"country": {"name": "USA", "code": "US"},
		"seasons": [{"season": 2024, "current": false}, {"season": 2025, "current": true}]
	}`), testNow)
	if err != nil {
		t.Fatalf("league: %v", err)
	}
	if league.Season == nil || *league.Season != "2025" {
		t.Fatalf("current season = %v", league.Season)
	}
	if !league.IsActive {
		t.Fatalf("new league should be active")
	}

	team, err := TeamFor(models.SportBasketball)("sportdata", json.RawMessage(`{
		"id": 139, "name": "Denver Nuggets", "logo": "https://media.example/t139.png",
		"national": false, "country": {"name": "USA"}
	}`), testNow)
	if err != nil {
		t.Fatalf("team: %v", err)
	}
	if team.ExternalID != "139" || team.Name != "Denver Nuggets" {
		t.Fatalf("team = %+v", team)
	}
}
