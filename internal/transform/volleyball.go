package transform

import (
	"encoding/json"
	"time"

	"sportsync/internal/models"
)

// rawVolleyballGame: totals are sets won, with per-set point scores under
// periods.
type rawVolleyballGame struct {
	ID     json.Number `json:"id"`
	Date   string      `json:"date"`
	Status struct {
		Short string `json:"short"`
	} `json:"status"`
	League struct {
		ID     json.Number `json:"id"`
		Season json.Number `json:"season"`
	} `json:"league"`
	Teams struct {
		Home rawTeamRef `json:"home"`
		Away rawTeamRef `json:"away"`
	} `json:"teams"`
	Scores struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"scores"`
	Periods map[string]struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"periods"`
}

// VolleyballEvent maps one raw volleyball game into the canonical event.
// HomeScore/AwayScore carry sets won; the set-by-set point line goes into
// metadata.
func VolleyballEvent(source string, raw json.RawMessage, now time.Time) (*models.SportEvent, error) {
	var r rawVolleyballGame
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, malformed(models.SportVolleyball, "invalid game payload", err)
	}
	if r.ID.String() == "" {
		return nil, malformed(models.SportVolleyball, "game id missing", nil)
	}

	ev := baseEvent(models.SportVolleyball, source, r.ID.String(), now)
	ev.Status = MapStatus(models.SportVolleyball, r.Status.Short)
	if t, ok := parseWhen(r.Date); ok {
		ev.StartTime = t
	}
	if r.League.ID.String() != "" {
		ev.LeagueExternalID = strPtr(r.League.ID.String())
	}
	if r.League.Season.String() != "" {
		ev.Season = strPtr(r.League.Season.String())
	}
	ev.HomeTeamName = r.Teams.Home.Name
	ev.AwayTeamName = r.Teams.Away.Name
	if r.Teams.Home.ID.String() != "" {
		ev.HomeTeamExternalID = strPtr(r.Teams.Home.ID.String())
	}
	if r.Teams.Away.ID.String() != "" {
		ev.AwayTeamExternalID = strPtr(r.Teams.Away.ID.String())
	}
	ev.HomeScore = r.Scores.Home
	ev.AwayScore = r.Scores.Away

	bag := map[string]any{}
	sets := map[string]map[string]int{}
	for name, p := range r.Periods {
		if p.Home == nil || p.Away == nil {
			continue
		}
		sets[name] = map[string]int{"home": *p.Home, "away": *p.Away}
	}
	if len(sets) > 0 {
		bag["sets"] = sets
	}
	ev.Metadata = metadataJSON(bag)
	return ev, nil
}
