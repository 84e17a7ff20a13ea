package transform

import (
	"encoding/json"
	"time"

	"sportsync/internal/models"
)

// rawHockeyGame: flat game with period scores and an optional overtime flag.
type rawHockeyGame struct {
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
	Periods struct {
		First    *string `json:"first"`
		Second   *string `json:"second"`
		Third    *string `json:"third"`
		Overtime *string `json:"overtime"`
	} `json:"periods"`
}

// HockeyEvent maps one raw hockey game into the canonical event.
func HockeyEvent(source string, raw json.RawMessage, now time.Time) (*models.SportEvent, error) {
	var r rawHockeyGame
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, malformed(models.SportHockey, "invalid game payload", err)
	}
	if r.ID.String() == "" {
		return nil, malformed(models.SportHockey, "game id missing", nil)
	}

	ev := baseEvent(models.SportHockey, source, r.ID.String(), now)
	ev.Status = MapStatus(models.SportHockey, r.Status.Short)
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
	periods := map[string]string{}
	for name, v := range map[string]*string{
		"first":    r.Periods.First,
		"second":   r.Periods.Second,
		"third":    r.Periods.Third,
		"overtime": r.Periods.Overtime,
	} {
		if v != nil && *v != "" {
			periods[name] = *v
		}
	}
	if len(periods) > 0 {
		bag["periods"] = periods
	}
	ev.Metadata = metadataJSON(bag)
	return ev, nil
}
