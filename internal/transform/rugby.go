package transform

import (
	"encoding/json"
	"time"

	"sportsync/internal/models"
)

// rawRugbyGame matches the basketball shape except scores are plain totals
// and the week field replaces rounds.
type rawRugbyGame struct {
	ID     json.Number `json:"id"`
	Date   string      `json:"date"`
	Week   string      `json:"week"`
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
}

// RugbyEvent maps one raw rugby game into the canonical event.
func RugbyEvent(source string, raw json.RawMessage, now time.Time) (*models.SportEvent, error) {
	var r rawRugbyGame
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, malformed(models.SportRugby, "invalid game payload", err)
	}
	if r.ID.String() == "" {
		return nil, malformed(models.SportRugby, "game id missing", nil)
	}

	ev := baseEvent(models.SportRugby, source, r.ID.String(), now)
	ev.Status = MapStatus(models.SportRugby, r.Status.Short)
	if t, ok := parseWhen(r.Date); ok {
		ev.StartTime = t
	}
	if r.League.ID.String() != "" {
		ev.LeagueExternalID = strPtr(r.League.ID.String())
	}
	if r.League.Season.String() != "" {
		ev.Season = strPtr(r.League.Season.String())
	}
	ev.Round = strPtr(r.Week)
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
	return ev, nil
}
