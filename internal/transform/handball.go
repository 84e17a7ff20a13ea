package transform

import (
	"encoding/json"
	"time"

	"sportsync/internal/models"
)

// HandballEvent maps one raw handball game into the canonical event. The
// shape matches rugby's flat game layout.
func HandballEvent(source string, raw json.RawMessage, now time.Time) (*models.SportEvent, error) {
	var r rawRugbyGame
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, malformed(models.SportHandball, "invalid game payload", err)
	}
	if r.ID.String() == "" {
		return nil, malformed(models.SportHandball, "game id missing", nil)
	}

	ev := baseEvent(models.SportHandball, source, r.ID.String(), now)
	ev.Status = MapStatus(models.SportHandball, r.Status.Short)
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
