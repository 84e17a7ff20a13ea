package transform

import (
	"encoding/json"
	"time"

	"sportsync/internal/models"
)

// rawAmFootballGame nests game identity and kickoff under a game object,
// unlike every other team sport on this provider.
type rawAmFootballGame struct {
	Game struct {
		ID   json.Number `json:"id"`
		Week string      `json:"week"`
		Date struct {
			Date string `json:"date"`
			Time string `json:"time"`
		} `json:"date"`
		Status struct {
			Short string `json:"short"`
		} `json:"status"`
		Venue struct {
			Name string `json:"name"`
			City string `json:"city"`
		} `json:"venue"`
	} `json:"game"`
	League struct {
		ID     json.Number `json:"id"`
		Season json.Number `json:"season"`
	} `json:"league"`
	Teams struct {
		Home rawTeamRef `json:"home"`
		Away rawTeamRef `json:"away"`
	} `json:"teams"`
	Scores struct {
		Home struct {
			Total *int `json:"total"`
		} `json:"home"`
		Away struct {
			Total *int `json:"total"`
		} `json:"away"`
	} `json:"scores"`
}

// AmericanFootballEvent maps one raw american-football game into the
// canonical event.
func AmericanFootballEvent(source string, raw json.RawMessage, now time.Time) (*models.SportEvent, error) {
	var r rawAmFootballGame
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, malformed(models.SportAmericanFootball, "invalid game payload", err)
	}
	if r.Game.ID.String() == "" {
		return nil, malformed(models.SportAmericanFootball, "game id missing", nil)
	}

	ev := baseEvent(models.SportAmericanFootball, source, r.Game.ID.String(), now)
	ev.Status = MapStatus(models.SportAmericanFootball, r.Game.Status.Short)
	when := r.Game.Date.Date
	if r.Game.Date.Time != "" {
		when = r.Game.Date.Date + " " + r.Game.Date.Time + ":00"
	}
	if t, ok := parseWhen(when); ok {
		ev.StartTime = t
	}
	if r.League.ID.String() != "" {
		ev.LeagueExternalID = strPtr(r.League.ID.String())
	}
	if r.League.Season.String() != "" {
		ev.Season = strPtr(r.League.Season.String())
	}
	ev.Round = strPtr(r.Game.Week)
	ev.HomeTeamName = r.Teams.Home.Name
	ev.AwayTeamName = r.Teams.Away.Name
	if r.Teams.Home.ID.String() != "" {
		ev.HomeTeamExternalID = strPtr(r.Teams.Home.ID.String())
	}
	if r.Teams.Away.ID.String() != "" {
		ev.AwayTeamExternalID = strPtr(r.Teams.Away.ID.String())
	}
	ev.HomeScore = r.Scores.Home.Total
	ev.AwayScore = r.Scores.Away.Total

	bag := map[string]any{}
	if r.Game.Venue.Name != "" {
		bag["venue"] = r.Game.Venue.Name
	}
	ev.Metadata = metadataJSON(bag)
	return ev, nil
}
