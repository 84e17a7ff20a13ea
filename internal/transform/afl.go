package transform

import (
	"encoding/json"
	"time"

	"sportsync/internal/models"
)

// rawAFLGame: Australian football nests the game id and splits scores into
// goals (6 points) and behinds (1 point).
type rawAFLGame struct {
	Game struct {
		ID json.Number `json:"id"`
	} `json:"game"`
	Date   string `json:"date"`
	Round  string `json:"round"`
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
		Home rawAFLScore `json:"home"`
		Away rawAFLScore `json:"away"`
	} `json:"scores"`
}

type rawAFLScore struct {
	Score   *int `json:"score"`
	Goals   *int `json:"goals"`
	Behinds *int `json:"behinds"`
}

// AFLEvent maps one raw AFL game into the canonical event. Total points go
// into the score columns; the goals/behinds breakdown goes into metadata.
func AFLEvent(source string, raw json.RawMessage, now time.Time) (*models.SportEvent, error) {
	var r rawAFLGame
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, malformed(models.SportAFL, "invalid game payload", err)
	}
	if r.Game.ID.String() == "" {
		return nil, malformed(models.SportAFL, "game id missing", nil)
	}

	ev := baseEvent(models.SportAFL, source, r.Game.ID.String(), now)
	ev.Status = MapStatus(models.SportAFL, r.Status.Short)
	if t, ok := parseWhen(r.Date); ok {
		ev.StartTime = t
	}
	if r.League.ID.String() != "" {
		ev.LeagueExternalID = strPtr(r.League.ID.String())
	}
	if r.League.Season.String() != "" {
		ev.Season = strPtr(r.League.Season.String())
	}
	ev.Round = strPtr(r.Round)
	ev.HomeTeamName = r.Teams.Home.Name
	ev.AwayTeamName = r.Teams.Away.Name
	if r.Teams.Home.ID.String() != "" {
		ev.HomeTeamExternalID = strPtr(r.Teams.Home.ID.String())
	}
	if r.Teams.Away.ID.String() != "" {
		ev.AwayTeamExternalID = strPtr(r.Teams.Away.ID.String())
	}
	ev.HomeScore = r.Scores.Home.Score
	ev.AwayScore = r.Scores.Away.Score

	bag := map[string]any{}
	breakdown := map[string]map[string]int{}
	if r.Scores.Home.Goals != nil && r.Scores.Home.Behinds != nil {
		breakdown["home"] = map[string]int{"goals": *r.Scores.Home.Goals, "behinds": *r.Scores.Home.Behinds}
	}
	if r.Scores.Away.Goals != nil && r.Scores.Away.Behinds != nil {
		breakdown["away"] = map[string]int{"goals": *r.Scores.Away.Goals, "behinds": *r.Scores.Away.Behinds}
	}
	if len(breakdown) > 0 {
		bag["breakdown"] = breakdown
	}
	ev.Metadata = metadataJSON(bag)
	return ev, nil
}
