package transform

import (
	"encoding/json"
	"time"

	"sportsync/internal/models"
)

// rawBasketballGame is the flat game shape shared by basketball and, with
// small differences, several other team sports on this provider.
type rawBasketballGame struct {
	ID     json.Number `json:"id"`
	Date   string      `json:"date"`
	Status struct {
		Short json.Number `json:"short"`
		Long  string      `json:"long"`
	} `json:"status"`
	League struct {
		ID     json.Number `json:"id"`
		Name   string      `json:"name"`
		Season json.Number `json:"season"`
	} `json:"league"`
	Teams struct {
		Home rawTeamRef `json:"home"`
		Away rawTeamRef `json:"away"`
	} `json:"teams"`
	Scores struct {
		Home rawBasketScore `json:"home"`
		Away rawBasketScore `json:"away"`
	} `json:"scores"`
}

type rawTeamRef struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
	Logo string      `json:"logo"`
}

type rawBasketScore struct {
	Quarter1 *int `json:"quarter_1"`
	Quarter2 *int `json:"quarter_2"`
	Quarter3 *int `json:"quarter_3"`
	Quarter4 *int `json:"quarter_4"`
	Overtime *int `json:"over_time"`
	Total    *int `json:"total"`
}

// BasketballEvent maps one raw basketball game into the canonical event.
func BasketballEvent(source string, raw json.RawMessage, now time.Time) (*models.SportEvent, error) {
	var r rawBasketballGame
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, malformed(models.SportBasketball, "invalid game payload", err)
	}
	if r.ID.String() == "" {
		return nil, malformed(models.SportBasketball, "game id missing", nil)
	}

	ev := baseEvent(models.SportBasketball, source, r.ID.String(), now)
	ev.Status = MapStatus(models.SportBasketball, r.Status.Short.String())
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
	ev.HomeScore = r.Scores.Home.Total
	ev.AwayScore = r.Scores.Away.Total

	bag := map[string]any{}
	if quarters := quarterLine(r.Scores.Home, r.Scores.Away); quarters != nil {
		bag["quarters"] = quarters
	}
	ev.Metadata = metadataJSON(bag)
	return ev, nil
}

func quarterLine(home, away rawBasketScore) []map[string]int {
	pairs := [][2]*int{
		{home.Quarter1, away.Quarter1},
		{home.Quarter2, away.Quarter2},
		{home.Quarter3, away.Quarter3},
		{home.Quarter4, away.Quarter4},
		{home.Overtime, away.Overtime},
	}
	var line []map[string]int
	for _, p := range pairs {
		if p[0] == nil || p[1] == nil {
			continue
		}
		line = append(line, map[string]int{"home": *p[0], "away": *p[1]})
	}
	return line
}

// rawNBAGame is the NBA-specific shape: numeric status codes, "visitors"
// instead of "away", and the start time nested under date.start.
type rawNBAGame struct {
	ID   json.Number `json:"id"`
	Date struct {
		Start string `json:"start"`
	} `json:"date"`
	Status struct {
		Short json.Number `json:"short"`
		Long  string      `json:"long"`
	} `json:"status"`
	Season json.Number `json:"season"`
	Stage  *int        `json:"stage"`
	Teams  struct {
		Home     rawNBATeamRef `json:"home"`
		Visitors rawNBATeamRef `json:"visitors"`
	} `json:"teams"`
	Scores struct {
		Home     rawNBAScore `json:"home"`
		Visitors rawNBAScore `json:"visitors"`
	} `json:"scores"`
}

type rawNBATeamRef struct {
	ID       json.Number `json:"id"`
	Name     string      `json:"name"`
	Nickname string      `json:"nickname"`
	Logo     string      `json:"logo"`
}

type rawNBAScore struct {
	Points    *int     `json:"points"`
	Linescore []string `json:"linescore"`
}

// NBAEvent maps one raw NBA game into the canonical event.
func NBAEvent(source string, raw json.RawMessage, now time.Time) (*models.SportEvent, error) {
	var r rawNBAGame
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, malformed(models.SportNBA, "invalid game payload", err)
	}
	if r.ID.String() == "" {
		return nil, malformed(models.SportNBA, "game id missing", nil)
	}

	ev := baseEvent(models.SportNBA, source, r.ID.String(), now)
	ev.Status = MapStatus(models.SportNBA, r.Status.Short.String())
	if t, ok := parseWhen(r.Date.Start); ok {
		ev.StartTime = t
	}
	if r.Season.String() != "" {
		ev.Season = strPtr(r.Season.String())
	}
	ev.HomeTeamName = r.Teams.Home.Name
	ev.AwayTeamName = r.Teams.Visitors.Name
	if r.Teams.Home.ID.String() != "" {
		ev.HomeTeamExternalID = strPtr(r.Teams.Home.ID.String())
	}
	if r.Teams.Visitors.ID.String() != "" {
		ev.AwayTeamExternalID = strPtr(r.Teams.Visitors.ID.String())
	}
	ev.HomeScore = r.Scores.Home.Points
	ev.AwayScore = r.Scores.Visitors.Points

	bag := map[string]any{}
	if len(r.Scores.Home.Linescore) > 0 {
		bag["linescore"] = map[string][]string{
			"home": r.Scores.Home.Linescore,
			"away": r.Scores.Visitors.Linescore,
		}
	}
	if r.Stage != nil {
		bag["stage"] = *r.Stage
	}
	ev.Metadata = metadataJSON(bag)
	return ev, nil
}
