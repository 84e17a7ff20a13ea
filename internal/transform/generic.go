package transform

import (
	"encoding/json"
	"time"

	"sportsync/internal/models"
)

// rawGenericGame probes the field spellings seen across the provider's
// sports. It deliberately over-declares; absent fields simply stay zero.
type rawGenericGame struct {
	ID   json.Number `json:"id"`
	Game struct {
		ID json.Number `json:"id"`
	} `json:"game"`
	Fixture struct {
		ID     json.Number `json:"id"`
		Date   string      `json:"date"`
		Status struct {
			Short string `json:"short"`
		} `json:"status"`
	} `json:"fixture"`
	Date   string `json:"date"`
	Status struct {
		Short json.RawMessage `json:"short"`
	} `json:"status"`
	League struct {
		ID     json.Number `json:"id"`
		Season json.Number `json:"season"`
	} `json:"league"`
	Teams struct {
		Home     rawTeamRef `json:"home"`
		Away     rawTeamRef `json:"away"`
		Visitors rawTeamRef `json:"visitors"`
	} `json:"teams"`
	Scores struct {
		Home json.RawMessage `json:"home"`
		Away json.RawMessage `json:"away"`
	} `json:"scores"`
}

// GenericEvent is the best-effort fallback for sports without a dedicated
// transformer. It extracts the common denominator and leaves the rest null.
func GenericEvent(sport models.Sport, source string, raw json.RawMessage, now time.Time) (*models.SportEvent, error) {
	var r rawGenericGame
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, malformed(sport, "invalid payload", err)
	}

	externalID := r.ID.String()
	if externalID == "" {
		externalID = r.Game.ID.String()
	}
	if externalID == "" {
		externalID = r.Fixture.ID.String()
	}
	if externalID == "" {
		return nil, malformed(sport, "no recognizable id field", nil)
	}

	ev := baseEvent(sport, source, externalID, now)
	statusCode := probeCode(r.Status.Short)
	if statusCode == "" {
		statusCode = r.Fixture.Status.Short
	}
	ev.Status = MapStatus(sport, statusCode)

	date := r.Date
	if date == "" {
		date = r.Fixture.Date
	}
	if t, ok := parseWhen(date); ok {
		ev.StartTime = t
	}
	if r.League.ID.String() != "" {
		ev.LeagueExternalID = strPtr(r.League.ID.String())
	}
	if r.League.Season.String() != "" {
		ev.Season = strPtr(r.League.Season.String())
	}

	away := r.Teams.Away
	if away.Name == "" && r.Teams.Visitors.Name != "" {
		away = r.Teams.Visitors
	}
	ev.HomeTeamName = r.Teams.Home.Name
	ev.AwayTeamName = away.Name
	if r.Teams.Home.ID.String() != "" {
		ev.HomeTeamExternalID = strPtr(r.Teams.Home.ID.String())
	}
	if away.ID.String() != "" {
		ev.AwayTeamExternalID = strPtr(away.ID.String())
	}
	ev.HomeScore = probeScore(r.Scores.Home)
	ev.AwayScore = probeScore(r.Scores.Away)
	return ev, nil
}

// probeCode accepts a status code spelled as a string ("FT") or a bare
// number (3) and renders it for the status tables.
func probeCode(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// probeScore accepts a bare number, a {"total": n} object or a
// {"points": n} object.
func probeScore(raw json.RawMessage) *int {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}
	var obj struct {
		Total  *int `json:"total"`
		Points *int `json:"points"`
		Score  *int `json:"score"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Total != nil {
			return obj.Total
		}
		if obj.Points != nil {
			return obj.Points
		}
		if obj.Score != nil {
			return obj.Score
		}
	}
	return nil
}
