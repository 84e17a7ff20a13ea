package transform

import (
	"encoding/json"
	"time"

	"sportsync/internal/models"
)

// LeagueFunc converts one raw league item into the canonical league.
type LeagueFunc func(source string, raw json.RawMessage, now time.Time) (*models.League, error)

// TeamFunc converts one raw team item into the canonical team.
type TeamFunc func(source string, raw json.RawMessage, now time.Time) (*models.Team, error)

// LeagueFor returns the league transformer for the sport. Only football
// wraps its league object; every other sport uses the flat shape.
func LeagueFor(sport models.Sport) LeagueFunc {
	if sport == models.SportFootball {
		return FootballLeague
	}
	return func(source string, raw json.RawMessage, now time.Time) (*models.League, error) {
		return genericLeague(sport, source, raw, now)
	}
}

// TeamFor returns the team transformer for the sport.
func TeamFor(sport models.Sport) TeamFunc {
	if sport == models.SportFootball {
		return FootballTeam
	}
	return func(source string, raw json.RawMessage, now time.Time) (*models.Team, error) {
		return genericTeam(sport, source, raw, now)
	}
}

// rawFlatLeague is the league shape for the non-football sports.
type rawFlatLeague struct {
	ID      json.Number `json:"id"`
	Name    string      `json:"name"`
	Type    string      `json:"type"`
	Logo    string      `json:"logo"`
	Country struct {
		Name string `json:"name"`
		Code string `json:"code"`
	} `json:"country"`
	Seasons []struct {
		Season  json.Number `json:"season"`
		Current bool        `json:"current"`
	} `json:"seasons"`
}

func genericLeague(sport models.Sport, source string, raw json.RawMessage, now time.Time) (*models.League, error) {
	var r rawFlatLeague
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, malformed(sport, "invalid league payload", err)
	}
	if r.ID.String() == "" {
		return nil, malformed(sport, "league id missing", nil)
	}
	league := &models.League{
		ExternalID: r.ID.String(),
		Source:     source,
		Sport:      sport,
		Name:       r.Name,
		Country:    strPtr(r.Country.Name),
		LogoURL:    strPtr(r.Logo),
		IsActive:   true,
		LastSeenAt: now,
	}
	for _, s := range r.Seasons {
		if s.Current {
			league.Season = strPtr(s.Season.String())
		}
	}
	bag := map[string]any{}
	if r.Type != "" {
		bag["type"] = r.Type
	}
	if r.Country.Code != "" {
		bag["country_code"] = r.Country.Code
	}
	league.Metadata = metadataJSON(bag)
	return league, nil
}

// rawFlatTeam is the team shape for the non-football sports.
type rawFlatTeam struct {
	ID       json.Number `json:"id"`
	Name     string      `json:"name"`
	Logo     string      `json:"logo"`
	National bool        `json:"national"`
	Country  struct {
		Name string `json:"name"`
	} `json:"country"`
}

func genericTeam(sport models.Sport, source string, raw json.RawMessage, now time.Time) (*models.Team, error) {
	var r rawFlatTeam
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, malformed(sport, "invalid team payload", err)
	}
	if r.ID.String() == "" {
		return nil, malformed(sport, "team id missing", nil)
	}
	team := &models.Team{
		ExternalID: r.ID.String(),
		Source:     source,
		Sport:      sport,
		Name:       r.Name,
		Country:    strPtr(r.Country.Name),
		LogoURL:    strPtr(r.Logo),
		LastSeenAt: now,
	}
	bag := map[string]any{}
	if r.National {
		bag["national"] = true
	}
	team.Metadata = metadataJSON(bag)
	return team, nil
}
