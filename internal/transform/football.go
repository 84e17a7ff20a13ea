package transform

import (
	"encoding/json"
	"time"

	"sportsync/internal/models"
)

// rawFootballFixture is the provider's football fixture shape: deeply nested,
// with fixture/league/teams/goals as sibling objects.
type rawFootballFixture struct {
	Fixture struct {
		ID     json.Number `json:"id"`
		Date   string      `json:"date"`
		Status struct {
			Short   string `json:"short"`
			Elapsed *int   `json:"elapsed"`
		} `json:"status"`
		Venue struct {
			Name string `json:"name"`
			City string `json:"city"`
		} `json:"venue"`
	} `json:"fixture"`
	League struct {
		ID     json.Number `json:"id"`
		Name   string      `json:"name"`
		Season json.Number `json:"season"`
		Round  string      `json:"round"`
	} `json:"league"`
	Teams struct {
		Home rawFootballTeamRef `json:"home"`
		Away rawFootballTeamRef `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
	Score struct {
		Halftime struct {
			Home *int `json:"home"`
			Away *int `json:"away"`
		} `json:"halftime"`
		Penalty struct {
			Home *int `json:"home"`
			Away *int `json:"away"`
		} `json:"penalty"`
	} `json:"score"`
}

type rawFootballTeamRef struct {
	ID     json.Number `json:"id"`
	Name   string      `json:"name"`
	Logo   string      `json:"logo"`
	Winner *bool       `json:"winner"`
}

// FootballEvent maps one raw football fixture into the canonical event.
func FootballEvent(source string, raw json.RawMessage, now time.Time) (*models.SportEvent, error) {
	var r rawFootballFixture
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, malformed(models.SportFootball, "invalid fixture payload", err)
	}
	if r.Fixture.ID.String() == "" {
		return nil, malformed(models.SportFootball, "fixture id missing", nil)
	}

	ev := baseEvent(models.SportFootball, source, r.Fixture.ID.String(), now)
	ev.Status = MapStatus(models.SportFootball, r.Fixture.Status.Short)
	if t, ok := parseWhen(r.Fixture.Date); ok {
		ev.StartTime = t
	}
	if r.League.ID.String() != "" {
		ev.LeagueExternalID = strPtr(r.League.ID.String())
	}
	if r.League.Season.String() != "" {
		ev.Season = strPtr(r.League.Season.String())
	}
	ev.Round = strPtr(r.League.Round)
	ev.HomeTeamName = r.Teams.Home.Name
	ev.AwayTeamName = r.Teams.Away.Name
	if r.Teams.Home.ID.String() != "" {
		ev.HomeTeamExternalID = strPtr(r.Teams.Home.ID.String())
	}
	if r.Teams.Away.ID.String() != "" {
		ev.AwayTeamExternalID = strPtr(r.Teams.Away.ID.String())
	}
	ev.HomeScore = r.Goals.Home
	ev.AwayScore = r.Goals.Away

	bag := map[string]any{}
	if r.Fixture.Status.Elapsed != nil {
		bag["elapsed"] = *r.Fixture.Status.Elapsed
	}
	if r.Fixture.Venue.Name != "" {
		bag["venue"] = r.Fixture.Venue.Name
	}
	if r.Score.Halftime.Home != nil && r.Score.Halftime.Away != nil {
		bag["halftime"] = map[string]int{"home": *r.Score.Halftime.Home, "away": *r.Score.Halftime.Away}
	}
	if r.Score.Penalty.Home != nil && r.Score.Penalty.Away != nil {
		bag["penalties"] = map[string]int{"home": *r.Score.Penalty.Home, "away": *r.Score.Penalty.Away}
	}
	ev.Metadata = metadataJSON(bag)
	return ev, nil
}

// rawFootballLeague wraps league + country + seasons.
type rawFootballLeague struct {
	League struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
		Logo string      `json:"logo"`
	} `json:"league"`
	Country struct {
		Name string `json:"name"`
		Code string `json:"code"`
	} `json:"country"`
	Seasons []struct {
		Year    json.Number `json:"year"`
		Current bool        `json:"current"`
	} `json:"seasons"`
}

// FootballLeague maps one raw league item into the canonical league.
func FootballLeague(source string, raw json.RawMessage, now time.Time) (*models.League, error) {
	var r rawFootballLeague
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, malformed(models.SportFootball, "invalid league payload", err)
	}
	if r.League.ID.String() == "" {
		return nil, malformed(models.SportFootball, "league id missing", nil)
	}
	league := &models.League{
		ExternalID: r.League.ID.String(),
		Source:     source,
		Sport:      models.SportFootball,
		Name:       r.League.Name,
		Country:    strPtr(r.Country.Name),
		LogoURL:    strPtr(r.League.Logo),
		IsActive:   true,
		LastSeenAt: now,
	}
	for _, s := range r.Seasons {
		if s.Current {
			league.Season = strPtr(s.Year.String())
		}
	}
	bag := map[string]any{}
	if r.Country.Code != "" {
		bag["country_code"] = r.Country.Code
	}
	league.Metadata = metadataJSON(bag)
	return league, nil
}

// rawFootballTeam wraps team + venue.
type rawFootballTeam struct {
	Team struct {
		ID      json.Number `json:"id"`
		Name    string      `json:"name"`
		Code    string      `json:"code"`
		Country string      `json:"country"`
		Logo    string      `json:"logo"`
	} `json:"team"`
	Venue struct {
		Name     string `json:"name"`
		City     string `json:"city"`
		Capacity *int   `json:"capacity"`
	} `json:"venue"`
}

// FootballTeam maps one raw team item into the canonical team.
func FootballTeam(source string, raw json.RawMessage, now time.Time) (*models.Team, error) {
	var r rawFootballTeam
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, malformed(models.SportFootball, "invalid team payload", err)
	}
	if r.Team.ID.String() == "" {
		return nil, malformed(models.SportFootball, "team id missing", nil)
	}
	return &models.Team{
		ExternalID:    r.Team.ID.String(),
		Source:        source,
		Sport:         models.SportFootball,
		Name:          r.Team.Name,
		Code:          strPtr(r.Team.Code),
		Country:       strPtr(r.Team.Country),
		LogoURL:       strPtr(r.Team.Logo),
		VenueName:     strPtr(r.Venue.Name),
		VenueCity:     strPtr(r.Venue.City),
		VenueCapacity: r.Venue.Capacity,
		LastSeenAt:    now,
	}, nil
}
