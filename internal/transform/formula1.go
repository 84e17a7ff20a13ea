package transform

import (
	"encoding/json"
	"time"

	"sportsync/internal/models"
)

// rawF1Race: races have no home/away at all; the competition doubles as the
// league and the circuit goes into metadata.
type rawF1Race struct {
	ID          json.Number `json:"id"`
	Date        string      `json:"date"`
	Status      string      `json:"status"`
	Season      json.Number `json:"season"`
	Type        string      `json:"type"`
	Competition struct {
		ID       json.Number `json:"id"`
		Name     string      `json:"name"`
		Location struct {
			Country string `json:"country"`
			City    string `json:"city"`
		} `json:"location"`
	} `json:"competition"`
	Circuit struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
	} `json:"circuit"`
	Laps struct {
		Current *int `json:"current"`
		Total   *int `json:"total"`
	} `json:"laps"`
}

// Formula1Event maps one raw race into the canonical event. Team fields stay
// empty; the event title information lives in the competition name.
func Formula1Event(source string, raw json.RawMessage, now time.Time) (*models.SportEvent, error) {
	var r rawF1Race
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, malformed(models.SportFormula1, "invalid race payload", err)
	}
	if r.ID.String() == "" {
		return nil, malformed(models.SportFormula1, "race id missing", nil)
	}

	ev := baseEvent(models.SportFormula1, source, r.ID.String(), now)
	ev.Status = MapStatus(models.SportFormula1, r.Status)
	if t, ok := parseWhen(r.Date); ok {
		ev.StartTime = t
	}
	if r.Competition.ID.String() != "" {
		ev.LeagueExternalID = strPtr(r.Competition.ID.String())
	}
	if r.Season.String() != "" {
		ev.Season = strPtr(r.Season.String())
	}
	ev.Round = strPtr(r.Competition.Name)

	bag := map[string]any{}
	if r.Circuit.Name != "" {
		bag["circuit"] = r.Circuit.Name
	}
	if r.Type != "" {
		bag["session_type"] = r.Type
	}
	if r.Competition.Location.Country != "" {
		bag["country"] = r.Competition.Location.Country
	}
	if r.Laps.Total != nil {
		laps := map[string]int{"total": *r.Laps.Total}
		if r.Laps.Current != nil {
			laps["current"] = *r.Laps.Current
		}
		bag["laps"] = laps
	}
	ev.Metadata = metadataJSON(bag)
	return ev, nil
}
