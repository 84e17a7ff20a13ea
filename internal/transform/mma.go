package transform

import (
	"encoding/json"
	"time"

	"sportsync/internal/models"
)

// rawMMAFight: combat sports have fighters instead of teams and no league;
// the category string carries the weight class.
type rawMMAFight struct {
	ID     json.Number `json:"id"`
	Date   string      `json:"date"`
	Status struct {
		Short string `json:"short"`
	} `json:"status"`
	Slug     string `json:"slug"`
	Category string `json:"category"`
	IsMain   *bool  `json:"is_main"`
	Fighters struct {
		First  rawFighter `json:"first"`
		Second rawFighter `json:"second"`
	} `json:"fighters"`
}

type rawFighter struct {
	ID     json.Number `json:"id"`
	Name   string      `json:"name"`
	Record string      `json:"record"`
	Winner *bool       `json:"winner"`
}

// MMAEvent maps one raw fight into the canonical event. The first fighter
// takes the home slot, the second the away slot; the winner flag and fighter
// records land in the metadata bag rather than the score columns.
func MMAEvent(source string, raw json.RawMessage, now time.Time) (*models.SportEvent, error) {
	var r rawMMAFight
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, malformed(models.SportMMA, "invalid fight payload", err)
	}
	if r.ID.String() == "" {
		return nil, malformed(models.SportMMA, "fight id missing", nil)
	}

	ev := baseEvent(models.SportMMA, source, r.ID.String(), now)
	ev.Status = MapStatus(models.SportMMA, r.Status.Short)
	if t, ok := parseWhen(r.Date); ok {
		ev.StartTime = t
	}
	ev.HomeTeamName = r.Fighters.First.Name
	ev.AwayTeamName = r.Fighters.Second.Name
	if r.Fighters.First.ID.String() != "" {
		ev.HomeTeamExternalID = strPtr(r.Fighters.First.ID.String())
	}
	if r.Fighters.Second.ID.String() != "" {
		ev.AwayTeamExternalID = strPtr(r.Fighters.Second.ID.String())
	}

	bag := map[string]any{}
	if r.Category != "" {
		bag["weight_class"] = r.Category
	}
	if r.Slug != "" {
		bag["slug"] = r.Slug
	}
	if r.IsMain != nil {
		bag["is_main"] = *r.IsMain
	}
	records := map[string]string{}
	if r.Fighters.First.Record != "" {
		records["first"] = r.Fighters.First.Record
	}
	if r.Fighters.Second.Record != "" {
		records["second"] = r.Fighters.Second.Record
	}
	if len(records) > 0 {
		bag["records"] = records
	}
	if r.Fighters.First.Winner != nil && *r.Fighters.First.Winner {
		bag["winner"] = "first"
	} else if r.Fighters.Second.Winner != nil && *r.Fighters.Second.Winner {
		bag["winner"] = "second"
	}
	ev.Metadata = metadataJSON(bag)
	return ev, nil
}
