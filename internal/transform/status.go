package transform

import (
	"strings"

	"sportsync/internal/models"
)

// Status mapping is table-driven per provider vocabulary. Unrecognized codes
// map to SCHEDULED so unknown provider additions degrade gracefully instead
// of breaking ingestion.

// footballStatus covers the football short codes and doubles as the default
// vocabulary for the other string-coded sports, which reuse most of it.
var footballStatus = map[string]models.EventStatus{
	"TBD":  models.StatusScheduled,
	"NS":   models.StatusScheduled,
	"1H":   models.StatusLive,
	"2H":   models.StatusLive,
	"ET":   models.StatusLive,
	"BT":   models.StatusLive,
	"P":    models.StatusLive,
	"SUSP": models.StatusLive,
	"INT":  models.StatusLive,
	"LIVE": models.StatusLive,
	"HT":   models.StatusHalftime,
	"FT":   models.StatusFinished,
	"AET":  models.StatusFinished,
	"PEN":  models.StatusFinished,
	"PST":  models.StatusPostponed,
	"CANC": models.StatusCancelled,
	"ABD":  models.StatusCancelled,
	"AWD":  models.StatusFinished,
	"WO":   models.StatusFinished,
}

// periodStatus covers the quarter/period/set sports (basketball, hockey,
// rugby, volleyball, handball, AFL, american football).
var periodStatus = map[string]models.EventStatus{
	"NS":   models.StatusScheduled,
	"Q1":   models.StatusLive,
	"Q2":   models.StatusLive,
	"Q3":   models.StatusLive,
	"Q4":   models.StatusLive,
	"P1":   models.StatusLive,
	"P2":   models.StatusLive,
	"P3":   models.StatusLive,
	"S1":   models.StatusLive,
	"S2":   models.StatusLive,
	"S3":   models.StatusLive,
	"S4":   models.StatusLive,
	"S5":   models.StatusLive,
	"OT":   models.StatusLive,
	"BT":   models.StatusLive,
	"LIVE": models.StatusLive,
	"HT":   models.StatusHalftime,
	"FT":   models.StatusFinished,
	"AOT":  models.StatusFinished,
	"AP":   models.StatusFinished,
	"POST": models.StatusPostponed,
	"PST":  models.StatusPostponed,
	"CANC": models.StatusCancelled,
	"ABD":  models.StatusCancelled,
}

// numericStatus covers providers that encode game state as a small integer
// (NBA): 1 scheduled, 2 in play, 3 finished.
var numericStatus = map[string]models.EventStatus{
	"1": models.StatusScheduled,
	"2": models.StatusLive,
	"3": models.StatusFinished,
}

// raceStatus covers Formula-1 race state words.
var raceStatus = map[string]models.EventStatus{
	"SCHEDULED": models.StatusScheduled,
	"LIVE":      models.StatusLive,
	"COMPLETED": models.StatusFinished,
	"FINISHED":  models.StatusFinished,
	"POSTPONED": models.StatusPostponed,
	"CANCELLED": models.StatusCancelled,
	"CANCELED":  models.StatusCancelled,
}

var statusTables = map[models.Sport]map[string]models.EventStatus{
	models.SportFootball:         footballStatus,
	models.SportBasketball:       periodStatus,
	models.SportNBA:              numericStatus,
	models.SportHockey:           periodStatus,
	models.SportMMA:              footballStatus,
	models.SportFormula1:         raceStatus,
	models.SportRugby:            periodStatus,
	models.SportVolleyball:       periodStatus,
	models.SportHandball:         periodStatus,
	models.SportAFL:              periodStatus,
	models.SportAmericanFootball: periodStatus,
}

// MapStatus normalizes one provider status code into the canonical
// enumeration. Unknown codes default to SCHEDULED.
func MapStatus(sport models.Sport, code string) models.EventStatus {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return models.StatusScheduled
	}
	table, ok := statusTables[sport]
	if !ok {
		table = footballStatus
	}
	if status, ok := table[code]; ok {
		return status
	}
	// Numeric codes leak into string-coded sports on some endpoints.
	if status, ok := numericStatus[code]; ok {
		return status
	}
	return models.StatusScheduled
}
