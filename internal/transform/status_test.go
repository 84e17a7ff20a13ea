package transform

import (
	"testing"

	"sportsync/internal/models"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		sport models.Sport
		code  string
		want  models.EventStatus
	}{
		{models.SportFootball, "NS", models.StatusScheduled},
		{models.SportFootball, "1H", models.StatusLive},
		{models.SportFootball, "HT", models.StatusHalftime},
		{models.SportFootball, "FT", models.StatusFinished},
		{models.SportFootball, "ft", models.StatusFinished},
		{models.SportFootball, "PST", models.StatusPostponed},
		{models.SportFootball, "CANC", models.StatusCancelled},
		{models.SportNBA, "1", models.StatusScheduled},
		{models.SportNBA, "2", models.StatusLive},
		{models.SportNBA, "3", models.StatusFinished},
		{models.SportBasketball, "Q3", models.StatusLive},
		{models.SportBasketball, "3", models.StatusFinished},
		{models.SportVolleyball, "S5", models.StatusLive},
		{models.SportHockey, "AOT", models.StatusFinished},
		{models.SportFormula1, "COMPLETED", models.StatusFinished},
		{models.SportFormula1, "Cancelled", models.StatusCancelled},
		// Unknown codes degrade to SCHEDULED instead of failing ingestion.
		{models.SportFootball, "XYZZY", models.StatusScheduled},
		{models.SportBasketball, "", models.StatusScheduled},
		{models.Sport("cricket"), "FT", models.StatusFinished},
	}
	for _, tt := range tests {
		if got := MapStatus(tt.sport, tt.code); got != tt.want {
			t.Fatalf("MapStatus(%s, %q) = %s, want %s", tt.sport, tt.code, got, tt.want)
		}
	}
}

func TestStatusMonotonicity(t *testing.T) {
	tests := []struct {
		from, to models.EventStatus
		ok       bool
	}{
		{models.StatusScheduled, models.StatusLive, true},
		{models.StatusLive, models.StatusHalftime, true},
		{models.StatusHalftime, models.StatusLive, true},
		{models.StatusHalftime, models.StatusFinished, true},
		{models.StatusScheduled, models.StatusPostponed, true},
		{models.StatusLive, models.StatusCancelled, true},
		{models.StatusPostponed, models.StatusScheduled, true},
		{models.StatusFinished, models.StatusScheduled, false},
		{models.StatusFinished, models.StatusLive, false},
		{models.StatusCancelled, models.StatusLive, false},
		{models.StatusHalftime, models.StatusScheduled, false},
		{models.StatusFinished, models.StatusFinished, true},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
			t.Fatalf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}
