package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"sportsync/internal/models"
	"sportsync/internal/repository"
)

type lookupRepo struct {
	repository.CatalogRepository

	events map[repository.Identity]models.SportEvent
}

func (r *lookupRepo) GetEventByIdentity(ctx context.Context, key repository.Identity) (*models.SportEvent, error) {
	if ev, ok := r.events[key]; ok {
		return &ev, nil
	}
	return nil, nil
}

func TestGetEventByIdentityRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	repo := &lookupRepo{
		events: map[repository.Identity]models.SportEvent{
			{Source: "sportsdata", ExternalID: "match-77"}: {
				ID:           77,
				ExternalID:   "match-77",
				Source:       "sportsdata",
				Sport:        models.SportFootball,
				HomeTeamName: "Arsenal",
				AwayTeamName: "Chelsea",
				StartTime:    time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC),
				Status:       models.StatusScheduled,
			},
		},
	}
	h := &IngestHandler{Repo: repo}
	router := gin.New()
	h.Register(router)

	tests := []struct {
		name       string
		path       string
		wantCode   int
		wantExtern string
	}{
		{"found", "/api/ingest/events/sportsdata/match-77", http.StatusOK, "match-77"},
		{"unknown id", "/api/ingest/events/sportsdata/match-99", http.StatusNotFound, ""},
		{"unknown source", "/api/ingest/events/oddsfeed/match-77", http.StatusNotFound, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			if tc.wantCode != http.StatusOK {
				return
			}
			var body struct {
				Data models.SportEvent `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body.Data.ExternalID != tc.wantExtern {
				t.Fatalf("external id = %q, want %q", body.Data.ExternalID, tc.wantExtern)
			}
		})
	}
}
