package eventbus

import (
	"crypto/rand"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event types published by the ingestion pipeline.
const (
	TypeSportsUpdate = "sports.update"
	TypeMarketUpdate = "market.update"
)

// Aggregate types carried on events and in the event log.
const (
	AggregateEvent  = "sport_event"
	AggregateMarket = "market"
)

// Event is one domain occurrence. IDs are ULIDs so the log stays sortable
// by creation time even across processes.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewEvent stamps a fresh ULID and timestamp. The payload is marshalled
// once here so subscribers all observe the same bytes.
func NewEvent(eventType, aggregateType, aggregateID string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	now := time.Now().UTC()
	return Event{
		ID:            ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       body,
		OccurredAt:    now,
	}, nil
}

// EventPayload is the wire body shared by sports.update and market.update.
// Status and Live describe the aggregate after the write, so routing layers
// never need to load the row to classify the update.
type EventPayload struct {
	Sport      string          `json:"sport"`
	Source     string          `json:"source"`
	ExternalID string          `json:"external_id"`
	Op         string          `json:"op"` // created | updated
	Status     string          `json:"status,omitempty"`
	Live       bool            `json:"live,omitempty"`
	Entity     json.RawMessage `json:"entity,omitempty"`
}
