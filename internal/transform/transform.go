// Package transform maps raw provider payloads into the canonical models.
// Every sport encodes the same concepts differently (nested vs flat team
// objects, "visitors" vs "away", fighters vs teams, numeric vs string status
// codes); this package is the seam that absorbs that variance so the rest of
// the pipeline only ever sees the canonical shape.
//
// Transformers are pure and total over well-formed input: a missing optional
// field becomes a nil canonical field, never a fabricated value. The one
// deliberate exception is status, where unknown provider codes degrade to
// SCHEDULED instead of failing ingestion.
package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"

	"sportsync/internal/models"
)

// ErrTransform wraps payloads this package could not make sense of. Callers
// log and skip the single record; a malformed item never aborts a batch.
var ErrTransform = errors.New("transform error")

type TransformError struct {
	Sport  models.Sport
	Reason string
	Err    error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %s", e.Sport, e.Reason)
}

func (e *TransformError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrTransform
}

func (e *TransformError) Is(target error) bool {
	return target == ErrTransform
}

func malformed(sport models.Sport, reason string, err error) error {
	return &TransformError{Sport: sport, Reason: reason, Err: err}
}

// EventFunc converts one raw fixture item into one canonical event.
type EventFunc func(source string, raw json.RawMessage, now time.Time) (*models.SportEvent, error)

// eventFuncs is the static dispatch table. Sports without a dedicated
// transformer fall back to Generic.
var eventFuncs = map[models.Sport]EventFunc{
	models.SportFootball:         FootballEvent,
	models.SportBasketball:       BasketballEvent,
	models.SportNBA:              NBAEvent,
	models.SportHockey:           HockeyEvent,
	models.SportMMA:              MMAEvent,
	models.SportFormula1:         Formula1Event,
	models.SportRugby:            RugbyEvent,
	models.SportVolleyball:       VolleyballEvent,
	models.SportHandball:         HandballEvent,
	models.SportAFL:              AFLEvent,
	models.SportAmericanFootball: AmericanFootballEvent,
}

// EventFor returns the transformer for the sport, falling back to the
// best-effort generic transformer for unmapped kinds.
func EventFor(sport models.Sport) EventFunc {
	if fn, ok := eventFuncs[sport]; ok {
		return fn
	}
	return func(source string, raw json.RawMessage, now time.Time) (*models.SportEvent, error) {
		return GenericEvent(sport, source, raw, now)
	}
}

// --- shared helpers ---------------------------------------------------------

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// metadataJSON marshals a sport-specific metadata bag. Empty bags become nil
// so the column stays NULL rather than "{}".
func metadataJSON(bag map[string]any) datatypes.JSON {
	if len(bag) == 0 {
		return nil
	}
	b, err := json.Marshal(bag)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// parseWhen accepts the provider's common timestamp spellings.
func parseWhen(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil && unix > 0 {
		return time.Unix(unix, 0).UTC(), true
	}
	return time.Time{}, false
}

// baseEvent fills the fields every transformer sets the same way.
func baseEvent(sport models.Sport, source, externalID string, now time.Time) *models.SportEvent {
	return &models.SportEvent{
		ExternalID: externalID,
		Source:     source,
		Sport:      sport,
		Status:     models.StatusScheduled,
		LastSeenAt: now,
	}
}
