package ingest

import (
	"strings"
	"time"
	"unicode"

	"sportsync/internal/models"
)

// MatchKey correlates the same real-world contest across providers that do
// not share identifiers: sport, UTC calendar date and normalized team names.
type MatchKey struct {
	Sport models.Sport
	Date  string // YYYY-MM-DD in UTC
	Home  string
	Away  string
}

// KeyFor derives the cross-source match key for an event.
func KeyFor(ev *models.SportEvent) MatchKey {
	return MatchKey{
		Sport: ev.Sport,
		Date:  ev.StartTime.UTC().Format("2006-01-02"),
		Home:  NormalizeTeamName(ev.HomeTeamName),
		Away:  NormalizeTeamName(ev.AwayTeamName),
	}
}

// NormalizeTeamName lowers, strips punctuation and collapses whitespace so
// "St. Louis  FC" and "st louis fc" correlate.
func NormalizeTeamName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) && !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Merger reconciles one batch across sources: within-source duplicates
// collapse to the freshest record, and cross-source records describing the
// same contest gap-fill the highest-priority source's row. Every source's
// row still lands; priority decides fields, never row survival.
type Merger struct {
	// Priority ranks sources; higher wins. Unknown sources rank zero.
	Priority map[string]int
}

func NewMerger(priority map[string]int) *Merger {
	return &Merger{Priority: priority}
}

func (m *Merger) rank(source string) int {
	if m == nil {
		return 0
	}
	return m.Priority[source]
}

// Dedup collapses same-identity duplicates inside one batch, keeping the
// last occurrence. Providers occasionally repeat a fixture across pages.
func Dedup(events []*models.SportEvent) []*models.SportEvent {
	if len(events) < 2 {
		return events
	}
	seen := make(map[string]int, len(events))
	out := events[:0]
	for _, ev := range events {
		key := ev.Source + "|" + ev.ExternalID
		if idx, ok := seen[key]; ok {
			out[idx] = ev
			continue
		}
		seen[key] = len(out)
		out = append(out, ev)
	}
	return out
}

// Merge reconciles cross-source overlap in a batch. Each match key's
// highest-priority record has its missing fields filled from the other
// sources' records; every record stays in the batch, keeping one row per
// (source, externalId). Same-source key collisions are left alone: two
// fixtures from one provider with the same teams on the same day are a
// doubleheader, not a duplicate.
func (m *Merger) Merge(events []*models.SportEvent) []*models.SportEvent {
	if len(events) < 2 {
		return events
	}
	leaders := make(map[MatchKey]*models.SportEvent, len(events))
	for _, ev := range events {
		key := KeyFor(ev)
		if key.Home == "" || key.Away == "" {
			continue // unkeyable
		}
		cur, ok := leaders[key]
		if !ok {
			leaders[key] = ev
			continue
		}
		if cur.Source == ev.Source {
			continue
		}
		// Ties keep the record seen first.
		if m.rank(ev.Source) > m.rank(cur.Source) {
			fillGaps(ev, cur)
			leaders[key] = ev
			continue
		}
		fillGaps(cur, ev)
	}
	return events
}

// fillGaps copies fields the winner lacks from the loser. Set fields are
// never overwritten; priority decides conflicts, gaps decide nothing.
func fillGaps(winner, loser *models.SportEvent) {
	if winner.Season == nil {
		winner.Season = loser.Season
	}
	if winner.Round == nil {
		winner.Round = loser.Round
	}
	if winner.HomeScore == nil {
		winner.HomeScore = loser.HomeScore
	}
	if winner.AwayScore == nil {
		winner.AwayScore = loser.AwayScore
	}
	if winner.LeagueExternalID == nil {
		winner.LeagueExternalID = loser.LeagueExternalID
	}
	if winner.HomeTeamExternalID == nil {
		winner.HomeTeamExternalID = loser.HomeTeamExternalID
	}
	if winner.AwayTeamExternalID == nil {
		winner.AwayTeamExternalID = loser.AwayTeamExternalID
	}
	if len(winner.Metadata) == 0 {
		winner.Metadata = loser.Metadata
	}
	if loser.HasMarket {
		winner.HasMarket = true
	}
	if winner.StartTime.IsZero() {
		winner.StartTime = loser.StartTime
	}
}

// WithinWindow reports whether the event starts inside [from, to).
func WithinWindow(ev *models.SportEvent, from, to time.Time) bool {
	return !ev.StartTime.Before(from) && ev.StartTime.Before(to)
}
