package models

// Sport identifies one provider sport context. The primary provider exposes
// every sport behind the same client shape but different hosts/paths, so the
// value doubles as the routing key for the client's sport switch.
type Sport string

const (
	SportFootball         Sport = "football"
	SportBasketball       Sport = "basketball"
	SportNBA              Sport = "nba"
	SportHockey           Sport = "hockey"
	SportMMA              Sport = "mma"
	SportFormula1         Sport = "formula1"
	SportRugby            Sport = "rugby"
	SportVolleyball       Sport = "volleyball"
	SportHandball         Sport = "handball"
	SportAFL              Sport = "afl"
	SportAmericanFootball Sport = "american-football"
)

// AllSports lists every sport the primary provider can be routed to.
var AllSports = []Sport{
	SportFootball,
	SportBasketball,
	SportNBA,
	SportHockey,
	SportMMA,
	SportFormula1,
	SportRugby,
	SportVolleyball,
	SportHandball,
	SportAFL,
	SportAmericanFootball,
}

// EventStatus is the canonical fixture state machine. Transitions are
// monotonic: SCHEDULED -> LIVE <-> HALFTIME -> FINISHED, with POSTPONED and
// CANCELLED reachable from SCHEDULED or LIVE. FINISHED and CANCELLED are
// terminal; the pipeline never regresses past them.
type EventStatus string

const (
	StatusScheduled EventStatus = "SCHEDULED"
	StatusLive      EventStatus = "LIVE"
	StatusHalftime  EventStatus = "HALFTIME"
	StatusFinished  EventStatus = "FINISHED"
	StatusPostponed EventStatus = "POSTPONED"
	StatusCancelled EventStatus = "CANCELLED"
)

// LIVE and HALFTIME share a rank: play alternates between them until the
// final whistle, so neither may pin the other.
var statusRank = map[EventStatus]int{
	StatusScheduled: 0,
	StatusPostponed: 1,
	StatusLive:      2,
	StatusHalftime:  2,
	StatusFinished:  3,
	StatusCancelled: 3,
}

// IsTerminal reports whether no further transition is allowed from s.
func (s EventStatus) IsTerminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// CanTransitionTo reports whether moving from s to next respects the state
// machine. Re-asserting the current status is always allowed so idempotent
// re-ingestion stays a no-op.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	// POSTPONED may be rescheduled back into the normal flow.
	if s == StatusPostponed {
		return true
	}
	return statusRank[next] >= statusRank[s]
}
