package evaluation

import "github.com/trial-eligibility-engine/internal/domain"

// Or combines evaluations of criteria of which one must hold. The best result
// wins. Messages, events and the missing-molecular flag are merged from the
// evaluations carrying the winning result only, and the combined evaluation is
// recoverable only when all of them are. An empty input is NOT_EVALUATED.
// An unknown result panics.
func Or(evaluations ...domain.Evaluation) domain.Evaluation {
	return combine(evaluations, domain.EvaluationResult.IsBetterThan)
}

// And combines evaluations of criteria that must all hold. The worst result
// wins, with the same merge rule as Or.
func And(evaluations ...domain.Evaluation) domain.Evaluation {
	return combine(evaluations, domain.EvaluationResult.IsWorseThan)
}

// combine keeps the tier of evaluations whose result is preferred over every
// other result present, per prefers.
func combine(evaluations []domain.Evaluation, prefers func(domain.EvaluationResult, domain.EvaluationResult) bool) domain.Evaluation {
	if len(evaluations) == 0 {
		return NotEvaluated()
	}

	winner := evaluations[0].Result
	_ = winner.Severity() // panics on an unknown result
	for _, e := range evaluations[1:] {
		if prefers(e.Result, winner) {
			winner = e.Result
		}
	}

	var out domain.Evaluation
	first := true
	for _, e := range evaluations {
		if e.Result != winner {
			continue
		}
		if first {
			out = e.AddMessagesAndEvents(domain.Evaluation{})
			first = false
			continue
		}
		out = out.AddMessagesAndEvents(e).WithResult(winner, out.Recoverable && e.Recoverable)
	}
	return out
}

// Not inverts an evaluation: PASS and FAIL swap along with their message
// families, and inclusion and exclusion events swap. Other results keep their
// verdict.
func Not(e domain.Evaluation) domain.Evaluation {
	out := e
	out.InclusionMolecularEvents, out.ExclusionMolecularEvents = e.ExclusionMolecularEvents, e.InclusionMolecularEvents
	out.PassSpecificMessages, out.FailSpecificMessages = e.FailSpecificMessages, e.PassSpecificMessages
	out.PassGeneralMessages, out.FailGeneralMessages = e.FailGeneralMessages, e.PassGeneralMessages

	switch e.Result {
	case domain.PASS:
		out.Result, out.Recoverable = domain.FAIL, false
	case domain.FAIL:
		out.Result, out.Recoverable = domain.PASS, false
	default:
		_ = e.Result.Severity()
	}
	return out
}

// WarnIf turns a PASS into a WARN, moving its pass messages to the warn
// family. Any other result is returned unchanged.
func WarnIf(e domain.Evaluation) domain.Evaluation {
	if e.Result != domain.PASS {
		_ = e.Result.Severity()
		return e
	}
	out := e
	out.Result = domain.WARN
	out.WarnSpecificMessages = domain.UnionStrings(e.WarnSpecificMessages, e.PassSpecificMessages)
	out.WarnGeneralMessages = domain.UnionStrings(e.WarnGeneralMessages, e.PassGeneralMessages)
	out.PassSpecificMessages = nil
	out.PassGeneralMessages = nil
	return out
}

// EventGroup is one optional finding a rule may warn about: the events that
// make it up and the messages to show when they are present.
type EventGroup struct {
	Events          []string
	SpecificMessage string
	GeneralMessage  string
}

// EvaluatePotentialWarnsForEventGroups merges every group that has events into
// a single WARN whose inclusion events are the union of their events. It
// returns nil when no group has events, so callers can fall back to their own
// default.
func EvaluatePotentialWarnsForEventGroups(groups []EventGroup) *domain.Evaluation {
	var (
		events   []string
		specific []string
		general  []string
	)
	for _, g := range groups {
		groupEvents := domain.UnionStrings(g.Events)
		if len(groupEvents) == 0 {
			continue
		}
		events = append(events, groupEvents...)
		specific = append(specific, g.SpecificMessage)
		general = append(general, g.GeneralMessage)
	}

	if len(events) == 0 {
		return nil
	}

	warn := domain.Evaluation{
		Result:                   domain.WARN,
		InclusionMolecularEvents: domain.UnionStrings(events),
		WarnSpecificMessages:     domain.UnionStrings(specific),
		WarnGeneralMessages:      domain.UnionStrings(general),
	}
	return &warn
}
