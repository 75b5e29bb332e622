package molecular

import (
	"slices"

	"github.com/trial-eligibility-engine/internal/domain"
)

// PerTestEvaluation pairs a molecular test with the evaluation a rule produced for it.
type PerTestEvaluation struct {
	Test       domain.MolecularTest
	Evaluation domain.Evaluation
}

// PrecedenceFunc picks the group of per-test evaluations that decides the
// rule. Groups are keyed by result and each group is ordered most
// authoritative first; the first element of the returned group wins.
type PrecedenceFunc func(groups map[domain.EvaluationResult][]PerTestEvaluation) []PerTestEvaluation

// PreferResults returns a precedence function that picks the first non-empty
// group in order.
func PreferResults(order ...domain.EvaluationResult) PrecedenceFunc {
	order = slices.Clone(order)
	return func(groups map[domain.EvaluationResult][]PerTestEvaluation) []PerTestEvaluation {
		for _, r := range order {
			if g := groups[r]; len(g) > 0 {
				return g
			}
		}
		return nil
	}
}

var (
	// DefaultPrecedence lets any passing test decide the rule.
	DefaultPrecedence = PreferResults(domain.PASS, domain.WARN, domain.FAIL, domain.UNDETERMINED, domain.NOT_EVALUATED)

	// WildTypePrecedence lets any failing test decide the rule, for rules that
	// require the absence of an event.
	WildTypePrecedence = PreferResults(domain.FAIL, domain.WARN, domain.PASS, domain.UNDETERMINED, domain.NOT_EVALUATED)
)

// sortByAuthority orders evaluations by test date, newest first and undated
// last, then by experiment type ordinal.
func sortByAuthority(evals []PerTestEvaluation) {
	slices.SortStableFunc(evals, func(a, b PerTestEvaluation) int {
		da, db := a.Test.Date, b.Test.Date
		switch {
		case da != nil && db == nil:
			return -1
		case da == nil && db != nil:
			return 1
		case da != nil && db != nil && !da.Equal(*db):
			return db.Compare(*da)
		}
		return int(a.Test.ExperimentType) - int(b.Test.ExperimentType)
	})
}
