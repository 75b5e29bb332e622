// Package molecular selects which of a patient's molecular tests a rule is
// evaluated against and folds the per-test evaluations into one verdict.
package molecular

import (
	"fmt"
	"slices"
	"strings"

	"github.com/trial-eligibility-engine/internal/domain"
)

const defaultSubjectPrefix = "Gene"

type predicateOp int

const (
	opAnd predicateOp = iota
	opOr
)

// TargetPredicate is a boolean condition over the targets an assay covers for
// a gene. It renders itself for "not tested for" messages.
type TargetPredicate struct {
	op      predicateOp
	targets []domain.MolecularTestTarget
	prefix  string
}

// Any holds when at least one target is covered.
func Any() TargetPredicate {
	return Or(domain.MolecularTestTargets...)
}

// All holds when every target is covered.
func All() TargetPredicate {
	return And(domain.MolecularTestTargets...)
}

// And holds when all of targets are covered.
func And(targets ...domain.MolecularTestTarget) TargetPredicate {
	return TargetPredicate{op: opAnd, targets: slices.Clone(targets), prefix: defaultSubjectPrefix}
}

// Or holds when any of targets is covered.
func Or(targets ...domain.MolecularTestTarget) TargetPredicate {
	return TargetPredicate{op: opOr, targets: slices.Clone(targets), prefix: defaultSubjectPrefix}
}

// Exactly holds when target is covered.
func Exactly(target domain.MolecularTestTarget) TargetPredicate {
	return And(target)
}

// WithPrefix returns a copy of p that names its subject with prefix instead of "Gene".
func (p TargetPredicate) WithPrefix(prefix string) TargetPredicate {
	p.targets = slices.Clone(p.targets)
	p.prefix = prefix
	return p
}

// Test reports whether observed satisfies the predicate.
func (p TargetPredicate) Test(observed []domain.MolecularTestTarget) bool {
	if p.op == opOr {
		for _, t := range p.targets {
			if slices.Contains(observed, t) {
				return true
			}
		}
		return false
	}
	for _, t := range p.targets {
		if !slices.Contains(observed, t) {
			return false
		}
	}
	return true
}

// Message renders the undetermined message for subject, for example
// "Gene EGFR undetermined (not tested for mutations or amplifications)".
func (p TargetPredicate) Message(subject string) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s undetermined (not tested for %s)", p.prefix, subject, p.describe()))
}

func (p TargetPredicate) describe() string {
	names := make([]string, 0, len(p.targets))
	for _, t := range p.targets {
		names = append(names, t.Display())
	}
	conj := "and"
	if p.op == opOr {
		conj = "or"
	}
	return joinWords(names, conj)
}

// joinWords renders "a", "a and b" or "a, b, and c".
func joinWords(words []string, conj string) string {
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	case 2:
		return words[0] + " " + conj + " " + words[1]
	default:
		return strings.Join(words[:len(words)-1], ", ") + ", " + conj + " " + words[len(words)-1]
	}
}
