// Package domain contains the core value types shared by the eligibility
// evaluation engine: verdicts, evaluations, patient records and molecular tests.
package domain

import (
	"fmt"
	"strings"
)

// EvaluationResult is the verdict of a single eligibility rule.
// The declaration order is the severity order: PASS is the best outcome and
// FAIL the worst. Composition logic relies on this ordering.
type EvaluationResult string

const (
	PASS          EvaluationResult = "PASS"
	NOT_EVALUATED EvaluationResult = "NOT_EVALUATED"
	WARN          EvaluationResult = "WARN"
	UNDETERMINED  EvaluationResult = "UNDETERMINED"
	FAIL          EvaluationResult = "FAIL"
)

// EvaluationResults lists every result from best to worst.
var EvaluationResults = []EvaluationResult{PASS, NOT_EVALUATED, WARN, UNDETERMINED, FAIL}

// IsValid reports whether r is one of the five known results.
func (r EvaluationResult) IsValid() bool {
	switch r {
	case PASS, NOT_EVALUATED, WARN, UNDETERMINED, FAIL:
		return true
	default:
		return false
	}
}

// String returns the string representation of the result.
func (r EvaluationResult) String() string {
	return string(r)
}

// Severity returns the position of r in the severity order, 0 being the best.
// It panics on an unknown result: such a value can only come from a
// programming error and must not be silently ranked.
func (r EvaluationResult) Severity() int {
	switch r {
	case PASS:
		return 0
	case NOT_EVALUATED:
		return 1
	case WARN:
		return 2
	case UNDETERMINED:
		return 3
	case FAIL:
		return 4
	default:
		panic(fmt.Sprintf("%v: %q", ErrInvalidResult, string(r)))
	}
}

// IsWorseThan reports whether r ranks below other.
func (r EvaluationResult) IsWorseThan(other EvaluationResult) bool {
	return r.Severity() > other.Severity()
}

// IsBetterThan reports whether r ranks above other.
func (r EvaluationResult) IsBetterThan(other EvaluationResult) bool {
	return r.Severity() < other.Severity()
}

// ParseEvaluationResult converts a case-insensitive name into a result.
func ParseEvaluationResult(s string) (EvaluationResult, error) {
	r := EvaluationResult(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidResult, s)
	}
	return r, nil
}

// ExperimentType identifies the technology of a molecular test. Lower ordinals
// are the more authoritative experiment types and win precedence ties.
type ExperimentType int

const (
	ExperimentWholeGenome ExperimentType = iota
	ExperimentTargeted
	ExperimentPanel
	ExperimentIHC
	ExperimentOther
)

var experimentTypeNames = map[ExperimentType]string{
	ExperimentWholeGenome: "WHOLE_GENOME",
	ExperimentTargeted:    "TARGETED",
	ExperimentPanel:       "PANEL",
	ExperimentIHC:         "IHC",
	ExperimentOther:       "OTHER",
}

// String returns the canonical name of the experiment type.
func (e ExperimentType) String() string {
	if name, ok := experimentTypeNames[e]; ok {
		return name
	}
	return fmt.Sprintf("ExperimentType(%d)", int(e))
}

// MarshalText implements encoding.TextMarshaler.
func (e ExperimentType) MarshalText() ([]byte, error) {
	if _, ok := experimentTypeNames[e]; !ok {
		return nil, fmt.Errorf("unknown experiment type %d", int(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *ExperimentType) UnmarshalText(text []byte) error {
	name := strings.ToUpper(strings.TrimSpace(string(text)))
	for t, n := range experimentTypeNames {
		if n == name {
			*e = t
			return nil
		}
	}
	return NewValidationError("experiment_type", "unknown experiment type", string(text))
}

// MolecularTestTarget is a class of molecular event an assay can detect.
type MolecularTestTarget string

const (
	TargetMutation      MolecularTestTarget = "MUTATION"
	TargetAmplification MolecularTestTarget = "AMPLIFICATION"
	TargetDeletion      MolecularTestTarget = "DELETION"
	TargetFusion        MolecularTestTarget = "FUSION"
)

// MolecularTestTargets lists every target in display order.
var MolecularTestTargets = []MolecularTestTarget{TargetMutation, TargetAmplification, TargetDeletion, TargetFusion}

// Display returns the plural form used in undetermined messages.
func (t MolecularTestTarget) Display() string {
	switch t {
	case TargetMutation:
		return "mutations"
	case TargetAmplification:
		return "amplifications"
	case TargetDeletion:
		return "deletions"
	case TargetFusion:
		return "fusions"
	default:
		return strings.ToLower(string(t))
	}
}

// IsValid reports whether t is a known target.
func (t MolecularTestTarget) IsValid() bool {
	switch t {
	case TargetMutation, TargetAmplification, TargetDeletion, TargetFusion:
		return true
	default:
		return false
	}
}
