package domain

import "slices"

// Evaluation is the outcome of running one eligibility rule against a patient.
// It is a value: every method that changes it returns a new Evaluation and the
// message and event slices of an existing Evaluation are never written to.
// All string slices are kept sorted and free of duplicates.
type Evaluation struct {
	Result      EvaluationResult `json:"result" yaml:"result"`
	Recoverable bool             `json:"recoverable" yaml:"recoverable"`

	InclusionMolecularEvents []string `json:"inclusion_molecular_events,omitempty" yaml:"inclusion_molecular_events,omitempty"`
	ExclusionMolecularEvents []string `json:"exclusion_molecular_events,omitempty" yaml:"exclusion_molecular_events,omitempty"`

	PassSpecificMessages         []string `json:"pass_specific_messages,omitempty" yaml:"pass_specific_messages,omitempty"`
	PassGeneralMessages          []string `json:"pass_general_messages,omitempty" yaml:"pass_general_messages,omitempty"`
	WarnSpecificMessages         []string `json:"warn_specific_messages,omitempty" yaml:"warn_specific_messages,omitempty"`
	WarnGeneralMessages          []string `json:"warn_general_messages,omitempty" yaml:"warn_general_messages,omitempty"`
	UndeterminedSpecificMessages []string `json:"undetermined_specific_messages,omitempty" yaml:"undetermined_specific_messages,omitempty"`
	UndeterminedGeneralMessages  []string `json:"undetermined_general_messages,omitempty" yaml:"undetermined_general_messages,omitempty"`
	FailSpecificMessages         []string `json:"fail_specific_messages,omitempty" yaml:"fail_specific_messages,omitempty"`
	FailGeneralMessages          []string `json:"fail_general_messages,omitempty" yaml:"fail_general_messages,omitempty"`

	IsMissingMolecularResultForEvaluation bool `json:"is_missing_molecular_result_for_evaluation,omitempty" yaml:"is_missing_molecular_result_for_evaluation,omitempty"`
}

// AddMessagesAndEvents returns a copy of e carrying the union of the messages,
// events and missing-molecular flag of e and other. Result and Recoverable are
// those of e.
func (e Evaluation) AddMessagesAndEvents(other Evaluation) Evaluation {
	out := e
	out.InclusionMolecularEvents = UnionStrings(e.InclusionMolecularEvents, other.InclusionMolecularEvents)
	out.ExclusionMolecularEvents = UnionStrings(e.ExclusionMolecularEvents, other.ExclusionMolecularEvents)
	out.PassSpecificMessages = UnionStrings(e.PassSpecificMessages, other.PassSpecificMessages)
	out.PassGeneralMessages = UnionStrings(e.PassGeneralMessages, other.PassGeneralMessages)
	out.WarnSpecificMessages = UnionStrings(e.WarnSpecificMessages, other.WarnSpecificMessages)
	out.WarnGeneralMessages = UnionStrings(e.WarnGeneralMessages, other.WarnGeneralMessages)
	out.UndeterminedSpecificMessages = UnionStrings(e.UndeterminedSpecificMessages, other.UndeterminedSpecificMessages)
	out.UndeterminedGeneralMessages = UnionStrings(e.UndeterminedGeneralMessages, other.UndeterminedGeneralMessages)
	out.FailSpecificMessages = UnionStrings(e.FailSpecificMessages, other.FailSpecificMessages)
	out.FailGeneralMessages = UnionStrings(e.FailGeneralMessages, other.FailGeneralMessages)
	out.IsMissingMolecularResultForEvaluation = e.IsMissingMolecularResultForEvaluation || other.IsMissingMolecularResultForEvaluation
	return out
}

// WithResult returns a copy of e with a different result and recoverability.
func (e Evaluation) WithResult(result EvaluationResult, recoverable bool) Evaluation {
	out := e
	out.Result = result
	out.Recoverable = recoverable
	return out
}

// WithoutInclusionEvents returns a copy of e with no inclusion events.
func (e Evaluation) WithoutInclusionEvents() Evaluation {
	out := e
	out.InclusionMolecularEvents = nil
	return out
}

// WithoutExclusionEvents returns a copy of e with no exclusion events.
func (e Evaluation) WithoutExclusionEvents() Evaluation {
	out := e
	out.ExclusionMolecularEvents = nil
	return out
}

// SpecificMessages returns the specific messages that belong to e's own result.
func (e Evaluation) SpecificMessages() []string {
	switch e.Result {
	case PASS:
		return e.PassSpecificMessages
	case WARN:
		return e.WarnSpecificMessages
	case UNDETERMINED:
		return e.UndeterminedSpecificMessages
	case FAIL:
		return e.FailSpecificMessages
	default:
		return nil
	}
}

// GeneralMessages returns the general messages that belong to e's own result.
func (e Evaluation) GeneralMessages() []string {
	switch e.Result {
	case PASS:
		return e.PassGeneralMessages
	case WARN:
		return e.WarnGeneralMessages
	case UNDETERMINED:
		return e.UndeterminedGeneralMessages
	case FAIL:
		return e.FailGeneralMessages
	default:
		return nil
	}
}

// Equal reports whether two evaluations carry the same result and payload.
func (e Evaluation) Equal(other Evaluation) bool {
	return e.Result == other.Result &&
		e.Recoverable == other.Recoverable &&
		e.IsMissingMolecularResultForEvaluation == other.IsMissingMolecularResultForEvaluation &&
		slices.Equal(e.InclusionMolecularEvents, other.InclusionMolecularEvents) &&
		slices.Equal(e.ExclusionMolecularEvents, other.ExclusionMolecularEvents) &&
		slices.Equal(e.PassSpecificMessages, other.PassSpecificMessages) &&
		slices.Equal(e.PassGeneralMessages, other.PassGeneralMessages) &&
		slices.Equal(e.WarnSpecificMessages, other.WarnSpecificMessages) &&
		slices.Equal(e.WarnGeneralMessages, other.WarnGeneralMessages) &&
		slices.Equal(e.UndeterminedSpecificMessages, other.UndeterminedSpecificMessages) &&
		slices.Equal(e.UndeterminedGeneralMessages, other.UndeterminedGeneralMessages) &&
		slices.Equal(e.FailSpecificMessages, other.FailSpecificMessages) &&
		slices.Equal(e.FailGeneralMessages, other.FailGeneralMessages)
}

// UnionStrings returns a new sorted slice holding every distinct non-empty
// string of the inputs. It never returns one of its arguments.
func UnionStrings(sets ...[]string) []string {
	var n int
	for _, s := range sets {
		n += len(s)
	}
	if n == 0 {
		return nil
	}

	out := make([]string, 0, n)
	for _, s := range sets {
		for _, v := range s {
			if v != "" {
				out = append(out, v)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return slices.Compact(out)
}
