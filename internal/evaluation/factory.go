// Package evaluation builds Evaluation values and combines them: the OR/AND
// algebra compound eligibility criteria are expressed in, plus warn-event
// aggregation for rules that report several optional findings at once.
package evaluation

import "github.com/trial-eligibility-engine/internal/domain"

// Option adjusts an Evaluation produced by one of the factory functions.
type Option func(*domain.Evaluation)

// WithInclusionEvents attaches molecular events that support inclusion.
func WithInclusionEvents(events ...string) Option {
	return func(e *domain.Evaluation) {
		e.InclusionMolecularEvents = domain.UnionStrings(e.InclusionMolecularEvents, events)
	}
}

// WithExclusionEvents attaches molecular events that support exclusion.
func WithExclusionEvents(events ...string) Option {
	return func(e *domain.Evaluation) {
		e.ExclusionMolecularEvents = domain.UnionStrings(e.ExclusionMolecularEvents, events)
	}
}

// MissingMolecularResult flags the evaluation as lacking the molecular data it needed.
func MissingMolecularResult() Option {
	return func(e *domain.Evaluation) {
		e.IsMissingMolecularResultForEvaluation = true
	}
}

func build(result domain.EvaluationResult, recoverable bool, specific, general string, opts []Option) domain.Evaluation {
	e := domain.Evaluation{Result: result, Recoverable: recoverable}
	s, g := messages(specific), messages(general)
	switch result {
	case domain.PASS:
		e.PassSpecificMessages, e.PassGeneralMessages = s, g
	case domain.WARN:
		e.WarnSpecificMessages, e.WarnGeneralMessages = s, g
	case domain.UNDETERMINED:
		e.UndeterminedSpecificMessages, e.UndeterminedGeneralMessages = s, g
	case domain.FAIL:
		e.FailSpecificMessages, e.FailGeneralMessages = s, g
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

func messages(msg string) []string {
	if msg == "" {
		return nil
	}
	return []string{msg}
}

// Pass builds a PASS evaluation. Empty messages are omitted.
func Pass(specific, general string, opts ...Option) domain.Evaluation {
	return build(domain.PASS, false, specific, general, opts)
}

// Warn builds a WARN evaluation.
func Warn(specific, general string, opts ...Option) domain.Evaluation {
	return build(domain.WARN, false, specific, general, opts)
}

// Fail builds an unrecoverable FAIL evaluation.
func Fail(specific, general string, opts ...Option) domain.Evaluation {
	return build(domain.FAIL, false, specific, general, opts)
}

// RecoverableFail builds a FAIL that a combinator may downgrade.
func RecoverableFail(specific, general string, opts ...Option) domain.Evaluation {
	return build(domain.FAIL, true, specific, general, opts)
}

// Undetermined builds an UNDETERMINED evaluation.
func Undetermined(specific, general string, opts ...Option) domain.Evaluation {
	return build(domain.UNDETERMINED, false, specific, general, opts)
}

// RecoverableUndetermined builds an UNDETERMINED that a combinator may downgrade.
func RecoverableUndetermined(specific, general string, opts ...Option) domain.Evaluation {
	return build(domain.UNDETERMINED, true, specific, general, opts)
}

// NotEvaluated builds a NOT_EVALUATED evaluation. It carries no messages.
func NotEvaluated(opts ...Option) domain.Evaluation {
	return build(domain.NOT_EVALUATED, false, "", "", opts)
}
