package molecular

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/trial-eligibility-engine/internal/domain"
	"github.com/trial-eligibility-engine/internal/evaluation"
)

const (
	noSufficientQualityMessage = "No molecular results of sufficient quality"
	insufficientDataMessage    = "Insufficient molecular data"
)

// TestEvaluationFunc evaluates a rule against a single molecular test. A nil
// result means the test has nothing to say about the rule.
type TestEvaluationFunc func(test domain.MolecularTest) *domain.Evaluation

// Evaluator runs a per-test rule over the eligible molecular tests of a
// patient and picks the deciding evaluation. It holds no mutable state and is
// safe for concurrent use.
type Evaluator struct {
	fn         TestEvaluationFunc
	filter     TestFilter
	gene       string
	predicate  *TargetPredicate
	noTest     func() domain.Evaluation
	precedence PrecedenceFunc
	logger     *logrus.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithGene restricts the rule to gene. When no eligible test covers the gene
// under predicate the rule is UNDETERMINED without evaluating any test.
func WithGene(gene string, predicate *TargetPredicate) Option {
	return func(e *Evaluator) {
		e.gene = gene
		e.predicate = predicate
	}
}

// WithNoTestEvaluation replaces the evaluation returned when no test is
// eligible or no test produced an evaluation.
func WithNoTestEvaluation(fn func() domain.Evaluation) Option {
	return func(e *Evaluator) {
		e.noTest = fn
	}
}

// WithPrecedence replaces DefaultPrecedence.
func WithPrecedence(fn PrecedenceFunc) Option {
	return func(e *Evaluator) {
		if fn != nil {
			e.precedence = fn
		}
	}
}

// WithLogger sets the logger for short-circuit diagnostics.
func WithLogger(logger *logrus.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEvaluator creates an Evaluator for fn.
func NewEvaluator(fn TestEvaluationFunc, filter TestFilter, opts ...Option) (*Evaluator, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: test evaluation function is nil", domain.ErrInvalidConfiguration)
	}

	e := &Evaluator{
		fn:         fn,
		filter:     filter,
		precedence: DefaultPrecedence,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.gene != "" && e.predicate == nil {
		return nil, fmt.Errorf("%w: gene %s has no coverage predicate", domain.ErrInvalidConfiguration, e.gene)
	}
	if e.gene == "" && e.predicate != nil {
		return nil, fmt.Errorf("%w: coverage predicate without gene", domain.ErrInvalidConfiguration)
	}

	return e, nil
}

// Evaluate returns the evaluation of the rule for record.
func (e *Evaluator) Evaluate(record domain.PatientRecord) domain.Evaluation {
	tests := e.filter.Apply(record.MolecularTests)
	if len(tests) == 0 {
		e.logger.WithField("patient_id", record.PatientID).Debug("No eligible molecular tests")
		return e.noTestEvaluation(noSufficientQualityMessage)
	}

	if e.gene != "" && !e.isGeneCovered(tests) {
		e.logger.WithFields(logrus.Fields{
			"patient_id": record.PatientID,
			"gene":       e.gene,
		}).Debug("Gene not covered by any eligible molecular test")
		msg := e.predicate.Message(e.gene)
		return evaluation.Undetermined(msg, msg, evaluation.MissingMolecularResult())
	}

	groups := make(map[domain.EvaluationResult][]PerTestEvaluation)
	for _, test := range tests {
		result := e.fn(test)
		if result == nil {
			continue
		}
		_ = result.Result.Severity() // panics on an unknown result
		groups[result.Result] = append(groups[result.Result], PerTestEvaluation{Test: test, Evaluation: *result})
	}
	if len(groups) == 0 {
		return e.noTestEvaluation(insufficientDataMessage)
	}

	for _, g := range groups {
		sortByAuthority(g)
	}

	selected := e.precedence(groups)
	if len(selected) == 0 {
		selected = DefaultPrecedence(groups)
	}
	return selected[0].Evaluation
}

func (e *Evaluator) isGeneCovered(tests []domain.MolecularTest) bool {
	for _, t := range tests {
		if e.predicate.Test(t.CoveredTargets(e.gene)) {
			return true
		}
	}
	return false
}

func (e *Evaluator) noTestEvaluation(msg string) domain.Evaluation {
	if e.noTest != nil {
		return e.noTest()
	}
	return evaluation.Undetermined(msg, msg, evaluation.MissingMolecularResult())
}
