package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/trial-eligibility-engine/internal/domain"
	"github.com/trial-eligibility-engine/internal/outcome"
	"github.com/trial-eligibility-engine/internal/rules"
)

const defaultMaxConcurrency = 8

// RuleResult is the evaluation of one rule for a patient.
type RuleResult struct {
	RuleName    string            `json:"rule_name" yaml:"rule_name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Evaluation  domain.Evaluation `json:"evaluation" yaml:"evaluation"`
}

// Summary counts rule results per verdict.
type Summary struct {
	Total  int                             `json:"total" yaml:"total"`
	Counts map[domain.EvaluationResult]int `json:"counts" yaml:"counts"`
}

// Report is the outcome of evaluating every registered rule for one patient.
type Report struct {
	RunID       string        `json:"run_id" yaml:"run_id"`
	PatientID   string        `json:"patient_id" yaml:"patient_id"`
	EvaluatedAt time.Time     `json:"evaluated_at" yaml:"evaluated_at"`
	Duration    time.Duration `json:"duration_ns" yaml:"duration_ns"`
	Results     []RuleResult  `json:"results" yaml:"results"`
	Summary     Summary       `json:"summary" yaml:"summary"`
}

// EligibilityService evaluates patients against the registered rules and
// records the outcomes when a store is configured.
type EligibilityService struct {
	registry       *rules.Registry
	store          outcome.Store
	logger         *logrus.Logger
	maxConcurrency int
}

// NewEligibilityService creates a new eligibility service. store may be nil.
func NewEligibilityService(registry *rules.Registry, store outcome.Store, cfg domain.EvaluationConfig, logger *logrus.Logger) *EligibilityService {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EligibilityService{
		registry:       registry,
		store:          store,
		logger:         logger,
		maxConcurrency: cfg.MaxConcurrency,
	}
}

// Rules returns the registered rules ordered by name.
func (s *EligibilityService) Rules() []rules.Rule {
	return s.registry.List()
}

// EvaluateAll evaluates every registered rule for record. Rules run
// concurrently, bounded by the configured concurrency; results keep the
// registry order.
func (s *EligibilityService) EvaluateAll(ctx context.Context, record domain.PatientRecord) (*Report, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.New().String()
	all := s.registry.List()

	s.logger.WithFields(logrus.Fields{
		"run_id":     runID,
		"patient_id": record.PatientID,
		"rule_count": len(all),
	}).Info("Starting eligibility evaluation")

	results := make([]RuleResult, len(all))
	semaphore := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for i, rule := range all {
		wg.Add(1)
		go func(i int, rule rules.Rule) {
			defer wg.Done()

			// Acquire semaphore to limit concurrency
			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				return
			}
			if ctx.Err() != nil {
				return
			}

			results[i] = RuleResult{
				RuleName:    rule.Name,
				Description: rule.Description,
				Evaluation:  rule.Function.Evaluate(record),
			}
		}(i, rule)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		s.logger.WithError(err).WithField("run_id", runID).Warn("Eligibility evaluation cancelled")
		return nil, fmt.Errorf("eligibility evaluation cancelled: %w", err)
	}

	report := &Report{
		RunID:       runID,
		PatientID:   record.PatientID,
		EvaluatedAt: start.UTC(),
		Duration:    time.Since(start),
		Results:     results,
		Summary:     Summarize(results),
	}

	s.persist(ctx, report)

	s.logger.WithFields(logrus.Fields{
		"run_id":       runID,
		"patient_id":   record.PatientID,
		"pass":         report.Summary.Counts[domain.PASS],
		"warn":         report.Summary.Counts[domain.WARN],
		"fail":         report.Summary.Counts[domain.FAIL],
		"undetermined": report.Summary.Counts[domain.UNDETERMINED],
		"duration_ms":  report.Duration.Milliseconds(),
	}).Info("Completed eligibility evaluation")

	return report, nil
}

// EvaluateRule evaluates a single rule for record without storing the outcome.
func (s *EligibilityService) EvaluateRule(ctx context.Context, ruleName string, record domain.PatientRecord) (*RuleResult, error) {
	s.logger.WithFields(logrus.Fields{
		"rule_name":  ruleName,
		"patient_id": record.PatientID,
	}).Debug("Evaluating specific eligibility rule")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rule, err := s.registry.Get(ruleName)
	if err != nil {
		return nil, err
	}

	return &RuleResult{
		RuleName:    rule.Name,
		Description: rule.Description,
		Evaluation:  rule.Function.Evaluate(record),
	}, nil
}

// Outcomes returns the stored outcomes of a patient, newest first.
func (s *EligibilityService) Outcomes(ctx context.Context, patientID string, limit, offset int) ([]*outcome.Outcome, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: no outcome store configured", domain.ErrNotFound)
	}
	return s.store.ListByPatient(ctx, patientID, limit, offset)
}

// persist saves every result of report. Failures are logged and do not fail
// the run.
func (s *EligibilityService) persist(ctx context.Context, report *Report) {
	if s.store == nil {
		return
	}

	saved := 0
	for _, r := range report.Results {
		o := outcome.New(report.RunID, report.PatientID, r.RuleName, r.Evaluation)
		o.CreatedAt = report.EvaluatedAt
		if err := s.store.Save(ctx, o); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"run_id":    report.RunID,
				"rule_name": r.RuleName,
			}).Warn("Failed to store evaluation outcome")
			continue
		}
		saved++
	}

	s.logger.WithFields(logrus.Fields{
		"run_id": report.RunID,
		"saved":  saved,
	}).Debug("Stored evaluation outcomes")
}

// Summarize counts results per verdict.
func Summarize(results []RuleResult) Summary {
	summary := Summary{
		Total:  len(results),
		Counts: make(map[domain.EvaluationResult]int, len(domain.EvaluationResults)),
	}
	for _, r := range domain.EvaluationResults {
		summary.Counts[r] = 0
	}
	for _, r := range results {
		summary.Counts[r.Evaluation.Result]++
	}
	return summary
}
