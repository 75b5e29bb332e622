package molecular

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trial-eligibility-engine/internal/domain"
	"github.com/trial-eligibility-engine/internal/evaluation"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func date(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func ptr(e domain.Evaluation) *domain.Evaluation {
	return &e
}

func TestNewEvaluatorRejectsContradictoryConfiguration(t *testing.T) {
	fn := func(domain.MolecularTest) *domain.Evaluation { return nil }
	p := Exactly(domain.TargetMutation)

	_, err := NewEvaluator(fn, TestFilter{}, WithGene("EGFR", nil))
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = NewEvaluator(fn, TestFilter{}, WithGene("", &p))
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = NewEvaluator(nil, TestFilter{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = NewEvaluator(fn, TestFilter{}, WithGene("EGFR", &p))
	assert.NoError(t, err)
}

func TestEvaluateWithoutEligibleTests(t *testing.T) {
	called := false
	e, err := NewEvaluator(func(domain.MolecularTest) *domain.Evaluation {
		called = true
		return nil
	}, TestFilter{}, WithLogger(quietLogger()))
	require.NoError(t, err)

	record := domain.PatientRecord{
		PatientID:      "ACTN-01",
		MolecularTests: []domain.MolecularTest{{HasSufficientQuality: false}},
	}
	result := e.Evaluate(record)

	assert.False(t, called)
	assert.Equal(t, domain.UNDETERMINED, result.Result)
	assert.Equal(t, []string{"No molecular results of sufficient quality"}, result.UndeterminedSpecificMessages)
	assert.True(t, result.IsMissingMolecularResultForEvaluation)
}

func TestEvaluateGeneCoverageShortCircuit(t *testing.T) {
	called := false
	predicate := Exactly(domain.TargetAmplification)
	e, err := NewEvaluator(func(domain.MolecularTest) *domain.Evaluation {
		called = true
		return ptr(evaluation.Fail("EGFR not amplified", ""))
	}, TestFilter{}, WithGene("EGFR", &predicate), WithLogger(quietLogger()))
	require.NoError(t, err)

	record := domain.PatientRecord{
		PatientID: "ACTN-02",
		MolecularTests: []domain.MolecularTest{{
			ExperimentType:       domain.ExperimentPanel,
			HasSufficientQuality: true,
			TargetCoverage:       map[string][]domain.MolecularTestTarget{"EGFR": {domain.TargetMutation}},
		}},
	}
	result := e.Evaluate(record)

	assert.False(t, called, "per-test evaluation must not run")
	assert.Equal(t, domain.UNDETERMINED, result.Result)
	assert.Equal(t, []string{"Gene EGFR undetermined (not tested for amplifications)"}, result.UndeterminedSpecificMessages)
	assert.True(t, result.IsMissingMolecularResultForEvaluation)
}

func TestEvaluateGeneCoveredByWholeGenome(t *testing.T) {
	predicate := Exactly(domain.TargetAmplification)
	e, err := NewEvaluator(func(domain.MolecularTest) *domain.Evaluation {
		return ptr(evaluation.Fail("EGFR not amplified", ""))
	}, TestFilter{}, WithGene("EGFR", &predicate), WithLogger(quietLogger()))
	require.NoError(t, err)

	record := domain.PatientRecord{
		MolecularTests: []domain.MolecularTest{
			{ExperimentType: domain.ExperimentPanel, HasSufficientQuality: true},
			{ExperimentType: domain.ExperimentWholeGenome, HasSufficientQuality: true},
		},
	}

	assert.Equal(t, domain.FAIL, e.Evaluate(record).Result)
}

func TestEvaluatePrecedenceTieBreakByDate(t *testing.T) {
	e, err := NewEvaluator(func(test domain.MolecularTest) *domain.Evaluation {
		return ptr(evaluation.Warn("warning from "+test.TestID, ""))
	}, TestFilter{}, WithLogger(quietLogger()))
	require.NoError(t, err)

	record := domain.PatientRecord{
		MolecularTests: []domain.MolecularTest{
			{TestID: "A", ExperimentType: domain.ExperimentPanel, Date: date(2023, 1, 1), HasSufficientQuality: true},
			{TestID: "B", ExperimentType: domain.ExperimentWholeGenome, Date: date(2023, 6, 1), HasSufficientQuality: true},
		},
	}
	result := e.Evaluate(record)

	assert.Equal(t, domain.WARN, result.Result)
	assert.Equal(t, []string{"warning from B"}, result.WarnSpecificMessages)
}

func TestEvaluatePrecedenceTieBreakByExperimentType(t *testing.T) {
	e, err := NewEvaluator(func(test domain.MolecularTest) *domain.Evaluation {
		return ptr(evaluation.Pass("pass from "+test.TestID, ""))
	}, TestFilter{}, WithLogger(quietLogger()))
	require.NoError(t, err)

	record := domain.PatientRecord{
		MolecularTests: []domain.MolecularTest{
			{TestID: "undated", ExperimentType: domain.ExperimentWholeGenome, HasSufficientQuality: true},
			{TestID: "panel", ExperimentType: domain.ExperimentPanel, Date: date(2023, 6, 1), HasSufficientQuality: true},
			{TestID: "targeted", ExperimentType: domain.ExperimentTargeted, Date: date(2023, 6, 1), HasSufficientQuality: true},
		},
	}

	assert.Equal(t, []string{"pass from targeted"}, e.Evaluate(record).PassSpecificMessages)
}

func TestEvaluatePrecedenceOrder(t *testing.T) {
	results := map[string]domain.Evaluation{
		"pass": evaluation.Pass("pass", ""),
		"warn": evaluation.Warn("warn", ""),
		"fail": evaluation.Fail("fail", ""),
	}
	fn := func(test domain.MolecularTest) *domain.Evaluation {
		e := results[test.TestID]
		return &e
	}
	record := domain.PatientRecord{
		MolecularTests: []domain.MolecularTest{
			{TestID: "fail", HasSufficientQuality: true},
			{TestID: "warn", HasSufficientQuality: true},
			{TestID: "pass", HasSufficientQuality: true},
		},
	}

	tests := []struct {
		name       string
		precedence PrecedenceFunc
		expected   domain.EvaluationResult
	}{
		{"Default", nil, domain.PASS},
		{"Wild type", WildTypePrecedence, domain.FAIL},
		{"Warn first", PreferResults(domain.WARN), domain.WARN},
		{"Empty choice falls back to default", PreferResults(domain.UNDETERMINED), domain.PASS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEvaluator(fn, TestFilter{}, WithPrecedence(tt.precedence), WithLogger(quietLogger()))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, e.Evaluate(record).Result)
		})
	}
}

func TestEvaluateAllTestsOptOut(t *testing.T) {
	e, err := NewEvaluator(func(domain.MolecularTest) *domain.Evaluation { return nil }, TestFilter{}, WithLogger(quietLogger()))
	require.NoError(t, err)

	result := e.Evaluate(domain.PatientRecord{
		MolecularTests: []domain.MolecularTest{{HasSufficientQuality: true}},
	})

	assert.Equal(t, domain.UNDETERMINED, result.Result)
	assert.Equal(t, []string{"Insufficient molecular data"}, result.UndeterminedSpecificMessages)
	assert.True(t, result.IsMissingMolecularResultForEvaluation)
}

func TestEvaluateCustomNoTestEvaluation(t *testing.T) {
	noTest := func() domain.Evaluation {
		return evaluation.RecoverableFail("No molecular data, assuming wild type", "")
	}
	e, err := NewEvaluator(func(domain.MolecularTest) *domain.Evaluation { return nil }, TestFilter{},
		WithNoTestEvaluation(noTest), WithLogger(quietLogger()))
	require.NoError(t, err)

	assert.Equal(t, domain.FAIL, e.Evaluate(domain.PatientRecord{}).Result)
	assert.Equal(t, domain.FAIL, e.Evaluate(domain.PatientRecord{
		MolecularTests: []domain.MolecularTest{{HasSufficientQuality: true}},
	}).Result)
}

func TestEvaluateAppliesFilter(t *testing.T) {
	var seen []string
	e, err := NewEvaluator(func(test domain.MolecularTest) *domain.Evaluation {
		seen = append(seen, test.TestID)
		return ptr(evaluation.Pass("", ""))
	}, TestFilter{Cutoff: date(2023, 12, 1)}, WithLogger(quietLogger()))
	require.NoError(t, err)

	e.Evaluate(domain.PatientRecord{
		MolecularTests: []domain.MolecularTest{
			{TestID: "panel", ExperimentType: domain.ExperimentPanel, Date: date(2023, 11, 1), HasSufficientQuality: true},
			{TestID: "wgs", ExperimentType: domain.ExperimentWholeGenome, Date: date(2023, 11, 21), HasSufficientQuality: true},
		},
	})

	assert.Equal(t, []string{"wgs"}, seen)
}
