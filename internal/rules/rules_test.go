package rules

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trial-eligibility-engine/internal/doid"
	"github.com/trial-eligibility-engine/internal/domain"
	"github.com/trial-eligibility-engine/internal/evaluation"
	"github.com/trial-eligibility-engine/internal/molecular"
)

func testDependencies(t *testing.T) Dependencies {
	t.Helper()

	graph := doid.NewGraph(
		map[string][]string{
			"162":  {"4"},
			"305":  {"162"},
			"1324": {"162"},
			"3908": {"305", "1324"},
			"3910": {"3908"},
			"5409": {"1324"},
		},
		map[string]string{
			"4":    "disease",
			"162":  "cancer",
			"305":  "carcinoma",
			"1324": "lung cancer",
			"3908": "lung non-small cell carcinoma",
			"3910": "lung adenocarcinoma",
			"5409": "lung small cell carcinoma",
		},
	)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	model, err := doid.NewModel(graph, doid.WithLogger(logger))
	require.NoError(t, err)

	return Dependencies{Model: model, Logger: logger}
}

func build(t *testing.T, spec domain.RuleSpec) Rule {
	t.Helper()
	rule, err := Build(spec, testDependencies(t))
	require.NoError(t, err)
	return rule
}

func patientWithDoids(doids ...string) domain.PatientRecord {
	return domain.PatientRecord{PatientID: "ACTN-01", Tumor: domain.Tumor{Doids: doids}}
}

func TestPrimaryTumorOfType(t *testing.T) {
	rule := build(t, domain.RuleSpec{Name: "HAS_LUNG_CANCER", Type: TypePrimaryTumorOfType, Doid: "1324"})

	tests := []struct {
		name     string
		doids    []string
		expected domain.EvaluationResult
	}{
		{"Subtype", []string{"3910"}, domain.PASS},
		{"Other cancer", []string{"305"}, domain.FAIL},
		{"Unknown tumor", nil, domain.UNDETERMINED},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rule.Function.Evaluate(patientWithDoids(tt.doids...)).Result)
		})
	}

	assert.Equal(t, "Primary tumor is lung cancer", rule.Description)
	assert.Equal(t, []string{"Patient has lung cancer"},
		rule.Function.Evaluate(patientWithDoids("5409")).PassSpecificMessages)
}

func TestTumorRulesAcceptDOIDCURIEs(t *testing.T) {
	ofType := build(t, domain.RuleSpec{Name: "HAS_LUNG_CANCER", Type: TypePrimaryTumorOfType, Doid: "DOID:1324"})
	assert.Equal(t, domain.PASS, ofType.Function.Evaluate(patientWithDoids("DOID:3910")).Result)
	assert.Equal(t, domain.PASS, ofType.Function.Evaluate(patientWithDoids("3910")).Result)
	assert.Equal(t, domain.FAIL, ofType.Function.Evaluate(patientWithDoids("DOID:305")).Result)
	assert.Equal(t, "Primary tumor is lung cancer", ofType.Description)

	exclusive := build(t, domain.RuleSpec{
		Name:      "HAS_EXCLUSIVELY_NSCLC",
		Type:      TypePrimaryTumorExclusivelyOfType,
		Doid:      "DOID:1324",
		FailDoids: []string{"DOID:5409"},
		WarnDoids: []string{"DOID:3910"},
	})
	assert.Equal(t, domain.PASS, exclusive.Function.Evaluate(patientWithDoids("DOID:3908")).Result)
	assert.Equal(t, domain.WARN, exclusive.Function.Evaluate(patientWithDoids("DOID:3910")).Result)
	assert.Equal(t, domain.FAIL, exclusive.Function.Evaluate(patientWithDoids("DOID:3908", "DOID:5409")).Result)

	combination := build(t, domain.RuleSpec{Name: "HAS_COMBINED", Type: TypePrimaryTumorDoidCombination, Doids: []string{"DOID:305", "1324"}})
	assert.Equal(t, domain.PASS, combination.Function.Evaluate(patientWithDoids("305", "DOID:1324")).Result)
}

func TestPrimaryTumorExclusivelyOfType(t *testing.T) {
	rule := build(t, domain.RuleSpec{
		Name:      "HAS_EXCLUSIVELY_NSCLC",
		Type:      TypePrimaryTumorExclusivelyOfType,
		Doid:      "1324",
		FailDoids: []string{"5409"},
		WarnDoids: []string{"3910"},
	})

	tests := []struct {
		name     string
		doids    []string
		expected domain.EvaluationResult
	}{
		{"Exclusive", []string{"3908"}, domain.PASS},
		{"Warning subtype", []string{"3910"}, domain.WARN},
		{"Disqualifying subtype", []string{"3908", "5409"}, domain.FAIL},
		{"Not of type", []string{"305"}, domain.FAIL},
		{"Unknown tumor", nil, domain.UNDETERMINED},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rule.Function.Evaluate(patientWithDoids(tt.doids...)).Result)
		})
	}
}

func TestPrimaryTumorHasTerm(t *testing.T) {
	rule := build(t, domain.RuleSpec{Name: "HAS_CARCINOMA", Type: TypePrimaryTumorHasTerm, Terms: []string{"Carcinoma"}})

	assert.Equal(t, domain.PASS, rule.Function.Evaluate(patientWithDoids("3910")).Result)
	assert.Equal(t, domain.FAIL, rule.Function.Evaluate(patientWithDoids("5409")).Result)
	assert.Equal(t, domain.UNDETERMINED, rule.Function.Evaluate(patientWithDoids()).Result)
}

func TestPrimaryTumorDoidCombination(t *testing.T) {
	rule := build(t, domain.RuleSpec{Name: "HAS_COMBINED", Type: TypePrimaryTumorDoidCombination, Doids: []string{"305", "1324"}})

	assert.Equal(t, domain.PASS, rule.Function.Evaluate(patientWithDoids("305", "1324", "4")).Result)
	assert.Equal(t, domain.FAIL, rule.Function.Evaluate(patientWithDoids("3908")).Result)
	assert.Equal(t, domain.UNDETERMINED, rule.Function.Evaluate(patientWithDoids()).Result)
}

func amplificationTest(date time.Time, reportable bool, copies int) domain.MolecularTest {
	return domain.MolecularTest{
		TestID:               "wgs-" + date.Format("20060102"),
		ExperimentType:       domain.ExperimentWholeGenome,
		Date:                 &date,
		HasSufficientQuality: true,
		CopyNumbers: []domain.CopyNumber{{
			Gene:         "ERBB2",
			Event:        "ERBB2 amp",
			Type:         domain.CopyNumberFullGain,
			MinCopies:    copies,
			IsReportable: reportable,
		}},
	}
}

func TestGeneIsAmplified(t *testing.T) {
	rule := build(t, domain.RuleSpec{Name: "ERBB2_AMP", Type: TypeGeneIsAmplified, Gene: "ERBB2", MinCopies: 6})
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	t.Run("Reportable amplification", func(t *testing.T) {
		record := domain.PatientRecord{MolecularTests: []domain.MolecularTest{amplificationTest(day, true, 12)}}
		result := rule.Function.Evaluate(record)
		assert.Equal(t, domain.PASS, result.Result)
		assert.Equal(t, []string{"ERBB2 amp"}, result.InclusionMolecularEvents)
	})

	t.Run("Unreportable amplification", func(t *testing.T) {
		record := domain.PatientRecord{MolecularTests: []domain.MolecularTest{amplificationTest(day, false, 12)}}
		assert.Equal(t, domain.WARN, rule.Function.Evaluate(record).Result)
	})

	t.Run("Below minimum copies", func(t *testing.T) {
		record := domain.PatientRecord{MolecularTests: []domain.MolecularTest{amplificationTest(day, true, 4)}}
		assert.Equal(t, domain.FAIL, rule.Function.Evaluate(record).Result)
	})

	t.Run("Gene not covered", func(t *testing.T) {
		record := domain.PatientRecord{MolecularTests: []domain.MolecularTest{{
			ExperimentType:       domain.ExperimentPanel,
			HasSufficientQuality: true,
			TargetCoverage:       map[string][]domain.MolecularTestTarget{"ERBB2": {domain.TargetMutation}},
		}}}
		result := rule.Function.Evaluate(record)
		assert.Equal(t, domain.UNDETERMINED, result.Result)
		assert.Equal(t, []string{"Gene ERBB2 undetermined (not tested for amplifications)"}, result.UndeterminedSpecificMessages)
	})

	t.Run("No tests", func(t *testing.T) {
		result := rule.Function.Evaluate(domain.PatientRecord{})
		assert.Equal(t, domain.UNDETERMINED, result.Result)
		assert.True(t, result.IsMissingMolecularResultForEvaluation)
	})
}

func TestGeneIsWildType(t *testing.T) {
	rule := build(t, domain.RuleSpec{Name: "KRAS_WT", Type: TypeGeneIsWildType, Gene: "KRAS"})
	older := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	clean := domain.MolecularTest{ExperimentType: domain.ExperimentWholeGenome, Date: &newer, HasSufficientQuality: true}
	withDriver := domain.MolecularTest{
		ExperimentType:       domain.ExperimentWholeGenome,
		Date:                 &older,
		HasSufficientQuality: true,
		Variants: []domain.Variant{{
			Gene: "KRAS", Event: "KRAS G12C", IsReportable: true, DriverLikelihood: domain.DriverLikelihoodHigh,
		}},
	}
	withVus := domain.MolecularTest{
		ExperimentType:       domain.ExperimentWholeGenome,
		Date:                 &newer,
		HasSufficientQuality: true,
		Variants: []domain.Variant{{
			Gene: "KRAS", Event: "KRAS A146T", IsReportable: true, DriverLikelihood: domain.DriverLikelihoodLow,
		}},
	}

	t.Run("Wild type", func(t *testing.T) {
		result := rule.Function.Evaluate(domain.PatientRecord{MolecularTests: []domain.MolecularTest{clean}})
		assert.Equal(t, domain.PASS, result.Result)
	})

	t.Run("Any driver decides, even from an older test", func(t *testing.T) {
		result := rule.Function.Evaluate(domain.PatientRecord{MolecularTests: []domain.MolecularTest{clean, withDriver}})
		assert.Equal(t, domain.FAIL, result.Result)
		assert.Equal(t, []string{"KRAS G12C"}, result.ExclusionMolecularEvents)
	})

	t.Run("Variant of unknown significance warns", func(t *testing.T) {
		result := rule.Function.Evaluate(domain.PatientRecord{MolecularTests: []domain.MolecularTest{withVus}})
		assert.Equal(t, domain.WARN, result.Result)
		assert.Equal(t, []string{"KRAS A146T"}, result.InclusionMolecularEvents)
	})
}

func TestGeneRulesIgnoreSymbolCase(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	amplified := build(t, domain.RuleSpec{Name: "ERBB2_AMP", Type: TypeGeneIsAmplified, Gene: "ERBB2"})
	test := amplificationTest(day, true, 12)
	test.CopyNumbers[0].Gene = "erbb2"
	result := amplified.Function.Evaluate(domain.PatientRecord{MolecularTests: []domain.MolecularTest{test}})
	assert.Equal(t, domain.PASS, result.Result)
	assert.Equal(t, []string{"ERBB2 amp"}, result.InclusionMolecularEvents)

	wildType := build(t, domain.RuleSpec{Name: "ALK_WT", Type: TypeGeneIsWildType, Gene: "ALK"})
	panel := domain.MolecularTest{
		ExperimentType:       domain.ExperimentPanel,
		Date:                 &day,
		HasSufficientQuality: true,
		TargetCoverage:       map[string][]domain.MolecularTestTarget{"alk": domain.MolecularTestTargets},
		Fusions:              []domain.Fusion{{GeneStart: "eml4", GeneEnd: "alk", Event: "EML4::ALK", IsReportable: true}},
	}
	result = wildType.Function.Evaluate(domain.PatientRecord{MolecularTests: []domain.MolecularTest{panel}})
	assert.Equal(t, domain.FAIL, result.Result)
	assert.Equal(t, []string{"EML4::ALK"}, result.ExclusionMolecularEvents)

	panel.Fusions = nil
	panel.Variants = []domain.Variant{{Gene: "Alk", Event: "ALK F1174L", IsReportable: true, DriverLikelihood: domain.DriverLikelihoodHigh}}
	result = wildType.Function.Evaluate(domain.PatientRecord{MolecularTests: []domain.MolecularTest{panel}})
	assert.Equal(t, domain.FAIL, result.Result)
	assert.Equal(t, []string{"ALK F1174L"}, result.ExclusionMolecularEvents)
}

func TestBuildErrors(t *testing.T) {
	deps := testDependencies(t)

	tests := []struct {
		name string
		spec domain.RuleSpec
		deps Dependencies
	}{
		{"Unknown type", domain.RuleSpec{Name: "X", Type: "has_feelings"}, deps},
		{"Missing doid", domain.RuleSpec{Name: "X", Type: TypePrimaryTumorOfType}, deps},
		{"Missing ontology", domain.RuleSpec{Name: "X", Type: TypePrimaryTumorOfType, Doid: "162"}, Dependencies{}},
		{"Missing terms", domain.RuleSpec{Name: "X", Type: TypePrimaryTumorHasTerm}, deps},
		{"Missing combination", domain.RuleSpec{Name: "X", Type: TypePrimaryTumorDoidCombination}, deps},
		{"Missing gene", domain.RuleSpec{Name: "X", Type: TypeGeneIsAmplified}, deps},
		{"Negative copies", domain.RuleSpec{Name: "X", Type: TypeGeneIsAmplified, Gene: "MET", MinCopies: -1}, deps},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.spec, tt.deps)
			assert.Error(t, err)
		})
	}
}

func TestFromSpecs(t *testing.T) {
	specs := []domain.RuleSpec{
		{Name: "KRAS_WT", Type: TypeGeneIsWildType, Gene: "KRAS"},
		{Name: "HAS_LUNG_CANCER", Type: TypePrimaryTumorOfType, Doid: "1324"},
	}

	registry, err := FromSpecs(specs, testDependencies(t))
	require.NoError(t, err)
	assert.Equal(t, 2, registry.Len())

	list := registry.List()
	require.Len(t, list, 2)
	assert.Equal(t, "HAS_LUNG_CANCER", list[0].Name)
	assert.Equal(t, TypePrimaryTumorOfType, list[0].Type)

	_, err = registry.Get("MISSING")
	assert.ErrorIs(t, err, domain.ErrUnknownRule)

	_, err = FromSpecs(append(specs, specs[0]), testDependencies(t))
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestRegistryRegister(t *testing.T) {
	registry := NewRegistry()
	pass := evaluation.FunctionFunc(func(domain.PatientRecord) domain.Evaluation { return evaluation.Pass("", "") })

	assert.Error(t, registry.Register(Rule{Function: pass}))
	assert.ErrorIs(t, registry.Register(Rule{Name: "NO_FUNCTION"}), domain.ErrInvalidConfiguration)
	require.NoError(t, registry.Register(Rule{Name: "ALWAYS", Function: pass}))

	rule, err := registry.Get("ALWAYS")
	require.NoError(t, err)
	assert.Equal(t, domain.PASS, rule.Function.Evaluate(domain.PatientRecord{}).Result)
}

func TestTypes(t *testing.T) {
	assert.Contains(t, Types(), TypeGeneIsWildType)
	assert.Len(t, Types(), 6)
}

var _ evaluation.Function = (*molecular.Evaluator)(nil)
