package rules

import (
	"fmt"
	"strings"

	"github.com/trial-eligibility-engine/internal/doid"
	"github.com/trial-eligibility-engine/internal/domain"
	"github.com/trial-eligibility-engine/internal/evaluation"
)

// Rule types evaluated against the tumor's disease codes.
const (
	TypePrimaryTumorOfType            = "primary_tumor_of_type"
	TypePrimaryTumorExclusivelyOfType = "primary_tumor_exclusively_of_type"
	TypePrimaryTumorHasTerm           = "primary_tumor_has_term"
	TypePrimaryTumorDoidCombination   = "primary_tumor_doid_combination"
)

const unknownTumorTypeMessage = "Tumor type unknown"

func requireModel(deps Dependencies) error {
	if deps.Model == nil {
		return fmt.Errorf("%w: disease ontology is required", domain.ErrInvalidConfiguration)
	}
	return nil
}

// displayName renders a code as its term, falling back to the code itself.
func displayName(model *doid.Model, code string) string {
	if term, ok := model.Term(code); ok {
		return term
	}
	return "DOID:" + code
}

func displayNames(model *doid.Model, codes []string) string {
	names := make([]string, 0, len(codes))
	for _, c := range codes {
		names = append(names, displayName(model, c))
	}
	return strings.Join(names, ", ")
}

func unknownTumorType() domain.Evaluation {
	return evaluation.Undetermined(unknownTumorTypeMessage, unknownTumorTypeMessage)
}

func buildPrimaryTumorOfType(spec domain.RuleSpec, deps Dependencies) (Rule, error) {
	if err := requireModel(deps); err != nil {
		return Rule{}, err
	}
	if spec.Doid == "" {
		return Rule{}, domain.NewValidationError("doid", "doid is required", spec.Doid)
	}
	model := deps.Model
	name := displayName(model, spec.Doid)

	fn := func(record domain.PatientRecord) domain.Evaluation {
		if !record.Tumor.HasDoids() {
			return unknownTumorType()
		}
		if model.IsOfType(record.Tumor.Doids, spec.Doid) {
			return evaluation.Pass(fmt.Sprintf("Patient has %s", name), "Tumor type")
		}
		return evaluation.Fail(fmt.Sprintf("Patient has no %s", name), "Tumor type")
	}

	return Rule{
		Description: fmt.Sprintf("Primary tumor is %s", name),
		Function:    evaluation.FunctionFunc(fn),
	}, nil
}

func buildPrimaryTumorExclusivelyOfType(spec domain.RuleSpec, deps Dependencies) (Rule, error) {
	if err := requireModel(deps); err != nil {
		return Rule{}, err
	}
	if spec.Doid == "" {
		return Rule{}, domain.NewValidationError("doid", "doid is required", spec.Doid)
	}
	model := deps.Model
	name := displayName(model, spec.Doid)

	fn := func(record domain.PatientRecord) domain.Evaluation {
		if !record.Tumor.HasDoids() {
			return unknownTumorType()
		}
		switch model.IsOfExclusiveType(record.Tumor.Doids, spec.Doid, spec.FailDoids, spec.WarnDoids) {
		case domain.PASS:
			return evaluation.Pass(fmt.Sprintf("Patient has exclusively %s", name), "Tumor type")
		case domain.WARN:
			return evaluation.Warn(
				fmt.Sprintf("Patient has %s, possibly a %s subtype", name, displayNames(model, spec.WarnDoids)),
				"Tumor type")
		default:
			return evaluation.Fail(fmt.Sprintf("Patient has not exclusively %s", name), "Tumor type")
		}
	}

	return Rule{
		Description: fmt.Sprintf("Primary tumor is exclusively %s", name),
		Function:    evaluation.FunctionFunc(fn),
	}, nil
}

func buildPrimaryTumorHasTerm(spec domain.RuleSpec, deps Dependencies) (Rule, error) {
	if err := requireModel(deps); err != nil {
		return Rule{}, err
	}
	if len(spec.Terms) == 0 {
		return Rule{}, domain.NewValidationError("terms", "at least one term is required", spec.Terms)
	}
	model := deps.Model
	terms := strings.Join(spec.Terms, " or ")

	fn := func(record domain.PatientRecord) domain.Evaluation {
		if !record.Tumor.HasDoids() {
			return unknownTumorType()
		}
		if model.IsOfAnyTerm(record.Tumor.Doids, spec.Terms) {
			return evaluation.Pass(fmt.Sprintf("Patient has %s", terms), "Tumor type")
		}
		return evaluation.Fail(fmt.Sprintf("Patient has no %s", terms), "Tumor type")
	}

	return Rule{
		Description: fmt.Sprintf("Primary tumor is %s", terms),
		Function:    evaluation.FunctionFunc(fn),
	}, nil
}

func buildPrimaryTumorDoidCombination(spec domain.RuleSpec, deps Dependencies) (Rule, error) {
	if err := requireModel(deps); err != nil {
		return Rule{}, err
	}
	if len(spec.Doids) == 0 {
		return Rule{}, domain.NewValidationError("doids", "at least one doid is required", spec.Doids)
	}
	model := deps.Model
	names := displayNames(model, spec.Doids)

	fn := func(record domain.PatientRecord) domain.Evaluation {
		if !record.Tumor.HasDoids() {
			return unknownTumorType()
		}
		if model.IsOfCombinationType(record.Tumor.Doids, spec.Doids) {
			return evaluation.Pass(fmt.Sprintf("Patient has combined %s", names), "Tumor type")
		}
		return evaluation.Fail(fmt.Sprintf("Patient has not combined %s", names), "Tumor type")
	}

	return Rule{
		Description: fmt.Sprintf("Primary tumor combines %s", names),
		Function:    evaluation.FunctionFunc(fn),
	}, nil
}
