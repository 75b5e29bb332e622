package rules

import (
	"fmt"
	"strings"

	"github.com/trial-eligibility-engine/internal/domain"
	"github.com/trial-eligibility-engine/internal/evaluation"
	"github.com/trial-eligibility-engine/internal/molecular"
)

// Rule types evaluated against molecular tests.
const (
	TypeGeneIsAmplified = "gene_is_amplified"
	TypeGeneIsWildType  = "gene_is_wild_type"
)

func requireGene(spec domain.RuleSpec) error {
	if strings.TrimSpace(spec.Gene) == "" {
		return domain.NewValidationError("gene", "gene is required", spec.Gene)
	}
	return nil
}

func buildGeneIsAmplified(spec domain.RuleSpec, deps Dependencies) (Rule, error) {
	if err := requireGene(spec); err != nil {
		return Rule{}, err
	}
	if spec.MinCopies < 0 {
		return Rule{}, domain.NewValidationError("min_copies", "min copies must not be negative", spec.MinCopies)
	}
	gene := spec.Gene

	perTest := func(test domain.MolecularTest) *domain.Evaluation {
		var reportable, unreportable []string
		for _, cn := range test.CopyNumbers {
			if !strings.EqualFold(cn.Gene, gene) || !cn.IsGain() || cn.MinCopies < spec.MinCopies {
				continue
			}
			if cn.IsReportable {
				reportable = append(reportable, cn.Event)
			} else {
				unreportable = append(unreportable, cn.Event)
			}
		}

		var result domain.Evaluation
		switch {
		case len(reportable) > 0:
			result = evaluation.Pass(
				fmt.Sprintf("%s is amplified", gene), fmt.Sprintf("%s amplification", gene),
				evaluation.WithInclusionEvents(reportable...))
		case len(unreportable) > 0:
			result = evaluation.Warn(
				fmt.Sprintf("%s amplification detected but not reportable", gene), fmt.Sprintf("%s amplification", gene),
				evaluation.WithInclusionEvents(unreportable...))
		default:
			result = evaluation.Fail(
				fmt.Sprintf("No amplification of %s", gene), fmt.Sprintf("No %s amplification", gene))
		}
		return &result
	}

	predicate := molecular.Exactly(domain.TargetAmplification)
	evaluator, err := molecular.NewEvaluator(perTest, deps.Filter,
		molecular.WithGene(gene, &predicate),
		molecular.WithLogger(deps.Logger),
	)
	if err != nil {
		return Rule{}, err
	}

	description := fmt.Sprintf("%s is amplified", gene)
	if spec.MinCopies > 0 {
		description = fmt.Sprintf("%s is amplified to at least %d copies", gene, spec.MinCopies)
	}
	return Rule{Description: description, Function: evaluator}, nil
}

func buildGeneIsWildType(spec domain.RuleSpec, deps Dependencies) (Rule, error) {
	if err := requireGene(spec); err != nil {
		return Rule{}, err
	}
	gene := spec.Gene

	perTest := func(test domain.MolecularTest) *domain.Evaluation {
		var drivers, variants, copyNumbers, fusions []string
		for _, v := range test.Variants {
			if !strings.EqualFold(v.Gene, gene) {
				continue
			}
			if v.IsReportable && v.DriverLikelihood == domain.DriverLikelihoodHigh {
				drivers = append(drivers, v.Event)
			} else {
				variants = append(variants, v.Event)
			}
		}
		for _, cn := range test.CopyNumbers {
			if !strings.EqualFold(cn.Gene, gene) {
				continue
			}
			if cn.IsReportable {
				drivers = append(drivers, cn.Event)
			} else {
				copyNumbers = append(copyNumbers, cn.Event)
			}
		}
		for _, f := range test.Fusions {
			if !f.Involves(gene) {
				continue
			}
			if f.IsReportable {
				drivers = append(drivers, f.Event)
			} else {
				fusions = append(fusions, f.Event)
			}
		}

		if len(drivers) > 0 {
			result := evaluation.Fail(
				fmt.Sprintf("%s is not wild type", gene), fmt.Sprintf("%s not wild type", gene),
				evaluation.WithExclusionEvents(drivers...))
			return &result
		}

		warn := evaluation.EvaluatePotentialWarnsForEventGroups([]evaluation.EventGroup{
			{
				Events:          variants,
				SpecificMessage: fmt.Sprintf("%s has variants of uncertain driver likelihood", gene),
				GeneralMessage:  fmt.Sprintf("%s potentially not wild type", gene),
			},
			{
				Events:          copyNumbers,
				SpecificMessage: fmt.Sprintf("%s has unreportable copy number events", gene),
				GeneralMessage:  fmt.Sprintf("%s potentially not wild type", gene),
			},
			{
				Events:          fusions,
				SpecificMessage: fmt.Sprintf("%s is involved in unreportable fusions", gene),
				GeneralMessage:  fmt.Sprintf("%s potentially not wild type", gene),
			},
		})
		if warn != nil {
			return warn
		}

		result := evaluation.Pass(fmt.Sprintf("%s is wild type", gene), fmt.Sprintf("%s wild type", gene))
		return &result
	}

	predicate := molecular.All()
	evaluator, err := molecular.NewEvaluator(perTest, deps.Filter,
		molecular.WithGene(gene, &predicate),
		molecular.WithPrecedence(molecular.WildTypePrecedence),
		molecular.WithLogger(deps.Logger),
	)
	if err != nil {
		return Rule{}, err
	}

	return Rule{Description: fmt.Sprintf("%s is wild type", gene), Function: evaluator}, nil
}
