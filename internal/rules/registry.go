// Package rules turns configured rule specs into eligibility functions and
// keeps them in a registry the service evaluates patients against.
package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/trial-eligibility-engine/internal/doid"
	"github.com/trial-eligibility-engine/internal/domain"
	"github.com/trial-eligibility-engine/internal/evaluation"
	"github.com/trial-eligibility-engine/internal/molecular"
)

// Rule is a named eligibility criterion.
type Rule struct {
	Name        string              `json:"name"`
	Type        string              `json:"type"`
	Description string              `json:"description"`
	Function    evaluation.Function `json:"-"`
}

// Dependencies are the collaborators rule builders may draw on.
type Dependencies struct {
	Model  *doid.Model
	Filter molecular.TestFilter
	Logger *logrus.Logger
}

type builder func(spec domain.RuleSpec, deps Dependencies) (Rule, error)

var builders = map[string]builder{
	TypePrimaryTumorOfType:            buildPrimaryTumorOfType,
	TypePrimaryTumorExclusivelyOfType: buildPrimaryTumorExclusivelyOfType,
	TypePrimaryTumorHasTerm:           buildPrimaryTumorHasTerm,
	TypePrimaryTumorDoidCombination:   buildPrimaryTumorDoidCombination,
	TypeGeneIsAmplified:               buildGeneIsAmplified,
	TypeGeneIsWildType:                buildGeneIsWildType,
}

// Types returns the rule types FromSpecs understands.
func Types() []string {
	out := make([]string, 0, len(builders))
	for t := range builders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Registry holds rules by name. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// Register adds rule. Names must be unique.
func (r *Registry) Register(rule Rule) error {
	if rule.Name == "" {
		return domain.NewValidationError("name", "rule name is required", rule.Name)
	}
	if rule.Function == nil {
		return fmt.Errorf("%w: rule %s has no function", domain.ErrInvalidConfiguration, rule.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[rule.Name]; exists {
		return fmt.Errorf("%w: rule %s registered twice", domain.ErrInvalidConfiguration, rule.Name)
	}
	r.rules[rule.Name] = rule
	return nil
}

// Get returns the rule called name.
func (r *Registry) Get(name string) (Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[name]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %s", domain.ErrUnknownRule, name)
	}
	return rule, nil
}

// List returns every rule ordered by name.
func (r *Registry) List() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// Build creates the rule described by spec.
func Build(spec domain.RuleSpec, deps Dependencies) (Rule, error) {
	b, ok := builders[spec.Type]
	if !ok {
		return Rule{}, fmt.Errorf("%w: rule %s has unknown type %q", domain.ErrInvalidConfiguration, spec.Name, spec.Type)
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	rule, err := b(spec, deps)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to build rule %s: %w", spec.Name, err)
	}
	rule.Name = spec.Name
	rule.Type = spec.Type
	return rule, nil
}

// FromSpecs builds and registers a rule for each spec.
func FromSpecs(specs []domain.RuleSpec, deps Dependencies) (*Registry, error) {
	registry := NewRegistry()
	for _, spec := range specs {
		rule, err := Build(spec, deps)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(rule); err != nil {
			return nil, err
		}
	}

	if deps.Logger != nil {
		deps.Logger.WithField("rule_count", registry.Len()).Info("Loaded eligibility rules")
	}
	return registry, nil
}
