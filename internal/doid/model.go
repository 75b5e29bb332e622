package doid

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/trial-eligibility-engine/internal/domain"
)

const defaultAncestorCacheSize = 4096

// Model answers disease-type questions about a set of DOID codes. It wraps a
// Graph and memoises per-code ancestor sets in a bounded LRU. A Model is safe
// for concurrent use.
type Model struct {
	graph     *Graph
	ancestors *lru.Cache[string, CodeSet]
	termIndex map[string]string
	logger    *logrus.Logger
}

// ModelOption configures a Model.
type ModelOption func(*Model) error

// WithLogger sets the logger used for unresolved-term diagnostics.
func WithLogger(logger *logrus.Logger) ModelOption {
	return func(m *Model) error {
		if logger != nil {
			m.logger = logger
		}
		return nil
	}
}

// WithCacheSize bounds the number of memoised ancestor sets.
func WithCacheSize(size int) ModelOption {
	return func(m *Model) error {
		if size <= 0 {
			return nil
		}
		cache, err := lru.New[string, CodeSet](size)
		if err != nil {
			return fmt.Errorf("failed to create ancestor cache: %w", err)
		}
		m.ancestors = cache
		return nil
	}
}

// NewModel creates a query model over graph.
func NewModel(graph *Graph, opts ...ModelOption) (*Model, error) {
	if graph == nil {
		return nil, fmt.Errorf("%w: graph is nil", domain.ErrInvalidOntology)
	}

	m := &Model{
		graph:     graph,
		termIndex: make(map[string]string, len(graph.terms)),
		logger:    logrus.StandardLogger(),
	}
	for code, term := range graph.terms {
		m.termIndex[normalizeTerm(term)] = code
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	if m.ancestors == nil {
		cache, err := lru.New[string, CodeSet](defaultAncestorCacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create ancestor cache: %w", err)
		}
		m.ancestors = cache
	}

	return m, nil
}

// Graph returns the underlying ontology graph.
func (m *Model) Graph() *Graph {
	return m.graph
}

// ancestorsOf returns the memoised ancestor set of code, which may be given in
// any form NormalizeCode accepts. Callers must not modify the returned set.
func (m *Model) ancestorsOf(code string) CodeSet {
	code = NormalizeCode(code)
	if set, ok := m.ancestors.Get(code); ok {
		return set
	}
	set := m.graph.Ancestors(code)
	m.ancestors.Add(code, set)
	return set
}

func (m *Model) closure(codes []string) CodeSet {
	out := make(CodeSet)
	for _, c := range codes {
		for a := range m.ancestorsOf(c) {
			out[a] = struct{}{}
		}
	}
	return out
}

// Ancestors returns code and all of its transitive parents.
func (m *Model) Ancestors(code string) CodeSet {
	return m.ancestorsOf(code).clone()
}

// AncestorClosure returns the union of every code in codes with its ancestors.
func (m *Model) AncestorClosure(codes []string) CodeSet {
	return m.closure(codes)
}

// IsOfType reports whether target is in the ancestor closure of codes.
func (m *Model) IsOfType(codes []string, target string) bool {
	for _, c := range codes {
		if m.ancestorsOf(c).Contains(NormalizeCode(target)) {
			return true
		}
	}
	return false
}

// IsOfAnyType reports whether the ancestor closure of codes contains any of targets.
func (m *Model) IsOfAnyType(codes []string, targets []string) bool {
	for _, t := range targets {
		if m.IsOfType(codes, t) {
			return true
		}
	}
	return false
}

// IsOfAnyTerm reports whether any code of the ancestor closure carries one of
// the given display terms. A term matches only when it equals the display term
// as a whole; substrings do not match. Matching ignores case and surrounding
// whitespace. Codes without a display term are skipped.
func (m *Model) IsOfAnyTerm(codes []string, terms []string) bool {
	if len(codes) == 0 || len(terms) == 0 {
		return false
	}

	wanted := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		wanted[normalizeTerm(t)] = struct{}{}
	}

	for code := range m.closure(codes) {
		term, ok := m.graph.Term(code)
		if !ok {
			m.logger.WithField("doid", code).Debug("No display term for DOID, skipping")
			continue
		}
		if _, ok := wanted[normalizeTerm(term)]; ok {
			return true
		}
	}
	return false
}

// IsOfExactType reports whether codes consists of target and nothing else.
// No ancestor expansion takes place.
func (m *Model) IsOfExactType(codes []string, target string) bool {
	set := NewCodeSet(NormalizeCodes(codes)...)
	return len(set) == 1 && set.Contains(NormalizeCode(target))
}

// IsOfCombinationType reports whether every code of required is present in
// codes as given, without ancestor expansion.
func (m *Model) IsOfCombinationType(codes []string, required []string) bool {
	set := NewCodeSet(NormalizeCodes(codes)...)
	for _, r := range required {
		if !set.Contains(NormalizeCode(r)) {
			return false
		}
	}
	return true
}

// IsOfExclusiveType checks that every code is a subtype of target. Each code
// is expanded on its own; if any expansion also reaches failCodes the result is
// FAIL, otherwise if any reaches warnCodes it is WARN. A nil code set, or a
// code outside target, is a FAIL. An empty non-nil set has no code outside
// target and is a PASS.
func (m *Model) IsOfExclusiveType(codes []string, target string, failCodes, warnCodes []string) domain.EvaluationResult {
	if codes == nil {
		return domain.FAIL
	}

	target = NormalizeCode(target)
	fail := NewCodeSet(NormalizeCodes(failCodes)...)
	warn := NewCodeSet(NormalizeCodes(warnCodes)...)
	warned := false

	for _, c := range codes {
		ancestors := m.ancestorsOf(c)
		if !ancestors.Contains(target) {
			return domain.FAIL
		}
		if ancestors.Intersects(fail) {
			return domain.FAIL
		}
		if ancestors.Intersects(warn) {
			warned = true
		}
	}

	if warned {
		return domain.WARN
	}
	return domain.PASS
}

// Term returns the display term of code.
func (m *Model) Term(code string) (string, bool) {
	return m.graph.Term(NormalizeCode(code))
}

// CodeForTerm looks a code up by its display term, ignoring case.
func (m *Model) CodeForTerm(term string) (string, bool) {
	code, ok := m.termIndex[normalizeTerm(term)]
	return code, ok
}

func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}
