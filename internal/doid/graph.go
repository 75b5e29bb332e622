// Package doid resolves disease-ontology (DOID) codes against the Disease
// Ontology hierarchy: ancestor closures and the type, term and combination
// queries the eligibility rules are written in terms of.
package doid

import (
	"slices"
	"strings"
)

// CodeSet is an unordered set of DOID codes.
type CodeSet map[string]struct{}

// NewCodeSet builds a set from the given codes, skipping blanks.
func NewCodeSet(codes ...string) CodeSet {
	set := make(CodeSet, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

// Contains reports whether code is a member of s.
func (s CodeSet) Contains(code string) bool {
	_, ok := s[code]
	return ok
}

// Intersects reports whether s and other share at least one code.
func (s CodeSet) Intersects(other CodeSet) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for c := range small {
		if large.Contains(c) {
			return true
		}
	}
	return false
}

// Sorted returns the members of s in lexical order.
func (s CodeSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

func (s CodeSet) clone() CodeSet {
	out := make(CodeSet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// Graph is the immutable is-a hierarchy of the ontology. A code may have any
// number of parents. Once built a Graph is never mutated and may be shared
// between goroutines.
type Graph struct {
	parents map[string][]string
	terms   map[string]string
}

// NewGraph copies the given parent and term maps into a new Graph.
func NewGraph(parents map[string][]string, terms map[string]string) *Graph {
	g := &Graph{
		parents: make(map[string][]string, len(parents)),
		terms:   make(map[string]string, len(terms)),
	}
	for code, ps := range parents {
		g.parents[code] = slices.Clone(ps)
	}
	for code, term := range terms {
		g.terms[code] = term
	}
	return g
}

// Size returns the number of codes known to the graph, either as a node with
// parents or as a named term.
func (g *Graph) Size() int {
	seen := make(CodeSet, len(g.terms))
	for c := range g.terms {
		seen[c] = struct{}{}
	}
	for c, ps := range g.parents {
		seen[c] = struct{}{}
		for _, p := range ps {
			seen[p] = struct{}{}
		}
	}
	return len(seen)
}

// Parents returns the direct parents of code.
func (g *Graph) Parents(code string) []string {
	return slices.Clone(g.parents[code])
}

// Term returns the display term of code.
func (g *Graph) Term(code string) (string, bool) {
	t, ok := g.terms[code]
	return t, ok
}

// Ancestors returns code together with every code reachable from it by
// following parent links. An unknown code yields just itself. Cycles in
// malformed input are tolerated.
func (g *Graph) Ancestors(code string) CodeSet {
	visited := CodeSet{code: {}}
	stack := []string{code}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range g.parents[current] {
			if visited.Contains(p) {
				continue
			}
			visited[p] = struct{}{}
			stack = append(stack, p)
		}
	}
	return visited
}

// Closure returns the union of Ancestors over codes.
func (g *Graph) Closure(codes []string) CodeSet {
	out := make(CodeSet)
	for _, c := range codes {
		for a := range g.Ancestors(c) {
			out[a] = struct{}{}
		}
	}
	return out
}
