package doid

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/trial-eligibility-engine/internal/domain"
)

const (
	doidIRIPrefix = "http://purl.obolibrary.org/obo/DOID_"
	isAPredicate  = "is_a"
)

// oboGraphDocument is the subset of the OBO-graph JSON layout published by
// the Disease Ontology that the loader reads.
type oboGraphDocument struct {
	Graphs []struct {
		Nodes []struct {
			ID  string `json:"id"`
			Lbl string `json:"lbl"`
		} `json:"nodes"`
		Edges []struct {
			Sub  string `json:"sub"`
			Pred string `json:"pred"`
			Obj  string `json:"obj"`
		} `json:"edges"`
	} `json:"graphs"`
}

// LoadJSON builds a Graph from an OBO-graph JSON document. Only DOID nodes and
// is_a edges between them are kept.
func LoadJSON(r io.Reader) (*Graph, error) {
	var doc oboGraphDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: failed to decode OBO graph: %v", domain.ErrInvalidOntology, err)
	}
	if len(doc.Graphs) == 0 {
		return nil, fmt.Errorf("%w: document contains no graphs", domain.ErrInvalidOntology)
	}

	parents := make(map[string][]string)
	terms := make(map[string]string)

	for _, g := range doc.Graphs {
		for _, n := range g.Nodes {
			code, ok := doidCode(n.ID)
			if !ok || n.Lbl == "" {
				continue
			}
			terms[code] = n.Lbl
		}
		for _, e := range g.Edges {
			if e.Pred != isAPredicate {
				continue
			}
			child, ok := doidCode(e.Sub)
			if !ok {
				continue
			}
			parent, ok := doidCode(e.Obj)
			if !ok {
				continue
			}
			parents[child] = append(parents[child], parent)
		}
	}

	return NewGraph(parents, terms), nil
}

// LoadFile reads an ontology file in the given format ("json" or "dot").
func LoadFile(path, format string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ontology file: %w", err)
	}
	defer f.Close()

	return Parse(f, format)
}

// Parse reads an ontology in the given format ("json" or "dot") from r.
func Parse(r io.Reader, format string) (*Graph, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return LoadJSON(r)
	case "dot":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read ontology: %w", err)
		}
		return ParseDOT(string(data))
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidOntology, format)
	}
}

// NormalizeCode returns the bare DOID code for a bare code, a DOID CURIE
// ("DOID:3908" or "DOID_3908") or a full OBO IRI. Anything else is returned
// trimmed but otherwise unchanged.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if bare, ok := doidCode(code); ok {
		return bare
	}
	return code
}

// NormalizeCodes applies NormalizeCode to every element of codes. A nil slice
// stays nil.
func NormalizeCodes(codes []string) []string {
	if codes == nil {
		return nil
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = NormalizeCode(c)
	}
	return out
}

// doidCode extracts the numeric DOID code from an IRI or CURIE.
func doidCode(id string) (string, bool) {
	switch {
	case strings.HasPrefix(id, doidIRIPrefix):
		return strings.TrimPrefix(id, doidIRIPrefix), true
	case strings.HasPrefix(id, "DOID:"):
		return strings.TrimPrefix(id, "DOID:"), true
	case strings.HasPrefix(id, "DOID_"):
		return strings.TrimPrefix(id, "DOID_"), true
	default:
		return "", false
	}
}
