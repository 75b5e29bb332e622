package doid

import (
	"fmt"
	"strings"

	"github.com/awalterschulze/gographviz"

	"github.com/trial-eligibility-engine/internal/domain"
)

// ParseDOT builds a Graph from a Graphviz digraph in which every edge points
// from a code to one of its parents and node labels carry display terms:
//
//	digraph doid {
//	  "162" [label="cancer"];
//	  "1612" [label="breast cancer"];
//	  "1612" -> "162";
//	}
func ParseDOT(src string) (*Graph, error) {
	ast, err := gographviz.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse DOT: %v", domain.ErrInvalidOntology, err)
	}

	g := gographviz.NewGraph()
	if err := gographviz.Analyse(ast, g); err != nil {
		return nil, fmt.Errorf("%w: failed to analyse DOT: %v", domain.ErrInvalidOntology, err)
	}

	parents := make(map[string][]string)
	terms := make(map[string]string)

	for _, n := range g.Nodes.Nodes {
		if label := getAttr(n.Attrs, "label"); label != "" {
			terms[nodeCode(n.Name)] = label
		}
	}
	for _, e := range g.Edges.Edges {
		child := nodeCode(e.Src)
		parents[child] = append(parents[child], nodeCode(e.Dst))
	}

	return NewGraph(parents, terms), nil
}

// nodeCode accepts bare codes as well as DOID CURIEs and IRIs.
func nodeCode(name string) string {
	return NormalizeCode(unquote(name))
}

func getAttr(attrs gographviz.Attrs, key string) string {
	val, ok := attrs[gographviz.Attr(key)]
	if !ok {
		return ""
	}
	return unquote(val)
}

// unquote strips the double quotes Graphviz keeps around quoted IDs.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}
