// Package depgraph topologically sorts tables (or migrations) by their
// foreign-key dependencies using Kahn's algorithm with a stable lexical
// tiebreak, and detects cycles via depth-first search with an explicit
// recursion stack.
package depgraph

import (
	"sort"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
)

// Node is one table (or migration) in the graph: a name and the names it
// depends on. Names not present as some other Node's Name are treated as
// external references and excluded from the ordering (DESIGN.md Open
// Question 1).
type Node struct {
	Name      string
	DependsOn []string
}

// Graph is the resolved adjacency structure built from a set of Nodes.
type Graph struct {
	nodes    []Node
	indexOf  map[string]int
	edges    [][]int // edges[i] = indices of nodes that i depends on (internal refs only)
	reverse  [][]int // reverse[i] = indices of nodes that depend on i
}

// Build constructs a Graph from nodes, dropping any DependsOn entry that
// does not match another node's Name (external/unknown reference) and
// any self-reference.
func Build(nodes []Node) *Graph {
	g := &Graph{nodes: nodes, indexOf: make(map[string]int, len(nodes))}
	for i, n := range nodes {
		g.indexOf[n.Name] = i
	}
	g.edges = make([][]int, len(nodes))
	g.reverse = make([][]int, len(nodes))

	for i, n := range nodes {
		for _, dep := range n.DependsOn {
			j, ok := g.indexOf[dep]
			if !ok || j == i {
				continue
			}
			g.edges[i] = append(g.edges[i], j)
			g.reverse[j] = append(g.reverse[j], i)
		}
	}
	return g
}

// CreationOrder returns node names in an order satisfying: for every
// table T and referenced table R, index(R) < index(T). Ties are broken
// by ascending lexical name (see DESIGN.md Open Question 1 for why this
// implementation pops the smallest ready name first rather than the
// Rust original's largest-first order).
func (g *Graph) CreationOrder() ([]string, error) {
	if cycle := g.findCycle(); cycle != nil {
		return nil, gwerrors.New(gwerrors.KindSchemaExtractionFailed,
			"Circular dependency detected: %s", joinNames(cycle))
	}

	inDegree := make([]int, len(g.nodes))
	for i := range g.nodes {
		inDegree[i] = len(g.edges[i])
	}

	var ready []int
	for i, d := range inDegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}
	sortByName(g.nodes, ready)

	var order []string
	for len(ready) > 0 {
		idx := ready[0]
		ready = ready[1:]
		order = append(order, g.nodes[idx].Name)

		var newlyReady []int
		for _, dependent := range g.reverse[idx] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				newlyReady = append(newlyReady, dependent)
			}
		}
		ready = append(ready, newlyReady...)
		sortByName(g.nodes, ready)
	}

	return order, nil
}

func sortByName(nodes []Node, idx []int) {
	sort.Slice(idx, func(a, b int) bool {
		return nodes[idx[a]].Name < nodes[idx[b]].Name
	})
}

// findCycle runs DFS with an explicit recursion stack and returns the
// full cycle path (node names) if one exists, else nil.
func (g *Graph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(g.nodes))
	var stack []int

	var visit func(i int) []string
	visit = func(i int) []string {
		color[i] = gray
		stack = append(stack, i)

		for _, dep := range g.edges[i] {
			switch color[dep] {
			case gray:
				// Found the back-edge; extract the cycle from the stack.
				start := 0
				for k, s := range stack {
					if s == dep {
						start = k
						break
					}
				}
				cyclePath := make([]string, 0, len(stack)-start)
				for _, s := range stack[start:] {
					cyclePath = append(cyclePath, g.nodes[s].Name)
				}
				return cyclePath
			case white:
				if path := visit(dep); path != nil {
					return path
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[i] = black
		return nil
	}

	// Deterministic scan order for reproducible cycle reports.
	order := make([]int, len(g.nodes))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return g.nodes[order[a]].Name < g.nodes[order[b]].Name })

	for _, i := range order {
		if color[i] == white {
			if path := visit(i); path != nil {
				return path
			}
		}
	}
	return nil
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

// AdjacencyList returns the table -> depended-on-tables map (internal
// references only, external ones already dropped by Build).
func (g *Graph) AdjacencyList() map[string][]string {
	out := make(map[string][]string, len(g.nodes))
	for i, n := range g.nodes {
		var deps []string
		for _, j := range g.edges[i] {
			deps = append(deps, g.nodes[j].Name)
		}
		out[n.Name] = deps
	}
	return out
}

// ReverseDependencies returns the table -> dependent-tables map.
func (g *Graph) ReverseDependencies() map[string][]string {
	out := make(map[string][]string, len(g.nodes))
	for i, n := range g.nodes {
		var dependents []string
		for _, j := range g.reverse[i] {
			dependents = append(dependents, g.nodes[j].Name)
		}
		out[n.Name] = dependents
	}
	return out
}
