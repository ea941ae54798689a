package runner

import (
	"github.com/abdul-hamid-achik/sheetspec/packages/core/parser"
)

// Edge is one directive reference from a test case to another.
type Edge struct {
	Scope  parser.Scope
	Target string
}

// Graph is the directive graph of a suite: nodes are TCIDs and edges are
// directive references. It is built once before anything runs so unknown
// references and cycles are reported without sending a request.
type Graph struct {
	edges  map[string][]Edge
	errs   map[string]error
	cycles []*CycleError
}

// BuildGraph indexes every directive of every case in the suite, including
// cases whose Run flag is off, since those are still valid dependencies.
func BuildGraph(suite *parser.Suite) *Graph {
	g := &Graph{
		edges: make(map[string][]Edge),
		errs:  make(map[string]error),
	}

	known := make(map[string]bool, len(suite.Cases))
	for _, tc := range suite.Cases {
		known[tc.TCID] = true
	}

	for _, tc := range suite.Cases {
		if tc.Err != nil {
			g.errs[tc.TCID] = tc.Err
		}
		seen := make(map[Edge]bool)
		for _, step := range tc.Steps {
			for _, d := range step.Directives {
				for _, id := range d.TCIDs {
					e := Edge{Scope: d.Scope, Target: id}
					if seen[e] {
						continue
					}
					seen[e] = true
					if !known[id] {
						g.setErr(tc.TCID, &ConditionError{
							Code:       ErrCodeUnknownCase,
							TCID:       tc.TCID,
							Dependency: id,
							Scope:      d.Scope,
						})
						continue
					}
					g.edges[tc.TCID] = append(g.edges[tc.TCID], e)
				}
			}
		}
	}

	g.findCycles(suite)
	return g
}

func (g *Graph) setErr(tcid string, err error) {
	if _, ok := g.errs[tcid]; !ok {
		g.errs[tcid] = err
	}
}

// Edges returns the directive references of tcid in declaration order.
func (g *Graph) Edges(tcid string) []Edge {
	return g.edges[tcid]
}

// Err returns the load-time problem that keeps tcid from running, if any.
func (g *Graph) Err(tcid string) error {
	return g.errs[tcid]
}

// Cycles returns every distinct cycle found, in discovery order.
func (g *Graph) Cycles() []*CycleError {
	return g.cycles
}

const (
	white = iota
	grey
	black
)

// findCycles runs a depth-first search over all edges. Each back edge yields
// one cycle, and every case on it is marked with the CycleError.
func (g *Graph) findCycles(suite *parser.Suite) {
	color := make(map[string]int)
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		stack = append(stack, id)

		for _, e := range g.edges[id] {
			switch color[e.Target] {
			case white:
				visit(e.Target)
			case grey:
				g.recordCycle(stack, e.Target)
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, tc := range suite.Cases {
		if color[tc.TCID] == white {
			visit(tc.TCID)
		}
	}
}

func (g *Graph) recordCycle(stack []string, target string) {
	start := len(stack) - 1
	for start >= 0 && stack[start] != target {
		start--
	}
	if start < 0 {
		return
	}

	path := make([]string, 0, len(stack)-start+1)
	path = append(path, stack[start:]...)
	path = append(path, target)

	err := NewCycleError(path)
	g.cycles = append(g.cycles, err)
	for _, id := range path[:len(path)-1] {
		g.setErr(id, err)
	}
}
