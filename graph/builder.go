package graph

import (
	"fmt"
	"maps"
)

// StateGraph accumulates named nodes, edges, and an entry point before
// compilation. All mutators return the receiver for chaining; nothing is
// validated until Compile
type StateGraph[S State[S]] struct {
	nodes       map[string]Node[S]
	edges       map[string]string
	conditional map[string]*conditionalEdge[S]
	before      map[string]struct{}
	after       map[string]struct{}
	duplicates  []string
	entry       string
}

// New creates an empty graph builder
func New[S State[S]]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:       map[string]Node[S]{},
		edges:       map[string]string{},
		conditional: map[string]*conditionalEdge[S]{},
		before:      map[string]struct{}{},
		after:       map[string]struct{}{},
	}
}

// AddNode registers a named node body. Names must be unique; a repeat is
// reported by Compile
func (g *StateGraph[S]) AddNode(name string, node Node[S]) *StateGraph[S] {
	if _, ok := g.nodes[name]; ok {
		g.duplicates = append(g.duplicates, name)
		return g
	}
	g.nodes[name] = node
	return g
}

// AddNodeFunc registers a plain function as a node body
func (g *StateGraph[S]) AddNodeFunc(
	name string, fn NodeFunc[S],
) *StateGraph[S] {
	return g.AddNode(name, fn)
}

// AddEdge adds a fixed edge from source to target. Target may be End
func (g *StateGraph[S]) AddEdge(source, target string) *StateGraph[S] {
	g.edges[source] = target
	return g
}

// AddConditionalEdges attaches a routing function to source. The key it
// returns is used as the target node name directly
func (g *StateGraph[S]) AddConditionalEdges(
	source string, route Router[S],
) *StateGraph[S] {
	g.conditional[source] = &conditionalEdge[S]{route: route}
	return g
}

// AddConditionalEdgesWithPathMap attaches a routing function whose keys are
// translated through pathMap. Keys outside the map fail the step at runtime;
// map targets are validated at compile time and drive visualization
func (g *StateGraph[S]) AddConditionalEdgesWithPathMap(
	source string, route Router[S], pathMap map[string]string,
) *StateGraph[S] {
	g.conditional[source] = &conditionalEdge[S]{
		route:   route,
		pathMap: maps.Clone(pathMap),
	}
	return g
}

// InterruptBefore marks nodes that pause the thread before they execute.
// The checkpoint parks at the marked node, so resuming runs it
func (g *StateGraph[S]) InterruptBefore(nodes ...string) *StateGraph[S] {
	for _, name := range nodes {
		g.before[name] = struct{}{}
	}
	return g
}

// InterruptAfter marks nodes that pause the thread once they have executed
// and their update is merged. The checkpoint parks at the node's successor
func (g *StateGraph[S]) InterruptAfter(nodes ...string) *StateGraph[S] {
	for _, name := range nodes {
		g.after[name] = struct{}{}
	}
	return g
}

// SetEntryPoint names the node execution starts from
func (g *StateGraph[S]) SetEntryPoint(name string) *StateGraph[S] {
	g.entry = name
	return g
}

// Compile validates the definition and freezes it into an executable
// CompiledGraph. Validation is pure: missing entry point, dangling edge
// references, path map targets naming absent nodes, and duplicate node
// names are the only errors it can produce
func (g *StateGraph[S]) Compile() (*CompiledGraph[S], error) {
	if len(g.duplicates) > 0 {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, g.duplicates[0])
	}
	if g.entry == "" {
		return nil, ErrNoEntryPoint
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrEntryNotFound, g.entry)
	}

	for source, target := range g.edges {
		if source != Start {
			if _, ok := g.nodes[source]; !ok {
				return nil, fmt.Errorf(
					"%w: %q", ErrEdgeSourceNotFound, source,
				)
			}
		}
		if target != End {
			if _, ok := g.nodes[target]; !ok {
				return nil, fmt.Errorf(
					"%w: %q -> %q", ErrEdgeTargetNotFound, source, target,
				)
			}
		}
	}

	for source, edge := range g.conditional {
		if source != Start {
			if _, ok := g.nodes[source]; !ok {
				return nil, fmt.Errorf(
					"%w: %q", ErrEdgeSourceNotFound, source,
				)
			}
		}
		for key, target := range edge.pathMap {
			if target == End {
				continue
			}
			if _, ok := g.nodes[target]; !ok {
				return nil, fmt.Errorf(
					"%w: %q (key %q)", ErrPathTargetNotFound, target, key,
				)
			}
		}
	}

	for name := range g.before {
		if _, ok := g.nodes[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrInterruptNodeNotFound, name)
		}
	}
	for name := range g.after {
		if _, ok := g.nodes[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrInterruptNodeNotFound, name)
		}
	}

	return &CompiledGraph[S]{
		nodes:       maps.Clone(g.nodes),
		edges:       maps.Clone(g.edges),
		conditional: maps.Clone(g.conditional),
		before:      maps.Clone(g.before),
		after:       maps.Clone(g.after),
		entry:       g.entry,
		limit:       DefaultRecursionLimit,
	}, nil
}
