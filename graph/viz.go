package graph

import (
	"fmt"
	"slices"
	"strings"
)

// Mermaid renders the graph as a mermaid flowchart. Fixed edges are solid,
// conditional edges are dashed and labeled with their route keys. Purely
// textual; no runtime behavior
func (g *CompiledGraph[S]) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")
	fmt.Fprintf(&b, "\t%s([start]) --> %s\n", Start, g.entry)

	for _, name := range g.NodeNames() {
		fmt.Fprintf(&b, "\t%s[%s]\n", name, name)
	}
	b.WriteString(fmt.Sprintf("\t%s([end])\n", End))

	for _, source := range sortedKeys(g.edges) {
		fmt.Fprintf(&b, "\t%s --> %s\n", source, g.edges[source])
	}
	for _, source := range sortedKeys(g.conditional) {
		edge := g.conditional[source]
		if edge.pathMap == nil {
			fmt.Fprintf(&b, "\t%s -.-> %s\n", source, End)
			continue
		}
		for _, key := range sortedKeys(edge.pathMap) {
			fmt.Fprintf(
				&b, "\t%s -.->|%s| %s\n", source, key, edge.pathMap[key],
			)
		}
	}
	return b.String()
}

// DOT renders the graph in Graphviz dot format
func (g *CompiledGraph[S]) DOT() string {
	var b strings.Builder
	b.WriteString("digraph {\n")
	fmt.Fprintf(&b, "\t%q [shape=circle];\n", Start)
	fmt.Fprintf(&b, "\t%q [shape=doublecircle];\n", End)
	fmt.Fprintf(&b, "\t%q -> %q;\n", Start, g.entry)

	for _, name := range g.NodeNames() {
		fmt.Fprintf(&b, "\t%q [shape=box];\n", name)
	}
	for _, source := range sortedKeys(g.edges) {
		fmt.Fprintf(&b, "\t%q -> %q;\n", source, g.edges[source])
	}
	for _, source := range sortedKeys(g.conditional) {
		edge := g.conditional[source]
		if edge.pathMap == nil {
			fmt.Fprintf(&b, "\t%q -> %q [style=dashed];\n", source, End)
			continue
		}
		for _, key := range sortedKeys(edge.pathMap) {
			fmt.Fprintf(
				&b, "\t%q -> %q [style=dashed, label=%q];\n",
				source, edge.pathMap[key], key,
			)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
