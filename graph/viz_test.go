package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dnw3/synapse/graph"
)

func vizGraph(t *testing.T) *graph.CompiledGraph[graph.Values] {
	t.Helper()
	g, err := graph.New[graph.Values]().
		AddNodeFunc("classify", noopNode).
		AddNodeFunc("small", noopNode).
		AddNodeFunc("large", noopNode).
		AddConditionalEdgesWithPathMap("classify",
			func(graph.Values) string { return "big" },
			map[string]string{"big": "large", "little": "small"},
		).
		AddEdge("small", graph.End).
		AddEdge("large", graph.End).
		SetEntryPoint("classify").
		Compile()
	assert.NoError(t, err)
	return g
}

func TestMermaid(t *testing.T) {
	as := assert.New(t)
	out := vizGraph(t).Mermaid()

	as.Contains(out, "graph TD")
	as.Contains(out, "__start__([start]) --> classify")
	as.Contains(out, "classify[classify]")
	as.Contains(out, "small --> __end__")
	as.Contains(out, "classify -.->|big| large")
	as.Contains(out, "classify -.->|little| small")
}

func TestDOT(t *testing.T) {
	as := assert.New(t)
	out := vizGraph(t).DOT()

	as.Contains(out, "digraph {")
	as.Contains(out, `"__start__" -> "classify";`)
	as.Contains(out, `"classify" [shape=box];`)
	as.Contains(out, `"small" -> "__end__";`)
	as.Contains(
		out, `"classify" -> "large" [style=dashed, label="big"];`,
	)
}
