// Package loader reads graph definition documents from disk and compiles
// them into executable graphs
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dnw3/synapse/graph"
	"github.com/dnw3/synapse/script"
)

type (
	// GraphSpec is the on-disk JSON form of a graph definition
	GraphSpec struct {
		Name            string      `json:"name"`
		Entry           string      `json:"entry"`
		Nodes           []*NodeSpec `json:"nodes"`
		Edges           []*EdgeSpec `json:"edges"`
		InterruptBefore []string    `json:"interrupt_before,omitempty"`
		InterruptAfter  []string    `json:"interrupt_after,omitempty"`
	}

	// NodeSpec declares a named scripted node
	NodeSpec struct {
		Name     string `json:"name"`
		Language string `json:"language"`
		Script   string `json:"script"`
	}

	// EdgeSpec declares either a fixed edge (Target set) or a conditional
	// edge (Script set, optionally with a PathMap)
	EdgeSpec struct {
		Source   string            `json:"source"`
		Target   string            `json:"target,omitempty"`
		Language string            `json:"language,omitempty"`
		Script   string            `json:"script,omitempty"`
		PathMap  map[string]string `json:"path_map,omitempty"`
	}

	// Loader compiles graph specs using a shared script registry
	Loader struct {
		registry *script.Registry
	}
)

var (
	ErrMissingGraphName = errors.New("graph name is required")
	ErrMissingNodeName  = errors.New("node name is required")
	ErrMissingScript    = errors.New("node script is required")
	ErrAmbiguousEdge    = errors.New(
		"edge must declare either a target or a script, not both",
	)
	ErrEmptyEdge = errors.New(
		"edge must declare a target or a script",
	)
)

// NewLoader creates a Loader backed by the provided script registry
func NewLoader(registry *script.Registry) *Loader {
	return &Loader{registry: registry}
}

// LoadDir compiles every *.json graph spec found directly under dir. The
// result maps graph names to compiled graphs
func (l *Loader) LoadDir(
	dir string,
) (map[string]*graph.CompiledGraph[graph.Values], error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	res := map[string]*graph.CompiledGraph[graph.Values]{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		g, spec, err := l.LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		res[spec.Name] = g
	}
	return res, nil
}

// LoadFile compiles a single graph spec file
func (l *Loader) LoadFile(
	path string,
) (*graph.CompiledGraph[graph.Values], *GraphSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var spec GraphSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, nil, err
	}

	g, err := l.Compile(&spec)
	if err != nil {
		return nil, nil, err
	}
	return g, &spec, nil
}

// Compile validates a graph spec and assembles it into a compiled graph
func (l *Loader) Compile(
	spec *GraphSpec,
) (*graph.CompiledGraph[graph.Values], error) {
	if err := l.validate(spec); err != nil {
		return nil, err
	}

	sg := graph.New[graph.Values]()
	for _, n := range spec.Nodes {
		fn, err := l.registry.NodeFunc(n.Language, n.Name, n.Script)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.Name, err)
		}
		sg.AddNodeFunc(n.Name, fn)
	}

	for _, e := range spec.Edges {
		if e.Target != "" {
			sg.AddEdge(e.Source, e.Target)
			continue
		}
		router, err := l.registry.Router(e.Language, e.Source, e.Script)
		if err != nil {
			return nil, fmt.Errorf("edge from %s: %w", e.Source, err)
		}
		if len(e.PathMap) > 0 {
			sg.AddConditionalEdgesWithPathMap(e.Source, router, e.PathMap)
		} else {
			sg.AddConditionalEdges(e.Source, router)
		}
	}

	if len(spec.InterruptBefore) > 0 {
		sg.InterruptBefore(spec.InterruptBefore...)
	}
	if len(spec.InterruptAfter) > 0 {
		sg.InterruptAfter(spec.InterruptAfter...)
	}

	sg.SetEntryPoint(spec.Entry)
	return sg.Compile()
}

func (l *Loader) validate(spec *GraphSpec) error {
	if spec.Name == "" {
		return ErrMissingGraphName
	}
	for _, n := range spec.Nodes {
		if n.Name == "" {
			return ErrMissingNodeName
		}
		if n.Script == "" {
			return fmt.Errorf("%w: %s", ErrMissingScript, n.Name)
		}
		if err := l.registry.Validate(n.Language, n.Script); err != nil {
			return fmt.Errorf("node %s: %w", n.Name, err)
		}
	}
	for _, e := range spec.Edges {
		hasTarget := e.Target != ""
		hasScript := e.Script != ""
		if hasTarget && hasScript {
			return fmt.Errorf("%w: %s", ErrAmbiguousEdge, e.Source)
		}
		if !hasTarget && !hasScript {
			return fmt.Errorf("%w: %s", ErrEmptyEdge, e.Source)
		}
	}
	return nil
}
