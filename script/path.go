package script

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/dnw3/synapse/graph"
)

// PathEnv evaluates gjson path expressions against the serialized state.
// Paths can only route, not produce state updates, mirroring a predicate
// language rather than a full scripting language
type PathEnv struct{}

var (
	ErrPathEmpty         = errors.New("empty path expression")
	ErrPathBadCompiled   = errors.New("expected compiled path")
	ErrPathExecuteScript = errors.New("path expressions cannot execute nodes")
)

// NewPathEnv creates a gjson path evaluation environment
func NewPathEnv() *PathEnv {
	return &PathEnv{}
}

// Validate checks that the path expression is non-empty
func (e *PathEnv) Validate(src string) error {
	if src == "" {
		return ErrPathEmpty
	}
	return nil
}

// Compile returns the path itself; gjson compiles lazily on evaluation
func (e *PathEnv) Compile(_, src string) (Compiled, error) {
	if err := e.Validate(src); err != nil {
		return nil, err
	}
	return src, nil
}

// ExecuteScript is unsupported for path expressions
func (e *PathEnv) ExecuteScript(
	Compiled, graph.Values,
) (graph.Values, error) {
	return nil, ErrPathExecuteScript
}

// EvaluateRoute serializes the state and returns the path's match rendered
// as a route key. A missing path yields the empty key
func (e *PathEnv) EvaluateRoute(
	c Compiled, state graph.Values,
) (string, error) {
	path, ok := c.(string)
	if !ok {
		return "", fmt.Errorf("%w, got %T", ErrPathBadCompiled, c)
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(raw, path).String(), nil
}
