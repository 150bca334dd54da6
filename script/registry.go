// Package script compiles node bodies and routing functions from embedded
// scripting languages, letting graphs be defined from configuration rather
// than Go code. Environments operate on graph.Values states
package script

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dnw3/synapse/graph"
	"github.com/dnw3/synapse/pkg/log"
)

type (
	// Registry manages script environments for different languages
	Registry struct {
		envs map[string]Environment
	}

	// Environment defines the interface for script environments
	Environment interface {
		// Validate checks if a script is syntactically valid
		Validate(src string) error

		// Compile compiles a script and returns the compiled form
		Compile(name, src string) (Compiled, error)

		// ExecuteScript executes a compiled script against a state and
		// returns the state update it produced
		ExecuteScript(c Compiled, state graph.Values) (graph.Values, error)

		// EvaluateRoute evaluates a compiled routing script against a
		// state and returns the route key
		EvaluateRoute(c Compiled, state graph.Values) (string, error)
	}

	// Compiled represents a compiled script for any supported language
	Compiled any
)

const (
	LangLua  = "lua"
	LangAle  = "ale"
	LangPath = "path"

	// InterruptKey is the reserved state key a script node sets to pause
	// the graph. Its value travels to the caller as the interrupt value
	InterruptKey = "__interrupt__"

	// routeError is returned as the route key when a routing script
	// fails; it is never mapped, so the step fails with a routing error
	routeError = "__route_error__"
)

var ErrUnsupportedLanguage = errors.New("unsupported script language")

// NewRegistry creates a registry with the Lua, Ale, and path environments
func NewRegistry() *Registry {
	return &Registry{
		envs: map[string]Environment{
			LangAle:  NewAleEnv(),
			LangLua:  NewLuaEnv(),
			LangPath: NewPathEnv(),
		},
	}
}

// Register adds or replaces the environment for a language
func (r *Registry) Register(language string, env Environment) {
	r.envs[language] = env
}

// Get returns the script environment for the given language
func (r *Registry) Get(language string) (Environment, error) {
	env, ok := r.envs[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	return env, nil
}

// Validate checks that src is a syntactically valid script in the given
// language
func (r *Registry) Validate(language, src string) error {
	env, err := r.Get(language)
	if err != nil {
		return err
	}
	return env.Validate(src)
}

// NodeFunc compiles src into a graph node body. The script receives the
// current state and returns a state update; setting InterruptKey in the
// update pauses the graph with that key's value
func (r *Registry) NodeFunc(
	language, name, src string,
) (graph.NodeFunc[graph.Values], error) {
	env, err := r.Get(language)
	if err != nil {
		return nil, err
	}
	compiled, err := env.Compile(name, src)
	if err != nil {
		return nil, err
	}

	return func(
		_ context.Context, state graph.Values,
	) (*graph.Outcome[graph.Values], error) {
		update, err := env.ExecuteScript(compiled, state)
		if err != nil {
			return nil, err
		}
		if value, ok := update[InterruptKey]; ok {
			delete(update, InterruptKey)
			return graph.Interrupt(update, value), nil
		}
		return graph.Continue(update), nil
	}, nil
}

// Router compiles src into a graph routing function. Routing functions
// cannot fail, so a script error is logged and surfaced as an unmappable
// key, failing the step with a routing error
func (r *Registry) Router(
	language, name, src string,
) (graph.Router[graph.Values], error) {
	env, err := r.Get(language)
	if err != nil {
		return nil, err
	}
	compiled, err := env.Compile(name, src)
	if err != nil {
		return nil, err
	}

	return func(state graph.Values) string {
		key, err := env.EvaluateRoute(compiled, state)
		if err != nil {
			slog.Error("Routing script failed",
				slog.String("router", name),
				log.Error(err))
			return routeError
		}
		return key
	}, nil
}

func cacheKey(name, src string) string {
	hash := sha256.Sum256([]byte(src))
	return name + ":" + hex.EncodeToString(hash[:8])
}
