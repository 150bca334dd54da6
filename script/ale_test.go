package script_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dnw3/synapse/graph"
	"github.com/dnw3/synapse/script"
)

func TestAleCompile(t *testing.T) {
	env := script.NewAleEnv()

	comp, err := env.Compile("literal", "{:result true}")
	assert.NoError(t, err)
	assert.NotNil(t, comp)
}

func TestAleCompileError(t *testing.T) {
	env := script.NewAleEnv()

	_, err := env.Compile("broken", "{:result")
	assert.Error(t, err)
}

func TestAleValidate(t *testing.T) {
	env := script.NewAleEnv()

	assert.NoError(t, env.Validate("{:ok true}"))
	assert.Error(t, env.Validate("(+ 1"))
}

func TestAleExecuteScript(t *testing.T) {
	env := script.NewAleEnv()

	comp, err := env.Compile("sum",
		"{:result (+ (:a state) (:b state))}")
	assert.NoError(t, err)

	update, err := env.ExecuteScript(comp, graph.Values{
		"a": 5,
		"b": 10,
	})
	assert.NoError(t, err)
	assert.Equal(t, 15, update["result"])
}

func TestAleExecuteScriptTypes(t *testing.T) {
	env := script.NewAleEnv()

	comp, err := env.Compile("types", `
		{:text   "done"
		 :flag   true
		 :items  [1 2 3]
		 :nested {:deep "yes"}}
	`)
	assert.NoError(t, err)

	update, err := env.ExecuteScript(comp, graph.Values{})
	assert.NoError(t, err)
	assert.Equal(t, "done", update["text"])
	assert.Equal(t, true, update["flag"])
	assert.Equal(t, []any{1, 2, 3}, update["items"])
	assert.Equal(t, map[string]any{"deep": "yes"}, update["nested"])
}

func TestAleExecuteScriptRequiresObject(t *testing.T) {
	env := script.NewAleEnv()

	comp, err := env.Compile("scalar", "42")
	assert.NoError(t, err)

	_, err = env.ExecuteScript(comp, graph.Values{})
	assert.Error(t, err)
	assert.ErrorIs(t, err, script.ErrAleBadUpdate)
}

func TestAleEvaluateRoute(t *testing.T) {
	env := script.NewAleEnv()

	comp, err := env.Compile("routing",
		`(if (> (:size state) 10) "big" "small")`)
	assert.NoError(t, err)

	key, err := env.EvaluateRoute(comp, graph.Values{"size": 42})
	assert.NoError(t, err)
	assert.Equal(t, "big", key)

	key, err = env.EvaluateRoute(comp, graph.Values{"size": 3})
	assert.NoError(t, err)
	assert.Equal(t, "small", key)
}

func TestAleCallError(t *testing.T) {
	env := script.NewAleEnv()

	comp, err := env.Compile("boom", `((:missing state))`)
	assert.NoError(t, err)

	_, err = env.ExecuteScript(comp, graph.Values{})
	assert.Error(t, err)
}

func TestAleCacheForSameScript(t *testing.T) {
	env := script.NewAleEnv()

	first, err := env.Compile("cached", "{:ok true}")
	assert.NoError(t, err)
	second, err := env.Compile("cached", "{:ok true}")
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}
