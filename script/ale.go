package script

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kode4food/ale"
	"github.com/kode4food/ale/core/bootstrap"
	"github.com/kode4food/ale/data"
	"github.com/kode4food/ale/env"
	"github.com/kode4food/ale/eval"

	"github.com/dnw3/synapse/graph"
)

// AleEnv provides an Ale (Lisp) execution environment. Scripts are wrapped
// in a single-argument lambda receiving the state as an object
type AleEnv struct {
	env     *env.Environment
	scripts sync.Map
}

const aleLambdaTemplate = "(lambda (state) %s)"

var (
	ErrAleBadCompiledType = errors.New("expected data.Procedure")
	ErrAleNotProcedure    = errors.New("not a procedure")
	ErrAleCompile         = errors.New("script compile error")
	ErrAleCall            = errors.New("error calling procedure")
	ErrAleBadUpdate       = errors.New("ale script must return an object")
)

// NewAleEnv creates a bootstrapped Ale environment
func NewAleEnv() *AleEnv {
	e := env.NewEnvironment()
	bootstrap.Into(e)
	return &AleEnv{
		env: e,
	}
}

// Validate checks whether src compiles
func (e *AleEnv) Validate(src string) error {
	_, err := e.compile(src)
	return err
}

// Compile compiles and caches a script by name and content hash
func (e *AleEnv) Compile(name, src string) (Compiled, error) {
	key := cacheKey(name, src)
	if cached, ok := e.scripts.Load(key); ok {
		return cached.(data.Procedure), nil
	}

	proc, err := e.compile(src)
	if err == nil {
		e.scripts.Store(key, proc)
	}
	return proc, err
}

// ExecuteScript calls a compiled script and converts its returned object
// to a state update
func (e *AleEnv) ExecuteScript(
	c Compiled, state graph.Values,
) (graph.Values, error) {
	result, err := e.call(c, state)
	if err != nil {
		return nil, err
	}

	converted := aleToJSON(result)
	m, ok := converted.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w, got %T", ErrAleBadUpdate, converted)
	}
	return graph.Values(m), nil
}

// EvaluateRoute calls a compiled routing script and renders its result as
// a route key
func (e *AleEnv) EvaluateRoute(
	c Compiled, state graph.Values,
) (string, error) {
	result, err := e.call(c, state)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", aleToJSON(result)), nil
}

func (e *AleEnv) call(c Compiled, state graph.Values) (ale.Value, error) {
	proc, ok := c.(data.Procedure)
	if !ok {
		return nil, fmt.Errorf("%w, got %T", ErrAleBadCompiledType, c)
	}

	arg := jsonToAle(map[string]any(state))
	return catchPanic(ErrAleCall,
		func() (ale.Value, error) {
			return proc.Call(arg), nil
		},
	)
}

func (e *AleEnv) compile(src string) (data.Procedure, error) {
	wrapped := fmt.Sprintf(aleLambdaTemplate, src)

	return catchPanic(ErrAleCompile,
		func() (data.Procedure, error) {
			ns := e.env.GetAnonymous()
			res, err := eval.String(ns, data.String(wrapped))
			if err != nil {
				return nil, err
			}

			proc, ok := res.(data.Procedure)
			if !ok {
				return nil, fmt.Errorf(
					"%w, got: %T", ErrAleNotProcedure, res,
				)
			}
			return proc, nil
		},
	)
}

func jsonToAle(value any) ale.Value {
	switch v := value.(type) {
	case string:
		return data.String(v)
	case bool:
		return data.Bool(v)
	case int:
		return data.Integer(v)
	case int64:
		return data.Integer(v)
	case float64:
		return data.Float(v)
	case []any:
		return jsonArrayToAle(v)
	case map[string]any:
		return jsonMapToAle(v)
	case graph.Values:
		return jsonMapToAle(v)
	case nil:
		return data.Null
	default:
		return data.String(fmt.Sprintf("%v", v))
	}
}

func jsonArrayToAle(arr []any) data.Vector {
	vec := make(data.Vector, len(arr))
	for i, item := range arr {
		vec[i] = jsonToAle(item)
	}
	return vec
}

func jsonMapToAle[M ~map[string]any](m M) *data.Object {
	obj := data.NewObject()
	for k, val := range m {
		pair := data.NewCons(data.Keyword(k), jsonToAle(val))
		obj = obj.Put(pair).(*data.Object)
	}
	return obj
}

func aleToJSON(value ale.Value) any {
	switch v := value.(type) {
	case data.Bool:
		return bool(v)
	case data.String:
		return string(v)
	case data.Keyword:
		return string(v)
	case data.Integer:
		return int(v)
	case data.Float:
		return float64(v)
	case data.Vector:
		return aleVectorToJSON(v)
	case *data.List:
		return aleListToJSON(v)
	case *data.Object:
		return aleObjectToJSON(v)
	default:
		return aleDefaultToJSON(value, v)
	}
}

func aleVectorToJSON(v data.Vector) []any {
	result := make([]any, len(v))
	for i, item := range v {
		result[i] = aleToJSON(item)
	}
	return result
}

func aleListToJSON(list *data.List) []any {
	var result []any
	for l := list; !l.IsEmpty(); {
		head, tail, ok := l.Split()
		if !ok {
			break
		}
		result = append(result, aleToJSON(head))
		l = tail.(*data.List)
	}
	return result
}

func aleObjectToJSON(obj *data.Object) map[string]any {
	result := map[string]any{}
	for _, pair := range obj.Pairs() {
		keyStr := fmt.Sprintf("%v", aleToJSON(pair.Car()))
		result[keyStr] = aleToJSON(pair.Cdr())
	}
	return result
}

func aleDefaultToJSON(value ale.Value, v any) any {
	if value == data.Null {
		return nil
	}
	return fmt.Sprintf("%v", v)
}

func catchPanic[T any](baseErr error, fn func() (T, error)) (res T, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		e, ok := r.(error)
		if ok {
			err = e
			return
		}
		err = fmt.Errorf("%w: %v", baseErr, r)
	}()
	return fn()
}
