package script

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/Shopify/go-lua"

	"github.com/dnw3/synapse/graph"
)

type (
	// LuaEnv provides a sandboxed Lua execution environment with a state
	// pool for efficient script reuse. Scripts see the graph state as a
	// table named state and return either a table (the state update) or a
	// scalar (the route key)
	LuaEnv struct {
		scripts   sync.Map
		statePool chan *lua.State
	}

	// CompiledLua represents a compiled Lua script
	CompiledLua struct {
		bytecode []byte
	}
)

const (
	luaStatePoolSize    = 10
	luaGlobalTableIndex = -2
	luaArrayTableIndex  = -3
	luaMapTableIndex    = -3
	luaStatePrelude     = "local state = select(1, ...)\n"
	luaGlobalTableName  = "_G"
)

var (
	ErrLuaLoad      = errors.New("lua load error")
	ErrLuaExecution = errors.New("lua execution error")
	ErrLuaBadUpdate = errors.New("lua script must return a table")
)

var luaExclude = [...]string{
	"io", "os", "debug", "package", "require", "dofile", "loadfile", "load",
}

// NewLuaEnv creates a new Lua script execution environment
func NewLuaEnv() *LuaEnv {
	return &LuaEnv{
		statePool: make(chan *lua.State, luaStatePoolSize),
	}
}

// Validate checks whether src compiles
func (e *LuaEnv) Validate(src string) error {
	_, err := e.compile(src)
	return err
}

// Compile compiles and caches a script by name and content hash
func (e *LuaEnv) Compile(name, src string) (Compiled, error) {
	key := cacheKey(name, src)
	if cached, ok := e.scripts.Load(key); ok {
		return cached.(*CompiledLua), nil
	}

	proc, err := e.compile(src)
	if err == nil {
		e.scripts.Store(key, proc)
	}
	return proc, err
}

// ExecuteScript runs a compiled script and converts its returned table to
// a state update
func (e *LuaEnv) ExecuteScript(
	c Compiled, state graph.Values,
) (graph.Values, error) {
	proc := c.(*CompiledLua)
	var result graph.Values
	err := e.withResult(proc, state, func(L *lua.State) error {
		if !L.IsTable(-1) {
			return fmt.Errorf("%w, got %s", ErrLuaBadUpdate,
				lua.TypeNameOf(L, -1))
		}
		result = luaTableToValues(L, -1)
		L.Pop(1)
		return nil
	})
	return result, err
}

// EvaluateRoute runs a compiled routing script and renders its result as a
// route key
func (e *LuaEnv) EvaluateRoute(
	c Compiled, state graph.Values,
) (string, error) {
	proc := c.(*CompiledLua)
	var key string
	err := e.withResult(proc, state, func(L *lua.State) error {
		key = fmt.Sprintf("%v", luaToGo(L, -1))
		L.Pop(1)
		return nil
	})
	return key, err
}

func (e *LuaEnv) compile(src string) (*CompiledLua, error) {
	L := lua.NewState()
	e.setupSandbox(L)

	if err := lua.LoadString(L, luaStatePrelude+src); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	var buf bytes.Buffer
	if err := L.Dump(&buf); err != nil {
		return nil, err
	}
	return &CompiledLua{bytecode: buf.Bytes()}, nil
}

func (e *LuaEnv) setupSandbox(L *lua.State) {
	lua.OpenLibraries(L)
	L.Global(luaGlobalTableName)
	for _, name := range luaExclude {
		L.PushNil()
		L.SetField(luaGlobalTableIndex, name)
	}
	L.Pop(1)
}

func (e *LuaEnv) withResult(
	proc *CompiledLua, state graph.Values, onResult func(*lua.State) error,
) error {
	L := e.getState()
	defer e.returnState(L)

	e.setupSandbox(L)
	if err := L.Load(bytes.NewReader(proc.bytecode), "chunk", "b"); err != nil {
		return fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	pushLuaMap(L, state)
	if err := L.ProtectedCall(1, 1, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrLuaExecution, err)
	}
	return onResult(L)
}

func (e *LuaEnv) getState() *lua.State {
	select {
	case L := <-e.statePool:
		return L
	default:
		return lua.NewState()
	}
}

func (e *LuaEnv) returnState(L *lua.State) {
	L.SetTop(0)

	select {
	case e.statePool <- L:
	default:
	}
}

func goToLua(L *lua.State, value any) {
	switch v := value.(type) {
	case string:
		L.PushString(v)
	case bool:
		L.PushBoolean(v)
	case int:
		L.PushInteger(v)
	case int64:
		L.PushInteger(int(v))
	case float64:
		L.PushNumber(v)
	case []any:
		pushLuaArray(L, v)
	case map[string]any:
		pushLuaMap(L, v)
	case graph.Values:
		pushLuaMap(L, v)
	case nil:
		L.PushNil()
	default:
		L.PushString(fmt.Sprintf("%v", v))
	}
}

func pushLuaArray(L *lua.State, arr []any) {
	L.CreateTable(len(arr), 0)
	for i, item := range arr {
		L.PushInteger(i + 1)
		goToLua(L, item)
		L.SetTable(luaArrayTableIndex)
	}
}

func pushLuaMap[M ~map[string]any](L *lua.State, m M) {
	L.CreateTable(0, len(m))
	for k, val := range m {
		L.PushString(k)
		goToLua(L, val)
		L.SetTable(luaMapTableIndex)
	}
}

func luaNumberToGo(L *lua.State, index int) any {
	num, _ := L.ToNumber(index)
	if num == float64(int(num)) {
		return int(num)
	}
	return num
}

func luaToGo(L *lua.State, index int) any {
	switch L.TypeOf(index) {
	case lua.TypeNil:
		return nil
	case lua.TypeBoolean:
		return L.ToBoolean(index)
	case lua.TypeNumber:
		return luaNumberToGo(L, index)
	case lua.TypeString:
		s, _ := L.ToString(index)
		return s
	case lua.TypeTable:
		return luaTableToAny(L, index)
	default:
		return nil
	}
}

func luaTableToValues(L *lua.State, index int) graph.Values {
	result := graph.Values{}

	L.PushNil()
	for L.Next(index - 1) {
		if L.IsString(-2) {
			key, _ := L.ToString(-2)
			result[key] = luaToGo(L, -1)
		}
		L.Pop(1)
	}

	return result
}

func luaTableToAny(L *lua.State, index int) any {
	isArray := true
	length := 0

	L.PushNil()
	for L.Next(index - 1) {
		if !L.IsNumber(-2) {
			isArray = false
			L.Pop(2)
			break
		}
		length++
		L.Pop(1)
	}

	if isArray && length > 0 {
		return convertLuaArray(L, index, length)
	}

	result := map[string]any{}
	L.PushNil()
	for L.Next(index - 1) {
		var key string
		if !L.IsString(-2) {
			key = fmt.Sprintf("%v", luaToGo(L, -2))
			result[key] = luaToGo(L, -1)
			L.Pop(1)
			continue
		}
		key, _ = L.ToString(-2)
		result[key] = luaToGo(L, -1)
		L.Pop(1)
	}

	return result
}

func convertLuaArray(L *lua.State, index, length int) []any {
	arr := make([]any, length)
	absIndex := index
	if index < 0 {
		absIndex = L.Top() + index + 1
	}
	for i := 1; i <= length; i++ {
		L.RawGetInt(absIndex, i)
		arr[i-1] = luaToGo(L, -1)
		L.Pop(1)
	}
	return arr
}
