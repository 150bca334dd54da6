package graph

const (
	// Start is the sentinel name for the graph entry side
	Start = "__start__"

	// End is the terminal sentinel. Routing to End completes the run
	End = "__end__"
)

type (
	// Router inspects state after a node ran and returns a route key.
	// With a path map attached the key is translated to a node name;
	// without one the key is the target itself
	Router[S State[S]] func(state S) string

	// conditionalEdge pairs a routing function with its optional path map
	conditionalEdge[S State[S]] struct {
		route   Router[S]
		pathMap map[string]string
	}
)

// resolve runs the routing function and maps its key to a target. The
// returned key is reported in routing errors when the mapping misses
func (e *conditionalEdge[S]) resolve(state S) (target, key string, ok bool) {
	key = e.route(state)
	if e.pathMap == nil {
		return key, key, true
	}
	target, ok = e.pathMap[key]
	return target, key, ok
}
