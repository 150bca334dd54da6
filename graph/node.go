package graph

import "context"

type (
	// Node is a named unit of work in the graph. Execute receives the
	// current state and returns an Outcome: either a normal continuation
	// or a voluntary interrupt. Node bodies own their own latency bounds;
	// the engine awaits them but never preempts
	Node[S State[S]] interface {
		Execute(ctx context.Context, state S) (*Outcome[S], error)
	}

	// NodeFunc adapts a plain function to the Node interface
	NodeFunc[S State[S]] func(ctx context.Context, state S) (*Outcome[S], error)

	// Outcome is the tagged result of a node execution. Interrupted marks a
	// voluntary pause rather than an error: the engine checkpoints the
	// thread so a later invocation re-enters the same node. A non-empty
	// Goto overrides edge resolution for this step
	Outcome[S State[S]] struct {
		State          S
		Goto           string
		InterruptValue any
		Interrupted    bool
	}
)

// Execute calls the wrapped function
func (f NodeFunc[S]) Execute(ctx context.Context, state S) (*Outcome[S], error) {
	return f(ctx, state)
}

// Continue produces a normal outcome whose state update is merged before
// the engine routes to the next node
func Continue[S State[S]](state S) *Outcome[S] {
	return &Outcome[S]{State: state}
}

// Goto produces an outcome that merges the update and then routes directly
// to target, bypassing the node's edges. Target may be End
func Goto[S State[S]](state S, target string) *Outcome[S] {
	return &Outcome[S]{State: state, Goto: target}
}

// Interrupt produces a pause outcome. The update is merged, the thread is
// checkpointed at the current node, and value travels back to the caller
// for inspection
func Interrupt[S State[S]](state S, value any) *Outcome[S] {
	return &Outcome[S]{State: state, InterruptValue: value, Interrupted: true}
}
