package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// DefaultRecursionLimit bounds the number of steps a single invocation may
// take before it is treated as an unbounded loop
const DefaultRecursionLimit = 100

// MetaInterruptValue is the checkpoint metadata key holding the value an
// interrupting node surfaced
const MetaInterruptValue = "interrupt_value"

type (
	// CompiledGraph is the validated, immutable, executable form of a
	// StateGraph. Exactly one node executes at a time; the engine never
	// fans out branches within an invocation. Invocations with distinct
	// thread ids are independent; two concurrent invocations sharing a
	// thread id are a caller error
	CompiledGraph[S State[S]] struct {
		nodes        map[string]Node[S]
		edges        map[string]string
		conditional  map[string]*conditionalEdge[S]
		before       map[string]struct{}
		after        map[string]struct{}
		checkpointer Checkpointer
		entry        string
		limit        int
	}

	// StateSnapshot is one entry of a thread's checkpoint history. An empty
	// NextNode means the run had completed at that point
	StateSnapshot[S State[S]] struct {
		State        S
		NextNode     string
		CheckpointID string
		CreatedAt    time.Time
	}

	// stepFunc observes each committed step of the loop. Returning an
	// error halts the run
	stepFunc[S State[S]] func(node string, before, after S) error
)

// WithCheckpointer attaches a checkpointer. Every subsequent step of a
// config-carrying invocation is persisted through it
func (g *CompiledGraph[S]) WithCheckpointer(cp Checkpointer) *CompiledGraph[S] {
	g.checkpointer = cp
	return g
}

// WithRecursionLimit overrides the default step limit
func (g *CompiledGraph[S]) WithRecursionLimit(limit int) *CompiledGraph[S] {
	g.limit = limit
	return g
}

// EntryPoint returns the node execution starts from
func (g *CompiledGraph[S]) EntryPoint() string {
	return g.entry
}

// NodeNames returns the graph's node names in sorted order
func (g *CompiledGraph[S]) NodeNames() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Invoke executes the graph from its entry point without checkpointing and
// returns the terminal result
func (g *CompiledGraph[S]) Invoke(
	ctx context.Context, state S,
) (*GraphResult[S], error) {
	return g.run(ctx, state, nil, nil)
}

// InvokeWithConfig executes with checkpoint awareness. When the thread
// already has a checkpoint, its persisted state and next node take over
// and the caller-supplied state is ignored; otherwise this behaves like a
// fresh Invoke recorded under the thread id
func (g *CompiledGraph[S]) InvokeWithConfig(
	ctx context.Context, state S, cfg CheckpointConfig,
) (*GraphResult[S], error) {
	return g.run(ctx, state, &cfg, nil)
}

// GetState returns the latest persisted state for a thread. The second
// return is false when the thread has no checkpoints
func (g *CompiledGraph[S]) GetState(
	ctx context.Context, cfg CheckpointConfig,
) (S, bool, error) {
	var zero S
	if g.checkpointer == nil {
		return zero, false, ErrNoCheckpointer
	}
	cp, err := g.checkpointer.Get(ctx, cfg)
	if err != nil {
		return zero, false, err
	}
	if cp == nil {
		return zero, false, nil
	}
	state, err := unmarshalState[S](cp.State)
	if err != nil {
		return zero, false, err
	}
	return state, true, nil
}

// GetStateHistory returns the thread's full checkpoint history, oldest
// first
func (g *CompiledGraph[S]) GetStateHistory(
	ctx context.Context, cfg CheckpointConfig,
) ([]*StateSnapshot[S], error) {
	if g.checkpointer == nil {
		return nil, ErrNoCheckpointer
	}
	cps, err := g.checkpointer.List(ctx, cfg)
	if err != nil {
		return nil, err
	}

	history := make([]*StateSnapshot[S], 0, len(cps))
	for _, cp := range cps {
		state, err := unmarshalState[S](cp.State)
		if err != nil {
			return nil, err
		}
		history = append(history, &StateSnapshot[S]{
			State:        state,
			NextNode:     cp.NextNode,
			CheckpointID: cp.ID,
			CreatedAt:    cp.CreatedAt,
		})
	}
	return history, nil
}

// UpdateState merges an external update into the thread's latest
// checkpoint without executing any node. This is the human-in-the-loop
// hook for amending state while a thread is parked at an interrupt
func (g *CompiledGraph[S]) UpdateState(
	ctx context.Context, cfg CheckpointConfig, update S,
) error {
	if g.checkpointer == nil {
		return ErrNoCheckpointer
	}
	cp, err := g.checkpointer.Get(ctx, cfg)
	if err != nil {
		return err
	}
	if cp == nil {
		return fmt.Errorf("%w: %q", ErrNoCheckpoint, cfg.ThreadID)
	}

	state, err := unmarshalState[S](cp.State)
	if err != nil {
		return err
	}
	merged := state.Merge(update)

	raw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("serialize state: %w", err)
	}
	next := NewCheckpoint(raw, cp.NextNode)
	next.ParentID = cp.ID
	next.Metadata = cp.Metadata
	return g.checkpointer.Put(ctx, cfg, next)
}

// run drives the step loop: execute the current node, merge its update,
// resolve the outgoing edge, commit a checkpoint, advance. A step whose
// checkpoint fails to persist is never advanced past
func (g *CompiledGraph[S]) run(
	ctx context.Context, state S, cfg *CheckpointConfig, onStep stepFunc[S],
) (*GraphResult[S], error) {
	current := g.entry
	parent := ""
	resumedInto := ""

	if cfg != nil && g.checkpointer != nil {
		cp, err := g.checkpointer.Get(ctx, *cfg)
		if err != nil {
			return nil, err
		}
		if cp != nil {
			restored, err := unmarshalState[S](cp.State)
			if err != nil {
				return nil, err
			}
			state = restored
			parent = cp.ID
			if cp.NextNode == "" {
				return complete(state), nil
			}
			current = cp.NextNode
			resumedInto = current
		}
	}

	for steps := 0; current != End; steps++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if steps >= g.limit {
			return nil, fmt.Errorf(
				"%w: %d steps", ErrRecursionLimitExceeded, g.limit,
			)
		}

		// A resumed thread enters its parked node once without tripping
		// the node's before-interrupt again
		if _, ok := g.before[current]; ok && current != resumedInto {
			value := fmt.Sprintf("interrupted before node %q", current)
			_, err := g.saveCheckpoint(
				ctx, cfg, state, current, parent, value,
			)
			if err != nil {
				return nil, err
			}
			return interrupted(state, value), nil
		}
		resumedInto = ""

		node, ok := g.nodes[current]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, current)
		}

		out, err := node.Execute(ctx, state)
		if err != nil {
			return nil, err
		}

		if out.Interrupted {
			state = state.Merge(out.State)
			_, err := g.saveCheckpoint(
				ctx, cfg, state, current, parent, out.InterruptValue,
			)
			if err != nil {
				return nil, err
			}
			return interrupted(state, out.InterruptValue), nil
		}

		before := state
		state = state.Merge(out.State)

		next, err := g.resolveNext(current, out, state)
		if err != nil {
			return nil, err
		}

		committed := next
		if next == End {
			committed = ""
		}

		if _, ok := g.after[current]; ok {
			value := fmt.Sprintf("interrupted after node %q", current)
			_, err := g.saveCheckpoint(
				ctx, cfg, state, committed, parent, value,
			)
			if err != nil {
				return nil, err
			}
			return interrupted(state, value), nil
		}

		parent, err = g.saveCheckpoint(
			ctx, cfg, state, committed, parent, nil,
		)
		if err != nil {
			return nil, err
		}

		if onStep != nil {
			if err := onStep(current, before, state); err != nil {
				return nil, err
			}
		}

		current = next
	}

	return complete(state), nil
}

// resolveNext applies a node's routing override when present, falling back
// to edge resolution
func (g *CompiledGraph[S]) resolveNext(
	current string, out *Outcome[S], state S,
) (string, error) {
	if out.Goto == "" {
		return g.nextNode(current, state)
	}
	if out.Goto != End {
		if _, ok := g.nodes[out.Goto]; !ok {
			return "", fmt.Errorf(
				"%w: %q from %q", ErrRouteNotMapped, out.Goto, current,
			)
		}
	}
	return out.Goto, nil
}

// nextNode resolves the outgoing edge of current against the merged state.
// Conditional edges take precedence over fixed edges; a node with no
// outgoing edge routes to End
func (g *CompiledGraph[S]) nextNode(current string, state S) (string, error) {
	if edge, ok := g.conditional[current]; ok {
		target, key, ok := edge.resolve(state)
		if !ok {
			return "", fmt.Errorf(
				"%w: %q from %q", ErrRouteNotMapped, key, current,
			)
		}
		if target != End {
			if _, ok := g.nodes[target]; !ok {
				return "", fmt.Errorf(
					"%w: %q from %q", ErrRouteNotMapped, target, current,
				)
			}
		}
		return target, nil
	}

	if target, ok := g.edges[current]; ok {
		return target, nil
	}
	return End, nil
}

// saveCheckpoint commits one step. It is a no-op without both a config and
// a checkpointer, so plain Invoke runs stay ephemeral
func (g *CompiledGraph[S]) saveCheckpoint(
	ctx context.Context, cfg *CheckpointConfig, state S,
	nextNode, parent string, interruptValue any,
) (string, error) {
	if cfg == nil || g.checkpointer == nil {
		return parent, nil
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return parent, fmt.Errorf("serialize state: %w", err)
	}

	cp := NewCheckpoint(raw, nextNode)
	cp.ParentID = parent
	if interruptValue != nil {
		cp.Metadata = map[string]any{MetaInterruptValue: interruptValue}
	}
	if err := g.checkpointer.Put(ctx, *cfg, cp); err != nil {
		return parent, err
	}
	return cp.ID, nil
}

func unmarshalState[S State[S]](raw json.RawMessage) (S, error) {
	var state S
	if err := json.Unmarshal(raw, &state); err != nil {
		var zero S
		return zero, fmt.Errorf("deserialize state: %w", err)
	}
	return state, nil
}
