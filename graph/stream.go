package graph

import (
	"context"
	"errors"
	"iter"
)

type (
	// StreamMode selects what each streamed event carries
	StreamMode string

	// GraphEvent is emitted once per completed step during streaming
	GraphEvent[S State[S]] struct {
		Node  string `json:"node"`
		State S      `json:"state"`
	}
)

const (
	// StreamValues emits the full merged state after each step
	StreamValues StreamMode = "values"

	// StreamUpdates emits the state as it stood entering the step, so
	// consumers can diff consecutive events to see what each node changed
	StreamUpdates StreamMode = "updates"
)

// errStopStream halts the loop when a stream consumer stops early
var errStopStream = errors.New("stream consumer stopped")

// Stream executes the graph lazily, yielding one event per completed step.
// The sequence is finite and single-pass; to replay, invoke again. Any node
// or routing error surfaces as a single error item and ends the sequence
func (g *CompiledGraph[S]) Stream(
	ctx context.Context, state S, mode StreamMode,
) iter.Seq2[*GraphEvent[S], error] {
	return g.stream(ctx, state, mode, nil)
}

// StreamWithConfig streams with checkpoint awareness: an existing thread
// resumes from its latest checkpoint instead of restarting, and every step
// is persisted before its event is yielded
func (g *CompiledGraph[S]) StreamWithConfig(
	ctx context.Context, state S, mode StreamMode, cfg CheckpointConfig,
) iter.Seq2[*GraphEvent[S], error] {
	return g.stream(ctx, state, mode, &cfg)
}

func (g *CompiledGraph[S]) stream(
	ctx context.Context, state S, mode StreamMode, cfg *CheckpointConfig,
) iter.Seq2[*GraphEvent[S], error] {
	return func(yield func(*GraphEvent[S], error) bool) {
		_, err := g.run(ctx, state, cfg,
			func(node string, before, after S) error {
				emitted := after
				if mode == StreamUpdates {
					emitted = before
				}
				ev := &GraphEvent[S]{Node: node, State: emitted}
				if !yield(ev, nil) {
					return errStopStream
				}
				return nil
			},
		)
		if err != nil && !errors.Is(err, errStopStream) {
			yield(nil, err)
		}
	}
}
