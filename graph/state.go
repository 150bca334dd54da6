package graph

import "maps"

type (
	// State is the constraint every graph state type satisfies. Merge folds
	// an incoming update into the receiver and returns the combined state.
	// The engine applies it sequentially after every node execution, never
	// concurrently within one thread lineage, so implementations only need
	// to be associative, not thread-safe. State values must round-trip
	// through encoding/json for checkpointing
	State[S any] interface {
		Merge(other S) S
	}

	// Values is a ready-made map state. Merge overlays the incoming keys on
	// a copy of the receiver, so later steps overwrite earlier ones key by
	// key
	Values map[string]any
)

// Merge returns a copy of v with the keys of other overlaid
func (v Values) Merge(other Values) Values {
	merged := make(Values, len(v)+len(other))
	maps.Copy(merged, v)
	maps.Copy(merged, other)
	return merged
}
