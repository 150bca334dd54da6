package graph

// GraphResult is the terminal shape of one invocation: either Complete or
// Interrupted. Interrupted is not an error; it means the thread is parked
// at a checkpoint awaiting external input and a later invocation with the
// same thread id continues from there
type GraphResult[S State[S]] struct {
	state          S
	interruptValue any
	interrupted    bool
}

func complete[S State[S]](state S) *GraphResult[S] {
	return &GraphResult[S]{state: state}
}

func interrupted[S State[S]](state S, value any) *GraphResult[S] {
	return &GraphResult[S]{
		state:          state,
		interruptValue: value,
		interrupted:    true,
	}
}

// State returns the final state regardless of variant
func (r *GraphResult[S]) State() S {
	return r.state
}

// IsComplete reports whether the run reached End
func (r *GraphResult[S]) IsComplete() bool {
	return !r.interrupted
}

// IsInterrupted reports whether the run paused at an interrupting node
func (r *GraphResult[S]) IsInterrupted() bool {
	return r.interrupted
}

// InterruptValue returns the value the interrupting node surfaced, or nil
// for a completed run
func (r *GraphResult[S]) InterruptValue() any {
	return r.interruptValue
}
