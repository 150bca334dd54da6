package graph

import "errors"

var (
	// compile-time validation
	ErrNoEntryPoint       = errors.New("no entry point set")
	ErrEntryNotFound      = errors.New("entry point node not found")
	ErrDuplicateNode      = errors.New("duplicate node name")
	ErrEdgeSourceNotFound = errors.New("edge source node not found")
	ErrEdgeTargetNotFound = errors.New("edge target node not found")
	ErrPathTargetNotFound = errors.New("path map target node not found")
	ErrInterruptNodeNotFound = errors.New(
		"interrupt point names an unknown node",
	)

	// execution
	ErrNodeNotFound           = errors.New("node not found")
	ErrRouteNotMapped         = errors.New("routing key not mapped to a node")
	ErrRecursionLimitExceeded = errors.New("recursion limit exceeded")

	// checkpointing
	ErrNoCheckpointer = errors.New("no checkpointer configured")
	ErrNoCheckpoint   = errors.New("no checkpoint found for thread")
)
