// Package graph implements a node-and-edge workflow engine with persisted
// checkpoints, conditional routing, voluntary interruption for external
// approval, and progressive event streaming
//
// A graph is assembled with StateGraph, validated by Compile, and executed
// by CompiledGraph one node at a time. Attaching a Checkpointer makes every
// step durable and lets a thread resume across process restarts.
package graph
