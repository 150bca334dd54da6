// Package checkpoint provides graph.Checkpointer implementations: one over
// any namespaced store backend, and one journaling checkpoints through a
// timebox event store
package checkpoint
