package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

type (
	// CheckpointConfig identifies a logical thread lineage. Distinct thread
	// ids are fully isolated. CheckpointID optionally pins reads to one
	// historical checkpoint instead of the latest
	CheckpointConfig struct {
		ThreadID     string `json:"thread_id"`
		CheckpointID string `json:"checkpoint_id,omitempty"`
	}

	// Checkpoint is an append-only snapshot of state plus the node to
	// execute next. An empty NextNode means the run completed. IDs are
	// monotonically increasing and string-sortable, so lexicographic
	// order is chronological order
	Checkpoint struct {
		ID        string         `json:"id"`
		State     json.RawMessage `json:"state"`
		NextNode  string         `json:"next_node,omitempty"`
		ParentID  string         `json:"parent_id,omitempty"`
		Metadata  map[string]any `json:"metadata,omitempty"`
		CreatedAt time.Time      `json:"created_at"`
	}

	// Checkpointer persists ordered checkpoints keyed by thread id. Put
	// appends, Get returns the latest (or the one named by CheckpointID),
	// List returns all in oldest-to-newest order. Implementations must
	// tolerate concurrent use from unrelated threads
	Checkpointer interface {
		Put(ctx context.Context, cfg CheckpointConfig, cp *Checkpoint) error
		Get(ctx context.Context, cfg CheckpointConfig) (*Checkpoint, error)
		List(ctx context.Context, cfg CheckpointConfig) ([]*Checkpoint, error)
	}
)

// NewCheckpointConfig creates a config targeting the latest checkpoint of
// the given thread
func NewCheckpointConfig(threadID string) CheckpointConfig {
	return CheckpointConfig{ThreadID: threadID}
}

// NewCheckpoint creates a checkpoint with a freshly generated id
func NewCheckpoint(state json.RawMessage, nextNode string) *Checkpoint {
	return &Checkpoint{
		ID:        NextCheckpointID(),
		State:     state,
		NextNode:  nextNode,
		CreatedAt: time.Now().UTC(),
	}
}

var checkpointSeq atomic.Uint64

// NextCheckpointID generates a monotone, string-sortable checkpoint id from
// the current time plus a process-local sequence tiebreaker
func NextCheckpointID() string {
	ts := time.Now().UTC().UnixNano()
	seq := checkpointSeq.Add(1)
	return fmt.Sprintf("%016x-%08x", ts, seq)
}
