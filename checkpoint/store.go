package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/dnw3/synapse/graph"
	"github.com/dnw3/synapse/store"
)

// StoreCheckpointer persists checkpoints through any store.Store under the
// namespace ["checkpoints", threadID], keyed by checkpoint id. Because ids
// sort chronologically, Get is the maximum key and List needs no secondary
// index
type StoreCheckpointer struct {
	store store.Store
}

const checkpointNamespace = "checkpoints"

var _ graph.Checkpointer = (*StoreCheckpointer)(nil)

// NewStoreCheckpointer creates a checkpointer over the given store. The
// store handle is shared and must be safe for concurrent use
func NewStoreCheckpointer(s store.Store) *StoreCheckpointer {
	return &StoreCheckpointer{store: s}
}

// Put appends a checkpoint for the thread
func (c *StoreCheckpointer) Put(
	ctx context.Context, cfg graph.CheckpointConfig, cp *graph.Checkpoint,
) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("serialize checkpoint: %w", err)
	}
	return c.store.Put(ctx, threadNamespace(cfg), cp.ID, data)
}

// Get returns the thread's latest checkpoint, or the one named by
// cfg.CheckpointID, or nil when the thread has no history
func (c *StoreCheckpointer) Get(
	ctx context.Context, cfg graph.CheckpointConfig,
) (*graph.Checkpoint, error) {
	if cfg.CheckpointID != "" {
		item, err := c.store.Get(
			ctx, threadNamespace(cfg), cfg.CheckpointID,
		)
		if err != nil || item == nil {
			return nil, err
		}
		return decodeCheckpoint(item.Value)
	}

	items, err := c.store.List(ctx, threadNamespace(cfg))
	if err != nil || len(items) == 0 {
		return nil, err
	}
	latest := slices.MaxFunc(items, func(a, b *store.Item) int {
		return strings.Compare(a.Key, b.Key)
	})
	return decodeCheckpoint(latest.Value)
}

// List returns all of the thread's checkpoints, oldest to newest
func (c *StoreCheckpointer) List(
	ctx context.Context, cfg graph.CheckpointConfig,
) ([]*graph.Checkpoint, error) {
	items, err := c.store.List(ctx, threadNamespace(cfg))
	if err != nil {
		return nil, err
	}

	cps := make([]*graph.Checkpoint, 0, len(items))
	for _, item := range items {
		cp, err := decodeCheckpoint(item.Value)
		if err != nil {
			return nil, err
		}
		cps = append(cps, cp)
	}
	slices.SortFunc(cps, func(a, b *graph.Checkpoint) int {
		return strings.Compare(a.ID, b.ID)
	})
	return cps, nil
}

func threadNamespace(cfg graph.CheckpointConfig) []string {
	return []string{checkpointNamespace, cfg.ThreadID}
}

func decodeCheckpoint(data json.RawMessage) (*graph.Checkpoint, error) {
	var cp graph.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("deserialize checkpoint: %w", err)
	}
	return &cp, nil
}
