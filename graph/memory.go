package graph

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemorySaver is an in-process Checkpointer for tests and single-process
// use. Checkpoints are kept per thread in insertion order
type MemorySaver struct {
	threads map[string][]*Checkpoint
	mu      sync.RWMutex
}

// NewMemorySaver creates an empty in-memory checkpointer
func NewMemorySaver() *MemorySaver {
	return &MemorySaver{
		threads: map[string][]*Checkpoint{},
	}
}

// Put appends a checkpoint to the thread's history
func (m *MemorySaver) Put(
	_ context.Context, cfg CheckpointConfig, cp *Checkpoint,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[cfg.ThreadID] = append(m.threads[cfg.ThreadID], cp)
	return nil
}

// Get returns the latest checkpoint for the thread, or the one named by
// cfg.CheckpointID. Returns nil when the thread has no history
func (m *MemorySaver) Get(
	_ context.Context, cfg CheckpointConfig,
) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cps := m.threads[cfg.ThreadID]
	if len(cps) == 0 {
		return nil, nil
	}

	if cfg.CheckpointID != "" {
		for _, cp := range cps {
			if cp.ID == cfg.CheckpointID {
				return cp, nil
			}
		}
		return nil, nil
	}

	return cps[len(cps)-1], nil
}

// List returns the thread's checkpoints ordered oldest to newest
func (m *MemorySaver) List(
	_ context.Context, cfg CheckpointConfig,
) ([]*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cps := slices.Clone(m.threads[cfg.ThreadID])
	slices.SortFunc(cps, func(a, b *Checkpoint) int {
		return strings.Compare(a.ID, b.ID)
	})
	return cps, nil
}
