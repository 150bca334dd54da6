package checkpoint

import (
	"context"
	"slices"

	"github.com/kode4food/timebox"

	"github.com/dnw3/synapse/graph"
	"github.com/dnw3/synapse/internal/util"
)

type (
	// Journal is a graph.Checkpointer that records every checkpoint as an
	// event in a timebox aggregate, one aggregate per thread. Reads fold
	// the thread's event journal, so history survives process restarts and
	// benefits from timebox snapshots and caching
	Journal struct {
		exec *Executor
	}

	// ThreadLog is the aggregate state folded from a thread's events
	ThreadLog struct {
		Checkpoints []*graph.Checkpoint `json:"checkpoints"`
	}

	// Executor manages thread journal persistence and event sourcing
	Executor = timebox.Executor[*ThreadLog]

	// Aggregator aggregates thread journals from events
	Aggregator = timebox.Aggregator[*ThreadLog]

	// CheckpointRecorded is the event raised for every persisted
	// checkpoint
	CheckpointRecorded struct {
		Checkpoint *graph.Checkpoint `json:"checkpoint"`
	}
)

const (
	threadPrefix = "thread"

	// EventTypeCheckpointRecorded marks one appended checkpoint
	EventTypeCheckpointRecorded = timebox.EventType("checkpoint.recorded")
)

// ThreadAppliers contains the event applier functions for thread journals
var ThreadAppliers = timebox.Appliers[*ThreadLog]{
	EventTypeCheckpointRecorded: timebox.MakeApplier(checkpointRecorded),
}

var _ graph.Checkpointer = (*Journal)(nil)

// NewThreadLog creates an empty thread journal state
func NewThreadLog() *ThreadLog {
	return &ThreadLog{}
}

// NewJournal creates a journal checkpointer over a timebox store
func NewJournal(store *timebox.Store) *Journal {
	return &Journal{
		exec: timebox.NewExecutor(store, NewThreadLog, ThreadAppliers),
	}
}

// Put raises a checkpoint.recorded event on the thread's aggregate
func (j *Journal) Put(
	ctx context.Context, cfg graph.CheckpointConfig, cp *graph.Checkpoint,
) error {
	_, err := j.exec.Exec(ctx, threadKey(cfg.ThreadID),
		func(st *ThreadLog, ag *Aggregator) error {
			return util.Raise(ag, EventTypeCheckpointRecorded,
				CheckpointRecorded{Checkpoint: cp})
		},
	)
	return err
}

// Get folds the journal and returns the latest checkpoint, or the one
// named by cfg.CheckpointID, or nil when the thread has none
func (j *Journal) Get(
	ctx context.Context, cfg graph.CheckpointConfig,
) (*graph.Checkpoint, error) {
	log, err := j.threadLog(ctx, cfg)
	if err != nil || len(log.Checkpoints) == 0 {
		return nil, err
	}

	if cfg.CheckpointID != "" {
		for _, cp := range log.Checkpoints {
			if cp.ID == cfg.CheckpointID {
				return cp, nil
			}
		}
		return nil, nil
	}
	return log.Checkpoints[len(log.Checkpoints)-1], nil
}

// List returns the thread's checkpoints in the order they were recorded
func (j *Journal) List(
	ctx context.Context, cfg graph.CheckpointConfig,
) ([]*graph.Checkpoint, error) {
	log, err := j.threadLog(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return slices.Clone(log.Checkpoints), nil
}

func (j *Journal) threadLog(
	ctx context.Context, cfg graph.CheckpointConfig,
) (*ThreadLog, error) {
	return j.exec.Exec(ctx, threadKey(cfg.ThreadID),
		func(st *ThreadLog, ag *Aggregator) error {
			return nil
		},
	)
}

func checkpointRecorded(
	st *ThreadLog, _ *timebox.Event, data CheckpointRecorded,
) *ThreadLog {
	return &ThreadLog{
		Checkpoints: append(
			slices.Clone(st.Checkpoints), data.Checkpoint,
		),
	}
}

func threadKey(threadID string) timebox.AggregateID {
	return timebox.NewAggregateID(threadPrefix, timebox.ID(threadID))
}
