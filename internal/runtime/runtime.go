// Package runtime hosts compiled graphs, executes threads against a shared
// checkpointer, and publishes per-step events to subscribers
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/dnw3/synapse/graph"
	"github.com/dnw3/synapse/pkg/log"
)

type (
	// Runtime hosts a set of named graphs sharing one checkpointer. Each
	// thread runs at most one invocation at a time; overlapping calls are
	// rejected with ErrThreadBusy
	Runtime struct {
		saver  graph.Checkpointer
		hub    topic.Topic[*ThreadEvent]
		prod   topic.Producer[*ThreadEvent]
		limit  int
		mu     sync.RWMutex
		graphs map[string]*graph.CompiledGraph[graph.Values]
		busy   sync.Map // map[threadID]struct{}
	}

	// EventType classifies a thread event
	EventType string

	// ThreadEvent is published to the event hub as a thread progresses
	ThreadEvent struct {
		ID             string       `json:"id"`
		Type           EventType    `json:"type"`
		GraphID        string       `json:"graph_id"`
		ThreadID       string       `json:"thread_id"`
		Node           string       `json:"node,omitempty"`
		State          graph.Values `json:"state,omitempty"`
		InterruptValue any          `json:"interrupt_value,omitempty"`
		Error          string       `json:"error,omitempty"`
		Timestamp      time.Time    `json:"timestamp"`
	}

	// Result is the terminal outcome of an invocation. An interrupted
	// thread can be resumed later under the same thread id
	Result struct {
		GraphID        string       `json:"graph_id"`
		ThreadID       string       `json:"thread_id"`
		Status         string       `json:"status"`
		State          graph.Values `json:"state"`
		InterruptValue any          `json:"interrupt_value,omitempty"`
		NextNode       string       `json:"next_node,omitempty"`
	}
)

const (
	EventStep        EventType = "step"
	EventCompleted   EventType = "completed"
	EventInterrupted EventType = "interrupted"
	EventFailed      EventType = "failed"

	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
)

var (
	ErrGraphNotFound      = errors.New("graph not found")
	ErrGraphAlreadyExists = errors.New("graph already exists")
	ErrThreadBusy         = errors.New("thread is already running")
	ErrNoResult           = errors.New("no checkpoint recorded for thread")
)

// NewRuntime creates a runtime whose graphs persist through the provided
// checkpointer and whose invocations are bounded by limit steps
func NewRuntime(saver graph.Checkpointer, limit int) *Runtime {
	hub := caravan.NewTopic[*ThreadEvent]()
	return &Runtime{
		saver:  saver,
		hub:    hub,
		prod:   hub.NewProducer(),
		limit:  limit,
		graphs: map[string]*graph.CompiledGraph[graph.Values]{},
	}
}

// Register adds a compiled graph under the given id, wiring it to the
// runtime's checkpointer and recursion limit
func (r *Runtime) Register(
	id string, g *graph.CompiledGraph[graph.Values],
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.graphs[id]; ok {
		return fmt.Errorf("%w: %s", ErrGraphAlreadyExists, id)
	}
	r.graphs[id] = g.WithCheckpointer(r.saver).WithRecursionLimit(r.limit)
	return nil
}

// Graph returns the compiled graph registered under id
func (r *Runtime) Graph(
	id string,
) (*graph.CompiledGraph[graph.Values], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.graphs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, id)
	}
	return g, nil
}

// GraphIDs returns the registered graph ids in sorted order
func (r *Runtime) GraphIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.graphs))
	for id := range r.graphs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// NewConsumer subscribes to the runtime's thread event hub. The caller
// owns the consumer and must close it
func (r *Runtime) NewConsumer() topic.Consumer[*ThreadEvent] {
	return r.hub.NewConsumer()
}

// Invoke runs a thread of the named graph to completion or interruption,
// publishing one step event per committed step. A thread with existing
// checkpoints resumes from its latest one; input is then ignored
func (r *Runtime) Invoke(
	ctx context.Context, graphID, threadID string, input graph.Values,
) (*Result, error) {
	g, err := r.Graph(graphID)
	if err != nil {
		return nil, err
	}
	release, err := r.acquire(threadID)
	if err != nil {
		return nil, err
	}
	defer release()
	return r.invoke(ctx, g, graphID, threadID, input)
}

// Resume merges an optional state update into an interrupted thread's
// latest checkpoint and runs it forward from where it stopped. The busy
// slot is held across both, so a thread mid-invocation rejects the whole
// resume before its lineage is touched
func (r *Runtime) Resume(
	ctx context.Context, graphID, threadID string, update graph.Values,
) (*Result, error) {
	g, err := r.Graph(graphID)
	if err != nil {
		return nil, err
	}
	release, err := r.acquire(threadID)
	if err != nil {
		return nil, err
	}
	defer release()

	if len(update) > 0 {
		cfg := graph.NewCheckpointConfig(threadID)
		if err := g.UpdateState(ctx, cfg, update); err != nil {
			return nil, err
		}
	}
	return r.invoke(ctx, g, graphID, threadID, nil)
}

// invoke drives one held invocation; the caller owns the busy slot
func (r *Runtime) invoke(
	ctx context.Context, g *graph.CompiledGraph[graph.Values],
	graphID, threadID string, input graph.Values,
) (*Result, error) {
	cfg := graph.NewCheckpointConfig(threadID)
	for ev, err := range g.StreamWithConfig(
		ctx, input, graph.StreamValues, cfg,
	) {
		if err != nil {
			r.publishFailure(graphID, threadID, err)
			return nil, err
		}
		r.publish(&ThreadEvent{
			Type:     EventStep,
			GraphID:  graphID,
			ThreadID: threadID,
			Node:     ev.Node,
			State:    ev.State,
		})
	}
	return r.finalResult(ctx, g, graphID, threadID)
}

// GetState returns the latest persisted state of a thread. The second
// return is false when the thread has never checkpointed
func (r *Runtime) GetState(
	ctx context.Context, graphID, threadID string,
) (graph.Values, bool, error) {
	g, err := r.Graph(graphID)
	if err != nil {
		return nil, false, err
	}
	return g.GetState(ctx, graph.NewCheckpointConfig(threadID))
}

// GetStateHistory returns a thread's checkpoint history, oldest first
func (r *Runtime) GetStateHistory(
	ctx context.Context, graphID, threadID string,
) ([]*graph.StateSnapshot[graph.Values], error) {
	g, err := r.Graph(graphID)
	if err != nil {
		return nil, err
	}
	return g.GetStateHistory(ctx, graph.NewCheckpointConfig(threadID))
}

// UpdateState merges an update into a thread's latest checkpoint without
// executing any node. Rejected while the thread is running
func (r *Runtime) UpdateState(
	ctx context.Context, graphID, threadID string, update graph.Values,
) error {
	g, err := r.Graph(graphID)
	if err != nil {
		return err
	}
	release, err := r.acquire(threadID)
	if err != nil {
		return err
	}
	defer release()
	return g.UpdateState(ctx, graph.NewCheckpointConfig(threadID), update)
}

// Close shuts down the event hub producer. In-flight invocations may no
// longer publish afterward
func (r *Runtime) Close() {
	r.prod.Close()
}

func (r *Runtime) acquire(threadID string) (func(), error) {
	if _, loaded := r.busy.LoadOrStore(threadID, struct{}{}); loaded {
		return nil, fmt.Errorf("%w: %s", ErrThreadBusy, threadID)
	}
	return func() { r.busy.Delete(threadID) }, nil
}

// finalResult reads the thread's latest checkpoint to determine whether
// the run finished or parked at an interrupt
func (r *Runtime) finalResult(
	ctx context.Context, g *graph.CompiledGraph[graph.Values],
	graphID, threadID string,
) (*Result, error) {
	cfg := graph.NewCheckpointConfig(threadID)
	cp, err := r.saver.Get(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoResult, threadID)
	}

	state, _, err := g.GetState(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res := &Result{
		GraphID:  graphID,
		ThreadID: threadID,
		State:    state,
	}
	if cp.NextNode == "" {
		res.Status = StatusCompleted
		r.publish(&ThreadEvent{
			Type:     EventCompleted,
			GraphID:  graphID,
			ThreadID: threadID,
			State:    state,
		})
		return res, nil
	}

	res.Status = StatusInterrupted
	res.NextNode = cp.NextNode
	if cp.Metadata != nil {
		res.InterruptValue = cp.Metadata[graph.MetaInterruptValue]
	}
	r.publish(&ThreadEvent{
		Type:           EventInterrupted,
		GraphID:        graphID,
		ThreadID:       threadID,
		Node:           cp.NextNode,
		State:          state,
		InterruptValue: res.InterruptValue,
	})
	return res, nil
}

func (r *Runtime) publish(ev *ThreadEvent) {
	ev.ID = uuid.NewString()
	ev.Timestamp = time.Now().UTC()
	r.prod.Send() <- ev
}

func (r *Runtime) publishFailure(graphID, threadID string, err error) {
	slog.Error("Thread failed",
		log.GraphID(graphID),
		log.ThreadID(threadID),
		log.Error(err))
	r.publish(&ThreadEvent{
		Type:     EventFailed,
		GraphID:  graphID,
		ThreadID: threadID,
		Error:    err.Error(),
	})
}
