package runtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dnw3/synapse/graph"
	"github.com/dnw3/synapse/internal/runtime"
)

func greeterGraph(t *testing.T) *graph.CompiledGraph[graph.Values] {
	t.Helper()
	sg := graph.New[graph.Values]()
	sg.AddNodeFunc("greet",
		func(
			_ context.Context, s graph.Values,
		) (*graph.Outcome[graph.Values], error) {
			return graph.Continue(graph.Values{
				"greeting": "hello, " + s["name"].(string),
			}), nil
		})
	sg.SetEntryPoint("greet")
	g, err := sg.Compile()
	assert.NoError(t, err)
	return g
}

func approvalGraph(t *testing.T) *graph.CompiledGraph[graph.Values] {
	t.Helper()
	sg := graph.New[graph.Values]()
	sg.AddNodeFunc("review",
		func(
			_ context.Context, s graph.Values,
		) (*graph.Outcome[graph.Values], error) {
			if s["approved"] == true {
				return graph.Continue(graph.Values{"status": "shipped"}), nil
			}
			return graph.Interrupt(
				graph.Values{"status": "pending"}, "needs approval",
			), nil
		})
	sg.SetEntryPoint("review")
	g, err := sg.Compile()
	assert.NoError(t, err)
	return g
}

func newTestRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()
	r := runtime.NewRuntime(graph.NewMemorySaver(), 25)
	t.Cleanup(r.Close)
	return r
}

func TestRegisterAndList(t *testing.T) {
	as := assert.New(t)
	r := newTestRuntime(t)

	as.NoError(r.Register("greeter", greeterGraph(t)))
	as.NoError(r.Register("approval", approvalGraph(t)))
	as.ErrorIs(
		r.Register("greeter", greeterGraph(t)),
		runtime.ErrGraphAlreadyExists,
	)
	as.Equal([]string{"approval", "greeter"}, r.GraphIDs())

	_, err := r.Graph("missing")
	as.ErrorIs(err, runtime.ErrGraphNotFound)
}

func TestInvokeCompletes(t *testing.T) {
	as := assert.New(t)
	r := newTestRuntime(t)
	as.NoError(r.Register("greeter", greeterGraph(t)))

	res, err := r.Invoke(
		context.Background(), "greeter", "thread-1",
		graph.Values{"name": "ada"},
	)
	as.NoError(err)
	as.Equal(runtime.StatusCompleted, res.Status)
	as.Equal("hello, ada", res.State["greeting"])
	as.Equal("thread-1", res.ThreadID)

	state, ok, err := r.GetState(context.Background(), "greeter", "thread-1")
	as.NoError(err)
	as.True(ok)
	as.Equal("hello, ada", state["greeting"])
}

func TestInvokePublishesEvents(t *testing.T) {
	as := assert.New(t)
	r := newTestRuntime(t)
	as.NoError(r.Register("greeter", greeterGraph(t)))

	cons := r.NewConsumer()
	defer cons.Close()

	_, err := r.Invoke(
		context.Background(), "greeter", "thread-1",
		graph.Values{"name": "ada"},
	)
	as.NoError(err)

	step := receiveEvent(t, cons.Receive())
	as.Equal(runtime.EventStep, step.Type)
	as.Equal("greet", step.Node)
	as.Equal("thread-1", step.ThreadID)
	as.NotEmpty(step.ID)

	done := receiveEvent(t, cons.Receive())
	as.Equal(runtime.EventCompleted, done.Type)
	as.Equal("hello, ada", done.State["greeting"])
}

func TestInterruptAndResume(t *testing.T) {
	as := assert.New(t)
	r := newTestRuntime(t)
	as.NoError(r.Register("approval", approvalGraph(t)))

	ctx := context.Background()
	res, err := r.Invoke(ctx, "approval", "order-9", graph.Values{})
	as.NoError(err)
	as.Equal(runtime.StatusInterrupted, res.Status)
	as.Equal("needs approval", res.InterruptValue)
	as.Equal("review", res.NextNode)
	as.Equal("pending", res.State["status"])

	res, err = r.Resume(
		ctx, "approval", "order-9", graph.Values{"approved": true},
	)
	as.NoError(err)
	as.Equal(runtime.StatusCompleted, res.Status)
	as.Equal("shipped", res.State["status"])
}

func TestThreadBusyRejected(t *testing.T) {
	as := assert.New(t)
	r := newTestRuntime(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	sg := graph.New[graph.Values]()
	sg.AddNodeFunc("wait",
		func(
			_ context.Context, _ graph.Values,
		) (*graph.Outcome[graph.Values], error) {
			close(entered)
			<-release
			return graph.Continue(graph.Values{}), nil
		})
	sg.SetEntryPoint("wait")
	g, err := sg.Compile()
	as.NoError(err)
	as.NoError(r.Register("slow", g))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = r.Invoke(
			context.Background(), "slow", "thread-1", graph.Values{},
		)
	}()

	<-entered
	_, err = r.Invoke(
		context.Background(), "slow", "thread-1", graph.Values{},
	)
	as.ErrorIs(err, runtime.ErrThreadBusy)

	err = r.UpdateState(
		context.Background(), "slow", "thread-1", graph.Values{},
	)
	as.ErrorIs(err, runtime.ErrThreadBusy)

	close(release)
	wg.Wait()
}

func TestResumeOnBusyThreadLeavesHistoryAlone(t *testing.T) {
	as := assert.New(t)
	r := newTestRuntime(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	sg := graph.New[graph.Values]()
	sg.AddNodeFunc("gate",
		func(
			_ context.Context, s graph.Values,
		) (*graph.Outcome[graph.Values], error) {
			if s["approved"] == true {
				return graph.Continue(graph.Values{}), nil
			}
			return graph.Interrupt(graph.Values{}, "hold"), nil
		})
	sg.AddNodeFunc("wait",
		func(
			_ context.Context, _ graph.Values,
		) (*graph.Outcome[graph.Values], error) {
			close(entered)
			<-release
			return graph.Continue(graph.Values{}), nil
		})
	sg.AddEdge("gate", "wait")
	sg.SetEntryPoint("gate")
	g, err := sg.Compile()
	as.NoError(err)
	as.NoError(r.Register("slow", g))

	ctx := context.Background()
	res, err := r.Invoke(ctx, "slow", "thread-1", graph.Values{})
	as.NoError(err)
	as.Equal(runtime.StatusInterrupted, res.Status)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = r.Resume(
			ctx, "slow", "thread-1", graph.Values{"approved": true},
		)
	}()

	<-entered
	before, err := r.GetStateHistory(ctx, "slow", "thread-1")
	as.NoError(err)

	_, err = r.Resume(
		ctx, "slow", "thread-1", graph.Values{"approved": true},
	)
	as.ErrorIs(err, runtime.ErrThreadBusy)

	after, err := r.GetStateHistory(ctx, "slow", "thread-1")
	as.NoError(err)
	as.Len(after, len(before))

	close(release)
	wg.Wait()
}

func TestFailurePublishesEvent(t *testing.T) {
	as := assert.New(t)
	r := newTestRuntime(t)

	sg := graph.New[graph.Values]()
	sg.AddNodeFunc("boom",
		func(
			_ context.Context, _ graph.Values,
		) (*graph.Outcome[graph.Values], error) {
			return nil, assert.AnError
		})
	sg.SetEntryPoint("boom")
	g, err := sg.Compile()
	as.NoError(err)
	as.NoError(r.Register("broken", g))

	cons := r.NewConsumer()
	defer cons.Close()

	_, err = r.Invoke(
		context.Background(), "broken", "thread-1", graph.Values{},
	)
	as.ErrorIs(err, assert.AnError)

	ev := receiveEvent(t, cons.Receive())
	as.Equal(runtime.EventFailed, ev.Type)
	as.Contains(ev.Error, assert.AnError.Error())
}

func TestStateHistory(t *testing.T) {
	as := assert.New(t)
	r := newTestRuntime(t)
	as.NoError(r.Register("greeter", greeterGraph(t)))

	ctx := context.Background()
	_, err := r.Invoke(
		ctx, "greeter", "thread-1", graph.Values{"name": "ada"},
	)
	as.NoError(err)

	history, err := r.GetStateHistory(ctx, "greeter", "thread-1")
	as.NoError(err)
	as.Len(history, 1)
	as.Empty(history[0].NextNode)
}

func receiveEvent(
	t *testing.T, ch <-chan *runtime.ThreadEvent,
) *runtime.ThreadEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for thread event")
		return nil
	}
}
