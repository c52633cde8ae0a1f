package board_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/launchpad/board"
	"github.com/CrowderSoup/launchpad/launch"
)

type fakeWriter struct {
	mu     sync.Mutex
	calls  []board.WriteRequest
	err    error
	gate   chan struct{}
	active int
	maxAct int
}

func (f *fakeWriter) UpdateTaskStatus(ctx context.Context, projectID, taskID string, status launch.Status) error {
	f.mu.Lock()
	f.calls = append(f.calls, board.WriteRequest{ProjectID: projectID, TaskID: taskID, Status: status})
	f.active++
	if f.active > f.maxAct {
		f.maxAct = f.active
	}
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	return f.err
}

func (f *fakeWriter) Calls() []board.WriteRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]board.WriteRequest(nil), f.calls...)
}

func launchA() launch.Project {
	return launch.Project{
		ID:         "p1",
		Name:       "Launch A",
		LaunchDate: "2025-03-01",
		Tasks: []launch.Task{
			{ID: "t1", Name: "Design Homepage", Status: launch.StatusToDo, Department: launch.DepartmentDesign, DueDate: "2020-01-01"},
			{ID: "t2", Name: "Write Copy", Status: launch.StatusInProgress, Department: launch.DepartmentMarketing, DueDate: "2025-06-18"},
			{ID: "t3", Name: "Launch Campaign", Status: launch.StatusDone, Department: launch.DepartmentMarketing, DueDate: "2025-06-15"},
		},
	}
}

func TestApplyMove_ChangesOnlyTarget(t *testing.T) {
	p := launchA()

	next, req := board.ApplyMove(p, "t1", launch.StatusInProgress)

	require.NotNil(t, req)
	assert.Equal(t, board.WriteRequest{ProjectID: "p1", TaskID: "t1", Status: launch.StatusInProgress}, *req)
	assert.Equal(t, launch.StatusInProgress, next.Tasks[0].Status)
	assert.Equal(t, p.Tasks[1:], next.Tasks[1:])
	assert.Equal(t, launch.StatusToDo, p.Tasks[0].Status, "input must not be modified")
}

func TestApplyMove_NoOps(t *testing.T) {
	p := launchA()

	same, req := board.ApplyMove(p, "t2", launch.StatusInProgress)
	assert.Nil(t, req)
	assert.Equal(t, p, same)

	unknown, req := board.ApplyMove(p, "nope", launch.StatusDone)
	assert.Nil(t, req)
	assert.Equal(t, p, unknown)
}

func TestBoard_MoveIsOptimisticUntilSnapshot(t *testing.T) {
	w := &fakeWriter{}
	b := board.New(w)
	b.Reconcile([]launch.Project{launchA()})

	next, req, err := b.Move("p1", "t1", launch.StatusDone)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, launch.StatusDone, next.Tasks[0].Status)

	rendered, ok := b.Project("p1")
	require.True(t, ok)
	assert.Equal(t, launch.StatusDone, rendered.Tasks[0].Status)
	assert.Equal(t, 1, b.Pending())

	// A stale snapshot while the write is in flight keeps the optimistic move.
	b.Reconcile([]launch.Project{launchA()})
	rendered, _ = b.Project("p1")
	assert.Equal(t, launch.StatusDone, rendered.Tasks[0].Status)

	require.NoError(t, b.Commit(context.Background(), *req))
	assert.Equal(t, []board.WriteRequest{*req}, w.Calls())

	caught := launchA()
	caught.Tasks[0].Status = launch.StatusDone
	b.Reconcile([]launch.Project{caught})
	assert.Equal(t, 0, b.Pending())
}

func TestBoard_FailedWriteSnapsBackOnNextSnapshot(t *testing.T) {
	w := &fakeWriter{err: errors.New("unavailable")}
	b := board.New(w)
	b.Reconcile([]launch.Project{launchA()})

	_, req, err := b.Move("p1", "t1", launch.StatusInProgress)
	require.NoError(t, err)

	err = b.Commit(context.Background(), *req)
	assert.ErrorIs(t, err, launch.ErrStoreWrite)

	rendered, _ := b.Project("p1")
	assert.Equal(t, launch.StatusInProgress, rendered.Tasks[0].Status, "optimistic state stays until the next snapshot")

	b.Reconcile([]launch.Project{launchA()})
	rendered, _ = b.Project("p1")
	assert.Equal(t, launch.StatusToDo, rendered.Tasks[0].Status)
	assert.Equal(t, 0, b.Pending())
}

func TestBoard_NoOpMovesIssueNoWrite(t *testing.T) {
	w := &fakeWriter{}
	b := board.New(w)
	b.Reconcile([]launch.Project{launchA()})

	_, req, err := b.Move("p1", "t3", launch.StatusDone)
	require.NoError(t, err)
	assert.Nil(t, req)

	_, req, err = b.Move("p1", "ghost", launch.StatusDone)
	require.NoError(t, err)
	assert.Nil(t, req)

	_, _, err = b.Move("missing", "t1", launch.StatusDone)
	assert.ErrorIs(t, err, launch.ErrNotFound)

	_, _, err = b.Move("p1", "t1", "Blocked")
	assert.ErrorIs(t, err, launch.ErrValidation)

	assert.Empty(t, w.Calls())
	assert.Equal(t, 0, b.Pending())
}

func TestBoard_VanishedTaskDropsPending(t *testing.T) {
	b := board.New(&fakeWriter{})
	b.Reconcile([]launch.Project{launchA()})

	_, _, err := b.Move("p1", "t1", launch.StatusDone)
	require.NoError(t, err)

	b.Reconcile(nil)
	assert.Equal(t, 0, b.Pending())
	assert.Empty(t, b.Projects())
}

func TestBoard_SerializedWritesRunOneAtATime(t *testing.T) {
	w := &fakeWriter{gate: make(chan struct{})}
	b := board.New(w, board.WithSerializedWrites())
	b.Reconcile([]launch.Project{launchA()})

	reqs := []board.WriteRequest{
		{ProjectID: "p1", TaskID: "t1", Status: launch.StatusInProgress},
		{ProjectID: "p1", TaskID: "t1", Status: launch.StatusDone},
	}

	var wg sync.WaitGroup
	for _, req := range reqs {
		wg.Add(1)
		go func(req board.WriteRequest) {
			defer wg.Done()
			_ = b.Commit(context.Background(), req)
		}(req)
		// Let the first commit take the slot before the second queues.
		require.Eventually(t, func() bool { return len(w.Calls()) >= 1 }, time.Second, time.Millisecond)
	}

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, w.Calls(), 1, "second write waits for the first")

	w.gate <- struct{}{}
	require.Eventually(t, func() bool { return len(w.Calls()) == 2 }, time.Second, time.Millisecond)
	w.gate <- struct{}{}
	wg.Wait()

	assert.Equal(t, 1, w.maxAct)
	assert.Equal(t, reqs, w.Calls())
}

func TestColumnsAndFilter(t *testing.T) {
	cols := board.Columns(launchA())
	require.Len(t, cols, 3)
	assert.Equal(t, launch.StatusToDo, cols[0].Status)
	assert.Equal(t, "t1", cols[0].Tasks[0].ID)
	assert.Equal(t, "t2", cols[1].Tasks[0].ID)
	assert.Equal(t, "t3", cols[2].Tasks[0].ID)

	found := board.Filter(launchA().Tasks, "COPY")
	require.Len(t, found, 1)
	assert.Equal(t, "t2", found[0].ID)
	assert.Len(t, board.Filter(launchA().Tasks, " "), 3)
}
