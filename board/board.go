// Package board applies task status moves on a project's Kanban board.
//
// A Board keeps two slices of state: the authoritative projects from the last
// store snapshot and the pending optimistic moves keyed by task. Readers see
// the two merged. Pending moves are dropped once a snapshot reflects them or
// once their write has finished and a later snapshot arrives, so the snapshot
// stream stays the single source of truth.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/CrowderSoup/launchpad/launch"
)

// StatusWriter persists a task status change.
type StatusWriter interface {
	UpdateTaskStatus(ctx context.Context, projectID, taskID string, status launch.Status) error
}

// WriteRequest is the store write a move needs.
type WriteRequest struct {
	ProjectID string
	TaskID    string
	Status    launch.Status
}

// ApplyMove moves taskID to target. It returns p untouched and a nil request
// when the task is unknown or already in target; otherwise a new project
// whose task list differs only in that task's status.
func ApplyMove(p launch.Project, taskID string, target launch.Status) (launch.Project, *WriteRequest) {
	idx := -1
	for i, t := range p.Tasks {
		if t.ID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 || p.Tasks[idx].Status == target {
		return p, nil
	}

	next := p.Clone()
	next.Tasks[idx] = next.Tasks[idx].WithStatus(target)
	return next, &WriteRequest{ProjectID: p.ID, TaskID: taskID, Status: target}
}

type taskKey struct {
	project string
	task    string
}

type pendingMove struct {
	status  launch.Status
	settled bool
}

// Option configures a Board.
type Option func(*Board)

// WithLogger sets the logger used for write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Board) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithSerializedWrites makes Commit wait for any earlier write on the same
// task to finish before issuing its own.
func WithSerializedWrites() Option {
	return func(b *Board) {
		b.serialize = true
	}
}

// Board tracks authoritative and optimistic board state for a set of projects.
type Board struct {
	mu            sync.Mutex
	writer        StatusWriter
	logger        *slog.Logger
	authoritative []launch.Project
	pending       map[taskKey]*pendingMove
	serialize     bool
	tails         map[taskKey]chan struct{}
}

// New returns an empty Board writing through writer.
func New(writer StatusWriter, opts ...Option) *Board {
	b := &Board{
		writer:  writer,
		logger:  slog.Default(),
		pending: make(map[taskKey]*pendingMove),
		tails:   make(map[taskKey]chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Reconcile installs a new authoritative snapshot. The slice is kept as is
// and never modified.
func (b *Board) Reconcile(projects []launch.Project) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.authoritative = projects
	for k, pm := range b.pending {
		if pm.settled {
			delete(b.pending, k)
			continue
		}
		t, ok := b.authoritativeTask(k)
		if !ok || t.Status == pm.status {
			delete(b.pending, k)
		}
	}
}

func (b *Board) authoritativeTask(k taskKey) (launch.Task, bool) {
	for _, p := range b.authoritative {
		if p.ID == k.project {
			return p.Task(k.task)
		}
	}
	return launch.Task{}, false
}

// merged overlays pending moves on p. Caller holds mu.
func (b *Board) merged(p launch.Project) launch.Project {
	var out *launch.Project
	for i, t := range p.Tasks {
		pm, ok := b.pending[taskKey{project: p.ID, task: t.ID}]
		if !ok || pm.status == t.Status {
			continue
		}
		if out == nil {
			c := p.Clone()
			out = &c
		}
		out.Tasks[i] = t.WithStatus(pm.status)
	}
	if out == nil {
		return p
	}
	return *out
}

// Projects returns every project as it should be rendered.
func (b *Board) Projects() []launch.Project {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]launch.Project, 0, len(b.authoritative))
	for _, p := range b.authoritative {
		out = append(out, b.merged(p))
	}
	return out
}

// Project returns one project as it should be rendered.
func (b *Board) Project(id string) (launch.Project, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.project(id)
}

func (b *Board) project(id string) (launch.Project, bool) {
	for _, p := range b.authoritative {
		if p.ID == id {
			return b.merged(p), true
		}
	}
	return launch.Project{}, false
}

// Pending reports how many optimistic moves are outstanding.
func (b *Board) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Move applies a drop or form edit optimistically. The returned project is
// what to render now; a non-nil request must be handed to Commit.
func (b *Board) Move(projectID, taskID string, target launch.Status) (launch.Project, *WriteRequest, error) {
	if !target.Valid() {
		return launch.Project{}, nil, fmt.Errorf("%w: unknown status %q", launch.ErrValidation, target)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.project(projectID)
	if !ok {
		return launch.Project{}, nil, fmt.Errorf("project %s: %w", projectID, launch.ErrNotFound)
	}

	next, req := ApplyMove(p, taskID, target)
	if req == nil {
		return p, nil, nil
	}
	b.pending[taskKey{project: projectID, task: taskID}] = &pendingMove{status: target}
	return next, req, nil
}

// Commit performs the write for req. The optimistic move stays visible until
// the next snapshot whatever the outcome.
func (b *Board) Commit(ctx context.Context, req WriteRequest) error {
	k := taskKey{project: req.ProjectID, task: req.TaskID}

	if b.serialize {
		release, err := b.awaitTurn(ctx, k)
		if err != nil {
			return err
		}
		defer release()
	}

	err := b.writer.UpdateTaskStatus(ctx, req.ProjectID, req.TaskID, req.Status)

	b.mu.Lock()
	if pm, ok := b.pending[k]; ok && pm.status == req.Status {
		pm.settled = true
	}
	b.mu.Unlock()

	if err != nil {
		b.logger.Error("task status write failed",
			slog.String("project", req.ProjectID),
			slog.String("task", req.TaskID),
			slog.String("status", string(req.Status)),
			slog.String("error", err.Error()))
		if errors.Is(err, launch.ErrStoreWrite) {
			return err
		}
		return fmt.Errorf("%w: %w", launch.ErrStoreWrite, err)
	}
	return nil
}

// awaitTurn queues behind the last write issued for k.
func (b *Board) awaitTurn(ctx context.Context, k taskKey) (func(), error) {
	done := make(chan struct{})

	b.mu.Lock()
	prev := b.tails[k]
	b.tails[k] = done
	b.mu.Unlock()

	release := func() {
		close(done)
		b.mu.Lock()
		if b.tails[k] == done {
			delete(b.tails, k)
		}
		b.mu.Unlock()
	}

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			// Later writers wait on done, so it still has to close after prev.
			go func() {
				<-prev
				release()
			}()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

// Column is one status lane of a board.
type Column struct {
	Status launch.Status `json:"status"`
	Tasks  []launch.Task `json:"tasks"`
}

// Columns groups p's tasks by status in board order.
func Columns(p launch.Project) []Column {
	cols := make([]Column, 0, len(launch.Statuses))
	for _, s := range launch.Statuses {
		col := Column{Status: s, Tasks: []launch.Task{}}
		for _, t := range p.Tasks {
			if t.Status == s {
				col.Tasks = append(col.Tasks, t)
			}
		}
		cols = append(cols, col)
	}
	return cols
}

// Filter keeps tasks whose name contains query, ignoring case.
func Filter(tasks []launch.Task, query string) []launch.Task {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return tasks
	}
	out := []launch.Task{}
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Name), q) {
			out = append(out, t)
		}
	}
	return out
}
