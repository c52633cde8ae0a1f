package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/CrowderSoup/launchpad/database"
	"github.com/CrowderSoup/launchpad/launch"
)

// ProjectsCollection is the document collection projects live in.
const ProjectsCollection = "projects"

// DocumentStore is the part of the document database the project adapter needs.
type DocumentStore interface {
	Documents(ctx context.Context, collection string) ([]database.Document, error)
	Subscribe(ctx context.Context, collection string) <-chan database.Snapshot
	AddDocument(ctx context.Context, collection string, value any) (string, error)
	UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error
	MutateDocument(ctx context.Context, collection, id string, fn func(json.RawMessage) (json.RawMessage, error)) error
}

// ProjectSnapshot is one full replacement of the project list, or the error
// that prevented reading it.
type ProjectSnapshot struct {
	Projects []launch.Project
	Err      error
}

// projectDoc is the stored shape of a project. The id is the document id.
type projectDoc struct {
	Name       string        `json:"name"`
	LaunchDate launch.Date   `json:"launchDate"`
	Tasks      []launch.Task `json:"tasks"`
}

// ProjectStore mirrors the projects collection and carries writes to it.
type ProjectStore struct {
	docs      DocumentStore
	logger    *slog.Logger
	newTaskID func() string
}

func NewProjectStore(docs DocumentStore, logger *slog.Logger) *ProjectStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectStore{
		docs:      docs,
		logger:    logger,
		newTaskID: uuid.NewString,
	}
}

// operationFailed tags a store error for callers, mapping missing documents
// to launch.ErrNotFound.
func operationFailed(kind, err error) error {
	if errors.Is(err, database.ErrNoDocument) {
		return fmt.Errorf("%w: %w: %w", launch.ErrOperationFailed, launch.ErrNotFound, err)
	}
	return fmt.Errorf("%w: %w: %w", launch.ErrOperationFailed, kind, err)
}

// SubscribeProjects streams project snapshots for an authenticated session.
// For any other session nothing is emitted, which callers read as still
// loading. The channel closes when ctx is done; call again to restart.
func (s *ProjectStore) SubscribeProjects(ctx context.Context, session launch.Session) <-chan ProjectSnapshot {
	out := make(chan ProjectSnapshot)

	if !session.Authenticated() {
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out
	}

	snaps := s.docs.Subscribe(ctx, ProjectsCollection)
	go func() {
		defer close(out)
		for snap := range snaps {
			var ps ProjectSnapshot
			if snap.Err != nil {
				ps.Err = operationFailed(launch.ErrStoreRead, snap.Err)
			} else {
				ps.Projects = s.decode(snap.Documents)
			}
			select {
			case out <- ps:
			case <-ctx.Done():
				// Drain so the store side can notice ctx and exit.
				for range snaps {
				}
				return
			}
		}
	}()
	return out
}

// Projects reads the current project list once.
func (s *ProjectStore) Projects(ctx context.Context) ([]launch.Project, error) {
	docs, err := s.docs.Documents(ctx, ProjectsCollection)
	if err != nil {
		return nil, operationFailed(launch.ErrStoreRead, err)
	}
	return s.decode(docs), nil
}

func (s *ProjectStore) decode(docs []database.Document) []launch.Project {
	projects := make([]launch.Project, 0, len(docs))
	for _, d := range docs {
		var pd projectDoc
		if err := json.Unmarshal(d.Data, &pd); err != nil {
			s.logger.Warn("skipping malformed project document", slog.String("id", d.ID), slog.String("error", err.Error()))
			continue
		}
		if pd.Tasks == nil {
			pd.Tasks = []launch.Task{}
		}
		projects = append(projects, launch.Project{
			ID:         d.ID,
			Name:       pd.Name,
			LaunchDate: pd.LaunchDate,
			Tasks:      pd.Tasks,
		})
	}
	return projects
}

// CreateProject stores a new project whose tasks all start in To Do.
func (s *ProjectStore) CreateProject(ctx context.Context, name string, launchDate launch.Date, tasks []launch.TaskDraft) (string, error) {
	doc := projectDoc{
		Name:       name,
		LaunchDate: launchDate,
		Tasks:      make([]launch.Task, 0, len(tasks)),
	}
	for _, t := range tasks {
		doc.Tasks = append(doc.Tasks, t.NewTask(s.newTaskID()))
	}

	id, err := s.docs.AddDocument(ctx, ProjectsCollection, doc)
	if err != nil {
		s.logger.Error("create project failed", slog.String("name", name), slog.String("error", err.Error()))
		return "", operationFailed(launch.ErrStoreWrite, err)
	}
	return id, nil
}

// UpdateTaskStatus rewrites one task's status in place, keeping every other
// stored field of the project and the task.
func (s *ProjectStore) UpdateTaskStatus(ctx context.Context, projectID, taskID string, status launch.Status) error {
	err := s.docs.MutateDocument(ctx, ProjectsCollection, projectID, func(data json.RawMessage) (json.RawMessage, error) {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("decode project: %w", err)
		}
		var tasks []map[string]json.RawMessage
		if raw, ok := obj["tasks"]; ok {
			if err := json.Unmarshal(raw, &tasks); err != nil {
				return nil, fmt.Errorf("decode tasks: %w", err)
			}
		}

		found := false
		for _, t := range tasks {
			var id string
			if err := json.Unmarshal(t["id"], &id); err != nil || id != taskID {
				continue
			}
			raw, err := json.Marshal(status)
			if err != nil {
				return nil, err
			}
			t["status"] = raw
			found = true
			break
		}
		if !found {
			return nil, fmt.Errorf("task %s: %w", taskID, database.ErrNoDocument)
		}

		raw, err := json.Marshal(tasks)
		if err != nil {
			return nil, err
		}
		obj["tasks"] = raw
		return json.Marshal(obj)
	})
	if err != nil {
		s.logger.Error("update task status failed",
			slog.String("project", projectID), slog.String("task", taskID), slog.String("error", err.Error()))
		return operationFailed(launch.ErrStoreWrite, err)
	}
	return nil
}

// UpdateProjectDetails overwrites the fields patch sets. An empty patch
// writes nothing.
func (s *ProjectStore) UpdateProjectDetails(ctx context.Context, projectID string, patch launch.ProjectPatch) error {
	if patch.Empty() {
		return nil
	}

	fields := make(map[string]any, 3)
	if patch.Name != nil {
		fields["name"] = *patch.Name
	}
	if patch.LaunchDate != nil {
		fields["launchDate"] = *patch.LaunchDate
	}
	if patch.Tasks != nil {
		fields["tasks"] = patch.Tasks
	}

	if err := s.docs.UpdateDocument(ctx, ProjectsCollection, projectID, fields); err != nil {
		s.logger.Error("update project failed", slog.String("project", projectID), slog.String("error", err.Error()))
		return operationFailed(launch.ErrStoreWrite, err)
	}
	return nil
}
