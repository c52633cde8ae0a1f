package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/CrowderSoup/launchpad/alerts"
	"github.com/CrowderSoup/launchpad/board"
	"github.com/CrowderSoup/launchpad/launch"
	"github.com/CrowderSoup/launchpad/services"
)

// ProjectService is the slice of the project store the JSON API needs.
type ProjectService interface {
	Projects(ctx context.Context) ([]launch.Project, error)
	CreateProject(ctx context.Context, name string, launchDate launch.Date, tasks []launch.TaskDraft) (string, error)
	UpdateProjectDetails(ctx context.Context, projectID string, patch launch.ProjectPatch) error
	UpdateTaskStatus(ctx context.Context, projectID, taskID string, status launch.Status) error
}

// Notifier sends the overdue mail behind an alert.
type Notifier interface {
	Notify(ctx context.Context, alert launch.Alert) error
}

// Broadcaster fans a message out to connected clients.
type Broadcaster interface {
	Broadcast(message services.WebSocketMessage, excludeEmail string)
}

// ProjectHandler serves the project, board and alert endpoints.
type ProjectHandler struct {
	store    ProjectService
	notifier Notifier
	hub      Broadcaster
	clock    func() time.Time
	logger   *slog.Logger
}

// NewProjectHandler wires the JSON API. hub may be nil.
func NewProjectHandler(store ProjectService, notifier Notifier, hub Broadcaster, logger *slog.Logger) *ProjectHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectHandler{
		store:    store,
		notifier: notifier,
		hub:      hub,
		clock:    time.Now,
		logger:   logger,
	}
}

// Routes mounts the handlers on r. Callers wrap r with the auth middleware.
func (h *ProjectHandler) Routes(r *mux.Router) {
	r.HandleFunc("/projects", h.ListProjects).Methods(http.MethodGet)
	r.HandleFunc("/projects", h.CreateProject).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id}", h.GetProject).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}", h.UpdateProject).Methods(http.MethodPatch)
	r.HandleFunc("/projects/{id}/tasks/{taskId}/status", h.MoveTask).Methods(http.MethodPut)
	r.HandleFunc("/alerts", h.ListAlerts).Methods(http.MethodGet)
	r.HandleFunc("/alerts/notify", h.NotifyAlert).Methods(http.MethodPost)
}

func (h *ProjectHandler) today() launch.Date {
	return launch.DateOf(h.clock())
}

func (h *ProjectHandler) loadProjects(w http.ResponseWriter, r *http.Request) ([]launch.Project, bool) {
	projects, err := h.store.Projects(r.Context())
	if err != nil {
		h.logger.Error("error loading projects", slog.String("error", err.Error()))
		writeError(w, err, "Could not load projects.")
		return nil, false
	}
	return projects, true
}

func findProject(projects []launch.Project, id string) (launch.Project, bool) {
	for _, p := range projects {
		if p.ID == id {
			return p, true
		}
	}
	return launch.Project{}, false
}

// ListProjects returns every project with its dashboard figures.
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, ok := h.loadProjects(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   launch.StatsFor(projects, h.today()),
	})
}

// GetProject returns one project with its board lanes. The query
// parameter q filters tasks by name.
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	projects, ok := h.loadProjects(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	p, found := findProject(projects, id)
	if !found {
		writeError(w, fmt.Errorf("project %s: %w", id, launch.ErrNotFound), "Project not found.")
		return
	}

	shown := p
	shown.Tasks = board.Filter(p.Tasks, r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"data":    launch.Stats(p, h.today()),
		"columns": board.Columns(shown),
	})
}

// CreateProject stores a new project from a draft.
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var draft launch.ProjectDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, launch.ErrValidation, "Invalid request format")
		return
	}
	if err := draft.Validate(); err != nil {
		writeError(w, err, "")
		return
	}

	id, err := h.store.CreateProject(r.Context(), strings.TrimSpace(draft.Name), draft.LaunchDate, draft.Tasks)
	if err != nil {
		h.logger.Error("error creating project", slog.String("error", err.Error()))
		writeError(w, err, "Failed to create project.")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"status":  "success",
		"message": "Project created successfully!",
		"id":      id,
	})
}

// UpdateProject applies a patch to a project's details.
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var patch launch.ProjectPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, launch.ErrValidation, "Invalid request format")
		return
	}
	if err := patch.Validate(); err != nil {
		writeError(w, err, "")
		return
	}

	if err := h.store.UpdateProjectDetails(r.Context(), mux.Vars(r)["id"], patch); err != nil {
		h.logger.Error("error updating project", slog.String("error", err.Error()))
		msg := "Failed to update project."
		if errors.Is(err, launch.ErrNotFound) {
			msg = "Project not found."
		}
		writeError(w, err, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Project updated successfully!",
	})
}

// MoveTask changes one task's status. A move to the current status or of
// an unknown task succeeds without writing.
func (h *ProjectHandler) MoveTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status launch.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, launch.ErrValidation, "Invalid request format")
		return
	}
	if !req.Status.Valid() {
		writeError(w, fmt.Errorf("%w: unknown status %q", launch.ErrValidation, req.Status), "")
		return
	}

	projects, ok := h.loadProjects(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	p, found := findProject(projects, vars["id"])
	if !found {
		writeError(w, fmt.Errorf("project %s: %w", vars["id"], launch.ErrNotFound), "Project not found.")
		return
	}

	next, write := board.ApplyMove(p, vars["taskId"], req.Status)
	if write != nil {
		if err := h.store.UpdateTaskStatus(r.Context(), write.ProjectID, write.TaskID, write.Status); err != nil {
			h.logger.Error("error updating task", slog.String("task", write.TaskID), slog.String("error", err.Error()))
			writeError(w, err, "Failed to update task.")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"changed": write != nil,
		"data":    launch.Stats(next, h.today()),
	})
}

// ListAlerts derives the current overdue alerts.
func (h *ProjectHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	projects, ok := h.loadProjects(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   alerts.Derive(projects, h.today()),
	})
}

// NotifyAlert mails the assignee of an overdue task. Alerts are identified
// by task since their ids are minted per derivation.
func (h *ProjectHandler) NotifyAlert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string `json:"projectId"`
		TaskID    string `json:"taskId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProjectID == "" || req.TaskID == "" {
		writeError(w, launch.ErrValidation, "projectId and taskId are required")
		return
	}

	projects, ok := h.loadProjects(w, r)
	if !ok {
		return
	}
	alert, found := alerts.FindTask(alerts.Derive(projects, h.today()), req.ProjectID, req.TaskID)
	if !found {
		writeError(w, fmt.Errorf("task %s: %w", req.TaskID, launch.ErrNotFound), "That alert is no longer active.")
		return
	}

	if err := h.notifier.Notify(r.Context(), alert); err != nil {
		writeError(w, err, "Failed to send notification.")
		return
	}

	if h.hub != nil {
		announceNotify(h.hub, SessionFrom(r.Context()), alert)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Notification sent!",
	})
}

// announceNotify tells every other signed-in user that alert was followed up.
func announceNotify(hub Broadcaster, actor launch.Session, alert launch.Alert) {
	by := ""
	if actor.User != nil {
		by = actor.User.Email
	}
	msg, err := services.NewMessage("activity", map[string]string{
		"kind":      "notified",
		"by":        by,
		"to":        alert.RecipientEmail,
		"taskName":  alert.TaskName,
		"projectId": alert.ProjectID,
		"taskId":    alert.TaskID,
	})
	if err != nil {
		return
	}
	hub.Broadcast(msg, by)
}
