package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CrowderSoup/launchpad/launch"
	"github.com/CrowderSoup/launchpad/services"
	"github.com/CrowderSoup/launchpad/view"
)

// LiveHandler serves the websocket that drives a dashboard session.
type LiveHandler struct {
	ctx       context.Context
	store     view.Store
	notifier  view.Notifier
	hub       *services.Hub
	bannerTTL time.Duration
	clock     func() time.Time
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

// NewLiveHandler builds the websocket endpoint. Sessions live until their
// connection closes or ctx is done, so ctx must outlive single requests.
func NewLiveHandler(ctx context.Context, store view.Store, notifier view.Notifier, hub *services.Hub, bannerTTL time.Duration, logger *slog.Logger) *LiveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveHandler{
		ctx:       ctx,
		store:     store,
		notifier:  notifier,
		hub:       hub,
		bannerTTL: bannerTTL,
		clock:     time.Now,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}
}

// HandleWebSocket upgrades the HTTP connection to a WebSocket connection
func (h *LiveHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	if !session.Authenticated() {
		writeError(w, launch.ErrUnauthenticated, "user not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("error upgrading to websocket", slog.String("error", err.Error()))
		return
	}

	client := services.NewClient(h.hub, conn, session.User.Email)
	live := newLiveSession(h, client, session)
	client.Handler = live

	h.hub.Register(client)
	live.orchestrator.Start(h.ctx)

	go client.WritePump()
	go client.ReadPump(h.ctx)
}

// liveSession binds one orchestrator to one websocket client.
type liveSession struct {
	client       *services.Client
	hub          *services.Hub
	orchestrator *view.Orchestrator
	logger       *slog.Logger
}

func newLiveSession(h *LiveHandler, client *services.Client, session launch.Session) *liveSession {
	s := &liveSession{
		client: client,
		hub:    h.hub,
		logger: h.logger.With(slog.String("client", client.Email)),
	}
	s.orchestrator = view.New(session, h.store, h.notifier, view.Options{
		Clock:     h.clock,
		BannerTTL: h.bannerTTL,
		Logger:    s.logger,
		OnChange:  s.push,
	})
	return s
}

func (s *liveSession) push(st view.State) {
	msg, err := services.NewMessage("state", st)
	if err != nil {
		s.logger.Error("error encoding state", slog.String("error", err.Error()))
		return
	}
	s.client.Deliver(msg)
}

func (s *liveSession) reject(reason string) {
	msg, err := services.NewMessage("error", map[string]string{"message": reason})
	if err == nil {
		s.client.Deliver(msg)
	}
}

type moveRequest struct {
	ProjectID string        `json:"projectId"`
	TaskID    string        `json:"taskId"`
	Status    launch.Status `json:"status"`
}

type editRequest struct {
	ProjectID string              `json:"projectId"`
	Patch     launch.ProjectPatch `json:"patch"`
}

type notifyRequest struct {
	AlertID   string `json:"alertId"`
	ProjectID string `json:"projectId"`
	TaskID    string `json:"taskId"`
}

func decodeData(msg services.WebSocketMessage, v any) bool {
	return len(msg.Data) > 0 && json.Unmarshal(msg.Data, v) == nil
}

// HandleMessage runs one user action. Store and mail calls never block the
// read loop; their outcome reaches the peer as a state push.
func (s *liveSession) HandleMessage(ctx context.Context, msg services.WebSocketMessage) {
	o := s.orchestrator

	switch msg.Type {
	case "dashboard":
		o.ReturnToDashboard()
	case "create":
		o.StartCreateFlow()
	case "alerts":
		o.ShowAlerts()
	case "theme":
		o.ToggleTheme()
	case "dismiss":
		o.DismissBanner()
	case "select":
		var req struct {
			ProjectID string `json:"projectId"`
		}
		if !decodeData(msg, &req) {
			s.reject("select needs a projectId")
			return
		}
		o.SelectProject(req.ProjectID)
	case "search":
		var req struct {
			Query string `json:"query"`
		}
		decodeData(msg, &req)
		o.SetSearch(req.Query)
	case "move":
		var req moveRequest
		if !decodeData(msg, &req) {
			s.reject("move needs projectId, taskId and status")
			return
		}
		o.MoveTask(ctx, req.ProjectID, req.TaskID, req.Status)
	case "submit":
		var draft launch.ProjectDraft
		if !decodeData(msg, &draft) {
			s.reject("submit needs a project draft")
			return
		}
		go o.SubmitNewProject(ctx, draft)
	case "edit":
		var req editRequest
		if !decodeData(msg, &req) || req.ProjectID == "" {
			s.reject("edit needs a projectId and a patch")
			return
		}
		go o.EditProject(ctx, req.ProjectID, req.Patch)
	case "notify":
		var req notifyRequest
		if !decodeData(msg, &req) {
			s.reject("notify needs an alertId or a task")
			return
		}
		go s.notify(ctx, req)
	default:
		s.reject("unknown message type " + msg.Type)
	}
}

func (s *liveSession) notify(ctx context.Context, req notifyRequest) {
	o := s.orchestrator

	alert, ok := o.Alert(req.AlertID)
	if !ok {
		alert, ok = o.AlertForTask(req.ProjectID, req.TaskID)
	}
	if !ok {
		// Shows the stale-alert banner.
		<-o.RequestNotifyID(ctx, req.AlertID, req.ProjectID, req.TaskID)
		return
	}

	if err := <-o.RequestNotify(ctx, alert); err != nil {
		s.logger.Warn("notification failed", slog.String("task", alert.TaskName), slog.String("error", err.Error()))
		return
	}
	announceNotify(s.hub, o.Session(), alert)
}

func (s *liveSession) Refresh() {
	s.orchestrator.Refresh()
}

func (s *liveSession) Close() {
	s.orchestrator.Stop()
}
