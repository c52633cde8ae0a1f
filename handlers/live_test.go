package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/launchpad/database"
	"github.com/CrowderSoup/launchpad/launch"
	"github.com/CrowderSoup/launchpad/services"
	"github.com/CrowderSoup/launchpad/view"
)

type liveFixture struct {
	srv   *httptest.Server
	store *services.ProjectStore
	token string
}

func newLiveFixture(t *testing.T) *liveFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	db, err := database.InitDB(":memory:", nil)
	require.NoError(t, err)
	store := services.NewProjectStore(database.NewDocumentStore(db, nil), nil)

	auth := services.NewAuthService("secret", nil, nil)
	token, err := auth.CreateJWT(launch.User{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	hub := services.NewHub(0, nil)
	go hub.Run(ctx)

	notifier := &fakeNotifier{}
	router := NewRouter(Routes{
		Auth:     NewAuthHandler(auth, nil),
		Projects: NewProjectHandler(store, notifier, hub, nil),
		Live:     NewLiveHandler(ctx, store, notifier, hub, time.Second, nil),
		Guard:    NewAuthMiddleware(auth),
	})
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		db.Close()
	})
	return &liveFixture{srv: srv, store: store, token: token}
}

func (f *liveFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/ws?token=" + f.token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// awaitState reads frames until a pushed state satisfies ok. A frame may
// carry several newline-separated messages.
func awaitState(t *testing.T, conn *websocket.Conn, ok func(view.State) bool) view.State {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)

		for _, line := range bytes.Split(frame, []byte("\n")) {
			var msg services.WebSocketMessage
			if json.Unmarshal(line, &msg) != nil || msg.Type != "state" {
				continue
			}
			var st view.State
			require.NoError(t, json.Unmarshal(msg.Data, &st))
			if ok(st) {
				return st
			}
		}
	}
}

func TestLiveHandler_RequiresToken(t *testing.T) {
	f := newLiveFixture(t)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestLiveHandler_SessionFollowsStore(t *testing.T) {
	f := newLiveFixture(t)
	conn := f.dial(t)

	st := awaitState(t, conn, func(s view.State) bool { return !s.Loading })
	assert.Empty(t, st.Projects)
	assert.Equal(t, "ada@example.com", st.Session.User.Email)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "theme"}))
	awaitState(t, conn, func(s view.State) bool { return s.Theme == view.ThemeLight })

	id, err := f.store.CreateProject(context.Background(), "Launch A", "2025-03-01", []launch.TaskDraft{
		{Name: "Design Homepage", AssignedTo: launch.Assignee{Name: "Priya K.", Email: "priya@example.com"},
			Department: launch.DepartmentDesign, DueDate: "2020-01-01"},
	})
	require.NoError(t, err)
	st = awaitState(t, conn, func(s view.State) bool { return len(s.Projects) == 1 })
	require.Len(t, st.Alerts, 1)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "select", "data": map[string]string{"projectId": id}}))
	st = awaitState(t, conn, func(s view.State) bool { return s.Mode == view.ModeProject && s.Selected != nil })
	taskID := st.Selected.Tasks[0].ID

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "move", "data": map[string]string{
		"projectId": id, "taskId": taskID, "status": "Done",
	}}))
	st = awaitState(t, conn, func(s view.State) bool {
		return s.Selected != nil && len(s.Selected.Columns[2].Tasks) == 1 && len(s.Alerts) == 0
	})
	assert.Equal(t, 100, st.Selected.Progress)

	require.Eventually(t, func() bool {
		projects, err := f.store.Projects(context.Background())
		return err == nil && projects[0].Tasks[0].Status == launch.StatusDone
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLiveHandler_SubmitValidationBanner(t *testing.T) {
	f := newLiveFixture(t)
	conn := f.dial(t)
	awaitState(t, conn, func(s view.State) bool { return !s.Loading })

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "create"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "submit", "data": map[string]string{"name": "Launch B"}}))

	st := awaitState(t, conn, func(s view.State) bool { return s.Banner != nil })
	assert.Equal(t, view.BannerError, st.Banner.Kind)
	assert.Equal(t, "Please fill project name and launch date.", st.Banner.Message)
	assert.Equal(t, view.ModeCreate, st.Mode)
}
