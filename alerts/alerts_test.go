package alerts_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/launchpad/alerts"
	"github.com/CrowderSoup/launchpad/launch"
)

func launchA() launch.Project {
	return launch.Project{
		ID:         "p1",
		Name:       "Launch A",
		LaunchDate: "2025-03-01",
		Tasks: []launch.Task{{
			ID:         "t1",
			Name:       "Design Homepage",
			AssignedTo: launch.Assignee{Name: "Priya K.", Email: "priya@example.com"},
			Status:     launch.StatusToDo,
			Department: launch.DepartmentDesign,
			DueDate:    "2020-01-01",
		}},
	}
}

func counterIDs() alerts.IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("a%d", n)
	}
}

func TestDerive_SingleOverdueTask(t *testing.T) {
	got := alerts.Derive([]launch.Project{launchA()}, "2025-01-01")

	require.Len(t, got, 1)
	a := got[0]
	assert.Equal(t, "t1", a.TaskID)
	assert.Equal(t, "p1", a.ProjectID)
	assert.Equal(t, launch.AlertWarning, a.Level)
	assert.Equal(t, "priya@example.com", a.RecipientEmail)
	assert.Equal(t, launch.DepartmentDesign, a.Department)
	assert.Equal(t, `Task "Design Homepage" in the Design department is overdue. Please follow up with Priya K..`, a.Message)
	assert.NotEmpty(t, a.ID)
}

func TestDerive_Boundaries(t *testing.T) {
	p := launchA()
	base := p.Tasks[0]
	p.Tasks = []launch.Task{
		base,
		{ID: "today", Name: "Due today", Status: launch.StatusInProgress, DueDate: "2025-01-01"},
		{ID: "done", Name: "Done late", Status: launch.StatusDone, DueDate: "2020-01-01"},
		{ID: "future", Name: "Later", Status: launch.StatusToDo, DueDate: "2025-01-02"},
		{ID: "bad", Name: "Garbled", Status: launch.StatusToDo, DueDate: "yesterday"},
		{ID: "ip", Name: "Late work", Status: launch.StatusInProgress, DueDate: "2024-12-31"},
	}

	got := alerts.Derive([]launch.Project{p}, "2025-01-01")

	ids := make([]string, 0, len(got))
	for _, a := range got {
		ids = append(ids, a.TaskID)
	}
	assert.Equal(t, []string{"t1", "ip"}, ids)
}

func TestDerive_EmptyInput(t *testing.T) {
	assert.Empty(t, alerts.Derive(nil, "2025-01-01"))
	assert.Empty(t, alerts.Derive([]launch.Project{{ID: "p", Name: "Empty"}}, "2025-01-01"))
}

func TestDerive_IdempotentApartFromIDs(t *testing.T) {
	projects := []launch.Project{launchA(), launchA()}
	projects[1].ID = "p2"

	first := alerts.Deriver{NewID: counterIDs()}.Derive(projects, "2025-01-01")
	second := alerts.Deriver{NewID: counterIDs()}.Derive(projects, "2025-01-01")
	assert.Equal(t, first, second)
	assert.Len(t, first, 2)

	// Default ids are fresh on every recompute.
	x := alerts.Derive(projects, "2025-01-01")
	y := alerts.Derive(projects, "2025-01-01")
	assert.NotEqual(t, x[0].ID, y[0].ID)
}

func TestFind(t *testing.T) {
	set := alerts.Deriver{NewID: counterIDs()}.Derive([]launch.Project{launchA()}, "2025-01-01")

	a, ok := alerts.Find(set, "a1")
	require.True(t, ok)
	assert.Equal(t, "t1", a.TaskID)

	_, ok = alerts.Find(set, "a2")
	assert.False(t, ok)

	a, ok = alerts.FindTask(set, "p1", "t1")
	require.True(t, ok)
	assert.Equal(t, "a1", a.ID)
}
