package launch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/launchpad/launch"
)

func validTaskDraft() launch.TaskDraft {
	return launch.TaskDraft{
		Name:         "Design Homepage",
		AssignedTo:   launch.Assignee{Name: "Priya K.", Email: "priya@example.com"},
		TimeEstimate: 8,
		Department:   launch.DepartmentDesign,
		DueDate:      "2025-06-20",
	}
}

func TestProjectDraftValidate(t *testing.T) {
	draft := launch.ProjectDraft{
		Name:       "Launch A",
		LaunchDate: "2025-07-01",
		Tasks:      []launch.TaskDraft{validTaskDraft()},
	}
	require.NoError(t, draft.Validate())

	missingName := draft
	missingName.Name = "  "
	assert.ErrorIs(t, missingName.Validate(), launch.ErrValidation)

	missingDate := draft
	missingDate.LaunchDate = ""
	assert.ErrorIs(t, missingDate.Validate(), launch.ErrValidation)
}

func TestTaskDraftValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*launch.TaskDraft)
	}{
		{"missing name", func(d *launch.TaskDraft) { d.Name = "" }},
		{"missing assignee", func(d *launch.TaskDraft) { d.AssignedTo.Name = "" }},
		{"missing email", func(d *launch.TaskDraft) { d.AssignedTo.Email = "" }},
		{"bad email", func(d *launch.TaskDraft) { d.AssignedTo.Email = "priya" }},
		{"negative estimate", func(d *launch.TaskDraft) { d.TimeEstimate = -1 }},
		{"missing due date", func(d *launch.TaskDraft) { d.DueDate = "" }},
		{"bad due date", func(d *launch.TaskDraft) { d.DueDate = "20/06/2025" }},
		{"unknown department", func(d *launch.TaskDraft) { d.Department = "Legal" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validTaskDraft()
			tt.mutate(&d)
			assert.ErrorIs(t, d.Validate(), launch.ErrValidation)
		})
	}
}

func TestTaskDraftNewTask(t *testing.T) {
	d := validTaskDraft()
	d.Department = ""

	task := d.NewTask("abc")
	assert.Equal(t, "abc", task.ID)
	assert.Equal(t, launch.StatusToDo, task.Status)
	assert.Equal(t, launch.DepartmentMarketing, task.Department)
}

func validTask(id string) launch.Task {
	return launch.Task{
		ID:           id,
		Name:         "Design Homepage",
		AssignedTo:   launch.Assignee{Name: "Priya K.", Email: "priya@example.com"},
		TimeEstimate: 8,
		Status:       launch.StatusInProgress,
		Department:   launch.DepartmentDesign,
		DueDate:      "2025-06-20",
	}
}

func TestProjectPatchValidate(t *testing.T) {
	empty := ""
	assert.ErrorIs(t, launch.ProjectPatch{Name: &empty}.Validate(), launch.ErrValidation)

	multiline := "Launch\r\nBcc: someone@example.com"
	assert.ErrorIs(t, launch.ProjectPatch{Name: &multiline}.Validate(), launch.ErrValidation)

	name := "Renamed"
	assert.NoError(t, launch.ProjectPatch{Name: &name}.Validate())
	assert.True(t, launch.ProjectPatch{}.Empty())

	ok := launch.ProjectPatch{Tasks: []launch.Task{validTask("t1"), validTask("t2")}}
	require.NoError(t, ok.Validate())

	tests := []struct {
		name   string
		mutate func(*launch.Task)
	}{
		{"empty id", func(tk *launch.Task) { tk.ID = "" }},
		{"duplicate id", func(tk *launch.Task) { tk.ID = "t1" }},
		{"missing name", func(tk *launch.Task) { tk.Name = " " }},
		{"name with line break", func(tk *launch.Task) { tk.Name = "Ship\r\nBcc: someone@example.com" }},
		{"missing assignee", func(tk *launch.Task) { tk.AssignedTo.Name = "" }},
		{"bad email", func(tk *launch.Task) { tk.AssignedTo.Email = "not-an-email" }},
		{"unknown department", func(tk *launch.Task) { tk.Department = "Legal" }},
		{"empty department", func(tk *launch.Task) { tk.Department = "" }},
		{"unknown status", func(tk *launch.Task) { tk.Status = "Blocked" }},
		{"bad due date", func(tk *launch.Task) { tk.DueDate = "soon" }},
		{"negative estimate", func(tk *launch.Task) { tk.TimeEstimate = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			second := validTask("t2")
			tt.mutate(&second)
			patch := launch.ProjectPatch{Tasks: []launch.Task{validTask("t1"), second}}
			assert.ErrorIs(t, patch.Validate(), launch.ErrValidation)
		})
	}
}

func TestDraftsRejectLineBreaks(t *testing.T) {
	d := validTaskDraft()
	d.Name = "Ship\r\nBcc: someone@example.com"
	assert.ErrorIs(t, d.Validate(), launch.ErrValidation)

	d = validTaskDraft()
	d.AssignedTo.Name = "Priya\nK."
	assert.ErrorIs(t, d.Validate(), launch.ErrValidation)

	draft := launch.ProjectDraft{Name: "Launch\nA", LaunchDate: "2025-07-01"}
	assert.ErrorIs(t, draft.Validate(), launch.ErrValidation)
}
