// Package alerts derives the overdue-task alert set from a project snapshot.
package alerts

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/CrowderSoup/launchpad/launch"
)

// IDFunc mints a process-local alert id.
type IDFunc func() string

// Deriver rebuilds alerts wholesale. The zero value uses random uuids.
type Deriver struct {
	NewID IDFunc
}

// Message formats the text shown for an overdue task.
func Message(t launch.Task) string {
	return fmt.Sprintf("Task \"%s\" in the %s department is overdue. Please follow up with %s.",
		t.Name, t.Department, t.AssignedTo.Name)
}

// Derive returns one warning per task that is not done and due strictly
// before today, in project then task order.
func (d Deriver) Derive(projects []launch.Project, today launch.Date) []launch.Alert {
	newID := d.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	out := []launch.Alert{}
	for _, p := range projects {
		for _, t := range p.Tasks {
			if !t.Overdue(today) {
				continue
			}
			out = append(out, launch.Alert{
				ID:             newID(),
				Message:        Message(t),
				Level:          launch.AlertWarning,
				TaskName:       t.Name,
				Department:     t.Department,
				RecipientEmail: t.AssignedTo.Email,
				ProjectID:      p.ID,
				TaskID:         t.ID,
			})
		}
	}
	return out
}

// Derive uses the zero Deriver.
func Derive(projects []launch.Project, today launch.Date) []launch.Alert {
	return Deriver{}.Derive(projects, today)
}

// Find looks an alert up by id.
func Find(set []launch.Alert, id string) (launch.Alert, bool) {
	for _, a := range set {
		if a.ID == id {
			return a, true
		}
	}
	return launch.Alert{}, false
}

// FindTask looks an alert up by the task it was raised for.
func FindTask(set []launch.Alert, projectID, taskID string) (launch.Alert, bool) {
	for _, a := range set {
		if a.ProjectID == projectID && a.TaskID == taskID {
			return a, true
		}
	}
	return launch.Alert{}, false
}
