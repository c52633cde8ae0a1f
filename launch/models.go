// Package launch holds the value types shared by every LaunchPad component:
// projects, their tasks, derived alerts and derived project statistics.
package launch

// Status is the board column a task currently sits in.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Statuses lists the board columns in display order.
var Statuses = []Status{StatusToDo, StatusInProgress, StatusDone}

// Valid reports whether s is one of the known board columns.
func (s Status) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Department owns a task.
type Department string

const (
	DepartmentMarketing   Department = "Marketing"
	DepartmentDesign      Department = "Design"
	DepartmentFinance     Department = "Finance"
	DepartmentSupply      Department = "Supply"
	DepartmentMerchandise Department = "Merchandise"
)

// Departments lists every department in form order.
var Departments = []Department{
	DepartmentMarketing,
	DepartmentDesign,
	DepartmentFinance,
	DepartmentSupply,
	DepartmentMerchandise,
}

// Valid reports whether d is a known department.
func (d Department) Valid() bool {
	for _, known := range Departments {
		if d == known {
			return true
		}
	}
	return false
}

// Assignee is the person responsible for a task.
type Assignee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Task is a single card on a project's board.
type Task struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	AssignedTo   Assignee   `json:"assignedTo"`
	TimeEstimate int        `json:"timeEstimate"`
	Status       Status     `json:"status"`
	Department   Department `json:"department"`
	DueDate      Date       `json:"dueDate"`
}

// Overdue reports whether the task is unfinished and due strictly before today.
// A malformed due date is never overdue.
func (t Task) Overdue(today Date) bool {
	return t.Status != StatusDone && t.DueDate.Before(today)
}

// WithStatus returns a copy of t moved to status.
func (t Task) WithStatus(status Status) Task {
	t.Status = status
	return t
}

// Project is a launch and the tasks that make it up. Task order follows the
// store and carries no meaning.
type Project struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LaunchDate Date   `json:"launchDate"`
	Tasks      []Task `json:"tasks"`
}

// Task looks up a task by id.
func (p Project) Task(id string) (Task, bool) {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Clone returns a copy of p that shares no task storage with it.
func (p Project) Clone() Project {
	tasks := make([]Task, len(p.Tasks))
	copy(tasks, p.Tasks)
	p.Tasks = tasks
	return p
}

// AlertLevel grades an alert. Only AlertWarning is produced today.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// Alert flags an overdue task. Alerts are rebuilt on every snapshot and their
// ids are only unique within the running process.
type Alert struct {
	ID             string     `json:"id"`
	Message        string     `json:"message"`
	Level          AlertLevel `json:"level"`
	TaskName       string     `json:"taskName"`
	Department     Department `json:"department"`
	RecipientEmail string     `json:"recipientEmail"`
	ProjectID      string     `json:"projectId"`
	TaskID         string     `json:"taskId"`
}
