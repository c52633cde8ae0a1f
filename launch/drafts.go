package launch

import (
	"fmt"
	"net/mail"
	"strings"
)

// TaskDraft is a task as entered in the create form, before it has an id.
type TaskDraft struct {
	Name         string     `json:"name"`
	AssignedTo   Assignee   `json:"assignedTo"`
	TimeEstimate int        `json:"timeEstimate"`
	Department   Department `json:"department"`
	DueDate      Date       `json:"dueDate"`
}

// ProjectDraft is a new launch waiting to be created.
type ProjectDraft struct {
	Name       string      `json:"name"`
	LaunchDate Date        `json:"launchDate"`
	Tasks      []TaskDraft `json:"tasks"`
}

// ProjectPatch overwrites the fields that are set. A nil Tasks leaves the
// task list untouched.
type ProjectPatch struct {
	Name       *string `json:"name,omitempty"`
	LaunchDate *Date   `json:"launchDate,omitempty"`
	Tasks      []Task  `json:"tasks,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProjectPatch) Empty() bool {
	return p.Name == nil && p.LaunchDate == nil && p.Tasks == nil
}

// ValidEmail reports whether s is a bare email address.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// Validate checks every required task field.
func (d TaskDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" ||
		strings.TrimSpace(d.AssignedTo.Name) == "" ||
		strings.TrimSpace(d.AssignedTo.Email) == "" ||
		d.DueDate == "" {
		return fmt.Errorf("%w: please fill all task fields", ErrValidation)
	}
	if d.Department != "" && !d.Department.Valid() {
		return fmt.Errorf("%w: unknown department %q", ErrValidation, d.Department)
	}
	return validateTaskFields(d.Name, d.AssignedTo, d.TimeEstimate, d.DueDate)
}

// singleLine reports whether s holds no line breaks. Task names end up in
// mail headers.
func singleLine(s string) bool {
	return !strings.ContainsAny(s, "\r\n")
}

// validateTaskFields checks the field formats shared by drafts and edited tasks.
func validateTaskFields(name string, assignee Assignee, estimate int, due Date) error {
	if !singleLine(name) || !singleLine(assignee.Name) {
		return fmt.Errorf("%w: names must be a single line", ErrValidation)
	}
	if !ValidEmail(assignee.Email) {
		return fmt.Errorf("%w: invalid assignee email %q", ErrValidation, assignee.Email)
	}
	if estimate < 0 {
		return fmt.Errorf("%w: time estimate must not be negative", ErrValidation)
	}
	if !due.Valid() {
		return fmt.Errorf("%w: invalid due date %q", ErrValidation, due)
	}
	return nil
}

// Validate checks the project fields and every task draft.
func (d ProjectDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" || d.LaunchDate == "" {
		return fmt.Errorf("%w: please fill project name and launch date", ErrValidation)
	}
	if !singleLine(d.Name) {
		return fmt.Errorf("%w: project name must be a single line", ErrValidation)
	}
	if !d.LaunchDate.Valid() {
		return fmt.Errorf("%w: invalid launch date %q", ErrValidation, d.LaunchDate)
	}
	for i, t := range d.Tasks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("task %d: %w", i+1, err)
		}
	}
	return nil
}

// NewTask turns a draft into a To Do task with the given id. An unset
// department defaults to the first one in form order.
func (d TaskDraft) NewTask(id string) Task {
	dept := d.Department
	if dept == "" {
		dept = Departments[0]
	}
	return Task{
		ID:           id,
		Name:         strings.TrimSpace(d.Name),
		AssignedTo:   d.AssignedTo,
		TimeEstimate: d.TimeEstimate,
		Status:       StatusToDo,
		Department:   dept,
		DueDate:      d.DueDate,
	}
}

// Validate checks the fields a patch sets. A patched task list replaces the
// stored one, so every task in it must be complete.
func (p ProjectPatch) Validate() error {
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return fmt.Errorf("%w: project name must not be empty", ErrValidation)
		}
		if !singleLine(*p.Name) {
			return fmt.Errorf("%w: project name must be a single line", ErrValidation)
		}
	}
	if p.LaunchDate != nil && !p.LaunchDate.Valid() {
		return fmt.Errorf("%w: invalid launch date %q", ErrValidation, *p.LaunchDate)
	}
	seen := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("%w: task id must not be empty", ErrValidation)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate task id %q", ErrValidation, t.ID)
		}
		seen[t.ID] = true

		if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.AssignedTo.Name) == "" {
			return fmt.Errorf("%w: task %s: please fill all task fields", ErrValidation, t.ID)
		}
		if !t.Status.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrValidation, t.Status)
		}
		if !t.Department.Valid() {
			return fmt.Errorf("%w: unknown department %q", ErrValidation, t.Department)
		}
		if err := validateTaskFields(t.Name, t.AssignedTo, t.TimeEstimate, t.DueDate); err != nil {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
	}
	return nil
}
