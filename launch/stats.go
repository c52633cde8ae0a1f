package launch

import "math"

// ProjectStats is a project together with the figures the dashboard shows for it.
type ProjectStats struct {
	Project
	Progress      int          `json:"progress"`
	TaskCount     int          `json:"taskCount"`
	IsAtRisk      bool         `json:"isAtRisk"`
	InvolvedDepts []Department `json:"involvedDepts"`
}

// Progress is the rounded percentage of done tasks, 0 for a project without tasks.
func Progress(p Project) int {
	if len(p.Tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range p.Tasks {
		if t.Status == StatusDone {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(len(p.Tasks)) * 100))
}

// IsAtRisk reports whether any task of p is overdue on today.
func IsAtRisk(p Project, today Date) bool {
	for _, t := range p.Tasks {
		if t.Overdue(today) {
			return true
		}
	}
	return false
}

// InvolvedDepartments returns the distinct departments of p's tasks in first-seen order.
func InvolvedDepartments(p Project) []Department {
	seen := make(map[Department]bool)
	depts := []Department{}
	for _, t := range p.Tasks {
		if seen[t.Department] {
			continue
		}
		seen[t.Department] = true
		depts = append(depts, t.Department)
	}
	return depts
}

// Stats computes the dashboard figures of p as of today.
func Stats(p Project, today Date) ProjectStats {
	return ProjectStats{
		Project:       p,
		Progress:      Progress(p),
		TaskCount:     len(p.Tasks),
		IsAtRisk:      IsAtRisk(p, today),
		InvolvedDepts: InvolvedDepartments(p),
	}
}

// StatsFor computes Stats for every project, keeping order.
func StatsFor(projects []Project, today Date) []ProjectStats {
	stats := make([]ProjectStats, 0, len(projects))
	for _, p := range projects {
		stats = append(stats, Stats(p, today))
	}
	return stats
}
