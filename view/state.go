// Package view drives one signed-in user's dashboard: which screen is shown,
// the live project list, overdue alerts, and the transient banner that
// reports the outcome of every action.
package view

import (
	"github.com/CrowderSoup/launchpad/board"
	"github.com/CrowderSoup/launchpad/launch"
)

// Mode is the screen currently shown.
type Mode string

const (
	ModeDashboard Mode = "dashboard"
	ModeCreate    Mode = "create"
	ModeProject   Mode = "project"
	ModeAlerts    Mode = "alerts"
)

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

type BannerKind string

const (
	BannerSuccess BannerKind = "success"
	BannerError   BannerKind = "error"
)

// Banner is a short-lived status message.
type Banner struct {
	Message string     `json:"message"`
	Kind    BannerKind `json:"type"`
}

// ProjectView is the selected project with its board lanes.
type ProjectView struct {
	launch.ProjectStats
	Columns []board.Column `json:"columns"`
}

// State is everything needed to render the dashboard at one moment.
type State struct {
	Mode     Mode                  `json:"mode"`
	Theme    Theme                 `json:"theme"`
	Session  launch.Session        `json:"session"`
	Loading  bool                  `json:"loading"`
	Today    launch.Date           `json:"today"`
	Projects []launch.ProjectStats `json:"projects"`
	Alerts   []launch.Alert        `json:"alerts"`
	Selected *ProjectView          `json:"selected,omitempty"`
	Search   string                `json:"search,omitempty"`
	Banner   *Banner               `json:"banner,omitempty"`
}
