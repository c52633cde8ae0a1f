package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/CrowderSoup/launchpad/alerts"
	"github.com/CrowderSoup/launchpad/board"
	"github.com/CrowderSoup/launchpad/launch"
	"github.com/CrowderSoup/launchpad/services"
)

// DefaultBannerTTL is how long a banner stays up.
const DefaultBannerTTL = 3 * time.Second

// Banner texts.
const (
	msgLoadFailed     = "Could not load projects."
	msgCreated        = "Project created successfully!"
	msgCreateFailed   = "Failed to create project."
	msgUpdated        = "Project updated successfully!"
	msgUpdateFailed   = "Failed to update project."
	msgMoveFailed     = "Failed to update task."
	msgNotifySent     = "Notification sent!"
	msgNotifyFailed   = "Failed to send notification."
	msgAlertGone      = "That alert is no longer active."
	msgProjectMissing = "Project not found."
)

// Store is the project store the orchestrator reads from and writes to.
type Store interface {
	SubscribeProjects(ctx context.Context, session launch.Session) <-chan services.ProjectSnapshot
	CreateProject(ctx context.Context, name string, launchDate launch.Date, tasks []launch.TaskDraft) (string, error)
	UpdateProjectDetails(ctx context.Context, projectID string, patch launch.ProjectPatch) error
	UpdateTaskStatus(ctx context.Context, projectID, taskID string, status launch.Status) error
}

// Notifier sends the overdue mail for an alert.
type Notifier interface {
	Notify(ctx context.Context, alert launch.Alert) error
}

// Options tunes an Orchestrator. Zero values pick the defaults.
type Options struct {
	Theme          Theme
	Clock          func() time.Time
	BannerTTL      time.Duration
	Logger         *slog.Logger
	Deriver        alerts.Deriver
	SerializeMoves bool
	// OnChange receives every new State in order.
	OnChange func(State)
}

// Orchestrator owns the view state for one session. All methods are safe to
// call from any goroutine.
type Orchestrator struct {
	session  launch.Session
	store    Store
	notifier Notifier
	board    *board.Board
	deriver  alerts.Deriver
	clock    func() time.Time
	ttl      time.Duration
	logger   *slog.Logger
	onChange func(State)

	mu          sync.Mutex
	mode        Mode
	theme       Theme
	selectedID  string
	search      string
	loading     bool
	today       launch.Date
	alerts      []launch.Alert
	stats       []launch.ProjectStats
	statsValid  bool
	banner      *Banner
	bannerSeq   uint64
	bannerTimer *time.Timer
	cancel      context.CancelFunc
	done        chan struct{}
	closed      bool

	emitMu sync.Mutex
}

// New builds an orchestrator for session. Call Start to begin following
// the project store.
func New(session launch.Session, store Store, notifier Notifier, opts Options) *Orchestrator {
	o := &Orchestrator{
		session:  session,
		store:    store,
		notifier: notifier,
		deriver:  opts.Deriver,
		clock:    opts.Clock,
		ttl:      opts.BannerTTL,
		logger:   opts.Logger,
		onChange: opts.OnChange,
		mode:     ModeDashboard,
		theme:    opts.Theme,
		loading:  true,
		alerts:   []launch.Alert{},
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.ttl <= 0 {
		o.ttl = DefaultBannerTTL
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.theme == "" {
		o.theme = ThemeDark
	}

	boardOpts := []board.Option{board.WithLogger(o.logger)}
	if opts.SerializeMoves {
		boardOpts = append(boardOpts, board.WithSerializedWrites())
	}
	o.board = board.New(store, boardOpts...)
	o.today = launch.DateOf(o.clock())
	return o
}

// Start subscribes to the project store. It does nothing when already
// started or stopped.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.cancel != nil || o.closed {
		o.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	done := o.done
	o.mu.Unlock()

	snaps := o.store.SubscribeProjects(ctx, o.session)
	go func() {
		defer close(done)
		for snap := range snaps {
			o.ApplySnapshot(snap)
		}
	}()
}

// Stop ends the subscription. Writes already in flight finish but their
// outcome is no longer reported.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	cancel, done := o.cancel, o.done
	if o.bannerTimer != nil {
		o.bannerTimer.Stop()
	}
	o.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// ApplySnapshot installs an authoritative snapshot. A failed read falls
// back to an empty project list.
func (o *Orchestrator) ApplySnapshot(snap services.ProjectSnapshot) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.loading = false
	if snap.Err != nil {
		o.logger.Error("project subscription failed", slog.String("error", snap.Err.Error()))
		o.board.Reconcile([]launch.Project{})
		o.setBannerLocked(msgLoadFailed, BannerError)
	} else {
		o.board.Reconcile(snap.Projects)
	}
	o.rederiveLocked()
	o.resolveSelectionLocked()
	o.mu.Unlock()

	o.emit()
}

// Refresh recomputes date-dependent state such as alerts and at-risk flags.
func (o *Orchestrator) Refresh() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	today := launch.DateOf(o.clock())
	changed := today != o.today
	if changed {
		o.rederiveLocked()
	}
	o.mu.Unlock()

	if changed {
		o.emit()
	}
}

// rederiveLocked rebuilds the alert set from the rendered board and drops
// memoized stats.
func (o *Orchestrator) rederiveLocked() {
	o.today = launch.DateOf(o.clock())
	if o.loading {
		return
	}
	o.alerts = o.deriver.Derive(o.board.Projects(), o.today)
	o.statsValid = false
}

// resolveSelectionLocked drops a selection whose project disappeared.
func (o *Orchestrator) resolveSelectionLocked() {
	if o.selectedID == "" {
		return
	}
	if _, ok := o.board.Project(o.selectedID); ok {
		return
	}
	o.selectedID = ""
	if o.mode == ModeProject {
		o.mode = ModeDashboard
	}
}

func (o *Orchestrator) statsLocked() []launch.ProjectStats {
	if !o.statsValid {
		o.stats = launch.StatsFor(o.board.Projects(), o.today)
		o.statsValid = true
	}
	return o.stats
}

// Session is the identity the orchestrator was built for.
func (o *Orchestrator) Session() launch.Session {
	return o.session
}

func (o *Orchestrator) Mode() Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

func (o *Orchestrator) Theme() Theme {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.theme
}

// Loading reports whether no snapshot has arrived yet.
func (o *Orchestrator) Loading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loading
}

// Banner returns the banner currently shown, if any.
func (o *Orchestrator) Banner() *Banner {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.banner == nil {
		return nil
	}
	b := *o.banner
	return &b
}

// Alerts returns the current alert set.
func (o *Orchestrator) Alerts() []launch.Alert {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]launch.Alert(nil), o.alerts...)
}

// Alert finds a current alert by id.
func (o *Orchestrator) Alert(id string) (launch.Alert, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return alerts.Find(o.alerts, id)
}

// AlertForTask finds the current alert raised for a task.
func (o *Orchestrator) AlertForTask(projectID, taskID string) (launch.Alert, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return alerts.FindTask(o.alerts, projectID, taskID)
}

// Stats returns the memoized dashboard figures.
func (o *Orchestrator) Stats() []launch.ProjectStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]launch.ProjectStats(nil), o.statsLocked()...)
}

// Selected returns the selected project as rendered.
func (o *Orchestrator) Selected() (launch.Project, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.selectedID == "" {
		return launch.Project{}, false
	}
	return o.board.Project(o.selectedID)
}

// State snapshots everything needed to render.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := State{
		Mode:     o.mode,
		Theme:    o.theme,
		Session:  o.session,
		Loading:  o.loading,
		Today:    o.today,
		Projects: append([]launch.ProjectStats{}, o.statsLocked()...),
		Alerts:   append([]launch.Alert{}, o.alerts...),
		Search:   o.search,
	}
	if o.banner != nil {
		b := *o.banner
		st.Banner = &b
	}
	if p, ok := o.board.Project(o.selectedID); ok && o.selectedID != "" {
		shown := p
		shown.Tasks = board.Filter(p.Tasks, o.search)
		st.Selected = &ProjectView{
			ProjectStats: launch.Stats(p, o.today),
			Columns:      board.Columns(shown),
		}
	}
	return st
}

func (o *Orchestrator) emit() {
	if o.onChange == nil {
		return
	}
	o.emitMu.Lock()
	defer o.emitMu.Unlock()

	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return
	}
	o.onChange(o.State())
}

// setBannerLocked shows a banner and schedules its dismissal.
func (o *Orchestrator) setBannerLocked(message string, kind BannerKind) {
	o.bannerSeq++
	seq := o.bannerSeq
	o.banner = &Banner{Message: message, Kind: kind}

	if o.bannerTimer != nil {
		o.bannerTimer.Stop()
	}
	o.bannerTimer = time.AfterFunc(o.ttl, func() {
		o.mu.Lock()
		if o.bannerSeq != seq || o.banner == nil {
			o.mu.Unlock()
			return
		}
		o.banner = nil
		o.mu.Unlock()
		o.emit()
	})
}

func (o *Orchestrator) showBanner(message string, kind BannerKind) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.setBannerLocked(message, kind)
	o.mu.Unlock()
	o.emit()
}

// DismissBanner hides the banner before it times out.
func (o *Orchestrator) DismissBanner() {
	o.mu.Lock()
	o.bannerSeq++
	o.banner = nil
	if o.bannerTimer != nil {
		o.bannerTimer.Stop()
	}
	o.mu.Unlock()
	o.emit()
}

// SelectProject opens a project's board. Unknown ids leave the view as is.
func (o *Orchestrator) SelectProject(id string) bool {
	o.mu.Lock()
	_, ok := o.board.Project(id)
	if ok {
		o.selectedID = id
		o.search = ""
		o.mode = ModeProject
	}
	o.mu.Unlock()

	if !ok {
		o.showBanner(msgProjectMissing, BannerError)
		return false
	}
	o.emit()
	return true
}

func (o *Orchestrator) setMode(mode Mode) {
	o.mu.Lock()
	o.mode = mode
	if mode != ModeProject {
		o.selectedID = ""
		o.search = ""
	}
	o.mu.Unlock()
	o.emit()
}

func (o *Orchestrator) ReturnToDashboard() { o.setMode(ModeDashboard) }

func (o *Orchestrator) StartCreateFlow() { o.setMode(ModeCreate) }

func (o *Orchestrator) ShowAlerts() { o.setMode(ModeAlerts) }

// ToggleTheme flips between dark and light.
func (o *Orchestrator) ToggleTheme() {
	o.mu.Lock()
	if o.theme == ThemeDark {
		o.theme = ThemeLight
	} else {
		o.theme = ThemeDark
	}
	o.mu.Unlock()
	o.emit()
}

// SetSearch filters the selected board's tasks by name.
func (o *Orchestrator) SetSearch(query string) {
	o.mu.Lock()
	o.search = query
	o.mu.Unlock()
	o.emit()
}

// validationMessage turns a validation error into banner text.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, launch.ErrValidation.Error()+": "); i >= 0 {
		msg = msg[i+len(launch.ErrValidation.Error())+2:]
	}
	if msg == "" {
		return "Invalid input."
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}

// SubmitNewProject validates and stores a draft, then returns to the
// dashboard. Every failure becomes a banner as well as the returned error.
func (o *Orchestrator) SubmitNewProject(ctx context.Context, draft launch.ProjectDraft) (string, error) {
	if err := draft.Validate(); err != nil {
		o.showBanner(validationMessage(err), BannerError)
		return "", err
	}

	id, err := o.store.CreateProject(ctx, strings.TrimSpace(draft.Name), draft.LaunchDate, draft.Tasks)
	if err != nil {
		o.showBanner(msgCreateFailed, BannerError)
		return "", err
	}

	o.mu.Lock()
	if !o.closed && o.mode == ModeCreate {
		o.mode = ModeDashboard
	}
	o.mu.Unlock()
	o.showBanner(msgCreated, BannerSuccess)
	return id, nil
}

// EditProject overwrites a project's name, launch date or tasks.
func (o *Orchestrator) EditProject(ctx context.Context, id string, patch launch.ProjectPatch) error {
	if err := patch.Validate(); err != nil {
		o.showBanner(validationMessage(err), BannerError)
		return err
	}

	if err := o.store.UpdateProjectDetails(ctx, id, patch); err != nil {
		o.showBanner(msgUpdateFailed, BannerError)
		return err
	}
	o.showBanner(msgUpdated, BannerSuccess)
	return nil
}

// MoveTask renders a status change at once and writes it in the
// background. The channel yields the write's outcome; no-op moves yield nil
// straight away.
func (o *Orchestrator) MoveTask(ctx context.Context, projectID, taskID string, status launch.Status) <-chan error {
	result := make(chan error, 1)

	o.mu.Lock()
	_, req, err := o.board.Move(projectID, taskID, status)
	if err == nil && req != nil {
		o.rederiveLocked()
	}
	o.mu.Unlock()

	if err != nil {
		o.showBanner(msgMoveFailed, BannerError)
		result <- err
		return result
	}
	if req == nil {
		result <- nil
		return result
	}

	o.emit()

	go func() {
		err := o.board.Commit(ctx, *req)
		if err != nil {
			o.showBanner(msgMoveFailed, BannerError)
		}
		result <- err
	}()
	return result
}

// RequestNotify mails the assignee behind alert in the background. The
// alert stays in the set either way, so it can be notified again.
func (o *Orchestrator) RequestNotify(ctx context.Context, alert launch.Alert) <-chan error {
	result := make(chan error, 1)

	if o.notifier == nil {
		err := fmt.Errorf("%w: no notifier configured", launch.ErrNotification)
		o.showBanner(msgNotifyFailed, BannerError)
		result <- err
		return result
	}

	o.showBanner(fmt.Sprintf("Notifying %s...", alert.RecipientEmail), BannerSuccess)

	go func() {
		err := o.notifier.Notify(ctx, alert)
		if err != nil {
			if !errors.Is(err, launch.ErrNotification) {
				err = fmt.Errorf("%w: %w", launch.ErrNotification, err)
			}
			o.showBanner(msgNotifyFailed, BannerError)
		} else {
			o.showBanner(msgNotifySent, BannerSuccess)
		}
		result <- err
	}()
	return result
}

// RequestNotifyID resolves a current alert by id, then by task, and
// notifies it.
func (o *Orchestrator) RequestNotifyID(ctx context.Context, alertID, projectID, taskID string) <-chan error {
	a, ok := o.Alert(alertID)
	if !ok && taskID != "" {
		a, ok = o.AlertForTask(projectID, taskID)
	}
	if !ok {
		result := make(chan error, 1)
		o.showBanner(msgAlertGone, BannerError)
		result <- fmt.Errorf("alert %s: %w", alertID, launch.ErrNotFound)
		return result
	}
	return o.RequestNotify(ctx, a)
}
