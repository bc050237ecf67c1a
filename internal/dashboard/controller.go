package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/loykin/botpanel/internal/logbuf"
	"github.com/loykin/botpanel/internal/metrics"
	"github.com/loykin/botpanel/internal/schedule"
	"github.com/loykin/botpanel/pkg/client"
)

// Defaults for Options.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultAlertTimeout = 5 * time.Second
	NeverPosted         = "Never"
)

// ErrCommandFailed wraps a command the bot answered with success=false.
var ErrCommandFailed = errors.New("command failed")

// API is the part of the bot client the controller needs.
type API interface {
	Do(ctx context.Context, cmd client.Command) (client.CommandResult, error)
	Stats(ctx context.Context) (client.Stats, error)
}

// Options wires a Controller. API and Surface are required.
type Options struct {
	API          API
	Surface      Surface
	Scheduler    schedule.Scheduler
	Now          func() time.Time
	Logger       *slog.Logger
	PollInterval time.Duration
	AlertTimeout time.Duration
	LogCapacity  int
}

// Controller reflects the bot's state into a Surface. It owns the run status,
// the log buffer and the alert slot.
//
// Poll results and push events write the same status slot; whichever lands
// last wins, so a stale poll response can briefly override a newer push.
type Controller struct {
	api          API
	surface      Surface
	sched        schedule.Scheduler
	now          func() time.Time
	logger       *slog.Logger
	pollInterval time.Duration
	alertTimeout time.Duration

	mu        sync.Mutex
	status    RunStatus
	logs      *logbuf.Buffer
	alert     *Alert
	alertTask schedule.Task
	busy      map[Element]bool

	actions  map[Action]func(context.Context) error
	handlers map[string]Handler
}

// State is a copy of the controller's state.
type State struct {
	Status RunStatus      `json:"status"`
	Log    []logbuf.Entry `json:"log"`
	Alert  *Alert         `json:"alert,omitempty"`
}

// New builds a controller and renders the initial unknown state.
func New(opts Options) (*Controller, error) {
	if opts.API == nil {
		return nil, errors.New("dashboard: API is required")
	}
	if opts.Surface == nil {
		return nil, errors.New("dashboard: Surface is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Scheduler == nil {
		return nil, errors.New("dashboard: Scheduler is required")
	}
	if opts.Now == nil {
		opts.Now = opts.Scheduler.Now
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.AlertTimeout <= 0 {
		opts.AlertTimeout = DefaultAlertTimeout
	}

	c := &Controller{
		api:          opts.API,
		surface:      opts.Surface,
		sched:        opts.Scheduler,
		now:          opts.Now,
		logger:       opts.Logger,
		pollInterval: opts.PollInterval,
		alertTimeout: opts.AlertTimeout,
		status:       StatusUnknown,
		logs:         logbuf.New(opts.LogCapacity),
		busy:         make(map[Element]bool),
	}
	c.actions = c.actionTable()
	c.handlers = c.handlerTable()

	c.mu.Lock()
	c.applyStatus(StatusUnknown)
	c.mu.Unlock()
	return c, nil
}

// Status returns the current run status.
func (c *Controller) Status() RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// State returns a snapshot of status, log and alert.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{Status: c.status, Log: c.logs.Entries()}
	if c.alert != nil {
		a := *c.alert
		s.Alert = &a
	}
	return s
}

// commandSpec describes how one command is presented.
type commandSpec struct {
	cmd        client.Command
	button     Element
	okText     string // shown when the server sends no message
	failText   string // prefix for transport failures
	onSuccess  func()
	refreshNow bool
}

// StartBot starts the bot and marks it running on success.
func (c *Controller) StartBot(ctx context.Context) error {
	return c.run(ctx, commandSpec{
		cmd: client.CommandStart, button: ElementStartBot,
		okText: "Bot started", failText: "Failed to start bot",
		onSuccess: func() { c.UpdateBotStatus(string(StatusRunning)) },
	})
}

// StopBot stops the bot and marks it stopped on success.
func (c *Controller) StopBot(ctx context.Context) error {
	return c.run(ctx, commandSpec{
		cmd: client.CommandStop, button: ElementStopBot,
		okText: "Bot stopped", failText: "Failed to stop bot",
		onSuccess: func() { c.UpdateBotStatus(string(StatusStopped)) },
	})
}

// ManualPost publishes a post now and refreshes stats on success.
func (c *Controller) ManualPost(ctx context.Context) error {
	return c.run(ctx, commandSpec{
		cmd: client.CommandPost, button: ElementManualPost,
		okText: "Post created", failText: "Failed to create post",
		refreshNow: true,
	})
}

// ManualEngage runs an engagement round now and refreshes stats on success.
func (c *Controller) ManualEngage(ctx context.Context) error {
	return c.run(ctx, commandSpec{
		cmd: client.CommandEngage, button: ElementManualEngage,
		okText: "Engagement complete", failText: "Failed to engage",
		refreshNow: true,
	})
}

// run issues one command. Loading is cleared on every exit path; the stats
// refresh of manual actions happens after that.
func (c *Controller) run(ctx context.Context, spec commandSpec) error {
	err := c.issue(ctx, spec)
	if err == nil && spec.refreshNow {
		_ = c.UpdateStats(ctx)
	}
	return err
}

func (c *Controller) issue(ctx context.Context, spec commandSpec) error {
	c.setLoading(spec.button, true)
	defer c.setLoading(spec.button, false)

	started := time.Now()
	res, err := c.api.Do(ctx, spec.cmd)
	elapsed := time.Since(started).Seconds()

	if err != nil {
		metrics.ObserveCommand(string(spec.cmd), "transport_error", elapsed)
		c.logger.Warn("bot command failed", "command", spec.cmd, "error", err)
		c.ShowAlert(spec.failText+": "+err.Error(), SeverityError)
		return fmt.Errorf("%s: %w", spec.cmd, err)
	}

	msg := res.Summary()
	if !res.Success {
		metrics.ObserveCommand(string(spec.cmd), "failure", elapsed)
		if msg == "" {
			msg = spec.failText
		}
		c.ShowAlert(msg, SeverityError)
		return fmt.Errorf("%w: %s", ErrCommandFailed, msg)
	}

	metrics.ObserveCommand(string(spec.cmd), "success", elapsed)
	if msg == "" {
		msg = spec.okText
	}
	c.ShowAlert(msg, SeveritySuccess)
	if spec.onSuccess != nil {
		spec.onSuccess()
	}
	return nil
}

// UpdateStats fetches a stats snapshot and projects it. Failures are logged
// and otherwise swallowed by callers; the error is returned for inspection.
func (c *Controller) UpdateStats(ctx context.Context) error {
	stats, err := c.api.Stats(ctx)
	if err != nil {
		metrics.IncStatsPoll("error")
		c.logger.Warn("Failed to update stats", "error", err)
		return err
	}
	metrics.IncStatsPoll("ok")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setText(ElementLastPost, stats.LastPostOr(NeverPosted))
	c.setText(ElementPostsToday, humanize.Comma(int64(stats.PostsTodayOr(0))))
	c.setText(ElementEngagementsToday, humanize.Comma(int64(stats.EngagementsTodayOr(0))))
	c.setText(ElementContentPool, humanize.Comma(int64(stats.ContentPoolSizeOr(0))))
	c.applyStatus(ParseRunStatus(stats.Status))
	return nil
}

// StartPolling refreshes stats now and then every poll interval until the
// returned task is cancelled.
func (c *Controller) StartPolling(ctx context.Context) schedule.Task {
	_ = c.UpdateStats(ctx)
	return c.sched.Every(c.pollInterval, func() {
		if ctx.Err() != nil {
			return
		}
		_ = c.UpdateStats(ctx)
	})
}

// UpdateBotStatus projects a status string onto the status display and the
// start/stop buttons. Any unrecognised value behaves like stopped and reads Unknown.
func (c *Controller) UpdateBotStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyStatus(ParseRunStatus(status))
}

func (c *Controller) applyStatus(s RunStatus) {
	if s != c.status {
		c.logger.Debug("bot status changed", "from", c.status, "to", s)
	}
	c.status = s
	metrics.SetBotStatus(string(s))
	c.setText(ElementStatus, s.Label())
	c.call(ElementStatus, c.surface.SetIndicator(ElementStatus, s.Indicator()))
	c.applyAffordance(ElementStartBot)
	c.applyAffordance(ElementStopBot)
}

// applyAffordance sets the status-derived enabled state of a button.
// Busy buttons stay disabled until their command returns.
func (c *Controller) applyAffordance(el Element) {
	if c.busy[el] {
		return
	}
	switch el {
	case ElementStartBot:
		c.call(el, c.surface.SetDisabled(el, c.status.Running()))
	case ElementStopBot:
		c.call(el, c.surface.SetDisabled(el, !c.status.Running()))
	default:
		c.call(el, c.surface.SetDisabled(el, false))
	}
}

func (c *Controller) setLoading(el Element, loading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if loading {
		c.busy[el] = true
	} else {
		delete(c.busy, el)
	}
	c.call(el, c.surface.SetLoading(el, loading))
	if !loading {
		c.applyAffordance(el)
	}
}

// AddLog appends a message stamped with the current time of day.
func (c *Controller) AddLog(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.logs.Append(logbuf.NewEntry(c.now(), message)) {
		metrics.IncLogEviction()
	}
	c.call(ElementLogContainer, c.surface.RenderLog(ElementLogContainer, c.logs.Entries()))
}

// ShowAlert replaces the visible alert and schedules its dismissal.
func (c *Controller) ShowAlert(message string, severity Severity) Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.alertTask != nil {
		c.alertTask.Cancel()
	}
	a := Alert{ID: uuid.NewString(), Message: message, Severity: severity, ShownAt: c.now()}
	c.alert = &a
	metrics.IncAlert(string(severity))
	c.call(ElementAlert, c.surface.ShowAlert(ElementAlert, a))
	c.alertTask = c.sched.After(c.alertTimeout, func() { c.dismissAlert(a.ID) })
	return a
}

// dismissAlert removes the alert identified by id if it is still shown.
func (c *Controller) dismissAlert(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.alert == nil || c.alert.ID != id {
		return
	}
	c.alert = nil
	c.alertTask = nil
	c.call(ElementAlert, c.surface.ClearAlert(ElementAlert, id))
}

func (c *Controller) setText(el Element, text string) {
	c.call(el, c.surface.SetText(el, text))
}

// call records a skipped update for a missing element.
func (c *Controller) call(el Element, ok bool) {
	if !ok {
		c.logger.Debug("display element missing, update skipped", "element", el)
	}
}
