// Package schedule runs the dashboard's timers: the repeating stats poll and the
// one-shot alert dismissals. Both are cancellable tasks so that tests can swap in
// a manual clock.
package schedule

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is a scheduled function that can be cancelled before it (next) fires.
type Task interface {
	// Cancel stops future runs. It reports whether the task was still pending.
	Cancel() bool
}

// Scheduler schedules one-shot and repeating tasks.
type Scheduler interface {
	After(d time.Duration, fn func()) Task
	Every(d time.Duration, fn func()) Task
	Now() time.Time
}

// Realtime schedules against the wall clock. Repeating tasks share one cron
// instance; a tick is skipped while the previous run of the same task is still busy.
// cron's constant-delay schedule rounds periods below one second up to one second.
type Realtime struct {
	cron *cron.Cron
}

// NewRealtime starts a wall clock scheduler. Call Stop to release it.
func NewRealtime(logger *slog.Logger) *Realtime {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Start()
	return &Realtime{cron: c}
}

func (r *Realtime) Now() time.Time { return time.Now() }

// After runs fn once after d.
func (r *Realtime) After(d time.Duration, fn func()) Task {
	return timerTask{t: time.AfterFunc(d, fn)}
}

// Every runs fn every d, starting d from now.
func (r *Realtime) Every(d time.Duration, fn func()) Task {
	id := r.cron.Schedule(cron.Every(d), cron.FuncJob(fn))
	return &cronTask{cron: r.cron, id: id}
}

// Stop halts repeating tasks. The returned context is done once running jobs finish.
func (r *Realtime) Stop() context.Context {
	return r.cron.Stop()
}

type timerTask struct{ t *time.Timer }

func (t timerTask) Cancel() bool { return t.t.Stop() }

type cronTask struct {
	cron      *cron.Cron
	id        cron.EntryID
	cancelled atomic.Bool
}

func (t *cronTask) Cancel() bool {
	if !t.cancelled.CompareAndSwap(false, true) {
		return false
	}
	t.cron.Remove(t.id)
	return true
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ logger *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("scheduler: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("scheduler: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
