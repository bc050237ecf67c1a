package schedule

import (
	"sync"
	"time"
)

// Fake is a manually advanced clock implementing Scheduler.
// Nothing fires until Advance is called.
type Fake struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []*fakeTask
}

type fakeTask struct {
	f      *Fake
	due    time.Time
	period time.Duration
	seq    int
	fn     func()
}

// NewFake returns a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) After(d time.Duration, fn func()) Task {
	return f.add(d, 0, fn)
}

// Every schedules fn every d. A non-positive d never fires.
func (f *Fake) Every(d time.Duration, fn func()) Task {
	if d <= 0 {
		return &fakeTask{f: f}
	}
	return f.add(d, d, fn)
}

func (f *Fake) add(d, period time.Duration, fn func()) *fakeTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTask{f: f, due: f.now.Add(d), period: period, seq: f.seq, fn: fn}
	f.tasks = append(f.tasks, t)
	return t
}

// Pending returns the number of tasks that will still fire.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

// Advance moves the clock forward by d, running every task that falls due in
// due-time order. Tasks scheduled by running tasks fire too if due in the window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	for {
		next := f.nextDue(target)
		if next == nil {
			break
		}
		f.now = next.due
		if next.period > 0 {
			next.due = next.due.Add(next.period)
		} else {
			f.remove(next)
		}
		f.mu.Unlock()
		next.fn()
		f.mu.Lock()
	}
	f.now = target
	f.mu.Unlock()
}

func (f *Fake) nextDue(limit time.Time) *fakeTask {
	var next *fakeTask
	for _, t := range f.tasks {
		if t.due.After(limit) {
			continue
		}
		if next == nil || t.due.Before(next.due) || (t.due.Equal(next.due) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

func (f *Fake) remove(t *fakeTask) bool {
	for i, c := range f.tasks {
		if c == t {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return true
		}
	}
	return false
}

func (t *fakeTask) Cancel() bool {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	return t.f.remove(t)
}
