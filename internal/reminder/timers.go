package reminder

import (
	"context"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Handle is an armed timer that can be cancelled. Stop on an already fired
// or stopped handle is a no-op.
type Handle interface {
	Stop()
}

// TimerSource arms one-shot and periodic callbacks.
type TimerSource interface {
	AfterFunc(d time.Duration, f func()) Handle
	Every(d time.Duration, f func()) Handle
}

// Clock reports the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// SystemTimers is the production TimerSource. One-shots use the runtime
// timer; periodic callbacks run on a robfig/cron scheduler so that a daily
// repeat is a single cron entry.
type SystemTimers struct {
	cron *rcron.Cron
}

// NewSystemTimers starts the cron scheduler backing Every.
func NewSystemTimers() *SystemTimers {
	c := rcron.New()
	c.Start()
	return &SystemTimers{cron: c}
}

// Now implements Clock.
func (t *SystemTimers) Now() time.Time { return time.Now() }

// AfterFunc implements TimerSource.
func (t *SystemTimers) AfterFunc(d time.Duration, f func()) Handle {
	return timerHandle{time.AfterFunc(d, f)}
}

// Every implements TimerSource. The first run happens one period after the call.
func (t *SystemTimers) Every(d time.Duration, f func()) Handle {
	id := t.cron.Schedule(rcron.Every(d), rcron.FuncJob(f))
	return cronHandle{cron: t.cron, id: id}
}

// Stop halts the cron scheduler. The returned context is done once running
// jobs have completed.
func (t *SystemTimers) Stop() context.Context {
	return t.cron.Stop()
}

type timerHandle struct{ t *time.Timer }

func (h timerHandle) Stop() { h.t.Stop() }

type cronHandle struct {
	cron *rcron.Cron
	id   rcron.EntryID
}

func (h cronHandle) Stop() { h.cron.Remove(h.id) }

// NextOccurrence returns today's hour:minute in now's location, or the same
// wall-clock time tomorrow if that is not strictly after now.
func NextOccurrence(now time.Time, hour, minute int) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
