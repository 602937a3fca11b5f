package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/starford/feedwise/internal/reminder"
)

// FakeTimers is a manual clock and reminder.TimerSource. Callbacks only run
// inside Advance, in due order, on the caller's goroutine.
type FakeTimers struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	owner   *FakeTimers
	seq     int
	when    time.Time
	period  time.Duration
	f       func()
	stopped bool
}

var (
	_ reminder.TimerSource = (*FakeTimers)(nil)
	_ reminder.Clock       = (*FakeTimers)(nil)
)

// NewFakeTimers returns a FakeTimers starting at now.
func NewFakeTimers(now time.Time) *FakeTimers {
	return &FakeTimers{now: now}
}

// Now implements reminder.Clock.
func (ft *FakeTimers) Now() time.Time {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.now
}

// AfterFunc implements reminder.TimerSource.
func (ft *FakeTimers) AfterFunc(d time.Duration, f func()) reminder.Handle {
	return ft.add(d, 0, f)
}

// Every implements reminder.TimerSource.
func (ft *FakeTimers) Every(d time.Duration, f func()) reminder.Handle {
	return ft.add(d, d, f)
}

func (ft *FakeTimers) add(d, period time.Duration, f func()) *fakeTimer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.seq++
	t := &fakeTimer{owner: ft, seq: ft.seq, when: ft.now.Add(d), period: period, f: f}
	ft.timers = append(ft.timers, t)
	return t
}

// Stop implements reminder.Handle.
func (t *fakeTimer) Stop() {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	t.stopped = true
}

// Advance moves the clock forward by d, running every callback that becomes
// due. Periodic timers are rescheduled before their callback runs.
func (ft *FakeTimers) Advance(d time.Duration) {
	ft.mu.Lock()
	target := ft.now.Add(d)
	ft.mu.Unlock()

	for {
		ft.mu.Lock()
		next := ft.nextDue(target)
		if next == nil {
			ft.now = target
			ft.mu.Unlock()
			return
		}
		ft.now = next.when
		f := next.f
		if next.period > 0 {
			next.when = next.when.Add(next.period)
		} else {
			next.stopped = true
		}
		ft.mu.Unlock()
		f()
	}
}

// Active returns the number of armed timers.
func (ft *FakeTimers) Active() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	n := 0
	for _, t := range ft.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// nextDue returns the earliest live timer due at or before target. Caller
// holds ft.mu.
func (ft *FakeTimers) nextDue(target time.Time) *fakeTimer {
	live := ft.timers[:0]
	for _, t := range ft.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	ft.timers = live
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].when.Equal(live[j].when) {
			return live[i].seq < live[j].seq
		}
		return live[i].when.Before(live[j].when)
	})
	if len(live) == 0 || live[0].when.After(target) {
		return nil
	}
	return live[0]
}
