// Package reminder arms daily feeding reminders for pet profiles.
//
// Every meal time of a profile owns a slot. A slot holds at most one one-shot
// timer, armed for the next occurrence of the meal time, and once that fires,
// at most one 24h repeating timer started from the fire instant. The
// Scheduler is the only owner of the timer registry.
package reminder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/feedwise/internal/apperr"
	"github.com/starford/feedwise/internal/models"
	"github.com/starford/feedwise/internal/nutrition"
)

// Day is the fixed repeat period. It does not follow DST shifts.
const Day = 24 * time.Hour

type slotKey struct {
	profileID int64
	mealIndex int
	daily     bool
}

type armed struct {
	handle Handle
	gen    uint64
}

// Counts is the number of armed handles of each kind.
type Counts struct {
	OneShot int `json:"oneShot"`
	Daily   int `json:"daily"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source used to compute next occurrences.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithIcon sets the icon reference attached to every notification.
func WithIcon(icon string) Option {
	return func(s *Scheduler) { s.icon = icon }
}

// WithVibrate sets the vibration pattern attached to every notification.
func WithVibrate(pattern []int) Option {
	return func(s *Scheduler) { s.vibrate = append([]int(nil), pattern...) }
}

// Scheduler owns the armed reminder timers.
type Scheduler struct {
	timers TimerSource
	sink   Sink
	render Renderer
	clock  Clock
	logger *slog.Logger

	icon    string
	vibrate []int

	mu    sync.Mutex
	gen   uint64
	slots map[slotKey]armed
}

// New creates a Scheduler delivering to sink.
func New(timers TimerSource, sink Sink, render Renderer, opts ...Option) *Scheduler {
	s := &Scheduler{
		timers:  timers,
		sink:    sink,
		render:  render,
		logger:  slog.Default(),
		icon:    DefaultIcon,
		vibrate: DefaultVibrate,
		slots:   make(map[slotKey]armed),
	}
	if c, ok := timers.(Clock); ok {
		s.clock = c
	}
	for _, o := range opts {
		o(s)
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	return s
}

// ScheduleAll wipes every handle of p and arms one one-shot per meal time.
//
// If the sink denies permission nothing is armed and nil is returned. A meal
// time that is not HH:MM fails the whole call before anything is armed.
func (s *Scheduler) ScheduleAll(ctx context.Context, p models.Profile) error {
	if p.ID <= 0 {
		return apperr.Validation(errors.New("profile has no id"))
	}
	s.Cancel(p.ID)

	if !s.sink.RequestPermission(ctx) {
		s.logger.Debug("reminder: permission denied", slog.Int64("profile_id", p.ID))
		return nil
	}

	type slot struct {
		hour, minute int
		clock        string
	}
	times := models.ParseMealTimes(p.MealTimes...)
	slots := make([]slot, 0, len(times))
	for _, mt := range times {
		h, m, err := models.ParseClock(mt)
		if err != nil {
			return apperr.Validation(err)
		}
		slots = append(slots, slot{hour: h, minute: m, clock: mt})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for idx, sl := range slots {
		key := slotKey{profileID: p.ID, mealIndex: idx}
		if prev, ok := s.slots[key]; ok {
			// A concurrent ScheduleAll for the same profile may have won the race.
			prev.handle.Stop()
		}
		s.gen++
		gen := s.gen
		mealTime := sl.clock
		delay := NextOccurrence(now, sl.hour, sl.minute).Sub(now)
		h := s.timers.AfterFunc(delay, func() { s.fireOnce(key, gen, p, mealTime) })
		s.slots[key] = armed{handle: h, gen: gen}
	}

	s.logger.Debug("reminder: armed",
		slog.Int64("profile_id", p.ID),
		slog.Int("meals", len(slots)))
	return nil
}

// Cancel stops every handle of the profile. Unknown ids are a no-op.
func (s *Scheduler) Cancel(profileID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, a := range s.slots {
		if key.profileID == profileID {
			a.handle.Stop()
			delete(s.slots, key)
		}
	}
}

// CancelAll stops every handle.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, a := range s.slots {
		a.handle.Stop()
		delete(s.slots, key)
	}
}

// Armed returns the handle counts of one profile.
func (s *Scheduler) Armed(profileID int64) Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c Counts
	for key := range s.slots {
		if key.profileID != profileID {
			continue
		}
		if key.daily {
			c.Daily++
		} else {
			c.OneShot++
		}
	}
	return c
}

// Total returns the handle counts across all profiles.
func (s *Scheduler) Total() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c Counts
	for key := range s.slots {
		if key.daily {
			c.Daily++
		} else {
			c.OneShot++
		}
	}
	return c
}

// fireOnce delivers the first reminder of a slot and hands the slot over to
// a daily repeat carrying the same recommendation.
func (s *Scheduler) fireOnce(key slotKey, gen uint64, p models.Profile, mealTime string) {
	rec, err := nutrition.Recommend(p)
	if err != nil {
		s.logger.Warn("reminder: recommend failed",
			slog.Int64("profile_id", p.ID),
			slog.String("error", err.Error()))
		return
	}
	n := s.notification(p, rec, key.mealIndex, mealTime)

	s.mu.Lock()
	cur, ok := s.slots[key]
	if !ok || cur.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.slots, key)

	daily := key
	daily.daily = true
	if prev, ok := s.slots[daily]; ok {
		prev.handle.Stop()
	}
	s.gen++
	dgen := s.gen
	repeat := n
	repeat.Data.Daily = true
	h := s.timers.Every(Day, func() { s.fireDaily(daily, dgen, repeat) })
	s.slots[daily] = armed{handle: h, gen: dgen}
	s.mu.Unlock()

	s.show(n)
}

func (s *Scheduler) fireDaily(key slotKey, gen uint64, n Notification) {
	s.mu.Lock()
	cur, ok := s.slots[key]
	live := ok && cur.gen == gen
	s.mu.Unlock()
	if !live {
		return
	}
	s.show(n)
}

func (s *Scheduler) show(n Notification) {
	n.Data.FiredAt = s.clock.Now()
	err := s.sink.Show(context.Background(), n)
	switch {
	case err == nil:
		s.logger.Info("reminder: sent",
			slog.Int64("profile_id", n.Data.ProfileID),
			slog.Int("meal_index", n.Data.MealIndex),
			slog.Bool("daily", n.Data.Daily))
	case errors.Is(err, apperr.ErrPermissionDenied):
		s.logger.Debug("reminder: permission denied", slog.String("tag", n.Tag))
	default:
		s.logger.Warn("reminder: show failed",
			slog.String("tag", n.Tag),
			slog.String("error", err.Error()))
	}
}

func (s *Scheduler) notification(p models.Profile, rec nutrition.Recommendation, idx int, mealTime string) Notification {
	title, body := s.render.Render(p, rec)
	return Notification{
		Title:   title,
		Body:    body,
		Tag:     Tag(p.ID, idx),
		Icon:    s.icon,
		Vibrate: s.vibrate,
		Data: Metadata{
			ProfileID: p.ID,
			MealIndex: idx,
			MealTime:  mealTime,
		},
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
