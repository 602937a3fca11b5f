// Package feeding coordinates the profile store, the reminder scheduler and
// the derived views. It is the single entry point used by the HTTP API, the
// MCP server and the import inbox.
package feeding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/feedwise/internal/calendar"
	"github.com/starford/feedwise/internal/locale"
	"github.com/starford/feedwise/internal/models"
	"github.com/starford/feedwise/internal/nutrition"
	"github.com/starford/feedwise/internal/reminder"
	"github.com/starford/feedwise/internal/schedule"
	"github.com/starford/feedwise/internal/storage"
	"github.com/starford/feedwise/internal/store"
)

// Scheduler is the subset of *reminder.Scheduler the service drives.
type Scheduler interface {
	ScheduleAll(ctx context.Context, p models.Profile) error
	Cancel(profileID int64)
	CancelAll()
	Armed(profileID int64) reminder.Counts
	Total() reminder.Counts
}

var _ Scheduler = (*reminder.Scheduler)(nil)

// Publisher receives profile change notifications.
type Publisher interface {
	PublishProfileEvent(kind string, id int64)
	PublishImport(count int)
}

// ProfileCard is a profile with its derived plan and localized labels.
type ProfileCard struct {
	models.Profile
	Recommendation *nutrition.Recommendation `json:"recommendation,omitempty"`
	Labels         locale.Labels             `json:"labels"`
	Reminders      reminder.Counts           `json:"reminders"`
}

// ScheduleEntry is a ScheduleView item with its localized portion text.
type ScheduleEntry struct {
	schedule.Item
	Food string `json:"food"`
}

// Option configures a Service.
type Option func(*Service)

// WithScheduler enables reminder arming. Without it the service is read-only
// with respect to reminders.
func WithScheduler(s Scheduler) Option {
	return func(svc *Service) { svc.sched = s }
}

// WithPublisher sets the receiver of profile change events.
func WithPublisher(p Publisher) Option {
	return func(svc *Service) { svc.pub = p }
}

// WithBackups sets the directory backups are written to.
func WithBackups(p storage.Provider) Option {
	return func(svc *Service) { svc.backups = p }
}

// WithBackupRetention keeps only the newest n backups. Zero keeps all.
func WithBackupRetention(n int) Option {
	return func(svc *Service) { svc.keep = n }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) { svc.logger = l }
}

// Service implements the feeding operations.
type Service struct {
	store   store.ProfileStore
	tr      *locale.Translator
	sched   Scheduler
	pub     Publisher
	backups storage.Provider
	keep    int
	now     func() time.Time
	logger  *slog.Logger

	// mu is held across every store mutation and the (re)arming that
	// follows it, so reminders always match the stored state.
	mu sync.Mutex
}

// NewService creates a feeding service.
func NewService(st store.ProfileStore, tr *locale.Translator, opts ...Option) *Service {
	s := &Service{
		store:  st,
		tr:     tr,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Translator returns the translator used for labels and reminders.
func (s *Service) Translator() *locale.Translator { return s.tr }

// CreateProfile stores a new profile and arms its reminders when enabled.
// The profile stays stored when arming fails; the failure is logged and the
// card reports no armed reminders.
func (s *Service) CreateProfile(ctx context.Context, p models.Profile) (ProfileCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added, err := s.store.Add(ctx, p)
	if err != nil {
		return ProfileCard{}, err
	}
	s.arm(ctx, added)
	s.publish("created", added.ID)
	return s.card(added), nil
}

// UpdateProfile replaces a stored profile and re-arms its reminders.
func (s *Service) UpdateProfile(ctx context.Context, p models.Profile) (ProfileCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.store.Update(ctx, p)
	if err != nil {
		return ProfileCard{}, err
	}
	if s.sched != nil {
		s.sched.Cancel(updated.ID)
	}
	s.arm(ctx, updated)
	s.publish("updated", updated.ID)
	return s.card(updated), nil
}

// DeleteProfile removes a profile and cancels its reminders. Unknown ids are
// not an error.
func (s *Service) DeleteProfile(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Remove(ctx, id); err != nil {
		return err
	}
	if s.sched != nil {
		s.sched.Cancel(id)
	}
	s.publish("deleted", id)
	return nil
}

// GetProfile returns one profile card.
func (s *Service) GetProfile(ctx context.Context, id int64) (ProfileCard, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return ProfileCard{}, err
	}
	return s.card(p), nil
}

// ListProfiles returns every profile card in id order.
func (s *Service) ListProfiles(ctx context.Context) ([]ProfileCard, error) {
	profiles, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	cards := make([]ProfileCard, 0, len(profiles))
	for _, p := range profiles {
		cards = append(cards, s.card(p))
	}
	return cards, nil
}

// Recommend returns the plan of a stored profile.
func (s *Service) Recommend(ctx context.Context, id int64) (nutrition.Recommendation, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nutrition.Recommendation{}, err
	}
	return nutrition.Recommend(p)
}

// Calculate returns the plan of an unsaved profile.
func (s *Service) Calculate(p models.Profile) (nutrition.Recommendation, error) {
	p.MealTimes = models.ParseMealTimes(p.MealTimes...)
	if err := p.ValidateInputs(); err != nil {
		return nutrition.Recommendation{}, err
	}
	return nutrition.Recommend(p)
}

// NotificationsEnabled reports the global reminder switch. It defaults to off.
func (s *Service) NotificationsEnabled(ctx context.Context) (bool, error) {
	var on bool
	if _, err := s.store.GetSetting(ctx, models.SettingNotificationsEnabled, &on); err != nil {
		return false, err
	}
	return on, nil
}

// SetNotificationsEnabled persists the switch. Turning it on arms every
// profile; turning it off cancels every reminder.
func (s *Service) SetNotificationsEnabled(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SetSetting(ctx, models.SettingNotificationsEnabled, on); err != nil {
		return err
	}
	if s.sched == nil {
		return nil
	}
	if !on {
		s.sched.CancelAll()
		s.logger.Info("feeding: reminders disabled")
		return nil
	}
	_, err := s.armAll(ctx)
	return err
}

// Restore arms every stored profile if reminders are enabled. It is called
// once at startup and returns the number of profiles armed.
func (s *Service) Restore(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	on, err := s.NotificationsEnabled(ctx)
	if err != nil || !on || s.sched == nil {
		return 0, err
	}
	return s.armAll(ctx)
}

// Reminders returns the number of armed reminder handles.
func (s *Service) Reminders() reminder.Counts {
	if s.sched == nil {
		return reminder.Counts{}
	}
	return s.sched.Total()
}

// Export returns a snapshot of every profile.
func (s *Service) Export(ctx context.Context) (models.Snapshot, error) {
	return s.store.Export(ctx)
}

// ExportJSON returns the snapshot encoded as an indented export document.
func (s *Service) ExportJSON(ctx context.Context) ([]byte, error) {
	snap, err := s.store.Export(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(snap, "", "  ")
}

// Import atomically replaces every profile with the snapshot's and re-arms
// reminders from the new data.
func (s *Service) Import(ctx context.Context, snap models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Import(ctx, snap); err != nil {
		return err
	}
	s.logger.Info("feeding: imported", slog.Int("profiles", len(snap.Profiles)))
	if s.sched != nil {
		s.sched.CancelAll()
		on, err := s.NotificationsEnabled(ctx)
		if err != nil {
			return err
		}
		if on {
			if _, err := s.armAll(ctx); err != nil {
				return err
			}
		}
	}
	if s.pub != nil {
		s.pub.PublishImport(len(snap.Profiles))
	}
	return nil
}

// ImportJSON decodes an export document and imports it. It returns the
// number of imported profiles.
func (s *Service) ImportJSON(ctx context.Context, data []byte) (int, error) {
	snap, err := models.DecodeSnapshot(data)
	if err != nil {
		return 0, err
	}
	if err := s.Import(ctx, snap); err != nil {
		return 0, err
	}
	return len(snap.Profiles), nil
}

// ErrNoBackupDir is returned by backup operations when no directory is configured.
var ErrNoBackupDir = errors.New("backup directory not configured")

// Backup writes the current export to the backup directory and prunes the
// oldest backups beyond the retention limit.
func (s *Service) Backup(ctx context.Context) (models.FileMeta, error) {
	if s.backups == nil {
		return models.FileMeta{}, ErrNoBackupDir
	}
	data, err := s.ExportJSON(ctx)
	if err != nil {
		return models.FileMeta{}, err
	}
	meta, err := s.backups.Put(models.ExportFilename(s.now()), data)
	if err != nil {
		return models.FileMeta{}, fmt.Errorf("feeding: write backup: %w", err)
	}
	removed, err := s.backups.Prune(s.keep)
	if err != nil {
		s.logger.Warn("feeding: prune backups failed", slog.String("error", err.Error()))
	} else if len(removed) > 0 {
		s.logger.Info("feeding: pruned backups", slog.Int("removed", len(removed)))
	}
	return meta, nil
}

// Backups lists the backups written so far, oldest first.
func (s *Service) Backups(_ context.Context) ([]models.FileMeta, error) {
	if s.backups == nil {
		return nil, ErrNoBackupDir
	}
	return s.backups.List()
}

// BackupData returns the raw export document of one backup.
func (s *Service) BackupData(_ context.Context, name string) ([]byte, error) {
	if s.backups == nil {
		return nil, ErrNoBackupDir
	}
	return s.backups.Read(name)
}

// Today returns today's meal timeline with localized portions. It is derived
// on every call.
func (s *Service) Today(ctx context.Context) ([]ScheduleEntry, error) {
	profiles, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	items := schedule.Today(profiles, s.now())
	out := make([]ScheduleEntry, 0, len(items))
	for _, it := range items {
		out = append(out, ScheduleEntry{Item: it, Food: s.tr.Portion(it.Rec)})
	}
	return out, nil
}

// Calendar returns the iCalendar feed of every meal slot.
func (s *Service) Calendar(ctx context.Context) ([]byte, error) {
	profiles, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return calendar.Build(profiles, s.now(), s.tr)
}

// RunScheduleRefresh calls fn with a freshly derived timeline every interval
// until ctx is cancelled.
func (s *Service) RunScheduleRefresh(ctx context.Context, interval time.Duration, fn func([]ScheduleEntry)) error {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			items, err := s.Today(ctx)
			if err != nil {
				s.logger.Warn("feeding: schedule refresh failed", slog.String("error", err.Error()))
				continue
			}
			fn(items)
		}
	}
}

// arm schedules p when reminders are enabled. Failures are logged; the
// profile is already stored at this point. Caller holds s.mu.
func (s *Service) arm(ctx context.Context, p models.Profile) {
	if s.sched == nil {
		return
	}
	on, err := s.NotificationsEnabled(ctx)
	if err == nil && on {
		err = s.sched.ScheduleAll(ctx, p)
	}
	if err != nil {
		s.sched.Cancel(p.ID)
		s.logger.Warn("feeding: arm failed",
			slog.Int64("profile_id", p.ID),
			slog.String("error", err.Error()))
	}
}

// armAll re-arms every stored profile from scratch. A profile that fails to
// arm is logged and skipped. Caller holds s.mu.
func (s *Service) armAll(ctx context.Context) (int, error) {
	profiles, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	s.sched.CancelAll()
	n := 0
	for _, p := range profiles {
		if err := s.sched.ScheduleAll(ctx, p); err != nil {
			s.logger.Warn("feeding: arm failed",
				slog.Int64("profile_id", p.ID),
				slog.String("error", err.Error()))
			continue
		}
		n++
	}
	s.logger.Info("feeding: reminders armed", slog.Int("profiles", n))
	return n, nil
}

func (s *Service) card(p models.Profile) ProfileCard {
	c := ProfileCard{Profile: p}
	if rec, err := nutrition.Recommend(p); err == nil {
		c.Recommendation = &rec
		c.Labels = s.tr.Labels(p, rec)
	} else {
		c.Labels = locale.Labels{
			Activity: s.tr.ActivityLabel(p.Activity),
			FoodType: s.tr.FoodTypeLabel(p.FoodType),
		}
	}
	if s.sched != nil {
		c.Reminders = s.sched.Armed(p.ID)
	}
	return c
}

func (s *Service) publish(kind string, id int64) {
	if s.pub != nil {
		s.pub.PublishProfileEvent(kind, id)
	}
}
