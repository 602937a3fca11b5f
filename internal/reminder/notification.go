package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/starford/feedwise/internal/apperr"
	"github.com/starford/feedwise/internal/models"
	"github.com/starford/feedwise/internal/nutrition"
)

// Default presentation of a reminder.
const (
	DefaultIcon = "/icon-192.png"
)

// DefaultVibrate is the vibration pattern used when none is configured.
var DefaultVibrate = []int{200, 100, 200}

// Notification is a single feeding reminder delivered to a Sink.
type Notification struct {
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Tag     string   `json:"tag"`
	Icon    string   `json:"icon"`
	Vibrate []int    `json:"vibrate"`
	Data    Metadata `json:"data"`
}

// Metadata identifies the meal slot a notification belongs to.
type Metadata struct {
	ProfileID int64     `json:"profileId"`
	MealIndex int       `json:"mealIndex"`
	MealTime  string    `json:"mealTime"`
	Daily     bool      `json:"daily"`
	FiredAt   time.Time `json:"firedAt"`
}

// Tag is the per-slot dedup tag; a newer reminder for the same slot replaces
// an older one on the client.
func Tag(profileID int64, mealIndex int) string {
	return fmt.Sprintf("feed-%d-%d", profileID, mealIndex)
}

// Sink delivers notifications to the user.
type Sink interface {
	// RequestPermission reports whether notifications may be shown.
	RequestPermission(ctx context.Context) bool
	Show(ctx context.Context, n Notification) error
}

// Renderer produces the localized title and body of a reminder.
type Renderer interface {
	Render(p models.Profile, rec nutrition.Recommendation) (title, body string)
}

// Fanout delivers to every sink it holds. Permission is granted when any
// sink grants it; an empty Fanout denies.
type Fanout []Sink

// RequestPermission implements Sink.
func (f Fanout) RequestPermission(ctx context.Context) bool {
	granted := false
	for _, s := range f {
		if s.RequestPermission(ctx) {
			granted = true
		}
	}
	return granted
}

// Show implements Sink. Errors from individual sinks are joined.
func (f Fanout) Show(ctx context.Context, n Notification) error {
	if len(f) == 0 {
		return apperr.ErrPermissionDenied
	}
	var errs []error
	for _, s := range f {
		if err := s.Show(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
