// Package models defines the domain types for Feedwise.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/feedwise/internal/apperr"
)

// Activity is the pet's activity level.
type Activity string

const (
	ActivityLow    Activity = "low"
	ActivityMedium Activity = "medium"
	ActivityHigh   Activity = "high"
)

// FoodType is the kind of food the pet is fed.
type FoodType string

const (
	FoodDry   FoodType = "dry"
	FoodWet   FoodType = "wet"
	FoodMixed FoodType = "mixed"
)

// ClockLayout is the wall-clock format of a meal time.
const ClockLayout = "15:04"

// Profile is a single pet with its feeding parameters.
type Profile struct {
	ID        int64     `json:"id,omitempty"`
	Name      string    `json:"name"`
	Weight    float64   `json:"weight"`
	Age       int       `json:"age"`
	Activity  Activity  `json:"activity"`
	FoodType  FoodType  `json:"foodType"`
	MealTimes MealTimes `json:"mealTimes"`
}

// Validate checks the fields a stored profile must carry.
func (p Profile) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.Weight, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&p.Age, validation.Min(0)),
		validation.Field(&p.Activity, validation.In(ActivityLow, ActivityMedium, ActivityHigh)),
		validation.Field(&p.FoodType, validation.Required, validation.In(FoodDry, FoodWet, FoodMixed)),
		validation.Field(&p.MealTimes, validation.Required, validation.Each(validation.By(validClock))),
	)
	return apperr.Validation(err)
}

// ValidateInputs checks only the fields a recommendation is computed from,
// for ad hoc calculations of profiles that are not stored.
func (p Profile) ValidateInputs() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Weight, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&p.Age, validation.Min(0)),
		validation.Field(&p.Activity, validation.In(ActivityLow, ActivityMedium, ActivityHigh)),
		validation.Field(&p.FoodType, validation.Required, validation.In(FoodDry, FoodWet, FoodMixed)),
		validation.Field(&p.MealTimes, validation.Required, validation.Each(validation.By(validClock))),
	)
	return apperr.Validation(err)
}

func validClock(value any) error {
	s, _ := value.(string)
	if _, _, err := ParseClock(s); err != nil {
		return err
	}
	return nil
}

// MealTimes is the ordered list of "HH:MM" meal times of a profile.
//
// It decodes from either a JSON array or a single comma-delimited string,
// which is how older exports stored it.
type MealTimes []string

// UnmarshalJSON implements json.Unmarshaler.
func (m *MealTimes) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*m = ParseMealTimes(raw)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("mealTimes: expected string or array: %w", err)
	}
	*m = ParseMealTimes(list...)
	return nil
}

// String joins the meal times the way the input form accepts them.
func (m MealTimes) String() string {
	return strings.Join(m, ", ")
}

// ParseMealTimes splits every input on commas, trims each token and drops
// empty ones. Order and duplicates are preserved.
func ParseMealTimes(inputs ...string) MealTimes {
	out := MealTimes{}
	for _, in := range inputs {
		for _, tok := range strings.Split(in, ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				out = append(out, tok)
			}
		}
	}
	return out
}

// ParseClock parses an "HH:MM" 24h clock time.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid meal time %q: want HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

// MinutesOfDay returns the minutes since midnight of an "HH:MM" clock time.
func MinutesOfDay(s string) (int, error) {
	h, m, err := ParseClock(s)
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}
