// Package schedule derives today's feeding timeline from the stored profiles.
package schedule

import (
	"sort"
	"time"

	"github.com/starford/feedwise/internal/models"
	"github.com/starford/feedwise/internal/nutrition"
)

// Status of a meal slot relative to now.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Item is one meal slot of today.
type Item struct {
	Time        string          `json:"time"`
	Minutes     int             `json:"minutes"`
	ProfileID   int64           `json:"profileId"`
	ProfileName string          `json:"profileName"`
	MealIndex   int             `json:"mealIndex"`
	FoodType    models.FoodType `json:"foodType"`
	Status      Status          `json:"status"`

	// Per-meal portion.
	Grams int `json:"grams,omitempty"`
	Dry   int `json:"dry,omitempty"`
	Wet   int `json:"wet,omitempty"`

	// Rec is the full plan the portion was taken from; it is not serialized.
	Rec nutrition.Recommendation `json:"-"`
}

// Today returns one item per (profile, meal time). Slots strictly before now
// are completed, the rest pending. Pending items come first, each group in
// ascending time of day. Profiles without meal times are skipped, as are
// meal times that do not parse.
func Today(profiles []models.Profile, now time.Time) []Item {
	nowMinutes := now.Hour()*60 + now.Minute()
	items := []Item{}
	for _, p := range profiles {
		rec, err := nutrition.Recommend(p)
		if err != nil {
			continue
		}
		for idx, mt := range rec.MealTimes {
			minutes, err := models.MinutesOfDay(mt)
			if err != nil {
				continue
			}
			status := StatusPending
			if minutes < nowMinutes {
				status = StatusCompleted
			}
			items = append(items, Item{
				Time:        mt,
				Minutes:     minutes,
				ProfileID:   p.ID,
				ProfileName: p.Name,
				MealIndex:   idx,
				FoodType:    p.FoodType,
				Status:      status,
				Grams:       rec.GramsPerMeal,
				Dry:         rec.DryPerMeal,
				Wet:         rec.WetPerMeal,
				Rec:         rec,
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Status != items[j].Status {
			return items[i].Status == StatusPending
		}
		return items[i].Minutes < items[j].Minutes
	})
	return items
}

// Pending returns the items that are still due today.
func Pending(items []Item) []Item {
	out := []Item{}
	for _, it := range items {
		if it.Status == StatusPending {
			out = append(out, it)
		}
	}
	return out
}
