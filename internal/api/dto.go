package api

import (
	"github.com/starford/feedwise/internal/feeding"
	"github.com/starford/feedwise/internal/models"
	"github.com/starford/feedwise/internal/reminder"
)

// ProfileRequest is the request body for creating or updating a profile.
// MealTimes accepts either a comma separated string or an array.
type ProfileRequest struct {
	Name      string           `json:"name" example:"Luna" validate:"required"`
	Weight    float64          `json:"weight" example:"4.2" validate:"required"`
	Age       int              `json:"age" example:"36"`
	Activity  models.Activity  `json:"activity" example:"medium" enums:"low,medium,high"`
	FoodType  models.FoodType  `json:"foodType" example:"dry" enums:"dry,wet,mixed" validate:"required"`
	MealTimes models.MealTimes `json:"mealTimes" swaggertype:"array,string" example:"08:00,18:00" validate:"required"`
}

func (r ProfileRequest) profile(id int64) models.Profile {
	return models.Profile{
		ID:        id,
		Name:      r.Name,
		Weight:    r.Weight,
		Age:       r.Age,
		Activity:  r.Activity,
		FoodType:  r.FoodType,
		MealTimes: r.MealTimes,
	}
}

// ProfileCard is a profile with its plan (aliased from the domain layer).
type ProfileCard = feeding.ProfileCard

// ScheduleEntry is a timeline item (aliased from the domain layer).
type ScheduleEntry = feeding.ScheduleEntry

// ProfileListResponse wraps the profile listing.
type ProfileListResponse struct {
	Profiles []ProfileCard `json:"profiles" validate:"required"`
	Total    int           `json:"total" example:"2" validate:"required"`
}

// ScheduleResponse wraps today's timeline.
type ScheduleResponse struct {
	Items   []ScheduleEntry `json:"items" validate:"required"`
	Pending int             `json:"pending" example:"3" validate:"required"`
}

// NotificationSettings is the reminder switch and the armed handles.
type NotificationSettings struct {
	Enabled   bool            `json:"enabled" validate:"required"`
	Reminders reminder.Counts `json:"reminders"`
}

// NotificationSettingsRequest toggles reminders.
type NotificationSettingsRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// ImportResponse reports the outcome of an import.
type ImportResponse struct {
	Imported int `json:"imported" example:"2" validate:"required"`
}

// BackupListResponse wraps the stored backups.
type BackupListResponse struct {
	Backups []models.FileMeta `json:"backups" validate:"required"`
}
