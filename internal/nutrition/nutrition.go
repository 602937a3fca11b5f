// Package nutrition computes daily calorie needs and food portions for a pet.
//
// Everything here is pure and deterministic. Resting energy uses
// RER = 70 * kg^0.75, adjusted by activity and age multipliers into the
// maintenance requirement (MER).
package nutrition

import (
	"errors"
	"fmt"
	"math"

	"github.com/starford/feedwise/internal/apperr"
	"github.com/starford/feedwise/internal/models"
)

// Energy density of the food types, in kcal per 100 g.
const (
	KcalPer100gDry = 375.0
	KcalPer100gWet = 90.0
)

// ErrNoMeals is returned when a portion has to be split over zero meals.
var ErrNoMeals = errors.New("meal count must be positive")

// Amount is a daily food quantity in grams. For mixed food Dry and Wet are
// set and Total is their sum; otherwise only Total is set.
type Amount struct {
	Total int `json:"total"`
	Dry   int `json:"dry,omitempty"`
	Wet   int `json:"wet,omitempty"`
}

// Recommendation is the derived feeding plan of a profile.
type Recommendation struct {
	DailyCalories int             `json:"dailyCalories"`
	FoodType      models.FoodType `json:"foodType"`
	MealCount     int             `json:"mealCount"`
	MealTimes     []string        `json:"mealTimes"`

	TotalGrams   int `json:"totalGrams,omitempty"`
	GramsPerMeal int `json:"gramsPerMeal,omitempty"`

	DryGrams   int `json:"dryGrams,omitempty"`
	WetGrams   int `json:"wetGrams,omitempty"`
	DryPerMeal int `json:"dryPerMeal,omitempty"`
	WetPerMeal int `json:"wetPerMeal,omitempty"`
}

// Mixed reports whether the recommendation carries the dry/wet split.
func (r Recommendation) Mixed() bool {
	return r.FoodType != models.FoodDry && r.FoodType != models.FoodWet
}

// RER returns the resting energy requirement in kcal for a body mass in kg.
func RER(weight float64) float64 {
	return 70 * math.Pow(weight, 0.75)
}

// ActivityMultiplier returns the MER factor of an activity level.
// Unknown levels get the medium factor.
func ActivityMultiplier(a models.Activity) float64 {
	switch a {
	case models.ActivityLow:
		return 1.0
	case models.ActivityHigh:
		return 1.4
	default:
		return 1.2
	}
}

// AgeMultiplier returns the MER factor of an age in months.
func AgeMultiplier(ageMonths int) float64 {
	switch {
	case ageMonths < 12:
		return 1.5
	case ageMonths < 24:
		return 1.2
	case ageMonths > 120:
		return 0.9
	default:
		return 1.0
	}
}

// DailyCalories returns the rounded maintenance energy requirement in kcal.
func DailyCalories(weight float64, ageMonths int, activity models.Activity) int {
	mer := RER(weight) * ActivityMultiplier(activity) * AgeMultiplier(ageMonths)
	return round(mer)
}

// FoodAmount converts daily calories into grams of the given food type.
// Mixed food splits the calories evenly and rounds each stream on its own
// energy basis, so Total may differ from a single combined rounding.
// Unknown food types are treated as mixed.
func FoodAmount(calories int, foodType models.FoodType) Amount {
	switch foodType {
	case models.FoodDry:
		return Amount{Total: grams(float64(calories), KcalPer100gDry)}
	case models.FoodWet:
		return Amount{Total: grams(float64(calories), KcalPer100gWet)}
	default:
		half := float64(calories) * 0.5
		dry := grams(half, KcalPer100gDry)
		wet := grams(half, KcalPer100gWet)
		return Amount{Total: dry + wet, Dry: dry, Wet: wet}
	}
}

// PerMeal splits a daily amount over mealCount meals.
func PerMeal(totalGrams, mealCount int) (int, error) {
	if mealCount <= 0 {
		return 0, ErrNoMeals
	}
	return round(float64(totalGrams) / float64(mealCount)), nil
}

// Recommend composes the feeding plan of a profile.
func Recommend(p models.Profile) (Recommendation, error) {
	times := models.ParseMealTimes(p.MealTimes...)
	if len(times) == 0 {
		return Recommendation{}, apperr.Validation(fmt.Errorf("profile %q: %w", p.Name, ErrNoMeals))
	}

	calories := DailyCalories(p.Weight, p.Age, p.Activity)
	amount := FoodAmount(calories, p.FoodType)
	rec := Recommendation{
		DailyCalories: calories,
		FoodType:      p.FoodType,
		MealCount:     len(times),
		MealTimes:     times,
	}

	if rec.Mixed() {
		rec.DryGrams = amount.Dry
		rec.WetGrams = amount.Wet
		rec.DryPerMeal, _ = PerMeal(amount.Dry, rec.MealCount)
		rec.WetPerMeal, _ = PerMeal(amount.Wet, rec.MealCount)
	} else {
		rec.TotalGrams = amount.Total
		rec.GramsPerMeal, _ = PerMeal(amount.Total, rec.MealCount)
	}
	return rec, nil
}

func grams(calories, kcalPer100g float64) int {
	return round(calories / kcalPer100g * 100)
}

// round rounds half away from zero. Inputs are never negative, so this is
// half-up rounding.
func round(v float64) int {
	return int(math.Round(v))
}
