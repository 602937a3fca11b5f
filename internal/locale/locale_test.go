package locale_test

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/feedwise/internal/locale"
	"github.com/starford/feedwise/internal/models"
	"github.com/starford/feedwise/internal/nutrition"
)

func profile(ft models.FoodType, times ...string) models.Profile {
	return models.Profile{
		ID:        1,
		Name:      "Luna",
		Weight:    4,
		Age:       12,
		Activity:  models.ActivityMedium,
		FoodType:  ft,
		MealTimes: times,
	}
}

func TestLocaleFilesShareKeys(t *testing.T) {
	keys := []string{
		locale.KeyReminderTitle,
		locale.KeyReminderBody,
		locale.KeyPortionSingle,
		locale.KeyPortionMixed,
		locale.KeyFoodDry,
		locale.KeyFoodWet,
		locale.KeyFoodMixed,
		locale.KeyActivityLow,
		locale.KeyActivityMedium,
		locale.KeyActivityHigh,
		locale.KeyDailyCalories,
		locale.KeyMealCount,
	}
	for _, file := range []string{"locales/active.en.json", "locales/active.fa.json"} {
		data, err := os.ReadFile(file)
		require.NoError(t, err)
		var messages map[string]any
		require.NoError(t, json.Unmarshal(data, &messages), file)
		for _, k := range keys {
			assert.Contains(t, messages, k, "%s is missing %s", file, k)
		}
	}
}

func TestNewResolvesLanguage(t *testing.T) {
	tr, err := locale.New("")
	require.NoError(t, err)
	assert.Equal(t, "en", tr.Language())
	assert.Equal(t, []string{"en", "fa"}, tr.Languages())

	tr, err = locale.New("fa-IR")
	require.NoError(t, err)
	assert.Equal(t, "fa", tr.Language())

	tr, err = locale.New("de")
	require.NoError(t, err)
	assert.Equal(t, "en", tr.Language(), "unknown languages fall back to English")

	_, err = locale.New("not a tag!")
	assert.Error(t, err)
}

func TestRenderDry(t *testing.T) {
	tr, err := locale.New("en")
	require.NoError(t, err)
	p := profile(models.FoodDry, "08:00", "18:00")
	rec, err := nutrition.Recommend(p)
	require.NoError(t, err)

	title, body := tr.Render(p, rec)
	assert.Equal(t, "Cat food reminder", title)
	assert.Equal(t, "Time to feed Luna!\n38 g dry", body)
}

func TestRenderMixed(t *testing.T) {
	tr, err := locale.New("en")
	require.NoError(t, err)
	p := profile(models.FoodMixed, "08:00", "18:00")
	rec, err := nutrition.Recommend(p)
	require.NoError(t, err)

	_, body := tr.Render(p, rec)
	assert.Equal(t, "Time to feed Luna!\n19 g dry + 79 g wet", body)
}

func TestRenderPersian(t *testing.T) {
	tr, err := locale.New("fa")
	require.NoError(t, err)
	p := profile(models.FoodWet, "08:00")
	rec, err := nutrition.Recommend(p)
	require.NoError(t, err)

	title, body := tr.Render(p, rec)
	assert.Equal(t, "یادآور غذای گربه", title)
	assert.Equal(t, "زمان غذا دادن به Luna!\n317 گرم تر", body)
}

func TestLabels(t *testing.T) {
	tr, err := locale.New("en")
	require.NoError(t, err)

	p := profile(models.FoodDry, "08:00")
	p.Activity = ""
	rec, err := nutrition.Recommend(p)
	require.NoError(t, err)

	l := tr.Labels(p, rec)
	assert.Equal(t, "medium", l.Activity)
	assert.Equal(t, "dry", l.FoodType)
	assert.Equal(t, "76 g dry", l.Portion)
	assert.Equal(t, "285 kcal", l.Calories)
	assert.Equal(t, "1 meal", l.Meals)

	p.MealTimes = models.MealTimes{"08:00", "12:00", "18:00"}
	rec, _ = nutrition.Recommend(p)
	assert.Equal(t, "3 meals", tr.Labels(p, rec).Meals)
}

func TestMissingKeyYieldsKey(t *testing.T) {
	tr, err := locale.New("en")
	require.NoError(t, err)
	assert.Equal(t, "NoSuchMessage", tr.Msg("NoSuchMessage", nil))
}
