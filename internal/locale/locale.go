// Package locale renders the user-facing text of reminders and profile cards.
package locale

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/starford/feedwise/internal/models"
	"github.com/starford/feedwise/internal/nutrition"
)

//go:embed locales/*.json
var localeFS embed.FS

// DefaultLanguage is used when no language is configured.
const DefaultLanguage = "en"

// Message identifiers present in every locale file.
const (
	KeyReminderTitle  = "ReminderTitle"
	KeyReminderBody   = "ReminderBody"
	KeyPortionSingle  = "PortionSingle"
	KeyPortionMixed   = "PortionMixed"
	KeyFoodDry        = "FoodDry"
	KeyFoodWet        = "FoodWet"
	KeyFoodMixed      = "FoodMixed"
	KeyActivityLow    = "ActivityLow"
	KeyActivityMedium = "ActivityMedium"
	KeyActivityHigh   = "ActivityHigh"
	KeyDailyCalories  = "DailyCalories"
	KeyMealCount      = "MealCount"
)

// Translator localizes messages for a single language.
type Translator struct {
	lang      string
	languages []string
	localizer *i18n.Localizer
}

// Labels is the localized text shown next to a profile.
type Labels struct {
	Activity string `json:"activity"`
	FoodType string `json:"foodType"`
	Portion  string `json:"portion"`
	Calories string `json:"calories"`
	Meals    string `json:"meals"`
}

// New loads every embedded locale and returns a Translator for lang.
// Languages without a locale file fall back to English.
func New(lang string) (*Translator, error) {
	if lang == "" {
		lang = DefaultLanguage
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("locale: parse language %q: %w", lang, err)
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("locale: read locales: %w", err)
	}
	var langs []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			return nil, fmt.Errorf("locale: load %s: %w", name, err)
		}
		langs = append(langs, strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json"))
	}
	sort.Strings(langs)

	base, _ := tag.Base()
	resolved := DefaultLanguage
	for _, l := range langs {
		if l == base.String() {
			resolved = l
		}
	}
	if resolved != base.String() {
		slog.Debug("locale: language not available, using default",
			slog.String("requested", lang),
			slog.String("language", resolved))
	}

	return &Translator{
		lang:      resolved,
		languages: langs,
		localizer: i18n.NewLocalizer(bundle, resolved),
	}, nil
}

// Language returns the resolved language code.
func (t *Translator) Language() string { return t.lang }

// Languages returns the codes of every embedded locale.
func (t *Translator) Languages() []string {
	return append([]string(nil), t.languages...)
}

// Msg localizes key with optional template data. A missing key yields the key.
func (t *Translator) Msg(key string, data map[string]any) string {
	msg, err := t.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		slog.Debug("locale: missing translation",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return key
	}
	return msg
}

func (t *Translator) plural(key string, count int) string {
	msg, err := t.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: map[string]any{"Count": count},
		PluralCount:  count,
	})
	if err != nil {
		return fmt.Sprintf("%d", count)
	}
	return msg
}

// FoodTypeLabel returns the localized name of a food type.
func (t *Translator) FoodTypeLabel(ft models.FoodType) string {
	switch ft {
	case models.FoodDry:
		return t.Msg(KeyFoodDry, nil)
	case models.FoodWet:
		return t.Msg(KeyFoodWet, nil)
	default:
		return t.Msg(KeyFoodMixed, nil)
	}
}

// ActivityLabel returns the localized name of an activity level. An empty
// activity is shown as medium, matching the calorie default.
func (t *Translator) ActivityLabel(a models.Activity) string {
	switch a {
	case models.ActivityLow:
		return t.Msg(KeyActivityLow, nil)
	case models.ActivityHigh:
		return t.Msg(KeyActivityHigh, nil)
	default:
		return t.Msg(KeyActivityMedium, nil)
	}
}

// Portion returns the per-meal amount, e.g. "38 g dry" or "20 g dry + 84 g wet".
func (t *Translator) Portion(rec nutrition.Recommendation) string {
	if rec.Mixed() {
		return t.Msg(KeyPortionMixed, map[string]any{"Dry": rec.DryPerMeal, "Wet": rec.WetPerMeal})
	}
	food := t.Msg(KeyFoodDry, nil)
	if rec.FoodType == models.FoodWet {
		food = t.Msg(KeyFoodWet, nil)
	}
	return t.Msg(KeyPortionSingle, map[string]any{"Grams": rec.GramsPerMeal, "Food": food})
}

// Render implements reminder.Renderer.
func (t *Translator) Render(p models.Profile, rec nutrition.Recommendation) (title, body string) {
	title = t.Msg(KeyReminderTitle, nil)
	body = t.Msg(KeyReminderBody, map[string]any{"Name": p.Name}) + "\n" + t.Portion(rec)
	return title, body
}

// Labels returns the localized card text of a profile.
func (t *Translator) Labels(p models.Profile, rec nutrition.Recommendation) Labels {
	return Labels{
		Activity: t.ActivityLabel(p.Activity),
		FoodType: t.FoodTypeLabel(p.FoodType),
		Portion:  t.Portion(rec),
		Calories: t.Msg(KeyDailyCalories, map[string]any{"Calories": rec.DailyCalories}),
		Meals:    t.plural(KeyMealCount, rec.MealCount),
	}
}
