package mcpserver

// NutritionModel describes how feeding plans are derived, for LLM consumers
// that want to explain a recommendation.
const NutritionModel = `# Feedwise Nutrition Model

Every recommendation is derived from the profile alone. Nothing is stored.

## Energy

1. Resting energy: ` + "`" + `RER = 70 * weight_kg ^ 0.75` + "`" + `
2. Activity factor: low 1.0, medium 1.2, high 1.4. Missing activity counts as medium.
3. Age factor (age in months):
   - under 12: 1.5
   - 12 to 23: 1.2
   - 24 to 120: 1.0
   - over 120: 0.9
4. Daily calories: ` + "`" + `round(RER * activity * age)` + "`" + ` kcal.

## Portions

- Dry food has 375 kcal per 100 g, wet food 90 kcal per 100 g.
- Dry or wet: ` + "`" + `grams = round(calories / density * 100)` + "`" + `.
- Mixed: calories are split in half and each half is converted with its own
  density and rounded separately.
- Per meal: the daily grams divided by the number of meal times, rounded
  half up.

## Meal times

Meal times are 24h ` + "`" + `HH:MM` + "`" + ` values. A comma separated string is accepted;
tokens are trimmed and empty ones dropped. Order and duplicates are kept.

## Example

A 4 kg cat, 12 months old, medium activity, dry food, meals at 08:00 and 18:00:

- RER = 70 * 4^0.75 = 197.99
- calories = round(197.99 * 1.2 * 1.2) = 285 kcal
- dry = round(285 / 375 * 100) = 76 g per day, 38 g per meal
`
