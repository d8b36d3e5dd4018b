package grocery

import "strings"

type unitFamily int

const (
	familyNone unitFamily = iota
	familyMass
	familyVolume
)

var unitAliases = map[string]string{
	"g": "g", "gr": "g", "gram": "g", "grams": "g", "gramm": "g",
	"kg": "kg", "kilo": "kg", "kilos": "kg", "kilogram": "kg", "kilograms": "kg",
	"oz": "oz", "ounce": "oz", "ounces": "oz",
	"lb": "lb", "lbs": "lb", "pound": "lb", "pounds": "lb",
	"ml": "ml", "milliliter": "ml", "milliliters": "ml", "millilitre": "ml", "millilitres": "ml",
	"l": "l", "liter": "l", "liters": "l", "litre": "l", "litres": "l",
	"tsp": "tsp", "teaspoon": "tsp", "teaspoons": "tsp",
	"tbsp": "tbsp", "tablespoon": "tbsp", "tablespoons": "tbsp", "tbs": "tbsp", "tbl": "tbsp",
	"cup": "cup", "cups": "cup", "c": "cup",
	"pcs": "pcs", "pc": "pcs", "piece": "pcs", "pieces": "pcs", "each": "pcs", "whole": "pcs",
	"clove": "clove", "cloves": "clove",
	"slice": "slice", "slices": "slice",
	"can": "can", "cans": "can",
	"pinch": "pinch", "pinches": "pinch",
	"bunch": "bunch", "bunches": "bunch",
	"serving": "serving", "servings": "serving",
}

// Recipe shorthand where case decides the unit: T is a tablespoon, t a
// teaspoon.
var caseSensitiveUnits = map[string]string{
	"T": "tbsp", "T.": "tbsp",
	"t": "tsp", "t.": "tsp",
}

// Factors to the family base: grams for mass, millilitres for volume.
var unitFactors = map[string]struct {
	family unitFamily
	factor float64
}{
	"g":    {familyMass, 1},
	"kg":   {familyMass, 1000},
	"oz":   {familyMass, 28.3495},
	"lb":   {familyMass, 453.592},
	"ml":   {familyVolume, 1},
	"l":    {familyVolume, 1000},
	"tsp":  {familyVolume, 4.92892},
	"tbsp": {familyVolume, 14.7868},
	"cup":  {familyVolume, 236.588},
}

// NormalizeUnit lower-cases a unit and maps known spellings to a short form.
// Unknown units are returned trimmed and lower-cased.
func NormalizeUnit(u string) string {
	u = strings.TrimSpace(u)
	if canonical, ok := caseSensitiveUnits[u]; ok {
		return canonical
	}
	u = strings.TrimSuffix(strings.ToLower(u), ".")
	if canonical, ok := unitAliases[u]; ok {
		return canonical
	}
	return u
}

// convert returns q expressed in unit to, when from and to belong to the
// same measurement family.
func convert(q float64, from, to string) (float64, bool) {
	if from == to {
		return q, true
	}
	f, ok := unitFactors[from]
	if !ok {
		return 0, false
	}
	t, ok := unitFactors[to]
	if !ok || f.family != t.family {
		return 0, false
	}
	return q * f.factor / t.factor, true
}

func sameFamily(a, b string) bool {
	fa, ok := unitFactors[a]
	if !ok {
		return false
	}
	fb, ok := unitFactors[b]
	return ok && fa.family == fb.family
}

// IsKnownUnit reports whether u is a recognized unit spelling.
func IsKnownUnit(u string) bool {
	u = strings.TrimSpace(u)
	if _, ok := caseSensitiveUnits[u]; ok {
		return true
	}
	_, ok := unitAliases[strings.TrimSuffix(strings.ToLower(u), ".")]
	return ok
}
