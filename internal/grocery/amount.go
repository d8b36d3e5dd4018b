package grocery

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"smartplates/internal/core"
)

var vulgarFractions = map[rune]float64{
	'¼': 0.25, '½': 0.5, '¾': 0.75,
	'⅓': 1.0 / 3, '⅔': 2.0 / 3,
	'⅕': 0.2, '⅖': 0.4, '⅗': 0.6, '⅘': 0.8,
	'⅙': 1.0 / 6, '⅚': 5.0 / 6,
	'⅛': 0.125, '⅜': 0.375, '⅝': 0.625, '⅞': 0.875,
}

// ParseAmount coerces a source amount into a quantity. It accepts numbers,
// numeric strings with either decimal separator, fractions ("1/2"), mixed
// numbers ("1 1/2"), unicode fractions ("1½") and ranges ("2-3", upper bound
// is dropped). The second return is false for anything else.
func ParseAmount(v any) (float64, bool) {
	switch a := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finitePositive(a)
	case float32:
		return finitePositive(float64(a))
	case int:
		return finitePositive(float64(a))
	case int64:
		return finitePositive(float64(a))
	case json.Number:
		f, err := a.Float64()
		if err != nil {
			return 0, false
		}
		return finitePositive(f)
	case string:
		return parseAmountString(a)
	case fmt.Stringer:
		return parseAmountString(a.String())
	}
	return 0, false
}

func finitePositive(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, false
	}
	return f, true
}

func parseAmountString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if i := strings.IndexAny(s, "-–"); i > 0 {
		s = strings.TrimSpace(s[:i])
	}

	var total float64
	parts := strings.Fields(s)
	if len(parts) == 0 || len(parts) > 2 {
		return 0, false
	}
	for _, p := range parts {
		v, ok := parseAmountToken(p)
		if !ok {
			return 0, false
		}
		total += v
	}
	return finitePositive(total)
}

func parseAmountToken(p string) (float64, bool) {
	var total float64
	runes := []rune(p)
	if frac, ok := vulgarFractions[runes[len(runes)-1]]; ok {
		total = frac
		p = string(runes[:len(runes)-1])
		if p == "" {
			return total, true
		}
	}
	if num, den, found := strings.Cut(p, "/"); found {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return total + n/d, true
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(p, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return total + f, true
}

// FormatQuantity renders a quantity with at most two decimals and no
// trailing zeros.
func FormatQuantity(q float64) string {
	return strconv.FormatFloat(math.Round(q*100)/100, 'f', -1, 64)
}

func rawAmount(v any) string {
	switch a := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(a)
	default:
		return strings.TrimSpace(fmt.Sprint(a))
	}
}

// Normalize turns a source ingredient into its aggregation form.
func Normalize(ing core.Ingredient, recipe string) core.NormalizedIngredient {
	n := core.NormalizedIngredient{
		Name:        core.NormalizeName(ing.Name),
		DisplayName: strings.Join(strings.Fields(ing.Name), " "),
		Unit:        NormalizeUnit(ing.Unit),
		Category:    strings.TrimSpace(ing.Category),
		Recipe:      recipe,
	}
	if n.Category == "" {
		n.Category = core.DefaultCategory
	}
	if q, ok := ParseAmount(ing.Amount); ok {
		n.Quantity = q
		n.HasQuantity = true
	} else {
		n.RawAmount = rawAmount(ing.Amount)
	}
	return n
}
