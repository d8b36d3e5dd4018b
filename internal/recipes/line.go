package recipes

import (
	"regexp"
	"strings"

	"smartplates/internal/core"
	"smartplates/internal/grocery"
)

var (
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	joinedUnit    = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)([a-zA-Z]+)$`)
)

// ParseIngredientLine splits a free-text ingredient line such as
// "1 1/2 cups flour, sifted" into amount, unit and name. Lines without a
// name are rejected.
func ParseIngredientLine(line string) (core.Ingredient, bool) {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*•· ")
	line = parenthetical.ReplaceAllString(line, " ")
	line, _, _ = strings.Cut(line, ",")

	tokens := strings.Fields(line)
	var ing core.Ingredient
	var amount []string

	if len(tokens) > 0 {
		if m := joinedUnit.FindStringSubmatch(tokens[0]); m != nil && grocery.IsKnownUnit(m[2]) {
			amount = append(amount, m[1])
			ing.Unit = m[2]
			tokens = tokens[1:]
		} else if _, ok := grocery.ParseAmount(tokens[0]); ok {
			amount = append(amount, tokens[0])
			tokens = tokens[1:]
			if len(tokens) > 0 && isFractionToken(tokens[0]) {
				amount = append(amount, tokens[0])
				tokens = tokens[1:]
			}
		}
	}
	if len(amount) > 0 && ing.Unit == "" && len(tokens) > 1 && grocery.IsKnownUnit(tokens[0]) {
		ing.Unit = tokens[0]
		tokens = tokens[1:]
	}
	if len(tokens) > 1 && strings.EqualFold(tokens[0], "of") {
		tokens = tokens[1:]
	}

	name := strings.Join(tokens, " ")
	if len(amount) > 0 {
		ing.Amount = strings.Join(amount, " ")
	} else if lower := strings.ToLower(name); strings.HasSuffix(lower, " to taste") {
		name = strings.TrimSpace(name[:len(name)-len(" to taste")])
		ing.Amount = "to taste"
	}
	if name == "" {
		return core.Ingredient{}, false
	}
	ing.Name = name
	return ing, true
}

func isFractionToken(tok string) bool {
	if !strings.Contains(tok, "/") && !strings.ContainsAny(tok, "¼½¾⅓⅔⅛⅜⅝⅞") {
		return false
	}
	_, ok := grocery.ParseAmount(tok)
	return ok
}
