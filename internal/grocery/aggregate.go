package grocery

import (
	"math"

	"smartplates/internal/core"
)

const unknownAmountNote = "amount unknown"

type group struct {
	item    core.GroceryItem
	unitSet bool
	recipes map[string]struct{}
	// amounts that could not be folded into item.Quantity, keyed by unit
	extra      map[string]float64
	extraOrder []string
	notes      []string
}

// countable units are interchangeable with a bare count ("2 tomatoes").
func countable(u string) bool {
	return u == "" || u == "pcs"
}

func (g *group) addQuantity(q float64, unit string, merge bool) {
	switch {
	case !g.unitSet:
		g.item.Unit = unit
		g.item.Quantity = q
		g.unitSet = true
	case unit == g.item.Unit:
		g.item.Quantity += q
	case countable(unit) && countable(g.item.Unit):
		g.item.Quantity += q
		if g.item.Unit == "" {
			g.item.Unit = unit
		}
	case merge && sameFamily(unit, g.item.Unit):
		converted, _ := convert(q, unit, g.item.Unit)
		g.item.Quantity += converted
	default:
		if _, ok := g.extra[unit]; !ok {
			g.extraOrder = append(g.extraOrder, unit)
		}
		g.extra[unit] += q
	}
}

func (g *group) addNote(note string) {
	for _, n := range g.notes {
		if n == note {
			return
		}
	}
	g.notes = append(g.notes, note)
}

func (g *group) finish() core.GroceryItem {
	item := g.item
	item.Quantity = math.Round(item.Quantity*1000) / 1000
	for _, unit := range g.extraOrder {
		note := FormatQuantity(g.extra[unit])
		if unit != "" {
			note += " " + unit
		}
		item.AmountNotes = append(item.AmountNotes, note)
	}
	item.AmountNotes = append(item.AmountNotes, g.notes...)
	return item
}

// Aggregate groups normalized ingredients by name, sums their amounts and
// applies the list options. Items come back in first-seen order.
func Aggregate(ings []core.NormalizedIngredient, opts core.GroceryOptions, catalog *Catalog) []core.GroceryItem {
	index := make(map[string]int)
	var groups []*group

	for _, ing := range ings {
		if ing.Name == "" {
			continue
		}
		idx, ok := index[ing.Name]
		if !ok {
			idx = len(groups)
			index[ing.Name] = idx
			groups = append(groups, &group{
				item: core.GroceryItem{
					Name:        ing.Name,
					DisplayName: ing.DisplayName,
					Category:    ing.Category,
				},
				recipes: make(map[string]struct{}),
				extra:   make(map[string]float64),
			})
		}
		g := groups[idx]

		if g.item.Category == core.DefaultCategory && ing.Category != core.DefaultCategory {
			g.item.Category = ing.Category
		}
		if ing.Recipe != "" {
			if _, seen := g.recipes[ing.Recipe]; !seen {
				g.recipes[ing.Recipe] = struct{}{}
				g.item.Recipes = append(g.item.Recipes, ing.Recipe)
			}
		}

		if ing.HasQuantity {
			g.addQuantity(ing.Quantity, ing.Unit, opts.MergeSimilarItems)
		} else if ing.RawAmount != "" {
			g.addNote(ing.RawAmount)
		} else {
			g.addNote(unknownAmountNote)
		}
	}

	items := make([]core.GroceryItem, 0, len(groups))
	for _, g := range groups {
		item := g.finish()
		if opts.ExcludeStaples && catalog != nil && catalog.IsStaple(item.Name) {
			continue
		}
		if opts.CategorizeItems && catalog != nil && item.Category == core.DefaultCategory {
			item.Category = catalog.Categorize(item.Name)
		}
		if opts.IncludeEstimates && catalog != nil {
			if cost, ok := catalog.Estimate(item); ok {
				item.EstimatedCost = &cost
			}
		}
		items = append(items, item)
	}
	return items
}

// TotalCost sums the estimated cost of the items that carry one.
func TotalCost(items []core.GroceryItem) core.Money {
	var total core.Money
	for _, item := range items {
		if item.EstimatedCost != nil {
			total = total.Add(*item.EstimatedCost)
		}
	}
	return total
}
