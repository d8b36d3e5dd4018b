package core

import (
	"sort"
	"strings"
	"time"
)

// DefaultCategory is assigned to ingredients that arrive without one.
const DefaultCategory = "General"

type (
	// Ingredient is an ingredient as a recipe source reports it. Amount may be
	// a number, a numeric string or free text such as "to taste".
	Ingredient struct {
		Name     string `json:"name"`
		Amount   any    `json:"amount,omitempty"`
		Unit     string `json:"unit,omitempty"`
		Category string `json:"category,omitempty"`
	}

	// NormalizedIngredient is an ingredient after amount coercion and unit
	// cleanup, tagged with the recipe it came from.
	NormalizedIngredient struct {
		Name        string
		DisplayName string
		Quantity    float64
		HasQuantity bool
		RawAmount   string
		Unit        string
		Category    string
		Recipe      string
	}

	// RecipeIngredients is what a recipe source returns for one recipe id.
	RecipeIngredients struct {
		RecipeID    string       `json:"recipeId"`
		Title       string       `json:"title"`
		Source      string       `json:"source"`
		Ingredients []Ingredient `json:"ingredients"`
	}

	GroceryOptions struct {
		IncludeEstimates  bool `json:"includeEstimates"`
		CategorizeItems   bool `json:"categorizeItems"`
		MergeSimilarItems bool `json:"mergeSimilarItems"`
		ExcludeStaples    bool `json:"excludeStaples"`
	}

	GroceryItem struct {
		Name          string   `json:"name"`
		DisplayName   string   `json:"displayName"`
		Quantity      float64  `json:"quantity"`
		Unit          string   `json:"unit"`
		Category      string   `json:"category"`
		Recipes       []string `json:"recipes"`
		IsPurchased   bool     `json:"isPurchased"`
		EstimatedCost *Money   `json:"estimatedCost,omitempty"`
		// AmountNotes lists amounts that could not be summed into Quantity,
		// such as "to taste" or "2 cup" on a gram item.
		AmountNotes []string `json:"amountNotes,omitempty"`
	}

	GroceryList struct {
		ID                 string                   `json:"id"`
		UserID             string                   `json:"userId"`
		MealPlanID         string                   `json:"mealPlanId"`
		Name               string                   `json:"name"`
		Items              []GroceryItem            `json:"items"`
		Categories         map[string][]GroceryItem `json:"categories,omitempty"`
		ItemsCount         int                      `json:"itemsCount"`
		PurchasedCount     int                      `json:"purchasedCount"`
		TotalEstimatedCost *Money                   `json:"totalEstimatedCost,omitempty"`
		GeneratedAt        time.Time                `json:"generatedAt"`
		UpdatedAt          time.Time                `json:"updatedAt"`
		IsCompleted        bool                     `json:"isCompleted"`
		Options            GroceryOptions           `json:"options"`
	}
)

// NormalizeName is the grouping key for ingredient names: trimmed,
// lower-cased, inner whitespace collapsed.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// HasUnknownAmount reports whether part of the item's amount is not in Quantity.
func (i GroceryItem) HasUnknownAmount() bool {
	return len(i.AmountNotes) > 0
}

// Item returns the index of the item with the given name, matched after
// normalization, or -1.
func (l *GroceryList) Item(name string) int {
	key := NormalizeName(name)
	for idx := range l.Items {
		if l.Items[idx].Name == key {
			return idx
		}
	}
	return -1
}

// Recount recomputes the derived counters and, for categorized lists, the
// category buckets from the flat item list.
func (l *GroceryList) Recount() {
	l.ItemsCount = len(l.Items)
	l.PurchasedCount = 0
	for _, item := range l.Items {
		if item.IsPurchased {
			l.PurchasedCount++
		}
	}
	l.IsCompleted = l.ItemsCount > 0 && l.PurchasedCount == l.ItemsCount

	if !l.Options.CategorizeItems {
		l.Categories = nil
		return
	}
	l.Categories = make(map[string][]GroceryItem)
	for _, item := range l.Items {
		l.Categories[item.Category] = append(l.Categories[item.Category], item)
	}
}

// CategoryNames returns the category keys in a stable order with the
// default category last.
func (l *GroceryList) CategoryNames() []string {
	names := make([]string, 0, len(l.Categories))
	for name := range l.Categories {
		names = append(names, name)
	}
	sort.Slice(names, func(a, b int) bool {
		if names[a] == DefaultCategory || names[b] == DefaultCategory {
			return names[b] == DefaultCategory && names[a] != DefaultCategory
		}
		return names[a] < names[b]
	})
	return names
}
