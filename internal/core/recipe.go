package core

import "time"

type (
	// EditorialIngredient is the curated recipe shape: quantities are kept as
	// entered by editors.
	EditorialIngredient struct {
		Name     string `json:"name"`
		Quantity string `json:"quantity"`
		Unit     string `json:"unit"`
		Category string `json:"category"`
	}

	EditorialRecipe struct {
		ID          string                `json:"id"`
		Title       string                `json:"title"`
		Ingredients []EditorialIngredient `json:"ingredients"`
		Published   bool                  `json:"published"`
		UpdatedAt   time.Time             `json:"updatedAt"`
	}

	// UserRecipe is a recipe typed in by a user; ingredients are free-text
	// lines such as "2 cups flour".
	UserRecipe struct {
		ID              string    `json:"id"`
		UserID          string    `json:"userId"`
		Title           string    `json:"title"`
		IngredientLines []string  `json:"ingredientLines"`
		UpdatedAt       time.Time `json:"updatedAt"`
	}
)
