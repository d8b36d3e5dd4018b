// Package store declares the persistence ports the services depend on.
// Adapters live in internal/store/memory and internal/storage.
package store

import (
	"context"

	"smartplates/internal/core"
)

// Ports for outbound adapters. Lookups of missing records return an error
// wrapping core.ErrNotFound.
type (
	MealPlanReader interface {
		GetMealPlan(ctx context.Context, id string) (core.MealPlan, error)
		// ListMealPlans returns the user's plans ordered by week start.
		ListMealPlans(ctx context.Context, userID string) ([]core.MealPlan, error)
	}

	MealPlanWriter interface {
		SaveMealPlan(ctx context.Context, plan core.MealPlan) error
	}

	MealPlanStore interface {
		MealPlanReader
		MealPlanWriter
	}

	GroceryListStore interface {
		GetGroceryList(ctx context.Context, id string) (core.GroceryList, error)
		// FindGroceryListByPlan returns the list generated for a meal plan.
		FindGroceryListByPlan(ctx context.Context, mealPlanID string) (core.GroceryList, error)
		SaveGroceryList(ctx context.Context, list core.GroceryList) error
	}

	EditorialRecipeReader interface {
		GetEditorialRecipe(ctx context.Context, id string) (core.EditorialRecipe, error)
	}

	UserRecipeReader interface {
		GetUserRecipe(ctx context.Context, id string) (core.UserRecipe, error)
	}

	RecipeWriter interface {
		SaveEditorialRecipe(ctx context.Context, r core.EditorialRecipe) error
		SaveUserRecipe(ctx context.Context, r core.UserRecipe) error
	}
)
