package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"smartplates/internal/core"
)

func plan(id, user string, week time.Time) core.MealPlan {
	return core.MealPlan{
		ID:            id,
		UserID:        user,
		WeekStartDate: week,
		Days: []core.DayMeals{{
			Date:   week,
			Dinner: []core.MealSlot{{RecipeID: "r1", RecipeName: "Soup"}},
		}},
	}
}

func TestMemoryStoreMealPlans(t *testing.T) {
	ctx := context.Background()
	s := New()
	w1 := time.Date(2025, 9, 7, 0, 0, 0, 0, time.UTC)
	w0 := time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC)

	for _, p := range []core.MealPlan{plan("b", "u1", w1), plan("a", "u1", w0), plan("c", "u2", w0)} {
		if err := s.SaveMealPlan(ctx, p); err != nil {
			t.Fatalf("save %s: %v", p.ID, err)
		}
	}
	plans, err := s.ListMealPlans(ctx, "u1")
	if err != nil || len(plans) != 2 || plans[0].ID != "a" || plans[1].ID != "b" {
		t.Fatalf("unexpected plans %+v (err=%v)", plans, err)
	}

	// returned values must not alias store state
	plans[0].Days[0].Dinner[0].RecipeName = "changed"
	got, err := s.GetMealPlan(ctx, "a")
	if err != nil || got.Days[0].Dinner[0].RecipeName != "Soup" {
		t.Fatalf("store state was mutated through a returned plan: %+v", got)
	}

	if _, err := s.GetMealPlan(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SaveMealPlan(ctx, core.MealPlan{ID: "x"}); err == nil {
		t.Fatal("expected validation error for plan without user")
	}
}

func TestMemoryStoreGroceryLists(t *testing.T) {
	ctx := context.Background()
	s := New()
	older := core.GroceryList{ID: "l1", MealPlanID: "p1", GeneratedAt: time.Unix(100, 0)}
	newer := core.GroceryList{ID: "l2", MealPlanID: "p1", GeneratedAt: time.Unix(200, 0),
		Items: []core.GroceryItem{{Name: "tomato", IsPurchased: true}}}
	for _, l := range []core.GroceryList{older, newer} {
		if err := s.SaveGroceryList(ctx, l); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := s.FindGroceryListByPlan(ctx, "p1")
	if err != nil || got.ID != "l2" {
		t.Fatalf("expected newest list l2, got %q (err=%v)", got.ID, err)
	}
	if got.PurchasedCount != 1 {
		t.Fatalf("expected derived counts, got %d", got.PurchasedCount)
	}
	if _, err := s.FindGroceryListByPlan(ctx, "p2"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SaveGroceryList(ctx, core.GroceryList{}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFromFiles(dir)
	if err != nil {
		t.Fatalf("missing seed should not fail: %v", err)
	}
	if plans, _ := s.ListMealPlans(context.Background(), "demo"); len(plans) != 0 {
		t.Fatalf("expected empty store")
	}

	seed := `{
		"mealPlans": [{"id": "p1", "userId": "demo", "weekStartDate": "2025-08-31T00:00:00Z", "days": []}],
		"editorialRecipes": [{"id": "ed-1", "title": "Pesto", "ingredients": [{"name": "basil", "quantity": "1", "unit": "bunch"}]}],
		"userRecipes": [{"id": "usr-1", "userId": "demo", "title": "Toast", "ingredientLines": ["2 slices bread"]}]
	}`
	if err := os.WriteFile(filepath.Join(dir, "seed.json"), []byte(seed), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err = NewFromFiles(dir)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	ctx := context.Background()
	if _, err := s.GetMealPlan(ctx, "p1"); err != nil {
		t.Fatalf("seeded plan missing: %v", err)
	}
	if r, err := s.GetEditorialRecipe(ctx, "ed-1"); err != nil || len(r.Ingredients) != 1 {
		t.Fatalf("seeded editorial recipe missing: %+v (err=%v)", r, err)
	}
	if r, err := s.GetUserRecipe(ctx, "usr-1"); err != nil || r.IngredientLines[0] != "2 slices bread" {
		t.Fatalf("seeded user recipe missing: %+v (err=%v)", r, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "seed.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := NewFromFiles(dir); err == nil {
		t.Fatal("expected decode error")
	}
}
