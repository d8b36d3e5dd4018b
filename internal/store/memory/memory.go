package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"smartplates/internal/core"
)

// Store keeps every record in process memory. Values are copied on the way
// in and out so callers never share slices with the store.
type Store struct {
	mu        sync.Mutex
	plans     map[string]core.MealPlan
	lists     map[string]core.GroceryList
	editorial map[string]core.EditorialRecipe
	user      map[string]core.UserRecipe
}

func New() *Store {
	return &Store{
		plans:     make(map[string]core.MealPlan),
		lists:     make(map[string]core.GroceryList),
		editorial: make(map[string]core.EditorialRecipe),
		user:      make(map[string]core.UserRecipe),
	}
}

// Seed is the on-disk layout of seed data for local development.
type Seed struct {
	MealPlans        []core.MealPlan        `json:"mealPlans"`
	EditorialRecipes []core.EditorialRecipe `json:"editorialRecipes"`
	UserRecipes      []core.UserRecipe      `json:"userRecipes"`
}

// NewFromFiles loads seed.json from base when present. A missing file
// yields an empty store.
func NewFromFiles(base string) (*Store, error) {
	s := New()
	data, err := os.ReadFile(filepath.Join(base, "seed.json"))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	ctx := context.Background()
	for _, p := range seed.MealPlans {
		if err := s.SaveMealPlan(ctx, p); err != nil {
			return nil, err
		}
	}
	for _, r := range seed.EditorialRecipes {
		_ = s.SaveEditorialRecipe(ctx, r)
	}
	for _, r := range seed.UserRecipes {
		_ = s.SaveUserRecipe(ctx, r)
	}
	return s, nil
}

func (s *Store) GetMealPlan(_ context.Context, id string) (core.MealPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return core.MealPlan{}, fmt.Errorf("meal plan %s: %w", id, core.ErrNotFound)
	}
	return clonePlan(p), nil
}

func (s *Store) ListMealPlans(_ context.Context, userID string) ([]core.MealPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.MealPlan
	for _, p := range s.plans {
		if p.UserID == userID {
			out = append(out, clonePlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WeekStartDate.Equal(out[j].WeekStartDate) {
			return out[i].WeekStartDate.Before(out[j].WeekStartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SaveMealPlan(_ context.Context, plan core.MealPlan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = clonePlan(plan)
	return nil
}

func (s *Store) GetGroceryList(_ context.Context, id string) (core.GroceryList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[id]
	if !ok {
		return core.GroceryList{}, fmt.Errorf("grocery list %s: %w", id, core.ErrNotFound)
	}
	return cloneList(l), nil
}

func (s *Store) FindGroceryListByPlan(_ context.Context, mealPlanID string) (core.GroceryList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *core.GroceryList
	for id := range s.lists {
		l := s.lists[id]
		if l.MealPlanID != mealPlanID {
			continue
		}
		if found == nil || l.GeneratedAt.After(found.GeneratedAt) {
			found = &l
		}
	}
	if found == nil {
		return core.GroceryList{}, fmt.Errorf("grocery list for plan %s: %w", mealPlanID, core.ErrNotFound)
	}
	return cloneList(*found), nil
}

func (s *Store) SaveGroceryList(_ context.Context, list core.GroceryList) error {
	if list.ID == "" {
		return fmt.Errorf("save grocery list: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[list.ID] = cloneList(list)
	return nil
}

func (s *Store) GetEditorialRecipe(_ context.Context, id string) (core.EditorialRecipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.editorial[id]
	if !ok {
		return core.EditorialRecipe{}, fmt.Errorf("editorial recipe %s: %w", id, core.ErrNotFound)
	}
	r.Ingredients = append([]core.EditorialIngredient(nil), r.Ingredients...)
	return r, nil
}

func (s *Store) GetUserRecipe(_ context.Context, id string) (core.UserRecipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.user[id]
	if !ok {
		return core.UserRecipe{}, fmt.Errorf("user recipe %s: %w", id, core.ErrNotFound)
	}
	r.IngredientLines = append([]string(nil), r.IngredientLines...)
	return r, nil
}

func (s *Store) SaveEditorialRecipe(_ context.Context, r core.EditorialRecipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Ingredients = append([]core.EditorialIngredient(nil), r.Ingredients...)
	s.editorial[r.ID] = r
	return nil
}

func (s *Store) SaveUserRecipe(_ context.Context, r core.UserRecipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.IngredientLines = append([]string(nil), r.IngredientLines...)
	s.user[r.ID] = r
	return nil
}

func clonePlan(p core.MealPlan) core.MealPlan {
	days := make([]core.DayMeals, len(p.Days))
	for i, d := range p.Days {
		days[i] = d.Clone()
	}
	p.Days = days
	return p
}

func cloneList(l core.GroceryList) core.GroceryList {
	items := make([]core.GroceryItem, len(l.Items))
	for i, it := range l.Items {
		it.Recipes = append([]string(nil), it.Recipes...)
		it.AmountNotes = append([]string(nil), it.AmountNotes...)
		if it.EstimatedCost != nil {
			c := *it.EstimatedCost
			it.EstimatedCost = &c
		}
		items[i] = it
	}
	l.Items = items
	if l.TotalEstimatedCost != nil {
		c := *l.TotalEstimatedCost
		l.TotalEstimatedCost = &c
	}
	l.Recount()
	return l
}
