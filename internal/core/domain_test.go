package core

import (
	"testing"
	"time"
)

func TestParseMealType(t *testing.T) {
	cases := []struct {
		in   string
		want MealType
		ok   bool
	}{
		{"breakfast", Breakfast, true},
		{" Dinner ", Dinner, true},
		{"SNACKS", Snacks, true},
		{"brunch", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseMealType(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestDayMealsMerge(t *testing.T) {
	a := DayMeals{Lunch: []MealSlot{{RecipeID: "a"}}}
	b := DayMeals{Lunch: []MealSlot{{RecipeID: "b"}}, Dinner: []MealSlot{{RecipeID: "c"}}}
	a.Merge(b)
	if len(a.Lunch) != 2 || a.Lunch[0].RecipeID != "a" || a.Lunch[1].RecipeID != "b" {
		t.Fatalf("unexpected lunch bucket %+v", a.Lunch)
	}
	if a.Count() != 3 {
		t.Fatalf("expected 3 meals, got %d", a.Count())
	}
}

func TestDayMealsCloneDoesNotAlias(t *testing.T) {
	orig := DayMeals{Dinner: make([]MealSlot, 1, 4)}
	orig.Dinner[0] = MealSlot{RecipeID: "x"}
	c := orig.Clone()
	c.Merge(DayMeals{Dinner: []MealSlot{{RecipeID: "y"}}})
	if len(orig.Dinner) != 1 {
		t.Fatalf("clone merge leaked into original: %+v", orig.Dinner)
	}
	if orig.Dinner[:2][1].RecipeID == "y" {
		t.Fatalf("clone shares backing array with original")
	}
}

func TestMealPlanRecipeIDs(t *testing.T) {
	p := MealPlan{
		ID:     "p1",
		UserID: "u1",
		Days: []DayMeals{
			{Date: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), Breakfast: []MealSlot{{RecipeID: "r1"}}, Dinner: []MealSlot{{RecipeID: "r2"}}},
			{Date: time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC), Lunch: []MealSlot{{RecipeID: "r2"}, {RecipeID: " "}}, Snacks: []MealSlot{{RecipeID: "r3"}}},
		},
	}
	got := p.RecipeIDs()
	want := []string{"r1", "r2", "r3"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected valid plan, got %v", err)
	}
	if err := (MealPlan{ID: "x"}).Validate(); err != ErrEmptyUserID {
		t.Fatalf("expected ErrEmptyUserID, got %v", err)
	}
}

func TestGroceryListRecount(t *testing.T) {
	l := GroceryList{
		Options: GroceryOptions{CategorizeItems: true},
		Items: []GroceryItem{
			{Name: "tomato", Category: "Produce", IsPurchased: true},
			{Name: "basil", Category: "Produce"},
			{Name: "pasta", Category: "Pantry"},
		},
	}
	l.Recount()
	if l.ItemsCount != 3 || l.PurchasedCount != 1 || l.IsCompleted {
		t.Fatalf("unexpected counts %d/%d completed=%v", l.PurchasedCount, l.ItemsCount, l.IsCompleted)
	}
	if len(l.Categories["Produce"]) != 2 || len(l.Categories["Pantry"]) != 1 {
		t.Fatalf("unexpected categories %+v", l.Categories)
	}
	for i := range l.Items {
		l.Items[i].IsPurchased = true
	}
	l.Recount()
	if !l.IsCompleted {
		t.Fatalf("expected completed list")
	}

	empty := GroceryList{}
	empty.Recount()
	if empty.IsCompleted {
		t.Fatalf("empty list must not be completed")
	}
}

func TestCategoryNamesDefaultLast(t *testing.T) {
	l := GroceryList{Categories: map[string][]GroceryItem{
		DefaultCategory: nil, "Produce": nil, "Dairy": nil,
	}}
	got := l.CategoryNames()
	want := []string{"Dairy", "Produce", DefaultCategory}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  Cherry   Tomato "); got != "cherry tomato" {
		t.Fatalf("unexpected %q", got)
	}
	l := GroceryList{Items: []GroceryItem{{Name: "cherry tomato"}}}
	if l.Item("Cherry Tomato") != 0 || l.Item("onion") != -1 {
		t.Fatalf("item lookup mismatch")
	}
}

func TestMealPlanRecipeNamesMatchTrimmedIDs(t *testing.T) {
	p := MealPlan{
		ID:     "p1",
		UserID: "u1",
		Days: []DayMeals{
			{Date: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), Dinner: []MealSlot{{RecipeID: " pasta ", RecipeName: "Pasta"}, {RecipeID: " ", RecipeName: "Nothing"}}},
		},
	}
	ids := p.RecipeIDs()
	names := p.RecipeNames()
	if len(ids) != 1 || names[ids[0]] != "Pasta" {
		t.Fatalf("expected a name for %v, got %v", ids, names)
	}
	if _, ok := names[""]; ok {
		t.Fatal("blank ids must not get a name")
	}
}
