package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartplates/internal/cache"
	"smartplates/internal/calendar"
	"smartplates/internal/core"
	"smartplates/internal/grocery"
	"smartplates/internal/grocery/export"
	"smartplates/internal/recipes"
	"smartplates/internal/sheets/google"
	"smartplates/internal/store/memory"
)

var fixedNow = time.Date(2025, 9, 10, 9, 30, 0, 0, time.UTC)

func date(d int) time.Time {
	return time.Date(2025, 9, d, 0, 0, 0, 0, time.UTC)
}

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.SaveEditorialRecipe(ctx, core.EditorialRecipe{
		ID:        "pasta",
		Title:     "Pasta al pomodoro",
		Published: true,
		Ingredients: []core.EditorialIngredient{
			{Name: "Tomato", Quantity: "4", Unit: "pcs", Category: "Produce"},
			{Name: "Spaghetti", Quantity: "200", Unit: "g", Category: "Pantry"},
		},
	}))
	require.NoError(t, st.SaveUserRecipe(ctx, core.UserRecipe{
		ID:              "salad",
		UserID:          "u1",
		Title:           "Tomato salad",
		IngredientLines: []string{"2 pcs tomato", "1 cucumber"},
	}))
	require.NoError(t, st.SaveMealPlan(ctx, core.MealPlan{
		ID:            "week36",
		UserID:        "u1",
		WeekStartDate: date(7),
		Days: []core.DayMeals{
			{Date: date(8), Dinner: []core.MealSlot{{RecipeID: "pasta", RecipeName: "Pasta"}}},
			{Date: date(9), Lunch: []core.MealSlot{{RecipeID: "salad", RecipeName: "Salad"}}},
		},
	}))
	return st
}

func newGroceryService(t *testing.T, st *memory.Store, opts ...GroceryOption) *GroceryService {
	t.Helper()
	catalog, err := grocery.DefaultCatalog()
	require.NoError(t, err)
	resolver := recipes.NewResolver(nil, recipes.NewEditorialSource(st), recipes.NewUserSource(st))
	gen := grocery.NewGenerator(resolver, catalog, grocery.WithClock(func() time.Time { return fixedNow }))
	opts = append([]GroceryOption{WithGroceryClock(func() time.Time { return fixedNow })}, opts...)
	return NewGroceryService(st, st, gen, opts...)
}

func TestGroceryServiceGenerate(t *testing.T) {
	st := seedStore(t)
	svc := newGroceryService(t, st)
	ctx := context.Background()

	list, report, err := svc.Generate(ctx, GenerateRequest{MealPlanID: "week36", UserID: "u1", Name: "Week 36"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Recipes)
	assert.Equal(t, 2, report.Resolved)
	assert.Equal(t, "Week 36", list.Name)
	assert.Equal(t, "week36", list.MealPlanID)

	idx := list.Item("tomato")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, 6.0, list.Items[idx].Quantity)
	assert.ElementsMatch(t, []string{"Pasta al pomodoro", "Tomato salad"}, list.Items[idx].Recipes)

	stored, err := st.GetGroceryList(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, list.ItemsCount, stored.ItemsCount)
}

func TestGroceryServiceGenerateRejectsForeignPlan(t *testing.T) {
	svc := newGroceryService(t, seedStore(t))

	_, _, err := svc.Generate(context.Background(), GenerateRequest{MealPlanID: "week36", UserID: "someone-else"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, _, err = svc.Generate(context.Background(), GenerateRequest{UserID: "u1"})
	assert.ErrorIs(t, err, core.ErrEmptyPlanID)
}

func TestGroceryServiceRegenerateCarriesPurchasedState(t *testing.T) {
	st := seedStore(t)
	svc := newGroceryService(t, st)
	ctx := context.Background()

	first, _, err := svc.Generate(ctx, GenerateRequest{MealPlanID: "week36", UserID: "u1", Name: "Week 36"})
	require.NoError(t, err)
	_, changed, err := svc.Toggle(ctx, first.ID, "u1", "  TOMATO ", true)
	require.NoError(t, err)
	require.True(t, changed)

	second, _, err := svc.Generate(ctx, GenerateRequest{MealPlanID: "week36", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Week 36", second.Name)
	assert.True(t, second.Items[second.Item("tomato")].IsPurchased)
	assert.Equal(t, 1, second.PurchasedCount)
}

type countingLists struct {
	*memory.Store
	mu    sync.Mutex
	saves int
}

func (c *countingLists) SaveGroceryList(ctx context.Context, l core.GroceryList) error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return c.Store.SaveGroceryList(ctx, l)
}

func TestGroceryServiceToggle(t *testing.T) {
	st := seedStore(t)
	lists := &countingLists{Store: st}
	catalog, err := grocery.DefaultCatalog()
	require.NoError(t, err)
	gen := grocery.NewGenerator(recipes.NewResolver(nil, recipes.NewEditorialSource(st), recipes.NewUserSource(st)), catalog)
	svc := NewGroceryService(st, lists, gen)
	ctx := context.Background()

	list, _, err := svc.Generate(ctx, GenerateRequest{MealPlanID: "week36", UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, 1, lists.saves)

	updated, changed, err := svc.Toggle(ctx, list.ID, "u1", "cucumber", true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, updated.PurchasedCount)
	assert.Equal(t, 2, lists.saves)

	_, changed, err = svc.Toggle(ctx, list.ID, "u1", "Cucumber", true)
	require.NoError(t, err)
	assert.False(t, changed, "same value twice is a no-op")
	assert.Equal(t, 2, lists.saves, "a no-op toggle must not save")

	_, _, err = svc.Toggle(ctx, list.ID, "u1", "caviar", true)
	assert.ErrorIs(t, err, core.ErrItemNotFound)

	_, _, err = svc.Toggle(ctx, list.ID, "intruder", "cucumber", false)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGroceryServiceRefresh(t *testing.T) {
	st := seedStore(t)
	svc := newGroceryService(t, st)
	ctx := context.Background()

	_, refreshed, err := svc.Refresh(ctx, "week36")
	require.NoError(t, err)
	assert.False(t, refreshed, "plans without a list are left alone")

	list, _, err := svc.Generate(ctx, GenerateRequest{
		MealPlanID: "week36",
		UserID:     "u1",
		Name:       "Shopping",
		Options:    core.GroceryOptions{CategorizeItems: true},
	})
	require.NoError(t, err)
	_, _, err = svc.Toggle(ctx, list.ID, "u1", "spaghetti", true)
	require.NoError(t, err)

	plan, err := st.GetMealPlan(ctx, "week36")
	require.NoError(t, err)
	plan.Days[1].Lunch = nil
	require.NoError(t, st.SaveMealPlan(ctx, plan))

	fresh, refreshed, err := svc.Refresh(ctx, "week36")
	require.NoError(t, err)
	require.True(t, refreshed)
	assert.Equal(t, list.ID, fresh.ID)
	assert.Equal(t, "Shopping", fresh.Name)
	assert.True(t, fresh.Options.CategorizeItems)
	assert.Equal(t, -1, fresh.Item("cucumber"))
	assert.Equal(t, 4.0, fresh.Items[fresh.Item("tomato")].Quantity)
	assert.True(t, fresh.Items[fresh.Item("spaghetti")].IsPurchased)
}

type fakeSheets struct {
	exported []string
	err      error
}

func (f *fakeSheets) Export(_ context.Context, list core.GroceryList) (google.Result, error) {
	if f.err != nil {
		return google.Result{}, f.err
	}
	f.exported = append(f.exported, list.ID)
	return google.Result{SheetTitle: list.Name, Rows: len(list.Items) + 1}, nil
}

func TestGroceryServiceExport(t *testing.T) {
	st := seedStore(t)
	ctx := context.Background()

	svc := newGroceryService(t, st)
	list, _, err := svc.Generate(ctx, GenerateRequest{MealPlanID: "week36", UserID: "u1", Name: "Week 36"})
	require.NoError(t, err)

	doc, err := svc.Export(ctx, list.ID, "u1", export.FormatText)
	require.NoError(t, err)
	assert.Equal(t, "Week_36.txt", doc.Filename)
	assert.Contains(t, string(doc.Body), "[ ]")

	_, err = svc.ExportToSheets(ctx, list.ID, "u1")
	assert.ErrorIs(t, err, ErrSheetsDisabled)
	assert.False(t, svc.SheetsEnabled())

	sheets := &fakeSheets{}
	svc = newGroceryService(t, st, WithSheets(sheets))
	res, err := svc.ExportToSheets(ctx, list.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Week 36", res.SheetTitle)
	assert.Equal(t, []string{list.ID}, sheets.exported)

	sheets.err = errors.New("quota exceeded")
	_, err = svc.ExportToSheets(ctx, list.ID, "u1")
	assert.ErrorContains(t, err, "quota exceeded")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) PublishMealPlanChanged(_ context.Context, planID, _, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, planID+":"+reason)
	return p.err
}

func newPlanner(st *memory.Store, opts ...PlannerOption) *PlannerService {
	ids := 0
	base := []PlannerOption{
		WithPlannerClock(func() time.Time { return fixedNow }),
		WithPlanIDGenerator(func() string {
			ids++
			return "new-plan-" + string(rune('0'+ids))
		}),
	}
	return NewPlannerService(st, append(base, opts...)...)
}

func TestPlannerServiceMonth(t *testing.T) {
	st := seedStore(t)
	grids := cache.NewLRUCache[calendar.Grid](10, time.Minute)
	svc := newPlanner(st, WithGridCache(grids))
	ctx := context.Background()

	g, err := svc.Month(ctx, "u1", calendar.View{Year: 2025, Month: time.September, Selected: "2025-09-08"})
	require.NoError(t, err)
	assert.Len(t, g.Cells, calendar.GridCells)

	c, ok := g.Cell("2025-09-08")
	require.True(t, ok)
	assert.True(t, c.HasEvents)
	assert.True(t, c.IsSelected)
	today, _ := g.Cell("2025-09-10")
	assert.True(t, today.IsToday)
	assert.Equal(t, 1, grids.Size())

	// cached grids are marked per call
	g, err = svc.Month(ctx, "u1", calendar.View{Year: 2025, Month: time.September})
	require.NoError(t, err)
	c, _ = g.Cell("2025-09-08")
	assert.False(t, c.IsSelected)
	assert.True(t, c.HasEvents)
}

func TestPlannerServiceMoveInvalidatesAndPublishes(t *testing.T) {
	st := seedStore(t)
	grids := cache.NewLRUCache[calendar.Grid](10, time.Minute)
	pub := &recordingPublisher{}
	svc := newPlanner(st, WithGridCache(grids), WithPublisher(pub))
	ctx := context.Background()

	_, err := svc.Month(ctx, "u1", calendar.View{Year: 2025, Month: time.September})
	require.NoError(t, err)
	require.Equal(t, 1, grids.Size())

	res, err := svc.Move(ctx, "u1", MoveInput{
		Source:      calendar.SlotRef{Date: "2025-09-08", MealType: core.Dinner, Index: 0},
		Destination: calendar.Destination{Date: "2025-09-10", MealType: core.Lunch},
	})
	require.NoError(t, err)
	require.True(t, res.Moved)
	assert.Equal(t, "pasta", res.Slot.RecipeID)
	assert.Equal(t, 0, grids.Size(), "cached month must be dropped")
	assert.Equal(t, []string{"week36:moved"}, pub.events)

	g, err := svc.Month(ctx, "u1", calendar.View{Year: 2025, Month: time.September})
	require.NoError(t, err)
	src, _ := g.Cell("2025-09-08")
	dst, _ := g.Cell("2025-09-10")
	assert.False(t, src.HasEvents)
	require.Len(t, dst.Meals.Lunch, 1)
	assert.Equal(t, "pasta", dst.Meals.Lunch[0].RecipeID)
}

func TestPlannerServiceCopyToUncoveredWeekCreatesPlan(t *testing.T) {
	st := seedStore(t)
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newPlanner(st, WithPublisher(pub))
	ctx := context.Background()

	res, err := svc.Move(ctx, "u1", MoveInput{
		Source:      calendar.SlotRef{Date: "2025-09-09", MealType: core.Lunch, Index: 0},
		Destination: calendar.Destination{Date: "2025-09-24", MealType: core.Dinner},
		Copy:        true,
	})
	require.NoError(t, err, "publish failures do not fail the move")
	require.True(t, res.Moved)
	require.Len(t, res.Changed, 1)
	assert.Equal(t, "new-plan-1", res.Changed[0].ID)
	assert.Equal(t, []string{"new-plan-1:copied"}, pub.events)

	plans, err := svc.ListPlans(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, date(21), plans[1].WeekStartDate)

	orig, err := st.GetMealPlan(ctx, "week36")
	require.NoError(t, err)
	assert.Len(t, orig.Days[1].Lunch, 1, "copy keeps the source")
}

func TestPlannerServiceStaleMoveIsNoop(t *testing.T) {
	st := seedStore(t)
	pub := &recordingPublisher{}
	svc := newPlanner(st, WithPublisher(pub))

	res, err := svc.Move(context.Background(), "u1", MoveInput{
		Source:      calendar.SlotRef{Date: "2025-09-08", MealType: core.Dinner, Index: 3},
		Destination: calendar.Destination{Date: "2025-09-10", MealType: core.Lunch},
	})
	require.NoError(t, err)
	assert.False(t, res.Moved)
	assert.Empty(t, pub.events)

	_, err = svc.Move(context.Background(), "u1", MoveInput{
		Source:      calendar.SlotRef{Date: "2025-09-08", MealType: "brunch"},
		Destination: calendar.Destination{Date: "2025-09-10", MealType: core.Lunch},
	})
	assert.ErrorIs(t, err, core.ErrInvalidMealType)
}

func TestPlannerServiceSavePlan(t *testing.T) {
	st := seedStore(t)
	pub := &recordingPublisher{}
	svc := newPlanner(st, WithPublisher(pub))
	ctx := context.Background()

	saved, err := svc.SavePlan(ctx, "u1", core.MealPlan{
		Days: []core.DayMeals{{
			Date:      time.Date(2025, 9, 17, 13, 45, 0, 0, time.UTC),
			Breakfast: []core.MealSlot{{RecipeID: "oats", RecipeName: "Oats"}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "new-plan-1", saved.ID)
	assert.Equal(t, "u1", saved.UserID)
	assert.Equal(t, date(14), saved.WeekStartDate)
	assert.Equal(t, date(17), saved.Days[0].Date)
	assert.Equal(t, fixedNow, saved.UpdatedAt)
	assert.Equal(t, []string{"new-plan-1:saved"}, pub.events)

	_, err = svc.SavePlan(ctx, "intruder", core.MealPlan{ID: "week36", WeekStartDate: date(7)})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

// gatedStore pauses the first ListMealPlans call after it has read the plans.
type gatedStore struct {
	*memory.Store
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (s *gatedStore) ListMealPlans(ctx context.Context, userID string) ([]core.MealPlan, error) {
	plans, err := s.Store.ListMealPlans(ctx, userID)
	s.once.Do(func() {
		close(s.read)
		<-s.release
	})
	return plans, err
}

func TestPlannerServiceMonthDoesNotCacheGridRacingAMove(t *testing.T) {
	st := &gatedStore{Store: seedStore(t), read: make(chan struct{}), release: make(chan struct{})}
	grids := cache.NewLRUCache[calendar.Grid](10, time.Minute)
	svc := NewPlannerService(st,
		WithGridCache(grids),
		WithPlannerClock(func() time.Time { return fixedNow }),
		WithPlanIDGenerator(func() string { return "new-plan" }))
	ctx := context.Background()
	september := calendar.View{Year: 2025, Month: time.September}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Month(ctx, "u1", september)
		done <- err
	}()
	<-st.read

	res, err := svc.Move(ctx, "u1", MoveInput{
		Source:      calendar.SlotRef{Date: "2025-09-08", MealType: core.Dinner, Index: 0},
		Destination: calendar.Destination{Date: "2025-09-10", MealType: core.Lunch},
	})
	require.NoError(t, err)
	require.True(t, res.Moved)

	close(st.release)
	require.NoError(t, <-done)
	assert.Equal(t, 0, grids.Size(), "grid rendered from the old plans must not be cached")

	g, err := svc.Month(ctx, "u1", september)
	require.NoError(t, err)
	src, _ := g.Cell("2025-09-08")
	dst, _ := g.Cell("2025-09-10")
	assert.False(t, src.HasEvents)
	require.Len(t, dst.Meals.Lunch, 1)
	assert.Equal(t, "pasta", dst.Meals.Lunch[0].RecipeID)
}

func TestPlannerServiceMarksTodayInLocation(t *testing.T) {
	kiritimati := time.FixedZone("LINT", 14*60*60)
	late := time.Date(2025, 9, 10, 23, 30, 0, 0, time.UTC)
	svc := NewPlannerService(seedStore(t),
		WithLocation(kiritimati),
		WithPlannerClock(func() time.Time { return late }))

	g, err := svc.Month(context.Background(), "u1", calendar.View{Year: 2025, Month: time.September})
	require.NoError(t, err)
	today, _ := g.Cell("2025-09-11")
	assert.True(t, today.IsToday)
	yesterday, _ := g.Cell("2025-09-10")
	assert.False(t, yesterday.IsToday)
}
