package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"smartplates/internal/calendar"
	"smartplates/internal/core"
	"smartplates/internal/grocery"
	applog "smartplates/internal/log"
	"smartplates/internal/recipes"
	"smartplates/internal/services"
	"smartplates/internal/store/memory"
)

var testNow = time.Date(2025, 9, 10, 9, 30, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2025, 9, d, 0, 0, 0, 0, time.UTC)
}

type testServer struct {
	*Server
	store *memory.Store
}

func newTestServer(t *testing.T, mutate ...func(*Dependencies)) testServer {
	t.Helper()
	st := memory.New()
	ctx := context.Background()
	if err := st.SaveEditorialRecipe(ctx, core.EditorialRecipe{
		ID:        "pasta",
		Title:     "Pasta al pomodoro",
		Published: true,
		Ingredients: []core.EditorialIngredient{
			{Name: "Tomato", Quantity: "4", Unit: "pcs", Category: "Produce"},
			{Name: "Spaghetti", Quantity: "200", Unit: "g", Category: "Pantry"},
		},
	}); err != nil {
		t.Fatalf("seed recipe: %v", err)
	}
	if err := st.SaveMealPlan(ctx, core.MealPlan{
		ID:            "week36",
		UserID:        "u1",
		WeekStartDate: day(7),
		Days: []core.DayMeals{
			{Date: day(8), Dinner: []core.MealSlot{{RecipeID: "pasta", RecipeName: "Pasta"}}},
		},
	}); err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	catalog, err := grocery.DefaultCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	clock := func() time.Time { return testNow }
	gen := grocery.NewGenerator(recipes.NewResolver(nil, recipes.NewEditorialSource(st)), catalog, grocery.WithClock(clock))

	deps := Dependencies{
		Grocery:       services.NewGroceryService(st, st, gen, services.WithGroceryClock(clock)),
		Planner:       services.NewPlannerService(st, services.WithPlannerClock(clock)),
		Logger:        applog.New(applog.Config{Level: applog.ParseLevel("error"), Output: io.Discard}),
		DefaultUserID: "u1",
		Now:           clock,
	}
	for _, m := range mutate {
		m(&deps)
	}
	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return testServer{Server: srv, store: st}
}

func (ts testServer) do(t *testing.T, method, target string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	return rr
}

var htmx = map[string]string{"HX-Request": "true"}

func TestIndexAndHealth(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, "September 2025") {
		t.Fatalf("index body missing month title")
	}
	if !strings.Contains(body, "Pasta") {
		t.Fatalf("index body missing scheduled meal")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := ts.do(t, http.MethodGet, path, nil, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestReadyReportsFailingCheck(t *testing.T) {
	ts := newTestServer(t, func(d *Dependencies) {
		d.Checks = []ReadinessCheck{{Name: "storage", Check: func(context.Context) error {
			return errors.New("database is locked")
		}}}
	})

	rr := ts.do(t, http.MethodGet, "/readyz", nil, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var resp struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "not_ready" {
		t.Fatalf("status=%q", resp.Status)
	}
	if got, _ := resp.Checks["storage"].(string); !strings.Contains(got, "database is locked") {
		t.Fatalf("storage check=%v", resp.Checks["storage"])
	}
}

func TestCalendarJSON(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/calendar?year=2025&month=9&selected=2025-09-08", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var grid calendar.Grid
	if err := json.NewDecoder(rr.Body).Decode(&grid); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(grid.Cells) != calendar.GridCells {
		t.Fatalf("cells=%d", len(grid.Cells))
	}
	cell, ok := grid.Cell("2025-09-08")
	if !ok || cell.MealCount != 1 || !cell.IsSelected {
		t.Fatalf("unexpected cell %+v", cell)
	}
	today, _ := grid.Cell("2025-09-10")
	if !today.IsToday {
		t.Fatalf("expected 2025-09-10 flagged as today")
	}
}

func TestCalendarNavigateAndJump(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/ui/calendar/navigate?delta=-9&year=2025&month=9", nil, htmx)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "December 2024") {
		t.Fatalf("navigate status=%d", rr.Code)
	}

	rr = ts.do(t, http.MethodGet, "/ui/calendar/navigate?delta=x", nil, htmx)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad delta, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodGet, "/ui/calendar/jump?q="+url.QueryEscape("14/02/2026")+"&year=2025&month=9", nil, htmx)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "February 2026") {
		t.Fatalf("jump status=%d", rr.Code)
	}
	if strings.Contains(rr.Header().Get("HX-Trigger"), "warning") {
		t.Fatalf("valid jump should not warn")
	}

	rr = ts.do(t, http.MethodGet, "/ui/calendar/jump?q=someday&year=2025&month=9", nil, htmx)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "September 2025") {
		t.Fatalf("bad jump should keep the current month, status=%d", rr.Code)
	}
	if trigger := rr.Header().Get("HX-Trigger"); strings.Contains(trigger, "warning") || strings.Contains(trigger, "error") {
		t.Fatalf("unrecognised jump input must be ignored silently, got %q", trigger)
	}
}

func TestMoveMeal(t *testing.T) {
	ts := newTestServer(t)

	form := url.Values{
		"from_date": {"2025-09-08"},
		"from_meal": {"dinner"},
		"index":     {"0"},
		"to_date":   {"2025-09-10"},
		"to_meal":   {"lunch"},
	}
	rr := ts.do(t, http.MethodPost, "/api/meal-plans/move", form, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp moveResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Moved || resp.Slot.RecipeID != "pasta" {
		t.Fatalf("unexpected response %+v", resp)
	}

	plan, err := ts.store.GetMealPlan(context.Background(), "week36")
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	var moved bool
	for _, d := range plan.Days {
		if calendar.DateKey(d.Date) == "2025-09-10" && len(d.Lunch) == 1 {
			moved = true
		}
		if calendar.DateKey(d.Date) == "2025-09-08" && len(d.Dinner) != 0 {
			t.Fatalf("source slot should be empty after a move")
		}
	}
	if !moved {
		t.Fatalf("meal not found at destination")
	}

	// the same source is now stale
	rr = ts.do(t, http.MethodPost, "/api/meal-plans/move", form, htmx)
	if rr.Code != http.StatusOK {
		t.Fatalf("stale move status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "warning") {
		t.Fatalf("expected warning for stale move")
	}
}

func TestMoveMealCopyHTMX(t *testing.T) {
	ts := newTestServer(t)

	form := url.Values{
		"from_date": {"2025-09-08"},
		"from_meal": {"dinner"},
		"to_date":   {"2025-10-01"},
		"to_meal":   {"dinner"},
		"copy":      {"on"},
		"year":      {"2025"},
		"month":     {"9"},
	}
	rr := ts.do(t, http.MethodPost, "/api/meal-plans/move", form, htmx)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, "calendar:changed") || !strings.Contains(trigger, "Copied") {
		t.Fatalf("unexpected trigger %q", trigger)
	}
	if !strings.Contains(rr.Body.String(), "September 2025") {
		t.Fatalf("expected the on-screen month to be re-rendered")
	}

	plans, err := ts.store.ListMealPlans(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("expected a new plan for the uncovered week, got %d plans", len(plans))
	}
}

func TestMoveMealValidation(t *testing.T) {
	ts := newTestServer(t)

	cases := []url.Values{
		{"from_date": {"2025-09-08"}, "from_meal": {"dinner"}, "to_date": {"2025-09-10"}, "to_meal": {"brunch"}},
		{"from_date": {"2025-13-08"}, "from_meal": {"dinner"}, "to_date": {"2025-09-10"}, "to_meal": {"lunch"}},
		{"from_date": {"2025-09-08"}, "from_meal": {"dinner"}, "index": {"first"}, "to_date": {"2025-09-10"}, "to_meal": {"lunch"}},
		{"from_date": {"2025-09-08"}, "from_meal": {"dinner"}, "index": {"-1"}, "to_date": {"2025-09-10"}, "to_meal": {"lunch"}},
	}
	for _, form := range cases {
		rr := ts.do(t, http.MethodPost, "/api/meal-plans/move", form, nil)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("form %v: expected 422, got %d", form, rr.Code)
		}
	}
}

func TestSavePlan(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/meal-plans", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rr.Code)
	}

	body := `{"id":"week38","days":[{"date":"2025-09-23T00:00:00Z","breakfast":[{"recipeId":"pasta","recipeName":"Pasta"}]}]}`
	req = httptest.NewRequest(http.MethodPut, "/api/meal-plans", strings.NewReader(body))
	rr = httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var saved core.MealPlan
	if err := json.NewDecoder(rr.Body).Decode(&saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if saved.UserID != "u1" || calendar.DateKey(saved.WeekStartDate) != "2025-09-21" {
		t.Fatalf("unexpected plan %+v", saved)
	}

	rr = ts.do(t, http.MethodGet, "/api/meal-plans", nil, map[string]string{HeaderUserID: "nobody"})
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected an empty list for another user, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestGroceryListLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/grocery-lists", url.Values{
		"meal_plan_id":     {"week36"},
		"name":             {"Week 36"},
		"categorize_items": {"on"},
	}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("generate status=%d body=%s", rr.Code, rr.Body.String())
	}
	var gen generateResponse
	if err := json.NewDecoder(rr.Body).Decode(&gen); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gen.Report.Resolved != 1 || gen.List.ItemsCount != 2 {
		t.Fatalf("unexpected generate response %+v", gen)
	}
	id := gen.List.ID

	rr = ts.do(t, http.MethodPost, "/api/grocery-lists/"+id+"/toggle", url.Values{"name": {"Tomato"}}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("toggle status=%d body=%s", rr.Code, rr.Body.String())
	}
	var tog toggleResponse
	if err := json.NewDecoder(rr.Body).Decode(&tog); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !tog.Changed || tog.List.PurchasedCount != 1 {
		t.Fatalf("unexpected toggle response %+v", tog)
	}

	rr = ts.do(t, http.MethodPost, "/api/grocery-lists/"+id+"/toggle", url.Values{"name": {"saffron"}}, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown item, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodGet, "/ui/grocery-lists/"+id, nil, htmx)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "1 of 2 purchased") {
		t.Fatalf("partial status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "grocery:updated") {
		t.Fatalf("expected grocery:updated trigger")
	}

	rr = ts.do(t, http.MethodGet, "/api/grocery-lists/"+id+"/export?format=text", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status=%d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") || !strings.Contains(cd, ".txt") {
		t.Fatalf("unexpected Content-Disposition %q", cd)
	}
	if !strings.Contains(rr.Body.String(), "Spaghetti") {
		t.Fatalf("export body missing item")
	}

	rr = ts.do(t, http.MethodGet, "/api/grocery-lists/"+id+"/export?format=pdf", nil, nil)
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("pdf export status=%d type=%q", rr.Code, rr.Header().Get("Content-Type"))
	}

	rr = ts.do(t, http.MethodGet, "/api/grocery-lists/"+id+"/export?format=docx", nil, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown format, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodGet, "/api/grocery-lists/"+id+"/export?format=sheets", nil, nil)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without sheets, got %d", rr.Code)
	}
}

func TestGroceryListIsPrivate(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/grocery-lists", url.Values{"meal_plan_id": {"week36"}}, map[string]string{HeaderUserID: "intruder"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a foreign plan, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodPost, "/api/grocery-lists", url.Values{"meal_plan_id": {"week36"}}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("generate status=%d", rr.Code)
	}
	var gen generateResponse
	if err := json.NewDecoder(rr.Body).Decode(&gen); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rr = ts.do(t, http.MethodGet, "/api/grocery-lists/"+gen.List.ID, nil, map[string]string{HeaderUserID: "intruder"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a foreign list, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodPost, "/api/grocery-lists", url.Values{}, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without meal_plan_id, got %d", rr.Code)
	}
}

func TestRateLimitedWrites(t *testing.T) {
	ts := newTestServer(t, func(d *Dependencies) { d.RateLimitPerMinute = 1 })

	form := url.Values{"meal_plan_id": {"week36"}}
	if rr := ts.do(t, http.MethodPost, "/api/grocery-lists", form, nil); rr.Code != http.StatusCreated {
		t.Fatalf("first request status=%d", rr.Code)
	}
	rr := ts.do(t, http.MethodPost, "/api/grocery-lists", form, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}

	// reads are not limited
	if rr := ts.do(t, http.MethodGet, "/api/calendar", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("read status=%d", rr.Code)
	}
}

func TestSuspiciousRequestBlocked(t *testing.T) {
	ts := newTestServer(t)

	if rr := ts.do(t, http.MethodGet, "/api/calendar?year=2025", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("plain request status=%d", rr.Code)
	}
	rr := ts.do(t, http.MethodGet, "/api/calendar?file=../../etc/passwd", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected probe to get 404, got %d", rr.Code)
	}
}
