package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"smartplates/internal/calendar"
	"smartplates/internal/core"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements the readiness check.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// GetMealPlan implements store.MealPlanReader
func (r *SQLiteRepository) GetMealPlan(ctx context.Context, id string) (core.MealPlan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, week_start_date, days, updated_at FROM meal_plans WHERE id = ?`, id)
	p, err := scanMealPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MealPlan{}, fmt.Errorf("meal plan %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.MealPlan{}, fmt.Errorf("get meal plan %s: %w", id, err)
	}
	return p, nil
}

// ListMealPlans implements store.MealPlanReader
func (r *SQLiteRepository) ListMealPlans(ctx context.Context, userID string) ([]core.MealPlan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, week_start_date, days, updated_at FROM meal_plans
		 WHERE user_id = ? ORDER BY week_start_date, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list meal plans: %w", err)
	}
	defer rows.Close()

	var plans []core.MealPlan
	for rows.Next() {
		p, err := scanMealPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meal plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meal plans: %w", err)
	}
	return plans, nil
}

// SaveMealPlan implements store.MealPlanWriter
func (r *SQLiteRepository) SaveMealPlan(ctx context.Context, plan core.MealPlan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	days, err := json.Marshal(plan.Days)
	if err != nil {
		return fmt.Errorf("marshal meal plan days: %w", err)
	}
	updated := plan.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO meal_plans (id, user_id, week_start_date, days, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   user_id = excluded.user_id,
		   week_start_date = excluded.week_start_date,
		   days = excluded.days,
		   updated_at = excluded.updated_at`,
		plan.ID, plan.UserID, weekKey(plan.WeekStartDate), string(days), updated.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save meal plan %s: %w", plan.ID, err)
	}
	slog.DebugContext(ctx, "Meal plan saved to SQLite", "plan_id", plan.ID, "days", len(plan.Days))
	return nil
}

// weekKey stores the week start as the calendar date it names in its own
// location. Converting to UTC first would shift east-of-UTC Sundays back a day.
func weekKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return calendar.DateKey(t)
}

// parseWeekKey reads a week start key. Rows written as RFC 3339 timestamps
// keep the date they carry.
func parseWeekKey(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := calendar.ParseDateKey(s); err == nil {
		return t, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse week start: %w", err)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMealPlan(s scanner) (core.MealPlan, error) {
	var p core.MealPlan
	var week, days, updated string
	if err := s.Scan(&p.ID, &p.UserID, &week, &days, &updated); err != nil {
		return core.MealPlan{}, err
	}
	var err error
	if p.WeekStartDate, err = parseWeekKey(week); err != nil {
		return core.MealPlan{}, err
	}
	if p.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return core.MealPlan{}, fmt.Errorf("parse updated at: %w", err)
	}
	if err := json.Unmarshal([]byte(days), &p.Days); err != nil {
		return core.MealPlan{}, fmt.Errorf("unmarshal meal plan days: %w", err)
	}
	return p, nil
}

// GetGroceryList implements store.GroceryListStore
func (r *SQLiteRepository) GetGroceryList(ctx context.Context, id string) (core.GroceryList, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM grocery_lists WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.GroceryList{}, fmt.Errorf("grocery list %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.GroceryList{}, fmt.Errorf("get grocery list %s: %w", id, err)
	}
	return decodeList(payload)
}

// FindGroceryListByPlan implements store.GroceryListStore
func (r *SQLiteRepository) FindGroceryListByPlan(ctx context.Context, mealPlanID string) (core.GroceryList, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM grocery_lists WHERE meal_plan_id = ?
		 ORDER BY generated_at DESC LIMIT 1`, mealPlanID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.GroceryList{}, fmt.Errorf("grocery list for plan %s: %w", mealPlanID, core.ErrNotFound)
	}
	if err != nil {
		return core.GroceryList{}, fmt.Errorf("find grocery list for plan %s: %w", mealPlanID, err)
	}
	return decodeList(payload)
}

// SaveGroceryList implements store.GroceryListStore
func (r *SQLiteRepository) SaveGroceryList(ctx context.Context, list core.GroceryList) error {
	if list.ID == "" {
		return fmt.Errorf("save grocery list: empty id")
	}
	stored := list
	// categories are rebuilt from items on load
	stored.Categories = nil
	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal grocery list: %w", err)
	}
	updated := list.UpdatedAt
	if updated.IsZero() {
		updated = list.GeneratedAt
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO grocery_lists (id, user_id, meal_plan_id, name, payload, generated_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   user_id = excluded.user_id,
		   meal_plan_id = excluded.meal_plan_id,
		   name = excluded.name,
		   payload = excluded.payload,
		   generated_at = excluded.generated_at,
		   updated_at = excluded.updated_at`,
		list.ID, list.UserID, list.MealPlanID, list.Name, string(payload),
		list.GeneratedAt.UTC().Format(timeLayout), updated.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save grocery list %s: %w", list.ID, err)
	}
	return nil
}

func decodeList(payload string) (core.GroceryList, error) {
	var l core.GroceryList
	if err := json.Unmarshal([]byte(payload), &l); err != nil {
		return core.GroceryList{}, fmt.Errorf("unmarshal grocery list: %w", err)
	}
	l.Recount()
	return l, nil
}

// GetEditorialRecipe implements store.EditorialRecipeReader
func (r *SQLiteRepository) GetEditorialRecipe(ctx context.Context, id string) (core.EditorialRecipe, error) {
	var rec core.EditorialRecipe
	var ingredients, updated string
	var published int
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, ingredients, published, updated_at FROM editorial_recipes WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Title, &ingredients, &published, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.EditorialRecipe{}, fmt.Errorf("editorial recipe %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.EditorialRecipe{}, fmt.Errorf("get editorial recipe %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(ingredients), &rec.Ingredients); err != nil {
		return core.EditorialRecipe{}, fmt.Errorf("unmarshal editorial ingredients: %w", err)
	}
	rec.Published = published != 0
	rec.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return rec, nil
}

// GetUserRecipe implements store.UserRecipeReader
func (r *SQLiteRepository) GetUserRecipe(ctx context.Context, id string) (core.UserRecipe, error) {
	var rec core.UserRecipe
	var lines, updated string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, ingredient_lines, updated_at FROM user_recipes WHERE id = ?`, id).
		Scan(&rec.ID, &rec.UserID, &rec.Title, &lines, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserRecipe{}, fmt.Errorf("user recipe %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.UserRecipe{}, fmt.Errorf("get user recipe %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(lines), &rec.IngredientLines); err != nil {
		return core.UserRecipe{}, fmt.Errorf("unmarshal user ingredient lines: %w", err)
	}
	rec.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return rec, nil
}

// SaveEditorialRecipe implements store.RecipeWriter
func (r *SQLiteRepository) SaveEditorialRecipe(ctx context.Context, rec core.EditorialRecipe) error {
	ingredients, err := json.Marshal(rec.Ingredients)
	if err != nil {
		return fmt.Errorf("marshal editorial ingredients: %w", err)
	}
	published := 0
	if rec.Published {
		published = 1
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO editorial_recipes (id, title, ingredients, published, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   ingredients = excluded.ingredients,
		   published = excluded.published,
		   updated_at = excluded.updated_at`,
		rec.ID, rec.Title, string(ingredients), published, nowOr(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save editorial recipe %s: %w", rec.ID, err)
	}
	return nil
}

// SaveUserRecipe implements store.RecipeWriter
func (r *SQLiteRepository) SaveUserRecipe(ctx context.Context, rec core.UserRecipe) error {
	lines, err := json.Marshal(rec.IngredientLines)
	if err != nil {
		return fmt.Errorf("marshal user ingredient lines: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_recipes (id, user_id, title, ingredient_lines, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   user_id = excluded.user_id,
		   title = excluded.title,
		   ingredient_lines = excluded.ingredient_lines,
		   updated_at = excluded.updated_at`,
		rec.ID, rec.UserID, rec.Title, string(lines), nowOr(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save user recipe %s: %w", rec.ID, err)
	}
	return nil
}

func nowOr(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}
