package grocery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"smartplates/internal/core"
)

const defaultConcurrency = 4

// Fetcher resolves a recipe id to its ingredients. A recipe that no source
// knows yields an empty result and a nil error.
type Fetcher interface {
	Fetch(ctx context.Context, recipeID string) (core.RecipeIngredients, error)
}

// Report summarizes the recipe fetches behind a generated list.
type Report struct {
	Recipes  int
	Resolved int
	Empty    int
	Failed   int
}

// Generator builds grocery lists from meal plans.
type Generator struct {
	fetcher     Fetcher
	catalog     *Catalog
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

type GeneratorOption func(*Generator)

// WithConcurrency bounds the number of recipe fetches in flight.
func WithConcurrency(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

func WithIDGenerator(f func() string) GeneratorOption {
	return func(g *Generator) { g.newID = f }
}

func NewGenerator(fetcher Fetcher, catalog *Catalog, opts ...GeneratorOption) *Generator {
	g := &Generator{
		fetcher:     fetcher,
		catalog:     catalog,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Build generates a fresh list for the plan. Recipe fetch failures are
// logged and skipped; Build only fails when ctx is done.
func (g *Generator) Build(ctx context.Context, plan core.MealPlan, name string, opts core.GroceryOptions) (core.GroceryList, Report, error) {
	ids := plan.RecipeIDs()
	results, report, err := g.fetchAll(ctx, ids)
	if err != nil {
		return core.GroceryList{}, report, err
	}

	names := plan.RecipeNames()
	var ings []core.NormalizedIngredient
	for i, r := range results {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = names[ids[i]]
		}
		if title == "" {
			title = ids[i]
		}
		for _, ing := range r.Ingredients {
			ings = append(ings, Normalize(ing, title))
		}
	}

	if strings.TrimSpace(name) == "" {
		name = DefaultListName(plan)
	}
	now := g.now()
	list := core.GroceryList{
		ID:          g.newID(),
		UserID:      plan.UserID,
		MealPlanID:  plan.ID,
		Name:        strings.TrimSpace(name),
		Items:       Aggregate(ings, opts, g.catalog),
		GeneratedAt: now,
		UpdatedAt:   now,
		Options:     opts,
	}
	if opts.IncludeEstimates {
		total := TotalCost(list.Items)
		list.TotalEstimatedCost = &total
	}
	list.Recount()
	return list, report, nil
}

func (g *Generator) fetchAll(ctx context.Context, ids []string) ([]core.RecipeIngredients, Report, error) {
	report := Report{Recipes: len(ids)}
	results := make([]core.RecipeIngredients, len(ids))
	var failed, empty atomic.Int64

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, id := range ids {
		eg.Go(func() error {
			r, err := g.fetcher.Fetch(egCtx, id)
			if err != nil {
				failed.Add(1)
				g.logger.WarnContext(egCtx, "Recipe ingredients fetch failed, skipping",
					"recipe_id", id, "error", err)
				return nil
			}
			if len(r.Ingredients) == 0 {
				empty.Add(1)
			}
			results[i] = r
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, report, fmt.Errorf("fetch recipe ingredients: %w", err)
	}

	report.Failed = int(failed.Load())
	report.Empty = int(empty.Load())
	report.Resolved = report.Recipes - report.Failed - report.Empty
	return results, report, nil
}

// DefaultListName names a list after the week it covers.
func DefaultListName(plan core.MealPlan) string {
	if plan.WeekStartDate.IsZero() {
		return "Grocery List"
	}
	return "Grocery List " + plan.WeekStartDate.Format("2006-01-02")
}
