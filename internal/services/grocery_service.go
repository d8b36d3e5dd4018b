package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartplates/internal/core"
	"smartplates/internal/grocery"
	"smartplates/internal/grocery/export"
	applog "smartplates/internal/log"
	"smartplates/internal/metrics"
	"smartplates/internal/sheets/google"
	"smartplates/internal/store"
)

// Generation triggers, used as metric labels.
const (
	TriggerAPI    = "api"
	TriggerWorker = "worker"
)

var ErrSheetsDisabled = errors.New("sheets export is not configured")

// SheetsExporter writes a grocery list into a spreadsheet.
type SheetsExporter interface {
	Export(ctx context.Context, list core.GroceryList) (google.Result, error)
}

// GroceryService orchestrates grocery list generation, the purchased
// checklist and exports on top of the stores.
type GroceryService struct {
	plans     store.MealPlanReader
	lists     store.GroceryListStore
	generator *grocery.Generator
	sheets    SheetsExporter
	metrics   *metrics.Metrics
	now       func() time.Time
}

type GroceryOption func(*GroceryService)

func WithSheets(e SheetsExporter) GroceryOption {
	return func(s *GroceryService) { s.sheets = e }
}

func WithGroceryMetrics(m *metrics.Metrics) GroceryOption {
	return func(s *GroceryService) { s.metrics = m }
}

func WithGroceryClock(now func() time.Time) GroceryOption {
	return func(s *GroceryService) { s.now = now }
}

func NewGroceryService(plans store.MealPlanReader, lists store.GroceryListStore, generator *grocery.Generator, opts ...GroceryOption) *GroceryService {
	s := &GroceryService{
		plans:     plans,
		lists:     lists,
		generator: generator,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type GenerateRequest struct {
	MealPlanID string
	UserID     string
	Name       string
	Options    core.GroceryOptions
}

// Generate builds the grocery list of a plan and stores it. A plan that
// already has a list keeps that list's id and purchased flags.
func (s *GroceryService) Generate(ctx context.Context, req GenerateRequest) (core.GroceryList, grocery.Report, error) {
	plan, err := s.ownedPlan(ctx, req.MealPlanID, req.UserID)
	if err != nil {
		return core.GroceryList{}, grocery.Report{}, err
	}

	list, report, err := s.build(ctx, plan, req.Name, req.Options)
	if err != nil {
		return core.GroceryList{}, report, err
	}

	s.metrics.GroceryListGenerated(TriggerAPI, list.ItemsCount, report.Resolved, report.Empty, report.Failed)
	applog.NewStructuredLogger(applog.FromContext(ctx).WithComponent(applog.ComponentGrocery)).
		LogGroceryListGenerated(ctx, list.ID, plan.ID, list.ItemsCount)
	return list, report, nil
}

// Refresh regenerates the stored list of a plan with its stored name and
// options. It reports false when the plan has no list or no longer exists.
func (s *GroceryService) Refresh(ctx context.Context, planID string) (core.GroceryList, bool, error) {
	prev, err := s.lists.FindGroceryListByPlan(ctx, planID)
	if errors.Is(err, core.ErrNotFound) {
		return core.GroceryList{}, false, nil
	}
	if err != nil {
		return core.GroceryList{}, false, fmt.Errorf("find grocery list: %w", err)
	}

	plan, err := s.plans.GetMealPlan(ctx, planID)
	if errors.Is(err, core.ErrNotFound) {
		return core.GroceryList{}, false, nil
	}
	if err != nil {
		return core.GroceryList{}, false, fmt.Errorf("get meal plan: %w", err)
	}

	list, report, err := s.build(ctx, plan, prev.Name, prev.Options)
	if err != nil {
		return core.GroceryList{}, false, err
	}
	s.metrics.GroceryListGenerated(TriggerWorker, list.ItemsCount, report.Resolved, report.Empty, report.Failed)
	return list, true, nil
}

func (s *GroceryService) build(ctx context.Context, plan core.MealPlan, name string, opts core.GroceryOptions) (core.GroceryList, grocery.Report, error) {
	list, report, err := s.generator.Build(ctx, plan, name, opts)
	if err != nil {
		return core.GroceryList{}, report, fmt.Errorf("generate grocery list: %w", err)
	}

	prev, err := s.lists.FindGroceryListByPlan(ctx, plan.ID)
	switch {
	case err == nil:
		if strings.TrimSpace(name) == "" {
			list.Name = prev.Name
		}
		grocery.CarryForward(prev, &list)
	case !errors.Is(err, core.ErrNotFound):
		return core.GroceryList{}, report, fmt.Errorf("find grocery list: %w", err)
	}

	if err := s.lists.SaveGroceryList(ctx, list); err != nil {
		return core.GroceryList{}, report, fmt.Errorf("save grocery list: %w", err)
	}
	return list, report, nil
}

// Get returns a list owned by userID. Lists of other users are reported as
// not found.
func (s *GroceryService) Get(ctx context.Context, id, userID string) (core.GroceryList, error) {
	list, err := s.lists.GetGroceryList(ctx, id)
	if err != nil {
		return core.GroceryList{}, fmt.Errorf("get grocery list: %w", err)
	}
	if userID != "" && list.UserID != userID {
		return core.GroceryList{}, fmt.Errorf("get grocery list %s: %w", id, core.ErrNotFound)
	}
	return list, nil
}

// Toggle sets the purchased flag of one item. The list is saved only when
// the flag actually changed.
func (s *GroceryService) Toggle(ctx context.Context, id, userID, itemName string, purchased bool) (core.GroceryList, bool, error) {
	list, err := s.Get(ctx, id, userID)
	if err != nil {
		return core.GroceryList{}, false, err
	}

	changed, err := grocery.Toggle(&list, itemName, purchased)
	if err != nil {
		return core.GroceryList{}, false, err
	}
	s.metrics.ItemToggled(changed)
	if !changed {
		return list, false, nil
	}

	list.UpdatedAt = s.now()
	if err := s.lists.SaveGroceryList(ctx, list); err != nil {
		return core.GroceryList{}, false, fmt.Errorf("save grocery list: %w", err)
	}

	applog.FromContext(ctx).InfoContext(ctx, "Grocery item toggled",
		applog.FieldListID, list.ID,
		applog.FieldItem, core.NormalizeName(itemName),
		"purchased", purchased,
		applog.FieldOperation, applog.OpToggle)
	return list, true, nil
}

// Export renders a list as a downloadable document.
func (s *GroceryService) Export(ctx context.Context, id, userID string, format export.Format) (export.Document, error) {
	list, err := s.Get(ctx, id, userID)
	if err != nil {
		return export.Document{}, err
	}
	doc, err := export.Render(format, list)
	if err != nil {
		return export.Document{}, fmt.Errorf("export grocery list: %w", err)
	}
	s.metrics.Exported(string(format))
	return doc, nil
}

// ExportToSheets writes a list into a new tab of the configured spreadsheet.
func (s *GroceryService) ExportToSheets(ctx context.Context, id, userID string) (google.Result, error) {
	if s.sheets == nil {
		return google.Result{}, ErrSheetsDisabled
	}
	list, err := s.Get(ctx, id, userID)
	if err != nil {
		return google.Result{}, err
	}
	res, err := s.sheets.Export(ctx, list)
	if err != nil {
		return google.Result{}, fmt.Errorf("export grocery list to sheets: %w", err)
	}
	s.metrics.Exported("sheets")
	return res, nil
}

// SheetsEnabled reports whether ExportToSheets can succeed.
func (s *GroceryService) SheetsEnabled() bool {
	return s.sheets != nil
}

func (s *GroceryService) ownedPlan(ctx context.Context, planID, userID string) (core.MealPlan, error) {
	if strings.TrimSpace(planID) == "" {
		return core.MealPlan{}, core.ErrEmptyPlanID
	}
	plan, err := s.plans.GetMealPlan(ctx, planID)
	if err != nil {
		return core.MealPlan{}, fmt.Errorf("get meal plan: %w", err)
	}
	if userID != "" && plan.UserID != userID {
		return core.MealPlan{}, fmt.Errorf("get meal plan %s: %w", planID, core.ErrNotFound)
	}
	return plan, nil
}
