package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartplates/internal/amqp"
	"smartplates/internal/cache"
	"smartplates/internal/calendar"
	"smartplates/internal/core"
	applog "smartplates/internal/log"
	"smartplates/internal/metrics"
	"smartplates/internal/store"
)

// Publisher announces meal plan edits to background workers.
type Publisher interface {
	PublishMealPlanChanged(ctx context.Context, planID, userID, reason string) error
}

// PlannerService renders month calendars and applies calendar edits to the
// stored weekly plans.
type PlannerService struct {
	plans     store.MealPlanStore
	publisher Publisher
	grids     cache.Cache[calendar.Grid]
	metrics   *metrics.Metrics
	location  *time.Location
	now       func() time.Time
	newID     func() string

	// generations counts invalidations per user. Month only caches a grid
	// when no invalidation ran while it was rendering.
	genMu       sync.Mutex
	generations map[string]uint64
}

type PlannerOption func(*PlannerService)

// WithPublisher sets the change publisher; nil disables publishing.
func WithPublisher(p Publisher) PlannerOption {
	return func(s *PlannerService) { s.publisher = p }
}

// WithGridCache caches rendered months per user.
func WithGridCache(c cache.Cache[calendar.Grid]) PlannerOption {
	return func(s *PlannerService) { s.grids = c }
}

func WithPlannerMetrics(m *metrics.Metrics) PlannerOption {
	return func(s *PlannerService) { s.metrics = m }
}

func WithLocation(loc *time.Location) PlannerOption {
	return func(s *PlannerService) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithPlannerClock(now func() time.Time) PlannerOption {
	return func(s *PlannerService) { s.now = now }
}

func WithPlanIDGenerator(f func() string) PlannerOption {
	return func(s *PlannerService) { s.newID = f }
}

func NewPlannerService(plans store.MealPlanStore, opts ...PlannerOption) *PlannerService {
	s := &PlannerService{
		plans:       plans,
		location:    time.UTC,
		now:         time.Now,
		newID:       uuid.NewString,
		generations: make(map[string]uint64),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Month renders the month grid of a view for userID. Grids are cached
// without today/selected flags, which are applied on every call.
func (s *PlannerService) Month(ctx context.Context, userID string, view calendar.View) (calendar.Grid, error) {
	selected := view.Selected
	view = calendar.NewView(view.Year, view.Month)
	key := gridKey(userID, view.Year, view.Month)

	if s.grids != nil {
		if g, ok := s.grids.Get(ctx, key); ok {
			return g.Mark(s.now().In(s.location), selected), nil
		}
	}

	gen := s.generation(userID)
	plans, err := s.plans.ListMealPlans(ctx, userID)
	if err != nil {
		return calendar.Grid{}, fmt.Errorf("list meal plans: %w", err)
	}
	g := calendar.RenderMonth(view.Year, view.Month, plans, calendar.RenderOptions{Location: s.location})
	if s.grids != nil {
		s.genMu.Lock()
		if s.generations[userID] == gen {
			s.grids.Set(ctx, key, g)
		}
		s.genMu.Unlock()
	}

	applog.FromContext(ctx).DebugContext(ctx, "Rendered month grid",
		applog.FieldUserID, userID,
		applog.FieldYear, view.Year,
		applog.FieldMonth, int(view.Month),
		"plans", len(plans),
		applog.FieldOperation, applog.OpRender)
	return g.Mark(s.now().In(s.location), selected), nil
}

func (s *PlannerService) ListPlans(ctx context.Context, userID string) ([]core.MealPlan, error) {
	plans, err := s.plans.ListMealPlans(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list meal plans: %w", err)
	}
	return plans, nil
}

// SavePlan creates or replaces a weekly plan owned by userID. A plan id
// that belongs to another user is reported as not found.
func (s *PlannerService) SavePlan(ctx context.Context, userID string, plan core.MealPlan) (core.MealPlan, error) {
	if plan.ID == "" {
		plan.ID = s.newID()
	}
	if userID != "" {
		plan.UserID = userID
	}

	var previous *core.MealPlan
	existing, err := s.plans.GetMealPlan(ctx, plan.ID)
	switch {
	case err == nil:
		if existing.UserID != plan.UserID {
			return core.MealPlan{}, fmt.Errorf("save meal plan %s: %w", plan.ID, core.ErrNotFound)
		}
		previous = &existing
	case !errors.Is(err, core.ErrNotFound):
		return core.MealPlan{}, fmt.Errorf("get meal plan: %w", err)
	}

	if plan.WeekStartDate.IsZero() && len(plan.Days) > 0 {
		plan.WeekStartDate = plan.Days[0].Date
	}
	plan.WeekStartDate = calendar.WeekStart(plan.WeekStartDate)
	for i := range plan.Days {
		plan.Days[i].Date = calendar.Midnight(plan.Days[i].Date)
	}
	if err := plan.Validate(); err != nil {
		return core.MealPlan{}, fmt.Errorf("save meal plan: %w", err)
	}
	plan.UpdatedAt = s.now()

	if err := s.plans.SaveMealPlan(ctx, plan); err != nil {
		return core.MealPlan{}, fmt.Errorf("save meal plan: %w", err)
	}

	if previous != nil {
		s.invalidate(ctx, *previous)
	}
	s.invalidate(ctx, plan)
	s.publish(ctx, plan, amqp.ReasonSaved)
	return plan, nil
}

// MoveInput addresses a meal in the merged month view and where it goes.
type MoveInput struct {
	Source      calendar.SlotRef
	Destination calendar.Destination
	Copy        bool
}

// Move moves or copies one meal between days of userID's calendar and
// persists every plan the edit touched. A stale source returns a result
// with Moved false and stores nothing.
func (s *PlannerService) Move(ctx context.Context, userID string, in MoveInput) (calendar.MoveResult, error) {
	if userID == "" {
		return calendar.MoveResult{}, core.ErrEmptyUserID
	}
	plans, err := s.plans.ListMealPlans(ctx, userID)
	if err != nil {
		return calendar.MoveResult{}, fmt.Errorf("list meal plans: %w", err)
	}

	res, err := calendar.MoveMeal(plans, calendar.MoveRequest{
		Source:      in.Source,
		Destination: in.Destination,
		Copy:        in.Copy,
		UserID:      userID,
		NewPlanID:   s.newID(),
		Now:         s.now(),
	})
	if err != nil {
		return calendar.MoveResult{}, fmt.Errorf("move meal: %w", err)
	}
	s.metrics.MealMoved(in.Copy, res.Moved)

	logger := applog.FromContext(ctx)
	op := applog.OpMove
	reason := amqp.ReasonMoved
	if in.Copy {
		op, reason = applog.OpCopy, amqp.ReasonCopied
	}
	if !res.Moved {
		logger.InfoContext(ctx, "Meal not found at source, nothing moved",
			"date", in.Source.Date,
			"meal_type", in.Source.MealType,
			"index", in.Source.Index,
			applog.FieldOperation, op)
		return res, nil
	}

	for _, plan := range res.Changed {
		if err := s.plans.SaveMealPlan(ctx, plan); err != nil {
			return calendar.MoveResult{}, fmt.Errorf("save meal plan %s: %w", plan.ID, err)
		}
	}
	for _, plan := range res.Changed {
		s.invalidate(ctx, plan)
		s.publish(ctx, plan, reason)
	}

	logger.InfoContext(ctx, "Meal moved",
		applog.FieldRecipeID, res.Slot.RecipeID,
		"from", in.Source.Date,
		"to", in.Destination.Date,
		"plans_changed", len(res.Changed),
		applog.FieldOperation, op)
	return res, nil
}

// invalidate drops cached grids that can show any day of plan. Padding
// cells reach into the neighbouring months.
func (s *PlannerService) invalidate(ctx context.Context, plan core.MealPlan) {
	if s.grids == nil {
		return
	}
	s.genMu.Lock()
	s.generations[plan.UserID]++
	s.genMu.Unlock()

	seen := make(map[string]bool)
	drop := func(t time.Time) {
		for d := -1; d <= 1; d++ {
			v := calendar.NewView(t.Year(), t.Month()+time.Month(d))
			key := gridKey(plan.UserID, v.Year, v.Month)
			if !seen[key] {
				seen[key] = true
				s.grids.Delete(ctx, key)
			}
		}
	}
	if !plan.WeekStartDate.IsZero() {
		drop(plan.WeekStartDate)
	}
	for _, day := range plan.Days {
		drop(day.Date)
	}
}

func (s *PlannerService) generation(userID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[userID]
}

func (s *PlannerService) publish(ctx context.Context, plan core.MealPlan, reason string) {
	if s.publisher == nil {
		applog.FromContext(ctx).DebugContext(ctx, "AMQP publisher not available, skipping plan change event",
			applog.FieldPlanID, plan.ID)
		return
	}
	if err := s.publisher.PublishMealPlanChanged(ctx, plan.ID, plan.UserID, reason); err != nil {
		// the plan is already stored; workers catch up on the next change
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to publish plan change",
			applog.FieldPlanID, plan.ID,
			"reason", reason,
			applog.FieldError, err)
	}
}

func gridKey(userID string, year int, month time.Month) string {
	return fmt.Sprintf("%s:%04d-%02d", userID, year, int(month))
}
