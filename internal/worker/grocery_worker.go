// Package worker keeps stored grocery lists in step with meal plan edits.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"smartplates/internal/amqp"
	"smartplates/internal/core"
	applog "smartplates/internal/log"
)

// Outcomes recorded per handled message.
const (
	OutcomeRefreshed = "refreshed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

const defaultRefreshTimeout = 30 * time.Second

// Refresher regenerates the stored list of a plan. It reports false when
// there is nothing to refresh.
type Refresher interface {
	Refresh(ctx context.Context, planID string) (core.GroceryList, bool, error)
}

// Recorder counts handled messages by outcome.
type Recorder interface {
	WorkerMessage(outcome string)
}

// GroceryWorker regenerates grocery lists when their meal plan changes.
type GroceryWorker struct {
	refresher Refresher
	recorder  Recorder
	timeout   time.Duration
	logger    *slog.Logger
}

func NewGroceryWorker(refresher Refresher, recorder Recorder, logger *slog.Logger) *GroceryWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroceryWorker{
		refresher: refresher,
		recorder:  recorder,
		timeout:   defaultRefreshTimeout,
		logger:    logger.With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// HandleMealPlanChanged implements amqp.Handler. A returned error makes the
// message go back on the queue.
func (w *GroceryWorker) HandleMealPlanChanged(ctx context.Context, msg *amqp.MealPlanChangedMessage) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	list, refreshed, err := w.refresher.Refresh(ctx, msg.PlanID)
	if err != nil {
		w.record(OutcomeFailed)
		return fmt.Errorf("refresh grocery list for plan %s: %w", msg.PlanID, err)
	}
	if !refreshed {
		w.record(OutcomeSkipped)
		w.logger.DebugContext(ctx, "No grocery list to refresh",
			applog.FieldPlanID, msg.PlanID,
			"reason", msg.Reason)
		return nil
	}

	w.record(OutcomeRefreshed)
	w.logger.InfoContext(ctx, "Grocery list refreshed",
		applog.FieldPlanID, msg.PlanID,
		applog.FieldListID, list.ID,
		applog.FieldItemsCount, list.ItemsCount,
		"purchased", list.PurchasedCount,
		"reason", msg.Reason,
		applog.FieldOperation, applog.OpRefresh)
	return nil
}

func (w *GroceryWorker) record(outcome string) {
	if w.recorder != nil {
		w.recorder.WorkerMessage(outcome)
	}
}
