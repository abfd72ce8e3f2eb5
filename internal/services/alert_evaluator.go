package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"budgetwatch/internal/core"
	"budgetwatch/internal/notify"
	"budgetwatch/internal/storage"

	"golang.org/x/sync/errgroup"
)

// AlertStore is the storage surface the sweep needs.
type AlertStore interface {
	ListActiveBudgets(ctx context.Context, asOf core.Date) ([]storage.ActiveBudget, error)
	TransactionsForBudget(ctx context.Context, userID, categoryID int64, start, end core.Date) ([]core.Transaction, error)
	MarkBudgetAlerted(ctx context.Context, budgetID int64, at time.Time) error
}

// AlertEvaluatorConfig holds configuration for the alert sweep
type AlertEvaluatorConfig struct {
	// Threshold is the percentage of the budget at which an alert fires
	// (default: 80)
	Threshold float64

	// SweepInterval is how often the full sweep runs (default: 6h)
	SweepInterval time.Duration

	// Cooldown suppresses repeat alerts for a budget within the window.
	// Zero means alert on every sweep while over threshold.
	Cooldown time.Duration

	// Concurrency bounds how many budgets are evaluated in parallel
	// (default: 4)
	Concurrency int
}

// DefaultAlertEvaluatorConfig returns sensible defaults
func DefaultAlertEvaluatorConfig() AlertEvaluatorConfig {
	return AlertEvaluatorConfig{
		Threshold:     80,
		SweepInterval: 6 * time.Hour,
		Cooldown:      0,
		Concurrency:   4,
	}
}

// SweepStats summarizes one sweep cycle.
type SweepStats struct {
	Evaluated int64
	Alerted   int64
	Failed    int64
}

// AlertEvaluator sweeps all active budgets, computes usage, and dispatches an
// alert for every budget at or over the threshold. A failed dispatch never
// stops the sweep: remaining budgets are still evaluated.
type AlertEvaluator struct {
	store  AlertStore
	sink   notify.AlertSink
	config AlertEvaluatorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewAlertEvaluator creates a new alert evaluator
func NewAlertEvaluator(store AlertStore, sink notify.AlertSink, config AlertEvaluatorConfig) *AlertEvaluator {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &AlertEvaluator{
		store:  store,
		sink:   sink,
		config: config,
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (e *AlertEvaluator) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("alert evaluator is already running")
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	go e.runLoop(ctx)

	slog.InfoContext(ctx, "Alert evaluator started",
		"threshold", e.config.Threshold,
		"sweep_interval", e.config.SweepInterval,
		"cooldown", e.config.Cooldown,
		"concurrency", e.config.Concurrency)

	return nil
}

// Stop gracefully stops the evaluator and waits for completion.
func (e *AlertEvaluator) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	close(e.stopCh)

	select {
	case <-e.doneCh:
		slog.InfoContext(ctx, "Alert evaluator stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Alert evaluator stop timed out")
		return ctx.Err()
	}

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	return nil
}

// IsRunning returns whether the evaluator is currently running
func (e *AlertEvaluator) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *AlertEvaluator) runLoop(ctx context.Context) {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.config.SweepInterval)
	defer ticker.Stop()

	// Sweep immediately on startup
	e.sweepAndLog(ctx)

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweepAndLog(ctx)
		}
	}
}

func (e *AlertEvaluator) sweepAndLog(ctx context.Context) {
	start := time.Now()
	stats, err := e.Sweep(ctx, start)
	if err != nil {
		slog.ErrorContext(ctx, "Alert sweep failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "Alert sweep completed",
		"evaluated", stats.Evaluated,
		"alerted", stats.Alerted,
		"failed", stats.Failed,
		"duration_ms", time.Since(start).Milliseconds())
}

// Sweep evaluates every active budget once. Budget evaluation runs in
// parallel, bounded by the configured concurrency. The returned error covers
// only the budget listing; per-budget failures are counted in the stats.
func (e *AlertEvaluator) Sweep(ctx context.Context, now time.Time) (SweepStats, error) {
	budgets, err := e.store.ListActiveBudgets(ctx, Today(now))
	if err != nil {
		return SweepStats{}, fmt.Errorf("list active budgets: %w", err)
	}

	var stats SweepStats
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)

	for _, ab := range budgets {
		g.Go(func() error {
			atomic.AddInt64(&stats.Evaluated, 1)
			alerted, err := e.evaluate(gctx, ab, now)
			if err != nil {
				atomic.AddInt64(&stats.Failed, 1)
				slog.ErrorContext(gctx, "Budget evaluation failed",
					"budget_id", ab.Budget.ID,
					"user_id", ab.Budget.UserID,
					"error", err)
				return nil // never abort the sweep
			}
			if alerted {
				atomic.AddInt64(&stats.Alerted, 1)
			}
			return nil
		})
	}

	g.Wait()
	return stats, nil
}

// evaluate computes one budget's usage and dispatches an alert if it is at or
// over the threshold and outside the cooldown window.
func (e *AlertEvaluator) evaluate(ctx context.Context, ab storage.ActiveBudget, now time.Time) (bool, error) {
	budget := ab.Budget

	transactions, err := e.store.TransactionsForBudget(ctx,
		budget.UserID, budget.CategoryID, budget.StartDate, budget.EndDate)
	if err != nil {
		return false, fmt.Errorf("load transactions: %w", err)
	}

	usage := core.ComputeUsage(budget, transactions)
	if usage.PercentageUsed < e.config.Threshold {
		return false, nil
	}

	if e.config.Cooldown > 0 && ab.LastAlertedAt != nil {
		if now.Sub(*ab.LastAlertedAt) < e.config.Cooldown {
			slog.DebugContext(ctx, "Alert suppressed by cooldown",
				"budget_id", budget.ID,
				"last_alerted_at", ab.LastAlertedAt)
			return false, nil
		}
	}

	alert := notify.Alert{
		UserID:         budget.UserID,
		BudgetID:       budget.ID,
		BudgetName:     budget.Name,
		PercentageUsed: usage.PercentageUsed,
		Spent:          usage.Spent,
		Limit:          budget.Amount,
	}
	if err := e.sink.SendBudgetAlert(ctx, alert); err != nil {
		return false, fmt.Errorf("dispatch alert: %w", err)
	}

	if err := e.store.MarkBudgetAlerted(ctx, budget.ID, now); err != nil {
		// The alert went out; a failed cursor update only risks an extra
		// alert next sweep.
		slog.WarnContext(ctx, "Failed to record alert cursor",
			"budget_id", budget.ID,
			"error", err)
	}

	slog.InfoContext(ctx, "Budget alert dispatched",
		"user_id", budget.UserID,
		"budget_id", budget.ID,
		"budget_name", budget.Name,
		"percentage_used", usage.PercentageUsed,
		"spent_cents", usage.Spent.Cents,
		"limit_cents", budget.Amount.Cents)

	return true, nil
}
