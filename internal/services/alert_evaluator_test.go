package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"budgetwatch/internal/core"
	"budgetwatch/internal/notify/memory"
	"budgetwatch/internal/storage"
)

type fakeAlertStore struct {
	mu           sync.Mutex
	budgets      []storage.ActiveBudget
	transactions map[int64][]core.Transaction // keyed by budget category
	marked       map[int64]time.Time
	listErr      error
	txErr        map[int64]error
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{
		transactions: make(map[int64][]core.Transaction),
		marked:       make(map[int64]time.Time),
		txErr:        make(map[int64]error),
	}
}

func (f *fakeAlertStore) ListActiveBudgets(_ context.Context, _ core.Date) ([]storage.ActiveBudget, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.budgets, nil
}

func (f *fakeAlertStore) TransactionsForBudget(_ context.Context, _, categoryID int64, _, _ core.Date) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.txErr[categoryID]; err != nil {
		return nil, err
	}
	return f.transactions[categoryID], nil
}

func (f *fakeAlertStore) MarkBudgetAlerted(_ context.Context, budgetID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked[budgetID] = at
	return nil
}

func activeBudget(id, userID, categoryID, amountCents int64, lastAlerted *time.Time) storage.ActiveBudget {
	return storage.ActiveBudget{
		Budget: core.Budget{
			ID:         id,
			UserID:     userID,
			Name:       "Budget",
			Amount:     core.Money{Cents: amountCents},
			Period:     core.Monthly,
			StartDate:  core.NewDate(2026, 8, 1),
			EndDate:    core.NewDate(2026, 8, 31),
			CategoryID: categoryID,
		},
		LastAlertedAt: lastAlerted,
	}
}

func expense(categoryID, cents int64) core.Transaction {
	return core.Transaction{
		UserID:      1,
		Description: "spend",
		Amount:      core.Money{Cents: cents},
		Type:        core.Expense,
		Date:        core.NewDate(2026, 8, 10),
		CategoryID:  &categoryID,
	}
}

func TestSweep_AlertsOverThreshold(t *testing.T) {
	store := newFakeAlertStore()
	// Budget 1: 90% used, should alert. Budget 2: 50% used, should not.
	store.budgets = []storage.ActiveBudget{
		activeBudget(1, 1, 10, 10000, nil),
		activeBudget(2, 1, 20, 10000, nil),
	}
	store.transactions[10] = []core.Transaction{expense(10, 9000)}
	store.transactions[20] = []core.Transaction{expense(20, 5000)}

	sink := memory.New()
	eval := NewAlertEvaluator(store, sink, DefaultAlertEvaluatorConfig())

	now := time.Date(2026, 8, 15, 6, 0, 0, 0, time.UTC)
	stats, err := eval.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if stats.Evaluated != 2 || stats.Alerted != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want evaluated 2, alerted 1, failed 0", stats)
	}

	alerts := sink.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("sink got %d alerts, want 1", len(alerts))
	}
	if alerts[0].BudgetID != 1 || alerts[0].PercentageUsed != 90 {
		t.Errorf("alert = %+v, want budget 1 at 90%%", alerts[0])
	}

	if _, ok := store.marked[1]; !ok {
		t.Error("alerted budget was not marked")
	}
	if _, ok := store.marked[2]; ok {
		t.Error("under-threshold budget should not be marked")
	}
}

func TestSweep_ExactThresholdFires(t *testing.T) {
	store := newFakeAlertStore()
	store.budgets = []storage.ActiveBudget{activeBudget(1, 1, 10, 10000, nil)}
	store.transactions[10] = []core.Transaction{expense(10, 8000)}

	sink := memory.New()
	eval := NewAlertEvaluator(store, sink, DefaultAlertEvaluatorConfig())

	stats, err := eval.Sweep(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if stats.Alerted != 1 {
		t.Errorf("exactly 80%% used should alert, stats = %+v", stats)
	}
}

func TestSweep_SinkFailureDoesNotStopSweep(t *testing.T) {
	store := newFakeAlertStore()
	store.budgets = []storage.ActiveBudget{
		activeBudget(1, 1, 10, 10000, nil),
		activeBudget(2, 1, 20, 10000, nil),
	}
	// Both over threshold
	store.transactions[10] = []core.Transaction{expense(10, 9500)}
	store.transactions[20] = []core.Transaction{expense(20, 9500)}

	sink := memory.New()
	sink.FailWith = errors.New("broker down")

	cfg := DefaultAlertEvaluatorConfig()
	cfg.Concurrency = 1
	eval := NewAlertEvaluator(store, sink, cfg)

	stats, err := eval.Sweep(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if stats.Evaluated != 2 {
		t.Errorf("both budgets should be evaluated despite sink failures, got %d", stats.Evaluated)
	}
	if stats.Failed != 2 || stats.Alerted != 0 {
		t.Errorf("stats = %+v, want 2 failed, 0 alerted", stats)
	}
	if len(store.marked) != 0 {
		t.Error("failed dispatches must not advance the alert cursor")
	}
}

func TestSweep_EvaluationErrorIsIsolated(t *testing.T) {
	store := newFakeAlertStore()
	store.budgets = []storage.ActiveBudget{
		activeBudget(1, 1, 10, 10000, nil),
		activeBudget(2, 1, 20, 10000, nil),
	}
	store.txErr[10] = errors.New("db gone")
	store.transactions[20] = []core.Transaction{expense(20, 9000)}

	sink := memory.New()
	eval := NewAlertEvaluator(store, sink, DefaultAlertEvaluatorConfig())

	stats, err := eval.Sweep(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if stats.Failed != 1 || stats.Alerted != 1 {
		t.Errorf("stats = %+v, want 1 failed and 1 alerted", stats)
	}
}

func TestSweep_Cooldown(t *testing.T) {
	recent := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	now := recent.Add(2 * time.Hour)

	tests := []struct {
		name        string
		cooldown    time.Duration
		lastAlerted *time.Time
		wantAlerted int64
	}{
		{"zero cooldown re-alerts every sweep", 0, &recent, 1},
		{"within cooldown suppresses", 24 * time.Hour, &recent, 0},
		{"past cooldown re-alerts", time.Hour, &recent, 1},
		{"never alerted always fires", 24 * time.Hour, nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeAlertStore()
			store.budgets = []storage.ActiveBudget{activeBudget(1, 1, 10, 10000, tt.lastAlerted)}
			store.transactions[10] = []core.Transaction{expense(10, 9000)}

			sink := memory.New()
			cfg := DefaultAlertEvaluatorConfig()
			cfg.Cooldown = tt.cooldown
			eval := NewAlertEvaluator(store, sink, cfg)

			stats, err := eval.Sweep(context.Background(), now)
			if err != nil {
				t.Fatalf("Sweep() error = %v", err)
			}
			if stats.Alerted != tt.wantAlerted {
				t.Errorf("Alerted = %d, want %d", stats.Alerted, tt.wantAlerted)
			}
		})
	}
}

func TestSweep_ListError(t *testing.T) {
	store := newFakeAlertStore()
	store.listErr = errors.New("db down")

	eval := NewAlertEvaluator(store, memory.New(), DefaultAlertEvaluatorConfig())
	if _, err := eval.Sweep(context.Background(), time.Now()); err == nil {
		t.Error("Sweep() should fail when the budget listing fails")
	}
}

func TestAlertEvaluator_StartStop(t *testing.T) {
	store := newFakeAlertStore()
	cfg := DefaultAlertEvaluatorConfig()
	cfg.SweepInterval = time.Hour
	eval := NewAlertEvaluator(store, memory.New(), cfg)

	ctx := context.Background()
	if err := eval.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !eval.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	if err := eval.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := eval.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if eval.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}
