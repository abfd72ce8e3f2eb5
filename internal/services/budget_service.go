package services

import (
	"context"
	"fmt"
	"time"

	"budgetwatch/internal/core"
)

// BudgetStatusStore is the storage surface the status computation needs.
type BudgetStatusStore interface {
	GetBudget(ctx context.Context, id, userID int64) (core.Budget, error)
	TransactionsForBudget(ctx context.Context, userID, categoryID int64, start, end core.Date) ([]core.Transaction, error)
}

// BudgetStatus is a budget with its computed usage.
type BudgetStatus struct {
	Budget core.Budget
	Usage  core.BudgetUsage
}

// BudgetService answers budget status queries by materializing the matching
// transactions and aggregating them.
type BudgetService struct {
	store BudgetStatusStore
}

func NewBudgetService(store BudgetStatusStore) *BudgetService {
	return &BudgetService{store: store}
}

// Status computes the current usage of one budget owned by the given user.
func (s *BudgetService) Status(ctx context.Context, userID, budgetID int64) (BudgetStatus, error) {
	budget, err := s.store.GetBudget(ctx, budgetID, userID)
	if err != nil {
		return BudgetStatus{}, fmt.Errorf("load budget %d: %w", budgetID, err)
	}
	return s.StatusOf(ctx, budget)
}

// StatusOf computes the usage of an already-loaded budget. The sweep uses
// this directly so each budget is fetched once per cycle.
func (s *BudgetService) StatusOf(ctx context.Context, budget core.Budget) (BudgetStatus, error) {
	transactions, err := s.store.TransactionsForBudget(ctx,
		budget.UserID, budget.CategoryID, budget.StartDate, budget.EndDate)
	if err != nil {
		return BudgetStatus{}, fmt.Errorf("load transactions for budget %d: %w", budget.ID, err)
	}

	return BudgetStatus{
		Budget: budget,
		Usage:  core.ComputeUsage(budget, transactions),
	}, nil
}

// Today returns the current date in UTC, the reference point for deciding
// which budgets are still active.
func Today(now time.Time) core.Date {
	y, m, d := now.UTC().Date()
	return core.NewDate(y, int(m), d)
}
