// Package core provides the budget aggregation arithmetic.
//
// This file computes how much of a budget has been spent. It operates on a
// budget value and a fully materialized transaction slice; it never reaches
// back into storage, which keeps the computation pure and testable.
package core

// BudgetUsage is the result of aggregating spending against a budget.
type BudgetUsage struct {
	Spent          Money
	Remaining      Money // Amount - Spent; negative when over budget
	PercentageUsed float64
}

// InWindow reports whether a date falls inside the budget's spend window.
// Both bounds are inclusive; an empty end date means open-ended.
func (b Budget) InWindow(d Date) bool {
	if d.Before(b.StartDate.Time) {
		return false
	}
	if !b.EndDate.IsEmpty() && d.After(b.EndDate.Time) {
		return false
	}
	return true
}

// CountsAgainst reports whether a transaction contributes to the budget's
// spent total: expense-typed, same category, date inside the spend window.
func (b Budget) CountsAgainst(t Transaction) bool {
	if t.Type != Expense {
		return false
	}
	if t.CategoryID == nil || *t.CategoryID != b.CategoryID {
		return false
	}
	return b.InWindow(t.Date)
}

// ComputeUsage sums the qualifying transactions against the budget amount.
// An empty slice yields zero spent. A zero or negative budget amount yields
// a zero percentage; upstream validation should prevent it, but this layer
// must tolerate it without dividing by zero.
func ComputeUsage(b Budget, transactions []Transaction) BudgetUsage {
	var spent int64
	for _, t := range transactions {
		if b.CountsAgainst(t) {
			spent += t.Amount.Cents
		}
	}

	usage := BudgetUsage{
		Spent:     Money{Cents: spent},
		Remaining: Money{Cents: b.Amount.Cents - spent},
	}
	if b.Amount.Cents > 0 {
		usage.PercentageUsed = float64(spent) / float64(b.Amount.Cents) * 100
	}
	return usage
}
