package notify

import (
	"context"

	"budgetwatch/internal/core"
)

// Alert is one budget threshold breach, ready for delivery.
type Alert struct {
	UserID         int64
	BudgetID       int64
	BudgetName     string
	PercentageUsed float64
	Spent          core.Money
	Limit          core.Money
}

// Ports for outbound adapters.
type (
	// AlertSink delivers budget alerts to the user. Implementations must be
	// safe for concurrent use: the sweep dispatches from multiple goroutines.
	AlertSink interface {
		SendBudgetAlert(ctx context.Context, alert Alert) error
	}
)
