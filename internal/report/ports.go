package report

import (
	"context"

	"budgetwatch/internal/core"
)

// Line is one category row of a monthly report.
type Line struct {
	CategoryName string
	Total        core.Money
}

// MonthlyReport summarizes one user's finances for a calendar month.
type MonthlyReport struct {
	UserID       int64
	Year         int
	Month        int
	Income       core.Money
	TotalExpense core.Money
	Lines        []Line
}

// Ports for outbound adapters.
type (
	// Writer exports a finished monthly report and returns a reference to
	// where it landed (a sheet range, a memory slot).
	Writer interface {
		WriteMonthlyReport(ctx context.Context, rep MonthlyReport) (ref string, err error)
	}
)
