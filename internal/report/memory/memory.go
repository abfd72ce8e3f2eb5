package memory

import (
	"context"
	"fmt"
	"sync"

	"budgetwatch/internal/report"
)

// Writer stores reports in memory. Used in tests and as a local fallback when
// no spreadsheet is configured.
type Writer struct {
	mu      sync.Mutex
	reports []report.MonthlyReport
}

var _ report.Writer = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

// WriteMonthlyReport stores the report and returns a synthetic reference.
func (w *Writer) WriteMonthlyReport(_ context.Context, rep report.MonthlyReport) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reports = append(w.reports, rep)
	return fmt.Sprintf("mem:%d", len(w.reports)), nil
}

// Reports returns a copy of everything written so far.
func (w *Writer) Reports() []report.MonthlyReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]report.MonthlyReport(nil), w.reports...)
}
