package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/core"
	"budgetwatch/internal/report"
	"budgetwatch/internal/storage"
)

// ReportStore is the storage surface report building needs.
type ReportStore interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
	MonthExpenseTotals(ctx context.Context, userID int64, year, month int) ([]storage.CategoryTotal, error)
	MonthIncomeTotal(ctx context.Context, userID int64, year, month int) (int64, error)
}

// ReportPublisher enqueues report triggers for the notify worker.
type ReportPublisher interface {
	PublishMonthlyReport(ctx context.Context, msg *amqp.MonthlyReportMessage) error
}

// ReportProcessorConfig holds configuration for the report trigger loop
type ReportProcessorConfig struct {
	// CheckInterval is how often the schedule is consulted (default: 1h)
	CheckInterval time.Duration

	// Frequency selects the schedule strategy (default: monthly)
	Frequency ReportFrequency
}

// DefaultReportProcessorConfig returns sensible defaults
func DefaultReportProcessorConfig() ReportProcessorConfig {
	return ReportProcessorConfig{
		CheckInterval: time.Hour,
		Frequency:     ReportMonthly,
	}
}

// ReportProcessor watches the schedule and, when a run is due, publishes one
// report trigger per user for the month that just ended. The last run time is
// held in memory only: a restart at a month boundary can re-trigger, which is
// safe because exports are append-only.
type ReportProcessor struct {
	store     ReportStore
	publisher ReportPublisher
	checker   ScheduleChecker
	config    ReportProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	lastRun time.Time
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReportProcessor creates a new report processor
func NewReportProcessor(store ReportStore, publisher ReportPublisher, config ReportProcessorConfig) (*ReportProcessor, error) {
	if config.Frequency == "" {
		config.Frequency = ReportMonthly
	}
	checker, err := GetScheduleChecker(config.Frequency)
	if err != nil {
		return nil, err
	}
	return &ReportProcessor{
		store:     store,
		publisher: publisher,
		checker:   checker,
		config:    config,
	}, nil
}

// Start begins the trigger loop. Returns an error if already running.
func (p *ReportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("report processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Report processor started",
		"check_interval", p.config.CheckInterval,
		"frequency", p.config.Frequency)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ReportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Report processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Report processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

func (p *ReportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.CheckInterval)
	defer ticker.Stop()

	p.checkAndTrigger(ctx, time.Now())

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.checkAndTrigger(ctx, time.Now())
		}
	}
}

func (p *ReportProcessor) checkAndTrigger(ctx context.Context, now time.Time) {
	p.mu.Lock()
	lastRun := p.lastRun
	p.mu.Unlock()

	if !p.checker.IsDue(lastRun, now) {
		return
	}

	published, err := p.Trigger(ctx, now)
	if err != nil {
		slog.ErrorContext(ctx, "Report trigger failed", "error", err)
		return
	}

	p.mu.Lock()
	p.lastRun = now
	p.mu.Unlock()

	year, month := PreviousMonth(now)
	slog.InfoContext(ctx, "Report triggers published",
		"users", published,
		"year_month", fmt.Sprintf("%04d-%02d", year, month))
}

// Trigger publishes one report message per known user for the previous
// calendar month. Returns the number of triggers published.
func (p *ReportProcessor) Trigger(ctx context.Context, now time.Time) (int, error) {
	users, err := p.store.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	year, month := PreviousMonth(now)

	published := 0
	for _, userID := range users {
		msg := amqp.NewMonthlyReportMessage(userID, year, month)
		if err := p.publisher.PublishMonthlyReport(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish report trigger",
				"user_id", userID,
				"error", err)
			continue
		}
		published++
	}

	return published, nil
}

// BuildMonthlyReport assembles one user's report for a calendar month from
// the stored totals. The notify worker calls this before exporting.
func BuildMonthlyReport(ctx context.Context, store ReportStore, userID int64, year, month int) (report.MonthlyReport, error) {
	totals, err := store.MonthExpenseTotals(ctx, userID, year, month)
	if err != nil {
		return report.MonthlyReport{}, fmt.Errorf("expense totals: %w", err)
	}

	income, err := store.MonthIncomeTotal(ctx, userID, year, month)
	if err != nil {
		return report.MonthlyReport{}, fmt.Errorf("income total: %w", err)
	}

	rep := report.MonthlyReport{
		UserID: userID,
		Year:   year,
		Month:  month,
		Income: core.Money{Cents: income},
	}
	for _, t := range totals {
		rep.TotalExpense.Cents += t.TotalCents
		rep.Lines = append(rep.Lines, report.Line{
			CategoryName: t.CategoryName,
			Total:        core.Money{Cents: t.TotalCents},
		})
	}

	return rep, nil
}
