// Report scheduling uses the Strategy Pattern: each report frequency has its
// own checker that decides whether a run is due given the last run time.

package services

import (
	"fmt"
	"time"
)

// ReportFrequency names a report schedule.
type ReportFrequency string

const (
	ReportDaily   ReportFrequency = "daily"
	ReportWeekly  ReportFrequency = "weekly"
	ReportMonthly ReportFrequency = "monthly"
)

// ScheduleChecker is the strategy interface for deciding whether a scheduled
// report run is due.
type ScheduleChecker interface {
	// IsDue returns true if a run should happen now, given the last run time.
	IsDue(lastRun, now time.Time) bool
}

// DailyScheduleChecker runs once per calendar day.
type DailyScheduleChecker struct{}

func (DailyScheduleChecker) IsDue(lastRun, now time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	return lastRun.Format("2006-01-02") != now.Format("2006-01-02")
}

// WeeklyScheduleChecker runs when 7 or more days have passed since the last run.
type WeeklyScheduleChecker struct{}

func (WeeklyScheduleChecker) IsDue(lastRun, now time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	daysSince := now.Sub(lastRun).Hours() / 24
	return daysSince >= 7
}

// MonthlyScheduleChecker runs once per calendar month, as soon as the new
// month begins. The run covers the month that just ended.
type MonthlyScheduleChecker struct{}

func (MonthlyScheduleChecker) IsDue(lastRun, now time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	return lastRun.Year() != now.Year() || lastRun.Month() != now.Month()
}

// scheduleStrategies maps frequencies to their checkers.
var scheduleStrategies = map[ReportFrequency]ScheduleChecker{
	ReportDaily:   DailyScheduleChecker{},
	ReportWeekly:  WeeklyScheduleChecker{},
	ReportMonthly: MonthlyScheduleChecker{},
}

// GetScheduleChecker returns the checker for a report frequency.
func GetScheduleChecker(frequency ReportFrequency) (ScheduleChecker, error) {
	checker, ok := scheduleStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown report frequency: %s", frequency)
	}
	return checker, nil
}

// RegisterScheduleChecker registers a checker for a custom frequency.
func RegisterScheduleChecker(frequency ReportFrequency, checker ScheduleChecker) {
	scheduleStrategies[frequency] = checker
}

// PreviousMonth returns the calendar month immediately before now.
func PreviousMonth(now time.Time) (year, month int) {
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return prev.Year(), int(prev.Month())
}
