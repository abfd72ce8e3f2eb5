package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily   BudgetPeriod = "daily"
	Weekly  BudgetPeriod = "weekly"
	Monthly BudgetPeriod = "monthly"
	Yearly  BudgetPeriod = "yearly"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// MaxDescriptionLen bounds transaction descriptions.
const MaxDescriptionLen = 500

type (
	BudgetPeriod    string
	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID          int64
		UserID      int64
		Description string
		Amount      Money
		Type        TransactionType
		Date        Date
		CategoryID  *int64 // nil when uncategorized
		CreatedAt   time.Time
		UpdatedAt   *time.Time
	}

	Category struct {
		ID        int64
		UserID    int64
		Name      string
		Icon      string
		Color     string
		IsDefault bool
		CreatedAt time.Time
		UpdatedAt *time.Time
	}

	Budget struct {
		ID         int64
		UserID     int64
		Name       string
		Amount     Money
		Period     BudgetPeriod
		StartDate  Date
		EndDate    Date // zero value means open-ended
		CategoryID int64
		CreatedAt  time.Time
		UpdatedAt  *time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidPeriod    = errors.New("invalid budget period")
	ErrInvalidDateRange = errors.New("end date must be after start date")
	ErrFutureDate       = errors.New("date too far in the future")
	ErrMissingCategory  = errors.New("missing category reference")
	ErrNotFound         = errors.New("not found")
)

// NewDate creates a new Date from year, month, day (UTC midnight).
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero (used for optional dates).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidType
	}
}

func (p BudgetPeriod) Validate() error {
	switch p {
	case Daily, Weekly, Monthly, Yearly:
		return nil
	default:
		return ErrInvalidPeriod
	}
}

// Validate checks a transaction against the entry rules. The date may be at
// most one day in the future to tolerate client timezones.
func (t Transaction) Validate(now time.Time) error {
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > MaxDescriptionLen {
		return errors.New("description too long (max 500 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Date.After(now.Add(24 * time.Hour)) {
		return ErrFutureDate
	}
	return nil
}

func (c Category) Validate() error {
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	return nil
}

func (b Budget) Validate() error {
	if len(strings.TrimSpace(b.Name)) == 0 {
		return ErrEmptyName
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if err := b.Period.Validate(); err != nil {
		return err
	}
	if err := b.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if !b.EndDate.IsEmpty() && !b.EndDate.After(b.StartDate.Time) {
		return ErrInvalidDateRange
	}
	if b.CategoryID <= 0 {
		return ErrMissingCategory
	}
	return nil
}
