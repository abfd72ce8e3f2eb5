package core

const (
	// DefaultPageSize is applied when a listing request omits the page size.
	DefaultPageSize = 20
	// MaxPageSize caps a single page to bound response size.
	MaxPageSize = 200
)

// TransactionFilter selects a user's transactions for listing. All criteria
// are optional and combined with logical AND. Zero-value dates and an empty
// type mean "no constraint".
type TransactionFilter struct {
	StartDate  Date
	EndDate    Date
	CategoryID *int64
	Type       TransactionType
	Page       int
	PageSize   int
}

// TransactionPage is one page of filtered results plus the pre-pagination
// total, so clients can compute the page count.
type TransactionPage struct {
	Items      []Transaction
	TotalCount int64
	Page       int
	PageSize   int
}

// Normalize applies paging defaults and the page-size cap. Page numbers below
// one snap to one; a missing size gets the default.
func (f TransactionFilter) Normalize() TransactionFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// Offset returns the number of rows to skip for the requested page.
func (f TransactionFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// Matches reports whether a transaction satisfies every provided criterion.
// Date bounds are inclusive on both ends.
func (f TransactionFilter) Matches(t Transaction) bool {
	if !f.StartDate.IsEmpty() && t.Date.Before(f.StartDate.Time) {
		return false
	}
	if !f.EndDate.IsEmpty() && t.Date.After(f.EndDate.Time) {
		return false
	}
	if f.CategoryID != nil {
		if t.CategoryID == nil || *t.CategoryID != *f.CategoryID {
			return false
		}
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	return true
}
