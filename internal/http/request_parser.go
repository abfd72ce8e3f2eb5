// Package http provides the HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request
// data: JSON bodies for the write endpoints and query parameters for the
// transaction listing.

package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budgetwatch/internal/core"
)

// transactionRequest is the JSON body for creating or updating a transaction.
// Amounts are decimal strings ("12.50"); dates are YYYY-MM-DD.
type transactionRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Date        string `json:"date"`
	CategoryID  *int64 `json:"categoryId"`
}

// budgetRequest is the JSON body for creating or updating a budget.
type budgetRequest struct {
	Name       string `json:"name"`
	Amount     string `json:"amount"`
	Period     string `json:"period"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	CategoryID int64  `json:"categoryId"`
}

// categoryRequest is the JSON body for creating or updating a category.
type categoryRequest struct {
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Color     string `json:"color"`
	IsDefault bool   `json:"isDefault"`
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func parseDateParam(value string) (core.Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", value)
	}
	return d, nil
}

// toTransaction converts a request body to a domain transaction. Validation
// of the result stays with core.Transaction.Validate.
func (req transactionRequest) toTransaction(userID int64) (core.Transaction, error) {
	cents, err := core.ParseDecimalToCents(strings.TrimSpace(req.Amount))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("invalid amount %q: %w", req.Amount, err)
	}

	date, err := parseDateParam(req.Date)
	if err != nil {
		return core.Transaction{}, err
	}

	return core.Transaction{
		UserID:      userID,
		Description: sanitizeInput(req.Description),
		Amount:      core.Money{Cents: cents},
		Type:        core.TransactionType(strings.ToLower(strings.TrimSpace(req.Type))),
		Date:        date,
		CategoryID:  req.CategoryID,
	}, nil
}

func (req budgetRequest) toBudget(userID int64) (core.Budget, error) {
	cents, err := core.ParseDecimalToCents(strings.TrimSpace(req.Amount))
	if err != nil {
		return core.Budget{}, fmt.Errorf("invalid amount %q: %w", req.Amount, err)
	}

	start, err := parseDateParam(req.StartDate)
	if err != nil {
		return core.Budget{}, err
	}
	end, err := parseDateParam(req.EndDate)
	if err != nil {
		return core.Budget{}, err
	}

	return core.Budget{
		UserID:     userID,
		Name:       sanitizeInput(req.Name),
		Amount:     core.Money{Cents: cents},
		Period:     core.BudgetPeriod(strings.ToLower(strings.TrimSpace(req.Period))),
		StartDate:  start,
		EndDate:    end,
		CategoryID: req.CategoryID,
	}, nil
}

// ParseTransactionFilter extracts the list filter from query parameters.
// Unknown values fail rather than being silently dropped; page and pageSize
// out of range are normalized later by the filter itself.
func ParseTransactionFilter(query url.Values) (core.TransactionFilter, error) {
	var f core.TransactionFilter
	var err error

	if f.StartDate, err = parseDateParam(query.Get("startDate")); err != nil {
		return f, err
	}
	if f.EndDate, err = parseDateParam(query.Get("endDate")); err != nil {
		return f, err
	}
	if !f.StartDate.IsEmpty() && !f.EndDate.IsEmpty() && f.EndDate.Before(f.StartDate.Time) {
		return f, fmt.Errorf("endDate before startDate")
	}

	if v := strings.TrimSpace(query.Get("categoryId")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, fmt.Errorf("invalid categoryId %q", v)
		}
		f.CategoryID = &id
	}

	if v := strings.ToLower(strings.TrimSpace(query.Get("type"))); v != "" {
		t := core.TransactionType(v)
		if err := t.Validate(); err != nil {
			return f, fmt.Errorf("invalid type %q", v)
		}
		f.Type = t
	}

	if v := strings.TrimSpace(query.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("invalid page %q", v)
		}
		f.Page = page
	}
	if v := strings.TrimSpace(query.Get("pageSize")); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("invalid pageSize %q", v)
		}
		f.PageSize = size
	}

	return f, nil
}

// pathID extracts the {id} path value as a positive integer.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// sanitizeInput removes control characters and trims whitespace
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
