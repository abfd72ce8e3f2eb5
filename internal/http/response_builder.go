// Package http provides the HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses,
// plus the response DTOs the API exposes.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"budgetwatch/internal/core"
	"budgetwatch/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	payload    any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the payload that will be marshalled as the response body.
func (b *JSONResponseBuilder) Body(payload any) *JSONResponseBuilder {
	b.payload = payload
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)

	if b.payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(b.payload); err != nil {
		slog.Error("Failed to encode response", "component", "http", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// --- DTOs ---

type transactionResponse struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	AmountCents int64  `json:"amountCents"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Date        string `json:"date"`
	CategoryID  *int64 `json:"categoryId"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Description: t.Description,
		AmountCents: t.Amount.Cents,
		Amount:      t.Amount.String(),
		Type:        string(t.Type),
		Date:        t.Date.Format("2006-01-02"),
		CategoryID:  t.CategoryID,
	}
}

type transactionPageResponse struct {
	Items      []transactionResponse `json:"items"`
	TotalCount int64                 `json:"totalCount"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"pageSize"`
}

func toTransactionPageResponse(page core.TransactionPage) transactionPageResponse {
	out := transactionPageResponse{
		Items:      make([]transactionResponse, 0, len(page.Items)),
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
	}
	for _, t := range page.Items {
		out.Items = append(out.Items, toTransactionResponse(t))
	}
	return out
}

type categoryResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Color     string `json:"color"`
	IsDefault bool   `json:"isDefault"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		Icon:      c.Icon,
		Color:     c.Color,
		IsDefault: c.IsDefault,
	}
}

type budgetResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amountCents"`
	Amount      string `json:"amount"`
	Period      string `json:"period"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate,omitempty"`
	CategoryID  int64  `json:"categoryId"`
}

func toBudgetResponse(b core.Budget) budgetResponse {
	out := budgetResponse{
		ID:          b.ID,
		Name:        b.Name,
		AmountCents: b.Amount.Cents,
		Amount:      b.Amount.String(),
		Period:      string(b.Period),
		StartDate:   b.StartDate.Format("2006-01-02"),
		CategoryID:  b.CategoryID,
	}
	if !b.EndDate.IsEmpty() {
		out.EndDate = b.EndDate.Format("2006-01-02")
	}
	return out
}

type budgetStatusResponse struct {
	Budget         budgetResponse `json:"budget"`
	SpentCents     int64          `json:"spentCents"`
	Spent          string         `json:"spent"`
	RemainingCents int64          `json:"remainingCents"`
	Remaining      string         `json:"remaining"`
	PercentageUsed float64        `json:"percentageUsed"`
}

func toBudgetStatusResponse(status services.BudgetStatus) budgetStatusResponse {
	return budgetStatusResponse{
		Budget:         toBudgetResponse(status.Budget),
		SpentCents:     status.Usage.Spent.Cents,
		Spent:          status.Usage.Spent.String(),
		RemainingCents: status.Usage.Remaining.Cents,
		Remaining:      status.Usage.Remaining.String(),
		PercentageUsed: status.Usage.PercentageUsed,
	}
}
