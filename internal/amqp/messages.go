package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageKind discriminates the payloads sharing the budget events queue.
type MessageKind string

const (
	KindBudgetAlert   MessageKind = "budget_alert"
	KindMonthlyReport MessageKind = "monthly_report"
)

// Envelope wraps every message on the wire so consumers can dispatch on kind
// before decoding the payload.
type Envelope struct {
	Kind      MessageKind     `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// BudgetAlertMessage carries one threshold breach. It is self-contained: the
// notify worker delivers it without a database round-trip.
type BudgetAlertMessage struct {
	UserID         int64     `json:"user_id"`
	BudgetID       int64     `json:"budget_id"`
	BudgetName     string    `json:"budget_name"`
	PercentageUsed float64   `json:"percentage_used"`
	SpentCents     int64     `json:"spent_cents"`
	LimitCents     int64     `json:"limit_cents"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewBudgetAlertMessage creates an alert message stamped with the current time
func NewBudgetAlertMessage(userID, budgetID int64, name string, percentageUsed float64, spentCents, limitCents int64) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		UserID:         userID,
		BudgetID:       budgetID,
		BudgetName:     name,
		PercentageUsed: percentageUsed,
		SpentCents:     spentCents,
		LimitCents:     limitCents,
		Timestamp:      time.Now(),
	}
}

// MonthlyReportMessage asks the notify worker to build and export one user's
// report for the given calendar month.
type MonthlyReportMessage struct {
	UserID    int64     `json:"user_id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMonthlyReportMessage creates a report trigger message
func NewMonthlyReportMessage(userID int64, year, month int) *MonthlyReportMessage {
	return &MonthlyReportMessage{
		UserID:    userID,
		Year:      year,
		Month:     month,
		Timestamp: time.Now(),
	}
}

func wrap(kind MessageKind, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(Envelope{
		Kind:      kind,
		Payload:   raw,
		Timestamp: time.Now(),
	})
}

// EnvelopeFromJSON decodes the outer envelope
func EnvelopeFromJSON(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Kind == "" {
		return nil, fmt.Errorf("envelope missing kind")
	}
	return &env, nil
}

// BudgetAlertFromEnvelope decodes a budget alert payload
func BudgetAlertFromEnvelope(env *Envelope) (*BudgetAlertMessage, error) {
	if env.Kind != KindBudgetAlert {
		return nil, fmt.Errorf("unexpected kind %q", env.Kind)
	}
	var msg BudgetAlertMessage
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MonthlyReportFromEnvelope decodes a monthly report payload
func MonthlyReportFromEnvelope(env *Envelope) (*MonthlyReportMessage, error) {
	if env.Kind != KindMonthlyReport {
		return nil, fmt.Errorf("unexpected kind %q", env.Kind)
	}
	var msg MonthlyReportMessage
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
