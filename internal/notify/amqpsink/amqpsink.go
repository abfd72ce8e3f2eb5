package amqpsink

import (
	"context"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/notify"
)

// Sink publishes alerts to the budget events queue. The notify worker picks
// them up for delivery.
type Sink struct {
	client *amqp.Client
}

var _ notify.AlertSink = (*Sink)(nil)

func New(client *amqp.Client) *Sink {
	return &Sink{client: client}
}

func (s *Sink) SendBudgetAlert(ctx context.Context, alert notify.Alert) error {
	msg := amqp.NewBudgetAlertMessage(
		alert.UserID,
		alert.BudgetID,
		alert.BudgetName,
		alert.PercentageUsed,
		alert.Spent.Cents,
		alert.Limit.Cents,
	)
	return s.client.PublishBudgetAlert(ctx, msg)
}
