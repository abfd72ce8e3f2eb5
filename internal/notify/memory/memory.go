package memory

import (
	"context"
	"sync"

	"budgetwatch/internal/notify"
)

// Sink collects alerts in memory. Used in tests and as a local fallback when
// no broker is configured.
type Sink struct {
	mu     sync.Mutex
	alerts []notify.Alert

	// FailWith, when set, makes every send fail. Tests use it to exercise
	// fire-and-continue behavior.
	FailWith error
}

var _ notify.AlertSink = (*Sink)(nil)

func New() *Sink {
	return &Sink{}
}

func (s *Sink) SendBudgetAlert(_ context.Context, alert notify.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	s.alerts = append(s.alerts, alert)
	return nil
}

// Alerts returns a copy of everything delivered so far.
func (s *Sink) Alerts() []notify.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Alert(nil), s.alerts...)
}
