package payment

import (
	"github.com/bookwise/payments/internal/infra/events"
)

// Outbound domain event types. Consumers subscribe to these on the event
// bus; publication is best effort and never blocks payment processing.
const (
	EventPaymentCreated   = "payment.created"
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
)

// EventPublisher is the slice of the event bus the orchestrator needs.
type EventPublisher interface {
	Publish(event events.Event)
}

// PaymentEvent is the payload shared by all payment lifecycle events.
type PaymentEvent struct {
	events.BaseEvent
	TransactionID  string `json:"transaction_id"`
	Provider       string `json:"provider"`
	UserID         string `json:"user_id,omitempty"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	FailureCode    string `json:"failure_code,omitempty"`
	FailureMessage string `json:"failure_message,omitempty"`
}

func newPaymentEvent(eventType string, rec *IntentRecord) PaymentEvent {
	return PaymentEvent{
		BaseEvent:      events.NewBaseEvent(eventType, rec.ID.String()),
		TransactionID:  rec.TransactionID,
		Provider:       rec.Provider,
		UserID:         rec.UserID,
		Amount:         rec.Amount,
		Currency:       rec.Currency,
		FailureCode:    rec.FailureCode,
		FailureMessage: rec.FailureMessage,
	}
}
