// Package payment implements the payment orchestration module: provider
// selection, the intent lifecycle, webhook reconciliation, and the HTTP
// surface over all of it.
package payment

import (
	"time"

	"github.com/google/uuid"

	"github.com/bookwise/payments/internal/module/payment/domain"
)

// IntentRecord is the local mirror of a processor-side payment intent.
// The processor remains the source of truth; this record exists so
// webhook replays can be compared against the last known status without
// a provider round trip.
type IntentRecord struct {
	ID             uuid.UUID           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID         string              `gorm:"index" json:"user_id"`
	Provider       string              `gorm:"not null;index" json:"provider"`
	TransactionID  string              `gorm:"uniqueIndex;not null" json:"transaction_id"`
	Amount         int64               `gorm:"not null" json:"amount"`
	Currency       string              `gorm:"size:3;not null" json:"currency"`
	Country        string              `gorm:"size:2" json:"country,omitempty"`
	Status         domain.IntentStatus `gorm:"not null;default:requires_payment_method;index" json:"status"`
	RefundedAmount int64               `gorm:"not null;default:0" json:"refunded_amount"`
	FailureCode    string              `json:"failure_code,omitempty"`
	FailureMessage string              `json:"failure_message,omitempty"`
	SucceededAt    *time.Time          `json:"succeeded_at,omitempty"`
	CanceledAt     *time.Time          `json:"canceled_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (IntentRecord) TableName() string {
	return "payment_intents"
}

// Remaining returns the amount still refundable.
func (r *IntentRecord) Remaining() int64 {
	return r.Amount - r.RefundedAmount
}

// WebhookEventRecord is the durable dedup and audit row for a provider
// notification. EventID is unique per provider.
type WebhookEventRecord struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Provider      string     `gorm:"not null;uniqueIndex:idx_provider_event" json:"provider"`
	EventID       string     `gorm:"not null;uniqueIndex:idx_provider_event" json:"event_id"`
	EventType     string     `gorm:"not null" json:"event_type"`
	TransactionID string     `gorm:"index" json:"transaction_id"`
	Processed     bool       `gorm:"not null;default:false" json:"processed"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (WebhookEventRecord) TableName() string {
	return "payment_webhook_events"
}
