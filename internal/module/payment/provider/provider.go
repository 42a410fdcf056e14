// Package provider defines the payment provider strategy contract and its
// concrete implementations. Each strategy owns all translation between the
// processor's wire formats and the application's types; nothing
// processor-specific leaks past this package.
package provider

import (
	"context"
	"strings"

	"github.com/bookwise/payments/internal/module/payment/domain"
	errs "github.com/bookwise/payments/internal/shared/errors"
)

// Capabilities describes what a provider supports, used for selection.
type Capabilities struct {
	Currencies []string // ISO 4217 codes, uppercase
	Countries  []string // ISO 3166-1 alpha-2 codes, uppercase
	FeeBps     int      // processing fee in basis points, lower wins ties
}

// SupportsCurrency reports whether code is accepted, case-insensitively.
func (c Capabilities) SupportsCurrency(code string) bool {
	code = strings.ToUpper(code)
	for _, cur := range c.Currencies {
		if cur == code {
			return true
		}
	}
	return false
}

// SupportsCountry reports whether code is accepted, case-insensitively.
func (c Capabilities) SupportsCountry(code string) bool {
	code = strings.ToUpper(code)
	for _, country := range c.Countries {
		if country == code {
			return true
		}
	}
	return false
}

// CreateIntentData is the input to intent creation and one-shot processing.
// Amount is in the currency's minor unit.
type CreateIntentData struct {
	Amount          int64
	Currency        string
	Country         string
	CustomerID      string
	PaymentMethodID string
	Description     string
	Metadata        map[string]string
}

// Validate fails fast before any network call.
func (d *CreateIntentData) Validate() error {
	if d.Amount <= 0 {
		return errs.InvalidAmount("amount must be a positive number of minor units")
	}
	if len(d.Currency) != 3 {
		return errs.InvalidCurrency("currency must be a 3-letter ISO 4217 code")
	}
	return nil
}

// NextAction tells the client what to do when strong authentication or an
// offsite flow is required.
type NextAction struct {
	Type        string `json:"type"` // redirect_to_url, qr_code
	RedirectURL string `json:"redirect_url,omitempty"`
	QRCode      string `json:"qr_code,omitempty"`
}

// PaymentResult is the uniform outcome of intent operations. A decline is
// not a Go error: it comes back as Success=false with the taxonomy code in
// ErrorCode so callers can render it.
type PaymentResult struct {
	Success        bool                `json:"success"`
	TransactionID  string              `json:"transaction_id"`
	Status         domain.IntentStatus `json:"status"`
	Amount         int64               `json:"amount"`
	Currency       string              `json:"currency"`
	ClientSecret   string              `json:"client_secret,omitempty"`
	RequiresAction bool                `json:"requires_action"`
	NextAction     *NextAction         `json:"next_action,omitempty"`
	Metadata       map[string]string   `json:"metadata,omitempty"`
	ErrorCode      string              `json:"error_code,omitempty"`
	ErrorMessage   string              `json:"error_message,omitempty"`
}

// RefundData is the input to a refund. Amount 0 means full refund.
type RefundData struct {
	TransactionID string
	Amount        int64
	Reason        string
}

// RefundResult is the uniform outcome of a refund.
type RefundResult struct {
	Success      bool   `json:"success"`
	RefundID     string `json:"refund_id,omitempty"`
	Amount       int64  `json:"amount"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// EventCategory normalizes provider webhook event types into the three
// classes the reconciler acts on.
type EventCategory string

const (
	EventPaymentSucceeded EventCategory = "payment_succeeded"
	EventPaymentFailed    EventCategory = "payment_failed"
	EventDisputeOpened    EventCategory = "dispute_opened"
	EventUnknown          EventCategory = "unknown"
)

// WebhookEvent is a verified, parsed provider notification.
type WebhookEvent struct {
	ID             string
	Provider       string
	Category       EventCategory
	RawType        string
	TransactionID  string
	Amount         int64
	Currency       string
	FailureCode    string
	FailureMessage string
}

// Strategy is the contract every payment provider implements.
//
// Validation failures return InvalidAmount/InvalidCurrency before any
// network activity. Transport failures and timeouts return
// ProviderUnavailable; explicit processor declines return ProviderRejected.
type Strategy interface {
	Name() string
	Capabilities() Capabilities

	CreatePaymentIntent(ctx context.Context, data *CreateIntentData) (*PaymentResult, error)
	ConfirmPaymentIntent(ctx context.Context, transactionID, paymentMethodID string) (*PaymentResult, error)
	// ProcessPayment creates and confirms in one call where the processor
	// supports it.
	ProcessPayment(ctx context.Context, data *CreateIntentData) (*PaymentResult, error)
	Refund(ctx context.Context, data *RefundData) (*RefundResult, error)
	GetTransactionStatus(ctx context.Context, transactionID string) (*PaymentResult, error)

	// VerifyWebhookSignature authenticates a raw webhook payload.
	// InvalidSignature means the payload must be rejected untouched.
	VerifyWebhookSignature(payload []byte, signature string) error
	// ParseWebhookEvent verifies and normalizes a webhook delivery.
	ParseWebhookEvent(ctx context.Context, payload []byte, headers map[string]string) (*WebhookEvent, error)
}
