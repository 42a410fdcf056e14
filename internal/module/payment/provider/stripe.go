package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/bookwise/payments/internal/infra/httpclient"
	"github.com/bookwise/payments/internal/module/payment/domain"
	errs "github.com/bookwise/payments/internal/shared/errors"
)

const StripeName = "stripe"

// stripeHTTPTimeout caps a single SDK round trip; per-call deadlines come
// from the request context.
const stripeHTTPTimeout = 30 * time.Second

// StripeConfig holds Stripe credentials.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
}

// StripeStrategy implements Strategy on top of the Stripe SDK.
type StripeStrategy struct {
	config *StripeConfig
	logger *zap.Logger
}

// NewStripeStrategy creates a Stripe strategy and configures the SDK with
// the shared pooled transport.
func NewStripeStrategy(config *StripeConfig, logger *zap.Logger) *StripeStrategy {
	stripe.Key = config.APIKey
	stripe.SetHTTPClient(httpclient.New(stripeHTTPTimeout))
	return &StripeStrategy{config: config, logger: logger}
}

func (s *StripeStrategy) Name() string {
	return StripeName
}

func (s *StripeStrategy) Capabilities() Capabilities {
	return Capabilities{
		Currencies: []string{"USD", "EUR", "GBP", "CAD", "AUD", "JPY", "SGD", "HKD"},
		Countries:  []string{"US", "GB", "CA", "AU", "DE", "FR", "ES", "IT", "NL", "SG", "HK", "JP"},
		FeeBps:     290,
	}
}

func (s *StripeStrategy) CreatePaymentIntent(ctx context.Context, data *CreateIntentData) (*PaymentResult, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(data.Amount),
		Currency: stripe.String(strings.ToLower(data.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if data.CustomerID != "" {
		params.Customer = stripe.String(data.CustomerID)
	}
	if data.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(data.PaymentMethodID)
	}
	if data.Description != "" {
		params.Description = stripe.String(data.Description)
	}
	for k, v := range data.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, s.translateError("create payment intent", err)
	}

	s.logger.Info("stripe payment intent created",
		zap.String("intent_id", pi.ID),
		zap.Int64("amount", pi.Amount))

	return s.resultFromIntent(pi), nil
}

func (s *StripeStrategy) ConfirmPaymentIntent(ctx context.Context, transactionID, paymentMethodID string) (*PaymentResult, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx
	if paymentMethodID != "" {
		params.PaymentMethod = stripe.String(paymentMethodID)
	}

	pi, err := paymentintent.Confirm(transactionID, params)
	if err != nil {
		return nil, s.translateError("confirm payment intent", err)
	}

	return s.resultFromIntent(pi), nil
}

// ProcessPayment creates a confirmed intent in one round trip.
func (s *StripeStrategy) ProcessPayment(ctx context.Context, data *CreateIntentData) (*PaymentResult, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if data.PaymentMethodID == "" {
		return nil, errs.ValidationError("payment_method_id is required for one-shot processing")
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(data.Amount),
		Currency:      stripe.String(strings.ToLower(data.Currency)),
		PaymentMethod: stripe.String(data.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	if data.CustomerID != "" {
		params.Customer = stripe.String(data.CustomerID)
	}
	for k, v := range data.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, s.translateError("process payment", err)
	}

	return s.resultFromIntent(pi), nil
}

func (s *StripeStrategy) Refund(ctx context.Context, data *RefundData) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(data.TransactionID),
	}
	params.Context = ctx
	if data.Amount > 0 {
		params.Amount = stripe.Int64(data.Amount)
	}
	if data.Reason != "" {
		params.Reason = stripe.String(data.Reason)
	}

	ref, err := refund.New(params)
	if err != nil {
		return nil, s.translateError("refund", err)
	}

	s.logger.Info("stripe refund created",
		zap.String("refund_id", ref.ID),
		zap.Int64("amount", ref.Amount))

	return &RefundResult{Success: true, RefundID: ref.ID, Amount: ref.Amount}, nil
}

func (s *StripeStrategy) GetTransactionStatus(ctx context.Context, transactionID string) (*PaymentResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(transactionID, params)
	if err != nil {
		return nil, s.translateError("get payment intent", err)
	}
	return s.resultFromIntent(pi), nil
}

func (s *StripeStrategy) VerifyWebhookSignature(payload []byte, signature string) error {
	if _, err := webhook.ConstructEvent(payload, signature, s.config.WebhookSecret); err != nil {
		return errs.InvalidSignature(StripeName, err)
	}
	return nil
}

func (s *StripeStrategy) ParseWebhookEvent(ctx context.Context, payload []byte, headers map[string]string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, headers["Stripe-Signature"], s.config.WebhookSecret)
	if err != nil {
		return nil, errs.InvalidSignature(StripeName, err)
	}

	parsed := &WebhookEvent{
		ID:       event.ID,
		Provider: StripeName,
		RawType:  string(event.Type),
		Category: EventUnknown,
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, errs.Internal("decode stripe payment intent event", err)
		}
		parsed.TransactionID = pi.ID
		parsed.Amount = pi.Amount
		parsed.Currency = strings.ToUpper(string(pi.Currency))
		if event.Type == "payment_intent.succeeded" {
			parsed.Category = EventPaymentSucceeded
		} else {
			parsed.Category = EventPaymentFailed
			if pi.LastPaymentError != nil {
				parsed.FailureCode = string(pi.LastPaymentError.Code)
				parsed.FailureMessage = pi.LastPaymentError.Msg
			}
		}
	case "charge.dispute.created":
		var dp stripe.Dispute
		if err := json.Unmarshal(event.Data.Raw, &dp); err != nil {
			return nil, errs.Internal("decode stripe dispute event", err)
		}
		parsed.Category = EventDisputeOpened
		parsed.Amount = dp.Amount
		parsed.Currency = strings.ToUpper(string(dp.Currency))
		if dp.PaymentIntent != nil {
			parsed.TransactionID = dp.PaymentIntent.ID
		}
	}

	return parsed, nil
}

func (s *StripeStrategy) resultFromIntent(pi *stripe.PaymentIntent) *PaymentResult {
	status := mapStripeStatus(pi.Status)
	result := &PaymentResult{
		Success:       true,
		TransactionID: pi.ID,
		Status:        status,
		Amount:        pi.Amount,
		Currency:      strings.ToUpper(string(pi.Currency)),
		ClientSecret:  pi.ClientSecret,
		Metadata:      pi.Metadata,
	}
	if status == domain.StatusRequiresAction {
		result.RequiresAction = true
		if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
			result.NextAction = &NextAction{
				Type:        "redirect_to_url",
				RedirectURL: pi.NextAction.RedirectToURL.URL,
			}
		}
	}
	return result
}

// translateError maps SDK errors onto the application taxonomy. Card and
// processing declines are rejections; everything else means the processor
// could not be reached or answered abnormally.
func (s *StripeStrategy) translateError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeCard:
			reason := stripeErr.Msg
			if stripeErr.DeclineCode != "" {
				reason = string(stripeErr.DeclineCode)
			}
			return errs.ProviderRejected(StripeName, reason)
		case stripe.ErrorTypeInvalidRequest:
			return errs.ProviderRejected(StripeName, stripeErr.Msg)
		}
	}
	s.logger.Error("stripe call failed", zap.String("operation", op), zap.Error(err))
	return errs.ProviderUnavailable(StripeName, err)
}

func mapStripeStatus(status stripe.PaymentIntentStatus) domain.IntentStatus {
	switch status {
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		return domain.StatusRequiresPaymentMethod
	case stripe.PaymentIntentStatusRequiresConfirmation:
		return domain.StatusRequiresConfirmation
	case stripe.PaymentIntentStatusRequiresAction:
		return domain.StatusRequiresAction
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture:
		return domain.StatusProcessing
	case stripe.PaymentIntentStatusSucceeded:
		return domain.StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return domain.StatusCanceled
	default:
		return domain.StatusProcessing
	}
}
