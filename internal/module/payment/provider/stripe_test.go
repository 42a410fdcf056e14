package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/bookwise/payments/internal/module/payment/domain"
	errs "github.com/bookwise/payments/internal/shared/errors"
)

func TestMapStripeStatus(t *testing.T) {
	tests := []struct {
		stripe stripe.PaymentIntentStatus
		want   domain.IntentStatus
	}{
		{stripe.PaymentIntentStatusRequiresPaymentMethod, domain.StatusRequiresPaymentMethod},
		{stripe.PaymentIntentStatusRequiresConfirmation, domain.StatusRequiresConfirmation},
		{stripe.PaymentIntentStatusRequiresAction, domain.StatusRequiresAction},
		{stripe.PaymentIntentStatusProcessing, domain.StatusProcessing},
		{stripe.PaymentIntentStatusRequiresCapture, domain.StatusProcessing},
		{stripe.PaymentIntentStatusSucceeded, domain.StatusSucceeded},
		{stripe.PaymentIntentStatusCanceled, domain.StatusCanceled},
	}

	for _, tt := range tests {
		t.Run(string(tt.stripe), func(t *testing.T) {
			assert.Equal(t, tt.want, mapStripeStatus(tt.stripe))
		})
	}
}

func TestStripeStrategy_TranslateError(t *testing.T) {
	s := &StripeStrategy{config: &StripeConfig{}, logger: zap.NewNop()}

	t.Run("card decline is a rejection", func(t *testing.T) {
		err := s.translateError("confirm", &stripe.Error{
			Type:        stripe.ErrorTypeCard,
			Msg:         "Your card was declined.",
			DeclineCode: "insufficient_funds",
		})
		assert.True(t, errors.Is(err, errs.ErrProviderRejected))
		assert.True(t, errs.IsCode(err, errs.CodeProviderRejected))
	})

	t.Run("invalid request is a rejection", func(t *testing.T) {
		err := s.translateError("create", &stripe.Error{
			Type: stripe.ErrorTypeInvalidRequest,
			Msg:  "No such payment_intent",
		})
		assert.True(t, errs.IsCode(err, errs.CodeProviderRejected))
	})

	t.Run("transport failure is unavailability", func(t *testing.T) {
		err := s.translateError("create", errors.New("connection refused"))
		assert.True(t, errors.Is(err, errs.ErrProviderUnavailable))
	})

	t.Run("api error is unavailability", func(t *testing.T) {
		err := s.translateError("create", &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "boom"})
		assert.True(t, errs.IsCode(err, errs.CodeProviderUnavailable))
	})
}

func TestStripeStrategy_Capabilities(t *testing.T) {
	s := NewStripeStrategy(&StripeConfig{APIKey: "sk_test_x"}, zap.NewNop())
	caps := s.Capabilities()
	assert.True(t, caps.SupportsCurrency("usd"))
	assert.True(t, caps.SupportsCountry("US"))
	assert.Positive(t, caps.FeeBps)
}
