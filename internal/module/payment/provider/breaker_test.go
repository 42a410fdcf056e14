package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookwise/payments/internal/module/payment/domain"
	errs "github.com/bookwise/payments/internal/shared/errors"
)

// stubStrategy lets tests script provider behavior per call.
type stubStrategy struct {
	name      string
	calls     int
	createFn  func() (*PaymentResult, error)
	confirmFn func() (*PaymentResult, error)
}

func (s *stubStrategy) Name() string {
	if s.name == "" {
		return "stub"
	}
	return s.name
}

func (s *stubStrategy) Capabilities() Capabilities {
	return Capabilities{Currencies: []string{"USD"}, Countries: []string{"US"}, FeeBps: 100}
}

func (s *stubStrategy) CreatePaymentIntent(context.Context, *CreateIntentData) (*PaymentResult, error) {
	s.calls++
	if s.createFn != nil {
		return s.createFn()
	}
	return &PaymentResult{Success: true, TransactionID: "tx_1", Status: domain.StatusRequiresConfirmation}, nil
}

func (s *stubStrategy) ConfirmPaymentIntent(context.Context, string, string) (*PaymentResult, error) {
	s.calls++
	if s.confirmFn != nil {
		return s.confirmFn()
	}
	return &PaymentResult{Success: true, TransactionID: "tx_1", Status: domain.StatusSucceeded}, nil
}

func (s *stubStrategy) ProcessPayment(ctx context.Context, data *CreateIntentData) (*PaymentResult, error) {
	return s.CreatePaymentIntent(ctx, data)
}

func (s *stubStrategy) Refund(context.Context, *RefundData) (*RefundResult, error) {
	s.calls++
	return &RefundResult{Success: true, RefundID: "re_1"}, nil
}

func (s *stubStrategy) GetTransactionStatus(context.Context, string) (*PaymentResult, error) {
	s.calls++
	return &PaymentResult{Success: true, TransactionID: "tx_1", Status: domain.StatusProcessing}, nil
}

func (s *stubStrategy) VerifyWebhookSignature([]byte, string) error {
	return nil
}

func (s *stubStrategy) ParseWebhookEvent(context.Context, []byte, map[string]string) (*WebhookEvent, error) {
	return &WebhookEvent{Category: EventUnknown}, nil
}

func TestBreakerStrategy_TripsOnUnavailability(t *testing.T) {
	stub := &stubStrategy{
		createFn: func() (*PaymentResult, error) {
			return nil, errs.ProviderUnavailable("stub", nil)
		},
	}
	b := WithBreaker(stub, BreakerConfig{
		FailureThreshold:    3,
		MaxHalfOpenRequests: 1,
		OpenTimeout:         time.Minute,
	}, zap.NewNop())

	ctx := context.Background()
	data := &CreateIntentData{Amount: 100, Currency: "USD"}

	for i := 0; i < 3; i++ {
		_, err := b.CreatePaymentIntent(ctx, data)
		require.Error(t, err)
	}
	assert.Equal(t, 3, stub.calls)

	// circuit is open: the provider is no longer called
	_, err := b.CreatePaymentIntent(ctx, data)
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.CodeProviderUnavailable))
	assert.Equal(t, 3, stub.calls)
}

func TestBreakerStrategy_DeclinesDoNotTrip(t *testing.T) {
	stub := &stubStrategy{
		confirmFn: func() (*PaymentResult, error) {
			return nil, errs.ProviderRejected("stub", "insufficient funds")
		},
	}
	b := WithBreaker(stub, BreakerConfig{
		FailureThreshold:    2,
		MaxHalfOpenRequests: 1,
		OpenTimeout:         time.Minute,
	}, zap.NewNop())

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := b.ConfirmPaymentIntent(ctx, "tx_1", "")
		require.Error(t, err)
		assert.True(t, errs.IsCode(err, errs.CodeProviderRejected))
	}
	// every decline reached the provider
	assert.Equal(t, 10, stub.calls)
}

func TestBreakerStrategy_PassesThroughSuccess(t *testing.T) {
	stub := &stubStrategy{}
	b := WithBreaker(stub, DefaultBreakerConfig(), zap.NewNop())

	result, err := b.CreatePaymentIntent(context.Background(), &CreateIntentData{Amount: 100, Currency: "USD"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "stub", b.Name())
}
