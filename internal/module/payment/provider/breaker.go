package provider

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	errs "github.com/bookwise/payments/internal/shared/errors"
)

// BreakerConfig tunes the per-provider circuit breaker.
type BreakerConfig struct {
	FailureThreshold    uint32
	MaxHalfOpenRequests uint32
	OpenTimeout         time.Duration
}

// DefaultBreakerConfig trips after 5 consecutive transport failures and
// probes again after 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:    5,
		MaxHalfOpenRequests: 1,
		OpenTimeout:         30 * time.Second,
	}
}

// BreakerStrategy decorates a Strategy with a circuit breaker on every
// network-bound operation. Only ProviderUnavailable counts as a breaker
// failure: declines are answers, not outages. While the circuit is open
// calls fail fast with ProviderUnavailable.
type BreakerStrategy struct {
	inner Strategy
	cb    *gobreaker.CircuitBreaker[any]
}

// WithBreaker wraps a strategy in a circuit breaker.
func WithBreaker(inner Strategy, cfg BreakerConfig, logger *zap.Logger) *BreakerStrategy {
	settings := gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: cfg.MaxHalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errs.IsCode(err, errs.CodeProviderUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("payment provider circuit state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &BreakerStrategy{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (b *BreakerStrategy) Name() string {
	return b.inner.Name()
}

func (b *BreakerStrategy) Capabilities() Capabilities {
	return b.inner.Capabilities()
}

func (b *BreakerStrategy) CreatePaymentIntent(ctx context.Context, data *CreateIntentData) (*PaymentResult, error) {
	return execute(b, func() (*PaymentResult, error) {
		return b.inner.CreatePaymentIntent(ctx, data)
	})
}

func (b *BreakerStrategy) ConfirmPaymentIntent(ctx context.Context, transactionID, paymentMethodID string) (*PaymentResult, error) {
	return execute(b, func() (*PaymentResult, error) {
		return b.inner.ConfirmPaymentIntent(ctx, transactionID, paymentMethodID)
	})
}

func (b *BreakerStrategy) ProcessPayment(ctx context.Context, data *CreateIntentData) (*PaymentResult, error) {
	return execute(b, func() (*PaymentResult, error) {
		return b.inner.ProcessPayment(ctx, data)
	})
}

func (b *BreakerStrategy) Refund(ctx context.Context, data *RefundData) (*RefundResult, error) {
	return execute(b, func() (*RefundResult, error) {
		return b.inner.Refund(ctx, data)
	})
}

func (b *BreakerStrategy) GetTransactionStatus(ctx context.Context, transactionID string) (*PaymentResult, error) {
	return execute(b, func() (*PaymentResult, error) {
		return b.inner.GetTransactionStatus(ctx, transactionID)
	})
}

func (b *BreakerStrategy) VerifyWebhookSignature(payload []byte, signature string) error {
	return b.inner.VerifyWebhookSignature(payload, signature)
}

func (b *BreakerStrategy) ParseWebhookEvent(ctx context.Context, payload []byte, headers map[string]string) (*WebhookEvent, error) {
	return b.inner.ParseWebhookEvent(ctx, payload, headers)
}

func execute[T any](b *BreakerStrategy, fn func() (*T, error)) (*T, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errs.ProviderUnavailable(b.inner.Name(), err)
		}
		return nil, err
	}
	out, _ := result.(*T)
	return out, nil
}
