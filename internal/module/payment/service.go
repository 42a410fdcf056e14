package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bookwise/payments/internal/module/monitoring"
	"github.com/bookwise/payments/internal/module/payment/domain"
	"github.com/bookwise/payments/internal/module/payment/provider"
	errs "github.com/bookwise/payments/internal/shared/errors"
)

// Config tunes the orchestrator.
type Config struct {
	DefaultProvider   string
	ProviderTimeout   time.Duration
	SuccessRateWindow time.Duration
}

// Service orchestrates payment intents across provider strategies. It owns
// the intent state machine: strategies report processor state, the service
// validates transitions, persists the mirror, and emits metrics and domain
// events exactly once per terminal transition. No lock is held across a
// provider call.
type Service struct {
	repo     Repository
	registry *Registry
	monitor  *monitoring.Monitor
	events   EventPublisher
	cfg      Config
	logger   *zap.Logger
}

func NewService(repo Repository, registry *Registry, monitor *monitoring.Monitor, events EventPublisher, cfg Config, logger *zap.Logger) *Service {
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = provider.StripeName
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 30 * time.Second
	}
	if cfg.SuccessRateWindow <= 0 {
		cfg.SuccessRateWindow = 5 * time.Minute
	}
	return &Service{
		repo:     repo,
		registry: registry,
		monitor:  monitor,
		events:   events,
		cfg:      cfg,
		logger:   logger,
	}
}

// CreatePaymentRequest is the orchestrator-level input for intent creation.
type CreatePaymentRequest struct {
	Provider        string
	Amount          int64
	Currency        string
	Country         string
	UserID          string
	CustomerID      string
	PaymentMethodID string
	Description     string
	Metadata        map[string]string
}

func (r *CreatePaymentRequest) intentData() *provider.CreateIntentData {
	return &provider.CreateIntentData{
		Amount:          r.Amount,
		Currency:        r.Currency,
		Country:         r.Country,
		CustomerID:      r.CustomerID,
		PaymentMethodID: r.PaymentMethodID,
		Description:     r.Description,
		Metadata:        r.Metadata,
	}
}

// RefundRequest is the orchestrator-level input for refunds. Amount 0
// refunds the remaining balance.
type RefundRequest struct {
	TransactionID string
	Amount        int64
	Reason        string
}

// CreatePaymentIntent validates the request, selects a strategy, creates
// the processor-side intent, and mirrors it locally.
func (s *Service) CreatePaymentIntent(ctx context.Context, req *CreatePaymentRequest) (*provider.PaymentResult, error) {
	data := req.intentData()
	if err := data.Validate(); err != nil {
		return nil, err
	}

	strategy, err := s.selectStrategy(req.Provider, req.Currency, req.Country)
	if err != nil {
		return nil, err
	}

	pctx, cancel := s.providerCtx(ctx)
	defer cancel()

	start := time.Now()
	result, err := strategy.CreatePaymentIntent(pctx, data)
	s.observeProviderCall(strategy.Name(), "create", start, err)
	if err != nil {
		return s.resultFromError(strategy.Name(), err)
	}

	rec := &IntentRecord{
		UserID:        req.UserID,
		Provider:      strategy.Name(),
		TransactionID: result.TransactionID,
		Amount:        result.Amount,
		Currency:      result.Currency,
		Country:       req.Country,
		Status:        result.Status,
	}
	if err := s.repo.CreateIntent(ctx, rec); err != nil {
		// the processor-side intent exists; webhook reconciliation will
		// repair the mirror
		s.logger.Error("failed to mirror payment intent",
			zap.String("transaction_id", result.TransactionID),
			zap.Error(err))
	}

	s.publish(newPaymentEvent(EventPaymentCreated, rec))
	s.recordTerminal(rec)

	return result, nil
}

// ConfirmPaymentIntent confirms a pending intent. Confirming an already
// succeeded intent is an idempotent no-op; a canceled intent is an
// InvalidState error. An explicit processor decline cancels the intent
// terminally, a transport failure leaves it untouched for retry.
func (s *Service) ConfirmPaymentIntent(ctx context.Context, transactionID, paymentMethodID string) (*provider.PaymentResult, error) {
	rec, err := s.repo.GetIntentByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if rec.Status.IsSucceeded() {
		return s.mirrorResult(rec), nil
	}
	if rec.Status.IsTerminal() {
		return nil, errs.InvalidState("payment intent is canceled")
	}

	strategy, err := s.registry.Get(rec.Provider)
	if err != nil {
		return nil, err
	}

	pctx, cancel := s.providerCtx(ctx)
	defer cancel()

	start := time.Now()
	result, err := strategy.ConfirmPaymentIntent(pctx, transactionID, paymentMethodID)
	s.observeProviderCall(rec.Provider, "confirm", start, err)
	if err != nil {
		if errs.IsCode(err, errs.CodeProviderRejected) {
			s.failIntent(ctx, rec, err)
		}
		return s.resultFromError(rec.Provider, err)
	}

	s.advance(ctx, rec, result)
	return result, nil
}

// ProcessPayment creates and confirms in one call for processors that
// support it.
func (s *Service) ProcessPayment(ctx context.Context, req *CreatePaymentRequest) (*provider.PaymentResult, error) {
	data := req.intentData()
	if err := data.Validate(); err != nil {
		return nil, err
	}

	strategy, err := s.selectStrategy(req.Provider, req.Currency, req.Country)
	if err != nil {
		return nil, err
	}

	pctx, cancel := s.providerCtx(ctx)
	defer cancel()

	start := time.Now()
	result, err := strategy.ProcessPayment(pctx, data)
	s.observeProviderCall(strategy.Name(), "process", start, err)
	if err != nil {
		return s.resultFromError(strategy.Name(), err)
	}

	rec := &IntentRecord{
		UserID:        req.UserID,
		Provider:      strategy.Name(),
		TransactionID: result.TransactionID,
		Amount:        result.Amount,
		Currency:      result.Currency,
		Country:       req.Country,
		Status:        result.Status,
	}
	if err := s.repo.CreateIntent(ctx, rec); err != nil {
		s.logger.Error("failed to mirror payment intent",
			zap.String("transaction_id", result.TransactionID),
			zap.Error(err))
	}

	s.publish(newPaymentEvent(EventPaymentCreated, rec))
	s.recordTerminal(rec)

	return result, nil
}

// Refund refunds a succeeded payment, fully when req.Amount is 0. Any
// other intent status fails with InvalidState before the processor is
// called.
func (s *Service) Refund(ctx context.Context, req *RefundRequest) (*provider.RefundResult, error) {
	rec, err := s.repo.GetIntentByTransactionID(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if !rec.Status.IsSucceeded() {
		return nil, errs.InvalidState(fmt.Sprintf("cannot refund payment in status %s", rec.Status))
	}

	amount := req.Amount
	if amount == 0 {
		amount = rec.Remaining()
	}
	if amount <= 0 || amount > rec.Remaining() {
		return nil, errs.InvalidAmount("refund amount exceeds refundable balance")
	}

	strategy, err := s.registry.Get(rec.Provider)
	if err != nil {
		return nil, err
	}

	pctx, cancel := s.providerCtx(ctx)
	defer cancel()

	start := time.Now()
	result, err := strategy.Refund(pctx, &provider.RefundData{
		TransactionID: rec.TransactionID,
		Amount:        amount,
		Reason:        req.Reason,
	})
	s.observeProviderCall(rec.Provider, "refund", start, err)
	if err != nil {
		return s.refundFromError(rec.Provider, err)
	}

	rec.RefundedAmount += amount
	if err := s.repo.UpdateIntent(ctx, rec); err != nil {
		s.logger.Error("failed to record refunded amount",
			zap.String("transaction_id", rec.TransactionID),
			zap.Error(err))
	}

	s.monitor.RecordCounter("refunds_total", float64(amount), map[string]string{"provider": rec.Provider})
	s.publish(newPaymentEvent(EventPaymentRefunded, rec))

	s.logger.Info("payment refunded",
		zap.String("transaction_id", rec.TransactionID),
		zap.Int64("amount", amount))

	return result, nil
}

// GetTransactionStatus queries the processor and reconciles the mirror.
func (s *Service) GetTransactionStatus(ctx context.Context, transactionID string) (*provider.PaymentResult, error) {
	rec, err := s.repo.GetIntentByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	strategy, err := s.registry.Get(rec.Provider)
	if err != nil {
		return nil, err
	}

	pctx, cancel := s.providerCtx(ctx)
	defer cancel()

	start := time.Now()
	result, err := strategy.GetTransactionStatus(pctx, transactionID)
	s.observeProviderCall(rec.Provider, "status", start, err)
	if err != nil {
		return s.resultFromError(rec.Provider, err)
	}

	s.advance(ctx, rec, result)
	return result, nil
}

// ApplyProviderEvent replays a verified webhook notification through the
// same transition path the synchronous flow uses. A delivery that matches
// the mirrored status is an idempotent no-op.
func (s *Service) ApplyProviderEvent(ctx context.Context, event *provider.WebhookEvent) error {
	rec, err := s.repo.GetIntentByTransactionID(ctx, event.TransactionID)
	if err != nil {
		if !errs.IsCode(err, errs.CodeNotFound) {
			return err
		}
		// notifications can outrun the local mirror; seed it from the event
		rec = &IntentRecord{
			Provider:      event.Provider,
			TransactionID: event.TransactionID,
			Amount:        event.Amount,
			Currency:      event.Currency,
			Status:        domain.StatusProcessing,
		}
		if err := s.repo.CreateIntent(ctx, rec); err != nil {
			return err
		}
	}

	switch event.Category {
	case provider.EventPaymentSucceeded:
		return s.applyTransition(ctx, rec, domain.StatusSucceeded)
	case provider.EventPaymentFailed:
		rec.FailureCode = event.FailureCode
		rec.FailureMessage = event.FailureMessage
		return s.applyTransition(ctx, rec, domain.StatusCanceled)
	default:
		return errs.UnknownEventType(event.RawType)
	}
}

// WebhookEventSeen reports whether a provider event id was already recorded.
func (s *Service) WebhookEventSeen(ctx context.Context, providerName, eventID string) (bool, error) {
	return s.repo.WebhookEventExists(ctx, providerName, eventID)
}

// RecordWebhookEvent stores the dedup/audit row for a delivery.
func (s *Service) RecordWebhookEvent(ctx context.Context, rec *WebhookEventRecord) error {
	return s.repo.CreateWebhookEvent(ctx, rec)
}

// FinishWebhookEvent marks a delivery processed, keeping the error if any.
func (s *Service) FinishWebhookEvent(ctx context.Context, rec *WebhookEventRecord, processErr error) {
	if err := s.repo.MarkWebhookEventProcessed(ctx, rec.ID, processErr); err != nil {
		s.logger.Error("failed to mark webhook event processed",
			zap.String("event_id", rec.EventID),
			zap.Error(err))
	}
}

// selectStrategy resolves an explicit provider name, or picks the best
// match for currency and country, falling back to the configured default
// when nothing supports the currency.
func (s *Service) selectStrategy(name, currency, country string) (provider.Strategy, error) {
	if name != "" {
		return s.registry.Get(name)
	}
	if strategy, ok := s.registry.Best(currency, country); ok {
		return strategy, nil
	}
	s.logger.Warn("no provider supports currency, using default",
		zap.String("currency", currency),
		zap.String("default", s.cfg.DefaultProvider))
	return s.registry.Get(s.cfg.DefaultProvider)
}

// advance reconciles the mirror with the status a strategy reported.
// Terminal statuses go through applyTransition; intermediate ones just
// update the mirror when the move is legal.
func (s *Service) advance(ctx context.Context, rec *IntentRecord, result *provider.PaymentResult) {
	if result.Status == rec.Status {
		return
	}
	if result.Status.IsTerminal() {
		if err := s.applyTransition(ctx, rec, result.Status); err != nil {
			s.logger.Warn("provider reported unreachable status",
				zap.String("transaction_id", rec.TransactionID),
				zap.String("status", string(result.Status)),
				zap.Error(err))
		}
		return
	}
	if !rec.Status.CanTransitionTo(result.Status) {
		s.logger.Warn("ignoring illegal status transition",
			zap.String("transaction_id", rec.TransactionID),
			zap.String("from", string(rec.Status)),
			zap.String("to", string(result.Status)))
		return
	}
	rec.Status = result.Status
	if err := s.repo.UpdateIntent(ctx, rec); err != nil {
		s.logger.Error("failed to update payment mirror",
			zap.String("transaction_id", rec.TransactionID),
			zap.Error(err))
	}
}

// applyTransition is the single gate for terminal transitions. Moving to
// the current status is an idempotent no-op; an illegal move returns
// InvalidState. Metrics and the terminal domain event fire exactly once,
// after the mirror is persisted.
func (s *Service) applyTransition(ctx context.Context, rec *IntentRecord, target domain.IntentStatus) error {
	if rec.Status == target {
		return nil
	}
	if !rec.Status.CanTransitionTo(target) {
		return errs.InvalidState(fmt.Sprintf("cannot move payment from %s to %s", rec.Status, target))
	}

	now := time.Now().UTC()
	rec.Status = target
	switch target {
	case domain.StatusSucceeded:
		rec.SucceededAt = &now
	case domain.StatusCanceled:
		rec.CanceledAt = &now
	}
	if err := s.repo.UpdateIntent(ctx, rec); err != nil {
		return err
	}

	s.recordTerminal(rec)
	return nil
}

// failIntent terminally cancels an intent after an explicit decline.
func (s *Service) failIntent(ctx context.Context, rec *IntentRecord, declineErr error) {
	var appErr *errs.AppError
	if errors.As(declineErr, &appErr) {
		rec.FailureCode = appErr.Code
		rec.FailureMessage = appErr.Message
	}
	if err := s.applyTransition(ctx, rec, domain.StatusCanceled); err != nil {
		s.logger.Error("failed to cancel declined payment",
			zap.String("transaction_id", rec.TransactionID),
			zap.Error(err))
	}
}

// recordTerminal emits the metrics and domain event for a record that
// just reached a terminal status.
func (s *Service) recordTerminal(rec *IntentRecord) {
	switch rec.Status {
	case domain.StatusSucceeded:
		s.monitor.RecordCounter("transactions_total", 1, map[string]string{
			"provider": rec.Provider, "status": string(rec.Status),
		})
		s.monitor.RecordCounter("revenue_total", float64(rec.Amount), map[string]string{
			"currency": rec.Currency,
		})
		s.publish(newPaymentEvent(EventPaymentSucceeded, rec))
	case domain.StatusCanceled:
		s.monitor.RecordCounter("transactions_total", 1, map[string]string{
			"provider": rec.Provider, "status": string(rec.Status),
		})
		s.publish(newPaymentEvent(EventPaymentFailed, rec))
	default:
		return
	}
	s.recordSuccessRate()
}

// recordSuccessRate recomputes the rolling success-rate gauge from the
// windowed transaction samples.
func (s *Service) recordSuccessRate() {
	samples := s.monitor.WindowSamples("transactions_total", s.cfg.SuccessRateWindow)
	var total, succeeded float64
	for _, m := range samples {
		total += m.Value
		if m.Labels["status"] == string(domain.StatusSucceeded) {
			succeeded += m.Value
		}
	}
	if total > 0 {
		s.monitor.RecordGauge("transaction_success_rate", succeeded/total, nil)
	}
}

// observeProviderCall records latency and the rolling provider error rate.
// Declines count as answered calls, not errors.
func (s *Service) observeProviderCall(providerName, operation string, start time.Time, err error) {
	labels := map[string]string{"provider": providerName, "operation": operation}
	s.monitor.RecordDuration("response_time", time.Since(start), labels)

	outcome := "success"
	switch {
	case err == nil:
	case errs.IsCode(err, errs.CodeProviderRejected):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	s.monitor.RecordCounter("provider_requests_total", 1, map[string]string{
		"provider": providerName, "outcome": outcome,
	})

	samples := s.monitor.WindowSamples("provider_requests_total", s.cfg.SuccessRateWindow)
	var total, failed float64
	for _, m := range samples {
		total += m.Value
		if m.Labels["outcome"] == "error" {
			failed += m.Value
		}
	}
	if total > 0 {
		s.monitor.RecordGauge("error_rate", failed/total, nil)
	}
}

func (s *Service) resultFromError(providerName string, err error) (*provider.PaymentResult, error) {
	var appErr *errs.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case errs.CodeProviderUnavailable, errs.CodeProviderRejected:
			return &provider.PaymentResult{
				Success:      false,
				ErrorCode:    appErr.Code,
				ErrorMessage: appErr.Message,
			}, nil
		}
	}
	s.logger.Error("provider call failed", zap.String("provider", providerName), zap.Error(err))
	return nil, err
}

func (s *Service) refundFromError(providerName string, err error) (*provider.RefundResult, error) {
	var appErr *errs.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case errs.CodeProviderUnavailable, errs.CodeProviderRejected:
			return &provider.RefundResult{
				Success:      false,
				ErrorCode:    appErr.Code,
				ErrorMessage: appErr.Message,
			}, nil
		}
	}
	s.logger.Error("refund call failed", zap.String("provider", providerName), zap.Error(err))
	return nil, err
}

func (s *Service) mirrorResult(rec *IntentRecord) *provider.PaymentResult {
	return &provider.PaymentResult{
		Success:       true,
		TransactionID: rec.TransactionID,
		Status:        rec.Status,
		Amount:        rec.Amount,
		Currency:      rec.Currency,
	}
}

func (s *Service) providerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.ProviderTimeout)
}

func (s *Service) publish(event PaymentEvent) {
	if s.events == nil {
		return
	}
	s.events.Publish(event)
}
