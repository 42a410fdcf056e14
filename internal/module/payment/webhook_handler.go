package payment

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bookwise/payments/internal/module/monitoring"
	"github.com/bookwise/payments/internal/module/payment/provider"
	errs "github.com/bookwise/payments/internal/shared/errors"
	"github.com/bookwise/payments/internal/utils/keyedmutex"
)

// signatureHeaders are forwarded to strategies for verification.
var signatureHeaders = []string{
	"Stripe-Signature",
	"Wechatpay-Timestamp",
	"Wechatpay-Nonce",
	"Wechatpay-Signature",
	"Wechatpay-Serial",
}

// WebhookHandler receives provider notifications and replays them through
// the orchestrator. Signature verification happens before anything else;
// a payload that does not verify leaves no trace in metrics or storage.
// Deliveries for the same transaction are serialized, different
// transactions reconcile in parallel.
type WebhookHandler struct {
	service  *Service
	registry *Registry
	monitor  *monitoring.Monitor
	locks    *keyedmutex.KeyedMutex
	logger   *zap.Logger
}

func NewWebhookHandler(service *Service, registry *Registry, monitor *monitoring.Monitor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		service:  service,
		registry: registry,
		monitor:  monitor,
		locks:    keyedmutex.New(),
		logger:   logger,
	}
}

// RegisterRoutes mounts the webhook endpoints.
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/:provider", h.Handle)
}

// Handle processes POST /webhooks/:provider.
func (h *WebhookHandler) Handle(c *gin.Context) {
	providerName := c.Param("provider")
	strategy, err := h.registry.Get(providerName)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errs.CodeUnknownProvider})
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	headers := make(map[string]string, len(signatureHeaders))
	for _, name := range signatureHeaders {
		if v := c.GetHeader(name); v != "" {
			headers[name] = v
		}
	}

	if err := strategy.VerifyWebhookSignature(payload, c.GetHeader("Stripe-Signature")); err != nil {
		h.logger.Warn("webhook signature rejected",
			zap.String("provider", providerName),
			zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": errs.CodeInvalidSignature})
		return
	}

	event, err := strategy.ParseWebhookEvent(c.Request.Context(), payload, headers)
	if err != nil {
		if errs.IsCode(err, errs.CodeInvalidSignature) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errs.CodeInvalidSignature})
			return
		}
		h.logger.Error("webhook parse failed",
			zap.String("provider", providerName),
			zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed webhook payload"})
		return
	}

	if event.Category == provider.EventUnknown {
		h.logger.Info("ignoring unhandled webhook event",
			zap.String("provider", providerName),
			zap.String("event_type", event.RawType))
		h.respondOK(c, providerName, "ignored")
		return
	}

	unlock := h.locks.Lock(event.TransactionID)
	defer unlock()

	ctx := c.Request.Context()

	seen, err := h.service.WebhookEventSeen(ctx, providerName, event.ID)
	if err != nil {
		h.logger.Error("webhook dedup lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": errs.CodeInternal})
		return
	}
	if seen {
		h.respondOK(c, providerName, "already_processed")
		return
	}

	rec := &WebhookEventRecord{
		Provider:      providerName,
		EventID:       event.ID,
		EventType:     event.RawType,
		TransactionID: event.TransactionID,
	}
	if err := h.service.RecordWebhookEvent(ctx, rec); err != nil {
		h.logger.Error("failed to record webhook event",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}

	var processErr error
	switch event.Category {
	case provider.EventPaymentSucceeded, provider.EventPaymentFailed:
		processErr = h.service.ApplyProviderEvent(ctx, event)
	case provider.EventDisputeOpened:
		h.handleDispute(event)
	}

	h.service.FinishWebhookEvent(ctx, rec, processErr)

	if processErr != nil {
		h.logger.Error("webhook processing failed",
			zap.String("provider", providerName),
			zap.String("event_id", event.ID),
			zap.Error(processErr))
		c.JSON(http.StatusInternalServerError, gin.H{"error": errs.CodeInternal})
		return
	}

	h.respondOK(c, providerName, "processed")
}

// handleDispute raises a high alert. Disputes never touch the intent
// state machine; the funds question is settled out of band.
func (h *WebhookHandler) handleDispute(event *provider.WebhookEvent) {
	h.monitor.RecordCounter("disputes_total", 1, map[string]string{"provider": event.Provider})
	h.monitor.CreateAlert(monitoring.Alert{
		Severity: monitoring.SeverityHigh,
		Metric:   "disputes_total",
		Message:  "payment dispute opened for transaction " + event.TransactionID,
		Value:    float64(event.Amount),
	})
}

// respondOK answers in the provider's expected acknowledgement format.
func (h *WebhookHandler) respondOK(c *gin.Context, providerName, status string) {
	switch providerName {
	case provider.AlipayName:
		c.String(http.StatusOK, "success")
	case provider.WechatName:
		c.JSON(http.StatusOK, gin.H{"code": "SUCCESS", "message": "OK"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}
