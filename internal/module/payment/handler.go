package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	errs "github.com/bookwise/payments/internal/shared/errors"
)

// Handler exposes the synchronous payment API. Declines and outages come
// back as 200 with Success=false so clients can render the reason;
// validation and state errors map to their taxonomy status codes.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the payment endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/payments")
	{
		payments.POST("/intents", h.CreateIntent)
		payments.POST("/intents/:transaction_id/confirm", h.ConfirmIntent)
		payments.POST("/process", h.Process)
		payments.POST("/intents/:transaction_id/refund", h.Refund)
		payments.GET("/intents/:transaction_id", h.Status)
	}
}

// CreateIntent handles POST /payments/intents.
func (h *Handler) CreateIntent(c *gin.Context) {
	var req CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errs.ValidationError(err.Error()))
		return
	}

	result, err := h.service.CreatePaymentIntent(c.Request.Context(), h.toServiceRequest(c, &req))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ConfirmIntent handles POST /payments/intents/:transaction_id/confirm.
func (h *Handler) ConfirmIntent(c *gin.Context) {
	// body is optional
	var req ConfirmIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = ConfirmIntentRequest{}
	}

	result, err := h.service.ConfirmPaymentIntent(c.Request.Context(), c.Param("transaction_id"), req.PaymentMethodID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Process handles POST /payments/process: create and confirm in one call.
func (h *Handler) Process(c *gin.Context) {
	var req CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errs.ValidationError(err.Error()))
		return
	}

	result, err := h.service.ProcessPayment(c.Request.Context(), h.toServiceRequest(c, &req))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Refund handles POST /payments/intents/:transaction_id/refund.
func (h *Handler) Refund(c *gin.Context) {
	var req RefundIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = RefundIntentRequest{}
	}

	result, err := h.service.Refund(c.Request.Context(), &RefundRequest{
		TransactionID: c.Param("transaction_id"),
		Amount:        req.Amount,
		Reason:        req.Reason,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Status handles GET /payments/intents/:transaction_id.
func (h *Handler) Status(c *gin.Context) {
	result, err := h.service.GetTransactionStatus(c.Request.Context(), c.Param("transaction_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) toServiceRequest(c *gin.Context, req *CreateIntentRequest) *CreatePaymentRequest {
	return &CreatePaymentRequest{
		Provider:        req.Provider,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Country:         req.Country,
		UserID:          c.GetHeader("X-User-ID"),
		CustomerID:      req.CustomerID,
		PaymentMethodID: req.PaymentMethodID,
		Description:     req.Description,
		Metadata:        req.Metadata,
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var appErr *errs.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.StatusCode, gin.H{"error": appErr})
		return
	}
	h.logger.Error("unhandled payment API error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{
		"code":    errs.CodeInternal,
		"message": "internal error",
	}})
}
