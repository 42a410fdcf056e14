// Package errors defines the application error taxonomy shared by the
// payment orchestration layers. Every error crossing a package boundary
// carries a stable code and an HTTP status.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes exposed to API clients.
const (
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeInvalidCurrency     = "INVALID_CURRENCY"
	CodeInvalidState        = "INVALID_STATE"
	CodeUnknownProvider     = "UNKNOWN_PROVIDER"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeProviderRejected    = "PROVIDER_REJECTED"
	CodeInvalidSignature    = "INVALID_SIGNATURE"
	CodeUnknownEventType    = "UNKNOWN_EVENT_TYPE"
	CodeNotFound            = "NOT_FOUND"
	CodeValidation          = "VALIDATION_ERROR"
	CodeInternal            = "INTERNAL_ERROR"
)

// Sentinel errors for errors.Is checks.
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidCurrency     = errors.New("invalid currency")
	ErrInvalidState        = errors.New("invalid state")
	ErrUnknownProvider     = errors.New("unknown provider")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderRejected    = errors.New("provider rejected")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrUnknownEventType    = errors.New("unknown event type")
	ErrNotFound            = errors.New("not found")
)

// AppError is a structured application error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(code, message string, status int, sentinel error) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: status, Err: sentinel}
}

// InvalidAmount reports an amount that is zero or negative.
func InvalidAmount(message string) *AppError {
	return newAppError(CodeInvalidAmount, message, http.StatusBadRequest, ErrInvalidAmount)
}

// InvalidCurrency reports a currency code that is not a 3-letter ISO code
// or is unsupported by the selected provider.
func InvalidCurrency(message string) *AppError {
	return newAppError(CodeInvalidCurrency, message, http.StatusBadRequest, ErrInvalidCurrency)
}

// InvalidState reports an operation that is not legal from the payment's
// current status.
func InvalidState(message string) *AppError {
	return newAppError(CodeInvalidState, message, http.StatusConflict, ErrInvalidState)
}

// UnknownProvider reports a provider name with no registered strategy.
func UnknownProvider(name string) *AppError {
	return newAppError(CodeUnknownProvider, fmt.Sprintf("unknown payment provider: %s", name), http.StatusNotFound, ErrUnknownProvider)
}

// ProviderUnavailable reports a transport failure, timeout, or open
// circuit toward the payment processor.
func ProviderUnavailable(provider string, err error) *AppError {
	return &AppError{
		Code:       CodeProviderUnavailable,
		Message:    fmt.Sprintf("payment provider %s is unavailable", provider),
		StatusCode: http.StatusServiceUnavailable,
		Err:        errors.Join(ErrProviderUnavailable, err),
	}
}

// ProviderRejected reports an explicit decline from the processor.
func ProviderRejected(provider, reason string) *AppError {
	return &AppError{
		Code:       CodeProviderRejected,
		Message:    fmt.Sprintf("payment rejected by %s: %s", provider, reason),
		StatusCode: http.StatusPaymentRequired,
		Err:        ErrProviderRejected,
	}
}

// InvalidSignature reports a webhook payload whose signature does not verify.
func InvalidSignature(provider string, err error) *AppError {
	return &AppError{
		Code:       CodeInvalidSignature,
		Message:    fmt.Sprintf("invalid %s webhook signature", provider),
		StatusCode: http.StatusUnauthorized,
		Err:        errors.Join(ErrInvalidSignature, err),
	}
}

// UnknownEventType reports a webhook event type outside the handled set.
func UnknownEventType(eventType string) *AppError {
	return newAppError(CodeUnknownEventType, fmt.Sprintf("unhandled webhook event type: %s", eventType), http.StatusOK, ErrUnknownEventType)
}

// NotFound reports a missing resource.
func NotFound(message string) *AppError {
	return newAppError(CodeNotFound, message, http.StatusNotFound, ErrNotFound)
}

// ValidationError reports a malformed request.
func ValidationError(message string) *AppError {
	return newAppError(CodeValidation, message, http.StatusBadRequest, nil)
}

// Internal wraps an unexpected error.
func Internal(message string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, StatusCode: http.StatusInternalServerError, Err: err}
}

// CodeOf returns the application error code, or CodeInternal for plain errors.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given application error code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// GetStatusCode maps an error to an HTTP status code.
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
