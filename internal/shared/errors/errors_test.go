package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsCarryCodeAndStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"invalid amount", InvalidAmount("amount must be positive"), CodeInvalidAmount, http.StatusBadRequest, ErrInvalidAmount},
		{"invalid currency", InvalidCurrency("bad currency"), CodeInvalidCurrency, http.StatusBadRequest, ErrInvalidCurrency},
		{"invalid state", InvalidState("already canceled"), CodeInvalidState, http.StatusConflict, ErrInvalidState},
		{"unknown provider", UnknownProvider("square"), CodeUnknownProvider, http.StatusNotFound, ErrUnknownProvider},
		{"provider unavailable", ProviderUnavailable("stripe", stderrors.New("timeout")), CodeProviderUnavailable, http.StatusServiceUnavailable, ErrProviderUnavailable},
		{"provider rejected", ProviderRejected("stripe", "card declined"), CodeProviderRejected, http.StatusPaymentRequired, ErrProviderRejected},
		{"invalid signature", InvalidSignature("stripe", nil), CodeInvalidSignature, http.StatusUnauthorized, ErrInvalidSignature},
		{"unknown event type", UnknownEventType("customer.created"), CodeUnknownEventType, http.StatusOK, ErrUnknownEventType},
		{"not found", NotFound("no such intent"), CodeNotFound, http.StatusNotFound, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.True(t, stderrors.Is(tt.err, tt.sentinel))
		})
	}
}

func TestProviderUnavailableKeepsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := ProviderUnavailable("stripe", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, ErrProviderUnavailable))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeInvalidAmount, CodeOf(InvalidAmount("x")))
	assert.Equal(t, CodeInternal, CodeOf(stderrors.New("plain")))
	assert.True(t, IsCode(ProviderRejected("stripe", "declined"), CodeProviderRejected))
	assert.False(t, IsCode(nil, CodeProviderRejected))
}

func TestGetStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusConflict, GetStatusCode(InvalidState("x")))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(stderrors.New("plain")))
}
