package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bookwise/payments/internal/module/payment/domain"
)

func TestMapWechatTradeState(t *testing.T) {
	tests := []struct {
		tradeState string
		want       domain.IntentStatus
	}{
		{"NOTPAY", domain.StatusRequiresAction},
		{"USERPAYING", domain.StatusProcessing},
		{"SUCCESS", domain.StatusSucceeded},
		{"CLOSED", domain.StatusCanceled},
		{"PAYERROR", domain.StatusCanceled},
		{"REVOKED", domain.StatusCanceled},
		{"UNKNOWN", domain.StatusProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.tradeState, func(t *testing.T) {
			assert.Equal(t, tt.want, mapWechatTradeState(tt.tradeState))
		})
	}
}

func TestParseRSAPublicKey(t *testing.T) {
	t.Run("rejects garbage", func(t *testing.T) {
		_, err := parseRSAPublicKey("not a pem block")
		assert.Error(t, err)
	})

	t.Run("rejects non-key pem", func(t *testing.T) {
		_, err := parseRSAPublicKey("-----BEGIN PUBLIC KEY-----\nZm9v\n-----END PUBLIC KEY-----")
		assert.Error(t, err)
	})
}
