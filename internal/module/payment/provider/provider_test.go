package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	errs "github.com/bookwise/payments/internal/shared/errors"
)

func TestCreateIntentData_Validate(t *testing.T) {
	tests := []struct {
		name    string
		data    CreateIntentData
		wantErr error
	}{
		{"valid", CreateIntentData{Amount: 2500, Currency: "USD"}, nil},
		{"zero amount", CreateIntentData{Amount: 0, Currency: "USD"}, errs.ErrInvalidAmount},
		{"negative amount", CreateIntentData{Amount: -100, Currency: "USD"}, errs.ErrInvalidAmount},
		{"short currency", CreateIntentData{Amount: 100, Currency: "US"}, errs.ErrInvalidCurrency},
		{"long currency", CreateIntentData{Amount: 100, Currency: "USDT"}, errs.ErrInvalidCurrency},
		{"empty currency", CreateIntentData{Amount: 100, Currency: ""}, errs.ErrInvalidCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr))
		})
	}
}

func TestCapabilities_Supports(t *testing.T) {
	caps := Capabilities{
		Currencies: []string{"USD", "EUR"},
		Countries:  []string{"US", "DE"},
	}

	assert.True(t, caps.SupportsCurrency("USD"))
	assert.True(t, caps.SupportsCurrency("usd"))
	assert.False(t, caps.SupportsCurrency("CNY"))
	assert.True(t, caps.SupportsCountry("de"))
	assert.False(t, caps.SupportsCountry("CN"))
}
