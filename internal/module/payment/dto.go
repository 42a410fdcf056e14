package payment

// CreateIntentRequest is the JSON body for intent creation and one-shot
// processing. Provider is optional; when empty the selector picks one.
type CreateIntentRequest struct {
	Provider        string            `json:"provider"`
	Amount          int64             `json:"amount" binding:"required"`
	Currency        string            `json:"currency" binding:"required"`
	Country         string            `json:"country"`
	CustomerID      string            `json:"customer_id"`
	PaymentMethodID string            `json:"payment_method_id"`
	Description     string            `json:"description"`
	Metadata        map[string]string `json:"metadata"`
}

// ConfirmIntentRequest is the JSON body for confirmation.
type ConfirmIntentRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

// RefundIntentRequest is the JSON body for refunds. Amount 0 refunds the
// remaining balance.
type RefundIntentRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}
