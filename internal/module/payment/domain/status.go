// Package domain holds the payment intent state machine.
package domain

// IntentStatus is the lifecycle state of a payment intent. The vocabulary
// and legal transitions mirror the processor-side intent model so webhook
// replays and synchronous responses drive the same machine.
type IntentStatus string

const (
	StatusRequiresPaymentMethod IntentStatus = "requires_payment_method"
	StatusRequiresConfirmation  IntentStatus = "requires_confirmation"
	StatusRequiresAction        IntentStatus = "requires_action"
	StatusProcessing            IntentStatus = "processing"
	StatusSucceeded             IntentStatus = "succeeded"
	StatusCanceled              IntentStatus = "canceled"
)

// IsValid reports whether s is a known status.
func (s IntentStatus) IsValid() bool {
	switch s {
	case StatusRequiresPaymentMethod, StatusRequiresConfirmation,
		StatusRequiresAction, StatusProcessing, StatusSucceeded, StatusCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether s admits no further transitions.
func (s IntentStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusCanceled
}

// IsSucceeded reports whether the intent captured funds.
func (s IntentStatus) IsSucceeded() bool {
	return s == StatusSucceeded
}

// CanTransitionTo reports whether moving from s to target is legal.
// Terminal states admit nothing; a transition to the current state is not
// a transition (callers treat it as an idempotent no-op).
func (s IntentStatus) CanTransitionTo(target IntentStatus) bool {
	if s.IsTerminal() || s == target {
		return false
	}
	switch s {
	case StatusRequiresPaymentMethod:
		return target == StatusRequiresConfirmation ||
			target == StatusRequiresAction ||
			target == StatusProcessing ||
			target == StatusSucceeded ||
			target == StatusCanceled
	case StatusRequiresConfirmation:
		return target == StatusRequiresAction ||
			target == StatusProcessing ||
			target == StatusSucceeded ||
			target == StatusCanceled
	case StatusRequiresAction:
		return target == StatusRequiresConfirmation ||
			target == StatusProcessing ||
			target == StatusSucceeded ||
			target == StatusCanceled
	case StatusProcessing:
		return target == StatusSucceeded || target == StatusCanceled
	}
	return false
}
