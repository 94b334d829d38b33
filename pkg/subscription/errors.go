package subscription

import (
	"errors"
	"fmt"
)

var (
	ErrPlanNotFound             = errors.New("subscription plan not found")
	ErrPlanNotPurchasable       = errors.New("subscription plan cannot be purchased")
	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load subscription plans")

	ErrStorage          = errors.New("subscription storage failure")
	ErrNotAuthenticated = errors.New("no signed-in user")
	ErrMissingTxID      = errors.New("transaction ID is required")

	ErrPayment             = errors.New("payment failed")
	ErrPaymentUnavailable  = errors.New("payment method not available")
	ErrPaymentPending      = errors.New("payment not completed yet")
	ErrTransactionMismatch = errors.New("transaction does not belong to this upgrade")

	// Provider-specific errors
	ErrMissingAPIKey              = errors.New("billing provider API key is required")
	ErrInvalidProviderEnvironment = errors.New("invalid billing provider environment")
	ErrMissingPriceID             = errors.New("price ID is required")
)

// PaymentError is returned when the payment collaborator declines a charge
// or is unavailable. Reason is the provider's message, shown to the user as-is.
type PaymentError struct {
	Reason string
	Err    error
}

func (e *PaymentError) Error() string {
	if e.Reason == "" {
		return ErrPayment.Error()
	}
	return fmt.Sprintf("%s: %s", ErrPayment, e.Reason)
}

func (e *PaymentError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPayment}
	}
	return []error{ErrPayment, e.Err}
}

// StorageError wraps a backend failure so callers can match ErrStorage.
func StorageError(op string, err error) error {
	return errors.Join(ErrStorage, fmt.Errorf("%s: %w", op, err))
}
