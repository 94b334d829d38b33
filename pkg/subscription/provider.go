package subscription

import (
	"context"

	"github.com/google/uuid"
)

// PaymentProvider is the minimal payment collaborator the upgrade flow needs.
// The core treats it as opaque: it only reads Success, Pending,
// TransactionID and Error.
type PaymentProvider interface {
	// Initialize reports whether the payment method is available.
	Initialize(ctx context.Context) (bool, error)

	// Charge collects req.AmountUSD for the plan. A declined charge is reported
	// through PaymentResult.Success, not through the error return, which is
	// reserved for invalid requests. Hosted checkouts report Pending until
	// the customer pays.
	Charge(ctx context.Context, req ChargeRequest) (*PaymentResult, error)
}

// CheckoutConfirmer is implemented by providers whose charges can stay
// pending. Confirm reports the current outcome of a transaction started by
// Charge for the same user and plan.
type CheckoutConfirmer interface {
	Confirm(ctx context.Context, req ConfirmRequest) (*PaymentResult, error)
}

// Notifier is told when a user's subscription changed so cached limits
// elsewhere can be refreshed.
type Notifier interface {
	Publish(ctx context.Context, userID uuid.UUID) error
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, uuid.UUID) error { return nil }
