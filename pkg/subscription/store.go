package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence operations the limits core depends on.
// Implementations wrap transport and query failures with ErrStorage.
type Repository interface {
	// GetUserSubscription returns the user's current subscription with its plan joined.
	// Returns (nil, nil) when the user has no subscription row.
	// When several rows qualify, the one with the latest period start wins.
	GetUserSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// GetUserNoteCount returns the number of notes the user currently owns.
	GetUserNoteCount(ctx context.Context, userID uuid.UUID) (int64, error)

	// CreateOrRenewSubscription records the payment and upserts the user's single
	// active subscription with a BillingPeriod window starting now.
	// Repeating a call with the same transaction ID changes nothing.
	// Returns ErrPlanNotFound if planID is unknown.
	CreateOrRenewSubscription(ctx context.Context, userID uuid.UUID, planID, transactionID string) error

	// ListPlans returns all plans ordered by price.
	ListPlans(ctx context.Context) ([]Plan, error)

	// GetPlan returns a plan by ID or ErrPlanNotFound.
	GetPlan(ctx context.Context, planID string) (*Plan, error)
}

// PlanWriter stores plan definitions, used to sync the catalog at startup.
type PlanWriter interface {
	UpsertPlans(ctx context.Context, plans []Plan) error
}

// Enroller gives users without any subscription row a starting plan.
type Enroller interface {
	// EnsureSubscription creates an active subscription on planID for the user
	// unless one already exists. Existing rows are never modified.
	EnsureSubscription(ctx context.Context, userID uuid.UUID, planID string) error
}
