package subscription

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus represents the current state of a subscription.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusPastDue   SubscriptionStatus = "past_due"
)

// BillingPeriod is the length of a paid subscription period.
const BillingPeriod = 30 * 24 * time.Hour

// Limits is the note-creation decision for a user at a point in time.
// It is recomputed on every evaluation and never updated in place.
type Limits struct {
	CanCreateNote  bool   `json:"can_create_note"`
	NotesRemaining *int64 `json:"notes_remaining,omitempty"` // nil when the plan is unlimited
	IsProMember    bool   `json:"is_pro_member"`
}

// Clone returns a deep copy of the limits.
func (l Limits) Clone() Limits {
	if l.NotesRemaining != nil {
		n := *l.NotesRemaining
		l.NotesRemaining = &n
	}
	return l
}

// Payment is a recorded charge that produced or renewed a subscription.
type Payment struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	PlanID        string
	TransactionID string
	AmountUSD     decimal.Decimal
	CreatedAt     time.Time
}

// ChargeRequest contains data needed to charge the user for a plan.
type ChargeRequest struct {
	UserID    uuid.UUID
	PlanID    string
	PriceID   string // provider's price identifier, may be empty
	AmountUSD decimal.Decimal
}

// ConfirmRequest identifies a checkout to settle after the customer paid.
type ConfirmRequest struct {
	UserID        uuid.UUID
	PlanID        string
	TransactionID string
}

// PaymentResult is what the payment collaborator reports back.
// Success means the money was collected. Pending means the customer still
// has to pay at CheckoutURL; such a result never advances a subscription.
// Error carries the provider's human-readable reason when the payment failed.
type PaymentResult struct {
	Success       bool   `json:"success"`
	Pending       bool   `json:"pending,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	CheckoutURL   string `json:"checkout_url,omitempty"`
	Error         string `json:"error,omitempty"`
}
