package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Subscription represents a user's enrollment in a plan.
// Plan is joined at read time and may be absent when the referenced
// plan no longer resolves; use ResolvedPlan instead of reading it directly.
type Subscription struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	PlanID             string
	Status             SubscriptionStatus
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Plan               *Plan
}

// ResolvedPlan returns the joined plan and true, or false when the
// subscription points at a plan that could not be resolved.
func (s *Subscription) ResolvedPlan() (Plan, bool) {
	if s == nil || s.Plan == nil {
		return Plan{}, false
	}
	return *s.Plan, true
}

func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// PeriodEndedAt reports whether the billing period is over at the given time.
// Subscriptions without a period never end.
func (s *Subscription) PeriodEndedAt(now time.Time) bool {
	if s.CurrentPeriodEnd == nil {
		return false
	}
	return !now.Before(*s.CurrentPeriodEnd)
}

// DaysRemainingAt returns the number of whole days left in the current
// period at a given time. Returns 0 without a period or after it ended.
func (s *Subscription) DaysRemainingAt(now time.Time) int {
	if s.CurrentPeriodEnd == nil {
		return 0
	}

	remaining := s.CurrentPeriodEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}

	// Round half up so "29.6 days" reads as 30
	days := remaining.Hours() / 24
	return int(days + 0.5)
}
