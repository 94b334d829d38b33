package subscription

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Plan describes a subscription tier and its note cap.
// ProviderPriceID should be set to the payment provider's price ID for paid plans
// to enable direct mapping during checkout.
type Plan struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	ProviderPriceID string          `json:"-"`
	MaxNotes        *int64          `json:"max_notes,omitempty"` // nil means unlimited
	PriceUSD        decimal.Decimal `json:"price_usd"`
}

// Unlimited reports whether the plan has no note cap.
func (p Plan) Unlimited() bool {
	return p.MaxNotes == nil
}

// Free reports whether the plan costs nothing.
func (p Plan) Free() bool {
	return p.PriceUSD.IsZero()
}

// Validate checks the plan invariants: a cap, when present, is positive
// and the price is not negative.
func (p Plan) Validate() error {
	if p.ID == "" {
		return errors.Join(ErrInvalidPlanConfiguration, errors.New("plan ID is empty"))
	}
	if p.MaxNotes != nil && *p.MaxNotes <= 0 {
		return errors.Join(ErrInvalidPlanConfiguration,
			fmt.Errorf("plan %s has non-positive note cap: %d", p.ID, *p.MaxNotes))
	}
	if p.PriceUSD.IsNegative() {
		return errors.Join(ErrInvalidPlanConfiguration,
			fmt.Errorf("plan %s has negative price: %s", p.ID, p.PriceUSD))
	}
	return nil
}

// Capped returns a pointer to n, for building capped plans in code.
func Capped(n int64) *int64 {
	return &n
}

// validatePlans ensures plan configurations are internally consistent.
// Catches configuration errors early to prevent runtime issues.
func validatePlans(plans []Plan) error {
	seen := make(map[string]struct{}, len(plans))
	for _, plan := range plans {
		if err := plan.Validate(); err != nil {
			return err
		}
		if _, dup := seen[plan.ID]; dup {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("duplicate plan ID: %s", plan.ID))
		}
		seen[plan.ID] = struct{}{}
	}
	return nil
}
