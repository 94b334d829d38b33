package subscription_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notekit/pkg/subscription"
)

func cappedPlan(limit int64) *subscription.Plan {
	return &subscription.Plan{
		ID:       "free",
		Name:     "Free",
		MaxNotes: subscription.Capped(limit),
		PriceUSD: decimal.Zero,
	}
}

func unlimitedPlan() *subscription.Plan {
	return &subscription.Plan{
		ID:       "pro",
		Name:     "Pro",
		PriceUSD: decimal.RequireFromString("9.99"),
	}
}

func subscribed(plan *subscription.Plan) *subscription.Subscription {
	sub := &subscription.Subscription{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Status: subscription.StatusActive,
		Plan:   plan,
	}
	if plan != nil {
		sub.PlanID = plan.ID
	}
	return sub
}

func TestEvaluate_NoSubscription(t *testing.T) {
	t.Parallel()

	for _, n := range []int64{0, 1, 3, 100, 1_000_000} {
		limits := subscription.Evaluate(nil, n)
		assert.False(t, limits.CanCreateNote, "count %d", n)
		assert.False(t, limits.IsProMember, "count %d", n)
		assert.Nil(t, limits.NotesRemaining, "count %d", n)
	}
}

func TestEvaluate_UnresolvedPlan(t *testing.T) {
	t.Parallel()

	sub := subscribed(nil)
	sub.PlanID = "deleted-plan"

	limits := subscription.Evaluate(sub, 0)
	assert.Equal(t, subscription.Limits{}, limits)
}

func TestEvaluate_UnlimitedPlan(t *testing.T) {
	t.Parallel()

	sub := subscribed(unlimitedPlan())
	for _, n := range []int64{0, 1, 5, 10_000, 1 << 40} {
		limits := subscription.Evaluate(sub, n)
		assert.True(t, limits.CanCreateNote, "count %d", n)
		assert.True(t, limits.IsProMember, "count %d", n)
		assert.Nil(t, limits.NotesRemaining, "count %d", n)
	}
}

func TestEvaluate_CappedPlanBoundary(t *testing.T) {
	t.Parallel()

	sub := subscribed(cappedPlan(5))

	tests := []struct {
		name      string
		count     int64
		remaining int64
		canCreate bool
	}{
		{name: "empty", count: 0, remaining: 5, canCreate: true},
		{name: "one slot left", count: 4, remaining: 1, canCreate: true},
		{name: "exactly at cap", count: 5, remaining: 0, canCreate: false},
		{name: "over cap", count: 6, remaining: -1, canCreate: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			limits := subscription.Evaluate(sub, tt.count)
			require.NotNil(t, limits.NotesRemaining)
			assert.Equal(t, tt.remaining, *limits.NotesRemaining)
			assert.Equal(t, tt.canCreate, limits.CanCreateNote)
			assert.False(t, limits.IsProMember)
		})
	}
}

func TestEvaluate_Monotonic(t *testing.T) {
	t.Parallel()

	for _, limit := range []int64{1, 3, 5, 50} {
		sub := subscribed(cappedPlan(limit))
		prev := true
		for n := int64(0); n <= limit+5; n++ {
			got := subscription.Evaluate(sub, n).CanCreateNote
			if !prev {
				assert.False(t, got, "cap %d: allowed again at count %d", limit, n)
			}
			prev = got
		}
	}
}

func TestEvaluate_IgnoresStatus(t *testing.T) {
	t.Parallel()

	sub := subscribed(cappedPlan(3))
	sub.Status = subscription.StatusPastDue

	limits := subscription.Evaluate(sub, 1)
	assert.True(t, limits.CanCreateNote)
}

func TestEvaluate_FreshValues(t *testing.T) {
	t.Parallel()

	sub := subscribed(cappedPlan(5))
	a := subscription.Evaluate(sub, 1)
	b := subscription.Evaluate(sub, 1)

	require.NotNil(t, a.NotesRemaining)
	*a.NotesRemaining = 100
	assert.Equal(t, int64(4), *b.NotesRemaining)

	c := b.Clone()
	*c.NotesRemaining = 0
	assert.Equal(t, int64(4), *b.NotesRemaining)
}
