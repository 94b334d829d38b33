package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notekit/pkg/subscription"
)

// NoteCounter reports how many notes a user owns.
type NoteCounter interface {
	CountNotes(ctx context.Context, userID uuid.UUID) (int64, error)
}

// NoteCounterFunc adapts a function to NoteCounter.
type NoteCounterFunc func(ctx context.Context, userID uuid.UUID) (int64, error)

func (f NoteCounterFunc) CountNotes(ctx context.Context, userID uuid.UUID) (int64, error) {
	return f(ctx, userID)
}

// MemoryRepository is an in-process subscription.Repository.
// It keeps one subscription per user and delegates note counting to a NoteCounter
// so counts always reflect the notes store.
type MemoryRepository struct {
	mu       sync.RWMutex
	plans    map[string]subscription.Plan
	subs     map[uuid.UUID]subscription.Subscription
	payments map[string]subscription.Payment
	counter  NoteCounter
	now      func() time.Time
}

// MemoryOption configures a MemoryRepository.
type MemoryOption func(*MemoryRepository)

// WithMemoryClock overrides the clock used for billing periods and timestamps.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(r *MemoryRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewMemoryRepository returns a repository seeded with the given plans.
// Panics if counter is nil.
func NewMemoryRepository(counter NoteCounter, plans []subscription.Plan, opts ...MemoryOption) *MemoryRepository {
	if counter == nil {
		panic("subscription: NoteCounter is required")
	}

	r := &MemoryRepository{
		plans:    make(map[string]subscription.Plan, len(plans)),
		subs:     make(map[uuid.UUID]subscription.Subscription),
		payments: make(map[string]subscription.Payment),
		counter:  counter,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, p := range plans {
		r.plans[p.ID] = clonePlan(p)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *MemoryRepository) GetUserSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, subscription.StorageError("get user subscription", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.subs[userID]
	if !ok {
		return nil, nil
	}
	if plan, ok := r.plans[sub.PlanID]; ok {
		p := clonePlan(plan)
		sub.Plan = &p
	}
	return &sub, nil
}

func (r *MemoryRepository) GetUserNoteCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, subscription.StorageError("count notes", err)
	}
	n, err := r.counter.CountNotes(ctx, userID)
	if err != nil {
		return 0, subscription.StorageError("count notes", err)
	}
	return n, nil
}

func (r *MemoryRepository) CreateOrRenewSubscription(ctx context.Context, userID uuid.UUID, planID, transactionID string) error {
	if transactionID == "" {
		return subscription.ErrMissingTxID
	}
	if err := ctx.Err(); err != nil {
		return subscription.StorageError("create subscription", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, seen := r.payments[transactionID]; seen {
		return nil
	}

	plan, ok := r.plans[planID]
	if !ok {
		return subscription.ErrPlanNotFound
	}

	now := r.now()
	r.payments[transactionID] = subscription.Payment{
		ID:            uuid.New(),
		UserID:        userID,
		PlanID:        planID,
		TransactionID: transactionID,
		AmountUSD:     plan.PriceUSD,
		CreatedAt:     now,
	}

	start, end := now, now.Add(subscription.BillingPeriod)
	sub, exists := r.subs[userID]
	if !exists {
		sub = subscription.Subscription{
			ID:        uuid.New(),
			UserID:    userID,
			CreatedAt: now,
		}
	}
	sub.PlanID = planID
	sub.Status = subscription.StatusActive
	sub.CurrentPeriodStart = &start
	sub.CurrentPeriodEnd = &end
	sub.UpdatedAt = now
	sub.Plan = nil
	r.subs[userID] = sub

	return nil
}

func (r *MemoryRepository) ListPlans(ctx context.Context) ([]subscription.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plans := make([]subscription.Plan, 0, len(r.plans))
	for _, p := range r.plans {
		plans = append(plans, clonePlan(p))
	}
	subscription.SortPlans(plans)
	return plans, nil
}

func (r *MemoryRepository) GetPlan(ctx context.Context, planID string) (*subscription.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plan, ok := r.plans[planID]
	if !ok {
		return nil, subscription.ErrPlanNotFound
	}
	p := clonePlan(plan)
	return &p, nil
}

// UpsertPlans replaces plan definitions by ID.
func (r *MemoryRepository) UpsertPlans(ctx context.Context, plans []subscription.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range plans {
		r.plans[p.ID] = clonePlan(p)
	}
	return nil
}

// EnsureSubscription puts the user on planID unless they already have a subscription.
func (r *MemoryRepository) EnsureSubscription(ctx context.Context, userID uuid.UUID, planID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[userID]; ok {
		return nil
	}
	if _, ok := r.plans[planID]; !ok {
		return subscription.ErrPlanNotFound
	}

	now := r.now()
	r.subs[userID] = subscription.Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		PlanID:    planID,
		Status:    subscription.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

// SetSubscription stores a subscription row as-is, replacing the user's current one.
// Useful for fixtures with cancelled or past-due rows.
func (r *MemoryRepository) SetSubscription(sub subscription.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	sub.Plan = nil
	r.subs[sub.UserID] = sub
}

// Payments returns the payments recorded for a user.
func (r *MemoryRepository) Payments(userID uuid.UUID) []subscription.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []subscription.Payment
	for _, p := range r.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out
}

func clonePlan(p subscription.Plan) subscription.Plan {
	if p.MaxNotes != nil {
		p.MaxNotes = subscription.Capped(*p.MaxNotes)
	}
	return p
}
