package subscription

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notekit/pkg/logger"
)

// Service defines the public interface for subscription limits and upgrades.
type Service interface {
	// Limits
	CheckLimits(ctx context.Context, userID uuid.UUID) (Limits, error)
	GetSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// Catalog and payments
	ListPlans(ctx context.Context) ([]Plan, error)
	PaymentAvailable(ctx context.Context) bool
	Upgrade(ctx context.Context, userID uuid.UUID, planID string) (*PaymentResult, error)
	ConfirmUpgrade(ctx context.Context, userID uuid.UUID, planID, transactionID string) (*PaymentResult, error)
}

type service struct {
	repo     Repository
	payments PaymentProvider
	notifier Notifier
	logger   *slog.Logger
}

// NewService creates a new Service with the given dependencies.
// Panics if repo or payments is nil to fail fast during initialization.
func NewService(repo Repository, payments PaymentProvider, opts ...ServiceOption) Service {
	if repo == nil {
		panic("subscription: Repository is required")
	}
	if payments == nil {
		panic("subscription: PaymentProvider is required")
	}

	s := &service{
		repo:     repo,
		payments: payments,
		notifier: noopNotifier{},
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CheckLimits reads the user's subscription and note count concurrently and
// evaluates them. The decision is computed only after both reads succeed;
// a failure in one cancels the other.
func (s *service) CheckLimits(ctx context.Context, userID uuid.UUID) (Limits, error) {
	if userID == uuid.Nil {
		return Limits{}, ErrNotAuthenticated
	}

	var (
		sub   *Subscription
		count int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sub, err = s.repo.GetUserSubscription(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		count, err = s.repo.GetUserNoteCount(gctx, userID)
		return err
	})

	if err := g.Wait(); err != nil {
		if !errors.Is(err, ErrStorage) {
			err = StorageError("check limits", err)
		}
		return Limits{}, err
	}

	return Evaluate(sub, count), nil
}

// GetSubscription retrieves the user's current subscription, nil if there is none.
func (s *service) GetSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	return s.repo.GetUserSubscription(ctx, userID)
}

// ListPlans returns the plan catalog ordered by price.
func (s *service) ListPlans(ctx context.Context) ([]Plan, error) {
	return s.repo.ListPlans(ctx)
}

// PaymentAvailable reports whether the payment method can be used.
// Errors count as unavailable.
func (s *service) PaymentAvailable(ctx context.Context) bool {
	ok, err := s.payments.Initialize(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "payment provider initialization failed", logger.Error(err))
		return false
	}
	return ok
}

// Upgrade charges the user for the plan and, on success, creates or renews
// the subscription. A declined or unavailable payment returns a *PaymentError
// and leaves stored state untouched. A pending checkout is returned as is and
// stored state is only advanced by ConfirmUpgrade once it is paid.
// Callers refresh cached limits afterwards.
func (s *service) Upgrade(ctx context.Context, userID uuid.UUID, planID string) (*PaymentResult, error) {
	plan, err := s.purchasablePlan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}

	ok, err := s.payments.Initialize(ctx)
	if err != nil {
		return nil, &PaymentError{Reason: ErrPaymentUnavailable.Error(), Err: errors.Join(ErrPaymentUnavailable, err)}
	}
	if !ok {
		return nil, &PaymentError{Reason: "Please try another payment method", Err: ErrPaymentUnavailable}
	}

	result, err := s.payments.Charge(ctx, ChargeRequest{
		UserID:    userID,
		PlanID:    plan.ID,
		PriceID:   plan.ProviderPriceID,
		AmountUSD: plan.PriceUSD,
	})
	if err != nil {
		return nil, &PaymentError{Reason: err.Error(), Err: err}
	}

	if result.Pending {
		s.logger.InfoContext(ctx, "checkout started",
			logger.UserID(userID),
			logger.PlanID(plan.ID),
			logger.TransactionID(result.TransactionID),
		)
		return result, nil
	}

	return s.settle(ctx, userID, plan, result)
}

// ConfirmUpgrade settles a checkout started by Upgrade. The subscription
// advances only when the provider reports the transaction as paid; a
// checkout the customer has not finished yet returns a *PaymentError
// matching ErrPaymentPending.
func (s *service) ConfirmUpgrade(ctx context.Context, userID uuid.UUID, planID, transactionID string) (*PaymentResult, error) {
	if transactionID == "" {
		return nil, ErrMissingTxID
	}

	plan, err := s.purchasablePlan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}

	confirmer, ok := s.payments.(CheckoutConfirmer)
	if !ok {
		return nil, &PaymentError{Reason: ErrPaymentUnavailable.Error(), Err: ErrPaymentUnavailable}
	}

	result, err := confirmer.Confirm(ctx, ConfirmRequest{
		UserID:        userID,
		PlanID:        plan.ID,
		TransactionID: transactionID,
	})
	if err != nil {
		return nil, &PaymentError{Reason: err.Error(), Err: err}
	}
	if result.Pending {
		return result, &PaymentError{Reason: ErrPaymentPending.Error(), Err: ErrPaymentPending}
	}
	if result.Success && result.TransactionID != transactionID {
		return result, &PaymentError{Reason: ErrTransactionMismatch.Error(), Err: ErrTransactionMismatch}
	}

	return s.settle(ctx, userID, plan, result)
}

func (s *service) purchasablePlan(ctx context.Context, userID uuid.UUID, planID string) (*Plan, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	// Free plans have nothing to pay for
	if plan.Free() {
		return nil, ErrPlanNotPurchasable
	}
	return plan, nil
}

// settle records a collected payment. Anything but a successful result
// leaves stored state untouched.
func (s *service) settle(ctx context.Context, userID uuid.UUID, plan *Plan, result *PaymentResult) (*PaymentResult, error) {
	if !result.Success {
		return result, &PaymentError{Reason: result.Error}
	}
	if result.TransactionID == "" {
		return result, &PaymentError{Reason: "no transaction ID returned", Err: ErrMissingTxID}
	}

	if err := s.repo.CreateOrRenewSubscription(ctx, userID, plan.ID, result.TransactionID); err != nil {
		// Money was taken but the subscription did not advance; keep the trail.
		s.logger.ErrorContext(ctx, "failed to record paid subscription",
			logger.UserID(userID),
			logger.PlanID(plan.ID),
			logger.TransactionID(result.TransactionID),
			logger.Error(err),
		)
		return result, err
	}

	if err := s.notifier.Publish(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "failed to publish subscription change",
			logger.UserID(userID),
			logger.Error(err),
		)
	}

	s.logger.InfoContext(ctx, "subscription upgraded",
		logger.UserID(userID),
		logger.PlanID(plan.ID),
		logger.TransactionID(result.TransactionID),
	)

	return result, nil
}
