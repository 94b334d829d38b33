package subscription_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notekit/pkg/subscription"
)

// Mock implementations
type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) GetUserSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *mockRepository) GetUserNoteCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) CreateOrRenewSubscription(ctx context.Context, userID uuid.UUID, planID, transactionID string) error {
	args := m.Called(ctx, userID, planID, transactionID)
	return args.Error(0)
}

func (m *mockRepository) ListPlans(ctx context.Context) ([]subscription.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]subscription.Plan), args.Error(1)
}

func (m *mockRepository) GetPlan(ctx context.Context, planID string) (*subscription.Plan, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Plan), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Publish(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// rendezvousRepository blocks each read until the other one has started,
// so CheckLimits only returns if both reads are in flight at the same time.
type rendezvousRepository struct {
	mockRepository
	subStarted   chan struct{}
	countStarted chan struct{}
}

func (r *rendezvousRepository) GetUserSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	close(r.subStarted)
	select {
	case <-r.countStarted:
	case <-time.After(time.Second):
		return nil, errors.New("note count read was not issued concurrently")
	}
	return subscribed(cappedPlan(5)), nil
}

func (r *rendezvousRepository) GetUserNoteCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	close(r.countStarted)
	select {
	case <-r.subStarted:
	case <-time.After(time.Second):
		return 0, errors.New("subscription read was not issued concurrently")
	}
	return 2, nil
}

func TestService_CheckLimits(t *testing.T) {
	t.Parallel()

	t.Run("evaluates subscription and note count", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		repo := &mockRepository{}
		repo.On("GetUserSubscription", mock.Anything, userID).Return(subscribed(cappedPlan(3)), nil)
		repo.On("GetUserNoteCount", mock.Anything, userID).Return(int64(2), nil)

		svc := subscription.NewService(repo, subscription.NewSandboxProvider())
		limits, err := svc.CheckLimits(context.Background(), userID)

		require.NoError(t, err)
		assert.True(t, limits.CanCreateNote)
		require.NotNil(t, limits.NotesRemaining)
		assert.Equal(t, int64(1), *limits.NotesRemaining)
		repo.AssertExpectations(t)
	})

	t.Run("no subscription row is blocked", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		repo := &mockRepository{}
		repo.On("GetUserSubscription", mock.Anything, userID).Return(nil, nil)
		repo.On("GetUserNoteCount", mock.Anything, userID).Return(int64(0), nil)

		svc := subscription.NewService(repo, subscription.NewSandboxProvider())
		limits, err := svc.CheckLimits(context.Background(), userID)

		require.NoError(t, err)
		assert.False(t, limits.CanCreateNote)
		assert.False(t, limits.IsProMember)
	})

	t.Run("reads are issued concurrently", func(t *testing.T) {
		t.Parallel()
		repo := &rendezvousRepository{
			subStarted:   make(chan struct{}),
			countStarted: make(chan struct{}),
		}

		svc := subscription.NewService(repo, subscription.NewSandboxProvider())
		limits, err := svc.CheckLimits(context.Background(), uuid.New())

		require.NoError(t, err)
		require.NotNil(t, limits.NotesRemaining)
		assert.Equal(t, int64(3), *limits.NotesRemaining)
	})

	t.Run("failure in one read cancels the other", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		cancelled := make(chan struct{})
		repo := &mockRepository{}
		repo.On("GetUserSubscription", mock.Anything, userID).
			Run(func(args mock.Arguments) {
				ctx := args.Get(0).(context.Context)
				select {
				case <-ctx.Done():
					close(cancelled)
				case <-time.After(time.Second):
				}
			}).
			Return(nil, context.Canceled)
		repo.On("GetUserNoteCount", mock.Anything, userID).
			Return(int64(0), subscription.StorageError("count notes", errors.New("connection reset")))

		svc := subscription.NewService(repo, subscription.NewSandboxProvider())
		_, err := svc.CheckLimits(context.Background(), userID)

		require.Error(t, err)
		assert.ErrorIs(t, err, subscription.ErrStorage)
		select {
		case <-cancelled:
		case <-time.After(2 * time.Second):
			t.Fatal("subscription read was not cancelled")
		}
	})

	t.Run("foreign errors are wrapped as storage errors", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		repo := &mockRepository{}
		repo.On("GetUserSubscription", mock.Anything, userID).Return(nil, errors.New("boom"))
		repo.On("GetUserNoteCount", mock.Anything, userID).Return(int64(0), nil)

		svc := subscription.NewService(repo, subscription.NewSandboxProvider())
		_, err := svc.CheckLimits(context.Background(), userID)
		assert.ErrorIs(t, err, subscription.ErrStorage)
	})

	t.Run("requires identity", func(t *testing.T) {
		t.Parallel()
		repo := &mockRepository{}
		svc := subscription.NewService(repo, subscription.NewSandboxProvider())

		_, err := svc.CheckLimits(context.Background(), uuid.Nil)
		assert.ErrorIs(t, err, subscription.ErrNotAuthenticated)
		repo.AssertNotCalled(t, "GetUserSubscription", mock.Anything, mock.Anything)
	})
}

func TestService_Upgrade(t *testing.T) {
	t.Parallel()

	proPlan := unlimitedPlan()
	proPlan.ProviderPriceID = "pri_pro"

	t.Run("successful payment persists subscription and notifies", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		repo := &mockRepository{}
		notifier := &mockNotifier{}
		payments := subscription.NewSandboxProvider()

		repo.On("GetPlan", mock.Anything, "pro").Return(proPlan, nil)
		repo.On("CreateOrRenewSubscription", mock.Anything, userID, "pro", "tx_1").Return(nil)
		notifier.On("Publish", mock.Anything, userID).Return(nil)

		svc := subscription.NewService(repo, payments, subscription.WithNotifier(notifier))
		result, err := svc.Upgrade(context.Background(), userID, "pro")

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "tx_1", result.TransactionID)

		charges := payments.Charges()
		require.Len(t, charges, 1)
		assert.Equal(t, "9.99", charges[0].AmountUSD.StringFixed(2))
		assert.Equal(t, "pri_pro", charges[0].PriceID)
		assert.Equal(t, userID, charges[0].UserID)

		repo.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("declined payment changes nothing", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		repo := &mockRepository{}
		repo.On("GetPlan", mock.Anything, "pro").Return(proPlan, nil)

		svc := subscription.NewService(repo, subscription.NewSandboxProvider(subscription.WithSandboxDecline("card declined")))
		result, err := svc.Upgrade(context.Background(), userID, "pro")

		require.Error(t, err)
		assert.ErrorIs(t, err, subscription.ErrPayment)
		var payErr *subscription.PaymentError
		require.ErrorAs(t, err, &payErr)
		assert.Equal(t, "card declined", payErr.Reason)
		require.NotNil(t, result)
		assert.False(t, result.Success)
		repo.AssertNotCalled(t, "CreateOrRenewSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unavailable payment method", func(t *testing.T) {
		t.Parallel()
		repo := &mockRepository{}
		repo.On("GetPlan", mock.Anything, "pro").Return(proPlan, nil)

		svc := subscription.NewService(repo, subscription.NewSandboxProvider(subscription.WithSandboxUnavailable()))
		_, err := svc.Upgrade(context.Background(), uuid.New(), "pro")

		assert.ErrorIs(t, err, subscription.ErrPayment)
		assert.ErrorIs(t, err, subscription.ErrPaymentUnavailable)
		assert.False(t, svc.PaymentAvailable(context.Background()))
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		repo := &mockRepository{}
		repo.On("GetPlan", mock.Anything, "gold").Return(nil, subscription.ErrPlanNotFound)
		payments := subscription.NewSandboxProvider()

		svc := subscription.NewService(repo, payments)
		_, err := svc.Upgrade(context.Background(), uuid.New(), "gold")

		assert.ErrorIs(t, err, subscription.ErrPlanNotFound)
		assert.Empty(t, payments.Charges())
	})

	t.Run("free plan cannot be bought", func(t *testing.T) {
		t.Parallel()
		repo := &mockRepository{}
		repo.On("GetPlan", mock.Anything, "free").Return(cappedPlan(3), nil)

		svc := subscription.NewService(repo, subscription.NewSandboxProvider())
		_, err := svc.Upgrade(context.Background(), uuid.New(), "free")

		assert.ErrorIs(t, err, subscription.ErrPlanNotPurchasable)
	})

	t.Run("requires identity", func(t *testing.T) {
		t.Parallel()
		repo := &mockRepository{}
		svc := subscription.NewService(repo, subscription.NewSandboxProvider())

		_, err := svc.Upgrade(context.Background(), uuid.Nil, "pro")
		assert.ErrorIs(t, err, subscription.ErrNotAuthenticated)
		repo.AssertNotCalled(t, "GetPlan", mock.Anything, mock.Anything)
	})

	t.Run("storage failure after charge is returned", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		repo := &mockRepository{}
		notifier := &mockNotifier{}
		repo.On("GetPlan", mock.Anything, "pro").Return(proPlan, nil)
		repo.On("CreateOrRenewSubscription", mock.Anything, userID, "pro", "tx_1").
			Return(subscription.StorageError("upsert subscription", errors.New("timeout")))

		svc := subscription.NewService(repo, subscription.NewSandboxProvider(), subscription.WithNotifier(notifier))
		result, err := svc.Upgrade(context.Background(), userID, "pro")

		assert.ErrorIs(t, err, subscription.ErrStorage)
		require.NotNil(t, result)
		assert.Equal(t, "tx_1", result.TransactionID)
		notifier.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("notifier failure does not fail the upgrade", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		repo := &mockRepository{}
		notifier := &mockNotifier{}
		repo.On("GetPlan", mock.Anything, "pro").Return(proPlan, nil)
		repo.On("CreateOrRenewSubscription", mock.Anything, userID, "pro", "tx_1").Return(nil)
		notifier.On("Publish", mock.Anything, userID).Return(errors.New("redis down"))

		svc := subscription.NewService(repo, subscription.NewSandboxProvider(), subscription.WithNotifier(notifier))
		_, err := svc.Upgrade(context.Background(), userID, "pro")
		assert.NoError(t, err)
	})
}

func TestNewService_PanicsOnNilDependencies(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { subscription.NewService(nil, subscription.NewSandboxProvider()) })
	assert.Panics(t, func() { subscription.NewService(&mockRepository{}, nil) })
}

func TestSandboxProvider_ConcurrentCharges(t *testing.T) {
	t.Parallel()

	p := subscription.NewSandboxProvider()
	var wg sync.WaitGroup
	ids := make(chan string, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Charge(context.Background(), subscription.ChargeRequest{PlanID: "pro"})
			if err == nil {
				ids <- res.TransactionID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate transaction ID %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 20)
	assert.Len(t, p.Charges(), 20)
}

func TestService_ConfirmUpgrade(t *testing.T) {
	t.Parallel()

	proPlan := unlimitedPlan()
	proPlan.ProviderPriceID = "pri_pro"

	t.Run("pending checkout advances only after confirmation", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		repo := &mockRepository{}
		notifier := &mockNotifier{}
		repo.On("GetPlan", mock.Anything, "pro").Return(proPlan, nil)
		payments := subscription.NewSandboxProvider(subscription.WithSandboxCheckout("https://pay.example.com"))

		svc := subscription.NewService(repo, payments, subscription.WithNotifier(notifier))
		result, err := svc.Upgrade(context.Background(), userID, "pro")
		require.NoError(t, err)
		assert.True(t, result.Pending)
		assert.False(t, result.Success)
		assert.Equal(t, "https://pay.example.com?txn=tx_1", result.CheckoutURL)
		repo.AssertNotCalled(t, "CreateOrRenewSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		notifier.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)

		repo.On("CreateOrRenewSubscription", mock.Anything, userID, "pro", "tx_1").Return(nil).Once()
		notifier.On("Publish", mock.Anything, userID).Return(nil).Once()

		result, err = svc.ConfirmUpgrade(context.Background(), userID, "pro", "tx_1")
		require.NoError(t, err)
		assert.True(t, result.Success)
		repo.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("transaction of another user is refused", func(t *testing.T) {
		t.Parallel()
		alice, bob := uuid.New(), uuid.New()
		repo := &mockRepository{}
		repo.On("GetPlan", mock.Anything, "pro").Return(proPlan, nil)
		payments := subscription.NewSandboxProvider(subscription.WithSandboxCheckout("https://pay.example.com"))

		svc := subscription.NewService(repo, payments)
		_, err := svc.Upgrade(context.Background(), alice, "pro")
		require.NoError(t, err)

		_, err = svc.ConfirmUpgrade(context.Background(), bob, "pro", "tx_1")
		assert.ErrorIs(t, err, subscription.ErrPayment)
		repo.AssertNotCalled(t, "CreateOrRenewSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown transaction is refused", func(t *testing.T) {
		t.Parallel()
		repo := &mockRepository{}
		repo.On("GetPlan", mock.Anything, "pro").Return(proPlan, nil)

		svc := subscription.NewService(repo, subscription.NewSandboxProvider())
		_, err := svc.ConfirmUpgrade(context.Background(), uuid.New(), "pro", "tx_404")

		var payErr *subscription.PaymentError
		require.ErrorAs(t, err, &payErr)
		assert.Equal(t, "unknown transaction", payErr.Reason)
	})

	t.Run("transaction id required", func(t *testing.T) {
		t.Parallel()
		repo := &mockRepository{}
		svc := subscription.NewService(repo, subscription.NewSandboxProvider())

		_, err := svc.ConfirmUpgrade(context.Background(), uuid.New(), "pro", "")
		assert.ErrorIs(t, err, subscription.ErrMissingTxID)
		repo.AssertNotCalled(t, "GetPlan", mock.Anything, mock.Anything)
	})
}
