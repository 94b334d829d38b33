package limits_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notekit/pkg/limits"
	"github.com/dmitrymomot/notekit/pkg/subscription"
)

// mutableChecker returns whatever limits are currently set for a user.
type mutableChecker struct {
	mu     sync.Mutex
	limits map[uuid.UUID]subscription.Limits
	calls  atomic.Int32
}

func newMutableChecker() *mutableChecker {
	return &mutableChecker{limits: make(map[uuid.UUID]subscription.Limits)}
}

func (c *mutableChecker) set(userID uuid.UUID, l subscription.Limits) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limits[userID] = l
}

func (c *mutableChecker) CheckLimits(_ context.Context, userID uuid.UUID) (subscription.Limits, error) {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limits[userID].Clone(), nil
}

func TestHub_Session(t *testing.T) {
	t.Parallel()

	t.Run("reuses provider per session", func(t *testing.T) {
		t.Parallel()
		checker := newMutableChecker()
		hub := limits.NewHub(checker)
		userID := uuid.New()
		checker.set(userID, remaining(3))

		p1, err := hub.Session(context.Background(), "s1", userID)
		require.NoError(t, err)
		p2, err := hub.Session(context.Background(), "s1", userID)
		require.NoError(t, err)

		assert.Same(t, p1, p2)
		assert.Equal(t, int32(1), checker.calls.Load())
		assert.Equal(t, 1, hub.Len())
	})

	t.Run("another user on a session gets a new provider", func(t *testing.T) {
		t.Parallel()
		checker := newMutableChecker()
		hub := limits.NewHub(checker)
		alice, bob := uuid.New(), uuid.New()
		checker.set(alice, unlimited())
		checker.set(bob, remaining(1))

		pa, err := hub.Session(context.Background(), "s1", alice)
		require.NoError(t, err)
		pb, err := hub.Session(context.Background(), "s1", bob)
		require.NoError(t, err)

		assert.NotSame(t, pa, pb)
		assert.Equal(t, alice, pa.Identity(), "held provider keeps its user")
		assert.True(t, pa.Current().IsProMember)
		assert.Equal(t, bob, pb.Identity())
		assert.False(t, pb.Current().IsProMember)
		assert.Equal(t, 1, hub.Len())

		require.NoError(t, hub.Invalidate(context.Background(), alice))
		assert.Equal(t, int32(2), checker.calls.Load(), "replaced provider is no longer tracked")
	})

	t.Run("nil user signs the session out", func(t *testing.T) {
		t.Parallel()
		hub := limits.NewHub(newMutableChecker())
		userID := uuid.New()

		held, err := hub.Session(context.Background(), "s1", userID)
		require.NoError(t, err)

		p, err := hub.Session(context.Background(), "s1", uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, limits.StateUnauthenticated, p.State())
		assert.Nil(t, p.Current())
		assert.Equal(t, 0, hub.Len())
		assert.Equal(t, userID, held.Identity())
	})

	t.Run("session ID required", func(t *testing.T) {
		t.Parallel()
		hub := limits.NewHub(newMutableChecker())
		_, err := hub.Session(context.Background(), "", uuid.New())
		assert.ErrorIs(t, err, limits.ErrSessionIDRequired)
	})

	t.Run("identity hook runs once per new identity", func(t *testing.T) {
		t.Parallel()
		var hooked atomic.Int32
		hub := limits.NewHub(newMutableChecker(), limits.WithIdentityHook(func(context.Context, uuid.UUID) error {
			hooked.Add(1)
			return nil
		}))
		userID := uuid.New()

		for range 3 {
			_, err := hub.Session(context.Background(), "s1", userID)
			require.NoError(t, err)
		}
		_, err := hub.Session(context.Background(), "s1", uuid.Nil)
		require.NoError(t, err)

		assert.Equal(t, int32(1), hooked.Load())
	})

	t.Run("evicts least recently used session", func(t *testing.T) {
		t.Parallel()
		checker := newMutableChecker()
		hub := limits.NewHub(checker, limits.WithHubCapacity(2))
		userID := uuid.New()

		session := func(id string) *limits.Provider {
			p, err := hub.Session(context.Background(), id, userID)
			require.NoError(t, err)
			return p
		}

		a := session("a")
		session("b")
		assert.Same(t, a, session("a"))
		session("c")
		assert.Equal(t, 2, hub.Len())
		assert.Equal(t, int32(3), checker.calls.Load())

		assert.Same(t, a, session("a"), "recently used session survives")
		session("b")
		assert.Equal(t, int32(4), checker.calls.Load(), "evicted session starts over")
	})

	t.Run("forget drops the session", func(t *testing.T) {
		t.Parallel()
		hub := limits.NewHub(newMutableChecker())
		userID := uuid.New()

		p, err := hub.Session(context.Background(), "s1", userID)
		require.NoError(t, err)
		hub.Forget("s1")
		hub.Forget("unknown")
		assert.Equal(t, 0, hub.Len())

		again, err := hub.Session(context.Background(), "s1", userID)
		require.NoError(t, err)
		assert.NotSame(t, p, again)
	})
}

func TestHub_Invalidate(t *testing.T) {
	t.Parallel()

	checker := newMutableChecker()
	hub := limits.NewHub(checker)
	alice, bob := uuid.New(), uuid.New()
	checker.set(alice, remaining(0))
	checker.set(bob, remaining(2))

	laptop, err := hub.Session(context.Background(), "laptop", alice)
	require.NoError(t, err)
	phone, err := hub.Session(context.Background(), "phone", alice)
	require.NoError(t, err)
	other, err := hub.Session(context.Background(), "other", bob)
	require.NoError(t, err)

	checker.set(alice, unlimited())
	checker.set(bob, remaining(0))
	require.NoError(t, hub.Invalidate(context.Background(), alice))

	assert.True(t, laptop.Current().IsProMember)
	assert.True(t, phone.Current().IsProMember)
	assert.True(t, other.Current().CanCreateNote, "other users' sessions are untouched")
}

func TestHub_Listen(t *testing.T) {
	t.Parallel()

	checker := newMutableChecker()
	hub := limits.NewHub(checker)
	inv := limits.NewMemoryInvalidator(8)
	t.Cleanup(func() { _ = inv.Close() })

	userID := uuid.New()
	checker.set(userID, remaining(0))
	p, err := hub.Session(context.Background(), "s1", userID)
	require.NoError(t, err)
	require.False(t, p.Current().CanCreateNote)

	ctx, cancel := context.WithCancel(context.Background())
	listening := async(func() error { return hub.Listen(ctx, inv) })

	checker.set(userID, unlimited())
	assert.Eventually(t, func() bool {
		_ = inv.Publish(context.Background(), userID)
		l := p.Current()
		return l != nil && l.IsProMember
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, wait(t, listening))
}
