package limits

import (
	"container/list"
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notekit/pkg/logger"
)

// DefaultHubCapacity bounds the number of sessions a Hub keeps.
const DefaultHubCapacity = 10_000

type hubEntry struct {
	sessionID string
	userID    uuid.UUID
	provider  *Provider
}

// Hub keeps one Provider per session and evicts the least recently used
// session once capacity is reached. It is safe for concurrent use.
//
// A provider stays bound to the user it was created for. When a session is
// presented by another user the hub starts a new provider for it, so requests
// still holding the old one keep acting as the previous user.
type Hub struct {
	checker    Checker
	logger     *slog.Logger
	capacity   int
	onIdentity func(ctx context.Context, userID uuid.UUID) error

	mu       sync.Mutex
	items    map[string]*list.Element
	eviction *list.List
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubCapacity sets the maximum number of tracked sessions.
// Non-positive values are ignored.
func WithHubCapacity(capacity int) HubOption {
	return func(h *Hub) {
		if capacity > 0 {
			h.capacity = capacity
		}
	}
}

// WithHubLogger sets the logger for the hub and the providers it creates.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithIdentityHook registers fn to run whenever a session binds to a new
// user, before the first fetch. Hook errors are logged and do not block
// the session.
func WithIdentityHook(fn func(ctx context.Context, userID uuid.UUID) error) HubOption {
	return func(h *Hub) {
		h.onIdentity = fn
	}
}

// NewHub creates a session hub. Panics if checker is nil.
func NewHub(checker Checker, opts ...HubOption) *Hub {
	if checker == nil {
		panic("limits: Checker is required")
	}

	h := &Hub{
		checker:  checker,
		logger:   slog.Default(),
		capacity: DefaultHubCapacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Session returns the provider for sessionID bound to userID.
// The provider is returned even when the initial fetch fails; it then
// holds no limits and callers stay fail-closed. uuid.Nil signs the session
// out and returns an unauthenticated provider that is not tracked.
func (h *Hub) Session(ctx context.Context, sessionID string, userID uuid.UUID) (*Provider, error) {
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}

	if userID == uuid.Nil {
		h.Forget(sessionID)
		return NewProvider(h.checker, WithProviderLogger(h.logger)), nil
	}

	p, gen, created := h.provider(sessionID, userID)
	if !created {
		return p, nil
	}

	if h.onIdentity != nil {
		if err := h.onIdentity(ctx, userID); err != nil {
			h.logger.WarnContext(ctx, "identity hook failed",
				logger.UserID(userID),
				logger.Error(err),
			)
		}
	}

	return p, p.fetch(ctx, userID, gen)
}

// Forget drops a session on sign-out. Requests already holding its
// provider are unaffected.
func (h *Hub) Forget(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if elem, ok := h.items[sessionID]; ok {
		h.eviction.Remove(elem)
		delete(h.items, sessionID)
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.eviction.Len()
}

// Invalidate refetches every session bound to userID.
func (h *Hub) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return nil
	}

	var errs []error
	for _, p := range h.providersFor(userID) {
		if err := p.Refetch(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Listen applies invalidation events until ctx is cancelled or the
// subscription ends.
func (h *Hub) Listen(ctx context.Context, inv Invalidator) error {
	events, err := inv.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case userID, ok := <-events:
			if !ok {
				return nil
			}
			if err := h.Invalidate(ctx, userID); err != nil {
				h.logger.WarnContext(ctx, "failed to refresh invalidated sessions",
					logger.UserID(userID),
					logger.Error(err),
				)
			}
		}
	}
}

// provider returns the tracked provider of sessionID when it belongs to
// userID. Otherwise it replaces the entry with a new provider bound to
// userID and reports created along with the generation of its first fetch.
func (h *Hub) provider(sessionID string, userID uuid.UUID) (p *Provider, gen uint64, created bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if elem, ok := h.items[sessionID]; ok {
		entry := elem.Value.(*hubEntry)
		if entry.userID == userID {
			h.eviction.MoveToFront(elem)
			return entry.provider, 0, false
		}
		h.eviction.Remove(elem)
		delete(h.items, sessionID)
	}

	p = NewProvider(h.checker, WithProviderLogger(h.logger))
	gen = p.bind(userID)
	h.items[sessionID] = h.eviction.PushFront(&hubEntry{
		sessionID: sessionID,
		userID:    userID,
		provider:  p,
	})

	if h.eviction.Len() > h.capacity {
		oldest := h.eviction.Back()
		h.eviction.Remove(oldest)
		delete(h.items, oldest.Value.(*hubEntry).sessionID)
	}
	return p, gen, true
}

func (h *Hub) providersFor(userID uuid.UUID) []*Provider {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*Provider
	for _, elem := range h.items {
		if entry := elem.Value.(*hubEntry); entry.userID == userID {
			out = append(out, entry.provider)
		}
	}
	return out
}
