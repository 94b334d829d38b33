package limits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notekit/pkg/logger"
	"github.com/dmitrymomot/notekit/pkg/subscription"
)

// State describes where a Provider is in its fetch lifecycle.
type State int

const (
	// StateUnauthenticated means no identity is bound; limits are nil.
	StateUnauthenticated State = iota
	// StateLoading means a fetch is in flight; previous limits may still be held.
	StateLoading
	// StateReady means the latest fetch completed, successfully or not.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// MarshalText renders the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unauthenticated":
		*s = StateUnauthenticated
	case "loading":
		*s = StateLoading
	case "ready":
		*s = StateReady
	default:
		return fmt.Errorf("limits: unknown state %q", text)
	}
	return nil
}

// Checker computes the current decision for a user.
// subscription.Service satisfies it.
type Checker interface {
	CheckLimits(ctx context.Context, userID uuid.UUID) (subscription.Limits, error)
}

// Snapshot is a consistent view of a Provider at one instant.
type Snapshot struct {
	UserID uuid.UUID            `json:"user_id"`
	State  State                `json:"state"`
	Limits *subscription.Limits `json:"limits"`
}

// Provider holds the cached limits decision for one session.
//
// Every fetch is tagged with a generation number. Only the completion of
// the most recent fetch for the current identity may write the cached
// value; anything older is dropped on arrival.
type Provider struct {
	checker Checker
	logger  *slog.Logger

	mu     sync.Mutex
	userID uuid.UUID
	limits *subscription.Limits
	state  State
	gen    uint64
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets the logger used for fetch failures.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvider creates an unauthenticated Provider.
// Panics if checker is nil.
func NewProvider(checker Checker, opts ...ProviderOption) *Provider {
	if checker == nil {
		panic("limits: Checker is required")
	}

	p := &Provider{
		checker: checker,
		logger:  slog.Default(),
		state:   StateUnauthenticated,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetIdentity binds the provider to a user.
//
// uuid.Nil signs the session out and drops any cached limits. A different
// user drops the previous user's limits before fetching, so they are never
// visible under the new identity. The same user again is a no-op.
func (p *Provider) SetIdentity(ctx context.Context, userID uuid.UUID) error {
	p.mu.Lock()

	if userID == uuid.Nil {
		p.userID = uuid.Nil
		p.limits = nil
		p.state = StateUnauthenticated
		p.gen++
		p.mu.Unlock()
		return nil
	}

	if userID == p.userID {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return p.fetch(ctx, userID, p.bind(userID))
}

// bind switches the provider to userID without fetching and returns the
// generation the first fetch must carry.
func (p *Provider) bind(userID uuid.UUID) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.userID = userID
	p.limits = nil
	p.state = StateLoading
	p.gen++
	return p.gen
}

// Refetch recomputes the decision for the bound user. Cached limits stay
// readable while the fetch runs. Without an identity it only resets the
// state to StateUnauthenticated.
func (p *Provider) Refetch(ctx context.Context) error {
	p.mu.Lock()

	if p.userID == uuid.Nil {
		p.limits = nil
		p.state = StateUnauthenticated
		p.mu.Unlock()
		return nil
	}

	p.state = StateLoading
	p.gen++
	gen := p.gen
	userID := p.userID
	p.mu.Unlock()

	return p.fetch(ctx, userID, gen)
}

func (p *Provider) fetch(ctx context.Context, userID uuid.UUID, gen uint64) error {
	limits, err := p.checker.CheckLimits(ctx, userID)

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen || userID != p.userID {
		p.logger.DebugContext(ctx, "discarding superseded limits fetch",
			logger.UserID(userID),
		)
		return nil
	}

	p.state = StateReady

	if err != nil {
		p.logger.ErrorContext(ctx, "failed to fetch subscription limits",
			logger.UserID(userID),
			logger.Error(err),
		)
		return errors.Join(ErrRefreshFailed, err)
	}

	fresh := limits.Clone()
	p.limits = &fresh
	return nil
}

// Current returns a copy of the cached limits, or nil when none are known.
func (p *Provider) Current() *subscription.Limits {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneLimits(p.limits)
}

// Loading reports whether a fetch is in flight.
func (p *Provider) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateLoading
}

func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Identity returns the bound user, uuid.Nil when signed out.
func (p *Provider) Identity() uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userID
}

func (p *Provider) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		UserID: p.userID,
		State:  p.state,
		Limits: cloneLimits(p.limits),
	}
}

func cloneLimits(l *subscription.Limits) *subscription.Limits {
	if l == nil {
		return nil
	}
	c := l.Clone()
	return &c
}
