package notes

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notekit/pkg/logger"
	"github.com/dmitrymomot/notekit/pkg/subscription"
)

// LimitsSource exposes the cached decision for the current session.
// *limits.Provider satisfies it.
type LimitsSource interface {
	Identity() uuid.UUID
	Current() *subscription.Limits
	Refetch(ctx context.Context) error
}

// Presenter shows the outcome of a creation request to the user.
type Presenter interface {
	// OpenEditor opens the note editor with the given draft.
	OpenEditor(ctx context.Context, draft Draft)
	// PromptUpgrade shows the upgrade dialog. notesRemaining is nil when
	// no decision is available.
	PromptUpgrade(ctx context.Context, notesRemaining *int64)
}

// Notifier is told when a user's note count changed so other sessions
// can refresh. limits.Invalidator satisfies it.
type Notifier interface {
	Publish(ctx context.Context, userID uuid.UUID) error
}

// Gate decides whether the current session may create a note.
// The decision comes from the session's cached limits and is never
// adjusted locally; after every change the limits are refetched.
type Gate struct {
	limits    LimitsSource
	store     Store
	presenter Presenter
	notifier  Notifier
	logger    *slog.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateNotifier publishes note count changes to other sessions.
func WithGateNotifier(n Notifier) GateOption {
	return func(g *Gate) {
		if n != nil {
			g.notifier = n
		}
	}
}

// WithGateLogger sets the logger for refresh failures.
func WithGateLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate builds a gate for one session.
// Panics if any dependency is nil.
func NewGate(limits LimitsSource, store Store, presenter Presenter, opts ...GateOption) *Gate {
	if limits == nil {
		panic("notes: LimitsSource is required")
	}
	if store == nil {
		panic("notes: Store is required")
	}
	if presenter == nil {
		panic("notes: Presenter is required")
	}

	g := &Gate{
		limits:    limits,
		store:     store,
		presenter: presenter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequestCreate handles the "new note" action. Missing or blocking limits
// show the upgrade prompt; otherwise the editor opens with an empty draft.
func (g *Gate) RequestCreate(ctx context.Context) error {
	if g.limits.Identity() == uuid.Nil {
		return ErrNotAuthenticated
	}

	if l, ok := g.allowed(); !ok {
		g.presenter.PromptUpgrade(ctx, remainingOf(l))
		return nil
	}

	g.presenter.OpenEditor(ctx, Draft{})
	return nil
}

// Create saves a new note if the current decision allows it. A blocked
// request shows the upgrade prompt and returns ErrLimitReached.
func (g *Gate) Create(ctx context.Context, draft Draft) (*Note, error) {
	userID := g.limits.Identity()
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	if l, ok := g.allowed(); !ok {
		g.presenter.PromptUpgrade(ctx, remainingOf(l))
		return nil, ErrLimitReached
	}

	draft, err := draft.Normalize()
	if err != nil {
		return nil, err
	}

	note, err := g.store.CreateNote(ctx, userID, draft)
	if err != nil {
		return nil, err
	}

	g.refresh(ctx, userID)
	return note, nil
}

// Delete removes one of the user's notes and refreshes the decision.
func (g *Gate) Delete(ctx context.Context, noteID uuid.UUID) error {
	userID := g.limits.Identity()
	if userID == uuid.Nil {
		return ErrNotAuthenticated
	}

	if err := g.store.DeleteNote(ctx, userID, noteID); err != nil {
		return err
	}

	g.refresh(ctx, userID)
	return nil
}

func (g *Gate) allowed() (*subscription.Limits, bool) {
	l := g.limits.Current()
	return l, l != nil && l.CanCreateNote
}

func (g *Gate) refresh(ctx context.Context, userID uuid.UUID) {
	if err := g.limits.Refetch(ctx); err != nil {
		g.logger.WarnContext(ctx, "failed to refresh limits after note change",
			logger.UserID(userID),
			logger.Error(err),
		)
	}

	if g.notifier == nil {
		return
	}
	if err := g.notifier.Publish(ctx, userID); err != nil {
		g.logger.WarnContext(ctx, "failed to publish note count change",
			logger.UserID(userID),
			logger.Error(err),
		)
	}
}

func remainingOf(l *subscription.Limits) *int64 {
	if l == nil || l.NotesRemaining == nil {
		return nil
	}
	n := *l.NotesRemaining
	return &n
}
