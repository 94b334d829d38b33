package notebook

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/notekit/handler"
	"github.com/dmitrymomot/notekit/pkg/limits"
	"github.com/dmitrymomot/notekit/pkg/logger"
	"github.com/dmitrymomot/notekit/pkg/notes"
	"github.com/dmitrymomot/notekit/pkg/subscription"
	"github.com/dmitrymomot/notekit/svc/auth"
)

// SessionHub hands out the limits provider of a client session.
// *limits.Hub satisfies it.
type SessionHub interface {
	Session(ctx context.Context, sessionID string, userID uuid.UUID) (*limits.Provider, error)
	Forget(sessionID string)
}

// Module serves the notes, limits and upgrade endpoints.
type Module struct {
	sessions SessionHub
	subs     subscription.Service
	store    notes.Store
	notifier notes.Notifier
	logger   *slog.Logger
}

type Option func(*Module)

// WithNotifier publishes note count changes to other sessions.
func WithNotifier(n notes.Notifier) Option {
	return func(m *Module) {
		m.notifier = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.logger = l
		}
	}
}

// New builds the module. Panics if any dependency is nil.
func New(sessions SessionHub, subs subscription.Service, store notes.Store, opts ...Option) *Module {
	if sessions == nil {
		panic("notebook: SessionHub is required")
	}
	if subs == nil {
		panic("notebook: subscription.Service is required")
	}
	if store == nil {
		panic("notebook: notes.Store is required")
	}

	m := &Module{
		sessions: sessions,
		subs:     subs,
		store:    store,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logger.Component("notebook"))
	return m
}

// Handle returns the module router. It expects auth.Middleware to have run.
//
//	r := chi.NewRouter()
//	r.Use(auth.Middleware)
//	r.Mount("/api", notebook.New(hub, svc, store).Handle())
func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()

	r.Get("/plans", m.wrap(m.listPlans))
	r.Get("/payments/available", m.wrap(m.paymentAvailable))
	r.Delete("/session", m.wrap(m.endSession))

	r.Group(func(r chi.Router) {
		r.Use(m.withSession)

		r.Get("/limits", m.wrap(m.getLimits))
		r.Post("/limits/refresh", m.wrap(m.refreshLimits))

		r.Post("/notes/new", m.wrap(m.requestCreate))
		r.Post("/notes", m.wrap(m.createNote))
		r.Get("/notes", m.wrap(m.listNotes))
		r.Get("/notes/{id}", m.wrap(m.getNote))
		r.Put("/notes/{id}", m.wrap(m.updateNote))
		r.Delete("/notes/{id}", m.wrap(m.deleteNote))

		r.Get("/tags", m.wrap(m.listTags))
		r.Post("/tags", m.wrap(m.createTag))

		r.Get("/subscription", m.wrap(m.getSubscription))
		r.Post("/upgrade", m.wrap(m.upgrade))
		r.Post("/upgrade/confirm", m.wrap(m.confirmUpgrade))
	})

	return r
}

func (m *Module) wrap(h handler.HandlerFunc) http.HandlerFunc {
	return handler.Wrap(h, m.logger)
}

// withSession requires a signed-in user and binds the request to the
// limits provider of its session. Clients without a session header share
// one provider per user.
func (m *Module) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID := auth.GetUserIDFromContext(ctx)
		if userID == uuid.Nil {
			_ = errorResponse(notes.ErrNotAuthenticated).Render(w, r)
			return
		}

		p, err := m.sessions.Session(ctx, sessionKey(ctx, userID), userID)
		if p == nil {
			_ = errorResponse(err).Render(w, r)
			return
		}
		if err != nil {
			// The provider stays fail-closed; handlers still answer.
			m.logger.WarnContext(ctx, "initial limits fetch failed", logger.Error(err))
		}

		next.ServeHTTP(w, r.WithContext(limits.SetProviderToContext(ctx, p)))
	})
}

// sessionKey identifies the client session of the request.
func sessionKey(ctx context.Context, userID uuid.UUID) string {
	if id := auth.GetSessionIDFromContext(ctx); id != "" {
		return id
	}
	return "user:" + userID.String()
}

func (m *Module) gate(r *http.Request, presenter notes.Presenter) (*notes.Gate, error) {
	p, err := limits.ProviderFromContext(r.Context())
	if err != nil {
		return nil, err
	}

	opts := []notes.GateOption{notes.WithGateLogger(m.logger)}
	if m.notifier != nil {
		opts = append(opts, notes.WithGateNotifier(m.notifier))
	}
	return notes.NewGate(p, m.store, presenter, opts...), nil
}
