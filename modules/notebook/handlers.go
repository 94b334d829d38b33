package notebook

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/notekit/handler"
	"github.com/dmitrymomot/notekit/pkg/limits"
	"github.com/dmitrymomot/notekit/pkg/logger"
	"github.com/dmitrymomot/notekit/pkg/notes"
	"github.com/dmitrymomot/notekit/pkg/subscription"
	"github.com/dmitrymomot/notekit/svc/auth"
)

type createTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type upgradeRequest struct {
	PlanID string `json:"plan_id"`
}

type confirmUpgradeRequest struct {
	PlanID        string `json:"plan_id"`
	TransactionID string `json:"transaction_id"`
}

type subscriptionResponse struct {
	PlanID        string                          `json:"plan_id"`
	PlanName      string                          `json:"plan_name,omitempty"`
	Status        subscription.SubscriptionStatus `json:"status"`
	Active        bool                            `json:"active"`
	PeriodEnd     *time.Time                      `json:"current_period_end,omitempty"`
	PeriodEnded   bool                            `json:"period_ended"`
	DaysRemaining int                             `json:"days_remaining"`
}

type upgradeResponse struct {
	Payment *subscription.PaymentResult `json:"payment"`
	Limits  limits.Snapshot             `json:"limits"`
}

func (m *Module) listPlans(r *http.Request) handler.Response {
	plans, err := m.subs.ListPlans(r.Context())
	if err != nil {
		return errorResponse(err)
	}
	return handler.JSON(plans)
}

func (m *Module) paymentAvailable(r *http.Request) handler.Response {
	return handler.JSON(map[string]bool{"available": m.subs.PaymentAvailable(r.Context())})
}

func (m *Module) getLimits(r *http.Request) handler.Response {
	p, err := limits.ProviderFromContext(r.Context())
	if err != nil {
		return errorResponse(err)
	}
	return handler.JSON(p.Snapshot())
}

func (m *Module) refreshLimits(r *http.Request) handler.Response {
	p, err := limits.ProviderFromContext(r.Context())
	if err != nil {
		return errorResponse(err)
	}
	if err := p.Refetch(r.Context()); err != nil {
		return errorResponse(err)
	}
	return handler.JSON(p.Snapshot())
}

func (m *Module) requestCreate(r *http.Request) handler.Response {
	presenter := &outcomePresenter{}
	g, err := m.gate(r, presenter)
	if err != nil {
		return errorResponse(err)
	}

	if err := g.RequestCreate(r.Context()); err != nil {
		return errorResponse(err)
	}
	return handler.JSON(presenter.outcome)
}

func (m *Module) createNote(r *http.Request) handler.Response {
	var draft notes.Draft
	if err := handler.DecodeJSON(r, &draft); err != nil {
		return errorResponse(err)
	}

	presenter := &outcomePresenter{}
	g, err := m.gate(r, presenter)
	if err != nil {
		return errorResponse(err)
	}

	note, err := g.Create(r.Context(), draft)
	if errors.Is(err, notes.ErrLimitReached) {
		return errorResponse(err, handler.WithErrorData(presenter.outcome))
	}
	if err != nil {
		return errorResponse(err)
	}
	return handler.JSON(note, handler.WithStatus(http.StatusCreated))
}

func (m *Module) listNotes(r *http.Request) handler.Response {
	list, err := m.store.ListNotes(r.Context(), auth.GetUserIDFromContext(r.Context()))
	if err != nil {
		return errorResponse(err)
	}
	if list == nil {
		list = []notes.Note{}
	}
	return handler.JSON(list)
}

func (m *Module) getNote(r *http.Request) handler.Response {
	noteID, err := noteIDParam(r)
	if err != nil {
		return errorResponse(err)
	}

	note, err := m.store.GetNote(r.Context(), auth.GetUserIDFromContext(r.Context()), noteID)
	if err != nil {
		return errorResponse(err)
	}
	return handler.JSON(note)
}

func (m *Module) updateNote(r *http.Request) handler.Response {
	noteID, err := noteIDParam(r)
	if err != nil {
		return errorResponse(err)
	}

	var draft notes.Draft
	if err := handler.DecodeJSON(r, &draft); err != nil {
		return errorResponse(err)
	}
	if draft, err = draft.Normalize(); err != nil {
		return errorResponse(err)
	}

	note, err := m.store.UpdateNote(r.Context(), auth.GetUserIDFromContext(r.Context()), noteID, draft)
	if err != nil {
		return errorResponse(err)
	}
	return handler.JSON(note)
}

func (m *Module) deleteNote(r *http.Request) handler.Response {
	noteID, err := noteIDParam(r)
	if err != nil {
		return errorResponse(err)
	}

	g, err := m.gate(r, &outcomePresenter{})
	if err != nil {
		return errorResponse(err)
	}
	if err := g.Delete(r.Context(), noteID); err != nil {
		return errorResponse(err)
	}
	return handler.NoContent()
}

func (m *Module) listTags(r *http.Request) handler.Response {
	tags, err := m.store.ListTags(r.Context())
	if err != nil {
		return errorResponse(err)
	}
	if tags == nil {
		tags = []notes.Tag{}
	}
	return handler.JSON(tags)
}

func (m *Module) createTag(r *http.Request) handler.Response {
	var req createTagRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		return errorResponse(err)
	}

	tag, err := m.store.CreateTag(r.Context(), req.Name, req.Color)
	if err != nil {
		return errorResponse(err)
	}
	return handler.JSON(tag, handler.WithStatus(http.StatusCreated))
}

// upgrade charges the user and refreshes this session before answering so
// the client sees the new plan immediately. Other sessions are refreshed
// through the service notifier. A hosted checkout answers 202 with the
// checkout link; the client confirms it once the customer has paid.
func (m *Module) upgrade(r *http.Request) handler.Response {
	ctx := r.Context()

	var req upgradeRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		return errorResponse(err)
	}
	if req.PlanID == "" {
		return errorResponse(handler.ErrUnprocessable.WithMessage("plan_id is required"))
	}

	p, err := limits.ProviderFromContext(ctx)
	if err != nil {
		return errorResponse(err)
	}

	result, err := m.subs.Upgrade(ctx, auth.GetUserIDFromContext(ctx), req.PlanID)
	if err != nil {
		return errorResponse(err)
	}
	if result.Pending {
		return handler.JSON(upgradeResponse{Payment: result, Limits: p.Snapshot()},
			handler.WithStatus(http.StatusAccepted))
	}

	return m.upgraded(r, p, req.PlanID, result)
}

// confirmUpgrade settles a checkout started by upgrade.
func (m *Module) confirmUpgrade(r *http.Request) handler.Response {
	ctx := r.Context()

	var req confirmUpgradeRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		return errorResponse(err)
	}
	if req.PlanID == "" || req.TransactionID == "" {
		return errorResponse(handler.ErrUnprocessable.WithMessage("plan_id and transaction_id are required"))
	}

	p, err := limits.ProviderFromContext(ctx)
	if err != nil {
		return errorResponse(err)
	}

	result, err := m.subs.ConfirmUpgrade(ctx, auth.GetUserIDFromContext(ctx), req.PlanID, req.TransactionID)
	if err != nil {
		return errorResponse(err)
	}

	return m.upgraded(r, p, req.PlanID, result)
}

func (m *Module) upgraded(r *http.Request, p *limits.Provider, planID string, result *subscription.PaymentResult) handler.Response {
	ctx := r.Context()
	if err := p.Refetch(ctx); err != nil {
		m.logger.WarnContext(ctx, "failed to refresh limits after upgrade",
			logger.PlanID(planID),
			logger.Error(err),
		)
	}
	return handler.JSON(upgradeResponse{Payment: result, Limits: p.Snapshot()})
}

// getSubscription describes the user's current subscription.
func (m *Module) getSubscription(r *http.Request) handler.Response {
	ctx := r.Context()

	sub, err := m.subs.GetSubscription(ctx, auth.GetUserIDFromContext(ctx))
	if err != nil {
		return errorResponse(err)
	}
	if sub == nil {
		return errorResponse(handler.ErrNotFound.WithMessage("no subscription"))
	}

	now := time.Now()
	resp := subscriptionResponse{
		PlanID:        sub.PlanID,
		Status:        sub.Status,
		Active:        sub.IsActive(),
		PeriodEnd:     sub.CurrentPeriodEnd,
		PeriodEnded:   sub.PeriodEndedAt(now),
		DaysRemaining: sub.DaysRemainingAt(now),
	}
	if plan, ok := sub.ResolvedPlan(); ok {
		resp.PlanName = plan.Name
	}
	return handler.JSON(resp)
}

// endSession drops the cached limits of the caller's session on sign-out.
func (m *Module) endSession(r *http.Request) handler.Response {
	ctx := r.Context()

	userID := auth.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		return errorResponse(notes.ErrNotAuthenticated)
	}

	m.sessions.Forget(sessionKey(ctx, userID))
	return handler.NoContent()
}

func noteIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, handler.ErrNotFound.WithMessage(notes.ErrNoteNotFound.Error())
	}
	return id, nil
}
