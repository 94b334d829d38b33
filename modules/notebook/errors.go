package notebook

import (
	"errors"

	"github.com/dmitrymomot/notekit/handler"
	"github.com/dmitrymomot/notekit/pkg/limits"
	"github.com/dmitrymomot/notekit/pkg/notes"
	"github.com/dmitrymomot/notekit/pkg/subscription"
)

// errorResponse maps domain errors onto HTTP errors. Only sentinel text
// and payment reasons reach the client.
func errorResponse(err error, opts ...handler.JSONOption) handler.Response {
	return handler.JSONError(httpError(err), opts...)
}

func httpError(err error) error {
	var httpErr handler.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var payErr *subscription.PaymentError
	if errors.As(err, &payErr) {
		msg := payErr.Reason
		if msg == "" {
			msg = subscription.ErrPayment.Error()
		}
		return handler.ErrPaymentRequired.WithMessage(msg)
	}

	switch {
	case errors.Is(err, notes.ErrNotAuthenticated):
		return handler.ErrUnauthorized.WithMessage(err.Error())
	case errors.Is(err, notes.ErrLimitReached):
		return handler.ErrPaymentRequired.WithMessage(notes.ErrLimitReached.Error())
	case errors.Is(err, subscription.ErrPlanNotFound):
		return handler.ErrNotFound.WithMessage(subscription.ErrPlanNotFound.Error())
	case errors.Is(err, notes.ErrNoteNotFound):
		return handler.ErrNotFound.WithMessage(notes.ErrNoteNotFound.Error())
	case errors.Is(err, notes.ErrTagNotFound):
		return handler.ErrUnprocessable.WithMessage(notes.ErrTagNotFound.Error())
	case errors.Is(err, subscription.ErrPlanNotPurchasable):
		return handler.ErrUnprocessable.WithMessage(subscription.ErrPlanNotPurchasable.Error())
	case errors.Is(err, notes.ErrTitleTooLong):
		return handler.ErrUnprocessable.WithMessage(notes.ErrTitleTooLong.Error())
	case errors.Is(err, notes.ErrInvalidTag):
		return handler.ErrUnprocessable.WithMessage(notes.ErrInvalidTag.Error())
	case errors.Is(err, notes.ErrDuplicateTag):
		return handler.ErrConflict.WithMessage(notes.ErrDuplicateTag.Error())
	case errors.Is(err, subscription.ErrStorage),
		errors.Is(err, notes.ErrStoreFailure),
		errors.Is(err, limits.ErrRefreshFailed):
		return handler.ErrServiceUnavailable.WithMessage("storage temporarily unavailable")
	}
	return handler.ErrInternal
}
