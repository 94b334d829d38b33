package handler

import "net/http"

// HTTPError is an error with a status code and a machine-readable key.
type HTTPError struct {
	Code    int
	Key     string
	Message string
}

func (e HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Key
}

// WithMessage returns a copy of e carrying a user-facing message.
func (e HTTPError) WithMessage(msg string) HTTPError {
	e.Message = msg
	return e
}

var (
	ErrBadRequest         = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrUnauthorized       = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized"}
	ErrPaymentRequired    = HTTPError{Code: http.StatusPaymentRequired, Key: "payment_required"}
	ErrNotFound           = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrConflict           = HTTPError{Code: http.StatusConflict, Key: "conflict"}
	ErrUnsupportedMedia   = HTTPError{Code: http.StatusUnsupportedMediaType, Key: "unsupported_media_type"}
	ErrUnprocessable      = HTTPError{Code: http.StatusUnprocessableEntity, Key: "validation_error"}
	ErrInternal           = HTTPError{Code: http.StatusInternalServerError, Key: "internal_error"}
	ErrServiceUnavailable = HTTPError{Code: http.StatusServiceUnavailable, Key: "service_unavailable"}
)
