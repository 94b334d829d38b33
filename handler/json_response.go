package handler

import (
	"encoding/json"
	"errors"
	"net/http"
)

// JSONResponse is the envelope of every JSON body.
type JSONResponse struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type jsonResponse struct {
	status int
	body   JSONResponse
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	if j.status == http.StatusNoContent {
		return nil
	}
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

// WithStatus overrides the status code.
func WithStatus(status int) JSONOption {
	return func(r *jsonResponse) {
		r.status = status
	}
}

// WithErrorData attaches a payload to the error detail, e.g. an upgrade
// prompt alongside a 402.
func WithErrorData(data any) JSONOption {
	return func(r *jsonResponse) {
		if r.body.Error != nil {
			r.body.Error.Data = data
		}
	}
}

// JSON renders data with status 200 unless overridden.
func JSON(data any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: JSONResponse{Data: data}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NoContent renders an empty 204.
func NoContent() Response {
	return jsonResponse{status: http.StatusNoContent}
}

// JSONError renders err. An HTTPError anywhere in the chain sets the status
// and code; anything else is a 500 whose message is hidden.
func JSONError(err error, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusInternalServerError}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		r.status = httpErr.Code
		msg := httpErr.Message
		if msg == "" {
			msg = http.StatusText(httpErr.Code)
		}
		r.body.Error = &ErrorDetail{Code: httpErr.Key, Message: msg}
	} else {
		r.body.Error = &ErrorDetail{Code: ErrInternal.Key, Message: http.StatusText(http.StatusInternalServerError)}
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}
