// Package handler renders the JSON envelope shared by every notekit endpoint
// and decodes request bodies.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/notekit/pkg/logger"
)

// Response renders itself to an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// HandlerFunc returns the Response for a request.
type HandlerFunc func(r *http.Request) Response

// Wrap adapts h to http.HandlerFunc. Render failures are logged; the
// status line is usually already written by then.
func Wrap(h HandlerFunc, log *slog.Logger) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h(r)
		if resp == nil {
			resp = JSONError(ErrInternal)
		}
		if err := resp.Render(w, r); err != nil {
			log.ErrorContext(r.Context(), "failed to render response", logger.Error(err))
		}
	}
}
