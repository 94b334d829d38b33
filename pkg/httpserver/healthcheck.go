package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/notekit/handler"
	"github.com/dmitrymomot/notekit/pkg/logger"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// LivenessHandler always answers 200.
func LivenessHandler() http.HandlerFunc {
	return handler.Wrap(func(*http.Request) handler.Response {
		return handler.JSON(map[string]string{"status": "alive"})
	}, nil)
}

// ReadinessHandler answers 200 when every check passes and 503 otherwise.
// Check errors are logged, not returned to the caller.
func ReadinessHandler(log *slog.Logger, checks map[string]Check) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return handler.Wrap(func(r *http.Request) handler.Response {
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "readiness check failed",
					logger.Component(name),
					logger.Error(err),
				)
				return handler.JSONError(handler.ErrServiceUnavailable.WithMessage(name + " not ready"))
			}
		}
		return handler.JSON(map[string]string{"status": "ready"})
	}, log)
}
