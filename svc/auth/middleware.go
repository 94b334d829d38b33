package auth

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/notekit/pkg/logger"
)

const (
	// UserIDHeader carries the user resolved by the upstream identity proxy.
	UserIDHeader = "X-User-ID"
	// SessionIDHeader identifies the client session.
	SessionIDHeader = "X-Session-ID"

	maxSessionIDLength = 128
)

var validSessionID = regexp.MustCompile("^[a-zA-Z0-9_-]+$")

// Middleware resolves the caller's identity from trusted headers set by the
// upstream proxy. A missing or malformed user ID leaves the request
// anonymous. A malformed session ID is dropped.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if userID, err := uuid.Parse(r.Header.Get(UserIDHeader)); err == nil && userID != uuid.Nil {
			ctx = SetUserIDToContext(ctx, userID)
		}
		if sessionID := r.Header.Get(SessionIDHeader); isValidSessionID(sessionID) {
			ctx = SetSessionIDToContext(ctx, sessionID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isValidSessionID(id string) bool {
	if id == "" || len(id) > maxSessionIDLength {
		return false
	}
	return validSessionID.MatchString(id)
}

// LogExtractors returns context extractors that add the request, user and
// session identifiers to every log record.
func LogExtractors() []logger.ContextExtractor {
	return []logger.ContextExtractor{
		func(ctx context.Context) (slog.Attr, bool) {
			if id := middleware.GetReqID(ctx); id != "" {
				return slog.String("request_id", id), true
			}
			return slog.Attr{}, false
		},
		func(ctx context.Context) (slog.Attr, bool) {
			if id := GetUserIDFromContext(ctx); id != uuid.Nil {
				return logger.UserID(id), true
			}
			return slog.Attr{}, false
		},
		func(ctx context.Context) (slog.Attr, bool) {
			if id := GetSessionIDFromContext(ctx); id != "" {
				return logger.SessionID(id), true
			}
			return slog.Attr{}, false
		},
	}
}
