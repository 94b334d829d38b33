package logger

import (
	"log/slog"

	"github.com/google/uuid"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user under the key "user_id".
// uuid.Nil yields an empty Attr.
func UserID(id uuid.UUID) slog.Attr {
	if id == uuid.Nil {
		return slog.Attr{}
	}
	return slog.String("user_id", id.String())
}

// SessionID records the session under the key "session_id".
func SessionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("session_id", id)
}

func PlanID(id string) slog.Attr {
	return slog.String("plan_id", id)
}

func TransactionID(id string) slog.Attr {
	return slog.String("transaction_id", id)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
