package subscription

import "log/slog"

// ServiceOption configures a Service instance.
type ServiceOption func(*service)

// WithNotifier sets the notifier told about subscription changes.
// Nil notifiers are ignored.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the service logger. Nil loggers are ignored.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.logger = l
		}
	}
}
