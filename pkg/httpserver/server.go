package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/dmitrymomot/notekit/pkg/logger"
)

// Server runs an http.Server until its context is cancelled, then drains
// in-flight requests and runs the registered shutdown hooks in order.
type Server struct {
	cfg    Config
	logger *slog.Logger
	hooks  []func(context.Context) error

	mu  sync.Mutex
	srv *http.Server
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithShutdownHook runs fn after the listener has drained, e.g. to close
// pools or pub/sub subscriptions. Hook errors are logged.
func WithShutdownHook(fn func(context.Context) error) Option {
	return func(s *Server) {
		if fn != nil {
			s.hooks = append(s.hooks, fn)
		}
	}
}

func New(cfg Config, opts ...Option) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	s := &Server{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves h and blocks until ctx is done or the listener fails.
func (s *Server) Run(ctx context.Context, h http.Handler) error {
	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      h,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.srv = srv
	s.mu.Unlock()

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return errors.Join(ErrStart, err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.InfoContext(ctx, "http server started", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Join(ErrStart, err)
		}
		return nil
	case <-ctx.Done():
	}

	return s.shutdown(context.WithoutCancel(ctx))
}

func (s *Server) shutdown(ctx context.Context) error {
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	s.logger.InfoContext(ctx, "http server shutting down")
	var shutdownErr error
	if err := s.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		shutdownErr = errors.Join(ErrShutdown, err)
	}

	for _, hook := range s.hooks {
		if err := hook(ctx); err != nil {
			s.logger.ErrorContext(ctx, "shutdown hook failed", logger.Error(err))
		}
	}
	return shutdownErr
}
