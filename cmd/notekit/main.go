package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/notekit/modules/notebook"
	"github.com/dmitrymomot/notekit/pkg/config"
	"github.com/dmitrymomot/notekit/pkg/httpserver"
	"github.com/dmitrymomot/notekit/pkg/limits"
	"github.com/dmitrymomot/notekit/pkg/logger"
	"github.com/dmitrymomot/notekit/pkg/notes"
	"github.com/dmitrymomot/notekit/pkg/pg"
	"github.com/dmitrymomot/notekit/pkg/redis"
	"github.com/dmitrymomot/notekit/pkg/subscription"
	"github.com/dmitrymomot/notekit/svc/auth"
	notesvc "github.com/dmitrymomot/notekit/svc/notes"
	subsvc "github.com/dmitrymomot/notekit/svc/subscription"
)

const (
	storagePostgres = "postgres"
	storageMemory   = "memory"
)

type appConfig struct {
	Env             string `env:"APP_ENV" envDefault:"development"`
	Name            string `env:"APP_NAME" envDefault:"notekit"`
	LogLevel        string `env:"LOG_LEVEL"`
	Storage         string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	PlansFile       string `env:"PLANS_FILE" envDefault:"config/plans.yaml"`
	DefaultPlanID   string `env:"DEFAULT_PLAN_ID" envDefault:"free"`
	SessionCapacity int    `env:"LIMITS_SESSION_CAPACITY" envDefault:"10000"`

	// Non-empty makes sandbox payments go through a simulated hosted checkout.
	SandboxCheckoutURL string `env:"SANDBOX_CHECKOUT_URL"`
}

// repository is what the binary needs from a subscription backend.
type repository interface {
	subscription.Repository
	subscription.PlanWriter
	subscription.Enroller
}

type invalidator interface {
	limits.Invalidator
	Close() error
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.Name),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithContextExtractors(auth.LogExtractors()...),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "notekit stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	var (
		httpCfg   httpserver.Config
		redisCfg  redis.Config
		paddleCfg subscription.PaddleConfig
	)
	if err := errors.Join(config.Load(&httpCfg), config.Load(&redisCfg), config.Load(&paddleCfg)); err != nil {
		return err
	}

	checks := map[string]httpserver.Check{}
	var hooks []httpserver.Option

	// Storage
	var (
		repo  repository
		store notes.Store
	)
	switch cfg.Storage {
	case storagePostgres:
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
			return err
		}
		repo = subsvc.NewPostgresRepository(pool)
		store = notesvc.NewPostgresStore(pool)
		checks["postgres"] = pg.Healthcheck(pool)

	case storageMemory:
		log.WarnContext(ctx, "using in-memory storage, data is lost on restart")
		mem := notesvc.NewMemoryStore()
		repo = subsvc.NewMemoryRepository(mem, nil)
		store = mem

	default:
		return errors.New("unknown STORAGE_DRIVER " + cfg.Storage)
	}

	plans, err := subscription.SyncPlans(ctx, subscription.NewYAMLPlanSource(cfg.PlansFile), repo)
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "plan catalog synced", slog.Int("plans", len(plans)))

	// Invalidation
	var inv invalidator
	if redisCfg.Enabled() {
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer client.Close()

		inv = redisInvalidator{limits.NewRedisInvalidator(client, limits.WithRedisLogger(log))}
		checks["redis"] = redis.Healthcheck(client)
	} else {
		inv = limits.NewMemoryInvalidator(256)
	}
	hooks = append(hooks, httpserver.WithShutdownHook(func(context.Context) error { return inv.Close() }))

	// Payments
	var payments subscription.PaymentProvider
	if paddleCfg.Enabled() {
		paddle, err := subscription.NewPaddleProvider(paddleCfg)
		if err != nil {
			return err
		}
		payments = paddle
	} else {
		log.WarnContext(ctx, "PADDLE_API_KEY not set, using sandbox payments")
		var opts []subscription.SandboxOption
		if cfg.SandboxCheckoutURL != "" {
			opts = append(opts, subscription.WithSandboxCheckout(cfg.SandboxCheckoutURL))
		}
		payments = subscription.NewSandboxProvider(opts...)
	}

	svc := subscription.NewService(repo, payments,
		subscription.WithNotifier(inv),
		subscription.WithLogger(log),
	)

	hub := limits.NewHub(svc,
		limits.WithHubCapacity(cfg.SessionCapacity),
		limits.WithHubLogger(log),
		limits.WithIdentityHook(func(ctx context.Context, userID uuid.UUID) error {
			return repo.EnsureSubscription(ctx, userID, cfg.DefaultPlanID)
		}),
	)
	go func() {
		if err := hub.Listen(ctx, inv); err != nil {
			log.ErrorContext(ctx, "limits invalidation listener stopped", logger.Error(err))
		}
	}()

	mod := notebook.New(hub, svc, store,
		notebook.WithNotifier(inv),
		notebook.WithLogger(log),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, checks))
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Mount("/api", mod.Handle())
	})

	srv := httpserver.New(httpCfg, append(hooks, httpserver.WithLogger(log))...)
	return srv.Run(ctx, r)
}

// redisInvalidator gives the Redis transport the Close the binary expects.
// The client itself is closed by run.
type redisInvalidator struct {
	*limits.RedisInvalidator
}

func (redisInvalidator) Close() error { return nil }
