package pg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrymomot/notekit/pkg/logger"
)

// Migrate applies pending goose migrations from cfg.MigrationsPath.
// goose needs database/sql, so the pool is bridged through pgx/stdlib.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, log *slog.Logger) error {
	if cfg.MigrationsPath == "" {
		return errors.Join(ErrFailedToApplyMigrations, ErrMigrationPathNotProvided)
	}
	if log == nil {
		log = slog.Default()
	}

	if _, err := os.Stat(cfg.MigrationsPath); err != nil {
		if os.IsNotExist(err) {
			return errors.Join(ErrMigrationsDirNotFound, err)
		}
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close migration connection", logger.Error(err))
		}
	}()

	goose.SetLogger(gooseLogger{ctx: ctx, log: log.With(logger.Component("migrations"))})
	goose.SetTableName(cfg.MigrationsTable)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	if err := goose.UpContext(ctx, db, cfg.MigrationsPath); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	return nil
}

// gooseLogger routes goose output into slog.
type gooseLogger struct {
	ctx context.Context
	log *slog.Logger
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.ErrorContext(l.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.InfoContext(l.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}
