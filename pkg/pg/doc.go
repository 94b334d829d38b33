// Package pg bootstraps the PostgreSQL layer on top of pgx/v5.
//
// Connect opens a *pgxpool.Pool from Config, retrying until the database
// answers a ping. Migrate applies the goose migrations found in
// Config.MigrationsPath through the same pool. Healthcheck wraps a ping for
// readiness probes.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//
// The IsNotFoundError, IsDuplicateKeyError and IsForeignKeyViolationError
// helpers classify driver errors so repositories can map them to their own
// sentinels.
package pg
