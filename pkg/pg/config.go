package pg

import "time"

// Config holds the pool and migration settings, read from the environment.
type Config struct {
	ConnectionString string `env:"DATABASE_URL,required"`

	MaxConns          int32         `env:"PG_MAX_CONNS" envDefault:"10"`
	MinConns          int32         `env:"PG_MIN_CONNS" envDefault:"2"`
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`

	RetryAttempts int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"2s"`

	MigrationsPath  string `env:"PG_MIGRATIONS_PATH" envDefault:"db/migrations"`
	MigrationsTable string `env:"PG_MIGRATIONS_TABLE" envDefault:"goose_db_version"`
}
