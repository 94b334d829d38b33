package pg_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notekit/pkg/pg"
)

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, pg.IsNotFoundError(fmt.Errorf("scan: %w", pgx.ErrNoRows)))
	assert.False(t, pg.IsNotFoundError(nil))

	assert.True(t, pg.IsDuplicateKeyError(unique))
	assert.False(t, pg.IsDuplicateKeyError(fk))
	assert.False(t, pg.IsDuplicateKeyError(nil))

	assert.True(t, pg.IsForeignKeyViolationError(fk))
	assert.False(t, pg.IsForeignKeyViolationError(unique))
	assert.False(t, pg.IsForeignKeyViolationError(errors.New("other")))
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	ok := pg.Healthcheck(pingerFunc(func(context.Context) error { return nil }))
	require.NoError(t, ok(context.Background()))

	down := errors.New("connection refused")
	failing := pg.Healthcheck(pingerFunc(func(context.Context) error { return down }))
	err := failing(context.Background())
	require.ErrorIs(t, err, pg.ErrHealthcheckFailed)
	require.ErrorIs(t, err, down)
}

func TestConnect(t *testing.T) {
	t.Parallel()

	t.Run("empty connection string", func(t *testing.T) {
		t.Parallel()
		_, err := pg.Connect(context.Background(), pg.Config{})
		require.ErrorIs(t, err, pg.ErrEmptyConnectionString)
	})

	t.Run("invalid connection string", func(t *testing.T) {
		t.Parallel()
		_, err := pg.Connect(context.Background(), pg.Config{ConnectionString: "postgres://%zz"})
		require.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
	})
}

func TestMigrate(t *testing.T) {
	t.Parallel()

	t.Run("path required", func(t *testing.T) {
		t.Parallel()
		err := pg.Migrate(context.Background(), nil, pg.Config{}, nil)
		require.ErrorIs(t, err, pg.ErrMigrationPathNotProvided)
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Parallel()
		err := pg.Migrate(context.Background(), nil, pg.Config{MigrationsPath: t.TempDir() + "/absent"}, nil)
		require.ErrorIs(t, err, pg.ErrMigrationsDirNotFound)
	})
}
