package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToOpenDBConnection = errors.New("pg: failed to open db connection")
	ErrEmptyConnectionString    = errors.New("pg: empty connection string, set DATABASE_URL")
	ErrHealthcheckFailed        = errors.New("pg: healthcheck failed")
	ErrFailedToParseDBConfig    = errors.New("pg: failed to parse db config")
	ErrFailedToApplyMigrations  = errors.New("pg: failed to apply migrations")
	ErrMigrationsDirNotFound    = errors.New("pg: migrations directory not found")
	ErrMigrationPathNotProvided = errors.New("pg: migrations path not provided")
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// IsNotFoundError reports whether err is pgx.ErrNoRows.
func IsNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError reports a unique constraint violation.
func IsDuplicateKeyError(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// IsForeignKeyViolationError reports a reference to a missing row.
func IsForeignKeyViolationError(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
