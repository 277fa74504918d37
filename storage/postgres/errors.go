// Package postgres implements the relational repositories on database/sql
// with the pgx driver.
package postgres

import (
	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// dbError classifies driver errors that are not domain outcomes as backend
// failures.
func dbError(err error, op string) error {
	if err == nil {
		return nil
	}
	return apperrors.BackendUnavailable(errors.Wrap(err, op))
}
