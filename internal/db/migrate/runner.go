// Package migrate applies the embedded schema migrations with golang-migrate.
package migrate

import (
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jrsteele09/go-session-server/internal/db"
	"github.com/pkg/errors"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Run migrates the database at dsn in the given direction. Being already at
// the target version is not an error.
func Run(dsn string, direction Direction) error {
	if dsn == "" {
		return errors.New("[migrate.Run] DATABASE_URL is not set")
	}
	if direction != Up && direction != Down {
		return errors.Errorf("[migrate.Run] direction must be up or down, got %q", direction)
	}

	source, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return errors.Wrap(err, "[migrate.Run] source")
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return errors.Wrap(err, "[migrate.Run]")
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrapf(err, "[migrate.Run] %s", direction)
	}
	return nil
}
