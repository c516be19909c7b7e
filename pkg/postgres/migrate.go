package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // file:// source
)

// RunMigrations brings the schema up to the newest version. The source is a
// golang-migrate URL, e.g. "file://internal/infrastructure/postgres/migrations".
// The migrations carry the row-level security policies together with the
// tables they guard; servicingd runs this before accepting any traffic. A
// schema that is already current is not an error.
func RunMigrations(dsn, source string) error {
	m, err := migrate.New(source, dsn)
	if err != nil {
		return fmt.Errorf("postgres: open migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		version, dirty, verr := m.Version()
		if verr != nil {
			return fmt.Errorf("postgres: migrate up: %w", err)
		}
		return fmt.Errorf("postgres: migrate up from version %d (dirty=%t): %w", version, dirty, err)
	}
	return nil
}

// RunMigrationsDown tears the schema back down. Meant for disposable
// databases in development; nothing in the service calls it.
func RunMigrationsDown(dsn, source string) error {
	m, err := migrate.New(source, dsn)
	if err != nil {
		return fmt.Errorf("postgres: open migrator: %w", err)
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres: migrate down: %w", err)
	}
	return nil
}
