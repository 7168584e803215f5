package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
)

// Migrator keeps the evaluations schema current. Versioned SQL files from
// the migrations directory are applied in order before the server accepts
// traffic, so the catalog and evaluation tables always match the code.
type Migrator struct {
	m   *migrate.Migrate
	log *logrus.Entry
}

// NewMigrator opens the file-based migration source against the database
// at databaseURL.
func NewMigrator(databaseURL, migrationsDir string, logger *logrus.Logger) (*Migrator, error) {
	m, err := migrate.New("file://"+migrationsDir, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening migrations from %s: %w", migrationsDir, err)
	}
	return &Migrator{m: m, log: logger.WithField("component", "migrator")}, nil
}

// Up applies every pending migration. A schema already at the latest
// version is not an error.
func (g *Migrator) Up() error {
	switch err := g.m.Up(); {
	case err == nil:
		g.logVersion("Schema migrated")
	case errors.Is(err, migrate.ErrNoChange):
		g.log.Debug("Schema already current")
	default:
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Down reverts the most recently applied migration.
func (g *Migrator) Down() error {
	switch err := g.m.Steps(-1); {
	case err == nil:
		g.logVersion("Schema reverted one step")
	case errors.Is(err, migrate.ErrNoChange):
		g.log.Debug("Nothing to revert")
	default:
		return fmt.Errorf("reverting migration: %w", err)
	}
	return nil
}

func (g *Migrator) logVersion(msg string) {
	version, dirty, err := g.m.Version()
	if err != nil {
		g.log.WithError(err).Warn("Schema version unavailable")
		return
	}
	g.log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info(msg)
}

// Close releases the source and database handles, joining their errors.
func (g *Migrator) Close() error {
	sourceErr, dbErr := g.m.Close()
	return errors.Join(sourceErr, dbErr)
}
