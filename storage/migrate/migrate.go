// Package migrate applies the chain database schema.
package migrate

import (
	"errors"
	"fmt"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres driver for golang_migrate
	_ "github.com/golang-migrate/migrate/v4/source/file"       // support file scheme for golang_migrate
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/storage/migrations"
)

// Up migrates the database at connString to the latest schema. source is a
// golang-migrate source URL such as file://storage/migrations; when empty
// the schema compiled into the binary is used.
func Up(source string, connString string, logger *log.Logger) error {
	m, err := newMigrate(source, connString)
	if err != nil {
		logger.Error("migrator failed to start",
			"error", err,
		)
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("migrator close failed", "source_err", srcErr, "db_err", dbErr)
		}
	}()

	switch err = m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("no migrations needed to be applied")
	case err != nil:
		logger.Error("migrations failed",
			"error", err,
		)
		return err
	default:
		logger.Info("migrations completed")
	}
	return nil
}

func newMigrate(source string, connString string) (*migrate.Migrate, error) {
	if source != "" {
		return migrate.New(source, connString)
	}
	driver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", driver, connString)
}
