package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"
)

// RunMigrations applies any pending schema migrations from migrationsPath.
// Safe to run on every startup: an up-to-date schema is a no-op.
func RunMigrations(db *sql.DB, migrationsPath string, logger *zap.Logger) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("open migration source %s: %w", migrationsPath, err)
	}
	defer closeMigrator(m, logger)

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("schema already up to date")
		return nil
	case err != nil:
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("schema migrated",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))
	return nil
}

func closeMigrator(m *migrate.Migrate, logger *zap.Logger) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Warn("migration source close failed", zap.Error(srcErr))
	}
	if dbErr != nil {
		logger.Warn("migration database close failed", zap.Error(dbErr))
	}
}
