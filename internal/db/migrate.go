package db

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migration sets. Each service owns one database and one set.
const (
	SetOrder     = "order"
	SetInventory = "inventory"
)

//go:embed migrations/order/*.sql migrations/inventory/*.sql
var migrationsFS embed.FS

// RunMigrations applies all pending migrations of set to the database at dsn.
// Every set keeps its own version table so both can share one database in tests.
func RunMigrations(dsn, set string, logger *slog.Logger) error {
	if set != SetOrder && set != SetInventory {
		return fmt.Errorf("unknown migration set %q", set)
	}

	// Open a separate connection for migrations
	db, err := openDB(dsn)
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}
	defer db.Close()

	sourceDriver, err := iofs.New(migrationsFS, "migrations/"+set)
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations_" + set,
	})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("migrations applied", "set", set, "version", version, "dirty", dirty)
	return nil
}
