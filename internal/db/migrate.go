package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

// Direction selects which way RunMigrations moves the schema.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// RunMigrations applies the embedded migrations for the configured driver.
// The migrator owns a dedicated handle that is closed before returning.
func RunMigrations(config Config, direction Direction, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	m, err := newMigrator(config)
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			logger.Warn("failed to close migrator", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
		}
	}()

	switch direction {
	case Up, "":
		err = m.Up()
	case Down:
		err = m.Down()
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("database schema is up to date", zap.String("driver", string(config.Driver)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations %s: %w", direction, err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", verr)
	}
	logger.Info("migrations applied",
		zap.String("driver", string(config.Driver)),
		zap.String("direction", string(direction)),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

func newMigrator(config Config) (*migrate.Migrate, error) {
	driver := config.Driver
	if driver == "" {
		driver = DriverPostgres
	}
	src, err := iofs.New(migrationsFS, "migrations/"+string(driver))
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	switch driver {
	case DriverPostgres:
		sqlDB, err := sql.Open("pgx", config.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open migration connection: %w", err)
		}
		target, err := migratepgx.WithInstance(sqlDB, &migratepgx.Config{})
		if err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to prepare postgres migrations: %w", err)
		}
		return migrate.NewWithInstance("iofs", src, "pgx5", target)
	case DriverSQLite:
		if config.Path == "" {
			return nil, fmt.Errorf("sqlite database path is required")
		}
		sqlDB, err := sql.Open("sqlite", sqliteDSN(config.Path))
		if err != nil {
			return nil, fmt.Errorf("failed to open migration connection: %w", err)
		}
		target, err := migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
		if err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to prepare sqlite migrations: %w", err)
		}
		return migrate.NewWithInstance("iofs", src, "sqlite", target)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
