// Package sqlstore keeps auctions and bid history in PostgreSQL or MySQL.
package sqlstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"opal-bid-monitor/internal/config"
	"opal-bid-monitor/pkg/logger"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

//go:embed migrations
var migrations embed.FS

// DB wraps the sqlx handle with the dialect it was opened with.
type DB struct {
	*sqlx.DB
	driver string
	log    logger.Logger
}

// Open connects, applies the pool settings and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	dsn, err := normalizeDSN(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w, and failed to close connection: %w", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Connected to database", "driver", driver)
	return &DB{DB: db, driver: driver, log: log}, nil
}

// normalizeDSN validates the driver and, for MySQL, forces UTC time parsing.
func normalizeDSN(driver, dsn string) (string, error) {
	switch driver {
	case DriverPostgres:
		return dsn, nil
	case DriverMySQL:
		parsed, err := gomysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		parsed.ParseTime = true
		parsed.Loc = time.UTC
		return parsed.FormatDSN(), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (db *DB) Driver() string {
	return db.driver
}

// Ping checks the connection with a round trip query.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := db.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	db.log.Info("Closing database connection")
	return db.DB.Close()
}

// RunMigrations applies the embedded migrations for the current dialect.
func (db *DB) RunMigrations() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		db.log.Warn("Could not get migration version", "error", err)
	} else {
		db.log.Info("Migration completed", "version", version, "dirty", dirty)
	}
	return nil
}

// RollbackMigrations undoes the given number of migration steps.
func (db *DB) RollbackMigrations(steps int) error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}

	if err := m.Steps(-steps); err != nil {
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}
	return nil
}

// newMigrate does not close the returned instance: closing it would close
// the shared connection pool too.
func (db *DB) newMigrate() (*migrate.Migrate, error) {
	source, err := iofs.New(migrations, "migrations/"+db.driver)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	var m *migrate.Migrate
	switch db.driver {
	case DriverPostgres:
		driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to create migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", source, DriverPostgres, driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migration instance: %w", err)
		}
	case DriverMySQL:
		driver, err := migratemysql.WithInstance(db.DB.DB, &migratemysql.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to create migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", source, DriverMySQL, driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migration instance: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", db.driver)
	}
	return m, nil
}
