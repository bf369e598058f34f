// Package database provides database connection and migration functionality.
package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"usmleapp/internal/config"
	"usmleapp/internal/observability"
	contextutils "usmleapp/internal/utils"

	// Import PostgreSQL driver for database/sql
	_ "github.com/lib/pq"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // required for golang-migrate postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // required for golang-migrate file source

	// OpenTelemetry SQL instrumentation
	"go.nhat.io/otelsql"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Manager handles database connection setup and schema migrations
type Manager struct {
	logger *observability.Logger
}

var (
	otelDriverNameCache string
	otelDriverOnce      sync.Once
	otelDriverErr       error
)

// NewManager creates a new database manager with the provided logger
func NewManager(logger *observability.Logger) *Manager {
	return &Manager{
		logger: logger,
	}
}

// DefaultDatabaseConfig returns the default database configuration
func DefaultDatabaseConfig() config.DatabaseConfig {
	cfg := config.DatabaseConfig{
		MaxOpenConns:    config.DefaultMaxOpenConns,
		MaxIdleConns:    config.DefaultMaxIdleConns,
		ConnMaxLifetime: config.DatabaseConnMaxLifetime,
	}

	// TEST_DATABASE_URL takes precedence so integration tests never touch
	// the development database
	if testURL := os.Getenv("TEST_DATABASE_URL"); testURL != "" {
		cfg.URL = testURL
	}

	return cfg
}

// InitDB initializes and returns a database connection with migrations applied
func (dm *Manager) InitDB(databaseURL string) (result0 *sql.DB, err error) {
	_, span := observability.TraceDatabaseFunction(context.Background(), "InitDB",
		attribute.String("db.name", extractDatabaseName(databaseURL)),
		attribute.String("db.system", "postgresql"),
		attribute.Bool("migrations.enabled", true),
	)
	defer observability.FinishSpan(span, &err)
	cfg := DefaultDatabaseConfig()
	cfg.URL = databaseURL
	return dm.InitDBWithConfig(cfg)
}

// InitDBWithConfig initializes and returns a database connection with migrations and custom pool settings
func (dm *Manager) InitDBWithConfig(cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	_, span := observability.TraceDatabaseFunction(context.Background(), "InitDBWithConfig",
		attribute.String("db.name", extractDatabaseName(cfg.URL)),
		attribute.String("db.system", "postgresql"),
		attribute.Int("db.max_open_conns", cfg.MaxOpenConns),
		attribute.Int("db.max_idle_conns", cfg.MaxIdleConns),
		attribute.String("db.conn_max_lifetime", cfg.ConnMaxLifetime.String()),
	)
	defer observability.FinishSpan(span, &err)
	db, err := dm.InitDBWithoutMigrations(cfg)
	if err != nil {
		return nil, err
	}

	if err := dm.RunMigrations(cfg.URL); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(context.Background(), "Failed to close database connection after migration failure", closeErr)
		}
		return nil, err
	}

	return db, nil
}

// InitDBWithoutMigrations initializes and returns a database connection without running migrations
func (dm *Manager) InitDBWithoutMigrations(cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(context.Background(), "InitDBWithoutMigrations",
		attribute.String("db.name", extractDatabaseName(cfg.URL)),
	)
	defer observability.FinishSpan(span, &err)

	// Register the instrumented driver once per process and reuse the name
	otelDriverOnce.Do(func() {
		otelDriverNameCache, otelDriverErr = otelsql.Register("postgres",
			otelsql.WithDatabaseName(extractDatabaseName(cfg.URL)),
			otelsql.TraceQueryWithArgs(),
			otelsql.WithSystem(semconv.DBSystemPostgreSQL),
			otelsql.TraceRowsAffected(),
		)
	})
	if otelDriverErr != nil {
		return nil, contextutils.WrapError(otelDriverErr, "failed to register otelsql driver")
	}

	db, err := sql.Open(otelDriverNameCache, cfg.URL)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to open database connection")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database connection after ping failure", closeErr)
		}
		return nil, contextutils.WrapError(err, "failed to ping database")
	}

	dm.logger.Info(ctx, "Database connection established", map[string]interface{}{
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime,
	})

	return db, nil
}

// RunMigrations applies any pending golang-migrate migrations
func (dm *Manager) RunMigrations(databaseURL string) (err error) {
	migrationsPath, err := dm.GetMigrationsPath()
	if err != nil {
		dm.logger.Error(context.Background(), "Could not find migrations path", err)
		return err
	}

	_, span := observability.TraceDatabaseFunction(context.Background(), "RunMigrations",
		attribute.String("db.system", "postgresql"),
		attribute.String("migration.path", migrationsPath),
	)
	defer observability.FinishSpan(span, &err)

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("TEST_DATABASE_URL")
	}
	if databaseURL == "" {
		err = errors.New("DATABASE_URL or TEST_DATABASE_URL must be set for migrations")
		return err
	}

	files, err := os.ReadDir(migrationsPath)
	if err != nil {
		dm.logger.Error(context.Background(), "Could not read migrations directory", err)
		return err
	}

	migrationFileCount := 0
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			migrationFileCount++
		}
	}
	span.SetAttributes(attribute.Int("migration.files.count", migrationFileCount))

	if migrationFileCount == 0 {
		err = errors.New("no migration files found in " + migrationsPath)
		return err
	}

	migrationSourceURL := "file://" + filepath.ToSlash(migrationsPath)

	dm.logger.Info(context.Background(), "Applying database migrations", map[string]interface{}{
		"migrations_path": migrationsPath,
		"source_url":      migrationSourceURL,
	})

	m, err := migrate.New(migrationSourceURL, databaseURL)
	if err != nil {
		err = contextutils.WrapError(err, "failed to initialize golang-migrate")
		return err
	}
	defer func() {
		if _, closeErr := m.Close(); closeErr != nil {
			dm.logger.Error(context.Background(), "Error closing migration", closeErr)
		}
	}()

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		err = contextutils.WrapError(err, "golang-migrate up failed")
		return err
	}
	if err == migrate.ErrNoChange {
		dm.logger.Info(context.Background(), "No new migrations to apply")
		err = nil
	} else {
		dm.logger.Info(context.Background(), "Migrations applied successfully")
	}
	return nil
}

// GetMigrationsPath returns the path to the migrations directory. The
// MIGRATIONS_PATH env var wins; otherwise walk up from the working directory.
func (dm *Manager) GetMigrationsPath() (result0 string, err error) {
	_, span := observability.TraceDatabaseFunction(context.Background(), "GetMigrationsPath",
		attribute.String("migration.dir.name", "migrations"),
	)
	defer observability.FinishSpan(span, &err)

	if envPath := os.Getenv("MIGRATIONS_PATH"); envPath != "" {
		if _, statErr := os.Stat(envPath); statErr != nil {
			err = contextutils.WrapError(statErr, "MIGRATIONS_PATH does not exist")
			return "", err
		}
		abs, absErr := filepath.Abs(envPath)
		if absErr != nil {
			err = absErr
			return "", err
		}
		span.SetAttributes(attribute.String("migration.found_path", abs))
		return abs, nil
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	span.SetAttributes(attribute.String("search.start_dir", currentDir))

	for {
		migrationsPath := filepath.Join(currentDir, "migrations")
		if _, statErr := os.Stat(migrationsPath); statErr == nil {
			span.SetAttributes(attribute.String("migration.found_path", migrationsPath))
			return migrationsPath, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			span.SetAttributes(attribute.String("search.result", "not_found"))
			err = contextutils.ErrorWithContextf("migrations directory not found in any parent directory")
			return "", err
		}
		currentDir = parentDir
	}
}

// extractDatabaseName extracts the database name from a PostgreSQL connection string
func extractDatabaseName(databaseURL string) string {
	if idx := strings.LastIndex(databaseURL, "/"); idx != -1 && idx < len(databaseURL)-1 {
		dbPart := databaseURL[idx+1:]
		if q := strings.Index(dbPart, "?"); q != -1 {
			dbPart = dbPart[:q]
		}
		if dbPart != "" {
			return dbPart
		}
	}
	return "usmle_db"
}
