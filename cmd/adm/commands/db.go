// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"usmleapp/internal/database"
	"usmleapp/internal/observability"
	contextutils "usmleapp/internal/utils"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(logger *observability.Logger, db *sql.DB, databaseURL string) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the exam prep backend.

Available commands:
  migrate   - Apply pending schema migrations
  status    - Show the current migration version
  stats     - Show database statistics`,
	}

	dbCmd.AddCommand(migrateCmd(logger, databaseURL))
	dbCmd.AddCommand(migrationStatusCmd(logger, databaseURL))
	dbCmd.AddCommand(statsCmd(logger, db))

	return dbCmd
}

// migrateCmd returns the migrate command
func migrateCmd(logger *observability.Logger, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long:  `Apply all pending schema migrations to the configured database.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			logger.Info(ctx, "Running migrations", map[string]interface{}{"database_url": maskDatabaseURL(databaseURL)})

			dm := database.NewManager(logger)
			if err := dm.RunMigrations(databaseURL); err != nil {
				return contextutils.WrapError(err, "failed to run migrations")
			}

			fmt.Println("Migrations applied")
			return nil
		},
	}
}

// migrationStatusCmd returns the status command
func migrationStatusCmd(logger *observability.Logger, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		RunE: func(_ *cobra.Command, _ []string) error {
			dm := database.NewManager(logger)
			migrationsPath, err := dm.GetMigrationsPath()
			if err != nil {
				return contextutils.WrapError(err, "failed to locate migrations directory")
			}

			m, err := migrate.New("file://"+migrationsPath, databaseURL)
			if err != nil {
				return contextutils.WrapError(err, "failed to create migration instance")
			}
			defer func() {
				if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close migration instance: %v %v\n", srcErr, dbErr)
				}
			}()

			version, dirty, err := m.Version()
			if err == migrate.ErrNilVersion {
				fmt.Println("No migrations applied yet")
				return nil
			}
			if err != nil {
				return contextutils.WrapError(err, "failed to read migration version")
			}

			fmt.Printf("Version: %d (dirty: %v)\n", version, dirty)
			return nil
		},
	}
}

// statsCmd returns the stats command
func statsCmd(logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Long:  `Show row counts for the core content and activity tables.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			logger.Info(ctx, "Diagnostic info", map[string]interface{}{"config_file": os.Getenv("USMLE_CONFIG_FILE"), "database": databaseSummary(db)})

			tables := []string{"users", "questions", "user_attempts", "custom_practice_sets", "conversations", "feedback"}
			for _, table := range tables {
				var count int
				// Table names come from the fixed list above, never user input
				if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
					return contextutils.WrapErrorf(err, "failed to count rows in %s", table)
				}
				fmt.Printf("%-22s %d\n", table, count)
			}

			return nil
		},
	}
}
