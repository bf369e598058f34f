// Package main provides a small CLI utility to reset the application's
// database to a clean state. It is intended for local development and
// testing only and will permanently delete all data when run.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"usmleapp/internal/config"
	"usmleapp/internal/database"
	"usmleapp/internal/observability"
	"usmleapp/internal/services"
)

// fatalIfErr logs the error with context and exits
func fatalIfErr(ctx context.Context, logger *observability.Logger, msg string, err error, fields map[string]interface{}) {
	logger.Error(ctx, msg, err, fields)
	os.Exit(1)
}

func main() {
	ctx := context.Background()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false

	_, _, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "reset-db")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("DATABASE RESET UTILITY")
	fmt.Println("======================")
	fmt.Println("This will PERMANENTLY DELETE ALL DATA in the database!")
	fmt.Println("This includes:")
	fmt.Println("- All users (including admin)")
	fmt.Println("- All questions and practice sets")
	fmt.Println("- All attempts and progress")
	fmt.Println("- All conversations and feedback")
	fmt.Println("")

	if cfg.Database.URL == "" {
		fatalIfErr(ctx, logger, "Database URL is empty", nil, map[string]interface{}{"error": "Database URL is empty. Cannot proceed with reset."})
	}

	fmt.Println("Database Information:")
	fmt.Printf("URL: %s\n", maskDatabaseURL(cfg.Database.URL))
	fmt.Println("")

	if !confirmReset() {
		fmt.Println("Reset cancelled.")
		return
	}

	dbManager := database.NewManager(logger)

	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to connect to database", err, map[string]interface{}{"db_url": cfg.Database.URL})
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	fmt.Println("Dropping all tables...")
	logger.Info(ctx, "Dropping public schema", map[string]interface{}{"service": "reset-db"})

	if _, err := db.ExecContext(ctx, "DROP SCHEMA public CASCADE; CREATE SCHEMA public"); err != nil {
		fatalIfErr(ctx, logger, "Failed to drop schema", err, map[string]interface{}{"db_url": cfg.Database.URL})
	}

	fmt.Println("Running database migrations...")
	logger.Info(ctx, "Running database migrations", map[string]interface{}{"service": "reset-db"})

	if err := dbManager.RunMigrations(cfg.Database.URL); err != nil {
		fatalIfErr(ctx, logger, "Failed to run migrations", err, map[string]interface{}{"db_url": cfg.Database.URL})
	}

	fmt.Println("Database migrations completed successfully!")

	fmt.Printf("Recreating admin user '%s'...\n", cfg.Server.AdminUsername)
	userService := services.NewUserService(db, cfg, logger)
	if err := userService.EnsureAdminUser(ctx); err != nil {
		fatalIfErr(ctx, logger, "Failed to ensure admin user exists", err, map[string]interface{}{"admin_username": cfg.Server.AdminUsername})
	}

	fmt.Println("Admin user recreated successfully!")
	fmt.Println("")
	fmt.Printf("Admin user credentials:\n")
	fmt.Printf("   Username: %s\n", cfg.Server.AdminUsername)
	fmt.Printf("   Password: %s\n", cfg.Server.AdminPassword)
	fmt.Println("")
	fmt.Println("Database is now ready to use!")
}

func confirmReset() bool {
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("Are you sure you want to reset the database? (type 'yes' to confirm): ")
		response, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("Error reading input:", err)
			continue
		}

		response = strings.TrimSpace(strings.ToLower(response))

		switch response {
		case "yes":
			return true
		case "no", "":
			return false
		default:
			fmt.Println("Please type 'yes' to confirm or 'no' to cancel.")
		}
	}
}

func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) == 2 {
			return "postgres://***:***@" + parts[1]
		}
	}
	return url
}
