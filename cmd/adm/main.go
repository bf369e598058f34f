// Package main provides the main entry point for the exam prep admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"usmleapp/cmd/adm/commands"
	"usmleapp/internal/config"
	"usmleapp/internal/database"
	"usmleapp/internal/observability"
	"usmleapp/internal/services"

	"github.com/spf13/cobra"
)

var (
	cfg         *config.Config
	logger      *observability.Logger
	userService *services.UserService
)

func main() {
	ctx := context.Background()

	// Set default config file if not already set
	if os.Getenv("USMLE_CONFIG_FILE") == "" {
		defaultPaths := []string{
			"../merged.config.yaml",
			"../../merged.config.yaml",
			"merged.config.yaml",
		}

		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv("USMLE_CONFIG_FILE", path); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to set USMLE_CONFIG_FILE environment variable: %v\n", err)
					os.Exit(1)
				}
				break
			}
		}
	}

	var err error
	cfg, err = config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Quiet logging and no OTLP export for the CLI
	cfg.Server.LogLevel = "error"
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, loggerInstance, err := observability.SetupObservability(&cfg.OpenTelemetry, "usmle-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	logger = loggerInstance

	dbManager := database.NewManager(logger)

	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		logger.Error(ctx, "Failed to connect to database", err, map[string]interface{}{"db_url": cfg.Database.URL})
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	userService = services.NewUserService(db, cfg, logger)

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Exam Prep Administration Tool",
		Long: `Exam Prep Administration Tool

A CLI tool for administering the exam prep backend.
Provides commands for user management, question import, and database operations.`,

		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.UserCommands(userService, logger, cfg.Database.URL))
	rootCmd.AddCommand(commands.DatabaseCommands(logger, db, cfg.Database.URL))
	rootCmd.AddCommand(commands.QuestionCommands(logger, db))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
