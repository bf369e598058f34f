// Package main provides the main entry point for the exam prep backend server.
// It sets up the HTTP server, database connections, middleware, and API routes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"usmleapp/internal/config"
	"usmleapp/internal/di"
	"usmleapp/internal/handlers"
	"usmleapp/internal/observability"
	contextutils "usmleapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// Application encapsulates the main application logic and can be tested
type Application struct {
	container di.ServiceContainerInterface
	router    *gin.Engine
}

// NewApplication creates a new application instance
func NewApplication(container di.ServiceContainerInterface) (*Application, error) {
	userService, err := container.GetUserService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get user service")
	}

	contentService, err := container.GetContentService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get content service")
	}

	filterService, err := container.GetFilterService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get filter service")
	}

	practiceSetService, err := container.GetPracticeSetService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get practice set service")
	}

	attemptService, err := container.GetAttemptService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get attempt service")
	}

	progressService, err := container.GetProgressService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get progress service")
	}

	conversationService, err := container.GetConversationService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get conversation service")
	}

	chatService, err := container.GetChatService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get chat service")
	}

	feedbackService, err := container.GetFeedbackService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get feedback service")
	}

	router := handlers.NewRouter(
		container.GetConfig(),
		userService,
		contentService,
		filterService,
		practiceSetService,
		attemptService,
		progressService,
		conversationService,
		chatService,
		feedbackService,
		container.GetLogger(),
	)

	return &Application{
		container: container,
		router:    router,
	}, nil
}

// Run starts the application and returns an error if it fails to start
func (a *Application) Run(ctx context.Context, port string) error {
	serverErr := make(chan error, 1)
	go func() {
		if err := a.router.Run(":" + port); err != nil {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErr:
		return contextutils.WrapError(err, "server failed")
	}
}

// Shutdown gracefully shuts down the application
func (a *Application) Shutdown(ctx context.Context) error {
	return a.container.Shutdown(ctx)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "usmle-backend")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if shutdownTP, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
			if err := shutdownTP.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
			}
		}
		if mp != nil {
			if err := mp.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
	}()

	logger.Info(ctx, "Starting exam prep backend service", map[string]interface{}{
		"port":     cfg.Server.Port,
		"logLevel": cfg.Server.LogLevel,
	})

	container := di.NewServiceContainer(cfg, logger)

	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, nil)
		os.Exit(1)
	}

	if err := container.EnsureAdminUser(ctx); err != nil {
		logger.Error(ctx, "Failed to ensure admin user exists", err, map[string]interface{}{"admin_username": cfg.Server.AdminUsername})
		os.Exit(1)
	}

	app, err := NewApplication(container)
	if err != nil {
		logger.Error(ctx, "Failed to create application", err, nil)
		os.Exit(1)
	}

	appErr := make(chan error, 1)
	go func() {
		if err := app.Run(ctx, cfg.Server.Port); err != nil {
			appErr <- err
		}
	}()

	select {
	case <-shutdownCh:
		logger.Info(ctx, "Received shutdown signal, shutting down gracefully", nil)
	case err := <-appErr:
		logger.Error(ctx, "Application failed", err, nil)
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Error during application shutdown", err, nil)
		os.Exit(1)
	}

	logger.Info(ctx, "Shutdown completed successfully", nil)
}
