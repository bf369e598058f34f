// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"usmleapp/internal/config"
	"usmleapp/internal/database"
	"usmleapp/internal/observability"
	"usmleapp/internal/services"
	contextutils "usmleapp/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetUserService() (services.UserServiceInterface, error)
	GetContentService() (services.ContentServiceInterface, error)
	GetFilterService() (services.FilterServiceInterface, error)
	GetPracticeSetService() (services.PracticeSetServiceInterface, error)
	GetAttemptService() (services.AttemptServiceInterface, error)
	GetProgressService() (services.ProgressServiceInterface, error)
	GetConversationService() (services.ConversationServiceInterface, error)
	GetChatService() (services.ChatServiceInterface, error)
	GetFeedbackService() (services.FeedbackServiceInterface, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	EnsureAdminUser(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	sc.initializeServices(ctx)
	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetUserService returns the user service
func (sc *ServiceContainer) GetUserService() (services.UserServiceInterface, error) {
	return GetServiceAs[services.UserServiceInterface](sc, "user")
}

// GetContentService returns the content service
func (sc *ServiceContainer) GetContentService() (services.ContentServiceInterface, error) {
	return GetServiceAs[services.ContentServiceInterface](sc, "content")
}

// GetFilterService returns the question filter service
func (sc *ServiceContainer) GetFilterService() (services.FilterServiceInterface, error) {
	return GetServiceAs[services.FilterServiceInterface](sc, "filter")
}

// GetPracticeSetService returns the practice set service
func (sc *ServiceContainer) GetPracticeSetService() (services.PracticeSetServiceInterface, error) {
	return GetServiceAs[services.PracticeSetServiceInterface](sc, "practice_set")
}

// GetAttemptService returns the attempt service
func (sc *ServiceContainer) GetAttemptService() (services.AttemptServiceInterface, error) {
	return GetServiceAs[services.AttemptServiceInterface](sc, "attempt")
}

// GetProgressService returns the progress service
func (sc *ServiceContainer) GetProgressService() (services.ProgressServiceInterface, error) {
	return GetServiceAs[services.ProgressServiceInterface](sc, "progress")
}

// GetConversationService returns the conversation service
func (sc *ServiceContainer) GetConversationService() (services.ConversationServiceInterface, error) {
	return GetServiceAs[services.ConversationServiceInterface](sc, "conversation")
}

// GetChatService returns the AI chat service
func (sc *ServiceContainer) GetChatService() (services.ChatServiceInterface, error) {
	return GetServiceAs[services.ChatServiceInterface](sc, "chat")
}

// GetFeedbackService returns the feedback service
func (sc *ServiceContainer) GetFeedbackService() (services.FeedbackServiceInterface, error) {
	return GetServiceAs[services.FeedbackServiceInterface](sc, "feedback")
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// EnsureAdminUser creates the configured admin account if it does not exist
func (sc *ServiceContainer) EnsureAdminUser(ctx context.Context) error {
	userService, err := sc.GetUserService()
	if err != nil {
		return err
	}
	return userService.EnsureAdminUser(ctx)
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup runs shutdown functions in reverse order of initialization
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errs []error
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errs)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(_ context.Context) {
	userService := services.NewUserService(sc.db, sc.cfg, sc.logger)
	sc.services["user"] = userService

	contentService := services.NewContentService(sc.db, sc.cfg, sc.logger)
	sc.services["content"] = contentService

	filterService := services.NewFilterService(sc.db, sc.cfg, sc.logger)
	sc.services["filter"] = filterService

	// Practice sets materialize pools computed by the filter service
	practiceSetService := services.NewPracticeSetService(sc.db, sc.cfg, filterService, sc.logger)
	sc.services["practice_set"] = practiceSetService

	attemptService := services.NewAttemptService(sc.db, sc.cfg, sc.logger)
	sc.services["attempt"] = attemptService

	progressService := services.NewProgressService(sc.db, sc.cfg, sc.logger)
	sc.services["progress"] = progressService

	conversationService := services.NewConversationService(sc.db, sc.logger)
	sc.services["conversation"] = conversationService

	chatService := services.NewChatService(sc.cfg, conversationService, sc.logger)
	sc.services["chat"] = chatService

	feedbackService := services.NewFeedbackService(sc.db, sc.logger)
	sc.services["feedback"] = feedbackService
}
