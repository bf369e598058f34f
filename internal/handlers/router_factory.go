package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"usmleapp/internal/config"
	"usmleapp/internal/middleware"
	"usmleapp/internal/observability"
	"usmleapp/internal/services"
	"usmleapp/internal/version"
)

// NewRouter creates a new router with all the necessary middleware and routes
func NewRouter(
	cfg *config.Config,
	userService services.UserServiceInterface,
	contentService services.ContentServiceInterface,
	filterService services.FilterServiceInterface,
	practiceSetService services.PracticeSetServiceInterface,
	attemptService services.AttemptServiceInterface,
	progressService services.ProgressServiceInterface,
	conversationService services.ConversationServiceInterface,
	chatService services.ChatServiceInterface,
	feedbackService services.FeedbackServiceInterface,
	logger *observability.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// HTTP request logging through the observability logger
	router.Use(func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  latency.Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		if statusCode >= 500 {
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		} else if statusCode >= 400 {
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		} else {
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	})

	// Health check endpoint (defined before any middleware)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "backend"})
	})

	// OpenTelemetry middleware for HTTP tracing and automatic error attributes
	router.Use(observability.GinMiddlewareWithErrorHandling("usmle-backend"))

	// Panic recovery and error standardization
	router.Use(middleware.ErrorRecoveryMiddleware(middleware.DefaultErrorRecoveryConfig()))

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   config.SessionSecure,
	}
	if cfg.Server.Debug {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	} else {
		sessionOpts.SameSite = http.SameSiteLaxMode
		sessionOpts.Secure = true
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	// Initialize handlers
	authHandler := NewAuthHandler(userService, cfg, logger)
	contentHandler := NewContentHandler(contentService, logger)
	practiceSetHandler := NewPracticeSetHandler(practiceSetService, filterService, logger)
	attemptHandler := NewAttemptHandler(attemptService, logger)
	progressHandler := NewProgressHandler(progressService, logger)
	chatHandler := NewChatHandler(chatService, conversationService, logger)
	feedbackHandler := NewFeedbackHandler(feedbackService, logger)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"service":   "backend",
				"version":   version.Version,
				"commit":    version.Commit,
				"buildTime": version.BuildTime,
			})
		})

		auth := v1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/status", authHandler.Status)
		}

		// Content hierarchy
		v1.GET("/steps", middleware.RequireAuth(), contentHandler.ListSteps)
		v1.GET("/steps/:step/topics", middleware.RequireAuth(), contentHandler.ListTopics)
		v1.GET("/topics/:id/subtopics", middleware.RequireAuth(), contentHandler.ListSubtopics)
		v1.GET("/questions/:id", middleware.RequireAuth(), contentHandler.GetQuestion)
		v1.POST("/questions/:id/bookmark", middleware.RequireAuth(), attemptHandler.Bookmark)

		sets := v1.Group("/practice-sets")
		sets.Use(middleware.RequireAuth())
		{
			sets.POST("/custom", practiceSetHandler.CreateCustomSet)
			sets.POST("/filtered-count", practiceSetHandler.FilteredCount)
			sets.GET("/filter-counts", practiceSetHandler.FilterCounts)
			sets.GET("", practiceSetHandler.ListSets)
			sets.DELETE("/:id", practiceSetHandler.DeleteSet)
			sets.GET("/:id/question-ids", practiceSetHandler.QuestionIDs)
			sets.PATCH("/:id/status", practiceSetHandler.UpdateStatus)
		}

		attempts := v1.Group("/attempts")
		attempts.Use(middleware.RequireAuth())
		{
			attempts.POST("", attemptHandler.RecordAttempt)
			attempts.GET("", attemptHandler.ListAttempts)
		}

		progress := v1.Group("/progress")
		progress.Use(middleware.RequireAuth())
		{
			progress.GET("/topics", progressHandler.TopicCards)
			progress.GET("/subtopics", progressHandler.SubtopicRows)
			progress.GET("/step", progressHandler.StepSummary)
		}

		chat := v1.Group("/chat")
		chat.Use(middleware.RequireAuth())
		{
			chat.POST("/conversations", chatHandler.CreateConversation)
			chat.GET("/conversations", chatHandler.ListConversations)
			chat.GET("/conversations/:id", chatHandler.GetConversation)
			chat.DELETE("/conversations/:id", chatHandler.DeleteConversation)
			chat.GET("/conversations/:id/messages", chatHandler.GetMessages)
			chat.POST("/conversations/:id/messages", chatHandler.SendMessage)
			chat.POST("/voice-session", chatHandler.CreateVoiceSession)
		}

		v1.POST("/feedback", middleware.RequireAuth(), feedbackHandler.Submit)

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireAdmin(userService))
		{
			admin.GET("/feedback", feedbackHandler.List)
		}
	}

	return router
}
