package config

import "time"

// Server defaults
const (
	// DefaultServerPort is the port the API server listens on when unset
	DefaultServerPort = "8080"

	// MaxQuestionsPerCustomSet caps how many questions a custom practice set may hold
	MaxQuestionsPerCustomSet = 100

	// DefaultPageSize is the default page size for paginated listings
	DefaultPageSize = 20
	// MaxPageSize is the maximum page size callers may request
	MaxPageSize = 100
)

// Session settings
const (
	// SessionMaxAge is how long a login session stays valid
	SessionMaxAge = 7 * 24 * time.Hour

	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // overridden to true outside debug mode

	SessionName = "usmle-session"
)

// DefaultCSP is the content security policy applied to every response
const DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:; media-src 'self' blob: data:;"

// Database defaults
const (
	DefaultMaxOpenConns = 25
	DefaultMaxIdleConns = 5

	// DatabaseConnMaxLifetime is the maximum amount of time a connection may be reused
	DatabaseConnMaxLifetime = 5 * time.Minute
)

// AI assistant defaults
const (
	DefaultAIBaseURL     = "https://api.openai.com/v1"
	DefaultChatModel     = "gpt-4o-mini"
	DefaultRealtimeModel = "gpt-4o-realtime-preview"
	DefaultChatMaxTokens = 1024
)

// Progress view thresholds
const (
	// RecencyWindowDays is the window used to decide whether a topic counts
	// as recently practiced when computing trend and status text
	RecencyWindowDays = 7
)
