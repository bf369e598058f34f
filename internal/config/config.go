// Package config handles application configuration loading from YAML files and environment variables.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "usmleapp/internal/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// AI assistant configuration
	AI AIConfig `json:"ai" yaml:"ai"`

	// OpenTelemetry configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port          string   `json:"port" yaml:"port"`
	AdminUsername string   `json:"admin_username" yaml:"admin_username"`
	AdminPassword string   `json:"admin_password" yaml:"admin_password"`
	SessionSecret string   `json:"session_secret" yaml:"session_secret"`
	Debug         bool     `json:"debug" yaml:"debug"`
	LogLevel      string   `json:"log_level" yaml:"log_level"`
	AppBaseURL    string   `json:"app_base_url" yaml:"app_base_url"`
	CORSOrigins   []string `json:"cors_origins" yaml:"cors_origins"`
	// MaxQuestionsPerSet caps the maxQuestions a caller may request when
	// building a custom practice set.
	MaxQuestionsPerSet int `json:"max_questions_per_set" yaml:"max_questions_per_set"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`       // Maximum number of open connections to the database
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`       // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"` // Maximum amount of time a connection may be reused
}

// AIConfig represents the study-assistant AI provider configuration.
// The provider exposes an OpenAI-compatible chat completions API plus a
// realtime sessions endpoint for ephemeral voice tokens.
type AIConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	BaseURL       string `json:"base_url" yaml:"base_url"`
	APIKey        string `json:"api_key" yaml:"api_key"`
	ChatModel     string `json:"chat_model" yaml:"chat_model"`
	RealtimeModel string `json:"realtime_model" yaml:"realtime_model"`
	RealtimeVoice string `json:"realtime_voice" yaml:"realtime_voice"`
	MaxTokens     int    `json:"max_tokens" yaml:"max_tokens"`
}

// OpenTelemetryConfig represents OpenTelemetry configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "http://localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "usmle-backend"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`   // Default: true
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`   // Default: true
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`   // Default: true
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"`     // Default: 1.0 (100%)
	UseAutoSDK     bool              `json:"use_auto_sdk" yaml:"use_auto_sdk"`       // Use auto-instrumentation SDK
}

// NewConfig loads configuration from the YAML config file (if present) and
// overrides values from environment variables. A local .env file is honored
// in development.
func NewConfig() (result0 *Config, err error) {
	// Best effort; absence of a .env file is the normal production case
	_ = godotenv.Load()

	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	config.overrideFromEnv()
	config.applyDefaults()

	return config, nil
}

// loadConfigWithOverrides loads the config file named by USMLE_CONFIG_FILE,
// falling back to ./config.yaml, falling back to built-in defaults.
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv("USMLE_CONFIG_FILE"); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	if _, statErr := os.Stat("config.yaml"); statErr == nil {
		return loadConfigFromFile("config.yaml")
	}

	return &Config{}, nil
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyDefaults fills in defaults for values not provided by file or env
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.MaxQuestionsPerSet <= 0 {
		c.Server.MaxQuestionsPerSet = MaxQuestionsPerCustomSet
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = DatabaseConnMaxLifetime
	}
	if c.AI.BaseURL == "" {
		c.AI.BaseURL = DefaultAIBaseURL
	}
	if c.AI.ChatModel == "" {
		c.AI.ChatModel = DefaultChatModel
	}
	if c.AI.RealtimeModel == "" {
		c.AI.RealtimeModel = DefaultRealtimeModel
	}
	if c.AI.MaxTokens <= 0 {
		c.AI.MaxTokens = DefaultChatMaxTokens
	}
	if c.OpenTelemetry.Protocol == "" {
		c.OpenTelemetry.Protocol = "grpc"
	}
	if c.OpenTelemetry.SamplingRate <= 0 {
		c.OpenTelemetry.SamplingRate = 1.0
	}
	if c.OpenTelemetry.ServiceName == "" {
		c.OpenTelemetry.ServiceName = "usmle-backend"
	}
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnvWithPrefix(c, "")
}

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment
// variables derived from yaml tags (SERVER_PORT, DATABASE_URL, AI_API_KEY, ...).
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		yamlTag = strings.Split(yamlTag, ",")[0]

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				if field.Type().Elem().Kind() == reflect.String {
					slice := strings.Split(envVal, ",")
					field.Set(reflect.ValueOf(slice))
				}
			}
		case reflect.Struct:
			if field.CanAddr() {
				fieldPrefix := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
				if prefix != "" {
					fieldPrefix = prefix + "_" + fieldPrefix
				}
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), fieldPrefix)
			}
		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				fieldPrefix := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
				if prefix != "" {
					fieldPrefix = prefix + "_" + fieldPrefix
				}
				overrideStructFromEnvWithPrefix(field.Interface(), fieldPrefix)
			}
		}
	}
}
