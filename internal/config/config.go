package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Host      string `env:"HOST" validate:"required"`
	Port      int    `env:"PORT" validate:"min=1,max=65535"`
	PublicURL string `env:"PUBLIC_URL" validate:"required,url"`

	// Database configuration
	DatabasePath string `env:"DATABASE_PATH" validate:"required"`

	// Strava API configuration
	StravaClientID     string  `env:"STRAVA_CLIENT_ID" validate:"required"`
	StravaClientSecret string  `env:"STRAVA_CLIENT_SECRET" validate:"required"`
	FetchConcurrency   int     `env:"FETCH_CONCURRENCY" validate:"min=1,max=16"`
	RequestsPerSecond  float64 `env:"STRAVA_REQUESTS_PER_SECOND" validate:"gte=0"`

	// Session configuration
	SessionTTLMinutes      int `env:"SESSION_TTL_MINUTES" validate:"min=1"`
	CleanupIntervalMinutes int `env:"CLEANUP_INTERVAL_MINUTES" validate:"min=1"`
	DashboardCacheMB       int `env:"DASHBOARD_CACHE_MB" validate:"min=1"`

	// Metrics configuration
	MetricsEnabled bool   `env:"METRICS_ENABLED"`
	MetricsHost    string `env:"METRICS_HOST" validate:"required_if=MetricsEnabled true"`
	MetricsPort    int    `env:"METRICS_PORT" validate:"min=1,max=65535"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// Presentation constants, defaults overridden by CHART_CONFIG_PATH
	ChartConfigPath string `env:"CHART_CONFIG_PATH"`
	Chart           Chart  `validate:"-"`
}

// SessionTTL is how long a session and its dashboard stay valid
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// CleanupInterval is how often expired sessions are swept
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// RedirectURI is the OAuth callback registered with Strava
func (c *Config) RedirectURI() string {
	return strings.TrimRight(c.PublicURL, "/") + "/oauth-callback"
}

// Load reads configuration from a .env file, if present, and the environment.
// Variables already set in the environment take precedence over the file.
// It fails fast if required variables are missing or invalid.
func Load() (*Config, error) {
	// A missing .env file is not an error
	_ = godotenv.Load()

	cfg := &Config{
		Host:                   getEnv("HOST", "localhost"),
		Port:                   getEnvInt("PORT", 4101),
		DatabasePath:           getEnv("DATABASE_PATH", "./data.db"),
		StravaClientID:         os.Getenv("STRAVA_CLIENT_ID"),
		StravaClientSecret:     os.Getenv("STRAVA_CLIENT_SECRET"),
		FetchConcurrency:       getEnvInt("FETCH_CONCURRENCY", 1),
		RequestsPerSecond:      getEnvFloat("STRAVA_REQUESTS_PER_SECOND", 10),
		SessionTTLMinutes:      getEnvInt("SESSION_TTL_MINUTES", 60),
		CleanupIntervalMinutes: getEnvInt("CLEANUP_INTERVAL_MINUTES", 5),
		DashboardCacheMB:       getEnvInt("DASHBOARD_CACHE_MB", 32),
		MetricsEnabled:         getEnvBool("METRICS_ENABLED", false),
		MetricsHost:            getEnv("METRICS_HOST", "localhost"),
		MetricsPort:            getEnvInt("METRICS_PORT", 9090),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		ChartConfigPath:        os.Getenv("CHART_CONFIG_PATH"),
	}
	cfg.PublicURL = getEnv("PUBLIC_URL", fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port))

	if err := validate(cfg); err != nil {
		return nil, err
	}

	chart, err := LoadChart(cfg.ChartConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Chart = chart

	return cfg, nil
}

var validate = newValidator()

func newValidator() func(cfg *Config) error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})

	return func(cfg *Config) error {
		err := v.Struct(cfg)
		if err == nil {
			return nil
		}
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return fmt.Errorf("failed to validate config: %w", err)
		}
		return describe(fieldErrs[0])
	}
}

// describe turns the first failed rule into a message naming the variable
func describe(fe validator.FieldError) error {
	name := fe.Field()
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Errorf("%s is required", name)
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", name, strings.Join(strings.Fields(fe.Param()), ", "))
	case "min", "gte":
		return fmt.Errorf("%s must be at least %s", name, fe.Param())
	case "max":
		return fmt.Errorf("%s must be at most %s", name, fe.Param())
	case "url":
		return fmt.Errorf("%s must be a URL", name)
	default:
		return fmt.Errorf("%s is invalid (%s)", name, fe.Tag())
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
