// Package config defines the configuration structure for the vigil reminder
// engine. Configuration is loaded once at process start and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> SecretProvider (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"time"

	"vigil/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the vigil daemon.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local device dev prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"vigild"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Engine        EngineConfig
	Store         StoreConfig
	Database      DatabaseConfig
	Calendar      CalendarConfig
	Backend       BackendConfig
	AWS           AWSConfig
	Session       SessionConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds the control API listener configuration.
type ServerConfig struct {
	Addr            string        `envconfig:"HTTP_ADDR" default:"127.0.0.1:8787"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

// EngineConfig tunes the reconciliation engine.
type EngineConfig struct {
	WindowDays         int           `envconfig:"WINDOW_DAYS" default:"3" validate:"min=1,max=14"`
	TZName             string        `envconfig:"TZ_NAME" default:"UTC" validate:"required,timezone"`
	SourceFetchTimeout time.Duration `envconfig:"SOURCE_FETCH_TIMEOUT" default:"10s" validate:"gt=0"`
	Debounce           time.Duration `envconfig:"DEBOUNCE" default:"500ms" validate:"gt=0"`
	RefreshInterval    time.Duration `envconfig:"REFRESH_INTERVAL" default:"15m"`
}

// Location resolves TZName. LoadConfig has already validated it.
func (e EngineConfig) Location() *time.Location {
	loc, err := time.LoadLocation(e.TZName)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StoreConfig points at the on-device SQLite database.
type StoreConfig struct {
	Path string `envconfig:"STORE_PATH" default:"vigil.db" validate:"required"`
}

// DatabaseConfig holds the managed backend connection and pool tuning.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"4"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// CalendarConfig configures the broadcast calendar feed.
type CalendarConfig struct {
	BaseURL string        `envconfig:"CALENDAR_BASE_URL" default:"https://www.googleapis.com/calendar/v3" validate:"required,url"`
	APIKey  SecretString  `envconfig:"CALENDAR_API_KEY"`
	Timeout time.Duration `envconfig:"CALENDAR_TIMEOUT" default:"10s"`
}

// BackendConfig selects and configures the Notification Backend.
type BackendConfig struct {
	Kind          string        `envconfig:"NOTIFY_BACKEND" default:"memory" validate:"oneof=memory redis"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379" validate:"required_if=Kind redis"`
	RedisPassword SecretString  `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string        `envconfig:"REDIS_KEY_PREFIX" default:"vigil"`
	PollInterval  time.Duration `envconfig:"REDIS_POLL_INTERVAL" default:"5s"`
}

// AWSConfig holds AWS resource identifiers. Both are optional: without a
// queue URL the trigger listener is not started, and metrics fall back to
// a no-op when disabled.
type AWSConfig struct {
	Region          string `envconfig:"AWS_REGION" default:"us-east-1"`
	TriggerQueueURL string `envconfig:"SQS_TRIGGERS" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// SessionConfig provides the signed-in user for headless deployments.
type SessionConfig struct {
	UserID string `envconfig:"DEVICE_USER_ID"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Vigil"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSecretResolution indicates a failure when resolving secret references.
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
