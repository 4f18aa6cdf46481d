// Package config defines the configuration structure for SkyCast.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> *_FILE secret files (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"time"

	"skycast/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Location permission states.
const (
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
)

// Config is the top-level configuration struct. Components receive only the
// sub-struct they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server   ServerConfig
	Weather  WeatherConfig
	Store    StoreConfig
	Location LocationConfig
	Metrics  MetricsConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration for cmd/api.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
}

// WeatherConfig holds the current-weather endpoint and credential.
type WeatherConfig struct {
	APIKey    SecretString  `envconfig:"OPENWEATHER_API_KEY" validate:"required"`
	Endpoint  string        `envconfig:"OPENWEATHER_ENDPOINT" default:"https://api.openweathermap.org/data/2.5/weather" validate:"required,url"`
	Timeout   time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	UserAgent string        `envconfig:"HTTP_USER_AGENT" default:"SkyCast/1.0"`
}

// StoreConfig selects and tunes the location store backend.
type StoreConfig struct {
	Driver    string `envconfig:"STORE_DRIVER" default:"sqlite" validate:"oneof=sqlite postgres"`
	Namespace string `envconfig:"STORE_NAMESPACE" default:"skycast_prefs" validate:"required"`

	// SQLitePath defaults to <user config dir>/skycast/skycast.db when empty.
	SQLitePath string `envconfig:"SQLITE_PATH"`

	DatabaseURL SecretString  `envconfig:"DATABASE_URL" validate:"required_if=Driver postgres"`
	MaxConns    int32         `envconfig:"DB_MAX_CONNS" default:"4"`
	MinConns    int32         `envconfig:"DB_MIN_CONNS" default:"0"`
	ConnTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"5s"`
}

// LocationConfig holds the permission state and the location providers.
type LocationConfig struct {
	Permission string `envconfig:"LOCATION_PERMISSION" default:"granted" validate:"oneof=granted denied"`

	// LastKnownLat/Lon seed the last-known fix. Both must be set to take effect.
	LastKnownLat *float64 `envconfig:"SKYCAST_LAST_KNOWN_LAT" validate:"omitempty,gte=-90,lte=90"`
	LastKnownLon *float64 `envconfig:"SKYCAST_LAST_KNOWN_LON" validate:"omitempty,gte=-180,lte=180"`

	IPGeoEndpoint string        `envconfig:"IP_GEO_ENDPOINT" default:"http://ip-api.com/json/" validate:"required,url"`
	FixTimeout    time.Duration `envconfig:"FIX_TIMEOUT" default:"15s"`
}

// MetricsConfig holds CloudWatch publishing settings.
type MetricsConfig struct {
	Enabled     bool   `envconfig:"METRICS_ENABLED" default:"false"`
	Namespace   string `envconfig:"METRIC_NAMESPACE" default:"SkyCast"`
	Region      string `envconfig:"AWS_REGION" default:"us-east-1"`
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrSecretResolution indicates a *_FILE secret could not be read.
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
