// Package config loads the rest-service configuration from an optional YAML
// file and CABINET_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "CABINET"

type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=trace debug info warn warning error fatal panic"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

type ServerConfig struct {
	Port            int             `mapstructure:"port" validate:"required,gt=0,lte=65535"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout" validate:"gt=0"`
	RequestTimeout  time.Duration   `mapstructure:"request_timeout" validate:"gt=0"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	// MaxUploadSize is in bytes.
	MaxUploadSize int64 `mapstructure:"max_upload_size" validate:"gt=0"`
}

// RateLimitConfig is disabled when RequestsPerSecond is zero.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=0"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite mysql"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key" validate:"required,min=32"`
	Issuer     string        `mapstructure:"issuer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
}

// RemoteConfig selects the file share backend. Only the section named by
// Type is decoded.
type RemoteConfig struct {
	Type      string         `mapstructure:"type" validate:"required,oneof=memory fileshare azure s3"`
	TempDir   string         `mapstructure:"temp_dir"`
	CopyPoll  CopyPollConfig `mapstructure:"copy_poll"`
	FileShare map[string]any `mapstructure:"fileshare"`
	Azure     map[string]any `mapstructure:"azure"`
	S3        map[string]any `mapstructure:"s3"`
}

type CopyPollConfig struct {
	Attempts int           `mapstructure:"attempts" validate:"gt=0"`
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configPath when given, then the environment. Environment
// variables win over the file, e.g. CABINET_AUTH_SIGNING_KEY.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only reaches keys viper knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
}

var envKeys = []string{
	"logging.level", "logging.format",
	"server.port", "server.shutdown_timeout", "server.request_timeout", "server.max_upload_size",
	"server.rate_limit.requests_per_second", "server.rate_limit.burst",
	"database.driver", "database.dsn",
	"auth.signing_key", "auth.issuer", "auth.token_ttl",
	"remote.type", "remote.temp_dir", "remote.copy_poll.attempts", "remote.copy_poll.interval",
	"remote.fileshare.url", "remote.fileshare.timeout",
	"remote.azure.connection_string",
	"remote.s3.region", "remote.s3.endpoint", "remote.s3.bucket_prefix",
	"remote.s3.access_key_id", "remote.s3.secret_access_key", "remote.s3.max_retries",
	"metrics.enabled",
}
