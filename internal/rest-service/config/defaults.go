package config

import (
	"strings"
	"time"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/database"
)

const (
	DefaultPort            = 8080
	DefaultShutdownTimeout = 15 * time.Second
	DefaultRequestTimeout  = 2 * time.Minute
	DefaultMaxUploadSize   = 512 << 20
	DefaultTokenTTL        = 12 * time.Hour
	DefaultIssuer          = "cloud_cabinet"
	DefaultCopyAttempts    = 10
	DefaultCopyInterval    = time.Second
)

// ApplyDefaults fills zero values. The signing key and the remote type never
// get one.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.MaxUploadSize == 0 {
		cfg.Server.MaxUploadSize = DefaultMaxUploadSize
	}
	if cfg.Server.RateLimit.RequestsPerSecond > 0 && cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = int(cfg.Server.RateLimit.RequestsPerSecond) + 1
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = database.DriverSQLite
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == database.DriverSQLite {
		cfg.Database.DSN = database.DefaultFile
	}

	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = DefaultIssuer
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = DefaultTokenTTL
	}

	if cfg.Remote.CopyPoll.Attempts == 0 {
		cfg.Remote.CopyPoll.Attempts = DefaultCopyAttempts
	}
	if cfg.Remote.CopyPoll.Interval == 0 {
		cfg.Remote.CopyPoll.Interval = DefaultCopyInterval
	}
}
