// Package config loads and validates secatt configuration from the environment
// and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is a logrus level name.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// QRKey is the base64 encoded 32 byte token key. When empty, QREphemeralKey decides
	// whether a key is generated at start.
	QRKey string `mapstructure:"QR_KEY"`
	// QREphemeralKey allows generating a random key at start. All outstanding QR codes
	// are invalidated by a restart in that mode.
	QREphemeralKey bool   `mapstructure:"QR_EPHEMERAL_KEY"`
	QRDefaultTTL   string `mapstructure:"QR_DEFAULT_TTL"`
	QRMaxTTL       string `mapstructure:"QR_MAX_TTL"`
	QRSweepEvery   string `mapstructure:"QR_SWEEP_INTERVAL"`
	// QRRequireLocation makes location fingerprints mandatory.
	QRRequireLocation bool `mapstructure:"QR_REQUIRE_LOCATION"`
	// QRBindLocation derives a fingerprint from the issuer's client IP when none is given.
	QRBindLocation bool `mapstructure:"QR_BIND_LOCATION"`

	// JWTSecret verifies bearer tokens issued by the login service.
	JWTSecret string `mapstructure:"JWT_SECRET"`

	// StoreDriver selects the attendance store: memory, redis or postgres.
	StoreDriver   string `mapstructure:"STORE_DRIVER"`
	RedisURL      string `mapstructure:"REDIS_URL"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	AttendanceTTL string `mapstructure:"ATTENDANCE_TTL"`

	// RFIDCards enrolls cards as "uid=user,uid=user". Empty disables RFID checks.
	RFIDCards string `mapstructure:"RFID_CARDS"`
}

// Load reads .env (if present), then builds and validates Config from the environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore missing .env

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":9000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("QR_KEY", "")
	v.SetDefault("QR_EPHEMERAL_KEY", true)
	v.SetDefault("QR_DEFAULT_TTL", "10m")
	v.SetDefault("QR_MAX_TTL", "60m")
	v.SetDefault("QR_SWEEP_INTERVAL", "1m")
	v.SetDefault("QR_REQUIRE_LOCATION", false)
	v.SetDefault("QR_BIND_LOCATION", false)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("STORE_DRIVER", StoreMemory)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("ATTENDANCE_TTL", "720h")
	v.SetDefault("RFID_CARDS", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	if c.QRKey == "" && !c.QREphemeralKey {
		return errors.New("config: QR_KEY must be set when QR_EPHEMERAL_KEY=false")
	}
	if c.QRKey == "" && c.Production() {
		return errors.New("config: QR_KEY must be set when APP_ENV=production")
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL must be set for the redis store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set for the postgres store")
		}
	default:
		return errors.New("config: STORE_DRIVER must be memory, redis or postgres")
	}

	if c.DefaultTTL() > c.MaxTTL() {
		return errors.New("config: QR_DEFAULT_TTL must not exceed QR_MAX_TTL")
	}

	return nil
}

// Production reports whether APP_ENV is production.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// DefaultTTL parses QRDefaultTTL. Returns 10m if unset or invalid.
func (c *Config) DefaultTTL() time.Duration {
	return parseDuration(c.QRDefaultTTL, 10*time.Minute)
}

// MaxTTL parses QRMaxTTL. Returns 60m if unset or invalid.
func (c *Config) MaxTTL() time.Duration {
	return parseDuration(c.QRMaxTTL, 60*time.Minute)
}

// SweepInterval parses QRSweepEvery. Returns 1m if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	return parseDuration(c.QRSweepEvery, time.Minute)
}

// RecordTTL parses AttendanceTTL. Returns 720h if unset or invalid.
func (c *Config) RecordTTL() time.Duration {
	return parseDuration(c.AttendanceTTL, 720*time.Hour)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
