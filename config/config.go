// Package config provides configuration management for the Sandstone
// document service.
//
// Configuration is loaded in the following order (later sources override
// earlier ones):
//  1. Default values
//  2. Configuration files (./config.yaml, ./configs/config.yaml,
//     ~/.sandstone/config.yaml, /etc/sandstone/config.yaml)
//  3. .env files
//  4. Environment variables with the SANDSTONE_ prefix
//
// Environment variables use underscores for nested keys:
//   - SANDSTONE_SERVER_PORT=8095
//   - SANDSTONE_DATABASE_URL=postgresql://localhost:5432/sandstone
//   - SANDSTONE_SECURITY_JWT_SECRET=...
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Host is the server bind address (default: 0.0.0.0)
	Host string `mapstructure:"host"`

	// Port is the server listen port (default: 8080)
	Port int `mapstructure:"port"`

	// ReadTimeout is the maximum duration for reading requests
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration for writing responses
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// ShutdownTimeout is the maximum duration for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Debug enables debug logging and additional endpoints
	Debug bool `mapstructure:"debug"`

	// BodyLimit caps request body sizes (echo syntax, e.g. "2M")
	BodyLimit string `mapstructure:"body_limit"`

	// RateLimit is the maximum requests per second per client (0 = off)
	RateLimit float64 `mapstructure:"rate_limit"`

	// AllowedOrigins are the CORS allowed origins
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig contains PostgreSQL connection settings. An empty URL
// selects the in-memory store, which is only suitable for development and
// tests.
type DatabaseConfig struct {
	// URL is the PostgreSQL DSN
	URL string `mapstructure:"url"`

	// MaxOpenConns bounds the connection pool
	MaxOpenConns int `mapstructure:"max_open_conns"`

	// MaxIdleConns bounds idle connections kept in the pool
	MaxIdleConns int `mapstructure:"max_idle_conns"`

	// ConnMaxLifetime is the maximum amount of time a connection is reused
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	// AutoMigrate runs schema migrations at startup
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// SecurityConfig contains authentication settings. Identity itself is
// owned by an external provider; the service only validates bearer tokens
// signed with the shared secret.
type SecurityConfig struct {
	// JWTSecret is the HMAC secret shared with the identity provider
	JWTSecret string `mapstructure:"jwt_secret"`

	// JWTExpiration applies to tokens minted by the dev token endpoint
	JWTExpiration time.Duration `mapstructure:"jwt_expiration"`

	// AllowTokenMint exposes POST /auth/token (development only)
	AllowTokenMint bool `mapstructure:"allow_token_mint"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `mapstructure:"level"`

	// Format is the log format (json, text)
	Format string `mapstructure:"format"`
}

// RealtimeConfig tunes the websocket channel.
type RealtimeConfig struct {
	// SendBuffer is the per-session outbound message buffer
	SendBuffer int `mapstructure:"send_buffer"`

	// MaxMessageSize caps inbound frames in bytes
	MaxMessageSize int64 `mapstructure:"max_message_size"`

	// WriteTimeout bounds a single websocket write
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// PingInterval is how often the server pings idle connections
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// EventsConfig configures the redis pub/sub write-hook. Disabled when the
// address is empty.
type EventsConfig struct {
	// RedisAddr is the redis host:port
	RedisAddr string `mapstructure:"redis_addr"`

	// RedisPassword authenticates against redis if set
	RedisPassword string `mapstructure:"redis_password"`

	// RedisDB selects the redis logical database
	RedisDB int `mapstructure:"redis_db"`

	// Channel is the pub/sub channel document events are published on
	Channel string `mapstructure:"channel"`
}

// ServiceConfig contains service metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// Config is the root configuration for the service.
type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Events   EventsConfig   `mapstructure:"events"`
}

// Loader provides configuration loading functionality.
type Loader struct {
	v      *viper.Viper
	prefix string
}

// NewLoader creates a new configuration loader with the given environment
// prefix (e.g. "SANDSTONE" -> "SANDSTONE_SERVER_PORT").
func NewLoader(envPrefix string) *Loader {
	return &Loader{
		v:      viper.New(),
		prefix: envPrefix,
	}
}

// SetDefaults sets the standard service defaults. This should be called
// before Load().
func (l *Loader) SetDefaults() {
	l.v.SetDefault("service.name", "sandstone")
	l.v.SetDefault("service.version", "dev")
	l.v.SetDefault("service.environment", "development")

	l.v.SetDefault("server.host", "0.0.0.0")
	l.v.SetDefault("server.port", 8080)
	l.v.SetDefault("server.read_timeout", "30s")
	l.v.SetDefault("server.write_timeout", "30s")
	l.v.SetDefault("server.shutdown_timeout", "10s")
	l.v.SetDefault("server.debug", false)
	l.v.SetDefault("server.body_limit", "2M")
	l.v.SetDefault("server.rate_limit", 0)
	l.v.SetDefault("server.allowed_origins", []string{"*"})

	l.v.SetDefault("database.url", "")
	l.v.SetDefault("database.max_open_conns", 100)
	l.v.SetDefault("database.max_idle_conns", 10)
	l.v.SetDefault("database.conn_max_lifetime", "1h")
	l.v.SetDefault("database.auto_migrate", true)

	l.v.SetDefault("security.jwt_secret", "")
	l.v.SetDefault("security.jwt_expiration", "24h")
	l.v.SetDefault("security.allow_token_mint", false)

	l.v.SetDefault("logging.level", "info")
	l.v.SetDefault("logging.format", "text")

	l.v.SetDefault("realtime.send_buffer", 64)
	l.v.SetDefault("realtime.max_message_size", 2097152)
	l.v.SetDefault("realtime.write_timeout", "10s")
	l.v.SetDefault("realtime.ping_interval", "30s")

	l.v.SetDefault("events.redis_addr", "")
	l.v.SetDefault("events.redis_password", "")
	l.v.SetDefault("events.redis_db", 0)
	l.v.SetDefault("events.channel", "sandstone.documents")
}

// Load reads configuration from file, .env, and environment variables.
// If cfgFile is empty, config.yaml is searched for in standard locations.
func (l *Loader) Load(cfgFile string, target interface{}) error {
	if cfgFile != "" {
		l.v.SetConfigFile(cfgFile)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		l.v.AddConfigPath("./configs")
		l.v.AddConfigPath("$HOME/.sandstone")
		l.v.AddConfigPath("/etc/sandstone")
	}

	if err := l.v.ReadInConfig(); err != nil {
		if cfgFile != "" && !isFileNotFoundError(err) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		if cfgFile == "" {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	// Merge .env file if present
	l.v.SetConfigFile(".env")
	l.v.SetConfigType("env")
	_ = l.v.MergeInConfig()

	if l.prefix != "" {
		l.v.SetEnvPrefix(l.prefix)
	}
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if err := l.v.Unmarshal(target); err != nil {
		return fmt.Errorf("unable to decode config: %w", err)
	}

	return nil
}

// LoadConfig is a convenience function that loads and validates the
// service configuration with standard defaults.
func LoadConfig(envPrefix, cfgFile string) (*Config, error) {
	loader := NewLoader(envPrefix)
	loader.SetDefaults()

	cfg := &Config{}
	if err := loader.Load(cfgFile, cfg); err != nil {
		return nil, err
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ValidateConfig validates the loaded configuration.
func ValidateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Security.JWTSecret == "" && cfg.Service.Environment == "production" {
		return fmt.Errorf("security.jwt_secret is required in production")
	}

	if cfg.Realtime.SendBuffer < 1 {
		return fmt.Errorf("realtime.send_buffer must be positive")
	}

	return nil
}

// isFileNotFoundError checks if an error is a file not found error.
func isFileNotFoundError(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr, os.ErrNotExist)
	}
	return false
}
