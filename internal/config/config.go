// Package config provides configuration management for the leakscan service.
// It handles loading, validation, and access to configuration values from both
// YAML files and environment variables using Viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Server defaults
const (
	defaultServerPort         = 8070
	defaultServerReadTimeout  = 30 * time.Second
	defaultServerWriteTimeout = 30 * time.Second
	defaultServerIdleTimeout  = 60 * time.Second
)

// Database defaults
const (
	defaultDBHost            = "localhost"
	defaultDBPort            = 5432
	defaultDBUser            = "postgres"
	defaultDBName            = "leakscan"
	defaultDBSSLMode         = "disable"
	defaultDBMaxConns        = 25
	defaultDBMaxIdleConns    = 5
	defaultDBConnMaxLifetime = 5 * time.Minute
)

// Redis defaults
const (
	defaultRedisAddr   = "localhost:6379"
	defaultRedisStream = "leakscan:jobs"
	defaultRedisGroup  = "leakscan-workers"
)

// Search defaults
const (
	defaultSearchBaseURL     = "https://2.intelx.io"
	defaultSearchMaxResults  = 100
	defaultSearchTimeout     = 30 * time.Second
	defaultSearchRateLimit   = 2.0
	defaultMultiScanWorkers  = 20
	defaultMultiScanDelay    = 500 * time.Millisecond
	defaultStopCheckInterval = 500 * time.Millisecond
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Search   SearchConfig
	Worker   WorkerConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	APIKey       string
	Debug        bool
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis Streams queue configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
}

// SearchConfig holds leak-search provider configuration.
type SearchConfig struct {
	BaseURL    string
	APIKey     string
	MaxResults int
	Timeout    time.Duration
	RateLimit  float64
}

// WorkerConfig holds scan worker configuration.
type WorkerConfig struct {
	MultiScanWorkers  int
	MultiScanDelay    time.Duration
	StopCheckInterval time.Duration
	UploadDir         string
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level       string
	Format      string
	Development bool
}

// Load builds the configuration from Viper's current state. InitializeViper
// must have been called first.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address:      viper.GetString("server.address"),
			Port:         viper.GetInt("server.port"),
			ReadTimeout:  viper.GetDuration("server.read_timeout"),
			WriteTimeout: viper.GetDuration("server.write_timeout"),
			IdleTimeout:  viper.GetDuration("server.idle_timeout"),
			APIKey:       viper.GetString("server.api_key"),
			Debug:        viper.GetBool("server.debug"),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("database.host"),
			Port:            viper.GetInt("database.port"),
			User:            viper.GetString("database.user"),
			Password:        viper.GetString("database.password"),
			Database:        viper.GetString("database.name"),
			SSLMode:         viper.GetString("database.sslmode"),
			MaxConnections:  viper.GetInt("database.max_connections"),
			MaxIdleConns:    viper.GetInt("database.max_idle_connections"),
			ConnMaxLifetime: viper.GetDuration("database.connection_max_lifetime"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
			Stream:   viper.GetString("redis.stream"),
			Group:    viper.GetString("redis.group"),
		},
		Search: SearchConfig{
			BaseURL:    viper.GetString("search.base_url"),
			APIKey:     viper.GetString("search.api_key"),
			MaxResults: viper.GetInt("search.max_results"),
			Timeout:    viper.GetDuration("search.timeout"),
			RateLimit:  viper.GetFloat64("search.rate_limit"),
		},
		Worker: WorkerConfig{
			MultiScanWorkers:  viper.GetInt("worker.multi_scan_workers"),
			MultiScanDelay:    viper.GetDuration("worker.multi_scan_delay"),
			StopCheckInterval: viper.GetDuration("worker.stop_check_interval"),
			UploadDir:         viper.GetString("worker.upload_dir"),
		},
		Logging: LoggingConfig{
			Level:       viper.GetString("logging.level"),
			Format:      viper.GetString("logging.format"),
			Development: viper.GetBool("logging.development"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return &ValidationError{Field: "database.host", Message: "is required"}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", c.Server.Port),
		}
	}
	if c.Worker.MultiScanWorkers < 1 {
		return &ValidationError{Field: "worker.multi_scan_workers", Message: "must be positive"}
	}
	return nil
}

// GetAddress returns the server listen address. If Address is set, returns it,
// otherwise constructs from port.
func (c *Config) GetAddress() string {
	if c.Server.Address != "" {
		return c.Server.Address
	}
	return fmt.Sprintf(":%d", c.Server.Port)
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}
