package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// InitializeViper initializes Viper configuration from environment variables
// and config files. This must be called before Load().
func InitializeViper() error {
	loadEnvFile()
	setupViper()
	setDefaults()
	readConfigFile()

	if err := bindEnvironmentVariables(); err != nil {
		return fmt.Errorf("failed to bind environment variables: %w", err)
	}
	return nil
}

// loadEnvFile loads .env file (ignores error if file doesn't exist).
func loadEnvFile() {
	_ = godotenv.Load()
}

// setupViper configures Viper for environment variable and config file reading.
func setupViper() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
}

// readConfigFile reads config file (ignores error if file doesn't exist).
func readConfigFile() {
	_ = viper.ReadInConfig()
}

// setDefaults applies default values for all configuration keys.
func setDefaults() {
	viper.SetDefault("server.port", defaultServerPort)
	viper.SetDefault("server.read_timeout", defaultServerReadTimeout)
	viper.SetDefault("server.write_timeout", defaultServerWriteTimeout)
	viper.SetDefault("server.idle_timeout", defaultServerIdleTimeout)

	viper.SetDefault("database.host", defaultDBHost)
	viper.SetDefault("database.port", defaultDBPort)
	viper.SetDefault("database.user", defaultDBUser)
	viper.SetDefault("database.name", defaultDBName)
	viper.SetDefault("database.sslmode", defaultDBSSLMode)
	viper.SetDefault("database.max_connections", defaultDBMaxConns)
	viper.SetDefault("database.max_idle_connections", defaultDBMaxIdleConns)
	viper.SetDefault("database.connection_max_lifetime", defaultDBConnMaxLifetime)

	viper.SetDefault("redis.addr", defaultRedisAddr)
	viper.SetDefault("redis.stream", defaultRedisStream)
	viper.SetDefault("redis.group", defaultRedisGroup)

	viper.SetDefault("search.base_url", defaultSearchBaseURL)
	viper.SetDefault("search.max_results", defaultSearchMaxResults)
	viper.SetDefault("search.timeout", defaultSearchTimeout)
	viper.SetDefault("search.rate_limit", defaultSearchRateLimit)

	viper.SetDefault("worker.multi_scan_workers", defaultMultiScanWorkers)
	viper.SetDefault("worker.multi_scan_delay", defaultMultiScanDelay)
	viper.SetDefault("worker.stop_check_interval", defaultStopCheckInterval)
	viper.SetDefault("worker.upload_dir", "uploads")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.development", false)

	viper.SetDefault("app.environment", "development")
}

// envBindings maps config keys to their environment variable names.
var envBindings = map[string]string{
	"app.environment":    "APP_ENV",
	"server.debug":       "APP_DEBUG",
	"server.api_key":     "LEAKSCAN_API_KEY",
	"logging.level":      "LOG_LEVEL",
	"logging.format":     "LOG_FORMAT",
	"database.host":      "POSTGRES_LEAKSCAN_HOST",
	"database.port":      "POSTGRES_LEAKSCAN_PORT",
	"database.user":      "POSTGRES_LEAKSCAN_USER",
	"database.password":  "POSTGRES_LEAKSCAN_PASSWORD",
	"database.name":      "POSTGRES_LEAKSCAN_DB",
	"redis.addr":         "REDIS_ADDR",
	"redis.password":     "REDIS_PASSWORD",
	"search.base_url":    "INTELX_BASE_URL",
	"search.api_key":     "INTELX_API_KEY",
	"search.max_results": "INTELX_MAX_RESULTS",
	"worker.upload_dir":  "LEAKSCAN_UPLOAD_DIR",
}

// bindEnvironmentVariables binds all environment variables to config keys.
func bindEnvironmentVariables() error {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Reset clears Viper state. Used by tests.
func Reset() {
	viper.Reset()
	setupViper()
	setDefaults()
}
