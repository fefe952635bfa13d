package config_test

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/north-cloud/leakscan/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8070, cfg.Server.Port)
	assert.Equal(t, ":8070", cfg.GetAddress())
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "leakscan", cfg.Database.Database)
	assert.Equal(t, "leakscan:jobs", cfg.Redis.Stream)
	assert.Equal(t, 100, cfg.Search.MaxResults)
	assert.Equal(t, 20, cfg.Worker.MultiScanWorkers)
	assert.Equal(t, 500*time.Millisecond, cfg.Worker.StopCheckInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_Overrides(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	viper.Set("server.port", 9999)
	viper.Set("server.address", "127.0.0.1:9999")
	viper.Set("database.name", "leaks_test")
	viper.Set("worker.multi_scan_workers", 5)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.GetAddress())
	assert.Equal(t, "leaks_test", cfg.Database.Database)
	assert.Equal(t, 5, cfg.Worker.MultiScanWorkers)
}

func TestLoad_InvalidPort(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	viper.Set("server.port", 0)

	_, err := config.Load()
	require.Error(t, err)

	var vErr *config.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "server.port", vErr.Field)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "scanner",
		Password: "secret",
		Database: "leaks",
		SSLMode:  "require",
	}
	assert.Equal(t,
		"host=db.internal port=5433 user=scanner password=secret dbname=leaks sslmode=require",
		d.DSN())
}
