// Package common builds the shared dependencies of the leakscan commands.
package common

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/north-cloud/leakscan/internal/config"
	"github.com/north-cloud/leakscan/internal/database"
	"github.com/north-cloud/leakscan/internal/logger"
	"github.com/north-cloud/leakscan/internal/queue"
)

// Deps holds the dependencies every command starts from.
type Deps struct {
	Config *config.Config
	Logger logger.Interface
}

// NewCommandDeps loads the configuration and builds the logger.
func NewCommandDeps() (*Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:       logger.Level(cfg.Logging.Level),
		Development: cfg.Logging.Development,
		Encoding:    cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &Deps{Config: cfg, Logger: log}, nil
}

// OpenDatabase connects to Postgres and applies the schema.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := database.NewPostgresConnection(database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenQueue connects to Redis Streams and ensures the consumer group exists.
func OpenQueue(ctx context.Context, cfg *config.Config) (*queue.StreamsClient, error) {
	client, err := queue.NewStreamsClient(queue.StreamsConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Stream:   cfg.Redis.Stream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if err := client.CreateConsumerGroup(ctx, cfg.Redis.Group); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
