package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quiz-night-service/internal/app"
	"quiz-night-service/internal/config"
	"quiz-night-service/internal/infra/file"
	"quiz-night-service/internal/infra/memory"
	mongostore "quiz-night-service/internal/infra/mongo"
	pgstore "quiz-night-service/internal/infra/postgres"
	redisstore "quiz-night-service/internal/infra/redis"
)

// openStore builds the record store selected by storage.backend. The returned
// closer releases any client it opened.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (app.RecordStore, func(), error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	noop := func() {}

	switch backend {
	case "memory":
		log.Warn("using in-memory storage, session data is lost on restart")
		return memory.NewRecordStore(), noop, nil

	case "", "file":
		store, err := file.NewRecordStore(cfg.Storage.Dir)
		if err != nil {
			return nil, noop, err
		}
		log.Info("using file storage", zap.String("dir", cfg.Storage.Dir))
		return store, noop, nil

	case "redis":
		if cfg.Redis.Addr == "" {
			return nil, noop, fmt.Errorf("redis addr not configured")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("redis ping: %w", err)
		}
		log.Info("using redis storage", zap.String("addr", cfg.Redis.Addr))
		return redisstore.NewRecordStore(client, cfg.Redis.Prefix), func() { _ = client.Close() }, nil

	case "postgres":
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return nil, noop, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, noop, err
		}
		log.Info("using postgres storage")
		return pgstore.NewRecordStore(pool), pool.Close, nil

	case "mongo":
		if cfg.Mongo.URI == "" {
			return nil, noop, fmt.Errorf("mongo uri not configured")
		}
		store, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, noop, err
		}
		log.Info("using mongo storage", zap.String("database", cfg.Mongo.Database))
		return store, func() { _ = store.Close(context.Background()) }, nil

	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
