package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dyagdi/PriceLess/internal/config"
	"github.com/dyagdi/PriceLess/internal/storage"
	"github.com/dyagdi/PriceLess/internal/storage/memory"
	pgkv "github.com/dyagdi/PriceLess/internal/storage/postgres"
	"github.com/dyagdi/PriceLess/internal/storage/postgres/migrations"
	rediskv "github.com/dyagdi/PriceLess/internal/storage/redis"
	"github.com/dyagdi/PriceLess/internal/storage/sqlite"
	"github.com/dyagdi/PriceLess/pkg/database"
)

// backend is an opened storage driver.
type backend struct {
	kv    storage.KV
	ping  func(context.Context) error
	close func() error
}

// openStorage connects the driver selected by STORAGE_DRIVER.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.StorageDriver {
	case storage.DriverMemory:
		kv := memory.New()
		logger.Warn("using in-memory storage, favorites are lost on restart")
		return &backend{kv: kv, ping: kv.Ping, close: func() error { return nil }}, nil

	case storage.DriverRedis:
		rdb, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		kv := rediskv.NewKV(rdb, cfg.FavoritesTTL())
		return &backend{kv: kv, ping: kv.Ping, close: rdb.Close}, nil

	case storage.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)
		if err := preparePostgres(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
		kv := pgkv.NewKV(pool)
		return &backend{kv: kv, ping: kv.Ping, close: func() error { pool.Close(); return nil }}, nil

	case storage.DriverSQLite:
		kv, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("opened SQLite database", slog.String("path", cfg.SQLitePath))
		return &backend{kv: kv, ping: kv.Ping, close: kv.Close}, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

func preparePostgres(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if err := database.RegisterPoolMetrics(pool, "storefront"); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")
	return nil
}
