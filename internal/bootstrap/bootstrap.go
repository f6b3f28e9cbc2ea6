// Package bootstrap wires configured backends for the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"opal-bid-monitor/internal/config"
	"opal-bid-monitor/internal/domain"
	"opal-bid-monitor/internal/infrastructure/memory"
	"opal-bid-monitor/internal/infrastructure/redis"
	"opal-bid-monitor/internal/infrastructure/sqlstore"
	"opal-bid-monitor/pkg/logger"
)

// AuctionBackend is what every store driver provides.
type AuctionBackend interface {
	domain.AuctionStore
	domain.AuctionExpirer
	domain.Pinger
}

func noopClose() error { return nil }

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// OpenAuctionStore returns the backend named by store.driver and a func
// that releases it. rdb is only used by the redis driver.
func OpenAuctionStore(ctx context.Context, cfg *config.Config, rdb *goredis.Client, log logger.Logger) (AuctionBackend, func() error, error) {
	switch driver := strings.ToLower(cfg.Store.Driver); driver {
	case "memory":
		log.Warn("Using in-memory auction store; state is lost on restart")
		return memory.NewAuctionStore(), noopClose, nil

	case "redis":
		if rdb == nil {
			return nil, nil, fmt.Errorf("redis store selected without a redis client")
		}
		return redis.NewAuctionStore(rdb), noopClose, nil

	case sqlstore.DriverPostgres, sqlstore.DriverMySQL:
		dbCfg := cfg.Database
		dbCfg.Driver = driver
		db, err := OpenDatabase(ctx, dbCfg, log)
		if err != nil {
			return nil, nil, err
		}
		return sqlstore.NewAuctionStore(db), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// OpenDatabase connects and, when configured, applies migrations.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*sqlstore.DB, error) {
	db, err := sqlstore.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := db.RunMigrations(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// LoadConfig reads OPAL_CONFIG when set, otherwise the usual search paths.
func LoadConfig() (*config.Config, error) {
	if path := os.Getenv("OPAL_CONFIG"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
