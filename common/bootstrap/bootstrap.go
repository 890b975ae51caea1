// Package bootstrap wires the shared components every entry point needs:
// config, logger, the document store backend, the blob store, and the
// in-process cache, with cleanup funcs torn down in reverse order.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ki1r0y/gallery/common/blob"
	"github.com/ki1r0y/gallery/common/cache"
	"github.com/ki1r0y/gallery/common/config"
	"github.com/ki1r0y/gallery/common/logger"
	"github.com/ki1r0y/gallery/common/store"
)

// Components holds the initialized shared components
type Components struct {
	Config *config.Config
	Logger *logger.Logger
	Redis  *redis.Client
	Store  store.Store
	Blobs  *blob.Store
	Cache  cache.Cache

	cleanupFuncs []func() error
}

// Setup initializes all service components
func Setup(ctx context.Context, serviceName string) (*Components, error) {
	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	components.Config, err = config.Load(serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize logger
	components.Logger = logger.New(
		components.Config.Service.LogLevel,
		components.Config.Service.LogFormat,
	)
	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
		"store", components.Config.Store.Backend,
	)

	// 3. Initialize the document store backend
	switch components.Config.Store.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     components.Config.Store.Redis.Addr,
			Password: components.Config.Store.Redis.Password,
			DB:       components.Config.Store.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		components.Redis = rdb
		components.Store = store.NewRedisStore(rdb, components.Logger)

	case "postgres":
		pg, err := store.NewPostgresStore(ctx, components.Config, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		components.Store = pg

	case "memory":
		components.Store = store.NewMemoryStore()

	default:
		return nil, fmt.Errorf("unknown store backend: %s", components.Config.Store.Backend)
	}
	components.addCleanup(func() error {
		components.Logger.Info("closing document store")
		return components.Store.Close()
	})

	// 4. Initialize the blob store
	components.Blobs, err = blob.New(components.Config.Media.Root, components.Logger)
	if err != nil {
		components.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open media root: %w", err)
	}

	// 5. Initialize the cache
	components.Cache = cache.NewMemoryCache(components.Logger)
	components.addCleanup(func() error {
		components.Logger.Info("closing cache")
		return components.Cache.Close()
	})

	return components, nil
}

// Shutdown tears down components in reverse initialization order
func (c *Components) Shutdown(ctx context.Context) {
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			c.Logger.Error("cleanup failed", "error", err)
		}
	}
}

func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
