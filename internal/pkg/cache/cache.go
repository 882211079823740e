package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/lionelbuh/touchconnectpro/internal/pkg/config"
)

// Setup connects to the configured redis server. It returns nil when no cache
// is configured or the server is unreachable; callers fall back to in-process
// behavior in that case.
func Setup(cfg *config.Config) *redis.Client {
	if !cfg.CacheEnabled() {
		log.Info("Cache not configured, running without redis")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.CacheHost, cfg.CachePort),
		Password: cfg.CachePassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("Could not connect to redis cache: %v", err)
		_ = client.Close()
		return nil
	}
	log.Infof("Successfully connected to redis cache: %s", pong)
	return client
}
