package db

import (
	"time"

	"github.com/IoTeC-ecosystems/backend-app/internal/config"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis builds the pub/sub client for live updates. It returns nil
// when no address is configured.
func ConnectRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		ClientName:  "fleet-dashboard",
		DialTimeout: 5 * time.Second,
	})
}
