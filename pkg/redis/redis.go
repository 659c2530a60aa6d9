package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/krishanu7/battleship-engine/pkg/logging"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pingTimeout = 3 * time.Second

// NewRedisClient connects and pings. The client is returned even when the
// ping fails so the caller can decide whether to run without redis.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return rdb, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logging.Info("connected to redis", zap.String("addr", addr))
	return rdb, nil
}
