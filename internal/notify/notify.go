// Package notify carries engine notifications to players.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/krishanu7/battleship-engine/internal/game"
	"github.com/redis/go-redis/v9"
)

// Channel is the redis pub/sub channel notifications travel on.
const Channel = "notifications"

// Deliverer hands a notification to its recipients.
type Deliverer interface {
	Deliver(ctx context.Context, n game.Notification)
}

// RedisPublisher publishes notifications for whichever instance holds the
// recipients' connections.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Notify(ctx context.Context, n game.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Local delivers in process. It is used when redis is not reachable.
type Local struct {
	deliverer Deliverer
}

func NewLocal(d Deliverer) *Local {
	return &Local{deliverer: d}
}

func (l *Local) Notify(ctx context.Context, n game.Notification) error {
	l.deliverer.Deliver(ctx, n)
	return nil
}
