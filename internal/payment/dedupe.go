package payment

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	eventKeyPrefix = "payment:webhook:"
	eventKeyTTL    = 24 * time.Hour
)

// RedisDeduper remembers processed webhook event ids.
type RedisDeduper struct {
	client *redis.Client
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client}
}

// FirstSeen claims eventID and reports whether this call was the first.
func (d *RedisDeduper) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	return d.client.SetNX(ctx, eventKeyPrefix+eventID, 1, eventKeyTTL).Result()
}

// Forget releases a claim so a redelivery is processed again.
func (d *RedisDeduper) Forget(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, eventKeyPrefix+eventID).Err()
}
