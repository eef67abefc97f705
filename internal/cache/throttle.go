package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const throttleKeyPrefix = "throttle:"

// InteractionLimiter caps how many chat interactions one user may send per
// window. Redis failures let the interaction through.
type InteractionLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewInteractionLimiter(client *redis.Client, limit int, window time.Duration) *InteractionLimiter {
	return &InteractionLimiter{redis: client, limit: limit, window: window}
}

func (l *InteractionLimiter) Allow(ctx context.Context, userRef int64) bool {
	if l == nil || l.redis == nil || l.limit <= 0 {
		return true
	}
	key := throttleKeyPrefix + strconv.FormatInt(userRef, 10)

	pipe := l.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true
	}
	return int(incr.Val()) <= l.limit
}
