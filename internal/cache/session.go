package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/aditya/go-carpool/internal/models"
)

const sessionKeyPrefix = "session:"

// SessionCache holds a user's in-flight chat interaction for a bounded time.
// Entries vanish after the TTL or when taken.
type SessionCache interface {
	Get(ctx context.Context, userRef int64) (*models.Session, error)
	Set(ctx context.Context, userRef int64, s *models.Session) error
	// Take returns the entry and removes it in one step.
	Take(ctx context.Context, userRef int64) (*models.Session, error)
	Delete(ctx context.Context, userRef int64) error
}

// MemorySessionCache is process-local. The LRU evicts expired entries on a
// background sweep and drops the least recently used one at capacity.
type MemorySessionCache struct {
	lru *expirable.LRU[int64, models.Session]
}

func NewMemorySessionCache(capacity int, ttl time.Duration) *MemorySessionCache {
	return &MemorySessionCache{lru: expirable.NewLRU[int64, models.Session](capacity, nil, ttl)}
}

func (c *MemorySessionCache) Get(ctx context.Context, userRef int64) (*models.Session, error) {
	s, ok := c.lru.Get(userRef)
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

func (c *MemorySessionCache) Set(ctx context.Context, userRef int64, s *models.Session) error {
	c.lru.Add(userRef, *copySession(*s))
	return nil
}

func (c *MemorySessionCache) Take(ctx context.Context, userRef int64) (*models.Session, error) {
	s, ok := c.lru.Peek(userRef)
	if !ok || !c.lru.Remove(userRef) {
		return nil, nil
	}
	return copySession(s), nil
}

func (c *MemorySessionCache) Delete(ctx context.Context, userRef int64) error {
	c.lru.Remove(userRef)
	return nil
}

func copySession(s models.Session) *models.Session {
	if s.Draft != nil {
		d := *s.Draft
		s.Draft = &d
	}
	return &s
}

// RedisSessionCache shares sessions between processes. Payloads are JSON.
type RedisSessionCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisSessionCache(client *redis.Client, ttl time.Duration) *RedisSessionCache {
	return &RedisSessionCache{redis: client, ttl: ttl}
}

func sessionKey(userRef int64) string {
	return sessionKeyPrefix + strconv.FormatInt(userRef, 10)
}

func (c *RedisSessionCache) Get(ctx context.Context, userRef int64) (*models.Session, error) {
	data, err := c.redis.Get(ctx, sessionKey(userRef)).Bytes()
	return decodeSession(data, err)
}

func (c *RedisSessionCache) Set(ctx context.Context, userRef int64, s *models.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, sessionKey(userRef), data, c.ttl).Err()
}

func (c *RedisSessionCache) Take(ctx context.Context, userRef int64) (*models.Session, error) {
	data, err := c.redis.GetDel(ctx, sessionKey(userRef)).Bytes()
	return decodeSession(data, err)
}

func (c *RedisSessionCache) Delete(ctx context.Context, userRef int64) error {
	return c.redis.Del(ctx, sessionKey(userRef)).Err()
}

func decodeSession(data []byte, err error) (*models.Session, error) {
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
