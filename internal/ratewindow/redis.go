package ratewindow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rate_window:"

// RedisStore is a Store backed by a shared Redis instance so that rate
// windows survive process restarts and are shared across replicas.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]time.Time, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var stamps []time.Time
	if err := json.Unmarshal(raw, &stamps); err != nil {
		// A corrupt entry is worthless; drop it and start a fresh window.
		_ = s.client.Del(ctx, redisKeyPrefix+key).Err()
		return nil, nil
	}
	return stamps, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, stamps []time.Time, ttl time.Duration) error {
	raw, err := json.Marshal(stamps)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}
