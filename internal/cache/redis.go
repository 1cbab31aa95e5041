package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilgisen/nnews/internal/utils"
	"github.com/redis/go-redis/v9"
)

const imageKeySpace = "img:"

type RedisClient struct {
	client *redis.Client
	prefix string
}

func NewRedisClient(ctx context.Context, redisURL, prefix string) (*RedisClient, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test the connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		prefix: prefix,
	}, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) key(pageURL string) string {
	return r.prefix + imageKeySpace + utils.Hash(pageURL)
}

func (r *RedisClient) GetImage(ctx context.Context, pageURL string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key(pageURL)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get error: %w", err)
	}
	return val, true, nil
}

func (r *RedisClient) SetImage(ctx context.Context, pageURL, imageURL string, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(pageURL), imageURL, ttl).Err()
}

// Clear removes every image entry under the prefix, one SCAN page at a time.
func (r *RedisClient) Clear(ctx context.Context) error {
	const pageSize = 500
	match := r.prefix + imageKeySpace + "*"

	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, pageSize).Result()
		if err != nil {
			return fmt.Errorf("scan image keys: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Unlink(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("unlink image keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
