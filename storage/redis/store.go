// Package redis implements storage.Store on Redis, for sessions shared by
// several client processes on one host.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go.pilab.hu/citizenportal/storage"
)

// Store implements storage.Store using Redis strings.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore creates a Store using client. Keys are namespaced by prefix.
func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr, prefix string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewStore(client, prefix), nil
}

func (r *Store) redisKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

// Get implements storage.Store.Get.
func (r *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	return value, true, nil
}

// GetMany implements storage.Store.GetMany with a single MGET.
func (r *Store) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	redisKeys := make([]string, len(keys))
	for i, key := range keys {
		redisKeys[i] = r.redisKey(key)
	}

	values, err := r.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read keys from redis: %w", err)
	}

	for i, v := range values {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}

// SetMany implements storage.Store.SetMany inside MULTI/EXEC.
func (r *Store) SetMany(ctx context.Context, entries map[string]string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range entries {
			pipe.Set(ctx, r.redisKey(key), value, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write keys to redis: %w", err)
	}
	return nil
}

// DeleteMany implements storage.Store.DeleteMany with a single DEL.
func (r *Store) DeleteMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	redisKeys := make([]string, len(keys))
	for i, key := range keys {
		redisKeys[i] = r.redisKey(key)
	}

	if err := r.client.Del(ctx, redisKeys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys from redis: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Store) Close() error {
	return r.client.Close()
}

var _ storage.Store = (*Store)(nil)
