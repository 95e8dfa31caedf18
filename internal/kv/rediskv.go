package kv

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the durable blobs in Redis, one string value per
// key.  Redis signals capacity exhaustion with an OOM reply when
// maxmemory is configured with a noeviction policy; that reply is
// mapped to ErrQuotaExceeded so the storage layer can recover the same
// way it does on the file medium.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore wraps an existing Redis client.  The prefix namespaces
// all keys so several deployments can share one Redis database.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (r *RedisStore) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

// Get returns the value under key, or ErrNotFound when absent.
func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// Set stores the value without expiry.  OOM replies become
// ErrQuotaExceeded.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	err := r.rdb.Set(ctx, r.key(key), value, 0).Err()
	if err != nil && strings.Contains(err.Error(), "OOM") {
		return ErrQuotaExceeded
	}
	return err
}

// Delete removes the key.  Redis DEL on a missing key is a no-op.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.key(key)).Err()
}
