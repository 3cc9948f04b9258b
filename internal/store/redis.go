package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 100

// globEscaper quotes the characters SCAN MATCH treats as patterns.
var globEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"?", `\?`,
	"[", `\[`,
	"]", `\]`,
)

// RedisPartition is a durable partition stored in Redis. All keys are
// namespaced so several consoles can share one server; a namespace without
// a trailing colon gets one.
type RedisPartition struct {
	client    *redis.Client
	namespace string
}

// NewRedisPartition connects to the Redis server at addr and verifies the
// connection with PING.
func NewRedisPartition(ctx context.Context, addr string, db int, namespace string) (*RedisPartition, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	return newRedisPartitionFromClient(client, namespace), nil
}

func newRedisPartitionFromClient(client *redis.Client, namespace string) *RedisPartition {
	if namespace != "" && !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}
	return &RedisPartition{client: client, namespace: namespace}
}

// Close closes the Redis client.
func (p *RedisPartition) Close() error {
	return p.client.Close()
}

func (p *RedisPartition) key(k string) string {
	return p.namespace + k
}

// Get returns the value stored under key.
func (p *RedisPartition) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := p.client.Get(ctx, p.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading key %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key without expiry.
func (p *RedisPartition) Set(ctx context.Context, key, value string) error {
	if err := p.client.Set(ctx, p.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("writing key %s: %w", key, err)
	}
	return nil
}

// Delete removes keys.
func (p *RedisPartition) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = p.key(k)
	}

	if err := p.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("deleting %d keys: %w", len(keys), err)
	}
	return nil
}

// Keys lists keys starting with prefix using SCAN.
func (p *RedisPartition) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := globEscaper.Replace(p.key(prefix)) + "*"

	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := p.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning keys with prefix %q: %w", prefix, err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, p.namespace))
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}
