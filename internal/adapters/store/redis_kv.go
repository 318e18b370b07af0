package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes every key written by this service
const DefaultNamespace = "c5isr:"

// ARGV: 1 expect-absent flag, 2 old value, 3 new value, 4 ttl in ms
var casScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if ARGV[1] == '1' then
  if cur then return 0 end
else
  if (not cur) or cur ~= ARGV[2] then return 0 end
end
if tonumber(ARGV[4]) > 0 then
  redis.call('SET', KEYS[1], ARGV[3], 'PX', ARGV[4])
else
  redis.call('SET', KEYS[1], ARGV[3])
end
return 1
`)

var cadScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisKV is the shared KV backend for multi-instance deployments
type RedisKV struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisKV wraps client; keys are written under namespace
func NewRedisKV(client redis.UniversalClient, namespace string) *RedisKV {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisKV{client: client, namespace: namespace}
}

// OpenRedis parses url and verifies the server answers
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisKV) key(k string) string {
	return r.namespace + k
}

// Get implements KV
func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

// Put implements KV
func (r *RedisKV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete implements KV
func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// CompareAndSwap implements KV with a server-side script
func (r *RedisKV) CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) (bool, error) {
	absent := "0"
	if old == nil {
		absent = "1"
	}
	ms := ttl.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	n, err := casScript.Run(ctx, r.client, []string{r.key(key)}, absent, old, next, ms).Int()
	if err != nil {
		return false, fmt.Errorf("redis cas %s: %w", key, err)
	}
	return n == 1, nil
}

// CompareAndDelete implements KV with a server-side script
func (r *RedisKV) CompareAndDelete(ctx context.Context, key string, old []byte) (bool, error) {
	n, err := cadScript.Run(ctx, r.client, []string{r.key(key)}, old).Int()
	if err != nil {
		return false, fmt.Errorf("redis cad %s: %w", key, err)
	}
	return n == 1, nil
}

// Scan implements KV using SCAN so large keyspaces are not blocked
func (r *RedisKV) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	iter := r.client.Scan(ctx, 0, r.key(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		b, err := r.client.Get(ctx, full).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis scan get %s: %w", full, err)
		}
		out[strings.TrimPrefix(full, r.namespace)] = b
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	return out, nil
}
