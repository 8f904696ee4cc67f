package coordination

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// getAndDeleteScript atomically reads and removes a key. go-redis v9's
// GetDel does the same thing in one round trip already, but this stays
// script-based so every atomic operation in this package — buckets and
// semaphores alike — shares one Lua dispatch path, grounded on the
// ratelimit package's habit of bundling related Redis operations into a
// single script rather than mixing scripted and unscripted calls.
var getAndDeleteScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v then
	redis.call('DEL', KEYS[1])
end
return v
`)

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting %s: %w", key, err)
	}
	return v, true, nil
}

// GetAndDelete implements Store.
func (s *RedisStore) GetAndDelete(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := getAndDeleteScript.Run(ctx, s.client, []string{key}).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get-and-delete %s: %w", key, err)
	}
	if res == nil {
		return nil, false, nil
	}
	switch v := res.(type) {
	case string:
		return []byte(v), true, nil
	case []byte:
		return v, true, nil
	default:
		return nil, false, fmt.Errorf("get-and-delete %s: unexpected reply type %T", key, res)
	}
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
