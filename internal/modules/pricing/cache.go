// README: Redis cache for the latest pricing version.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const latestKey = "pricing:latest"

// setIfNewer keeps the entry whose version (created_at in microseconds) is
// highest, so a slow reader can never put back a config older than the one
// an update just wrote.
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'cfg', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context) (Config, bool, error) {
	raw, err := c.rdb.HGet(ctx, latestKey, "cfg").Bytes()
	if errors.Is(err, redis.Nil) {
		return Config{}, false, nil
	}
	if err != nil {
		return Config{}, false, err
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}

// Set stores cfg unless the cache already holds a version at least as new.
func (c *RedisCache) Set(ctx context.Context, cfg Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return setIfNewer.Run(ctx, c.rdb, []string{latestKey},
		cfg.CreatedAt.UnixMicro(), raw, c.ttl.Milliseconds()).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, latestKey).Err()
}
