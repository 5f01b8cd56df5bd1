package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/galia-project/iiifcore/internal/common/redis"
	"github.com/galia-project/iiifcore/pkg/iiif"
)

// RedisInfoCache stores one JSON-marshaled Info document per identifier.
type RedisInfoCache struct {
	client *redis.Client
	keys   *redis.KeyGenerator
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisInfoCache creates a backend over client. ttl of 0 stores
// entries without expiration.
func NewRedisInfoCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisInfoCache {
	return &RedisInfoCache{client: client, keys: redis.NewKeyGenerator(), ttl: ttl, logger: logger}
}

func (r *RedisInfoCache) Get(ctx context.Context, identifier iiif.Identifier) (iiif.Info, bool) {
	raw, err := r.client.Get(ctx, r.keys.InfoKey(string(identifier)))
	if err != nil || raw == "" {
		if err != nil && r.logger != nil {
			r.logger.Warn("redis info read failed", zap.String("identifier", string(identifier)), zap.Error(err))
		}
		return iiif.Info{}, false
	}
	var info iiif.Info
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		if r.logger != nil {
			r.logger.Warn("redis info unmarshal failed", zap.String("identifier", string(identifier)), zap.Error(err))
		}
		return iiif.Info{}, false
	}
	return info, true
}

func (r *RedisInfoCache) Put(ctx context.Context, identifier iiif.Identifier, info iiif.Info) {
	raw, err := json.Marshal(info)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("redis info marshal failed", zap.String("identifier", string(identifier)), zap.Error(err))
		}
		return
	}
	if err := r.client.Set(ctx, r.keys.InfoKey(string(identifier)), raw, r.ttl); err != nil && r.logger != nil {
		r.logger.Warn("redis info write failed", zap.String("identifier", string(identifier)), zap.Error(err))
	}
}

func (r *RedisInfoCache) Purge(ctx context.Context, identifier iiif.Identifier) error {
	return r.client.Del(ctx, r.keys.InfoKey(string(identifier)))
}
