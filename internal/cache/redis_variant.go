package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/galia-project/iiifcore/internal/common/redis"
	"github.com/galia-project/iiifcore/pkg/iiif"
)

// RedisVariantCache stores encoded variants as Redis strings, namespaced
// per identifier via KeyGenerator.VariantKey so Purge can glob and delete
// every variant belonging to one source in a single KEYS+DEL round trip.
type RedisVariantCache struct {
	client      *redis.Client
	keys        *redis.KeyGenerator
	ttl         time.Duration
	compression string
	logger      *zap.Logger
}

// NewRedisVariantCache creates a backend over client. ttl of 0 stores the
// namespaced entries without expiration; the fingerprint alias that
// NewReader reads still expires after flatAliasTTL, after which the
// variant is no longer served.
func NewRedisVariantCache(client *redis.Client, ttl time.Duration, compression string, logger *zap.Logger) *RedisVariantCache {
	return &RedisVariantCache{client: client, keys: redis.NewKeyGenerator(), ttl: ttl, compression: compression, logger: logger}
}

func (r *RedisVariantCache) NewReader(ctx context.Context, fingerprint string) (io.ReadCloser, bool) {
	// The fingerprint alone does not carry the identifier namespace tag,
	// so readers address the flat alias key; writers populate both.
	raw, err := r.client.GetBytes(ctx, flatVariantKey(fingerprint))
	if err != nil || raw == nil {
		if err != nil && r.logger != nil {
			r.logger.Warn("redis variant read failed", zap.String("fingerprint", fingerprint), zap.Error(err))
		}
		return nil, false
	}
	content, err := decompress(raw, r.compression)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("redis variant decompress failed", zap.String("fingerprint", fingerprint), zap.Error(err))
		}
		return nil, false
	}
	return io.NopCloser(bytes.NewReader(content)), true
}

func (r *RedisVariantCache) NewWriter(ctx context.Context, identifier iiif.Identifier, fingerprint string) VariantWriter {
	return &redisWriter{ctx: ctx, cache: r, identifier: identifier, fingerprint: fingerprint, buf: &bytes.Buffer{}}
}

func (r *RedisVariantCache) Purge(ctx context.Context, identifier iiif.Identifier) error {
	pattern := r.keys.VariantPatternFor(string(identifier))
	matched, err := r.client.Keys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("list variant keys: %w", err)
	}
	if len(matched) == 0 {
		return nil
	}
	// Each namespaced key ends in its fingerprint; delete the matching
	// fingerprint alias too, since that is the key NewReader reads.
	namespace := strings.TrimSuffix(pattern, "*")
	keys := append([]string(nil), matched...)
	for _, k := range matched {
		keys = append(keys, flatVariantKey(strings.TrimPrefix(k, namespace)))
	}
	return r.client.Del(ctx, keys...)
}

func flatVariantKey(fingerprint string) string {
	return "variant-by-fp:" + fingerprint
}

// flatAliasTTL caps the lifetime of the identifier-less fingerprint alias
// key.
const flatAliasTTL = 24 * time.Hour

type redisWriter struct {
	ctx         context.Context
	cache       *RedisVariantCache
	identifier  iiif.Identifier
	fingerprint string
	buf         *bytes.Buffer
	done        bool
}

func (w *redisWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, fmt.Errorf("write after commit/abort")
	}
	return w.buf.Write(p)
}

func (w *redisWriter) Commit() error {
	if w.done {
		return nil
	}
	w.done = true
	content, _, err := compress(w.buf.Bytes(), w.cache.compression)
	if err != nil {
		return fmt.Errorf("compress variant: %w", err)
	}
	namespaced := w.cache.keys.VariantKey(string(w.identifier), w.fingerprint)
	if err := w.cache.client.Set(w.ctx, namespaced, content, w.cache.ttl); err != nil {
		return err
	}
	// The flat alias has no identifier tag to glob on; Purge reaches it
	// through the fingerprints of the namespaced keys it finds. Its
	// lifetime is capped at flatAliasTTL even when the namespaced TTL is 0
	// (persistent), so it never outlives the namespaced key.
	flatTTL := w.cache.ttl
	if flatTTL <= 0 || flatTTL > flatAliasTTL {
		flatTTL = flatAliasTTL
	}
	return w.cache.client.Set(w.ctx, flatVariantKey(w.fingerprint), content, flatTTL)
}

func (w *redisWriter) Abort() {
	w.done = true
	w.buf = nil
}
