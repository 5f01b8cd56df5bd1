package cache

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/galia-project/iiifcore/internal/common/redis"
	"github.com/galia-project/iiifcore/internal/config"
)

// variantTTL is applied to Redis-backed variant entries; the filesystem
// backend has no TTL concept and relies entirely on Purge/evict_missing.
const variantTTL = 7 * 24 * time.Hour

// infoTTL is applied to Redis-backed info entries.
const infoTTL = 24 * time.Hour

// Build assembles a Facade from cfg, wiring in redisClient only if at
// least one tier is configured to use the redis backend. logger is
// attached to the facade and to every backend that logs.
func Build(cfg config.CacheConfig, redisClient *redis.Client, logger *zap.Logger) (*Facade, error) {
	f := &Facade{Logger: logger}

	variant, err := buildVariant(cfg, redisClient, logger)
	if err != nil {
		return nil, fmt.Errorf("build variant cache: %w", err)
	}
	f.Variant = variant

	info, err := buildInfo(cfg, redisClient, logger)
	if err != nil {
		return nil, fmt.Errorf("build info cache: %w", err)
	}
	f.Info = info

	if cfg.HeapInfoCapacity > 0 {
		heap, err := NewLRUHeapInfoCache(cfg.HeapInfoCapacity)
		if err != nil {
			return nil, fmt.Errorf("build heap info cache: %w", err)
		}
		f.HeapInfo = heap
	}

	return f, nil
}

func buildVariant(cfg config.CacheConfig, redisClient *redis.Client, logger *zap.Logger) (VariantCache, error) {
	switch cfg.VariantBackend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendFilesystem:
		if cfg.FilesystemRoot == "" {
			return nil, fmt.Errorf("filesystem_root is required for a filesystem variant backend")
		}
		return NewFilesystemVariantCache(cfg.FilesystemRoot, cfg.CompressionAlgo, logger), nil
	case config.BackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis client is required for a redis variant backend")
		}
		return NewRedisVariantCache(redisClient, variantTTL, cfg.CompressionAlgo, logger), nil
	case config.BackendMemory:
		return NewMemoryVariantCache(), nil
	default:
		return nil, fmt.Errorf("unknown variant cache backend: %q", cfg.VariantBackend)
	}
}

func buildInfo(cfg config.CacheConfig, redisClient *redis.Client, logger *zap.Logger) (InfoCache, error) {
	switch cfg.InfoBackend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis client is required for a redis info backend")
		}
		return NewRedisInfoCache(redisClient, infoTTL, logger), nil
	case config.BackendMemory:
		return NewMemoryInfoCache(), nil
	case config.BackendFilesystem:
		return nil, fmt.Errorf("filesystem backend is not supported for the info cache, only variant storage")
	default:
		return nil, fmt.Errorf("unknown info cache backend: %q", cfg.InfoBackend)
	}
}
