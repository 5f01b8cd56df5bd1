package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/galia-project/iiifcore/internal/cache"
	"github.com/galia-project/iiifcore/internal/config"
	"github.com/galia-project/iiifcore/internal/imagecodec"
	"github.com/galia-project/iiifcore/internal/reqctx"
	"github.com/galia-project/iiifcore/internal/source"
	"github.com/galia-project/iiifcore/pkg/iiif"
)

// InfoHandler orchestrates §4.7: authorize-before-access, a resolve-first
// or cache-first probe, populating the request context, then a second
// authorization gate before releasing the Info to the caller.
type InfoHandler struct {
	Cache    *cache.Facade
	Resolver *source.Resolver
	Codecs   *imagecodec.Registry
	Cfg      config.CacheConfig
	Logger   *zap.Logger
}

// Handle runs the full sequence and returns (info, true, nil) on success,
// or (zero Info, false, err) where err is an *iiif.Error carrying the
// HTTP-mapped Kind. (zero Info, false, nil) means authorization withheld
// it silently (no body, no error — the caller must emit an empty response).
func (h *InfoHandler) Handle(ctx context.Context, identifier iiif.Identifier, rc *reqctx.Context, cb InfoCallback) (iiif.Info, bool, error) {
	if cb == nil {
		cb = DefaultInfoCallback{}
	}

	ok, err := cb.AuthorizeBeforeAccess(rc)
	if err != nil {
		return iiif.Info{}, false, err
	}
	if !ok {
		return iiif.Info{}, false, nil
	}

	info, stat, err := h.resolve(ctx, identifier, cb)
	if err != nil {
		return iiif.Info{}, false, err
	}

	rc.Set(reqctx.FieldIdentifier, string(identifier))
	rc.Set(reqctx.FieldPageCount, info.EffectivePageCount())
	rc.Set(reqctx.FieldFullWidth, info.Width)
	rc.Set(reqctx.FieldFullHeight, info.Height)

	ok, err = cb.Authorize(rc)
	if err != nil {
		return iiif.Info{}, false, err
	}
	if !ok {
		return iiif.Info{}, false, nil
	}

	if stat.FromCache {
		cb.CacheAccessed(rc, stat)
	} else {
		cb.SourceAccessed(rc, stat)
	}
	return info, true, nil
}

// resolve implements the resolve-first/cache-first branch of step 2.
func (h *InfoHandler) resolve(ctx context.Context, identifier iiif.Identifier, cb InfoCallback) (iiif.Info, SourceStat, error) {
	if h.Cfg.ResolveFirst {
		return h.resolveFirst(ctx, identifier)
	}
	return h.cacheFirst(ctx, identifier)
}

func (h *InfoHandler) resolveFirst(ctx context.Context, identifier iiif.Identifier) (iiif.Info, SourceStat, error) {
	res, err := h.Resolver.Resolve(identifier)
	if err != nil {
		return iiif.Info{}, SourceStat{}, err
	}
	exists, err := h.Resolver.Stat(ctx, res)
	if err != nil {
		return iiif.Info{}, SourceStat{}, err
	}
	if !exists {
		if h.Cfg.EvictMissing && h.Cache != nil {
			h.Cache.Purge(ctx, identifier)
		}
		return iiif.Info{}, SourceStat{}, iiif.NotFound("source %q not found", identifier)
	}
	if info, hit := h.Cache.GetInfo(ctx, identifier); hit {
		return info, SourceStat{Existed: true, Identifier: identifier}, nil
	}
	info, err := h.decodeInfo(ctx, identifier, res.Path)
	if err != nil {
		return iiif.Info{}, SourceStat{}, err
	}
	h.Cache.PutInfo(ctx, identifier, info)
	return info, SourceStat{Existed: true, Identifier: identifier}, nil
}

func (h *InfoHandler) cacheFirst(ctx context.Context, identifier iiif.Identifier) (iiif.Info, SourceStat, error) {
	if info, hit := h.Cache.GetInfo(ctx, identifier); hit {
		return info, SourceStat{Existed: true, FromCache: true, Identifier: identifier}, nil
	}
	res, err := h.Resolver.Resolve(identifier)
	if err != nil {
		return iiif.Info{}, SourceStat{}, err
	}
	exists, err := h.Resolver.Stat(ctx, res)
	if err != nil {
		return iiif.Info{}, SourceStat{}, err
	}
	if !exists {
		if h.Cfg.EvictMissing && h.Cache != nil {
			h.Cache.Purge(ctx, identifier)
		}
		return iiif.Info{}, SourceStat{}, iiif.NotFound("source %q not found", identifier)
	}
	info, err := h.decodeInfo(ctx, identifier, res.Path)
	if err != nil {
		return iiif.Info{}, SourceStat{}, err
	}
	h.Cache.PutInfo(ctx, identifier, info)
	return info, SourceStat{Existed: true, Identifier: identifier}, nil
}

func (h *InfoHandler) decodeInfo(ctx context.Context, identifier iiif.Identifier, path string) (iiif.Info, error) {
	dec, ok := h.Codecs.Decoder(extensionOf(path))
	if !ok {
		return iiif.Info{}, iiif.UnsupportedFormat("no decoder registered for source %q", identifier)
	}
	src, err := dec.Open(ctx, path)
	if err != nil {
		return iiif.Info{}, iiif.Internal(err, "open source %q", identifier)
	}
	defer src.Close()
	info, err := src.Info(ctx)
	if err != nil {
		return iiif.Info{}, iiif.Internal(err, "read info for %q", identifier)
	}
	info.Identifier = identifier
	return info, nil
}
