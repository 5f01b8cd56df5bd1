// Package handler implements the Information and Image Request Handlers:
// the cache/decoder orchestration and callback-based authorization
// lifecycle that sits between the Resource Router and the Cache Facade /
// codec registry.
package handler

import (
	"github.com/galia-project/iiifcore/internal/reqctx"
	"github.com/galia-project/iiifcore/pkg/iiif"
)

// SourceStat describes the outcome of a source probe or cache hit, handed
// to the source_accessed/cache_accessed/will_stream_image_from_variant_cache
// notifications.
type SourceStat struct {
	Existed    bool
	FromCache  bool
	Identifier iiif.Identifier
}

// InfoCallback is the four-hook delegate consulted by the Information
// Request Handler. A nil method pointer is never called; use
// DefaultInfoCallback for the all-permit, no-op baseline.
type InfoCallback interface {
	// AuthorizeBeforeAccess gates step 1: false means no source or cache
	// touch occurs at all.
	AuthorizeBeforeAccess(ctx *reqctx.Context) (bool, error)
	// Authorize gates step 4: false means the Info is withheld even
	// though it was already resolved.
	Authorize(ctx *reqctx.Context) (bool, error)
	// SourceAccessed fires when step 2 actually probed the source.
	SourceAccessed(ctx *reqctx.Context, stat SourceStat)
	// CacheAccessed fires when step 2 was satisfied entirely from cache.
	CacheAccessed(ctx *reqctx.Context, stat SourceStat)
}

// ImageCallback is the five-hook delegate consulted by the Image Request
// Handler.
type ImageCallback interface {
	AuthorizeBeforeAccess(ctx *reqctx.Context) (bool, error)
	Authorize(ctx *reqctx.Context) (bool, error)
	// InfoAvailable fires once Info has been resolved on the MISS path,
	// before the operation pipeline runs.
	InfoAvailable(ctx *reqctx.Context, info iiif.Info)
	// WillProcessImage fires immediately before the decoder is opened.
	WillProcessImage(ctx *reqctx.Context, info iiif.Info)
	// WillStreamImageFromVariantCache fires on the HIT path, before any
	// bytes are written to the response.
	WillStreamImageFromVariantCache(ctx *reqctx.Context, stat SourceStat)
}

// DefaultInfoCallback authorizes every request and ignores notifications.
type DefaultInfoCallback struct{}

func (DefaultInfoCallback) AuthorizeBeforeAccess(*reqctx.Context) (bool, error) { return true, nil }
func (DefaultInfoCallback) Authorize(*reqctx.Context) (bool, error)             { return true, nil }
func (DefaultInfoCallback) SourceAccessed(*reqctx.Context, SourceStat)          {}
func (DefaultInfoCallback) CacheAccessed(*reqctx.Context, SourceStat)           {}

// DefaultImageCallback authorizes every request and ignores notifications.
type DefaultImageCallback struct{}

func (DefaultImageCallback) AuthorizeBeforeAccess(*reqctx.Context) (bool, error)         { return true, nil }
func (DefaultImageCallback) Authorize(*reqctx.Context) (bool, error)                     { return true, nil }
func (DefaultImageCallback) InfoAvailable(*reqctx.Context, iiif.Info)                    {}
func (DefaultImageCallback) WillProcessImage(*reqctx.Context, iiif.Info)                 {}
func (DefaultImageCallback) WillStreamImageFromVariantCache(*reqctx.Context, SourceStat) {}
