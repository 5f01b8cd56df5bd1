package handler

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/galia-project/iiifcore/internal/cache"
	"github.com/galia-project/iiifcore/internal/config"
	"github.com/galia-project/iiifcore/internal/imagecodec"
	"github.com/galia-project/iiifcore/internal/reqctx"
	"github.com/galia-project/iiifcore/internal/source"
	"github.com/galia-project/iiifcore/pkg/iiif"
)

// ImageHandler orchestrates §4.8's state machine:
//
//	START -> AUTH_PRE -> RESOLVE_OR_CACHE_HIT_CHECK -> AUTH_POST
//	      -> (HIT: STREAM) | (MISS: READ_INFO -> PROCESS -> ENCODE -> TEE_TO_CACHE)
//	      -> END
type ImageHandler struct {
	Cache    *cache.Facade
	Resolver *source.Resolver
	Codecs   *imagecodec.Registry
	Cfg      config.CacheConfig
	Logger   *zap.Logger
}

// Handle runs one image request. dest receives the encoded bytes on
// success; on an authorization withhold, dest receives nothing and
// (false, nil) is returned so the caller emits an empty body.
func (h *ImageHandler) Handle(ctx context.Context, identifier iiif.Identifier, ops iiif.OperationList, rc *reqctx.Context, cb ImageCallback, dest io.Writer) (bool, error) {
	if cb == nil {
		cb = DefaultImageCallback{}
	}

	// AUTH_PRE
	ok, err := cb.AuthorizeBeforeAccess(rc)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	fingerprint := ops.Fingerprint()

	// RESOLVE_OR_CACHE_HIT_CHECK
	var reader io.ReadCloser
	hit := false
	if h.Cache != nil {
		reader, hit = h.Cache.NewVariantReader(ctx, fingerprint)
	}

	var res source.Resolution
	if !hit {
		res, err = h.Resolver.Resolve(identifier)
		if err != nil {
			return false, err
		}
		exists, err := h.Resolver.Stat(ctx, res)
		if err != nil {
			return false, err
		}
		if !exists {
			if h.Cfg.EvictMissing && h.Cache != nil {
				h.Cache.Purge(ctx, identifier)
			}
			return false, iiif.NotFound("source %q not found", identifier)
		}
	}

	// AUTH_POST
	ok, err = cb.Authorize(rc)
	if err != nil {
		return false, err
	}
	if !ok {
		if reader != nil {
			reader.Close()
		}
		return false, nil
	}

	if hit {
		defer reader.Close()
		cb.WillStreamImageFromVariantCache(rc, SourceStat{Existed: true, FromCache: true, Identifier: identifier})
		if _, err := io.Copy(dest, reader); err != nil {
			return false, iiif.Internal(err, "stream cached variant for %q", identifier)
		}
		return true, nil
	}

	return h.processMiss(ctx, identifier, res, ops, fingerprint, rc, cb, dest)
}

func (h *ImageHandler) processMiss(ctx context.Context, identifier iiif.Identifier, res source.Resolution, ops iiif.OperationList, fingerprint string, rc *reqctx.Context, cb ImageCallback, dest io.Writer) (bool, error) {
	dec, ok := h.Codecs.Decoder(extensionOf(res.Path))
	if !ok {
		return false, iiif.UnsupportedFormat("no decoder registered for source %q", identifier)
	}
	src, err := dec.Open(ctx, res.Path)
	if err != nil {
		return false, iiif.Internal(err, "open source %q", identifier)
	}
	defer src.Close()

	info, err := src.Info(ctx)
	if err != nil {
		return false, iiif.Internal(err, "read info for %q", identifier)
	}
	info.Identifier = identifier
	cb.InfoAvailable(rc, info)

	if ops.Meta.HasPage && ops.Meta.Page >= info.EffectivePageCount() {
		return false, iiif.IllegalArgument("requested page %d >= page count %d", ops.Meta.Page, info.EffectivePageCount())
	}
	if err := validateAgainstSource(ops, info); err != nil {
		return false, err
	}

	cb.WillProcessImage(rc, info)

	buf, err := src.Decode(ctx, ops)
	if err != nil {
		return false, iiif.Internal(err, "decode %q", identifier)
	}

	format, quality := lastEncodeParams(ops)
	enc, ok := h.Codecs.Encoder(format.Extension)
	if !ok {
		return false, iiif.UnsupportedFormat("no encoder registered for format %q", format.Extension)
	}

	var writer cache.VariantWriter
	if h.Cache != nil {
		writer = h.Cache.NewVariantWriter(ctx, identifier, fingerprint)
	}
	tee := dest
	if writer != nil {
		tee = io.MultiWriter(dest, writer)
	}

	if err := enc.Encode(ctx, tee, buf, quality); err != nil {
		if writer != nil {
			writer.Abort()
		}
		return false, iiif.Internal(err, "encode %q", identifier)
	}
	if writer != nil {
		if err := writer.Commit(); err != nil && h.Logger != nil {
			h.Logger.Warn("variant cache commit failed, response already sent", zap.String("identifier", string(identifier)), zap.Error(err))
		}
	}
	return true, nil
}

// validateAgainstSource re-checks the already-lowered operation list's
// Scale/Crop dimensions against the source's actual size, catching a case
// where the info cache served stale dimensions that disagree with the
// freshly decoded source.
func validateAgainstSource(ops iiif.OperationList, info iiif.Info) error {
	for _, op := range ops.Operations {
		switch op.Kind {
		case iiif.OpCrop:
			if op.CropX+op.CropW > float64(info.Width)+0.5 || op.CropY+op.CropH > float64(info.Height)+0.5 {
				return iiif.IllegalArgument("crop region exceeds source bounds")
			}
		case iiif.OpScale:
			if op.ScaleW <= 0 || op.ScaleH <= 0 {
				return iiif.IllegalArgument("resolved scale is non-positive")
			}
		}
	}
	return nil
}

func lastEncodeParams(ops iiif.OperationList) (iiif.Format, iiif.Quality) {
	for i := len(ops.Operations) - 1; i >= 0; i-- {
		if ops.Operations[i].Kind == iiif.OpEncode {
			return ops.Operations[i].Format, ops.Operations[i].Quality
		}
	}
	return iiif.Format{}, iiif.QualityDefault
}
