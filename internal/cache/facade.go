// Package cache implements the three-tier Cache Facade: a nullable
// variant-cache, info-cache, and heap-info-cache, each independently
// pluggable, composed behind one facade so the Image/Information Request
// Handlers never need to know which backends are active.
package cache

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/galia-project/iiifcore/pkg/iiif"
)

// VariantWriter is the commit-writer returned by NewVariantWriter. Bytes
// written are not visible to readers until Commit is called; if the
// writer is discarded without a Commit (Close without Commit, or simply
// dropped), the write is abandoned.
type VariantWriter interface {
	io.Writer
	// Commit makes the written bytes visible to subsequent readers.
	Commit() error
	// Abort discards the write. Calling Abort after Commit is a no-op.
	Abort()
}

// VariantCache is a backend storing encoded image bytes keyed by an
// operation-list fingerprint.
type VariantCache interface {
	// NewReader returns a reader over the committed bytes for fingerprint,
	// or (nil, false) if no committed variant exists.
	NewReader(ctx context.Context, fingerprint string) (io.ReadCloser, bool)
	NewWriter(ctx context.Context, identifier iiif.Identifier, fingerprint string) VariantWriter
	// Purge removes every variant belonging to identifier.
	Purge(ctx context.Context, identifier iiif.Identifier) error
}

// InfoCache is a backend storing one Info document per identifier.
type InfoCache interface {
	Get(ctx context.Context, identifier iiif.Identifier) (iiif.Info, bool)
	Put(ctx context.Context, identifier iiif.Identifier, info iiif.Info)
	Purge(ctx context.Context, identifier iiif.Identifier) error
}

// HeapInfoCache is an in-process mirror of InfoCache, consulted first.
type HeapInfoCache interface {
	Get(identifier iiif.Identifier) (iiif.Info, bool)
	Put(identifier iiif.Identifier, info iiif.Info)
	Purge(identifier iiif.Identifier)
}

// Facade routes get_info/put_info/variant stream requests across the
// three tiers. Any tier may be nil ("disabled"); the facade degrades to
// the remaining tiers and, in the worst case, to always-miss.
type Facade struct {
	Variant  VariantCache
	Info     InfoCache
	HeapInfo HeapInfoCache
	Logger   *zap.Logger
}

// GetInfo checks the heap-info-cache, then the info-cache. On a heap miss
// but an info-cache hit, it populates the heap-info-cache as a side
// effect so the next lookup for the same identifier is in-process.
func (f *Facade) GetInfo(ctx context.Context, identifier iiif.Identifier) (iiif.Info, bool) {
	if f.HeapInfo != nil {
		if info, ok := f.HeapInfo.Get(identifier); ok {
			return info, true
		}
	}
	if f.Info == nil {
		return iiif.Info{}, false
	}
	info, ok := f.Info.Get(ctx, identifier)
	if !ok {
		return iiif.Info{}, false
	}
	if f.HeapInfo != nil {
		f.HeapInfo.Put(identifier, info)
	}
	return info, true
}

// PutInfo writes through to every enabled tier. The write may be
// asynchronous at the backend's discretion; callers must not assume
// immediate visibility.
func (f *Facade) PutInfo(ctx context.Context, identifier iiif.Identifier, info iiif.Info) {
	if f.HeapInfo != nil {
		f.HeapInfo.Put(identifier, info)
	}
	if f.Info != nil {
		f.Info.Put(ctx, identifier, info)
	}
}

// NewVariantReader returns Some(reader) only if the variant is present and
// committed. Backend errors are logged and demoted to a miss.
func (f *Facade) NewVariantReader(ctx context.Context, fingerprint string) (io.ReadCloser, bool) {
	if f.Variant == nil {
		return nil, false
	}
	r, ok := f.Variant.NewReader(ctx, fingerprint)
	if !ok && f.Logger != nil {
		f.Logger.Debug("variant cache miss", zap.String("fingerprint", fingerprint))
	}
	return r, ok
}

// NewVariantWriter returns a commit-writer for fingerprint. If the variant
// cache is disabled, a no-op writer is returned so callers can always tee
// into it unconditionally.
func (f *Facade) NewVariantWriter(ctx context.Context, identifier iiif.Identifier, fingerprint string) VariantWriter {
	if f.Variant == nil {
		return noopWriter{}
	}
	return f.Variant.NewWriter(ctx, identifier, fingerprint)
}

// Purge evicts every variant and the info entry for identifier across all
// enabled tiers. Errors from a given tier are logged; purge continues on
// best effort across the remaining tiers.
func (f *Facade) Purge(ctx context.Context, identifier iiif.Identifier) {
	if f.Variant != nil {
		if err := f.Variant.Purge(ctx, identifier); err != nil && f.Logger != nil {
			f.Logger.Warn("variant purge failed", zap.String("identifier", string(identifier)), zap.Error(err))
		}
	}
	if f.Info != nil {
		if err := f.Info.Purge(ctx, identifier); err != nil && f.Logger != nil {
			f.Logger.Warn("info purge failed", zap.String("identifier", string(identifier)), zap.Error(err))
		}
	}
	if f.HeapInfo != nil {
		f.HeapInfo.Purge(identifier)
	}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
func (noopWriter) Commit() error               { return nil }
func (noopWriter) Abort()                      {}
