// Package imagecodec defines the decoder/encoder boundary consumed by
// the Image and Information Request Handlers. The codecs themselves
// (concrete JPEG/TIFF/PNG/etc. readers and writers) are explicitly out of
// scope for this server core — this package only specifies the
// interfaces a plugin would satisfy and a registry for discovering one by
// source format.
package imagecodec

import (
	"context"
	"io"

	"github.com/galia-project/iiifcore/pkg/iiif"
)

// Source is a bound handle to one source image, opened by a Decoder. Its
// native resources (file descriptors, decompressor state, …) are
// released by Close and MUST be released on every exit path, including a
// panic recovered upstream.
type Source interface {
	// Info reports the source's structural properties.
	Info(ctx context.Context) (iiif.Info, error)
	// Decode renders the region/size/rotation/quality described by ops
	// into raw pixels understood by the paired Encoder. The returned
	// value is opaque to the handler; it is only ever handed to an
	// Encoder.Encode call.
	Decode(ctx context.Context, ops iiif.OperationList) (PixelBuffer, error)
	Close() error
}

// PixelBuffer is the opaque in-memory result of a Decode call. It carries
// no behavior here; concrete decoder/encoder pairs agree on its real type
// out of band (this boundary only needs the two sides to compose).
type PixelBuffer interface {
	Width() int
	Height() int
}

// Decoder opens a Source bound to an identifier-resolved backend path.
// SourceFormatMismatch recovery (declared extension rejected, retry with
// the format sniffed from file magic) is the Decoder implementation's
// responsibility; the handler only ever sees the final Open outcome.
type Decoder interface {
	// Format is the registered extension this decoder claims to read
	// (e.g. "jpg"); used by the registry to pick a decoder for a probed
	// source.
	Format() string
	Open(ctx context.Context, path string) (Source, error)
	// Sniff identifies the format of content from its leading bytes,
	// independent of any claimed extension. Returns "" if unrecognized.
	Sniff(header []byte) string
}

// Encoder writes a PixelBuffer to w in its registered format.
type Encoder interface {
	Format() string
	Encode(ctx context.Context, w io.Writer, buf PixelBuffer, quality iiif.Quality) error
}

// Registry resolves a format extension to its registered Decoder/Encoder.
// A deployment registers exactly the codecs it has compiled in; looking
// up an extension with no registered codec is a 415 at the handler.
type Registry struct {
	decoders map[string]Decoder
	encoders map[string]Encoder
}

// NewRegistry creates an empty codec registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder), encoders: make(map[string]Encoder)}
}

// RegisterDecoder adds d under d.Format(), replacing any prior registrant.
func (r *Registry) RegisterDecoder(d Decoder) {
	r.decoders[d.Format()] = d
}

// RegisterEncoder adds e under e.Format(), replacing any prior registrant.
func (r *Registry) RegisterEncoder(e Encoder) {
	r.encoders[e.Format()] = e
}

// Decoder returns the registered decoder for format, if any.
func (r *Registry) Decoder(format string) (Decoder, bool) {
	d, ok := r.decoders[format]
	return d, ok
}

// Encoder returns the registered encoder for format, if any.
func (r *Registry) Encoder(format string) (Encoder, bool) {
	e, ok := r.encoders[format]
	return e, ok
}

// SniffDecoder tries every registered decoder's Sniff against header and
// returns the first match. The Image and Information Request Handlers do
// not call it: they pick a decoder by the source path's extension only,
// and a failed Open is reported as an Internal error without a retry.
func (r *Registry) SniffDecoder(header []byte) (Decoder, bool) {
	for _, d := range r.decoders {
		if d.Sniff(header) != "" {
			return d, true
		}
	}
	return nil, false
}
