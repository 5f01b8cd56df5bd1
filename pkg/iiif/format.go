package iiif

import "strings"

// Format describes a registered output/source format: its canonical
// extension, preferred media type, and whether the process has a codec
// able to read and/or write it. The actual codecs live behind
// internal/imagecodec — this registry only tracks capability flags so the
// URI parser and operation-list builder can validate requests without
// depending on any concrete decoder/encoder.
type Format struct {
	Extension string
	MediaType string
	Readable  bool
	Writable  bool
}

// FormatRegistry maps extensions and media types to registered Format
// entries. A nil *FormatRegistry is valid and reports every lookup as a
// miss (useful in tests that don't care about format validation).
type FormatRegistry struct {
	byExtension map[string]Format
	byMediaType map[string]Format
}

// NewFormatRegistry builds a registry from the given formats.
func NewFormatRegistry(formats ...Format) *FormatRegistry {
	r := &FormatRegistry{
		byExtension: make(map[string]Format, len(formats)),
		byMediaType: make(map[string]Format, len(formats)),
	}
	for _, f := range formats {
		r.byExtension[f.Extension] = f
		r.byMediaType[f.MediaType] = f
	}
	return r
}

// DefaultFormats returns the common IIIF-advertised format set. Concrete
// codec availability (Readable/Writable) is decided by whichever
// internal/imagecodec implementations a deployment registers; this table
// only supplies the extension/media-type/compliance metadata.
func DefaultFormats() []Format {
	return []Format{
		{Extension: "jpg", MediaType: "image/jpeg", Readable: true, Writable: true},
		{Extension: "tif", MediaType: "image/tiff", Readable: true, Writable: true},
		{Extension: "png", MediaType: "image/png", Readable: true, Writable: true},
		{Extension: "gif", MediaType: "image/gif", Readable: true, Writable: true},
		{Extension: "jp2", MediaType: "image/jp2", Readable: true, Writable: false},
		{Extension: "pdf", MediaType: "application/pdf", Readable: false, Writable: true},
		{Extension: "webp", MediaType: "image/webp", Readable: true, Writable: true},
	}
}

// Lookup resolves an extension token to its registered Format, reporting
// whether the format is writable (necessary to produce a response).
func (r *FormatRegistry) Lookup(extension string) (Format, error) {
	if r == nil {
		return Format{}, UnsupportedFormat("unknown output format %q", extension)
	}
	f, ok := r.byExtension[strings.ToLower(extension)]
	if !ok {
		return Format{}, UnsupportedFormat("unknown output format %q", extension)
	}
	if !f.Writable {
		return Format{}, UnsupportedFormat("output format %q has no registered encoder", extension)
	}
	return f, nil
}

// All returns every registered format.
func (r *FormatRegistry) All() []Format {
	if r == nil {
		return nil
	}
	out := make([]Format, 0, len(r.byExtension))
	for _, f := range r.byExtension {
		out = append(out, f)
	}
	return out
}
