// Package infofactory projects a version-agnostic iiif.Info into the
// wire-level descriptor document for IIIF Image API v1, v2, v3, or Deep
// Zoom (DZI). None of the projections touch a decoder, cache, or HTTP
// framework; they are pure functions of Info, the caller-supplied id, and
// the imaging configuration (min size, max pixels, tile size).
package infofactory

import (
	"github.com/galia-project/iiifcore/internal/config"
	"github.com/galia-project/iiifcore/pkg/iiif"
)

// Factory projects Info documents using the imaging limits from
// configuration. It holds no per-request state and is safe for
// concurrent use.
type Factory struct {
	Imaging config.ImagingConfig
	Formats *iiif.FormatRegistry
}

// New creates a Factory bound to the given imaging limits and format
// registry.
func New(imaging config.ImagingConfig, formats *iiif.FormatRegistry) *Factory {
	return &Factory{Imaging: imaging, Formats: formats}
}

// EffectiveDimensions exposes effectiveDimensions for callers outside this
// package (the image-request handler) that need the same post-rotation,
// post scale-constraint width/height info.json itself advertises.
func (f *Factory) EffectiveDimensions(info iiif.Info, constraint iiif.ScaleConstraint) (width, height int) {
	return effectiveDimensions(info, constraint)
}

// AdvertisedSizes returns the same halving progression info.json's "sizes"
// array advertises for a source whose effective (post scale-constraint)
// dimensions are width x height. The image-request handler uses this to
// enforce restrict_to_sizes: a request whose resulting dimensions aren't
// in this list is rejected rather than silently served off-list.
func (f *Factory) AdvertisedSizes(width, height int) []iiif.ResolutionLevel {
	return sizesHalving(width, height, f.Imaging.MinSize, f.Imaging.MaxPixels)
}

// effectiveDimensions applies EXIF-style rotation (swap axes at 90/270)
// and a scale constraint (divide both axes by the constraint's
// denominator/numerator ratio) before any projection sees width/height.
func effectiveDimensions(info iiif.Info, constraint iiif.ScaleConstraint) (width, height int) {
	width, height = info.Width, info.Height
	switch info.Orientation {
	case 6, 8: // ROTATE_90 / ROTATE_270 (EXIF 6 = 90 CW, 8 = 270 CW)
		width, height = height, width
	}
	if !constraint.IsIdentity() {
		ratio := constraint.Rational()
		width = int(roundHalfUp(float64(width) * ratio))
		height = int(roundHalfUp(float64(height) * ratio))
	}
	return width, height
}

func roundHalfUp(f float64) float64 {
	return float64(int64(f + 0.5))
}

// scaleFactorsDownTo returns powers of two 1, 2, 4, ... up to the largest
// factor that keeps both axes at or above minSize.
func scaleFactorsDownTo(width, height, minSize int) []int {
	if minSize <= 0 {
		minSize = 1
	}
	factors := []int{1}
	f := 2
	for width/f >= minSize && height/f >= minSize {
		factors = append(factors, f)
		f *= 2
	}
	return factors
}

// sizesHalving returns the v2/v3 "sizes" list: width/height halved
// repeatedly down to min_size, clamped so no entry exceeds max_pixels.
func sizesHalving(width, height, minSize, maxPixels int) []iiif.ResolutionLevel {
	if minSize <= 0 {
		minSize = 1
	}
	var out []iiif.ResolutionLevel
	w, h := width, height
	for w >= minSize && h >= minSize {
		if maxPixels <= 0 || w*h <= maxPixels {
			out = append(out, iiif.ResolutionLevel{Width: w, Height: h})
		}
		w, h = w/2, h/2
	}
	// Ascending order, smallest to largest, per the IIIF examples.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (f *Factory) formatsAndQualities() (formats []string, qualities []string) {
	for _, fmt := range f.Formats.All() {
		if fmt.Writable {
			formats = append(formats, fmt.Extension)
		}
	}
	qualities = []string{"default", "color", "gray", "bitonal"}
	return formats, qualities
}

// V1Document is the projected IIIF Image API 1.1 info.json body.
type V1Document struct {
	Context      string   `json:"@context"`
	ID           string   `json:"@id"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	ScaleFactors []int    `json:"scale_factors,omitempty"`
	TileWidth    int      `json:"tile_width,omitempty"`
	TileHeight   int      `json:"tile_height,omitempty"`
	Formats      []string `json:"formats"`
	Qualities    []string `json:"qualities"`
	Profile      string   `json:"profile"`
}

// BuildV1 projects info into a v1.1 descriptor rooted at id (the full
// @id URI, already including protocol/host/base_uri/prefix).
func (f *Factory) BuildV1(info iiif.Info, id string, constraint iiif.ScaleConstraint) V1Document {
	width, height := effectiveDimensions(info, constraint)
	formats, qualities := f.formatsAndQualities()

	doc := V1Document{
		Context:   "http://library.stanford.edu/iiif/image-api/1.1/context.json",
		ID:        id,
		Width:     width,
		Height:    height,
		Formats:   formats,
		Qualities: qualities,
		Profile:   "http://library.stanford.edu/iiif/image-api/compliance.html#level2",
	}
	if info.HasTiles {
		doc.ScaleFactors = scaleFactorsDownTo(width, height, f.Imaging.MinSize)
		doc.TileWidth = info.TileSize.Width
		doc.TileHeight = info.TileSize.Height
	} else {
		doc.TileWidth = width
		doc.TileHeight = height
	}
	return doc
}

// V2Profile is the second element of a v2 "profile" array: the feature
// descriptor object.
type V2Profile struct {
	Formats   []string `json:"formats"`
	Qualities []string `json:"qualities"`
	MaxArea   int      `json:"maxArea,omitempty"`
	Supports  []string `json:"supports"`
}

// V2Tile is one entry of the v2 "tiles" array.
type V2Tile struct {
	Width        int   `json:"width"`
	Height       int   `json:"height"`
	ScaleFactors []int `json:"scaleFactors"`
}

// V2Size is one entry of the v2/v3 "sizes" array.
type V2Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// V2Document is the projected IIIF Image API 2 info.json body.
type V2Document struct {
	Context  string        `json:"@context"`
	ID       string        `json:"@id"`
	Protocol string        `json:"protocol"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Sizes    []V2Size      `json:"sizes,omitempty"`
	Tiles    []V2Tile      `json:"tiles,omitempty"`
	Profile  []interface{} `json:"profile"`
}

// BuildV2 projects info into a v2 descriptor. allowUpscaling gates the
// "sizeAboveFull" support entry.
func (f *Factory) BuildV2(info iiif.Info, id string, constraint iiif.ScaleConstraint, allowUpscaling bool) V2Document {
	width, height := effectiveDimensions(info, constraint)
	formats, qualities := f.formatsAndQualities()

	supports := []string{"baseUriRedirect", "cors", "jsonldMediaType", "profileLinkHeader", "regionByPct",
		"regionByPx", "regionSquare", "rotationArbitrary", "rotationBy90s", "sizeByConfinedWh", "sizeByDistortedWh",
		"sizeByH", "sizeByPct", "sizeByW", "sizeByWh"}
	if allowUpscaling {
		supports = append(supports, "sizeAboveFull")
	}

	profile := V2Profile{
		Formats:   extraOnly(formats, []string{"jpg", "png"}),
		Qualities: extraOnly(qualities, []string{"default"}),
		MaxArea:   f.Imaging.MaxPixels,
		Supports:  supports,
	}

	doc := V2Document{
		Context:  "http://iiif.io/api/image/2/context.json",
		ID:       id,
		Protocol: "http://iiif.io/api/image",
		Width:    width,
		Height:   height,
		Profile:  []interface{}{"http://iiif.io/api/image/2/level2.json", profile},
	}
	if sizes := sizesHalving(width, height, f.Imaging.MinSize, f.Imaging.MaxPixels); len(sizes) > 0 {
		doc.Sizes = toV2Sizes(sizes)
	}
	if info.HasTiles {
		tileW, tileH := info.TileSize.Width, info.TileSize.Height
		doc.Tiles = []V2Tile{{Width: tileW, Height: tileH, ScaleFactors: scaleFactorsDownTo(width, height, f.Imaging.MinSize)}}
	}
	return doc
}

// v3DefaultFeatures is the 17-entry extraFeatures default set advertised
// when upscaling is permitted; "sizeUpscaling" is dropped otherwise.
var v3DefaultFeatures = []string{
	"baseUriRedirect", "canonicalLinkHeader", "cors", "jsonldMediaType", "mirroring", "profileLinkHeader",
	"regionByPct", "regionByPx", "regionSquare", "rotationArbitrary", "rotationBy90s", "sizeByConfinedWh",
	"sizeByH", "sizeByPct", "sizeByW", "sizeByWh", "sizeUpscaling",
}

// V3Document is the projected IIIF Image API 3 info.json body.
type V3Document struct {
	Context        string   `json:"@context"`
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Protocol       string   `json:"protocol"`
	Profile        string   `json:"profile"`
	Width          int      `json:"width"`
	Height         int      `json:"height"`
	MaxArea        int      `json:"maxArea,omitempty"`
	Sizes          []V2Size `json:"sizes,omitempty"`
	Tiles          []V2Tile `json:"tiles,omitempty"`
	ExtraFormats   []string `json:"extraFormats,omitempty"`
	ExtraQualities []string `json:"extraQualities,omitempty"`
	ExtraFeatures  []string `json:"extraFeatures"`
	PageCount      int      `json:"pageCount,omitempty"`
}

// BuildV3 projects info into a v3 descriptor. allowUpscaling gates both
// "sizeUpscaling" and whether an active sub-1.0 scale constraint forces
// it off regardless of configuration.
func (f *Factory) BuildV3(info iiif.Info, id string, constraint iiif.ScaleConstraint, allowUpscaling bool) V3Document {
	width, height := effectiveDimensions(info, constraint)
	formats, qualities := f.formatsAndQualities()

	features := append([]string(nil), v3DefaultFeatures...)
	if !allowUpscaling || (!constraint.IsIdentity() && constraint.Rational() < 1.0) {
		features = removeFeature(features, "sizeUpscaling")
	}

	doc := V3Document{
		Context:        "http://iiif.io/api/image/3/context.json",
		ID:             id,
		Type:           "ImageService3",
		Protocol:       "http://iiif.io/api/image",
		Profile:        "level2",
		Width:          width,
		Height:         height,
		MaxArea:        f.Imaging.MaxPixels,
		ExtraFormats:   extraOnly(formats, []string{"jpg", "png"}),
		ExtraQualities: extraOnly(qualities, []string{"default"}),
		ExtraFeatures:  features,
		PageCount:      info.EffectivePageCount(),
	}
	if sizes := sizesHalving(width, height, f.Imaging.MinSize, f.Imaging.MaxPixels); len(sizes) > 0 {
		doc.Sizes = toV2Sizes(sizes)
	}
	if info.HasTiles {
		tileW, tileH := info.TileSize.Width, info.TileSize.Height
		doc.Tiles = []V2Tile{{Width: tileW, Height: tileH, ScaleFactors: scaleFactorsDownTo(width, height, f.Imaging.MinSize)}}
	}
	return doc
}

// DZIDocument is the Deep Zoom .dzi descriptor (serialized as XML by the
// caller; this struct only carries the projected fields).
type DZIDocument struct {
	FormatExt string
	TileSize  int
	Overlap   int
	Width     int
	Height    int
}

// BuildDZI projects info into a Deep Zoom descriptor.
func (f *Factory) BuildDZI(info iiif.Info, formatExt string) DZIDocument {
	tileSize := info.TileSize.Width
	if tileSize <= 0 {
		tileSize = f.Imaging.TileSize
	}
	return DZIDocument{FormatExt: formatExt, TileSize: tileSize, Overlap: 0, Width: info.Width, Height: info.Height}
}

func toV2Sizes(levels []iiif.ResolutionLevel) []V2Size {
	out := make([]V2Size, len(levels))
	for i, l := range levels {
		out[i] = V2Size{Width: l.Width, Height: l.Height}
	}
	return out
}

// extraOnly returns the entries of all that are not already in base, the
// set v2/v3 advertise unconditionally as part of the spec's required
// baseline (so "extraFormats"/"extraQualities" list only the additions).
func extraOnly(all, base []string) []string {
	baseSet := make(map[string]struct{}, len(base))
	for _, b := range base {
		baseSet[b] = struct{}{}
	}
	var out []string
	for _, a := range all {
		if _, ok := baseSet[a]; !ok {
			out = append(out, a)
		}
	}
	return out
}

func removeFeature(features []string, name string) []string {
	out := features[:0]
	for _, f := range features {
		if f != name {
			out = append(out, f)
		}
	}
	return out
}
