package infofactory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galia-project/iiifcore/internal/config"
	"github.com/galia-project/iiifcore/pkg/iiif"
)

func testFactory() *Factory {
	imaging := config.ImagingConfig{MaxPixels: 100_000_000, MinSize: 64, TileSize: 512}
	return New(imaging, iiif.NewFormatRegistry(iiif.DefaultFormats()...))
}

func TestBuildV1_UntiledUsesFullDimensionsAsTileSize(t *testing.T) {
	f := testFactory()
	info := iiif.Info{Width: 800, Height: 600}
	doc := f.BuildV1(info, "http://example.org/iiif/1/abc", iiif.ScaleConstraint{Numerator: 1, Denominator: 1})
	assert.Equal(t, 800, doc.Width)
	assert.Equal(t, 600, doc.Height)
	assert.Equal(t, 800, doc.TileWidth)
	assert.Equal(t, 600, doc.TileHeight)
	assert.Empty(t, doc.ScaleFactors)
}

func TestBuildV1_TiledProjectsScaleFactorsDownToMinSize(t *testing.T) {
	f := testFactory()
	info := iiif.Info{Width: 1024, Height: 1024, HasTiles: true, TileSize: iiif.TileSize{Width: 256, Height: 256}}
	doc := f.BuildV1(info, "http://example.org/iiif/1/abc", iiif.ScaleConstraint{Numerator: 1, Denominator: 1})
	// 1024 -> 512 -> 256 -> 128 -> 64 (>= min_size 64), stop before 32.
	assert.Equal(t, []int{1, 2, 4, 8, 16}, doc.ScaleFactors)
}

func TestBuildV2_ScaleConstraintProjectsWidthAndHeight(t *testing.T) {
	f := testFactory()
	info := iiif.Info{Width: 801, Height: 599}
	doc := f.BuildV2(info, "http://example.org/iiif/2/abc", iiif.ScaleConstraint{Numerator: 1, Denominator: 2}, true)
	assert.Equal(t, 401, doc.Width, "round(801/2) == 401")
	assert.Equal(t, 300, doc.Height, "round(599/2) == 300")
}

func TestBuildV2_SupportsSizeAboveFullOnlyWhenUpscalingAllowed(t *testing.T) {
	f := testFactory()
	info := iiif.Info{Width: 100, Height: 100}

	withUpscale := f.BuildV2(info, "id", iiif.ScaleConstraint{Numerator: 1, Denominator: 1}, true)
	profile := withUpscale.Profile[1].(V2Profile)
	assert.Contains(t, profile.Supports, "sizeAboveFull")

	withoutUpscale := f.BuildV2(info, "id", iiif.ScaleConstraint{Numerator: 1, Denominator: 1}, false)
	profile = withoutUpscale.Profile[1].(V2Profile)
	assert.NotContains(t, profile.Supports, "sizeAboveFull")
}

func TestBuildV3_OmitsSizeUpscalingWhenDisallowed(t *testing.T) {
	f := testFactory()
	info := iiif.Info{Width: 100, Height: 100, PageCount: 3}

	doc := f.BuildV3(info, "id", iiif.ScaleConstraint{Numerator: 1, Denominator: 1}, true)
	assert.Contains(t, doc.ExtraFeatures, "sizeUpscaling")
	assert.Equal(t, 3, doc.PageCount)

	doc = f.BuildV3(info, "id", iiif.ScaleConstraint{Numerator: 1, Denominator: 1}, false)
	assert.NotContains(t, doc.ExtraFeatures, "sizeUpscaling")
}

func TestBuildV3_OmitsSizeUpscalingUnderSubOneScaleConstraintEvenIfAllowed(t *testing.T) {
	f := testFactory()
	info := iiif.Info{Width: 100, Height: 100}
	doc := f.BuildV3(info, "id", iiif.ScaleConstraint{Numerator: 1, Denominator: 2}, true)
	assert.NotContains(t, doc.ExtraFeatures, "sizeUpscaling")
}

func TestBuildV3_Type3AndLevel2Profile(t *testing.T) {
	f := testFactory()
	doc := f.BuildV3(iiif.Info{Width: 10, Height: 10}, "id", iiif.ScaleConstraint{Numerator: 1, Denominator: 1}, true)
	assert.Equal(t, "ImageService3", doc.Type)
	assert.Equal(t, "level2", doc.Profile)
}

func TestEffectiveDimensions_RotationSwapsAxes(t *testing.T) {
	info := iiif.Info{Width: 800, Height: 600, Orientation: 6}
	w, h := effectiveDimensions(info, iiif.ScaleConstraint{Numerator: 1, Denominator: 1})
	assert.Equal(t, 600, w)
	assert.Equal(t, 800, h)
}

func TestBuildDZI_FallsBackToConfiguredTileSizeWhenUntiled(t *testing.T) {
	f := testFactory()
	doc := f.BuildDZI(iiif.Info{Width: 64, Height: 56}, "jpg")
	assert.Equal(t, 512, doc.TileSize)
	assert.Equal(t, "jpg", doc.FormatExt)
}

func TestSizesHalving_ClampsToMaxPixels(t *testing.T) {
	levels := sizesHalving(4096, 4096, 64, 1_000_000)
	require.NotEmpty(t, levels)
	for _, l := range levels {
		assert.LessOrEqual(t, l.Width*l.Height, 1_000_000)
	}
}
