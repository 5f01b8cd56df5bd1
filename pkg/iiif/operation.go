package iiif

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// OpKind tags the variant held by an Operation.
type OpKind int

const (
	OpCrop OpKind = iota
	OpScale
	OpRotate
	OpTranspose
	OpColorTransform
	OpEncode
)

// Operation is one step of a lowered OperationList. Only the fields
// relevant to Kind are populated; the rest are zero.
type Operation struct {
	Kind OpKind

	// OpCrop
	CropX, CropY, CropW, CropH float64
	CropIsPercent              bool

	// OpScale
	ScaleW, ScaleH int

	// OpRotate
	RotateDegrees float64

	// OpTranspose
	TransposeAxis string // "horizontal" or "vertical"

	// OpColorTransform
	ColorTransform Quality

	// OpEncode
	Format  Format
	Quality Quality
}

func (o Operation) String() string {
	switch o.Kind {
	case OpCrop:
		return fmt.Sprintf("crop(%v,%v,%v,%v,pct=%v)", o.CropX, o.CropY, o.CropW, o.CropH, o.CropIsPercent)
	case OpScale:
		return fmt.Sprintf("scale(%d,%d)", o.ScaleW, o.ScaleH)
	case OpRotate:
		return fmt.Sprintf("rotate(%v)", o.RotateDegrees)
	case OpTranspose:
		return fmt.Sprintf("transpose(%s)", o.TransposeAxis)
	case OpColorTransform:
		return fmt.Sprintf("color(%s)", o.ColorTransform)
	case OpEncode:
		return fmt.Sprintf("encode(%s,%s)", o.Format.Extension, o.Quality)
	default:
		return "unknown"
	}
}

// OperationList is the ordered, validated sequence of transforms a
// processing engine must apply to a decoded source image to produce a
// response. It is built once per request by Build and is the unit that
// the variant cache keys on via Fingerprint.
type OperationList struct {
	Meta       MetaIdentifier
	Operations []Operation
}

// Fingerprint returns a stable hex digest of the operation list. Two
// OperationLists with equal Fingerprint values are guaranteed to produce
// byte-identical output — this is the invariant the variant cache relies
// on to let concurrent duplicate requests share one cache entry.
func (l OperationList) Fingerprint() string {
	var b strings.Builder
	b.WriteString(l.Meta.Serialize(false))
	for _, op := range l.Operations {
		b.WriteString("|")
		b.WriteString(op.String())
	}
	h := xxhash.Sum64String(b.String())
	return fmt.Sprintf("%016x", h)
}

// HasEncode reports whether the list ends in a terminal OpEncode, as it
// always should once Build has run.
func (l OperationList) HasEncode() bool {
	n := len(l.Operations)
	return n > 0 && l.Operations[n-1].Kind == OpEncode
}

// Build lowers a parsed Parameters value, against known source
// dimensions (srcW, srcH) and an effective scale constraint, into an
// OperationList. It applies the lowering rules:
//
//  1. Omit Crop when Region is Full (no-op).
//  2. Resolve Size against the cropped region's dimensions, then fold in
//     the Meta-Identifier's scale constraint (if any) by multiplying the
//     target dimensions by n/d, rounding, and rejecting results under a
//     single pixel.
//  3. Omit Scale when the resolved dimensions equal the cropped region's
//     dimensions (no-op).
//  4. Omit Rotate when the rotation is identity (0 degrees, no mirror);
//     a pure mirror with 0 degrees still lowers to a standalone
//     Transpose so horizontal-only flips don't pay for a rotation.
//  5. Always terminate with a single Encode carrying the resolved format
//     and quality.
func Build(p Parameters, srcW, srcH int, formats *FormatRegistry, maxPixels int) (OperationList, error) {
	list := OperationList{Meta: p.Meta}

	cropX, cropY, cropW, cropH, err := resolveRegion(p.Region, srcW, srcH)
	if err != nil {
		return OperationList{}, err
	}
	if p.Region.Kind != RegionFull {
		list.Operations = append(list.Operations, Operation{
			Kind:          OpCrop,
			CropX:         cropX,
			CropY:         cropY,
			CropW:         cropW,
			CropH:         cropH,
			CropIsPercent: false,
		})
	}

	outW, outH, err := p.Size.Resolve(int(cropW), int(cropH), p.Size.Upscale)
	if err != nil {
		return OperationList{}, err
	}

	if scale := p.Meta.EffectiveScale(); scale != 1 {
		outW = int(round(float64(outW) * scale))
		outH = int(round(float64(outH) * scale))
		if outW < 1 || outH < 1 {
			return OperationList{}, IllegalArgument("scale constraint reduces output below 1 pixel")
		}
	}

	if maxPixels > 0 && outW*outH > maxPixels {
		return OperationList{}, IllegalArgument("requested size %dx%d exceeds the configured pixel ceiling", outW, outH)
	}

	if outW != int(cropW) || outH != int(cropH) {
		list.Operations = append(list.Operations, Operation{Kind: OpScale, ScaleW: outW, ScaleH: outH})
	}

	if p.Rotation.Mirror {
		list.Operations = append(list.Operations, Operation{Kind: OpTranspose, TransposeAxis: "horizontal"})
	}
	if mod := mod360(p.Rotation.Degrees); mod != 0 {
		list.Operations = append(list.Operations, Operation{Kind: OpRotate, RotateDegrees: mod})
	}

	if p.Quality == QualityColor || p.Quality == QualityGray || p.Quality == QualityBitonal {
		list.Operations = append(list.Operations, Operation{Kind: OpColorTransform, ColorTransform: p.Quality})
	}

	format, err := formats.Lookup(p.FormatExt)
	if err != nil {
		return OperationList{}, err
	}
	list.Operations = append(list.Operations, Operation{Kind: OpEncode, Format: format, Quality: p.Quality})

	return list, nil
}

// resolveRegion computes the crop box in absolute pixels for a region
// against a source of (srcW, srcH), clamping an oversized request to the
// source bounds per the spec's lenient-clamp rule rather than rejecting it.
func resolveRegion(r Region, srcW, srcH int) (x, y, w, h float64, err error) {
	switch r.Kind {
	case RegionFull:
		return 0, 0, float64(srcW), float64(srcH), nil
	case RegionSquare:
		side := float64(srcW)
		if srcH < srcW {
			side = float64(srcH)
		}
		x := (float64(srcW) - side) / 2
		y := (float64(srcH) - side) / 2
		return x, y, side, side, nil
	case RegionPercent:
		x := r.X / 100 * float64(srcW)
		y := r.Y / 100 * float64(srcH)
		w := r.W / 100 * float64(srcW)
		h := r.H / 100 * float64(srcH)
		return clampRegion(x, y, w, h, srcW, srcH)
	default: // RegionPixels
		return clampRegion(r.X, r.Y, r.W, r.H, srcW, srcH)
	}
}

func clampRegion(x, y, w, h float64, srcW, srcH int) (float64, float64, float64, float64, error) {
	if x >= float64(srcW) || y >= float64(srcH) {
		return 0, 0, 0, 0, IllegalArgument("region origin (%v,%v) lies outside the %dx%d source", x, y, srcW, srcH)
	}
	if x+w > float64(srcW) {
		w = float64(srcW) - x
	}
	if y+h > float64(srcH) {
		h = float64(srcH) - y
	}
	if w < 1 || h < 1 {
		return 0, 0, 0, 0, IllegalArgument("region resolves to an empty area")
	}
	return x, y, w, h, nil
}
