package iiif

import (
	"fmt"
	"strconv"
	"strings"
)

// RegionKind tags the variant held by a Region value.
type RegionKind int

const (
	RegionFull RegionKind = iota
	RegionSquare
	RegionPixels
	RegionPercent
)

// Region is the parsed form of the IIIF region path segment.
type Region struct {
	Kind       RegionKind
	X, Y, W, H float64 // pixels for RegionPixels, 0-100 for RegionPercent
}

// ParseRegion parses the region grammar shared by v1/v2/v3:
//
//	full                -> Full
//	square              -> Square (v2.1+, v3)
//	pct:x,y,w,h         -> Percent
//	x,y,w,h             -> Pixels
func ParseRegion(s string, allowSquare bool) (Region, error) {
	switch {
	case s == "full":
		return Region{Kind: RegionFull}, nil
	case s == "square":
		if !allowSquare {
			return Region{}, IllegalArgument("region %q not supported by this API version", s)
		}
		return Region{Kind: RegionSquare}, nil
	case strings.HasPrefix(s, "pct:"):
		vals, err := parseFloat4(strings.TrimPrefix(s, "pct:"))
		if err != nil {
			return Region{}, IllegalArgument("invalid percent region %q: %v", s, err)
		}
		if vals[0] < 0 || vals[1] < 0 || vals[2] <= 0 || vals[3] <= 0 {
			return Region{}, IllegalArgument("invalid percent region %q: non-positive dimension", s)
		}
		return Region{Kind: RegionPercent, X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
	default:
		vals, err := parseFloat4(s)
		if err != nil {
			return Region{}, IllegalArgument("invalid region %q: %v", s, err)
		}
		if vals[0] < 0 || vals[1] < 0 || vals[2] <= 0 || vals[3] <= 0 {
			return Region{}, IllegalArgument("invalid region %q: non-positive dimension", s)
		}
		return Region{Kind: RegionPixels, X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
	}
}

func parseFloat4(s string) ([4]float64, error) {
	var out [4]float64
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return out, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

// String renders the canonical region token (used by Parameters.String for
// the URI round-trip property).
func (r Region) String() string {
	switch r.Kind {
	case RegionFull:
		return "full"
	case RegionSquare:
		return "square"
	case RegionPercent:
		return "pct:" + formatFloat4(r.X, r.Y, r.W, r.H)
	default:
		return formatFloat4(r.X, r.Y, r.W, r.H)
	}
}

func formatFloat4(a, b, c, d float64) string {
	return formatNum(a) + "," + formatNum(b) + "," + formatNum(c) + "," + formatNum(d)
}

func formatNum(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
