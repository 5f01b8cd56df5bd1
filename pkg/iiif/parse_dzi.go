package iiif

import (
	"strconv"
	"strings"
)

// DZITileRequest is the parsed form of a Deep Zoom tile path:
// {identifier}_files/{level}/{col}_{row}.{ext}.
type DZITileRequest struct {
	Identifier Identifier
	Level      int
	Col        int
	Row        int
	FormatExt  string
}

// ParseDZITilePath parses a Deep Zoom tile path (prefix-stripped). It does
// not itself validate level/col/row against a pyramid; callers compare
// against the source's Info and return NotFound when out of range, per the
// Deep Zoom path shape's "out-of-range -> 404" rule.
func ParseDZITilePath(path string) (DZITileRequest, error) {
	const marker = "_files/"
	idx := strings.Index(path, marker)
	if idx < 0 {
		return DZITileRequest{}, IllegalArgument("malformed deep zoom tile path %q", path)
	}
	id := path[:idx]
	rest := path[idx+len(marker):]

	segs := strings.Split(rest, "/")
	if len(segs) != 2 {
		return DZITileRequest{}, IllegalArgument("malformed deep zoom tile path %q", path)
	}
	level, err := strconv.Atoi(segs[0])
	if err != nil || level < 0 {
		return DZITileRequest{}, IllegalArgument("invalid deep zoom level %q", segs[0])
	}

	colRowExt := segs[1]
	dot := strings.LastIndexByte(colRowExt, '.')
	if dot <= 0 || dot == len(colRowExt)-1 {
		return DZITileRequest{}, IllegalArgument("malformed deep zoom tile filename %q", colRowExt)
	}
	ext := colRowExt[dot+1:]
	colRow := colRowExt[:dot]

	underscore := strings.IndexByte(colRow, '_')
	if underscore < 0 {
		return DZITileRequest{}, IllegalArgument("malformed deep zoom tile coordinates %q", colRow)
	}
	col, err1 := strconv.Atoi(colRow[:underscore])
	row, err2 := strconv.Atoi(colRow[underscore+1:])
	if err1 != nil || err2 != nil || col < 0 || row < 0 {
		return DZITileRequest{}, IllegalArgument("invalid deep zoom tile coordinates %q", colRow)
	}

	return DZITileRequest{
		Identifier: Identifier(id),
		Level:      level,
		Col:        col,
		Row:        row,
		FormatExt:  ext,
	}, nil
}

// IsDZIDescriptorPath reports whether path (prefix-stripped) is
// {identifier}.dzi, returning the decoded identifier.
func IsDZIDescriptorPath(path string) (Identifier, bool) {
	const suffix = ".dzi"
	if !strings.HasSuffix(path, suffix) || len(path) <= len(suffix) {
		return "", false
	}
	return Identifier(strings.TrimSuffix(path, suffix)), true
}

// ValidateDZITile reports whether (level, col, row) is within range for a
// pyramid described by the given full-resolution (width, height) and tile
// size, with DZI's convention of level 0 being the 1x1-pixel root and the
// maximum level being ceil(log2(max(width,height))).
func ValidateDZITile(level, col, row, width, height, tileSize int) bool {
	if level < 0 || tileSize <= 0 {
		return false
	}
	maxLevel := dziMaxLevel(width, height)
	if level > maxLevel {
		return false
	}
	scale := dziScaleAtLevel(level, maxLevel)
	levelW := scaleDim(width, scale)
	levelH := scaleDim(height, scale)
	cols := (levelW + tileSize - 1) / tileSize
	rows := (levelH + tileSize - 1) / tileSize
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return col >= 0 && col < cols && row >= 0 && row < rows
}

func dziMaxLevel(width, height int) int {
	dim := width
	if height > dim {
		dim = height
	}
	level := 0
	for (1 << level) < dim {
		level++
	}
	return level
}

func dziScaleAtLevel(level, maxLevel int) float64 {
	diff := maxLevel - level
	if diff <= 0 {
		return 1
	}
	return 1.0 / float64(int(1)<<uint(diff))
}

func scaleDim(dim int, scale float64) int {
	v := int(round(float64(dim) * scale))
	if v < 1 {
		v = 1
	}
	return v
}
