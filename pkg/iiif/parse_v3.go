package iiif

import "strings"

// ParseV3ImagePath parses a IIIF Image API 3.x image-request path
// (prefix-stripped). v3 additionally permits the '^' upscale marker on the
// size segment and drops the "native" quality synonym.
func ParseV3ImagePath(path string) (Parameters, error) {
	segs := strings.Split(path, "/")
	if len(segs) != 5 {
		return Parameters{}, IllegalArgument("malformed v3 image path %q", path)
	}
	meta, err := ParseMetaIdentifier(segs[0])
	if err != nil {
		return Parameters{}, err
	}
	return ParseImagePath(meta, APIv3, segs[1], segs[2], segs[3], segs[4])
}

// IsV3InfoPath reports whether path (prefix-stripped) is {meta-id}/info.json.
func IsV3InfoPath(path string) (Identifier, bool) {
	return IsV1InfoPath(path)
}
