package iiif

import "strings"

// ParseV2ImagePath parses a IIIF Image API 2.x image-request path
// (prefix-stripped). v2 adds square regions, the max size, mirroring, and
// Meta-Identifier page/scale-constraint syntax; it has no upscale marker.
func ParseV2ImagePath(path string) (Parameters, error) {
	segs := strings.Split(path, "/")
	if len(segs) != 5 {
		return Parameters{}, IllegalArgument("malformed v2 image path %q", path)
	}
	meta, err := ParseMetaIdentifier(segs[0])
	if err != nil {
		return Parameters{}, err
	}
	return ParseImagePath(meta, APIv2, segs[1], segs[2], segs[3], segs[4])
}

// IsV2InfoPath reports whether path (prefix-stripped) is {meta-id}/info.json.
func IsV2InfoPath(path string) (Identifier, bool) {
	return IsV1InfoPath(path)
}

// IsV2BarePath reports whether path (prefix-stripped) is a bare
// meta-identifier with no trailing segments — the router redirects this
// with 303 to the info.json form.
func IsV2BarePath(path string) (MetaIdentifier, bool) {
	if path == "" || strings.Contains(path, "/") {
		return MetaIdentifier{}, false
	}
	meta, err := ParseMetaIdentifier(path)
	if err != nil {
		return MetaIdentifier{}, false
	}
	return meta, true
}
