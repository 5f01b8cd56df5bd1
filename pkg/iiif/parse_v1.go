package iiif

import "strings"

// ParseV1ImagePath parses a IIIF Image API 1.x image-request path, already
// stripped of its configured prefix: {identifier}/{region}/{size}/{rotation}/{quality}.{format}.
// v1 has no page/scale-constraint syntax and no mirror axis; "native" is a
// valid quality synonym for "default".
func ParseV1ImagePath(path string) (Parameters, error) {
	segs := strings.Split(path, "/")
	if len(segs) != 5 {
		return Parameters{}, IllegalArgument("malformed v1 image path %q", path)
	}
	meta, err := ParseMetaIdentifier(segs[0])
	if err != nil {
		return Parameters{}, err
	}
	if meta.HasPage || meta.HasScale {
		return Parameters{}, IllegalArgument("page/scale-constraint syntax not supported by API v1")
	}
	return ParseImagePath(meta, APIv1, segs[1], segs[2], segs[3], segs[4])
}

// IsV1InfoPath reports whether path (prefix-stripped) is {identifier}/info.json.
func IsV1InfoPath(path string) (Identifier, bool) {
	const suffix = "/info.json"
	if !strings.HasSuffix(path, suffix) {
		return "", false
	}
	return Identifier(strings.TrimSuffix(path, suffix)), true
}
