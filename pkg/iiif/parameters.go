package iiif

// APIVersion identifies which of the three historical IIIF Image APIs a
// request targets.
type APIVersion int

const (
	APIv1 APIVersion = iota + 1
	APIv2
	APIv3
)

// Parameters is the fully parsed (identifier, region, size, rotation,
// quality, output-format[, query]) tuple for one version's image-request
// path shape.
type Parameters struct {
	Version         APIVersion
	Meta            MetaIdentifier
	Region          Region
	Size            Size
	Rotation        Rotation
	Quality         Quality
	FormatExt       string
	Query           map[string]string
	RestrictToSizes bool // v2 only: resulting dims must be in advertised sizes list
}

// String renders the canonical path form used by the URI round-trip
// property: parse(s).String() == s for a parseable s already in canonical
// form (a number such as "90.0" comes back as "90").
func (p Parameters) String() string {
	return p.Meta.Serialize(false) + "/" + p.Region.String() + "/" + p.Size.String() + "/" +
		p.Rotation.String() + "/" + string(p.Quality) + "." + p.FormatExt
}

// features enabled per API version for the shared grammars.
func featuresFor(v APIVersion) (allowSquare, allowMax, allowUpscale, allowMirror, allowNative bool) {
	switch v {
	case APIv1:
		return false, false, false, false, true
	case APIv2:
		return true, true, false, true, false
	case APIv3:
		return true, true, true, true, false
	default:
		return false, false, false, false, false
	}
}

// ParseImagePath parses the four slash-separated segments of an image
// request path: region/size/rotation/quality.format. The identifier is
// parsed separately (it precedes these segments and may itself contain
// slashes) via ParseMetaIdentifier.
func ParseImagePath(meta MetaIdentifier, version APIVersion, region, size, rotation, qualityDotFormat string) (Parameters, error) {
	allowSquare, allowMax, allowUpscale, allowMirror, allowNative := featuresFor(version)

	r, err := ParseRegion(region, allowSquare)
	if err != nil {
		return Parameters{}, err
	}
	sz, err := ParseSize(size, allowMax, allowUpscale)
	if err != nil {
		return Parameters{}, err
	}
	rot, err := ParseRotation(rotation, allowMirror)
	if err != nil {
		return Parameters{}, err
	}

	quality, formatExt, err := splitQualityFormat(qualityDotFormat)
	if err != nil {
		return Parameters{}, err
	}
	q, err := ParseQuality(quality, allowNative)
	if err != nil {
		return Parameters{}, err
	}

	return Parameters{
		Version:   version,
		Meta:      meta,
		Region:    r,
		Size:      sz,
		Rotation:  rot,
		Quality:   q,
		FormatExt: formatExt,
	}, nil
}

func splitQualityFormat(s string) (quality, format string, err error) {
	idx := -1
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			idx = i
			break
		}
	}
	if idx <= 0 || idx == len(s)-1 {
		return "", "", IllegalArgument("malformed quality.format segment %q", s)
	}
	return s[:idx], s[idx+1:], nil
}
